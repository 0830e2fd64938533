package models

import "time"

const (
	RoleMember = "member"
	RoleCoach  = "coach"
	RoleAdmin  = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     *string   `json:"full_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActorContext identifies the authenticated caller for service-layer
// authorization checks. Handlers build it from the JWT claims and pass
// it explicitly; services never read request state.
type ActorContext struct {
	ID   int64
	Role string
}

// IsOperator reports whether the actor may act on registrations and
// sessions belonging to other members.
func (a ActorContext) IsOperator() bool {
	return a.Role == RoleCoach || a.Role == RoleAdmin
}
