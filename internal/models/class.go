package models

import "time"

type ClassType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
)

// ClassSession is a scheduled class occurrence. WaitlistSeq is the last
// waitlist position handed out for the session; it only ever grows, so
// positions are never reused even across cancellations.
type ClassSession struct {
	ID          int64         `json:"id"`
	ClassTypeID int64         `json:"class_type_id"`
	CoachID     int64         `json:"coach_id"`
	CohortID    *int64        `json:"cohort_id,omitempty"`
	StartsAt    time.Time     `json:"starts_at"`
	EndsAt      time.Time     `json:"ends_at"`
	Capacity    int           `json:"capacity"`
	Status      SessionStatus `json:"status"`
	WaitlistSeq int           `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ClassSessionDetail adds the occupancy figures shown by the browse
// endpoints.
type ClassSessionDetail struct {
	ClassSession
	ClassTypeName string `json:"class_type_name"`
	Registered    int    `json:"registered"`
	SpotsLeft     int    `json:"spots_left"`
	Waitlisted    int    `json:"waitlisted"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
