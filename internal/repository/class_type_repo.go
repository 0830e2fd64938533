package repository

import (
	"context"

	"github.com/saeid-a/StudioBack/internal/models"
)

type ClassTypeRepository struct {
	db DBTX
}

func NewClassTypeRepository(db DBTX) *ClassTypeRepository {
	return &ClassTypeRepository{db: db}
}

func (r *ClassTypeRepository) GetByID(ctx context.Context, id int64) (*models.ClassType, error) {
	query := `
		SELECT id, name, description, created_at
		FROM class_types
		WHERE id = $1
	`
	var classType models.ClassType
	err := r.db.QueryRow(ctx, query, id).
		Scan(&classType.ID, &classType.Name, &classType.Description, &classType.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &classType, nil
}

func (r *ClassTypeRepository) List(ctx context.Context) ([]models.ClassType, error) {
	query := `
		SELECT id, name, description, created_at
		FROM class_types
		ORDER BY name ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classTypes := make([]models.ClassType, 0)
	for rows.Next() {
		var classType models.ClassType
		if err := rows.Scan(&classType.ID, &classType.Name, &classType.Description, &classType.CreatedAt); err != nil {
			return nil, err
		}
		classTypes = append(classTypes, classType)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return classTypes, nil
}
