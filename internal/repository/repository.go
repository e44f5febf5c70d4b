package repository

import (
	"context"
	"database/sql"
	"time"

	"reflow_oven/internal/models"
)

// Operators stores the accounts allowed to use the control API.
type Operators interface {
	Create(ctx context.Context, username, hash string, at time.Time) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	TouchSignIn(ctx context.Context, id int, at time.Time) error
}

type StateRepo interface {
	Save(ctx context.Context, s models.OvenState) error
	Load(ctx context.Context) (models.OvenState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.OvenEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.OvenEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Operators Operators
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Operators: NewOperatorSQLite(db),
	}
}
