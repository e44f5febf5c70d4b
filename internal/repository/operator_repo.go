package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reflow_oven/internal/models"
)

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("username already taken")

type OperatorSQLite struct {
	db *sql.DB
}

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db}
}

var _ Operators = (*OperatorSQLite)(nil)

const (
	insertOperatorSQL           = `INSERT INTO operators (username, password_hash, created_at) VALUES (?, ?, ?)`
	selectOperatorByUsernameSQL = `SELECT id, username, password_hash, created_at, last_sign_in_at FROM operators WHERE username = ?`
	touchOperatorSignInSQL      = `UPDATE operators SET last_sign_in_at = ? WHERE id = ?`
)

// Create inserts a new operator and returns its ID.
func (r *OperatorSQLite) Create(ctx context.Context, username, passwordHash string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, insertOperatorSQL, username, passwordHash, at.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert operator %q: %w", username, ErrUsernameTaken)
		}
		return 0, fmt.Errorf("insert operator %q: %w", username, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for operator %q: %w", username, err)
	}
	return int(lastID), nil
}

// GetByUsername fetches an operator by username. Returns (nil, nil) if not found.
func (r *OperatorSQLite) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var (
		op       models.Operator
		lastSeen sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, selectOperatorByUsernameSQL, username).
		Scan(&op.ID, &op.Username, &op.PasswordHash, &op.CreatedAt, &lastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select operator %q: %w", username, err)
	}
	op.CreatedAt = op.CreatedAt.UTC()
	if lastSeen.Valid {
		t := lastSeen.Time.UTC()
		op.LastSignInAt = &t
	}
	return &op, nil
}

// TouchSignIn records a successful sign-in.
func (r *OperatorSQLite) TouchSignIn(ctx context.Context, id int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, touchOperatorSignInSQL, at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update sign-in for operator %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update sign-in for operator %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// sqlite reports constraint failures only through the message text.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
