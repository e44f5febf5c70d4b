package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockOperators(t *testing.T) (*OperatorSQLite, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewOperatorSQLite(db), mock
}

var signUpAt = time.Date(2025, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))

func TestOperatorSQLite_Create(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		expect    func(sqlmock.Sqlmock)
		wantID    int
		wantErr   error
		errSubstr string
	}{
		{
			name:     "success stores UTC creation time",
			username: "alice",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).
					WithArgs("alice", "h123", "2025-03-01 08:30:00.000").
					WillReturnResult(sqlmock.NewResult(42, 1))
			},
			wantID: 42,
		},
		{
			name:     "duplicate username",
			username: "bob",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).
					WithArgs("bob", "h123", sqlmock.AnyArg()).
					WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: operators.username (2067)"))
			},
			wantErr: ErrUsernameTaken,
		},
		{
			name:     "exec error",
			username: "carol",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).
					WithArgs("carol", "h123", sqlmock.AnyArg()).
					WillReturnError(errors.New("disk I/O error"))
			},
			errSubstr: "insert operator",
		},
		{
			name:     "last insert id error",
			username: "dave",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).
					WithArgs("dave", "h123", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewErrorResult(errors.New("no last id")))
			},
			errSubstr: "get last insert id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockOperators(t)
			tt.expect(mock)

			id, err := repo.Create(context.Background(), tt.username, "h123", signUpAt)

			if tt.wantErr != nil || tt.errSubstr != "" {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Fatalf("expected error to contain %q, got %q", tt.errSubstr, err.Error())
				}
				if id != 0 {
					t.Fatalf("expected id=0 on error, got %d", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID {
				t.Fatalf("unexpected id: want %d, got %d", tt.wantID, id)
			}
		})
	}
}

func TestOperatorSQLite_GetByUsername(t *testing.T) {
	created := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	seen := time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC)
	columns := []string{"id", "username", "password_hash", "created_at", "last_sign_in_at"}

	t.Run("found with sign-in", func(t *testing.T) {
		repo, mock := newMockOperators(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByUsernameSQL)).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "alice", "h123", created, seen))

		op, err := repo.GetByUsername(context.Background(), "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if op == nil || op.ID != 7 || op.Username != "alice" || op.PasswordHash != "h123" {
			t.Fatalf("unexpected operator: %+v", op)
		}
		if !op.CreatedAt.Equal(created) {
			t.Fatalf("created_at: got %v, want %v", op.CreatedAt, created)
		}
		if op.LastSignInAt == nil || !op.LastSignInAt.Equal(seen) {
			t.Fatalf("last_sign_in_at: got %v, want %v", op.LastSignInAt, seen)
		}
	})

	t.Run("never signed in", func(t *testing.T) {
		repo, mock := newMockOperators(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByUsernameSQL)).
			WithArgs("bob").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(8, "bob", "h456", created, nil))

		op, err := repo.GetByUsername(context.Background(), "bob")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if op.LastSignInAt != nil {
			t.Fatalf("expected nil last sign-in, got %v", *op.LastSignInAt)
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockOperators(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByUsernameSQL)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		op, err := repo.GetByUsername(context.Background(), "missing")
		if err != nil || op != nil {
			t.Fatalf("expected (nil, nil), got (%+v, %v)", op, err)
		}
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newMockOperators(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByUsernameSQL)).
			WithArgs("eve").
			WillReturnError(errors.New("db query failed"))

		op, err := repo.GetByUsername(context.Background(), "eve")
		if err == nil || !strings.Contains(err.Error(), "select operator") {
			t.Fatalf("expected wrapped select error, got %v", err)
		}
		if op != nil {
			t.Fatalf("expected nil operator on error, got %+v", op)
		}
	})
}

func TestOperatorSQLite_TouchSignIn(t *testing.T) {
	at := time.Date(2025, 3, 2, 8, 0, 0, 0, time.FixedZone("CET", 3600))

	t.Run("updates row", func(t *testing.T) {
		repo, mock := newMockOperators(t)
		mock.ExpectExec(regexp.QuoteMeta(touchOperatorSignInSQL)).
			WithArgs("2025-03-02 07:00:00.000", 7).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.TouchSignIn(context.Background(), 7, at); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unknown operator", func(t *testing.T) {
		repo, mock := newMockOperators(t)
		mock.ExpectExec(regexp.QuoteMeta(touchOperatorSignInSQL)).
			WithArgs(sqlmock.AnyArg(), 99).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.TouchSignIn(context.Background(), 99, at)
		if !errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("expected sql.ErrNoRows, got %v", err)
		}
	})

	t.Run("exec error", func(t *testing.T) {
		repo, mock := newMockOperators(t)
		mock.ExpectExec(regexp.QuoteMeta(touchOperatorSignInSQL)).
			WithArgs(sqlmock.AnyArg(), 7).
			WillReturnError(errors.New("database is locked"))

		if err := repo.TouchSignIn(context.Background(), 7, at); err == nil {
			t.Fatalf("expected error")
		}
	})
}
