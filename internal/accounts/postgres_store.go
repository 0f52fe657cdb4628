package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore keeps accounts in the accounts table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("accounts: sql db required")
	}
	return &PostgresStore{db: db, now: time.Now}
}

// Login returns the account for matching credentials, or nil.
func (s *PostgresStore) Login(ctx context.Context, email, password string) (*User, error) {
	var u User
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, password_hash, created_at
		FROM accounts WHERE email = $1`, normalizeEmail(email)).Scan(
		&u.ID, &u.Name, &u.Email, &role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: load account: %w", err)
	}
	if !passwordMatches(u.PasswordHash, password) {
		return nil, nil
	}
	u.Role = Role(role)
	return &u, nil
}

// Signup inserts a new account; a taken email yields ErrDuplicateAccount.
func (s *PostgresStore) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	user, err := prepareSignup(req, s.now())
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Email, string(user.Role), user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("accounts: insert account: %w", err)
	}
	return user, nil
}

// SeedDemo inserts DemoAccounts, skipping emails that already exist.
func (s *PostgresStore) SeedDemo(ctx context.Context) error {
	for _, demo := range DemoAccounts {
		user, err := prepareSignup(SignupRequest{
			Name:     demo.Name,
			Email:    demo.Email,
			Password: demo.Password,
			Role:     demo.Role,
		}, s.now())
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO accounts (id, name, email, role, password_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (email) DO NOTHING`,
			demo.ID, user.Name, user.Email, string(user.Role), user.PasswordHash, user.CreatedAt); err != nil {
			return fmt.Errorf("accounts: seed %s: %w", demo.Email, err)
		}
	}
	return nil
}
