package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store authenticates and registers users.
type Store interface {
	// Login returns nil, nil when the credentials do not match an account.
	Login(ctx context.Context, email, password string) (*User, error)
	Signup(ctx context.Context, req SignupRequest) (*User, error)
}

var validate = validator.New()

// prepareSignup validates req and builds the user row with a bcrypt hash.
func prepareSignup(req SignupRequest, now time.Time) (*User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = RolePatient
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignup, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("accounts: hash password: %w", err)
	}
	return &User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: string(hash),
		CreatedAt:    now.UTC(),
	}, nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DemoAccount is a seeded login for demos.
type DemoAccount struct {
	ID       string
	Name     string
	Email    string
	Role     Role
	Password string
}

// DemoAccounts are the patient, doctor and admin logins of the demo build.
var DemoAccounts = []DemoAccount{
	{ID: "u1", Name: "John Doe", Email: "patient@demo.com", Role: RolePatient, Password: "123"},
	{ID: "d1", Name: "Dr. Sarah Smith", Email: "doctor@demo.com", Role: RoleDoctor, Password: "123"},
	{ID: "a1", Name: "Admin User", Email: "admin@demo.com", Role: RoleAdmin, Password: "123"},
}

// InMemoryStore keeps accounts in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*User
	now     func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byEmail: make(map[string]*User),
		now:     time.Now,
	}
}

// SeedDemo adds DemoAccounts, keeping their fixed ids.
func (s *InMemoryStore) SeedDemo() error {
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
		user.ID = demo.ID
		s.mu.Lock()
		if _, exists := s.byEmail[user.Email]; !exists {
			s.byEmail[user.Email] = user
		}
		s.mu.Unlock()
	}
	return nil
}

// Login checks credentials against the stored bcrypt hash.
func (s *InMemoryStore) Login(ctx context.Context, email, password string) (*User, error) {
	s.mu.RLock()
	user, ok := s.byEmail[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok || !passwordMatches(user.PasswordHash, password) {
		return nil, nil
	}
	out := *user
	return &out, nil
}

// Signup registers a new account.
func (s *InMemoryStore) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	user, err := prepareSignup(req, s.now())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return nil, ErrDuplicateAccount
	}
	s.byEmail[user.Email] = user
	out := *user
	return &out, nil
}

// IsDuplicate reports whether err means the account already exists.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateAccount)
}
