package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is an API operator. Users authenticate and manage the ledger;
// accounts (the parties costs are split between) live in the account
// package and are unrelated.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Repository interface {
	Register(ctx context.Context, email, password string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	VerifyPassword(hashedPassword, password string) error
}
