package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyName = errors.New("account name can't be empty")
	ErrNotFound  = errors.New("account not found")
	ErrInUse     = errors.New("account is still referenced by costs or payments")
)

// Account is a named party of the shared ledger. Accounts are the people
// costs get split between, not the users operating the API.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func New(name string) (Account, error) {
	if name == "" {
		return Account{}, ErrEmptyName
	}

	return Account{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type Repository interface {
	Create(ctx context.Context, acc Account) error
	Get(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAll(ctx context.Context) ([]Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
