package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount = errors.New("payment amount must be positive")
	ErrNotFound      = errors.New("payment not found")
)

// Payment is a direct settlement transfer from payer to lender,
// independent of any cost.
type Payment struct {
	ID              uuid.UUID `json:"id"`
	PayerAccountID  uuid.UUID `json:"payer_account_id"`
	LenderAccountID uuid.UUID `json:"lender_account_id"`
	Amount          int64     `json:"amount"` // cents
	EventDate       time.Time `json:"event_date"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func New(payerAccountID, lenderAccountID uuid.UUID, amount int64, eventDate time.Time, description string) (Payment, error) {
	if amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}

	return Payment{
		ID:              uuid.New(),
		PayerAccountID:  payerAccountID,
		LenderAccountID: lenderAccountID,
		Amount:          amount,
		EventDate:       eventDate,
		Description:     description,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

type Repository interface {
	Create(ctx context.Context, p Payment) error
	Get(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetAll(ctx context.Context) ([]Payment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MadeBy(ctx context.Context, accountID uuid.UUID) ([]Payment, error)
	ReceivedBy(ctx context.Context, accountID uuid.UUID) ([]Payment, error)
}
