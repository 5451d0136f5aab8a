package payment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p Payment) error {
	query := `INSERT INTO payments (id, payer_account_id, lender_account_id, amount, event_date, description, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		p.ID,
		p.PayerAccountID,
		p.LenderAccountID,
		p.Amount,
		p.EventDate,
		p.Description,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}

	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	query := `SELECT id, payer_account_id, lender_account_id, amount, event_date, description, created_at FROM payments WHERE id = $1`

	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying payment: %w", err)
	}

	return &p, nil
}

func (r *repository) GetAll(ctx context.Context) ([]Payment, error) {
	query := `SELECT id, payer_account_id, lender_account_id, amount, event_date, description, created_at FROM payments ORDER BY event_date ASC`
	return r.queryPayments(ctx, query)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting payment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// MadeBy lists payments where the account is the payer.
func (r *repository) MadeBy(ctx context.Context, accountID uuid.UUID) ([]Payment, error) {
	query := `SELECT id, payer_account_id, lender_account_id, amount, event_date, description, created_at FROM payments WHERE payer_account_id = $1`
	return r.queryPayments(ctx, query, accountID)
}

// ReceivedBy lists payments where the account is the lender.
func (r *repository) ReceivedBy(ctx context.Context, accountID uuid.UUID) ([]Payment, error) {
	query := `SELECT id, payer_account_id, lender_account_id, amount, event_date, description, created_at FROM payments WHERE lender_account_id = $1`
	return r.queryPayments(ctx, query, accountID)
}

func (r *repository) queryPayments(ctx context.Context, query string, args ...any) ([]Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (Payment, error) {
	var p Payment
	var description sql.NullString
	err := row.Scan(
		&p.ID,
		&p.PayerAccountID,
		&p.LenderAccountID,
		&p.Amount,
		&p.EventDate,
		&description,
		&p.CreatedAt,
	)
	if err != nil {
		return Payment{}, err
	}
	if description.Valid {
		p.Description = description.String
	}

	return p, nil
}
