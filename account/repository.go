package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, acc Account) error {
	query := `INSERT INTO accounts (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, acc.ID, acc.Name, acc.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}

	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `SELECT id, name, created_at FROM accounts WHERE id = $1`

	var acc Account
	err := r.db.QueryRowContext(ctx, query, id).Scan(&acc.ID, &acc.Name, &acc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}

	return &acc, nil
}

func (r *repository) GetAll(ctx context.Context) ([]Account, error) {
	query := `SELECT id, name, created_at FROM accounts ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		var acc Account
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

// Delete removes an account. Accounts referenced by costs, debts or
// payments are protected by foreign keys and can't be deleted.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return ErrInUse
		}
		return fmt.Errorf("deleting account: %w", err)
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
