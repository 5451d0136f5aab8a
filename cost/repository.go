package cost

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

// Create persists a cost and its debt rows in a single transaction. A
// partial write would leave a cost whose debts don't sum to its amount, so
// everything rolls back on the first failed insert.
func (r *repository) Create(ctx context.Context, c Cost, debts []Debt) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO costs (id, account_id, amount, description, event_date, tags, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.ExecContext(
		ctx,
		query,
		c.ID,
		c.AccountID,
		c.Amount,
		c.Description,
		c.EventDate,
		pq.Array(c.Tags),
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting cost: %w", err)
	}

	for _, debt := range debts {
		query = `INSERT INTO debts (id, cost_id, debtor_account_id, amount) VALUES ($1, $2, $3, $4)`
		_, err = tx.ExecContext(ctx, query, debt.ID, debt.CostID, debt.DebtorAccountID, debt.Amount)
		if err != nil {
			return fmt.Errorf("inserting debt: %w", err)
		}
	}

	return tx.Commit()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Cost, error) {
	query := `SELECT id, account_id, amount, description, event_date, tags, created_at FROM costs WHERE id = $1`

	var c Cost
	var description sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.AccountID,
		&c.Amount,
		&description,
		&c.EventDate,
		pq.Array(&c.Tags),
		&c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying cost: %w", err)
	}
	if description.Valid {
		c.Description = description.String
	}

	return &c, nil
}

// GetAll returns every cost inside the event date range joined with its
// debt rows, grouped per cost.
func (r *repository) GetAll(ctx context.Context, start, end time.Time) ([]WithDebtors, error) {
	query := `SELECT c.id, c.account_id, c.amount, c.description, c.event_date, c.tags, c.created_at,
                     d.id, d.debtor_account_id, d.amount
              FROM costs c
                  JOIN debts d ON d.cost_id = c.id
              WHERE c.event_date BETWEEN $1 AND $2
              ORDER BY c.event_date ASC, c.id`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying costs: %w", err)
	}
	defer rows.Close()

	costs := make([]WithDebtors, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var c Cost
		var debt Debt
		var description sql.NullString
		err := rows.Scan(
			&c.ID,
			&c.AccountID,
			&c.Amount,
			&description,
			&c.EventDate,
			pq.Array(&c.Tags),
			&c.CreatedAt,
			&debt.ID,
			&debt.DebtorAccountID,
			&debt.Amount,
		)
		if err != nil {
			return nil, err
		}
		if description.Valid {
			c.Description = description.String
		}
		debt.CostID = c.ID

		// the join yields one row per debt, group them per cost
		i, ok := index[c.ID]
		if !ok {
			costs = append(costs, WithDebtors{Cost: c})
			i = len(costs) - 1
			index[c.ID] = i
		}
		costs[i].Debtors = append(costs[i].Debtors, debt)
	}

	return costs, rows.Err()
}

// Delete removes a cost; its debt rows go with it via cascade.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM costs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting cost: %w", err)
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

// OwedToAccount sums, per debtor, the shares of costs the given account
// fronted.
func (r *repository) OwedToAccount(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error) {
	query := `SELECT d.debtor_account_id, SUM(d.amount)
              FROM debts d
                  JOIN costs c ON c.id = d.cost_id
              WHERE c.account_id = $1
              GROUP BY d.debtor_account_id`

	return r.sumByAccount(ctx, query, accountID)
}

// OwedByAccount sums, per fronting account, the given account's shares of
// costs others fronted.
func (r *repository) OwedByAccount(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error) {
	query := `SELECT c.account_id, SUM(d.amount)
              FROM debts d
                  JOIN costs c ON c.id = d.cost_id
              WHERE d.debtor_account_id = $1
              GROUP BY c.account_id`

	return r.sumByAccount(ctx, query, accountID)
}

func (r *repository) sumByAccount(ctx context.Context, query string, accountID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying debt sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[uuid.UUID]int64)
	for rows.Next() {
		var id uuid.UUID
		var cents int64
		if err := rows.Scan(&id, &cents); err != nil {
			return nil, err
		}
		sums[id] = cents
	}

	return sums, rows.Err()
}

// TagsForAccount lists the distinct tags used on costs the account fronted.
func (r *repository) TagsForAccount(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	query := `SELECT DISTINCT unnest(tags) FROM costs WHERE account_id = $1 ORDER BY 1`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}
