package cost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marcosilveira/rachaconta/currency"
)

type SplitType string

const (
	// SplitPercentage declares each debtor's share as an integer
	// percentage of the cost amount.
	SplitPercentage SplitType = "percentage"
	// SplitAmount declares each debtor's share as a concrete amount.
	SplitAmount SplitType = "amount"
)

// Split is one debtor's share declaration. A cost picks one split type and
// every debtor on it must use that type.
type Split struct {
	Type       SplitType
	Percentage int     // 0-100, SplitPercentage only
	Amount     float64 // decimal currency amount, SplitAmount only
}

type Debtor struct {
	AccountID uuid.UUID
	Split     Split
}

// Cost is a shared expense fronted by one account and split among debtors.
type Cost struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Amount      int64     `json:"amount"` // cents
	Description string    `json:"description,omitempty"`
	EventDate   time.Time `json:"event_date"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Debt is one debtor's resolved share of a cost, in cents. The debts of a
// cost always sum to the cost amount; New enforces that before anything
// gets persisted.
type Debt struct {
	ID              uuid.UUID `json:"id"`
	CostID          uuid.UUID `json:"cost_id"`
	DebtorAccountID uuid.UUID `json:"debtor_account_id"`
	Amount          int64     `json:"amount"` // cents
}

// WithDebtors is a cost joined with its debt rows, as returned by listings.
type WithDebtors struct {
	Cost
	Debtors []Debt `json:"debtors"`
}

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrNoDebtors     = errors.New("cost needs at least one debtor")
	ErrMixedSplits   = errors.New("debtors must all use the same split type")
	ErrInvalidShare  = errors.New("invalid debtor share")
	ErrSplitSum      = errors.New("debtor shares don't account for the cost amount")
	ErrNotFound      = errors.New("cost not found")
)

// New validates a cost and resolves its debtor splits into debt records.
// The returned cost and debts must be persisted as one atomic unit: a cost
// whose debts don't fully account for its amount corrupts every snapshot
// computed after it.
func New(accountID uuid.UUID, amount float64, description string, eventDate time.Time, tags []string, debtors []Debtor) (*Cost, []Debt, error) {
	amountCents := currency.ToCents(amount)
	if amountCents <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if len(debtors) == 0 {
		return nil, nil, ErrNoDebtors
	}

	splitType := debtors[0].Split.Type
	for _, d := range debtors {
		if d.Split.Type != splitType {
			return nil, nil, ErrMixedSplits
		}
	}

	var shares []int64
	var err error
	switch splitType {
	case SplitPercentage:
		shares, err = percentageShares(amountCents, debtors)
	case SplitAmount:
		shares, err = amountShares(amountCents, debtors)
	default:
		err = fmt.Errorf("%w: unknown split type %q", ErrInvalidShare, splitType)
	}
	if err != nil {
		return nil, nil, err
	}

	c := &Cost{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amountCents,
		Description: description,
		EventDate:   eventDate,
		Tags:        dedupeTags(tags),
		CreatedAt:   time.Now().UTC(),
	}

	debts := make([]Debt, 0, len(debtors))
	for i, d := range debtors {
		debts = append(debts, Debt{
			ID:              uuid.New(),
			CostID:          c.ID,
			DebtorAccountID: d.AccountID,
			Amount:          shares[i],
		})
	}

	return c, debts, nil
}

func percentageShares(amount int64, debtors []Debtor) ([]int64, error) {
	sum := 0
	for _, d := range debtors {
		if d.Split.Percentage < 0 || d.Split.Percentage > 100 {
			return nil, fmt.Errorf("%w: percentage %d is outside 0-100", ErrInvalidShare, d.Split.Percentage)
		}
		sum += d.Split.Percentage
	}
	if sum != 100 {
		return nil, fmt.Errorf("%w: sum of debtor percentages needs to be 100 but is %d", ErrSplitSum, sum)
	}

	shares := make([]int64, len(debtors))
	var total int64
	for i, d := range debtors {
		shares[i] = amount * int64(d.Split.Percentage) / 100
		total += shares[i]
	}

	// Integer division can leave a few cents unassigned; hand them out one
	// by one so the shares add up to the full amount. Debtors with a 0%
	// split owe nothing and never receive a leftover cent.
	for i := 0; total < amount; i++ {
		j := i % len(shares)
		if debtors[j].Split.Percentage == 0 {
			continue
		}
		shares[j]++
		total++
	}

	return shares, nil
}

func amountShares(amount int64, debtors []Debtor) ([]int64, error) {
	shares := make([]int64, len(debtors))
	var sum int64
	for i, d := range debtors {
		cents := currency.ToCents(d.Split.Amount)
		if cents <= 0 {
			return nil, fmt.Errorf("%w: given amount %v is non existent or negative which it can not be", ErrInvalidShare, d.Split.Amount)
		}
		shares[i] = cents
		sum += cents
	}
	if sum != amount {
		return nil, fmt.Errorf("%w: sum of all debtor amounts needs to be %d but is %d", ErrSplitSum, amount, sum)
	}

	return shares, nil
}

// dedupeTags applies set semantics, keeping first-seen order.
func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}

	return out
}

type Repository interface {
	Create(ctx context.Context, c Cost, debts []Debt) error
	Get(ctx context.Context, id uuid.UUID) (*Cost, error)
	GetAll(ctx context.Context, start, end time.Time) ([]WithDebtors, error)
	Delete(ctx context.Context, id uuid.UUID) error
	OwedToAccount(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error)
	OwedByAccount(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error)
	TagsForAccount(ctx context.Context, accountID uuid.UUID) ([]string, error)
}
