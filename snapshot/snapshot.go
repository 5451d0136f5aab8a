// Package snapshot computes the net debt matrix between every pair of
// accounts from all recorded costs and payments.
package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/marcosilveira/rachaconta/account"
	"github.com/marcosilveira/rachaconta/currency"
	"github.com/marcosilveira/rachaconta/payment"
)

// CalculatedDebt is the net balance between one ordered account pair.
// Positive means the lender account owes the payer account, negative means
// the payer account still owes the lender.
type CalculatedDebt struct {
	PayerAccount  account.Account `json:"payer_account"`
	LenderAccount account.Account `json:"lender_account"`
	Amount        float64         `json:"amount"`
}

type AccountSource interface {
	GetAll(ctx context.Context) ([]account.Account, error)
}

type DebtSource interface {
	OwedToAccount(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error)
	OwedByAccount(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error)
}

type PaymentSource interface {
	MadeBy(ctx context.Context, accountID uuid.UUID) ([]payment.Payment, error)
	ReceivedBy(ctx context.Context, accountID uuid.UUID) ([]payment.Payment, error)
}

// Engine nets cost shares and payments into pairwise balances. It only
// reads from its sources and returns a fresh result, so concurrent calls
// are safe.
type Engine struct {
	accounts AccountSource
	debts    DebtSource
	payments PaymentSource
}

func NewEngine(accounts AccountSource, debts DebtSource, payments PaymentSource) *Engine {
	return &Engine{
		accounts: accounts,
		debts:    debts,
		payments: payments,
	}
}

// ComputeSnapshot recomputes every net balance from scratch. There is no
// cached state: the write volume of a shared household ledger doesn't
// justify incremental updates. Any source failure aborts the whole
// snapshot.
func (e *Engine) ComputeSnapshot(ctx context.Context) ([]CalculatedDebt, error) {
	accounts, err := e.accounts.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}

	all := make([]CalculatedDebt, 0)
	for _, acc := range accounts {
		made, err := e.payments.MadeBy(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching payments made by account %s: %w", acc.ID, err)
		}
		received, err := e.payments.ReceivedBy(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching payments received by account %s: %w", acc.ID, err)
		}
		owedTo, err := e.debts.OwedToAccount(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching debts owed to account %s: %w", acc.ID, err)
		}
		owedBy, err := e.debts.OwedByAccount(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching debts owed by account %s: %w", acc.ID, err)
		}

		all = append(all, accumulate(acc, accounts, made, received, owedTo, owedBy)...)
	}

	return all, nil
}

// accumulate nets the four signed contributions for one payer account into
// one entry per counterparty. Everything stays in cents until the final
// conversion; converting earlier would stack floating point error across
// contributions.
func accumulate(payer account.Account, accounts []account.Account, made, received []payment.Payment, owedTo, owedBy map[uuid.UUID]int64) []CalculatedDebt {
	net := make(map[uuid.UUID]int64)

	// payments the payer made settle debt towards the lender
	for _, p := range made {
		net[p.LenderAccountID] += p.Amount
	}

	// payments the payer received settle debt owed to them
	for _, p := range received {
		net[p.PayerAccountID] -= p.Amount
	}

	// counterparty shares of costs the payer fronted
	for id, cents := range owedTo {
		net[id] += cents
	}

	// the payer's shares of costs a counterparty fronted
	for id, cents := range owedBy {
		net[id] -= cents
	}

	byID := make(map[uuid.UUID]account.Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}

	results := make([]CalculatedDebt, 0, len(net))
	for id, cents := range net {
		// an account's own share of its own costs is not a debt
		if id == payer.ID {
			continue
		}
		// contributions that cancel out exactly carry no information
		if cents == 0 {
			continue
		}
		lender, ok := byID[id]
		if !ok {
			continue
		}
		results = append(results, CalculatedDebt{
			PayerAccount:  payer,
			LenderAccount: lender,
			Amount:        currency.ToDecimal(cents),
		})
	}

	// map iteration order is random, keep the output stable
	sort.Slice(results, func(i, j int) bool {
		return results[i].LenderAccount.ID.String() < results[j].LenderAccount.ID.String()
	})

	return results
}
