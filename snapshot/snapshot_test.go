package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcosilveira/rachaconta/account"
	"github.com/marcosilveira/rachaconta/payment"
)

type stubAccounts struct {
	accounts []account.Account
	err      error
}

func (s *stubAccounts) GetAll(ctx context.Context) ([]account.Account, error) {
	return s.accounts, s.err
}

type stubDebts struct {
	// payer account -> counterparty -> cents
	owedTo map[uuid.UUID]map[uuid.UUID]int64
	owedBy map[uuid.UUID]map[uuid.UUID]int64
	err    error
}

func (s *stubDebts) OwedToAccount(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error) {
	return s.owedTo[accountID], s.err
}

func (s *stubDebts) OwedByAccount(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error) {
	return s.owedBy[accountID], s.err
}

type stubPayments struct {
	payments []payment.Payment
}

func (s *stubPayments) MadeBy(ctx context.Context, accountID uuid.UUID) ([]payment.Payment, error) {
	var out []payment.Payment
	for _, p := range s.payments {
		if p.PayerAccountID == accountID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPayments) ReceivedBy(ctx context.Context, accountID uuid.UUID) ([]payment.Payment, error) {
	var out []payment.Payment
	for _, p := range s.payments {
		if p.LenderAccountID == accountID {
			out = append(out, p)
		}
	}
	return out, nil
}

func transfer(payerID, lenderID uuid.UUID, cents int64) payment.Payment {
	p, _ := payment.New(payerID, lenderID, cents, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "")
	return p
}

func TestAccumulateSettlesShareAgainstPayment(t *testing.T) {
	payer := account.Account{ID: uuid.New(), Name: "Payer"}
	lender := account.Account{ID: uuid.New(), Name: "Lender"}
	accounts := []account.Account{lender, payer}

	// a cost of 4.12 left the payer with a share of 11 cents towards the
	// lender (the remaining 4.01 is the payer's own share and is ignored,
	// you can't owe yourself); the payer then paid 1.00 back
	owedBy := map[uuid.UUID]int64{lender.ID: 11}
	owedTo := map[uuid.UUID]int64{payer.ID: 401}
	made := []payment.Payment{transfer(payer.ID, lender.ID, 100)}

	results := accumulate(payer, accounts, made, nil, owedTo, owedBy)

	// 11 was needed, 100 was paid, so 89 is now owed to the payer instead
	require.Len(t, results, 1)
	assert.Equal(t, payer, results[0].PayerAccount)
	assert.Equal(t, lender, results[0].LenderAccount)
	assert.Equal(t, 0.89, results[0].Amount)
}

func TestComputeSnapshotSignsAreSymmetric(t *testing.T) {
	payer := account.Account{ID: uuid.New(), Name: "Payer"}
	lender := account.Account{ID: uuid.New(), Name: "Lender"}

	// the payer fronted a cost where the lender's share is 11 cents, and
	// separately transferred 1.00 to the lender
	debts := &stubDebts{
		owedTo: map[uuid.UUID]map[uuid.UUID]int64{
			payer.ID: {lender.ID: 11},
		},
		owedBy: map[uuid.UUID]map[uuid.UUID]int64{
			lender.ID: {payer.ID: 11},
		},
	}
	payments := &stubPayments{payments: []payment.Payment{transfer(payer.ID, lender.ID, 100)}}

	engine := NewEngine(&stubAccounts{accounts: []account.Account{payer, lender}}, debts, payments)
	results, err := engine.ComputeSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// from the payer's perspective the lender owes 11 + 100 cents, from
	// the lender's perspective the mirror image
	for _, r := range results {
		switch r.PayerAccount.ID {
		case payer.ID:
			assert.Equal(t, lender, r.LenderAccount)
			assert.Equal(t, 1.11, r.Amount)
		case lender.ID:
			assert.Equal(t, payer, r.LenderAccount)
			assert.Equal(t, -1.11, r.Amount)
		default:
			t.Fatalf("unexpected payer account %s", r.PayerAccount.ID)
		}
	}
}

func TestComputeSnapshotEmptyRegistry(t *testing.T) {
	engine := NewEngine(&stubAccounts{}, &stubDebts{}, &stubPayments{})

	results, err := engine.ComputeSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestComputeSnapshotNeverEmitsSelfPairs(t *testing.T) {
	solo := account.Account{ID: uuid.New(), Name: "Solo"}

	// the account fronted a cost and is its only debtor
	debts := &stubDebts{
		owedTo: map[uuid.UUID]map[uuid.UUID]int64{
			solo.ID: {solo.ID: 500},
		},
		owedBy: map[uuid.UUID]map[uuid.UUID]int64{
			solo.ID: {solo.ID: 500},
		},
	}

	engine := NewEngine(&stubAccounts{accounts: []account.Account{solo}}, debts, &stubPayments{})
	results, err := engine.ComputeSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestComputeSnapshotOmitsZeroNets(t *testing.T) {
	a := account.Account{ID: uuid.New(), Name: "A"}
	b := account.Account{ID: uuid.New(), Name: "B"}

	// b's 50 cent share is settled exactly by a 50 cent payment the other
	// way round, so neither direction emits an entry
	debts := &stubDebts{
		owedTo: map[uuid.UUID]map[uuid.UUID]int64{
			a.ID: {b.ID: 50},
		},
		owedBy: map[uuid.UUID]map[uuid.UUID]int64{
			b.ID: {a.ID: 50},
		},
	}
	payments := &stubPayments{payments: []payment.Payment{transfer(b.ID, a.ID, 50)}}

	engine := NewEngine(&stubAccounts{accounts: []account.Account{a, b}}, debts, payments)
	results, err := engine.ComputeSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestComputeSnapshotMultipleCounterparties(t *testing.T) {
	a := account.Account{ID: uuid.New(), Name: "A"}
	b := account.Account{ID: uuid.New(), Name: "B"}
	c := account.Account{ID: uuid.New(), Name: "C"}

	// a fronted a cost of 9.00 split 3.00 each; b already paid their part
	debts := &stubDebts{
		owedTo: map[uuid.UUID]map[uuid.UUID]int64{
			a.ID: {a.ID: 300, b.ID: 300, c.ID: 300},
		},
		owedBy: map[uuid.UUID]map[uuid.UUID]int64{
			a.ID: {a.ID: 300},
			b.ID: {a.ID: 300},
			c.ID: {a.ID: 300},
		},
	}
	payments := &stubPayments{payments: []payment.Payment{transfer(b.ID, a.ID, 300)}}

	engine := NewEngine(&stubAccounts{accounts: []account.Account{a, b, c}}, debts, payments)
	results, err := engine.ComputeSnapshot(context.Background())
	require.NoError(t, err)

	byPair := make(map[[2]uuid.UUID]float64)
	for _, r := range results {
		assert.NotEqual(t, r.PayerAccount.ID, r.LenderAccount.ID)
		byPair[[2]uuid.UUID{r.PayerAccount.ID, r.LenderAccount.ID}] = r.Amount
	}

	assert.Len(t, results, 2)
	assert.Equal(t, 3.00, byPair[[2]uuid.UUID{a.ID, c.ID}])
	assert.Equal(t, -3.00, byPair[[2]uuid.UUID{c.ID, a.ID}])
	// a and b are settled, no entry in either direction
	assert.NotContains(t, byPair, [2]uuid.UUID{a.ID, b.ID})
	assert.NotContains(t, byPair, [2]uuid.UUID{b.ID, a.ID})
}

func TestComputeSnapshotFailsAtomically(t *testing.T) {
	boom := errors.New("connection refused")

	engine := NewEngine(&stubAccounts{err: boom}, &stubDebts{}, &stubPayments{})
	_, err := engine.ComputeSnapshot(context.Background())
	assert.ErrorIs(t, err, boom)

	a := account.Account{ID: uuid.New(), Name: "A"}
	engine = NewEngine(&stubAccounts{accounts: []account.Account{a}}, &stubDebts{err: boom}, &stubPayments{})
	_, err = engine.ComputeSnapshot(context.Background())
	assert.ErrorIs(t, err, boom)
}
