package cost

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventDate = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func percentageDebtor(pct int) Debtor {
	return Debtor{
		AccountID: uuid.New(),
		Split:     Split{Type: SplitPercentage, Percentage: pct},
	}
}

func amountDebtor(amount float64) Debtor {
	return Debtor{
		AccountID: uuid.New(),
		Split:     Split{Type: SplitAmount, Amount: amount},
	}
}

func TestNewPercentageSplit(t *testing.T) {
	payer := uuid.New()
	debtors := []Debtor{percentageDebtor(60), percentageDebtor(40)}

	c, debts, err := New(payer, 100.00, "groceries", eventDate, nil, debtors)
	require.NoError(t, err)

	assert.Equal(t, payer, c.AccountID)
	assert.Equal(t, int64(10000), c.Amount)
	require.Len(t, debts, 2)
	assert.Equal(t, int64(6000), debts[0].Amount)
	assert.Equal(t, int64(4000), debts[1].Amount)
	for _, d := range debts {
		assert.Equal(t, c.ID, d.CostID)
	}
}

func TestNewPercentageSplitMustSumTo100(t *testing.T) {
	for _, pcts := range [][2]int{{60, 39}, {60, 41}} {
		debtors := []Debtor{percentageDebtor(pcts[0]), percentageDebtor(pcts[1])}
		_, _, err := New(uuid.New(), 100.00, "", eventDate, nil, debtors)
		assert.ErrorIs(t, err, ErrSplitSum)
		assert.ErrorContains(t, err, "needs to be 100")
	}
}

func TestNewPercentageSplitDistributesRemainder(t *testing.T) {
	// 1.01 doesn't divide evenly by 33/33/34; the leftover cent lands on
	// the first debtor and the shares still sum to the full amount.
	debtors := []Debtor{percentageDebtor(33), percentageDebtor(33), percentageDebtor(34)}

	c, debts, err := New(uuid.New(), 1.01, "", eventDate, nil, debtors)
	require.NoError(t, err)

	var sum int64
	for _, d := range debts {
		sum += d.Amount
	}
	assert.Equal(t, c.Amount, sum)
	assert.Equal(t, int64(34), debts[0].Amount)
	assert.Equal(t, int64(33), debts[1].Amount)
	assert.Equal(t, int64(34), debts[2].Amount)
}

func TestNewPercentageSplitNeverAssignsRemainderToZeroShares(t *testing.T) {
	// the first debtor carries 0% and must stay at zero even when a
	// leftover cent needs a home
	debtors := []Debtor{percentageDebtor(0), percentageDebtor(33), percentageDebtor(67)}

	c, debts, err := New(uuid.New(), 1.01, "", eventDate, nil, debtors)
	require.NoError(t, err)

	assert.Equal(t, int64(0), debts[0].Amount)
	assert.Equal(t, int64(34), debts[1].Amount)
	assert.Equal(t, int64(67), debts[2].Amount)

	var sum int64
	for _, d := range debts {
		sum += d.Amount
	}
	assert.Equal(t, c.Amount, sum)
}

func TestNewPercentageOutOfRange(t *testing.T) {
	debtors := []Debtor{percentageDebtor(110), percentageDebtor(-10)}
	_, _, err := New(uuid.New(), 10.00, "", eventDate, nil, debtors)
	assert.ErrorIs(t, err, ErrInvalidShare)
}

func TestNewAmountSplit(t *testing.T) {
	debtors := []Debtor{amountDebtor(4.01), amountDebtor(0.11)}

	c, debts, err := New(uuid.New(), 4.12, "dinner", eventDate, nil, debtors)
	require.NoError(t, err)

	assert.Equal(t, int64(412), c.Amount)
	require.Len(t, debts, 2)
	assert.Equal(t, int64(401), debts[0].Amount)
	assert.Equal(t, int64(11), debts[1].Amount)
}

func TestNewAmountSplitMustSumToTotal(t *testing.T) {
	debtors := []Debtor{amountDebtor(4.00), amountDebtor(0.11)}

	_, _, err := New(uuid.New(), 4.12, "", eventDate, nil, debtors)
	assert.ErrorIs(t, err, ErrSplitSum)
	assert.ErrorContains(t, err, "needs to be 412 but is 411")
}

func TestNewAmountSplitRejectsNonPositiveShare(t *testing.T) {
	debtors := []Debtor{amountDebtor(4.12), amountDebtor(-0.50)}

	_, _, err := New(uuid.New(), 3.62, "", eventDate, nil, debtors)
	assert.ErrorIs(t, err, ErrInvalidShare)
}

func TestNewRejectsMixedSplitTypes(t *testing.T) {
	debtors := []Debtor{percentageDebtor(50), amountDebtor(5.00)}

	_, _, err := New(uuid.New(), 10.00, "", eventDate, nil, debtors)
	assert.ErrorIs(t, err, ErrMixedSplits)
}

func TestNewRejectsNonPositiveAmount(t *testing.T) {
	debtors := []Debtor{percentageDebtor(100)}

	_, _, err := New(uuid.New(), 0, "", eventDate, nil, debtors)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = New(uuid.New(), -4.12, "", eventDate, nil, debtors)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewRejectsNoDebtors(t *testing.T) {
	_, _, err := New(uuid.New(), 10.00, "", eventDate, nil, nil)
	assert.ErrorIs(t, err, ErrNoDebtors)
}

func TestNewDeduplicatesTags(t *testing.T) {
	debtors := []Debtor{percentageDebtor(100)}

	c, _, err := New(uuid.New(), 10.00, "", eventDate, []string{"a", "b", "a"}, debtors)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, c.Tags)
}

func TestNewDropsEmptyTags(t *testing.T) {
	debtors := []Debtor{percentageDebtor(100)}

	c, _, err := New(uuid.New(), 10.00, "", eventDate, []string{"", "b"}, debtors)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, c.Tags)
}
