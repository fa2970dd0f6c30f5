package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plan(amounts ...int64) []Installment {
	out := make([]Installment, len(amounts))
	for i, a := range amounts {
		out[i] = Installment{ID: uuid.New(), Amount: a, Order: i + 1, Status: InstallmentPending}
	}
	return out
}

func statuses(in []Installment) []InstallmentStatus {
	out := make([]InstallmentStatus, len(in))
	for i, x := range in {
		out[i] = x.Status
	}
	return out
}

func TestAllocateInstallments(t *testing.T) {
	t.Run("partial cumulative covers first only", func(t *testing.T) {
		got := AllocateInstallments(4000, plan(3000, 3000, 3000))
		assert.Equal(t, []InstallmentStatus{InstallmentPaid, InstallmentPending, InstallmentPending}, statuses(got))
	})

	t.Run("full payment marks all paid", func(t *testing.T) {
		got := AllocateInstallments(9000, plan(3000, 3000, 3000))
		assert.Equal(t, []InstallmentStatus{InstallmentPaid, InstallmentPaid, InstallmentPaid}, statuses(got))
	})

	t.Run("stops at first uncovered even if later is smaller", func(t *testing.T) {
		got := AllocateInstallments(5500, plan(3000, 5000, 100))
		assert.Equal(t, []InstallmentStatus{InstallmentPaid, InstallmentPending, InstallmentPending}, statuses(got))
	})

	t.Run("sorts by order and leaves input untouched", func(t *testing.T) {
		in := plan(1000, 2000)
		in[0], in[1] = in[1], in[0]
		got := AllocateInstallments(1000, in)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Order)
		assert.Equal(t, InstallmentPaid, got[0].Status)
		assert.Equal(t, InstallmentPending, got[1].Status)
		assert.Equal(t, InstallmentPending, in[0].Status)
	})

	t.Run("recomputation downgrades previously paid installments", func(t *testing.T) {
		in := plan(3000, 3000)
		in[0].Status, in[1].Status = InstallmentPaid, InstallmentPaid
		got := AllocateInstallments(3000, in)
		assert.Equal(t, []InstallmentStatus{InstallmentPaid, InstallmentPending}, statuses(got))
	})

	t.Run("prefix property holds for every cumulative amount", func(t *testing.T) {
		p := plan(700, 1300, 200, 2500)
		for paid := int64(0); paid <= 5000; paid += 50 {
			got := AllocateInstallments(paid, p)
			seenPending := false
			for _, in := range got {
				if in.Status == InstallmentPending {
					seenPending = true
				} else if seenPending {
					t.Fatalf("paid=%d: installment %d PAID after a PENDING one", paid, in.Order)
				}
			}
		}
	})
}

func TestStudentFeeRecompute(t *testing.T) {
	f := StudentFee{TotalAmount: 9000, Discount: 500}
	f.Recompute()
	assert.Equal(t, int64(8500), f.PendingAmount)
	assert.Equal(t, FeePending, f.Status)

	f.PaidAmount = 4000
	f.Recompute()
	assert.Equal(t, int64(4500), f.PendingAmount)
	assert.Equal(t, FeePartial, f.Status)

	f.PaidAmount = 8500
	f.Recompute()
	assert.Equal(t, int64(0), f.PendingAmount)
	assert.Equal(t, FeePaid, f.Status)

	waived := StudentFee{TotalAmount: 1000, Discount: 1000}
	waived.Recompute()
	assert.Equal(t, FeePaid, waived.Status)
}

func TestSummarizeFees(t *testing.T) {
	paid := StudentFee{TotalAmount: 100, PaidAmount: 100, PendingAmount: 0}
	open := StudentFee{TotalAmount: 100, PaidAmount: 0, PendingAmount: 100}
	part := StudentFee{TotalAmount: 100, PaidAmount: 40, PendingAmount: 60}

	assert.Equal(t, FeePaid, SummarizeFees([]StudentFee{paid, paid}).Status)
	assert.Equal(t, FeePending, SummarizeFees([]StudentFee{open, open}).Status)
	assert.Equal(t, FeePartial, SummarizeFees([]StudentFee{paid, open}).Status)
	assert.Equal(t, FeePartial, SummarizeFees([]StudentFee{part}).Status)

	sum := SummarizeFees([]StudentFee{paid, open, part})
	assert.Equal(t, int64(300), sum.TotalAmount)
	assert.Equal(t, int64(140), sum.PaidAmount)
	assert.Equal(t, int64(160), sum.PendingAmount)
}

func TestNormalSide(t *testing.T) {
	assert.Equal(t, SideDebit, CategoryAsset.NormalSide())
	assert.Equal(t, SideDebit, CategoryExpense.NormalSide())
	assert.Equal(t, SideCredit, CategoryLiability.NormalSide())
	assert.Equal(t, SideCredit, CategoryEquity.NormalSide())
	assert.Equal(t, SideCredit, CategoryIncome.NormalSide())
	assert.False(t, GroupCategory("REVENUE").Valid())
}
