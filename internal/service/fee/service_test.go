package fee_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/feeledger/internal/dictionary"
	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/meta"
	"github.com/tinoosan/feeledger/internal/roster"
	"github.com/tinoosan/feeledger/internal/service/chart"
	"github.com/tinoosan/feeledger/internal/service/fee"
	"github.com/tinoosan/feeledger/internal/service/voucher"
	"github.com/tinoosan/feeledger/internal/storage/memory"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []roster.PaymentNotice
	err     error
}

func (n *recordingNotifier) NotifyPayment(_ context.Context, p roster.PaymentNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, p)
	return n.err
}

type fixture struct {
	store    *memory.Store
	svc      fee.Service
	vouchers voucher.Service
	notifier *recordingNotifier
	posting  ledger.PostingMap
	grade    uuid.UUID
	class    uuid.UUID
	students []ledger.Student
	category ledger.FeeCategory
}

func newFixture(t *testing.T, withPosting bool) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	ch := chart.New(store, store)
	require.NoError(t, ch.EnsureDefaultChart(ctx))

	var pm ledger.PostingMap
	if withPosting {
		var err error
		pm, _, err = ch.ResolvePostingMap(ctx, chart.PostingCodes{
			Cash:      dictionary.CodeCash,
			Bank:      dictionary.CodeBank,
			FeeIncome: dictionary.CodeStudentFees,
		})
		require.NoError(t, err)
	}

	f := fixture{store: store, notifier: &recordingNotifier{}, posting: pm, grade: uuid.New(), class: uuid.New()}
	for _, name := range []string{"Asha", "Bilal", "Chen"} {
		st := ledger.Student{ID: uuid.New(), Name: name, ClassID: f.class, GradeID: f.grade}
		require.NoError(t, store.SeedStudent(ctx, st))
		f.students = append(f.students, st)
	}
	f.category = ledger.FeeCategory{ID: uuid.New(), Name: "Tuition", BaseAmount: 9000}
	require.NoError(t, store.SeedFeeCategory(ctx, f.category))

	f.vouchers = voucher.New(store, store, nil)
	f.svc = fee.New(fee.Deps{
		Repo:       store,
		Writer:     store,
		Vouchers:   f.vouchers,
		Students:   store,
		Categories: store,
		Notifier:   f.notifier,
		Posting:    pm,
	})
	return f
}

func plan3000x3() []fee.InstallmentInput {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []fee.InstallmentInput{
		{Amount: 3000, Order: 1, DueDate: due},
		{Amount: 3000, Order: 2, DueDate: due.AddDate(0, 1, 0)},
		{Amount: 3000, Order: 3, DueDate: due.AddDate(0, 2, 0)},
	}
}

func (f fixture) assign(t *testing.T) fee.Detail {
	t.Helper()
	d, err := f.svc.AssignFee(context.Background(), fee.AssignInput{
		StudentID:    f.students[0].ID,
		CategoryID:   f.category.ID,
		TotalAmount:  9000,
		Installments: plan3000x3(),
	})
	require.NoError(t, err)
	return d
}

func statuses(insts []ledger.Installment) []ledger.InstallmentStatus {
	out := make([]ledger.InstallmentStatus, len(insts))
	for i, in := range insts {
		out[i] = in.Status
	}
	return out
}

func TestRecordPayment_InstallmentWaterfall(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)
	assert.Equal(t, ledger.FeePending, d.Fee.Status)

	rc, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 4000, Mode: ledger.ModeCash})
	require.NoError(t, err)
	assert.Equal(t, "RCPT-000001", rc.ReceiptNumber)
	assert.Equal(t, int64(4000), rc.Fee.PaidAmount)
	assert.Equal(t, int64(5000), rc.Fee.PendingAmount)
	assert.Equal(t, ledger.FeePartial, rc.Fee.Status)
	assert.Equal(t, []ledger.InstallmentStatus{ledger.InstallmentPaid, ledger.InstallmentPending, ledger.InstallmentPending}, statuses(rc.Installments))

	rc, err = f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 5000, Mode: ledger.ModeUPI})
	require.NoError(t, err)
	assert.Equal(t, int64(9000), rc.Fee.PaidAmount)
	assert.Equal(t, int64(0), rc.Fee.PendingAmount)
	assert.Equal(t, ledger.FeePaid, rc.Fee.Status)
	assert.Equal(t, []ledger.InstallmentStatus{ledger.InstallmentPaid, ledger.InstallmentPaid, ledger.InstallmentPaid}, statuses(rc.Installments))

	got, err := f.svc.GetStudentFee(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.Equal(t, rc.Fee, got.Fee)
	assert.Len(t, got.Payments, 2)
	assert.Equal(t, statuses(rc.Installments), statuses(got.Installments))
}

func TestRecordPayment_PostsFeeVoucher(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)

	rc, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 1500, Mode: ledger.ModeCash})
	require.NoError(t, err)
	require.NotNil(t, rc.Voucher)
	assert.Empty(t, rc.PostingError)
	v := rc.Voucher
	assert.Equal(t, ledger.VoucherReceipt, v.Type)
	assert.Equal(t, rc.ReceiptNumber, v.Reference)
	assert.Equal(t, meta.SourceFee, v.Metadata.Source())
	require.Len(t, v.Entries, 2)
	assert.Equal(t, f.posting.Cash, v.Entries[0].LedgerID)
	assert.Equal(t, ledger.SideDebit, v.Entries[0].Side)
	assert.Equal(t, f.posting.FeeIncome, v.Entries[1].LedgerID)
	assert.Equal(t, ledger.SideCredit, v.Entries[1].Side)

	rc, err = f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 500, Mode: ledger.ModeCheque})
	require.NoError(t, err)
	require.NotNil(t, rc.Voucher)
	assert.Equal(t, f.posting.Bank, rc.Voucher.Entries[0].LedgerID, "non-cash modes debit the bank")

	require.Len(t, f.notifier.notices, 2)
	assert.Equal(t, int64(7000), f.notifier.notices[1].PendingAmount)
}

func TestRecordPayment_PostingSkippedWithoutAccounts(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	d := f.assign(t)

	rc, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 1000, Mode: ledger.ModeCash})
	require.NoError(t, err)
	assert.True(t, rc.PostingSkipped)
	assert.Nil(t, rc.Voucher)
	assert.Equal(t, int64(1000), rc.Fee.PaidAmount)
}

func TestRecordPayment_PostingFailureKeepsPayment(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)
	f.store.FailNext(memory.OpInsertVoucher, errors.New("voucher store down"))
	f.notifier.err = errors.New("sms gateway down")

	rc, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 1000, Mode: ledger.ModeCash})
	require.NoError(t, err)
	assert.Contains(t, rc.PostingError, "voucher store down")
	assert.Equal(t, int64(1000), rc.Fee.PaidAmount)

	res, err := f.svc.Reconcile(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.Len(t, res.VouchersPosted, 1)
	assert.False(t, res.FeeCorrected)

	res, err = f.svc.Reconcile(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed(), "second reconcile is a no-op")
}

func TestRecordPayment_Rejections(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)

	cases := []struct {
		name string
		in   fee.PaymentInput
		want error
	}{
		{"zero amount", fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 0, Mode: ledger.ModeCash}, errs.ErrInvalid},
		{"bad mode", fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 10, Mode: "BARTER"}, errs.ErrInvalid},
		{"overpayment", fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 9001, Mode: ledger.ModeCash}, errs.ErrInvalid},
		{"unknown fee", fee.PaymentInput{StudentFeeID: uuid.New(), Amount: 10, Mode: ledger.ModeCash}, errs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RecordPayment(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 9000, Mode: ledger.ModeCash})
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 1, Mode: ledger.ModeCash})
	assert.ErrorIs(t, err, errs.ErrInvalid, "settled fee accepts no more payments")
}

func TestRecordPayment_ConcurrentPaymentsSerialize(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 1000, Mode: ledger.ModeCash})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.svc.GetStudentFee(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), got.Fee.PaidAmount)
	assert.Equal(t, int64(0), got.Fee.PendingAmount)
	assert.Equal(t, ledger.FeePaid, got.Fee.Status)
	assert.Len(t, got.Payments, 9)
}

func TestRecordPayment_FeeUpdateFailureRemovesPayment(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)
	f.store.FailNext(memory.OpUpdateStudentFee, errors.New("write timeout"))

	_, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 4000, Mode: ledger.ModeCash})
	require.ErrorIs(t, err, errs.ErrPersistence)

	got, err := f.svc.GetStudentFee(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Payments)
	assert.Equal(t, int64(0), got.Fee.PaidAmount)
	assert.Equal(t, int64(9000), got.Fee.PendingAmount)
}

func TestRecordPayment_InstallmentFailureRestoresFee(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)
	f.store.FailNext(memory.OpUpdateInstallments, errors.New("write timeout"))

	_, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 4000, Mode: ledger.ModeCash})
	require.ErrorIs(t, err, errs.ErrPersistence)

	got, err := f.svc.GetStudentFee(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Payments)
	assert.Equal(t, int64(0), got.Fee.PaidAmount)
	assert.Equal(t, ledger.FeePending, got.Fee.Status)
	assert.Equal(t, []ledger.InstallmentStatus{ledger.InstallmentPending, ledger.InstallmentPending, ledger.InstallmentPending}, statuses(got.Installments))

	vs, err := f.vouchers.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, vs, "no voucher for a rolled back payment")

	rc, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 4000, Mode: ledger.ModeCash})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), rc.Fee.PaidAmount)
}

func TestRecordPayment_FailedCompensationIsInconsistent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)
	f.store.FailNext(memory.OpUpdateStudentFee, errors.New("write timeout"))
	f.store.FailNext(memory.OpDeletePayment, errors.New("connection reset"))

	_, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 4000, Mode: ledger.ModeCash})
	var ise *errs.InconsistentStateError
	require.ErrorAs(t, err, &ise)
	assert.Contains(t, ise.Op, "RCPT-000001")

	// The orphan payment is repaired from the payment log.
	res, err := f.svc.Reconcile(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.True(t, res.FeeCorrected)
	assert.Equal(t, int64(4000), res.PaidAfter)
	assert.Equal(t, 1, res.InstallmentsCorrected)
	assert.Len(t, res.VouchersPosted, 1)

	got, err := f.svc.GetStudentFee(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Fee.PendingAmount)
	assert.Equal(t, ledger.FeePartial, got.Fee.Status)
}

func TestAssignFee(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	st := f.students[1]

	t.Run("defaults to category base amount", func(t *testing.T) {
		d, err := f.svc.AssignFee(ctx, fee.AssignInput{StudentID: st.ID, CategoryID: f.category.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(9000), d.Fee.TotalAmount)
		assert.Equal(t, int64(9000), d.Fee.PendingAmount)
		assert.Empty(t, d.Installments)
	})
	t.Run("second assignment of the same category conflicts", func(t *testing.T) {
		_, err := f.svc.AssignFee(ctx, fee.AssignInput{StudentID: st.ID, CategoryID: f.category.ID})
		assert.ErrorIs(t, err, errs.ErrConflict)
	})

	other := f.students[2]
	cases := []struct {
		name string
		in   fee.AssignInput
	}{
		{"plan sum mismatch", fee.AssignInput{TotalAmount: 9000, Installments: []fee.InstallmentInput{{Amount: 3000, Order: 1}, {Amount: 3000, Order: 2}}}},
		{"duplicate order", fee.AssignInput{TotalAmount: 6000, Installments: []fee.InstallmentInput{{Amount: 3000, Order: 1}, {Amount: 3000, Order: 1}}}},
		{"zero order", fee.AssignInput{TotalAmount: 3000, Installments: []fee.InstallmentInput{{Amount: 3000, Order: 0}}}},
		{"discount above total", fee.AssignInput{TotalAmount: 3000, Discount: 3001}},
		{"negative discount", fee.AssignInput{TotalAmount: 3000, Discount: -1}},
		{"plan ignores discount", fee.AssignInput{TotalAmount: 9000, Discount: 1000, Installments: plan3000x3()}},
		{"plan total overflows", fee.AssignInput{TotalAmount: 9000, Installments: []fee.InstallmentInput{{Amount: math.MaxInt64, Order: 1}, {Amount: math.MaxInt64, Order: 2}, {Amount: 9002, Order: 3}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			in.StudentID, in.CategoryID = other.ID, f.category.ID
			_, err := f.svc.AssignFee(ctx, in)
			assert.ErrorIs(t, err, errs.ErrInvalid)
		})
	}

	t.Run("full discount is settled", func(t *testing.T) {
		d, err := f.svc.AssignFee(ctx, fee.AssignInput{StudentID: other.ID, CategoryID: f.category.ID, TotalAmount: 5000, Discount: 5000})
		require.NoError(t, err)
		assert.Equal(t, ledger.FeePaid, d.Fee.Status)
		assert.Equal(t, int64(0), d.Fee.PendingAmount)
	})
	t.Run("unknown student", func(t *testing.T) {
		_, err := f.svc.AssignFee(ctx, fee.AssignInput{StudentID: uuid.New(), CategoryID: f.category.ID})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestAssignFee_InstallmentFailureRemovesFee(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.store.FailNext(memory.OpInsertInstallments, errors.New("write timeout"))

	_, err := f.svc.AssignFee(ctx, fee.AssignInput{StudentID: f.students[0].ID, CategoryID: f.category.ID, TotalAmount: 9000, Installments: plan3000x3()})
	require.ErrorIs(t, err, errs.ErrPersistence)

	fees, err := f.svc.ListStudentFees(ctx, f.students[0].ID)
	require.NoError(t, err)
	assert.Empty(t, fees)

	f.assign(t)
}

func TestBulkAssignFee_RerunSkipsExisting(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	in := fee.BulkAssignInput{GradeID: f.grade, CategoryID: f.category.ID, TotalAmount: 9000, Installments: plan3000x3()}

	f.store.FailNext(memory.OpInsertInstallments, errors.New("write timeout"))
	res, err := f.svc.BulkAssignFee(ctx, in)
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, errs.ErrPersistence)

	res, err = f.svc.BulkAssignFee(ctx, in)
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Len(t, res.Skipped, 2)
	assert.Empty(t, res.Failed)

	for _, st := range f.students {
		fees, err := f.svc.ListStudentFees(ctx, st.ID)
		require.NoError(t, err)
		require.Len(t, fees, 1)
		d, err := f.svc.GetStudentFee(ctx, fees[0].ID)
		require.NoError(t, err)
		assert.Len(t, d.Installments, 3)
	}
}

func TestBulkAssignFee_GradeScope(t *testing.T) {
	f := newFixture(t, true)
	otherGrade := uuid.New()
	scoped := ledger.FeeCategory{ID: uuid.New(), Name: "Lab", BaseAmount: 100, GradeID: &otherGrade}
	require.NoError(t, f.store.SeedFeeCategory(context.Background(), scoped))

	_, err := f.svc.BulkAssignFee(context.Background(), fee.BulkAssignInput{GradeID: f.grade, CategoryID: scoped.ID})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestClassFeeSummary(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	sum, err := f.svc.ClassFeeSummary(ctx, f.class)
	require.NoError(t, err)
	assert.Equal(t, ledger.FeePaid, sum.Totals.Status, "nothing owed")

	res, err := f.svc.BulkAssignFee(ctx, fee.BulkAssignInput{GradeID: f.grade, CategoryID: f.category.ID, TotalAmount: 1000})
	require.NoError(t, err)
	require.Len(t, res.Created, 3)

	sum, err = f.svc.ClassFeeSummary(ctx, f.class)
	require.NoError(t, err)
	assert.Equal(t, ledger.FeePending, sum.Totals.Status)
	assert.Equal(t, int64(3000), sum.Totals.PendingAmount)

	_, err = f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: res.Created[0].Fee.ID, Amount: 1000, Mode: ledger.ModeCash})
	require.NoError(t, err)
	sum, err = f.svc.ClassFeeSummary(ctx, f.class)
	require.NoError(t, err)
	assert.Equal(t, ledger.FeePartial, sum.Totals.Status)
	assert.Equal(t, int64(1000), sum.Totals.PaidAmount)
	require.Len(t, sum.Students, 3)
}

func TestRemoveStudentFee(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	d := f.assign(t)

	_, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 100, Mode: ledger.ModeCash})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.RemoveStudentFee(ctx, d.Fee.ID), fee.ErrHasPayments)

	other, err := f.svc.AssignFee(ctx, fee.AssignInput{StudentID: f.students[1].ID, CategoryID: f.category.ID, Installments: plan3000x3()})
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveStudentFee(ctx, other.Fee.ID))
	_, err = f.svc.GetStudentFee(ctx, other.Fee.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestReconcileAll_RepairsDriftedFee(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	d := f.assign(t)
	_, err := f.svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 4000, Mode: ledger.ModeCash})
	require.NoError(t, err)

	// Simulate a crash between the payment insert and the fee update.
	cur, err := f.store.GetStudentFee(ctx, d.Fee.ID)
	require.NoError(t, err)
	drifted := cur
	drifted.PaidAmount = 0
	drifted.Recompute()
	_, err = f.store.UpdateStudentFee(ctx, drifted, cur.Version)
	require.NoError(t, err)
	insts, err := f.store.InstallmentsByFee(ctx, d.Fee.ID)
	require.NoError(t, err)
	for i := range insts {
		insts[i].Status = ledger.InstallmentPending
	}
	require.NoError(t, f.store.UpdateInstallments(ctx, insts))

	res, err := f.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].FeeCorrected)
	assert.Equal(t, int64(0), res[0].PaidBefore)
	assert.Equal(t, int64(4000), res[0].PaidAfter)
	assert.Equal(t, 1, res[0].InstallmentsCorrected)

	got, err := f.svc.GetStudentFee(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Fee.PendingAmount)
	assert.Equal(t, ledger.FeePartial, got.Fee.Status)
	assert.Equal(t, []ledger.InstallmentStatus{ledger.InstallmentPaid, ledger.InstallmentPending, ledger.InstallmentPending}, statuses(got.Installments))

	res, err = f.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestRecordPayment_PicksUpLedgersCreatedLater(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ch := chart.New(store, store)
	codes := chart.PostingCodes{Cash: dictionary.CodeCash, Bank: dictionary.CodeBank, FeeIncome: dictionary.CodeStudentFees}
	pm, missing, err := ch.ResolvePostingMap(ctx, codes)
	require.NoError(t, err)
	require.NotEmpty(t, missing)

	st := ledger.Student{ID: uuid.New(), Name: "Dana", ClassID: uuid.New(), GradeID: uuid.New()}
	require.NoError(t, store.SeedStudent(ctx, st))
	cat := ledger.FeeCategory{ID: uuid.New(), Name: "Transport", BaseAmount: 4000}
	require.NoError(t, store.SeedFeeCategory(ctx, cat))

	svc := fee.New(fee.Deps{
		Repo:       store,
		Writer:     store,
		Vouchers:   voucher.New(store, store, nil),
		Students:   store,
		Categories: store,
		Posting:    pm,
		ResolvePosting: func(ctx context.Context) (ledger.PostingMap, error) {
			pm, _, err := ch.ResolvePostingMap(ctx, codes)
			return pm, err
		},
	})
	d, err := svc.AssignFee(ctx, fee.AssignInput{StudentID: st.ID, CategoryID: cat.ID})
	require.NoError(t, err)

	rc, err := svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 1000, Mode: ledger.ModeCash})
	require.NoError(t, err)
	assert.True(t, rc.PostingSkipped)

	require.NoError(t, ch.EnsureDefaultChart(ctx))

	rc, err = svc.RecordPayment(ctx, fee.PaymentInput{StudentFeeID: d.Fee.ID, Amount: 1000, Mode: ledger.ModeCash})
	require.NoError(t, err)
	assert.False(t, rc.PostingSkipped)
	require.NotNil(t, rc.Voucher)

	res, err := svc.Reconcile(ctx, d.Fee.ID)
	require.NoError(t, err)
	assert.Len(t, res.VouchersPosted, 1, "the earlier skipped receipt is posted on reconcile")
}
