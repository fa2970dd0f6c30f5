package fee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/meta"
	"github.com/tinoosan/feeledger/internal/metrics"
	"github.com/tinoosan/feeledger/internal/roster"
	"github.com/tinoosan/feeledger/internal/service/voucher"
)

// RecordPayment stores a payment, advances the fee and its installment waterfall,
// then posts the fee-income voucher. Posting and notification are best-effort:
// their failures are reported on the receipt and never undo the payment.
func (s *service) RecordPayment(ctx context.Context, in PaymentInput) (Receipt, error) {
	if in.StudentFeeID == uuid.Nil {
		return Receipt{}, errs.Invalid("student_fee_id", "is required")
	}
	if in.Amount <= 0 {
		return Receipt{}, errs.Invalid("amount", "must be > 0")
	}
	if !in.Mode.Valid() {
		return Receipt{}, errs.Invalid("mode", "must be one of CASH, CARD, UPI, BANK_TRANSFER, CHEQUE, ONLINE")
	}

	unlock, err := s.lockFee(ctx, in.StudentFeeID)
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()

	prev, err := s.repo.GetStudentFee(ctx, in.StudentFeeID)
	if err != nil {
		return Receipt{}, err
	}
	if prev.Status == ledger.FeePaid || prev.PendingAmount <= 0 {
		return Receipt{}, errs.Invalid("amount", "fee is already settled")
	}
	if in.Amount > prev.PendingAmount {
		return Receipt{}, errs.Invalid("amount", fmt.Sprintf("exceeds pending amount %d", prev.PendingAmount))
	}
	before, err := s.repo.InstallmentsByFee(ctx, prev.ID)
	if err != nil {
		return Receipt{}, err
	}

	seq, err := s.writer.NextSequence(ctx, ReceiptSequence)
	if err != nil {
		return Receipt{}, &errs.PersistenceError{Op: "allocate receipt number", Err: err}
	}
	date := in.PaymentDate
	if date.IsZero() {
		date = s.now().UTC()
	}
	p := ledger.Payment{
		ID:            uuid.New(),
		StudentFeeID:  prev.ID,
		Amount:        in.Amount,
		Mode:          in.Mode,
		ReceiptNumber: FormatReceiptNumber(seq),
		Remarks:       strings.TrimSpace(in.Remarks),
		PaymentDate:   date,
	}
	next := prev
	next.PaidAmount += in.Amount
	next.Recompute()
	after := ledger.AllocateInstallments(next.PaidAmount, before)

	saved, err := s.applyPayment(ctx, p, prev, next, diffStatuses(before, after))
	if err != nil {
		return Receipt{}, err
	}
	metrics.PaymentsRecorded.WithLabelValues(string(p.Mode)).Inc()
	metrics.PaymentAmount.WithLabelValues(string(p.Mode)).Add(float64(p.Amount))
	s.log.InfoContext(ctx, "payment recorded",
		"student_fee_id", saved.ID.String(), "receipt_number", p.ReceiptNumber,
		"amount_minor", p.Amount, "status", string(saved.Status))

	rc := Receipt{ReceiptNumber: p.ReceiptNumber, Payment: p, Fee: saved, Installments: after}
	v, skipped, perr := s.postReceipt(ctx, saved, p)
	switch {
	case perr != nil:
		rc.PostingError = perr.Error()
	case skipped:
		rc.PostingSkipped = true
	default:
		rc.Voucher = v
	}
	s.notify(ctx, saved, p)
	return rc, nil
}

// applyPayment persists payment, fee and installment changes. Without a
// transactional store each step is undone in reverse when a later one fails.
func (s *service) applyPayment(ctx context.Context, p ledger.Payment, prev, next ledger.StudentFee, changed []ledger.Installment) (ledger.StudentFee, error) {
	if aw, ok := s.writer.(AtomicFeeWriter); ok {
		saved, err := aw.ApplyPayment(ctx, p, next, prev.Version, changed)
		if err != nil {
			return ledger.StudentFee{}, &errs.PersistenceError{Op: "apply payment", Err: err}
		}
		return saved, nil
	}

	if err := s.writer.InsertPayment(ctx, p); err != nil {
		return ledger.StudentFee{}, &errs.PersistenceError{Op: "insert payment", Err: err}
	}
	saved, err := s.writer.UpdateStudentFee(ctx, next, prev.Version)
	if err != nil {
		derr := s.writer.DeletePayment(ctx, p.ID)
		return ledger.StudentFee{}, s.compensated(ctx, p, "update student fee", err, derr)
	}
	if len(changed) > 0 {
		if err := s.writer.UpdateInstallments(ctx, changed); err != nil {
			derr := s.undoPayment(ctx, p, prev, saved.Version)
			return ledger.StudentFee{}, s.compensated(ctx, p, "update installments", err, derr)
		}
	}
	return saved, nil
}

// undoPayment restores the fee snapshot, removes the payment and re-runs the
// waterfall from the restored paid amount.
func (s *service) undoPayment(ctx context.Context, p ledger.Payment, prev ledger.StudentFee, version int64) error {
	_, ferr := s.writer.UpdateStudentFee(ctx, prev, version)
	perr := s.writer.DeletePayment(ctx, p.ID)
	var ierr error
	if cur, err := s.repo.InstallmentsByFee(ctx, p.StudentFeeID); err != nil {
		ierr = err
	} else if fix := diffStatuses(cur, ledger.AllocateInstallments(prev.PaidAmount, cur)); len(fix) > 0 {
		ierr = s.writer.UpdateInstallments(ctx, fix)
	}
	return errors.Join(ferr, perr, ierr)
}

func (s *service) compensated(ctx context.Context, p ledger.Payment, step string, cause, compErr error) error {
	metrics.Compensated("record_payment", compErr)
	if compErr != nil {
		s.log.ErrorContext(ctx, "payment compensation failed",
			"student_fee_id", p.StudentFeeID.String(), "receipt_number", p.ReceiptNumber,
			"step", step, "err", cause, "compensation_err", compErr)
		return &errs.InconsistentStateError{
			Op:              fmt.Sprintf("record payment %s on student fee %s", p.ReceiptNumber, p.StudentFeeID),
			Cause:           cause,
			CompensationErr: compErr,
		}
	}
	s.log.WarnContext(ctx, "payment rolled back",
		"student_fee_id", p.StudentFeeID.String(), "receipt_number", p.ReceiptNumber, "step", step, "err", cause)
	return &errs.PersistenceError{Op: step, Err: cause}
}

// postReceipt posts DEBIT cash/bank, CREDIT fee income for p. It reports
// skipped when the posting accounts are not configured.
func (s *service) postReceipt(ctx context.Context, f ledger.StudentFee, p ledger.Payment) (*ledger.Voucher, bool, error) {
	if s.vouchers == nil {
		metrics.FeePostings.WithLabelValues("skipped").Inc()
		return nil, true, nil
	}
	debit, credit, ok := s.postingLedgers(ctx, p.Mode)
	if !ok {
		metrics.FeePostings.WithLabelValues("skipped").Inc()
		s.log.WarnContext(ctx, "fee posting skipped: posting ledgers not configured",
			"receipt_number", p.ReceiptNumber, "mode", string(p.Mode))
		return nil, true, nil
	}
	v, err := s.vouchers.Post(ctx, voucher.Input{
		Date:      p.PaymentDate,
		Type:      ledger.VoucherReceipt,
		Narration: fmt.Sprintf("Fee receipt %s", p.ReceiptNumber),
		Reference: p.ReceiptNumber,
		Metadata: meta.Metadata{
			meta.KeySource:        meta.SourceFee,
			meta.KeyStudentFeeID:  f.ID.String(),
			meta.KeyReceiptNumber: p.ReceiptNumber,
			meta.KeyPaymentMode:   string(p.Mode),
		},
		Entries: []voucher.EntryInput{
			{LedgerID: debit, Amount: p.Amount, Side: ledger.SideDebit},
			{LedgerID: credit, Amount: p.Amount, Side: ledger.SideCredit},
		},
	})
	if err != nil {
		metrics.FeePostings.WithLabelValues("failed").Inc()
		s.log.ErrorContext(ctx, "fee posting failed",
			"receipt_number", p.ReceiptNumber, "student_fee_id", f.ID.String(), "err", err)
		return nil, false, err
	}
	metrics.FeePostings.WithLabelValues("posted").Inc()
	return &v, false, nil
}

func (s *service) notify(ctx context.Context, f ledger.StudentFee, p ledger.Payment) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyPayment(ctx, roster.PaymentNotice{
		StudentID:     f.StudentID,
		StudentFeeID:  f.ID,
		ReceiptNumber: p.ReceiptNumber,
		Amount:        p.Amount,
		PendingAmount: f.PendingAmount,
		Status:        f.Status,
	})
	if err != nil {
		s.log.WarnContext(ctx, "payment notification failed", "receipt_number", p.ReceiptNumber, "err", err)
	}
}

// FormatReceiptNumber renders a receipt number from its sequence value.
func FormatReceiptNumber(seq int64) string { return fmt.Sprintf("RCPT-%06d", seq) }

// diffStatuses returns the rows of after whose status differs from before.
func diffStatuses(before, after []ledger.Installment) []ledger.Installment {
	was := make(map[uuid.UUID]ledger.InstallmentStatus, len(before))
	for _, in := range before {
		was[in.ID] = in.Status
	}
	var out []ledger.Installment
	for _, in := range after {
		if was[in.ID] != in.Status {
			out = append(out, in)
		}
	}
	return out
}
