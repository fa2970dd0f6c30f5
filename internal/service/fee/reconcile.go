package fee

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
)

// Reconcile re-derives a fee from its payment log: paid, pending and status,
// the installment waterfall, and any fee-income voucher that never got posted.
func (s *service) Reconcile(ctx context.Context, feeID uuid.UUID) (ReconcileResult, error) {
	if feeID == uuid.Nil {
		return ReconcileResult{}, errs.Invalid("id", "is required")
	}
	unlock, err := s.lockFee(ctx, feeID)
	if err != nil {
		return ReconcileResult{}, err
	}
	defer unlock()

	f, err := s.repo.GetStudentFee(ctx, feeID)
	if err != nil {
		return ReconcileResult{}, err
	}
	pays, err := s.repo.PaymentsByFee(ctx, feeID)
	if err != nil {
		return ReconcileResult{}, err
	}
	var paid int64
	for _, p := range pays {
		paid += p.Amount
	}
	res := ReconcileResult{StudentFeeID: f.ID, PaidBefore: f.PaidAmount, PaidAfter: paid}

	want := f
	want.PaidAmount = paid
	want.Recompute()
	if want.PaidAmount != f.PaidAmount || want.PendingAmount != f.PendingAmount || want.Status != f.Status {
		saved, err := s.writer.UpdateStudentFee(ctx, want, f.Version)
		if err != nil {
			return res, &errs.PersistenceError{Op: "reconcile student fee", Err: err}
		}
		f = saved
		res.FeeCorrected = true
	}

	insts, err := s.repo.InstallmentsByFee(ctx, feeID)
	if err != nil {
		return res, err
	}
	if fix := diffStatuses(insts, ledger.AllocateInstallments(f.PaidAmount, insts)); len(fix) > 0 {
		if err := s.writer.UpdateInstallments(ctx, fix); err != nil {
			return res, &errs.PersistenceError{Op: "reconcile installments", Err: err}
		}
		res.InstallmentsCorrected = len(fix)
	}

	if s.vouchers != nil {
		for _, p := range pays {
			if _, ok, err := s.vouchers.ByReference(ctx, p.ReceiptNumber); err != nil {
				res.PostingErrors = append(res.PostingErrors, fmt.Sprintf("%s: %v", p.ReceiptNumber, err))
				continue
			} else if ok {
				continue
			}
			v, skipped, err := s.postReceipt(ctx, f, p)
			switch {
			case err != nil:
				res.PostingErrors = append(res.PostingErrors, fmt.Sprintf("%s: %v", p.ReceiptNumber, err))
			case !skipped:
				res.VouchersPosted = append(res.VouchersPosted, v.Number)
			}
		}
	}

	if res.Changed() {
		s.log.InfoContext(ctx, "student fee reconciled",
			"student_fee_id", f.ID.String(), "paid_before", res.PaidBefore, "paid_after", res.PaidAfter,
			"installments_corrected", res.InstallmentsCorrected, "vouchers_posted", len(res.VouchersPosted))
	}
	return res, nil
}

// ReconcileAll reconciles every fee and returns the results that changed
// something. Per-fee failures are joined and do not stop the sweep.
func (s *service) ReconcileAll(ctx context.Context) ([]ReconcileResult, error) {
	fees, err := s.repo.ListStudentFees(ctx)
	if err != nil {
		return nil, err
	}
	var (
		out  []ReconcileResult
		errl []error
	)
	for _, f := range fees {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.Reconcile(ctx, f.ID)
		if err != nil {
			errl = append(errl, fmt.Errorf("student fee %s: %w", f.ID, err))
			continue
		}
		if res.Changed() || len(res.PostingErrors) > 0 {
			out = append(out, res)
		}
	}
	return out, errors.Join(errl...)
}
