package fee

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/metrics"
)

func (s *service) AssignFee(ctx context.Context, in AssignInput) (Detail, error) {
	if in.StudentID == uuid.Nil {
		return Detail{}, errs.Invalid("student_id", "is required")
	}
	if in.CategoryID == uuid.Nil {
		return Detail{}, errs.Invalid("fee_category_id", "is required")
	}
	st, err := s.students.Student(ctx, in.StudentID)
	if err != nil {
		return Detail{}, err
	}
	cat, err := s.categories.FeeCategory(ctx, in.CategoryID)
	if err != nil {
		return Detail{}, err
	}
	if !cat.AppliesTo(st.GradeID) {
		return Detail{}, errs.Invalid("fee_category_id", "category is scoped to another grade")
	}
	terms := assignTerms{TotalAmount: in.TotalAmount, Discount: in.Discount, DueDate: in.DueDate, Installments: in.Installments}
	if err := terms.resolve(cat); err != nil {
		return Detail{}, err
	}
	return s.assign(ctx, st.ID, cat.ID, terms)
}

// BulkAssignFee assigns one fee to every student of a grade. Students that already
// hold the fee are skipped, so a rerun after a partial failure completes the batch.
func (s *service) BulkAssignFee(ctx context.Context, in BulkAssignInput) (BulkResult, error) {
	if in.GradeID == uuid.Nil {
		return BulkResult{}, errs.Invalid("grade_id", "is required")
	}
	if in.CategoryID == uuid.Nil {
		return BulkResult{}, errs.Invalid("fee_category_id", "is required")
	}
	cat, err := s.categories.FeeCategory(ctx, in.CategoryID)
	if err != nil {
		return BulkResult{}, err
	}
	if !cat.AppliesTo(in.GradeID) {
		return BulkResult{}, errs.Invalid("fee_category_id", "category is scoped to another grade")
	}
	terms := assignTerms{TotalAmount: in.TotalAmount, Discount: in.Discount, DueDate: in.DueDate, Installments: in.Installments}
	if err := terms.resolve(cat); err != nil {
		return BulkResult{}, err
	}
	students, err := s.students.StudentsByGrade(ctx, in.GradeID)
	if err != nil {
		return BulkResult{}, err
	}

	var res BulkResult
	for _, st := range students {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, held, err := s.repo.StudentFeeFor(ctx, st.ID, cat.ID); err != nil {
			res.Failed = append(res.Failed, ItemError{StudentID: st.ID, Err: err})
			continue
		} else if held {
			res.Skipped = append(res.Skipped, st.ID)
			continue
		}
		d, err := s.assign(ctx, st.ID, cat.ID, terms)
		switch {
		case errors.Is(err, ErrFeeExists):
			res.Skipped = append(res.Skipped, st.ID)
		case err != nil:
			res.Failed = append(res.Failed, ItemError{StudentID: st.ID, Err: err})
		default:
			res.Created = append(res.Created, d)
		}
	}
	s.log.InfoContext(ctx, "bulk fee assignment",
		"grade_id", in.GradeID.String(), "fee_category_id", cat.ID.String(),
		"created", len(res.Created), "skipped", len(res.Skipped), "failed", len(res.Failed))
	return res, nil
}

// assignTerms are the amounts and plan shared by single and bulk assignment.
type assignTerms struct {
	TotalAmount  int64
	Discount     int64
	DueDate      time.Time
	Installments []InstallmentInput
}

// resolve applies the category default and validates amounts and plan.
func (t *assignTerms) resolve(cat ledger.FeeCategory) error {
	if t.TotalAmount == 0 {
		t.TotalAmount = cat.BaseAmount
	}
	if t.TotalAmount <= 0 {
		return errs.Invalid("total_amount", "must be > 0")
	}
	if t.Discount < 0 || t.Discount > t.TotalAmount {
		return errs.Invalid("discount", "must be between 0 and total_amount")
	}
	return validatePlan(t.Installments, t.TotalAmount-t.Discount)
}

// validatePlan requires positive amounts, unique positive orders, and a plan
// that sums to exactly the payable amount. An empty plan is allowed.
func validatePlan(plan []InstallmentInput, payable int64) error {
	if len(plan) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(plan))
	var sum int64
	for i, in := range plan {
		if in.Order <= 0 {
			return errs.Invalid(fmt.Sprintf("installments[%d].order", i), "must be > 0")
		}
		if _, dup := seen[in.Order]; dup {
			return errs.Invalid(fmt.Sprintf("installments[%d].order", i), "must be unique")
		}
		seen[in.Order] = struct{}{}
		if in.Amount <= 0 {
			return errs.Invalid(fmt.Sprintf("installments[%d].amount", i), "must be > 0")
		}
		if in.Amount > math.MaxInt64-sum {
			return errs.Invalid(fmt.Sprintf("installments[%d].amount", i), "plan total exceeds the largest representable amount")
		}
		sum += in.Amount
	}
	if sum != payable {
		return errs.Invalid("installments", fmt.Sprintf("amounts sum to %d, payable amount is %d", sum, payable))
	}
	return nil
}

// assign builds the fee and its plan and persists them all-or-nothing.
func (s *service) assign(ctx context.Context, studentID, categoryID uuid.UUID, t assignTerms) (Detail, error) {
	if _, held, err := s.repo.StudentFeeFor(ctx, studentID, categoryID); err != nil {
		return Detail{}, err
	} else if held {
		return Detail{}, ErrFeeExists
	}
	f := ledger.StudentFee{
		ID:            uuid.New(),
		StudentID:     studentID,
		FeeCategoryID: categoryID,
		TotalAmount:   t.TotalAmount,
		Discount:      t.Discount,
		DueDate:       t.DueDate,
	}
	f.Recompute()
	insts := make([]ledger.Installment, 0, len(t.Installments))
	for _, in := range t.Installments {
		due := in.DueDate
		if due.IsZero() {
			due = t.DueDate
		}
		insts = append(insts, ledger.Installment{
			ID:           uuid.New(),
			StudentFeeID: f.ID,
			Amount:       in.Amount,
			DueDate:      due,
			Order:        in.Order,
			Status:       ledger.InstallmentPending,
		})
	}
	insts = ledger.AllocateInstallments(f.PaidAmount, insts)

	if aw, ok := s.writer.(AtomicFeeWriter); ok {
		if err := aw.CreateStudentFee(ctx, f, insts); err != nil {
			if errors.Is(err, errs.ErrConflict) {
				return Detail{}, ErrFeeExists
			}
			return Detail{}, &errs.PersistenceError{Op: "create student fee", Err: err}
		}
		return Detail{Fee: f, Installments: insts}, nil
	}

	if err := s.writer.InsertStudentFee(ctx, f); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return Detail{}, ErrFeeExists
		}
		return Detail{}, &errs.PersistenceError{Op: "insert student fee", Err: err}
	}
	if len(insts) > 0 {
		if err := s.writer.InsertInstallments(ctx, f.ID, insts); err != nil {
			derr := s.writer.DeleteStudentFee(ctx, f.ID)
			metrics.Compensated("assign_fee", derr)
			if derr != nil {
				s.log.ErrorContext(ctx, "fee assignment compensation failed",
					"student_fee_id", f.ID.String(), "err", err, "compensation_err", derr)
				return Detail{}, &errs.InconsistentStateError{Op: "assign fee " + f.ID.String(), Cause: err, CompensationErr: derr}
			}
			return Detail{}, &errs.PersistenceError{Op: "insert installments", Err: err}
		}
	}
	return Detail{Fee: f, Installments: insts}, nil
}
