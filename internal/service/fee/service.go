// Package fee assigns fees to students, records payments against them and keeps
// the installment waterfall and the fee-income postings in step with the
// payment log.
package fee

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/lock"
	"github.com/tinoosan/feeledger/internal/roster"
	"github.com/tinoosan/feeledger/internal/service/voucher"
)

// ReceiptSequence is the store sequence receipt numbers are drawn from.
const ReceiptSequence = "receipt"

// Repo defines read operations needed by the service.
type Repo interface {
	GetStudentFee(ctx context.Context, id uuid.UUID) (ledger.StudentFee, error)
	StudentFeeFor(ctx context.Context, studentID, categoryID uuid.UUID) (ledger.StudentFee, bool, error)
	ListStudentFeesByStudent(ctx context.Context, studentID uuid.UUID) ([]ledger.StudentFee, error)
	ListStudentFees(ctx context.Context) ([]ledger.StudentFee, error)
	// InstallmentsByFee returns the plan ordered by Order.
	InstallmentsByFee(ctx context.Context, feeID uuid.UUID) ([]ledger.Installment, error)
	PaymentsByFee(ctx context.Context, feeID uuid.UUID) ([]ledger.Payment, error)
}

// Writer defines the individual write steps the sagas are built from.
type Writer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
	InsertStudentFee(ctx context.Context, f ledger.StudentFee) error
	InsertInstallments(ctx context.Context, feeID uuid.UUID, insts []ledger.Installment) error
	// UpdateStudentFee stores f if the stored version equals expected and
	// returns it with the version bumped; a stale version is ErrConflict.
	UpdateStudentFee(ctx context.Context, f ledger.StudentFee, expected int64) (ledger.StudentFee, error)
	UpdateInstallments(ctx context.Context, insts []ledger.Installment) error
	InsertPayment(ctx context.Context, p ledger.Payment) error
	DeletePayment(ctx context.Context, id uuid.UUID) error
	DeleteStudentFee(ctx context.Context, id uuid.UUID) error
}

// AtomicFeeWriter is implemented by stores that can run the multi-step fee
// writes in one transaction.
type AtomicFeeWriter interface {
	CreateStudentFee(ctx context.Context, f ledger.StudentFee, insts []ledger.Installment) error
	ApplyPayment(ctx context.Context, p ledger.Payment, f ledger.StudentFee, expected int64, insts []ledger.Installment) (ledger.StudentFee, error)
}

// Poster is the part of the voucher engine fee receipts use.
type Poster interface {
	Post(ctx context.Context, in voucher.Input) (ledger.Voucher, error)
	ByReference(ctx context.Context, ref string) (ledger.Voucher, bool, error)
}

// InstallmentInput is one step of a requested installment plan.
type InstallmentInput struct {
	Amount  int64
	DueDate time.Time
	Order   int
}

// AssignInput creates one StudentFee. A zero TotalAmount takes the category's base amount.
type AssignInput struct {
	StudentID    uuid.UUID
	CategoryID   uuid.UUID
	TotalAmount  int64
	Discount     int64
	DueDate      time.Time
	Installments []InstallmentInput
}

// BulkAssignInput assigns the same fee to every student of a grade.
type BulkAssignInput struct {
	GradeID      uuid.UUID
	CategoryID   uuid.UUID
	TotalAmount  int64
	Discount     int64
	DueDate      time.Time
	Installments []InstallmentInput
}

// PaymentInput records money received against a StudentFee.
type PaymentInput struct {
	StudentFeeID uuid.UUID
	Amount       int64
	Mode         ledger.PaymentMode
	Remarks      string
	PaymentDate  time.Time
}

// Detail is a StudentFee with its plan and payment log.
type Detail struct {
	Fee          ledger.StudentFee
	Installments []ledger.Installment
	Payments     []ledger.Payment
}

// ItemError is a per-student failure of a bulk assignment.
type ItemError struct {
	StudentID uuid.UUID
	Err       error
}

// BulkResult reports what a bulk assignment did for each student.
type BulkResult struct {
	Created []Detail
	// Skipped lists students that already held the fee.
	Skipped []uuid.UUID
	Failed  []ItemError
}

// Receipt is the outcome of RecordPayment. The payment is durable even when
// PostingError is set.
type Receipt struct {
	ReceiptNumber  string
	Payment        ledger.Payment
	Fee            ledger.StudentFee
	Installments   []ledger.Installment
	Voucher        *ledger.Voucher
	PostingSkipped bool
	PostingError   string
}

// StudentSummary is one student's fold in a class summary.
type StudentSummary struct {
	Student ledger.Student
	Totals  ledger.FeeTotals
	Fees    []ledger.StudentFee
}

// ClassSummary folds every student fee of a class.
type ClassSummary struct {
	ClassID  uuid.UUID
	Students []StudentSummary
	Totals   ledger.FeeTotals
}

// ReconcileResult lists the corrections applied to one fee.
type ReconcileResult struct {
	StudentFeeID          uuid.UUID
	PaidBefore            int64
	PaidAfter             int64
	FeeCorrected          bool
	InstallmentsCorrected int
	VouchersPosted        []string
	PostingErrors         []string
}

// Changed reports whether reconciliation touched anything.
func (r ReconcileResult) Changed() bool {
	return r.FeeCorrected || r.InstallmentsCorrected > 0 || len(r.VouchersPosted) > 0
}

type Service interface {
	AssignFee(ctx context.Context, in AssignInput) (Detail, error)
	BulkAssignFee(ctx context.Context, in BulkAssignInput) (BulkResult, error)
	RecordPayment(ctx context.Context, in PaymentInput) (Receipt, error)
	GetStudentFee(ctx context.Context, id uuid.UUID) (Detail, error)
	ListStudentFees(ctx context.Context, studentID uuid.UUID) ([]ledger.StudentFee, error)
	ClassFeeSummary(ctx context.Context, classID uuid.UUID) (ClassSummary, error)
	Reconcile(ctx context.Context, feeID uuid.UUID) (ReconcileResult, error)
	ReconcileAll(ctx context.Context) ([]ReconcileResult, error)
	RemoveStudentFee(ctx context.Context, id uuid.UUID) error
}

// Deps are the collaborators of the fee service. Locker defaults to an
// in-process keyed mutex, Notifier to none, Logger to slog.Default.
type Deps struct {
	Repo       Repo
	Writer     Writer
	Vouchers   Poster
	Students   roster.StudentDirectory
	Categories roster.FeeCategoryCatalog
	Notifier   roster.Notifier
	Locker     lock.Locker
	Posting    ledger.PostingMap
	// ResolvePosting, when set, is consulted again whenever Posting cannot
	// name both sides of a receipt, so ledgers created after startup are used.
	ResolvePosting func(ctx context.Context) (ledger.PostingMap, error)
	Logger         *slog.Logger
}

type service struct {
	repo       Repo
	writer     Writer
	vouchers   Poster
	students   roster.StudentDirectory
	categories roster.FeeCategoryCatalog
	notifier   roster.Notifier
	locker     lock.Locker
	log        *slog.Logger
	now        func() time.Time

	postingMu sync.RWMutex
	posting   ledger.PostingMap
	resolve   func(ctx context.Context) (ledger.PostingMap, error)
}

func New(d Deps) Service {
	s := &service{
		repo:       d.Repo,
		writer:     d.Writer,
		vouchers:   d.Vouchers,
		students:   d.Students,
		categories: d.Categories,
		notifier:   d.Notifier,
		locker:     d.Locker,
		log:        d.Logger,
		now:        time.Now,
		posting:    d.Posting,
		resolve:    d.ResolvePosting,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// postingLedgers returns the debit and credit ledgers for a receipt in mode m,
// re-resolving the posting map once if the current one is incomplete.
func (s *service) postingLedgers(ctx context.Context, m ledger.PaymentMode) (uuid.UUID, uuid.UUID, bool) {
	s.postingMu.RLock()
	pm := s.posting
	s.postingMu.RUnlock()
	debit, okDebit := pm.DebitLedger(m)
	credit, okCredit := pm.CreditLedger()
	if (okDebit && okCredit) || s.resolve == nil {
		return debit, credit, okDebit && okCredit
	}
	fresh, err := s.resolve(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "re-resolving posting ledgers failed", "err", err)
		return debit, credit, false
	}
	s.postingMu.Lock()
	s.posting = fresh
	s.postingMu.Unlock()
	debit, okDebit = fresh.DebitLedger(m)
	credit, okCredit = fresh.CreditLedger()
	return debit, credit, okDebit && okCredit
}

// lockFee serializes every read-modify-write of one fee.
func (s *service) lockFee(ctx context.Context, id uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "student_fee:"+id.String())
	if err != nil {
		return nil, fmt.Errorf("lock student fee %s: %w", id, err)
	}
	return unlock, nil
}

func (s *service) GetStudentFee(ctx context.Context, id uuid.UUID) (Detail, error) {
	if id == uuid.Nil {
		return Detail{}, errs.Invalid("id", "is required")
	}
	f, err := s.repo.GetStudentFee(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	insts, err := s.repo.InstallmentsByFee(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	pays, err := s.repo.PaymentsByFee(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Fee: f, Installments: insts, Payments: pays}, nil
}

func (s *service) ListStudentFees(ctx context.Context, studentID uuid.UUID) ([]ledger.StudentFee, error) {
	if studentID == uuid.Nil {
		return nil, errs.Invalid("student_id", "is required")
	}
	if _, err := s.students.Student(ctx, studentID); err != nil {
		return nil, err
	}
	return s.repo.ListStudentFeesByStudent(ctx, studentID)
}

// ClassFeeSummary folds the fees of every student in a class, per student and overall.
func (s *service) ClassFeeSummary(ctx context.Context, classID uuid.UUID) (ClassSummary, error) {
	if classID == uuid.Nil {
		return ClassSummary{}, errs.Invalid("class_id", "is required")
	}
	students, err := s.students.StudentsByClass(ctx, classID)
	if err != nil {
		return ClassSummary{}, err
	}
	out := ClassSummary{ClassID: classID, Students: make([]StudentSummary, 0, len(students))}
	var all []ledger.StudentFee
	for _, st := range students {
		fees, err := s.repo.ListStudentFeesByStudent(ctx, st.ID)
		if err != nil {
			return ClassSummary{}, err
		}
		all = append(all, fees...)
		out.Students = append(out.Students, StudentSummary{Student: st, Totals: ledger.SummarizeFees(fees), Fees: fees})
	}
	out.Totals = ledger.SummarizeFees(all)
	return out, nil
}

// RemoveStudentFee deletes a fee and its plan. Fees with payments are kept.
func (s *service) RemoveStudentFee(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errs.Invalid("id", "is required")
	}
	unlock, err := s.lockFee(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	if _, err := s.repo.GetStudentFee(ctx, id); err != nil {
		return err
	}
	pays, err := s.repo.PaymentsByFee(ctx, id)
	if err != nil {
		return err
	}
	if len(pays) > 0 {
		return ErrHasPayments
	}
	if err := s.writer.DeleteStudentFee(ctx, id); err != nil {
		return &errs.PersistenceError{Op: "delete student fee", Err: err}
	}
	return nil
}

var (
	// ErrFeeExists indicates the student already holds a fee of the category.
	ErrFeeExists = errs.Conflict("student already holds this fee category")
	// ErrHasPayments indicates a fee cannot be removed once money was received.
	ErrHasPayments = errs.Conflict("student fee has payments")
)
