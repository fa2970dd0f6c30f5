// Package roster declares the collaborators the fee ledger reads from or
// notifies: the student roster, the fee category catalog, and a best-effort
// notification sink.
package roster

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/ledger"
)

// StudentDirectory exposes student roster records.
type StudentDirectory interface {
	Student(ctx context.Context, id uuid.UUID) (ledger.Student, error)
	StudentsByGrade(ctx context.Context, gradeID uuid.UUID) ([]ledger.Student, error)
	StudentsByClass(ctx context.Context, classID uuid.UUID) ([]ledger.Student, error)
}

// FeeCategoryCatalog exposes fee category definitions.
type FeeCategoryCatalog interface {
	FeeCategory(ctx context.Context, id uuid.UUID) (ledger.FeeCategory, error)
}

// PaymentNotice is what a notifier learns about a recorded payment.
type PaymentNotice struct {
	StudentID     uuid.UUID
	StudentFeeID  uuid.UUID
	ReceiptNumber string
	Amount        int64
	PendingAmount int64
	Status        ledger.FeeStatus
}

// Notifier receives payment notices. Failures are logged by the caller and never
// block fee recording.
type Notifier interface {
	NotifyPayment(ctx context.Context, n PaymentNotice) error
}

// LogNotifier writes notices to a structured logger.
type LogNotifier struct{ Log *slog.Logger }

func (n LogNotifier) NotifyPayment(ctx context.Context, p PaymentNotice) error {
	l := n.Log
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "payment notice",
		"student_id", p.StudentID.String(),
		"student_fee_id", p.StudentFeeID.String(),
		"receipt_number", p.ReceiptNumber,
		"amount_minor", p.Amount,
		"pending_minor", p.PendingAmount,
		"status", string(p.Status),
	)
	return nil
}
