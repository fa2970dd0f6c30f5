package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// FeeStatus is the settlement state of a student fee.
type FeeStatus string

const (
	FeePending FeeStatus = "PENDING"
	FeePartial FeeStatus = "PARTIAL"
	FeePaid    FeeStatus = "PAID"
)

// InstallmentStatus is binary: an installment is never partially paid.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
)

// PaymentMode is how money was received.
type PaymentMode string

const (
	ModeCash         PaymentMode = "CASH"
	ModeCard         PaymentMode = "CARD"
	ModeUPI          PaymentMode = "UPI"
	ModeBankTransfer PaymentMode = "BANK_TRANSFER"
	ModeCheque       PaymentMode = "CHEQUE"
	ModeOnline       PaymentMode = "ONLINE"
)

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	switch m {
	case ModeCash, ModeCard, ModeUPI, ModeBankTransfer, ModeCheque, ModeOnline:
		return true
	}
	return false
}

// CashLike reports whether receipts in this mode land in the cash account.
func (m PaymentMode) CashLike() bool { return m == ModeCash }

// StudentFee is one fee obligation for one student in one category.
type StudentFee struct {
	ID            uuid.UUID
	StudentID     uuid.UUID
	FeeCategoryID uuid.UUID
	TotalAmount   int64
	Discount      int64
	PaidAmount    int64
	PendingAmount int64
	Status        FeeStatus
	DueDate       time.Time
	// Version is bumped on every persisted update and checked optimistically.
	Version int64
}

// Recompute derives PendingAmount and Status from the amounts.
// pending == total - discount - paid always holds afterwards.
func (f *StudentFee) Recompute() {
	f.PendingAmount = f.TotalAmount - f.Discount - f.PaidAmount
	f.Status = DeriveStatus(f.PaidAmount, f.PendingAmount)
}

// DeriveStatus maps paid/pending amounts to a status. A fully settled fee is PAID
// even when nothing was paid (fully discounted).
func DeriveStatus(paid, pending int64) FeeStatus {
	switch {
	case pending <= 0:
		return FeePaid
	case paid == 0:
		return FeePending
	default:
		return FeePartial
	}
}

// Installment is an ordered slice of a student fee with its own due date.
type Installment struct {
	ID           uuid.UUID
	StudentFeeID uuid.UUID
	Amount       int64
	DueDate      time.Time
	Order        int
	Status       InstallmentStatus
}

// Payment is an immutable record of money received against a student fee.
type Payment struct {
	ID            uuid.UUID
	StudentFeeID  uuid.UUID
	Amount        int64
	Mode          PaymentMode
	ReceiptNumber string
	Remarks       string
	PaymentDate   time.Time
}

// AllocateInstallments applies the cumulative paid amount to installments
// oldest-first, all-or-nothing per installment. The first installment that
// cannot be covered and every later one stay PENDING, so PAID installments
// always form a prefix. The input is not modified.
func AllocateInstallments(paid int64, installments []Installment) []Installment {
	out := make([]Installment, len(installments))
	copy(out, installments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	available := paid
	stopped := false
	for i := range out {
		if !stopped && available >= out[i].Amount {
			out[i].Status = InstallmentPaid
			available -= out[i].Amount
			continue
		}
		stopped = true
		out[i].Status = InstallmentPending
	}
	return out
}

// FeeTotals is the fold of several fee rows.
type FeeTotals struct {
	TotalAmount   int64
	Discount      int64
	PaidAmount    int64
	PendingAmount int64
	Status        FeeStatus
}

// SummarizeFees folds fee rows. Status is PAID only if every row has nothing
// pending, PENDING only if no row has any payment, PARTIAL otherwise.
func SummarizeFees(rows []StudentFee) FeeTotals {
	var t FeeTotals
	allSettled, nonePaid := true, true
	for _, r := range rows {
		t.TotalAmount += r.TotalAmount
		t.Discount += r.Discount
		t.PaidAmount += r.PaidAmount
		t.PendingAmount += r.PendingAmount
		if r.PendingAmount != 0 {
			allSettled = false
		}
		if r.PaidAmount != 0 {
			nonePaid = false
		}
	}
	switch {
	case allSettled:
		t.Status = FeePaid
	case nonePaid:
		t.Status = FeePending
	default:
		t.Status = FeePartial
	}
	return t
}

// Student is the roster record the fee ledger reads.
type Student struct {
	ID      uuid.UUID
	Name    string
	ClassID uuid.UUID
	GradeID uuid.UUID
}

// FeeCategory defines a kind of fee with a default amount, optionally scoped to one grade.
type FeeCategory struct {
	ID         uuid.UUID
	Name       string
	BaseAmount int64
	GradeID    *uuid.UUID
}

// AppliesTo reports whether the category may be assigned within gradeID.
func (c FeeCategory) AppliesTo(gradeID uuid.UUID) bool {
	return c.GradeID == nil || *c.GradeID == gradeID
}
