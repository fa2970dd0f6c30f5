package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/feeledger/internal/meta"
)

// Side represents the accounting position of a voucher entry.
type Side string

const (
	// SideDebit records a value on the debit side of a ledger.
	SideDebit Side = "DEBIT"
	// SideCredit records a value on the credit side of a ledger.
	SideCredit Side = "CREDIT"
)

// Valid reports whether s is one of the two sides.
func (s Side) Valid() bool { return s == SideDebit || s == SideCredit }

// Opposite flips debit and credit.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// GroupCategory is the closed classification of a ledger group.
type GroupCategory string

const (
	// CategoryAsset increases on the debit side and holds resources owned by the school.
	CategoryAsset GroupCategory = "ASSET"
	// CategoryLiability increases on the credit side and tracks obligations.
	CategoryLiability GroupCategory = "LIABILITY"
	// CategoryEquity captures the owners' residual interest.
	CategoryEquity GroupCategory = "EQUITY"
	// CategoryIncome represents inflows such as fees collected.
	CategoryIncome GroupCategory = "INCOME"
	// CategoryExpense represents outflows such as salaries.
	CategoryExpense GroupCategory = "EXPENSE"
)

// Valid reports whether c is a known category.
func (c GroupCategory) Valid() bool {
	switch c {
	case CategoryAsset, CategoryLiability, CategoryEquity, CategoryIncome, CategoryExpense:
		return true
	}
	return false
}

// NormalSide returns the side on which balances of the category grow.
func (c GroupCategory) NormalSide() Side {
	if c == CategoryAsset || c == CategoryExpense {
		return SideDebit
	}
	return SideCredit
}

// LedgerGroup classifies ledgers into one category.
type LedgerGroup struct {
	ID       uuid.UUID
	Name     string
	Category GroupCategory
}

// Ledger is an account in the chart of accounts.
type Ledger struct {
	ID uuid.UUID
	// Code is a stable, immutable slug used by posting configuration.
	Code           string
	Name           string
	GroupID        uuid.UUID
	OpeningBalance int64
	OpeningSide    Side
}

// VoucherType identifies the kind of transaction a voucher records.
type VoucherType string

const (
	VoucherJournal VoucherType = "JOURNAL"
	VoucherReceipt VoucherType = "RECEIPT"
	VoucherPayment VoucherType = "PAYMENT"
	VoucherContra  VoucherType = "CONTRA"
)

// Valid reports whether t is a known voucher type.
func (t VoucherType) Valid() bool {
	switch t {
	case VoucherJournal, VoucherReceipt, VoucherPayment, VoucherContra:
		return true
	}
	return false
}

// Prefix is the voucher number prefix for the type.
func (t VoucherType) Prefix() string {
	switch t {
	case VoucherReceipt:
		return "RV"
	case VoucherPayment:
		return "PV"
	case VoucherContra:
		return "CV"
	default:
		return "JV"
	}
}

// Voucher is one balanced transaction. It is immutable once its entries exist.
type Voucher struct {
	ID          uuid.UUID
	Number      string
	Date        time.Time
	Type        VoucherType
	Narration   string
	TotalAmount int64
	// Reference is an optional unique idempotency key (receipt number, reversal tag).
	Reference string
	Metadata  meta.Metadata
	Entries   []VoucherEntry
}

// VoucherEntry is one debit or credit leg of a voucher.
type VoucherEntry struct {
	ID        uuid.UUID
	VoucherID uuid.UUID
	LedgerID  uuid.UUID
	Amount    int64
	Side      Side
}
