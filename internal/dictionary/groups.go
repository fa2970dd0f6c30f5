// Package dictionary holds the curated default chart of accounts a fresh school book starts with.
package dictionary

import "github.com/tinoosan/feeledger/internal/ledger"

// GroupDef describes a default ledger group.
type GroupDef struct {
	Name     string               `json:"name"`
	Category ledger.GroupCategory `json:"category"`
}

// LedgerDef describes a default ledger and the group it belongs to.
type LedgerDef struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// Ledger codes the default posting configuration points at.
const (
	CodeCash        = "cash"
	CodeBank        = "bank"
	CodeStudentFees = "student_fees"
	CodeCapital     = "capital"
	CodeSalaries    = "salaries"
)

var groups = []GroupDef{
	{Name: "Cash-in-Hand", Category: ledger.CategoryAsset},
	{Name: "Bank Accounts", Category: ledger.CategoryAsset},
	{Name: "Capital Account", Category: ledger.CategoryEquity},
	{Name: "Current Liabilities", Category: ledger.CategoryLiability},
	{Name: "Direct Incomes", Category: ledger.CategoryIncome},
	{Name: "Indirect Expenses", Category: ledger.CategoryExpense},
}

var ledgers = []LedgerDef{
	{Code: CodeCash, Name: "Cash", Group: "Cash-in-Hand"},
	{Code: CodeBank, Name: "Bank", Group: "Bank Accounts"},
	{Code: CodeCapital, Name: "Capital", Group: "Capital Account"},
	{Code: CodeStudentFees, Name: "Student Fees", Group: "Direct Incomes"},
	{Code: CodeSalaries, Name: "Salaries", Group: "Indirect Expenses"},
}

// DefaultGroups returns the curated groups in creation order.
func DefaultGroups() []GroupDef {
	out := make([]GroupDef, len(groups))
	copy(out, groups)
	return out
}

// DefaultLedgers returns the curated ledgers in creation order.
func DefaultLedgers() []LedgerDef {
	out := make([]LedgerDef, len(ledgers))
	copy(out, ledgers)
	return out
}

// GroupsFor filters the default groups by category; nil returns all.
func GroupsFor(c *ledger.GroupCategory) []GroupDef {
	if c == nil {
		return DefaultGroups()
	}
	out := make([]GroupDef, 0)
	for _, g := range groups {
		if g.Category == *c {
			out = append(out, g)
		}
	}
	return out
}
