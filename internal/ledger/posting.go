package ledger

import "github.com/google/uuid"

// PostingMap routes fee receipts to ledgers by stable id. A zero id means the
// account is not configured.
type PostingMap struct {
	Cash      uuid.UUID
	Bank      uuid.UUID
	FeeIncome uuid.UUID
	// ByMode overrides the bank ledger for specific non-cash modes.
	ByMode map[PaymentMode]uuid.UUID
}

// DebitLedger picks the ledger to debit for a receipt in mode m: cash for
// cash-like modes; otherwise the mode ledger, then bank, then cash.
func (p PostingMap) DebitLedger(m PaymentMode) (uuid.UUID, bool) {
	if m.CashLike() {
		return p.Cash, p.Cash != uuid.Nil
	}
	if id, ok := p.ByMode[m]; ok && id != uuid.Nil {
		return id, true
	}
	if p.Bank != uuid.Nil {
		return p.Bank, true
	}
	return p.Cash, p.Cash != uuid.Nil
}

// CreditLedger is the fee income ledger.
func (p PostingMap) CreditLedger() (uuid.UUID, bool) { return p.FeeIncome, p.FeeIncome != uuid.Nil }
