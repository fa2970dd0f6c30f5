// Package report derives the trial balance, profit and loss statement and balance
// sheet from the chart of accounts and posted voucher entries. Fee records are
// never read: fee income reaches the reports only through vouchers.
package report

import (
	"sort"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/ledger"
)

const (
	// OpeningDifferenceName labels the line that absorbs opening balances that do not net to zero.
	OpeningDifferenceName = "Difference in Opening Balances"
	// ReservesName labels the net profit carried to the liabilities side.
	ReservesName = "Reserves & Surplus"
)

// Snapshot is the data every report is computed from.
type Snapshot struct {
	Groups  []ledger.LedgerGroup
	Ledgers []ledger.Ledger
	Entries []ledger.VoucherEntry
}

// Balance is one ledger's opening balance plus posted movements, split by side.
type Balance struct {
	Ledger   ledger.Ledger
	Group    ledger.LedgerGroup
	Debit    int64
	Credit   int64
	Category ledger.GroupCategory
}

// Net is debits minus credits.
func (b Balance) Net() int64 { return b.Debit - b.Credit }

// TrialBalanceRow shows a ledger's net balance in the debit or credit column.
type TrialBalanceRow struct {
	LedgerID  uuid.UUID
	Code      string
	Name      string
	GroupName string
	Category  ledger.GroupCategory
	Debit     int64
	Credit    int64
}

type TrialBalance struct {
	Rows        []TrialBalanceRow
	TotalDebit  int64
	TotalCredit int64
}

// Line is one ledger amount within a statement section.
type Line struct {
	LedgerID  uuid.UUID
	Code      string
	Name      string
	GroupName string
	Category  ledger.GroupCategory
	Amount    int64
}

type ProfitAndLoss struct {
	Income       []Line
	Expenses     []Line
	TotalIncome  int64
	TotalExpense int64
	NetProfit    int64
}

type BalanceSheet struct {
	Assets           []Line
	Liabilities      []Line
	TotalAssets      int64
	TotalLiabilities int64
	NetProfit        int64
}

// Balances folds opening balances and entries per ledger, ordered by group then code.
// Entries against unknown ledgers are ignored.
func Balances(snap Snapshot) []Balance {
	groups := make(map[uuid.UUID]ledger.LedgerGroup, len(snap.Groups))
	for _, g := range snap.Groups {
		groups[g.ID] = g
	}
	idx := make(map[uuid.UUID]int, len(snap.Ledgers))
	out := make([]Balance, 0, len(snap.Ledgers))
	for _, l := range snap.Ledgers {
		g := groups[l.GroupID]
		b := Balance{Ledger: l, Group: g, Category: g.Category}
		if l.OpeningBalance > 0 {
			if l.OpeningSide == ledger.SideCredit {
				b.Credit += l.OpeningBalance
			} else {
				b.Debit += l.OpeningBalance
			}
		}
		idx[l.ID] = len(out)
		out = append(out, b)
	}
	for _, e := range snap.Entries {
		i, ok := idx[e.LedgerID]
		if !ok {
			continue
		}
		if e.Side == ledger.SideDebit {
			out[i].Debit += e.Amount
		} else {
			out[i].Credit += e.Amount
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group.Name != out[j].Group.Name {
			return out[i].Group.Name < out[j].Group.Name
		}
		return out[i].Ledger.Code < out[j].Ledger.Code
	})
	return out
}

// openingDifference is opening debits minus opening credits across the chart.
func openingDifference(ledgers []ledger.Ledger) int64 {
	var diff int64
	for _, l := range ledgers {
		if l.OpeningBalance <= 0 {
			continue
		}
		if l.OpeningSide == ledger.SideCredit {
			diff -= l.OpeningBalance
		} else {
			diff += l.OpeningBalance
		}
	}
	return diff
}

// BuildTrialBalance lists every ledger with a non-zero net balance. Columns are
// equal whenever every voucher balances.
func BuildTrialBalance(snap Snapshot) TrialBalance {
	var tb TrialBalance
	for _, b := range Balances(snap) {
		net := b.Net()
		if net == 0 {
			continue
		}
		row := TrialBalanceRow{
			LedgerID:  b.Ledger.ID,
			Code:      b.Ledger.Code,
			Name:      b.Ledger.Name,
			GroupName: b.Group.Name,
			Category:  b.Category,
		}
		if net > 0 {
			row.Debit = net
		} else {
			row.Credit = -net
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit += row.Debit
		tb.TotalCredit += row.Credit
	}
	if diff := openingDifference(snap.Ledgers); diff != 0 {
		row := TrialBalanceRow{Name: OpeningDifferenceName}
		if diff > 0 {
			row.Credit = diff
		} else {
			row.Debit = -diff
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit += row.Debit
		tb.TotalCredit += row.Credit
	}
	return tb
}

// BuildProfitAndLoss reports income as credits minus debits and expenses as
// debits minus credits.
func BuildProfitAndLoss(snap Snapshot) ProfitAndLoss {
	var pl ProfitAndLoss
	for _, b := range Balances(snap) {
		switch b.Category {
		case ledger.CategoryIncome:
			if amt := -b.Net(); amt != 0 {
				pl.Income = append(pl.Income, lineOf(b, amt))
				pl.TotalIncome += amt
			}
		case ledger.CategoryExpense:
			if amt := b.Net(); amt != 0 {
				pl.Expenses = append(pl.Expenses, lineOf(b, amt))
				pl.TotalExpense += amt
			}
		}
	}
	pl.NetProfit = pl.TotalIncome - pl.TotalExpense
	return pl
}

// BuildBalanceSheet carries net profit to the liabilities side as Reserves &
// Surplus, so the two sides total the same.
func BuildBalanceSheet(snap Snapshot) BalanceSheet {
	var bs BalanceSheet
	for _, b := range Balances(snap) {
		switch b.Category {
		case ledger.CategoryAsset:
			if amt := b.Net(); amt != 0 {
				bs.Assets = append(bs.Assets, lineOf(b, amt))
				bs.TotalAssets += amt
			}
		case ledger.CategoryLiability, ledger.CategoryEquity:
			if amt := -b.Net(); amt != 0 {
				bs.Liabilities = append(bs.Liabilities, lineOf(b, amt))
				bs.TotalLiabilities += amt
			}
		}
	}
	bs.NetProfit = BuildProfitAndLoss(snap).NetProfit
	bs.Liabilities = append(bs.Liabilities, Line{Name: ReservesName, Category: ledger.CategoryEquity, Amount: bs.NetProfit})
	bs.TotalLiabilities += bs.NetProfit
	if diff := openingDifference(snap.Ledgers); diff != 0 {
		bs.Liabilities = append(bs.Liabilities, Line{Name: OpeningDifferenceName, Amount: diff})
		bs.TotalLiabilities += diff
	}
	return bs
}

func lineOf(b Balance, amt int64) Line {
	return Line{
		LedgerID:  b.Ledger.ID,
		Code:      b.Ledger.Code,
		Name:      b.Ledger.Name,
		GroupName: b.Group.Name,
		Category:  b.Category,
		Amount:    amt,
	}
}
