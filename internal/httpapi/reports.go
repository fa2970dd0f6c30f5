package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/service/report"
)

type trialBalanceRowResponse struct {
	LedgerID    uuid.UUID            `json:"ledger_id,omitempty"`
	Code        string               `json:"code,omitempty"`
	Name        string               `json:"name"`
	GroupName   string               `json:"group_name,omitempty"`
	Category    ledger.GroupCategory `json:"category,omitempty"`
	DebitMinor  int64                `json:"debit_minor"`
	CreditMinor int64                `json:"credit_minor"`
}

type trialBalanceResponse struct {
	Rows             []trialBalanceRowResponse `json:"rows"`
	TotalDebitMinor  int64                     `json:"total_debit_minor"`
	TotalDebit       string                    `json:"total_debit"`
	TotalCreditMinor int64                     `json:"total_credit_minor"`
	TotalCredit      string                    `json:"total_credit"`
}

type lineResponse struct {
	LedgerID    uuid.UUID            `json:"ledger_id,omitempty"`
	Code        string               `json:"code,omitempty"`
	Name        string               `json:"name"`
	GroupName   string               `json:"group_name,omitempty"`
	Category    ledger.GroupCategory `json:"category,omitempty"`
	AmountMinor int64                `json:"amount_minor"`
	Amount      string               `json:"amount"`
}

type profitAndLossResponse struct {
	Income            []lineResponse `json:"income"`
	Expenses          []lineResponse `json:"expenses"`
	TotalIncomeMinor  int64          `json:"total_income_minor"`
	TotalExpenseMinor int64          `json:"total_expense_minor"`
	NetProfitMinor    int64          `json:"net_profit_minor"`
	NetProfit         string         `json:"net_profit"`
}

type balanceSheetResponse struct {
	Assets                []lineResponse `json:"assets"`
	Liabilities           []lineResponse `json:"liabilities"`
	TotalAssetsMinor      int64          `json:"total_assets_minor"`
	TotalAssets           string         `json:"total_assets"`
	TotalLiabilitiesMinor int64          `json:"total_liabilities_minor"`
	TotalLiabilities      string         `json:"total_liabilities"`
	NetProfitMinor        int64          `json:"net_profit_minor"`
}

func (s *Server) toLines(ls []report.Line) []lineResponse {
	out := make([]lineResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, lineResponse{
			LedgerID:    l.LedgerID,
			Code:        l.Code,
			Name:        l.Name,
			GroupName:   l.GroupName,
			Category:    l.Category,
			AmountMinor: l.Amount,
			Amount:      s.decimal(l.Amount),
		})
	}
	return out
}

func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := s.reports.TrialBalance(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := trialBalanceResponse{
		Rows:             make([]trialBalanceRowResponse, 0, len(tb.Rows)),
		TotalDebitMinor:  tb.TotalDebit,
		TotalDebit:       s.decimal(tb.TotalDebit),
		TotalCreditMinor: tb.TotalCredit,
		TotalCredit:      s.decimal(tb.TotalCredit),
	}
	for _, row := range tb.Rows {
		out.Rows = append(out.Rows, trialBalanceRowResponse{
			LedgerID:    row.LedgerID,
			Code:        row.Code,
			Name:        row.Name,
			GroupName:   row.GroupName,
			Category:    row.Category,
			DebitMinor:  row.Debit,
			CreditMinor: row.Credit,
		})
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	pl, err := s.reports.ProfitAndLoss(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, profitAndLossResponse{
		Income:            s.toLines(pl.Income),
		Expenses:          s.toLines(pl.Expenses),
		TotalIncomeMinor:  pl.TotalIncome,
		TotalExpenseMinor: pl.TotalExpense,
		NetProfitMinor:    pl.NetProfit,
		NetProfit:         s.decimal(pl.NetProfit),
	})
}

func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
	bs, err := s.reports.BalanceSheet(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, balanceSheetResponse{
		Assets:                s.toLines(bs.Assets),
		Liabilities:           s.toLines(bs.Liabilities),
		TotalAssetsMinor:      bs.TotalAssets,
		TotalAssets:           s.decimal(bs.TotalAssets),
		TotalLiabilitiesMinor: bs.TotalLiabilities,
		TotalLiabilities:      s.decimal(bs.TotalLiabilities),
		NetProfitMinor:        bs.NetProfit,
	})
}
