package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/dictionary"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/service/chart"
	"github.com/tinoosan/feeledger/internal/service/fee"
	"github.com/tinoosan/feeledger/internal/service/report"
	"github.com/tinoosan/feeledger/internal/service/voucher"
	"github.com/tinoosan/feeledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type env struct {
	h        http.Handler
	store    *memory.Store
	ledgers  map[string]ledger.Ledger
	students []ledger.Student
	class    uuid.UUID
	grade    uuid.UUID
	category ledger.FeeCategory
}

type failingPing struct{}

func (failingPing) Ping(context.Context) error { return errors.New("db down") }

func setup(t *testing.T, ready ...ReadyChecker) env {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	ch := chart.New(store, store)
	if err := ch.EnsureDefaultChart(ctx); err != nil {
		t.Fatalf("chart: %v", err)
	}
	pm, missing, err := ch.ResolvePostingMap(ctx, chart.PostingCodes{
		Cash: dictionary.CodeCash, Bank: dictionary.CodeBank, FeeIncome: dictionary.CodeStudentFees,
	})
	if err != nil || len(missing) > 0 {
		t.Fatalf("posting map: %v %v", err, missing)
	}
	ls, _ := ch.ListLedgers(ctx)
	byCode := map[string]ledger.Ledger{}
	for _, l := range ls {
		byCode[l.Code] = l
	}

	e := env{store: store, ledgers: byCode, class: uuid.New(), grade: uuid.New()}
	for _, name := range []string{"Asha", "Bilal"} {
		st := ledger.Student{ID: uuid.New(), Name: name, ClassID: e.class, GradeID: e.grade}
		_ = store.SeedStudent(ctx, st)
		e.students = append(e.students, st)
	}
	e.category = ledger.FeeCategory{ID: uuid.New(), Name: "Tuition", BaseAmount: 3000}
	_ = store.SeedFeeCategory(ctx, e.category)

	vouchers := voucher.New(store, store, testLogger())
	fees := fee.New(fee.Deps{
		Repo:       store,
		Writer:     store,
		Vouchers:   vouchers,
		Students:   store,
		Categories: store,
		Posting:    pm,
		Logger:     testLogger(),
	})
	e.h = New(Deps{
		Chart:    ch,
		Vouchers: vouchers,
		Fees:     fees,
		Reports:  report.New(store, 0),
		Ready:    append([]ReadyChecker{store}, ready...),
		Currency: "USD",
		Logger:   testLogger(),
	}).Handler()
	return e
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestVouchers_PostGetReverse(t *testing.T) {
	e := setup(t)
	cash, fees := e.ledgers[dictionary.CodeCash], e.ledgers[dictionary.CodeStudentFees]

	body := map[string]any{
		"date":      "2025-04-01",
		"type":      "journal",
		"narration": "opening collection",
		"entries": []map[string]any{
			{"ledger_id": cash.ID, "side": "debit", "amount": "12.50"},
			{"ledger_id": fees.ID, "side": "CREDIT", "amount_minor": 1250},
		},
	}
	rec := do(t, e.h, http.MethodPost, "/v1/vouchers", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[voucherResponse](t, rec)
	if v.Number != "JV-000001" || v.TotalAmountMinor != 1250 || v.TotalAmount != "12.50" || len(v.Entries) != 2 {
		t.Fatalf("unexpected voucher: %+v", v)
	}

	rec = do(t, e.h, http.MethodGet, "/v1/vouchers/"+v.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get expected 200, got %d", rec.Code)
	}

	rec = do(t, e.h, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/reverse", map[string]any{"date": "2025-04-02"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reverse expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rev := decode[voucherResponse](t, rec)
	if rev.Reference != voucher.ReversalReference(v.Number) || rev.Entries[0].Side != ledger.SideCredit {
		t.Fatalf("unexpected reversal: %+v", rev)
	}

	rec = do(t, e.h, http.MethodGet, "/v1/vouchers", nil)
	list := decode[struct {
		Vouchers []voucherResponse `json:"vouchers"`
	}](t, rec)
	if len(list.Vouchers) != 2 {
		t.Fatalf("expected 2 vouchers, got %d", len(list.Vouchers))
	}
}

func TestVouchers_Errors(t *testing.T) {
	e := setup(t)
	cash, fees := e.ledgers[dictionary.CodeCash], e.ledgers[dictionary.CodeStudentFees]

	unbalanced := map[string]any{
		"date": "2025-04-01",
		"entries": []map[string]any{
			{"ledger_id": cash.ID, "side": "DEBIT", "amount_minor": 1500},
			{"ledger_id": fees.ID, "side": "CREDIT", "amount_minor": 1400},
		},
	}
	rec := do(t, e.h, http.MethodPost, "/v1/vouchers", unbalanced)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if er := decode[errResp](t, rec); er.Code != "unbalanced_voucher" {
		t.Fatalf("expected unbalanced_voucher, got %+v", er)
	}

	tooPrecise := map[string]any{
		"entries": []map[string]any{
			{"ledger_id": cash.ID, "side": "DEBIT", "amount": "1.005"},
			{"ledger_id": fees.ID, "side": "CREDIT", "amount": "1.005"},
		},
	}
	if rec := do(t, e.h, http.MethodPost, "/v1/vouchers", tooPrecise); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for sub-cent amount, got %d", rec.Code)
	}

	if rec := do(t, e.h, http.MethodGet, "/v1/vouchers/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, e.h, http.MethodGet, "/v1/vouchers/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/vouchers", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestFees_AssignPayAndReport(t *testing.T) {
	e := setup(t)
	st := e.students[0]

	rec := do(t, e.h, http.MethodPost, "/v1/fees", map[string]any{
		"student_id":      st.ID,
		"fee_category_id": e.category.ID,
		"installments": []map[string]any{
			{"amount_minor": 1000, "order": 1, "due_date": "2025-04-10"},
			{"amount": "20.00", "order": 2, "due_date": "2025-07-10"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	d := decode[feeDetailResponse](t, rec)
	if d.Fee.TotalAmountMinor != 3000 || d.Fee.Status != ledger.FeePending || len(d.Installments) != 2 {
		t.Fatalf("unexpected fee: %+v", d)
	}

	rec = do(t, e.h, http.MethodPost, "/v1/fees", map[string]any{"student_id": st.ID, "fee_category_id": e.category.ID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate assign expected 409, got %d", rec.Code)
	}

	feePath := "/v1/fees/" + d.Fee.ID.String()
	rec = do(t, e.h, http.MethodPost, feePath+"/payments", map[string]any{"amount": "15.00", "mode": "cash"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rc := decode[receiptResponse](t, rec)
	if rc.ReceiptNumber != "RCPT-000001" || rc.Fee.Status != ledger.FeePartial || rc.Fee.PendingAmountMinor != 1500 {
		t.Fatalf("unexpected receipt: %+v", rc)
	}
	if rc.Installments[0].Status != ledger.InstallmentPaid || rc.Installments[1].Status != ledger.InstallmentPending {
		t.Fatalf("unexpected installments: %+v", rc.Installments)
	}
	if rc.Voucher == nil || rc.Voucher.Type != ledger.VoucherReceipt || rc.Voucher.Reference != rc.ReceiptNumber {
		t.Fatalf("expected receipt voucher, got %+v", rc.Voucher)
	}

	rec = do(t, e.h, http.MethodPost, feePath+"/payments", map[string]any{"amount_minor": 2000, "mode": "CASH"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overpayment expected 422, got %d", rec.Code)
	}

	rec = do(t, e.h, http.MethodGet, feePath, nil)
	if got := decode[feeDetailResponse](t, rec); len(got.Payments) != 1 {
		t.Fatalf("expected 1 payment, got %+v", got.Payments)
	}

	rec = do(t, e.h, http.MethodGet, "/v1/students/"+st.ID.String()+"/fees", nil)
	sf := decode[struct {
		Fees   []feeResponse  `json:"fees"`
		Totals totalsResponse `json:"totals"`
	}](t, rec)
	if len(sf.Fees) != 1 || sf.Totals.Status != ledger.FeePartial || sf.Totals.PaidAmountMinor != 1500 {
		t.Fatalf("unexpected student fees: %+v", sf)
	}

	rec = do(t, e.h, http.MethodGet, "/v1/classes/"+e.class.String()+"/fee-summary", nil)
	cs := decode[classSummaryResponse](t, rec)
	if len(cs.Students) != 2 || cs.Totals.PendingAmountMinor != 1500 {
		t.Fatalf("unexpected class summary: %+v", cs)
	}

	rec = do(t, e.h, http.MethodPost, feePath+"/reconcile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rr := decode[reconcileResponse](t, rec); rr.Changed {
		t.Fatalf("expected nothing to reconcile, got %+v", rr)
	}

	rec = do(t, e.h, http.MethodGet, "/v1/reports/trial-balance", nil)
	tb := decode[trialBalanceResponse](t, rec)
	if tb.TotalDebitMinor != tb.TotalCreditMinor || tb.TotalDebitMinor != 1500 {
		t.Fatalf("unexpected trial balance: %+v", tb)
	}
	rec = do(t, e.h, http.MethodGet, "/v1/reports/profit-and-loss", nil)
	if pl := decode[profitAndLossResponse](t, rec); pl.NetProfitMinor != 1500 || pl.NetProfit != "15.00" {
		t.Fatalf("unexpected P&L: %+v", pl)
	}
	rec = do(t, e.h, http.MethodGet, "/v1/reports/balance-sheet", nil)
	if bs := decode[balanceSheetResponse](t, rec); bs.TotalAssetsMinor != bs.TotalLiabilitiesMinor || bs.TotalAssetsMinor != 1500 {
		t.Fatalf("unexpected balance sheet: %+v", bs)
	}

	if rec := do(t, e.h, http.MethodDelete, feePath, nil); rec.Code != http.StatusConflict {
		t.Fatalf("delete with payments expected 409, got %d", rec.Code)
	}
}

func TestFees_BulkAndDelete(t *testing.T) {
	e := setup(t)
	body := map[string]any{"grade_id": e.grade, "fee_category_id": e.category.ID, "discount_minor": 500}
	rec := do(t, e.h, http.MethodPost, "/v1/fees/bulk", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[bulkResponse](t, rec)
	if len(res.Created) != 2 || res.Created[0].Fee.PendingAmountMinor != 2500 {
		t.Fatalf("unexpected bulk result: %+v", res)
	}

	rec = do(t, e.h, http.MethodPost, "/v1/fees/bulk", body)
	if res := decode[bulkResponse](t, rec); len(res.Created) != 0 || len(res.Skipped) != 2 {
		t.Fatalf("rerun should skip everyone: %+v", res)
	}

	id := res.Created[0].Fee.ID.String()
	if rec := do(t, e.h, http.MethodDelete, "/v1/fees/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, e.h, http.MethodGet, "/v1/fees/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestChart_Endpoints(t *testing.T) {
	e := setup(t)
	rec := do(t, e.h, http.MethodPost, "/v1/ledger-groups", map[string]any{"name": "Fixed Assets", "category": "asset"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("group expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	g := decode[groupResponse](t, rec)

	rec = do(t, e.h, http.MethodPost, "/v1/ledgers", map[string]any{"name": "Furniture", "group_id": g.ID, "opening_balance": "250.00"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ledger expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	l := decode[ledgerResponse](t, rec)
	if l.Code != "furniture" || l.OpeningBalanceMinor != 25000 || l.OpeningSide != ledger.SideDebit {
		t.Fatalf("unexpected ledger: %+v", l)
	}

	rec = do(t, e.h, http.MethodGet, "/v1/ledgers/"+l.ID.String(), nil)
	got := decode[ledgerResponse](t, rec)
	if got.Group == nil || got.Group.Name != "Fixed Assets" || got.NormalSide != ledger.SideDebit {
		t.Fatalf("unexpected classified ledger: %+v", got)
	}

	rec = do(t, e.h, http.MethodPost, "/v1/ledgers", map[string]any{"name": "Furniture", "group_id": g.ID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate code expected 409, got %d", rec.Code)
	}
	rec = do(t, e.h, http.MethodPost, "/v1/ledger-groups", map[string]any{"name": "Misc", "category": "SALES"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad category expected 422, got %d", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	e := setup(t)
	if rec := do(t, e.h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", rec.Code)
	}
	if rec := do(t, e.h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz expected 200, got %d", rec.Code)
	}
	if rec := do(t, e.h, http.MethodGet, "/metrics", nil); rec.Code != http.StatusOK {
		t.Fatalf("metrics expected 200, got %d", rec.Code)
	}

	down := setup(t, failingPing{})
	if rec := do(t, down.h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz expected 503, got %d", rec.Code)
	}
}
