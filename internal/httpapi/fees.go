package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/service/fee"
)

type installmentInput struct {
	AmountMinor *int64   `json:"amount_minor,omitempty"`
	Amount      string   `json:"amount,omitempty"`
	DueDate     dateOnly `json:"due_date"`
	Order       int      `json:"order"`
}

// feeTerms are shared by single and bulk assignment.
type feeTerms struct {
	CategoryID       uuid.UUID          `json:"fee_category_id"`
	TotalAmountMinor *int64             `json:"total_amount_minor,omitempty"`
	TotalAmount      string             `json:"total_amount,omitempty"`
	DiscountMinor    *int64             `json:"discount_minor,omitempty"`
	Discount         string             `json:"discount,omitempty"`
	DueDate          dateOnly           `json:"due_date"`
	Installments     []installmentInput `json:"installments,omitempty"`
}

type postFeeRequest struct {
	StudentID uuid.UUID `json:"student_id"`
	feeTerms
}

type postFeesBulkRequest struct {
	GradeID uuid.UUID `json:"grade_id"`
	feeTerms
}

type postPaymentRequest struct {
	AmountMinor *int64             `json:"amount_minor,omitempty"`
	Amount      string             `json:"amount,omitempty"`
	Mode        ledger.PaymentMode `json:"mode"`
	Remarks     string             `json:"remarks,omitempty"`
	PaymentDate dateOnly           `json:"payment_date"`
}

type feeResponse struct {
	ID                 uuid.UUID        `json:"id"`
	StudentID          uuid.UUID        `json:"student_id"`
	FeeCategoryID      uuid.UUID        `json:"fee_category_id"`
	TotalAmountMinor   int64            `json:"total_amount_minor"`
	TotalAmount        string           `json:"total_amount"`
	DiscountMinor      int64            `json:"discount_minor"`
	Discount           string           `json:"discount"`
	PaidAmountMinor    int64            `json:"paid_amount_minor"`
	PaidAmount         string           `json:"paid_amount"`
	PendingAmountMinor int64            `json:"pending_amount_minor"`
	PendingAmount      string           `json:"pending_amount"`
	Status             ledger.FeeStatus `json:"status"`
	DueDate            *time.Time       `json:"due_date,omitempty"`
	Version            int64            `json:"version"`
}

type installmentResponse struct {
	ID          uuid.UUID                `json:"id"`
	AmountMinor int64                    `json:"amount_minor"`
	Amount      string                   `json:"amount"`
	DueDate     *time.Time               `json:"due_date,omitempty"`
	Order       int                      `json:"order"`
	Status      ledger.InstallmentStatus `json:"status"`
}

type paymentResponse struct {
	ID            uuid.UUID          `json:"id"`
	AmountMinor   int64              `json:"amount_minor"`
	Amount        string             `json:"amount"`
	Mode          ledger.PaymentMode `json:"mode"`
	ReceiptNumber string             `json:"receipt_number"`
	Remarks       string             `json:"remarks,omitempty"`
	PaymentDate   time.Time          `json:"payment_date"`
}

type feeDetailResponse struct {
	Fee          feeResponse           `json:"fee"`
	Installments []installmentResponse `json:"installments"`
	Payments     []paymentResponse     `json:"payments"`
}

type receiptResponse struct {
	ReceiptNumber  string                `json:"receipt_number"`
	Payment        paymentResponse       `json:"payment"`
	Fee            feeResponse           `json:"fee"`
	Installments   []installmentResponse `json:"installments"`
	Voucher        *voucherResponse      `json:"voucher,omitempty"`
	PostingSkipped bool                  `json:"posting_skipped,omitempty"`
	PostingError   string                `json:"posting_error,omitempty"`
}

type totalsResponse struct {
	TotalAmountMinor   int64            `json:"total_amount_minor"`
	DiscountMinor      int64            `json:"discount_minor"`
	PaidAmountMinor    int64            `json:"paid_amount_minor"`
	PendingAmountMinor int64            `json:"pending_amount_minor"`
	PendingAmount      string           `json:"pending_amount"`
	Status             ledger.FeeStatus `json:"status"`
}

type itemErrorResponse struct {
	StudentID uuid.UUID `json:"student_id"`
	Error     string    `json:"error"`
}

type bulkResponse struct {
	Created []feeDetailResponse `json:"created"`
	Skipped []uuid.UUID         `json:"skipped"`
	Failed  []itemErrorResponse `json:"failed"`
}

type studentSummaryResponse struct {
	StudentID uuid.UUID      `json:"student_id"`
	Name      string         `json:"name"`
	Totals    totalsResponse `json:"totals"`
	Fees      []feeResponse  `json:"fees"`
}

type classSummaryResponse struct {
	ClassID  uuid.UUID                `json:"class_id"`
	Students []studentSummaryResponse `json:"students"`
	Totals   totalsResponse           `json:"totals"`
}

type reconcileResponse struct {
	StudentFeeID          uuid.UUID `json:"student_fee_id"`
	PaidBeforeMinor       int64     `json:"paid_before_minor"`
	PaidAfterMinor        int64     `json:"paid_after_minor"`
	FeeCorrected          bool      `json:"fee_corrected"`
	InstallmentsCorrected int       `json:"installments_corrected"`
	VouchersPosted        []string  `json:"vouchers_posted"`
	PostingErrors         []string  `json:"posting_errors,omitempty"`
	Changed               bool      `json:"changed"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Server) toFeeResponse(f ledger.StudentFee) feeResponse {
	return feeResponse{
		ID:                 f.ID,
		StudentID:          f.StudentID,
		FeeCategoryID:      f.FeeCategoryID,
		TotalAmountMinor:   f.TotalAmount,
		TotalAmount:        s.decimal(f.TotalAmount),
		DiscountMinor:      f.Discount,
		Discount:           s.decimal(f.Discount),
		PaidAmountMinor:    f.PaidAmount,
		PaidAmount:         s.decimal(f.PaidAmount),
		PendingAmountMinor: f.PendingAmount,
		PendingAmount:      s.decimal(f.PendingAmount),
		Status:             f.Status,
		DueDate:            optionalTime(f.DueDate),
		Version:            f.Version,
	}
}

func (s *Server) toInstallments(insts []ledger.Installment) []installmentResponse {
	out := make([]installmentResponse, 0, len(insts))
	for _, in := range insts {
		out = append(out, installmentResponse{
			ID:          in.ID,
			AmountMinor: in.Amount,
			Amount:      s.decimal(in.Amount),
			DueDate:     optionalTime(in.DueDate),
			Order:       in.Order,
			Status:      in.Status,
		})
	}
	return out
}

func (s *Server) toPaymentResponse(p ledger.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		AmountMinor:   p.Amount,
		Amount:        s.decimal(p.Amount),
		Mode:          p.Mode,
		ReceiptNumber: p.ReceiptNumber,
		Remarks:       p.Remarks,
		PaymentDate:   p.PaymentDate,
	}
}

func (s *Server) toDetailResponse(d fee.Detail) feeDetailResponse {
	out := feeDetailResponse{
		Fee:          s.toFeeResponse(d.Fee),
		Installments: s.toInstallments(d.Installments),
		Payments:     make([]paymentResponse, 0, len(d.Payments)),
	}
	for _, p := range d.Payments {
		out.Payments = append(out.Payments, s.toPaymentResponse(p))
	}
	return out
}

func (s *Server) toTotals(t ledger.FeeTotals) totalsResponse {
	return totalsResponse{
		TotalAmountMinor:   t.TotalAmount,
		DiscountMinor:      t.Discount,
		PaidAmountMinor:    t.PaidAmount,
		PendingAmountMinor: t.PendingAmount,
		PendingAmount:      s.decimal(t.PendingAmount),
		Status:             t.Status,
	}
}

// resolveTerms converts the request amounts into minor units.
func (s *Server) resolveTerms(t feeTerms) (total, discount int64, plan []fee.InstallmentInput, err error) {
	if total, err = s.minorUnits("total_amount", t.TotalAmountMinor, t.TotalAmount); err != nil {
		return 0, 0, nil, err
	}
	if discount, err = s.minorUnits("discount", t.DiscountMinor, t.Discount); err != nil {
		return 0, 0, nil, err
	}
	for _, in := range t.Installments {
		amt, err := s.minorUnits("installments.amount", in.AmountMinor, in.Amount)
		if err != nil {
			return 0, 0, nil, err
		}
		plan = append(plan, fee.InstallmentInput{Amount: amt, DueDate: in.DueDate.Time, Order: in.Order})
	}
	return total, discount, plan, nil
}

func (s *Server) postFee(w http.ResponseWriter, r *http.Request) {
	var req postFeeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	total, discount, plan, err := s.resolveTerms(req.feeTerms)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d, err := s.fees.AssignFee(r.Context(), fee.AssignInput{
		StudentID:    req.StudentID,
		CategoryID:   req.CategoryID,
		TotalAmount:  total,
		Discount:     discount,
		DueDate:      req.DueDate.Time,
		Installments: plan,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, s.toDetailResponse(d))
}

func (s *Server) postFeesBulk(w http.ResponseWriter, r *http.Request) {
	var req postFeesBulkRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	total, discount, plan, err := s.resolveTerms(req.feeTerms)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.fees.BulkAssignFee(r.Context(), fee.BulkAssignInput{
		GradeID:      req.GradeID,
		CategoryID:   req.CategoryID,
		TotalAmount:  total,
		Discount:     discount,
		DueDate:      req.DueDate.Time,
		Installments: plan,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := bulkResponse{
		Created: make([]feeDetailResponse, 0, len(res.Created)),
		Skipped: res.Skipped,
		Failed:  make([]itemErrorResponse, 0, len(res.Failed)),
	}
	if out.Skipped == nil {
		out.Skipped = []uuid.UUID{}
	}
	for _, d := range res.Created {
		out.Created = append(out.Created, s.toDetailResponse(d))
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, itemErrorResponse{StudentID: f.StudentID, Error: f.Err.Error()})
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getFee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := s.fees.GetStudentFee(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, s.toDetailResponse(d))
}

func (s *Server) deleteFee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.fees.RemoveStudentFee(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req postPaymentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	amt, err := s.minorUnits("amount", req.AmountMinor, req.Amount)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rc, err := s.fees.RecordPayment(r.Context(), fee.PaymentInput{
		StudentFeeID: id,
		Amount:       amt,
		Mode:         ledger.PaymentMode(upper(string(req.Mode))),
		Remarks:      req.Remarks,
		PaymentDate:  req.PaymentDate.Time,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := receiptResponse{
		ReceiptNumber:  rc.ReceiptNumber,
		Payment:        s.toPaymentResponse(rc.Payment),
		Fee:            s.toFeeResponse(rc.Fee),
		Installments:   s.toInstallments(rc.Installments),
		PostingSkipped: rc.PostingSkipped,
		PostingError:   rc.PostingError,
	}
	if rc.Voucher != nil {
		v := s.toVoucherResponse(*rc.Voucher)
		out.Voucher = &v
	}
	toJSON(w, http.StatusCreated, out)
}

func (s *Server) reconcileFee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.fees.Reconcile(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	posted := res.VouchersPosted
	if posted == nil {
		posted = []string{}
	}
	toJSON(w, http.StatusOK, reconcileResponse{
		StudentFeeID:          res.StudentFeeID,
		PaidBeforeMinor:       res.PaidBefore,
		PaidAfterMinor:        res.PaidAfter,
		FeeCorrected:          res.FeeCorrected,
		InstallmentsCorrected: res.InstallmentsCorrected,
		VouchersPosted:        posted,
		PostingErrors:         res.PostingErrors,
		Changed:               res.Changed(),
	})
}

func (s *Server) listStudentFees(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	fs, err := s.fees.ListStudentFees(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]feeResponse, 0, len(fs))
	for _, f := range fs {
		out = append(out, s.toFeeResponse(f))
	}
	toJSON(w, http.StatusOK, map[string]any{
		"student_id": id,
		"fees":       out,
		"totals":     s.toTotals(ledger.SummarizeFees(fs)),
	})
}

func (s *Server) classFeeSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sum, err := s.fees.ClassFeeSummary(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := classSummaryResponse{
		ClassID:  sum.ClassID,
		Students: make([]studentSummaryResponse, 0, len(sum.Students)),
		Totals:   s.toTotals(sum.Totals),
	}
	for _, st := range sum.Students {
		fees := make([]feeResponse, 0, len(st.Fees))
		for _, f := range st.Fees {
			fees = append(fees, s.toFeeResponse(f))
		}
		out.Students = append(out.Students, studentSummaryResponse{
			StudentID: st.Student.ID,
			Name:      st.Student.Name,
			Totals:    s.toTotals(st.Totals),
			Fees:      fees,
		})
	}
	toJSON(w, http.StatusOK, out)
}
