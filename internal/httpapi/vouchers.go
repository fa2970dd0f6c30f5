package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/meta"
	"github.com/tinoosan/feeledger/internal/service/voucher"
)

type postVoucherRequest struct {
	Date      dateOnly            `json:"date"`
	Type      ledger.VoucherType  `json:"type"`
	Narration string              `json:"narration"`
	Reference string              `json:"reference,omitempty"`
	Metadata  map[string]string   `json:"metadata,omitempty"`
	Entries   []voucherEntryInput `json:"entries"`
}

type voucherEntryInput struct {
	LedgerID    uuid.UUID   `json:"ledger_id"`
	Side        ledger.Side `json:"side"`
	AmountMinor *int64      `json:"amount_minor,omitempty"`
	Amount      string      `json:"amount,omitempty"`
}

type reverseVoucherRequest struct {
	Date dateOnly `json:"date"`
}

type voucherResponse struct {
	ID               uuid.UUID              `json:"id"`
	Number           string                 `json:"number"`
	Date             time.Time              `json:"date"`
	Type             ledger.VoucherType     `json:"type"`
	Narration        string                 `json:"narration"`
	TotalAmountMinor int64                  `json:"total_amount_minor"`
	TotalAmount      string                 `json:"total_amount"`
	Reference        string                 `json:"reference,omitempty"`
	Metadata         meta.Metadata          `json:"metadata,omitempty"`
	Entries          []voucherEntryResponse `json:"entries"`
}

type voucherEntryResponse struct {
	ID          uuid.UUID   `json:"id"`
	LedgerID    uuid.UUID   `json:"ledger_id"`
	Side        ledger.Side `json:"side"`
	AmountMinor int64       `json:"amount_minor"`
	Amount      string      `json:"amount"`
}

func (s *Server) toVoucherResponse(v ledger.Voucher) voucherResponse {
	out := voucherResponse{
		ID:               v.ID,
		Number:           v.Number,
		Date:             v.Date,
		Type:             v.Type,
		Narration:        v.Narration,
		TotalAmountMinor: v.TotalAmount,
		TotalAmount:      s.decimal(v.TotalAmount),
		Reference:        v.Reference,
		Metadata:         v.Metadata,
		Entries:          make([]voucherEntryResponse, 0, len(v.Entries)),
	}
	for _, e := range v.Entries {
		out.Entries = append(out.Entries, voucherEntryResponse{
			ID:          e.ID,
			LedgerID:    e.LedgerID,
			Side:        e.Side,
			AmountMinor: e.Amount,
			Amount:      s.decimal(e.Amount),
		})
	}
	return out
}

func (s *Server) postVoucher(w http.ResponseWriter, r *http.Request) {
	var req postVoucherRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	in := voucher.Input{
		Date:      req.Date.Time,
		Type:      ledger.VoucherType(upper(string(req.Type))),
		Narration: req.Narration,
		Reference: req.Reference,
		Metadata:  meta.New(req.Metadata),
		Entries:   make([]voucher.EntryInput, 0, len(req.Entries)),
	}
	if in.Type == "" {
		in.Type = ledger.VoucherJournal
	}
	for _, e := range req.Entries {
		amt, err := s.minorUnits("amount", e.AmountMinor, e.Amount)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		in.Entries = append(in.Entries, voucher.EntryInput{
			LedgerID: e.LedgerID,
			Amount:   amt,
			Side:     ledger.Side(upper(string(e.Side))),
		})
	}
	v, err := s.vouchers.Post(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, s.toVoucherResponse(v))
}

func (s *Server) listVouchers(w http.ResponseWriter, r *http.Request) {
	vs, err := s.vouchers.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]voucherResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, s.toVoucherResponse(v))
	}
	toJSON(w, http.StatusOK, map[string]any{"vouchers": out})
}

func (s *Server) getVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := s.vouchers.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, s.toVoucherResponse(v))
}

func (s *Server) reverseVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reverseVoucherRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	v, err := s.vouchers.Reverse(r.Context(), id, req.Date.Time)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, s.toVoucherResponse(v))
}
