package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/ledger"
)

type postGroupRequest struct {
	Name     string               `json:"name"`
	Category ledger.GroupCategory `json:"category"`
}

type groupResponse struct {
	ID       uuid.UUID            `json:"id"`
	Name     string               `json:"name"`
	Category ledger.GroupCategory `json:"category"`
}

type postLedgerRequest struct {
	Code                string      `json:"code"`
	Name                string      `json:"name"`
	GroupID             uuid.UUID   `json:"group_id"`
	OpeningBalanceMinor *int64      `json:"opening_balance_minor,omitempty"`
	OpeningBalance      string      `json:"opening_balance,omitempty"`
	OpeningSide         ledger.Side `json:"opening_side,omitempty"`
}

type ledgerResponse struct {
	ID                  uuid.UUID      `json:"id"`
	Code                string         `json:"code"`
	Name                string         `json:"name"`
	GroupID             uuid.UUID      `json:"group_id"`
	OpeningBalanceMinor int64          `json:"opening_balance_minor"`
	OpeningBalance      string         `json:"opening_balance"`
	OpeningSide         ledger.Side    `json:"opening_side"`
	Group               *groupResponse `json:"group,omitempty"`
	NormalSide          ledger.Side    `json:"normal_side,omitempty"`
}

func toGroupResponse(g ledger.LedgerGroup) groupResponse {
	return groupResponse{ID: g.ID, Name: g.Name, Category: g.Category}
}

func (s *Server) toLedgerResponse(l ledger.Ledger) ledgerResponse {
	return ledgerResponse{
		ID:                  l.ID,
		Code:                l.Code,
		Name:                l.Name,
		GroupID:             l.GroupID,
		OpeningBalanceMinor: l.OpeningBalance,
		OpeningBalance:      s.decimal(l.OpeningBalance),
		OpeningSide:         l.OpeningSide,
	}
}

func (s *Server) postGroup(w http.ResponseWriter, r *http.Request) {
	var req postGroupRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	g, err := s.chart.CreateGroup(r.Context(), req.Name, ledger.GroupCategory(upper(string(req.Category))))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toGroupResponse(g))
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	gs, err := s.chart.ListGroups(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]groupResponse, 0, len(gs))
	for _, g := range gs {
		out = append(out, toGroupResponse(g))
	}
	toJSON(w, http.StatusOK, map[string]any{"groups": out})
}

func (s *Server) postLedger(w http.ResponseWriter, r *http.Request) {
	var req postLedgerRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	opening, err := s.minorUnits("opening_balance", req.OpeningBalanceMinor, req.OpeningBalance)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	l, err := s.chart.CreateLedger(r.Context(), ledger.Ledger{
		Code:           req.Code,
		Name:           req.Name,
		GroupID:        req.GroupID,
		OpeningBalance: opening,
		OpeningSide:    ledger.Side(upper(string(req.OpeningSide))),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, s.toLedgerResponse(l))
}

func (s *Server) listLedgers(w http.ResponseWriter, r *http.Request) {
	ls, err := s.chart.ListLedgers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]ledgerResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, s.toLedgerResponse(l))
	}
	toJSON(w, http.StatusOK, map[string]any{"ledgers": out})
}

func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.chart.Classify(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := s.toLedgerResponse(c.Ledger)
	g := toGroupResponse(c.Group)
	resp.Group = &g
	resp.NormalSide = c.NormalSide()
	toJSON(w, http.StatusOK, resp)
}
