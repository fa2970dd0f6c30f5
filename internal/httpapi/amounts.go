package httpapi

import (
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/feeledger/internal/errs"
)

// minorUnits resolves a request amount given either as minor units or as a
// decimal string in the book currency. Both absent yields zero.
func (s *Server) minorUnits(field string, minor *int64, decimal string) (int64, error) {
	if minor != nil && decimal != "" {
		return 0, errs.Invalid(field, "give either "+field+" or "+field+"_minor, not both")
	}
	if minor != nil {
		return *minor, nil
	}
	if decimal == "" {
		return 0, nil
	}
	amt, err := money.ParseAmount(s.currency, decimal)
	if err != nil {
		return 0, errs.Invalid(field, fmt.Sprintf("not a %s amount: %v", s.currency, err))
	}
	if amt.Scale() > amt.Curr().Scale() {
		return 0, errs.Invalid(field, fmt.Sprintf("more than %d decimal places", amt.Curr().Scale()))
	}
	units, ok := amt.MinorUnits()
	if !ok {
		return 0, errs.Invalid(field, "out of range")
	}
	return units, nil
}

// decimal formats minor units in the book currency, e.g. 1250 -> "12.50".
func (s *Server) decimal(units int64) string {
	amt, err := money.NewAmountFromMinorUnits(s.currency, units)
	if err != nil {
		return ""
	}
	return amt.Decimal().String()
}

// pathID parses the {id} URL parameter, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// dateOnly accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
type dateOnly struct{ time.Time }

func (d *dateOnly) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date must be a string")
	}
	s = s[1 : len(s)-1]
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}
