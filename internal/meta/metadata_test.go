package meta

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestWithAndSource(t *testing.T) {
	base := New(nil)
	if base.Source() != SourceManual {
		t.Fatalf("expected manual source, got %q", base.Source())
	}
	tagged := base.With(KeySource, SourceFee).With(KeyReceiptNumber, "RCPT-000001")
	if tagged.Source() != SourceFee {
		t.Fatalf("source not set: %+v", tagged)
	}
	if _, ok := base.Get(KeySource); ok {
		t.Fatalf("With must not mutate the receiver")
	}
	if v, _ := tagged.Get(KeyReceiptNumber); v != "RCPT-000001" {
		t.Fatalf("receipt number lost: %+v", tagged)
	}
}

func TestValidationLimits(t *testing.T) {
	pairs := make(map[string]string)
	for i := 0; i < MaxPairs+1; i++ {
		pairs["k"+strings.Repeat("x", i)] = "v"
	}
	if err := New(pairs).Validate(); err == nil {
		t.Fatalf("expected too many pairs")
	}
	if err := New(map[string]string{strings.Repeat("k", MaxKeyLen+1): "v"}).Validate(); err == nil {
		t.Fatalf("expected key too long")
	}
	if err := New(map[string]string{"k": strings.Repeat("v", MaxValLen+1)}).Validate(); err == nil {
		t.Fatalf("expected value too long")
	}
}

func TestStableJSONRoundtrip(t *testing.T) {
	m := New(map[string]string{KeyStudentFeeID: "2", KeyPaymentMode: "CASH"})
	b, _ := m.MarshalStableJSON()
	if string(b) != `{"payment_mode":"CASH","student_fee_id":"2"}` {
		t.Fatalf("unexpected stable json: %s", string(b))
	}
	var back Metadata
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[KeyPaymentMode] != "CASH" {
		t.Fatalf("roundtrip lost value: %+v", back)
	}
	var empty Metadata
	if err := json.Unmarshal([]byte("null"), &empty); err != nil || empty == nil {
		t.Fatalf("null should decode to empty map: %v", err)
	}
}
