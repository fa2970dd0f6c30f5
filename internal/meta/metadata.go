// Package meta holds the small string map attached to vouchers to record where
// a posting came from (a fee receipt, a reversal) without widening the schema.
package meta

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

// Well-known keys written by the services.
const (
	KeySource        = "source"
	KeyStudentFeeID  = "student_fee_id"
	KeyReceiptNumber = "receipt_number"
	KeyPaymentMode   = "payment_mode"
	KeyReversalOf    = "reversal_of"
)

// Source values.
const (
	SourceManual   = "manual"
	SourceFee      = "fee_payment"
	SourceReversal = "reversal"
)

// Metadata is a small string map with validation and stable JSON encoding.
type Metadata map[string]string

const (
	MaxPairs     = 20
	MaxKeyLen    = 64
	MaxValLen    = 256
	MaxTotalJSON = 4096
)

// New copies m into a fresh Metadata.
func New(m map[string]string) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata { return New(m) }

// Get returns the value for k.
func (m Metadata) Get(k string) (string, bool) { v, ok := m[k]; return v, ok }

// With returns a copy of m with k set to v.
func (m Metadata) With(k, v string) Metadata {
	out := m.Clone()
	out[k] = v
	return out
}

// Source returns the origin recorded on the voucher, manual when unset.
func (m Metadata) Source() string {
	if v, ok := m[KeySource]; ok && v != "" {
		return v
	}
	return SourceManual
}

// Validate enforces size limits before the map is persisted.
func (m Metadata) Validate() error {
	if len(m) > MaxPairs {
		return errors.New("metadata too many pairs")
	}
	for k, v := range m {
		if len(k) == 0 || len(k) > MaxKeyLen {
			return errors.New("metadata key too long or empty")
		}
		if len(v) > MaxValLen {
			return errors.New("metadata value too long")
		}
	}
	b, err := m.MarshalStableJSON()
	if err != nil {
		return err
	}
	if len(b) > MaxTotalJSON {
		return errors.New("metadata exceeds max json size")
	}
	return nil
}

// MarshalStableJSON returns a deterministic JSON representation with keys sorted.
func (m Metadata) MarshalStableJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, k := range keys {
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m Metadata) MarshalJSON() ([]byte, error) { return m.MarshalStableJSON() }

func (m *Metadata) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Metadata{}
		return nil
	}
	var tmp map[string]string
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*m = New(tmp)
	return nil
}
