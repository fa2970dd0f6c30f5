package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
)

func (s *Store) InsertVoucher(_ context.Context, v ledger.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpInsertVoucher); err != nil {
		return err
	}
	if _, ok := s.vouchers[v.ID]; ok {
		return errs.Conflict("voucher already exists")
	}
	if _, ok := s.voucherByNum[v.Number]; ok {
		return errs.Conflict("voucher number already used")
	}
	if v.Reference != "" {
		if _, ok := s.voucherByRef[v.Reference]; ok {
			return errs.Conflict("voucher reference already used")
		}
		s.voucherByRef[v.Reference] = v.ID
	}
	v.Entries = nil
	v.Metadata = v.Metadata.Clone()
	s.vouchers[v.ID] = v
	s.voucherByNum[v.Number] = v.ID
	return nil
}

func (s *Store) InsertVoucherEntries(_ context.Context, voucherID uuid.UUID, entries []ledger.VoucherEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpInsertVoucherEntries); err != nil {
		return err
	}
	if _, ok := s.vouchers[voucherID]; !ok {
		return errs.NotFound("voucher", voucherID.String())
	}
	for _, e := range entries {
		if _, ok := s.ledgers[e.LedgerID]; !ok {
			return errs.NotFound("ledger", e.LedgerID.String())
		}
	}
	out := make([]ledger.VoucherEntry, len(entries))
	copy(out, entries)
	for i := range out {
		out[i].VoucherID = voucherID
	}
	s.entries[voucherID] = append(s.entries[voucherID], out...)
	return nil
}

func (s *Store) DeleteVoucher(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpDeleteVoucher); err != nil {
		return err
	}
	v, ok := s.vouchers[id]
	if !ok {
		return nil
	}
	delete(s.vouchers, id)
	delete(s.entries, id)
	delete(s.voucherByNum, v.Number)
	if v.Reference != "" {
		delete(s.voucherByRef, v.Reference)
	}
	return nil
}

func (s *Store) GetVoucher(_ context.Context, id uuid.UUID) (ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[id]
	if !ok {
		return ledger.Voucher{}, errs.NotFound("voucher", id.String())
	}
	return s.withEntries(v), nil
}

func (s *Store) VoucherByReference(_ context.Context, ref string) (ledger.Voucher, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.voucherByRef[ref]
	if !ok {
		return ledger.Voucher{}, false, nil
	}
	return s.withEntries(s.vouchers[id]), true, nil
}

func (s *Store) ListVouchers(_ context.Context) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		out = append(out, s.withEntries(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// ListVoucherEntries returns every persisted entry, for reporting.
func (s *Store) ListVoucherEntries(_ context.Context) ([]ledger.VoucherEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.VoucherEntry
	for _, es := range s.entries {
		out = append(out, es...)
	}
	return out, nil
}

// withEntries copies v with its entries attached. Callers hold the lock.
func (s *Store) withEntries(v ledger.Voucher) ledger.Voucher {
	es := s.entries[v.ID]
	v.Entries = make([]ledger.VoucherEntry, len(es))
	copy(v.Entries, es)
	v.Metadata = v.Metadata.Clone()
	return v
}
