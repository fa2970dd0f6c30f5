// Package memory provides an in-memory store used for development and tests.
// Every write is a single step, so services run their saga paths against it;
// FailNext injects a failure into one step to exercise compensations.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/ledger"
)

// Op names a single write step that FailNext can fail.
type Op string

const (
	OpNextSequence         Op = "next_sequence"
	OpInsertVoucher        Op = "insert_voucher"
	OpInsertVoucherEntries Op = "insert_voucher_entries"
	OpDeleteVoucher        Op = "delete_voucher"
	OpInsertStudentFee     Op = "insert_student_fee"
	OpInsertInstallments   Op = "insert_installments"
	OpDeleteStudentFee     Op = "delete_student_fee"
	OpUpdateStudentFee     Op = "update_student_fee"
	OpUpdateInstallments   Op = "update_installments"
	OpInsertPayment        Op = "insert_payment"
	OpDeletePayment        Op = "delete_payment"
)

type feeKey struct {
	student  uuid.UUID
	category uuid.UUID
}

// Store is an in-memory implementation of every repository and writer the
// services use. It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu sync.RWMutex

	groups  map[uuid.UUID]ledger.LedgerGroup
	ledgers map[uuid.UUID]ledger.Ledger

	vouchers       map[uuid.UUID]ledger.Voucher
	entries        map[uuid.UUID][]ledger.VoucherEntry
	voucherByRef   map[string]uuid.UUID
	voucherByNum   map[string]uuid.UUID
	fees           map[uuid.UUID]ledger.StudentFee
	feeByKey       map[feeKey]uuid.UUID
	installments   map[uuid.UUID][]ledger.Installment
	payments       map[uuid.UUID]ledger.Payment
	paymentsByFee  map[uuid.UUID][]uuid.UUID
	paymentReceipt map[string]uuid.UUID
	sequences      map[string]int64

	students   map[uuid.UUID]ledger.Student
	categories map[uuid.UUID]ledger.FeeCategory

	faults map[Op][]error
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		groups:         make(map[uuid.UUID]ledger.LedgerGroup),
		ledgers:        make(map[uuid.UUID]ledger.Ledger),
		vouchers:       make(map[uuid.UUID]ledger.Voucher),
		entries:        make(map[uuid.UUID][]ledger.VoucherEntry),
		voucherByRef:   make(map[string]uuid.UUID),
		voucherByNum:   make(map[string]uuid.UUID),
		fees:           make(map[uuid.UUID]ledger.StudentFee),
		feeByKey:       make(map[feeKey]uuid.UUID),
		installments:   make(map[uuid.UUID][]ledger.Installment),
		payments:       make(map[uuid.UUID]ledger.Payment),
		paymentsByFee:  make(map[uuid.UUID][]uuid.UUID),
		paymentReceipt: make(map[string]uuid.UUID),
		sequences:      make(map[string]int64),
		students:       make(map[uuid.UUID]ledger.Student),
		categories:     make(map[uuid.UUID]ledger.FeeCategory),
		faults:         make(map[Op][]error),
	}
}

// SeedStudent upserts a roster record.
func (s *Store) SeedStudent(_ context.Context, st ledger.Student) error {
	s.mu.Lock()
	s.students[st.ID] = st
	s.mu.Unlock()
	return nil
}

// SeedFeeCategory upserts a fee category.
func (s *Store) SeedFeeCategory(_ context.Context, c ledger.FeeCategory) error {
	s.mu.Lock()
	s.categories[c.ID] = c
	s.mu.Unlock()
	return nil
}

// FailNext makes the next call of op return err. Calls queue up per op.
func (s *Store) FailNext(op Op, err error) {
	s.mu.Lock()
	s.faults[op] = append(s.faults[op], err)
	s.mu.Unlock()
}

// fault pops the next injected failure for op. Callers hold the write lock.
func (s *Store) fault(op Op) error {
	q := s.faults[op]
	if len(q) == 0 {
		return nil
	}
	s.faults[op] = q[1:]
	return q[0]
}

// NextSequence returns the next value of the named counter, starting at 1.
func (s *Store) NextSequence(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpNextSequence); err != nil {
		return 0, err
	}
	s.sequences[name]++
	return s.sequences[name], nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
