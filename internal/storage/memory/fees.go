package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
)

// ErrVersionMismatch is returned when an update carries a stale version.
var ErrVersionMismatch = errs.Conflict("student fee was modified concurrently")

func (s *Store) InsertStudentFee(_ context.Context, f ledger.StudentFee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpInsertStudentFee); err != nil {
		return err
	}
	k := feeKey{student: f.StudentID, category: f.FeeCategoryID}
	if _, ok := s.feeByKey[k]; ok {
		return errs.Conflict("student already holds this fee category")
	}
	if _, ok := s.fees[f.ID]; ok {
		return errs.Conflict("student fee already exists")
	}
	s.fees[f.ID] = f
	s.feeByKey[k] = f.ID
	return nil
}

func (s *Store) InsertInstallments(_ context.Context, feeID uuid.UUID, insts []ledger.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpInsertInstallments); err != nil {
		return err
	}
	if _, ok := s.fees[feeID]; !ok {
		return errs.NotFound("student fee", feeID.String())
	}
	seen := make(map[int]struct{}, len(insts)+len(s.installments[feeID]))
	for _, in := range s.installments[feeID] {
		seen[in.Order] = struct{}{}
	}
	for _, in := range insts {
		if _, dup := seen[in.Order]; dup {
			return errs.Conflict("installment order already used")
		}
		seen[in.Order] = struct{}{}
	}
	cur := append(s.installments[feeID], insts...)
	sort.SliceStable(cur, func(i, j int) bool { return cur[i].Order < cur[j].Order })
	s.installments[feeID] = cur
	return nil
}

// UpdateStudentFee replaces the fee when its stored version equals expected and
// returns it with the version bumped.
func (s *Store) UpdateStudentFee(_ context.Context, f ledger.StudentFee, expected int64) (ledger.StudentFee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpUpdateStudentFee); err != nil {
		return ledger.StudentFee{}, err
	}
	cur, ok := s.fees[f.ID]
	if !ok {
		return ledger.StudentFee{}, errs.NotFound("student fee", f.ID.String())
	}
	if cur.Version != expected {
		return ledger.StudentFee{}, ErrVersionMismatch
	}
	f.StudentID, f.FeeCategoryID = cur.StudentID, cur.FeeCategoryID
	f.Version = expected + 1
	s.fees[f.ID] = f
	return f, nil
}

// UpdateInstallments writes the status of each given installment.
func (s *Store) UpdateInstallments(_ context.Context, insts []ledger.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpUpdateInstallments); err != nil {
		return err
	}
	for _, in := range insts {
		if !s.hasInstallment(in) {
			return errs.NotFound("installment", in.ID.String())
		}
	}
	for _, in := range insts {
		cur := s.installments[in.StudentFeeID]
		for i := range cur {
			if cur[i].ID == in.ID {
				cur[i].Status = in.Status
			}
		}
	}
	return nil
}

func (s *Store) hasInstallment(in ledger.Installment) bool {
	for _, cur := range s.installments[in.StudentFeeID] {
		if cur.ID == in.ID {
			return true
		}
	}
	return false
}

func (s *Store) DeleteStudentFee(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpDeleteStudentFee); err != nil {
		return err
	}
	f, ok := s.fees[id]
	if !ok {
		return nil
	}
	for _, pid := range s.paymentsByFee[id] {
		delete(s.paymentReceipt, s.payments[pid].ReceiptNumber)
		delete(s.payments, pid)
	}
	delete(s.paymentsByFee, id)
	delete(s.installments, id)
	delete(s.feeByKey, feeKey{student: f.StudentID, category: f.FeeCategoryID})
	delete(s.fees, id)
	return nil
}

func (s *Store) InsertPayment(_ context.Context, p ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpInsertPayment); err != nil {
		return err
	}
	if _, ok := s.fees[p.StudentFeeID]; !ok {
		return errs.NotFound("student fee", p.StudentFeeID.String())
	}
	if _, ok := s.paymentReceipt[p.ReceiptNumber]; ok {
		return errs.Conflict("receipt number already used")
	}
	s.payments[p.ID] = p
	s.paymentsByFee[p.StudentFeeID] = append(s.paymentsByFee[p.StudentFeeID], p.ID)
	s.paymentReceipt[p.ReceiptNumber] = p.ID
	return nil
}

func (s *Store) DeletePayment(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpDeletePayment); err != nil {
		return err
	}
	p, ok := s.payments[id]
	if !ok {
		return nil
	}
	ids := s.paymentsByFee[p.StudentFeeID]
	for i, pid := range ids {
		if pid == id {
			s.paymentsByFee[p.StudentFeeID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	delete(s.paymentReceipt, p.ReceiptNumber)
	delete(s.payments, id)
	return nil
}

func (s *Store) GetStudentFee(_ context.Context, id uuid.UUID) (ledger.StudentFee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fees[id]
	if !ok {
		return ledger.StudentFee{}, errs.NotFound("student fee", id.String())
	}
	return f, nil
}

// StudentFeeFor returns the fee a student holds for a category, if any.
func (s *Store) StudentFeeFor(_ context.Context, studentID, categoryID uuid.UUID) (ledger.StudentFee, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.feeByKey[feeKey{student: studentID, category: categoryID}]
	if !ok {
		return ledger.StudentFee{}, false, nil
	}
	return s.fees[id], true, nil
}

func (s *Store) ListStudentFeesByStudent(_ context.Context, studentID uuid.UUID) ([]ledger.StudentFee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.StudentFee
	for _, f := range s.fees {
		if f.StudentID == studentID {
			out = append(out, f)
		}
	}
	sortFees(out)
	return out, nil
}

func (s *Store) ListStudentFees(_ context.Context) ([]ledger.StudentFee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.StudentFee, 0, len(s.fees))
	for _, f := range s.fees {
		out = append(out, f)
	}
	sortFees(out)
	return out, nil
}

// InstallmentsByFee returns the plan ordered by Order.
func (s *Store) InstallmentsByFee(_ context.Context, feeID uuid.UUID) ([]ledger.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.installments[feeID]
	out := make([]ledger.Installment, len(cur))
	copy(out, cur)
	return out, nil
}

// PaymentsByFee returns payments in the order they were recorded.
func (s *Store) PaymentsByFee(_ context.Context, feeID uuid.UUID) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.paymentsByFee[feeID]
	out := make([]ledger.Payment, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.payments[id])
	}
	return out, nil
}

func sortFees(fs []ledger.StudentFee) {
	sort.Slice(fs, func(i, j int) bool {
		if !fs[i].DueDate.Equal(fs[j].DueDate) {
			return fs[i].DueDate.Before(fs[j].DueDate)
		}
		return fs[i].ID.String() < fs[j].ID.String()
	})
}
