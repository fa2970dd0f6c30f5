package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
)

func (s *Store) Student(_ context.Context, id uuid.UUID) (ledger.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return ledger.Student{}, errs.NotFound("student", id.String())
	}
	return st, nil
}

func (s *Store) StudentsByGrade(_ context.Context, gradeID uuid.UUID) ([]ledger.Student, error) {
	return s.studentsWhere(func(st ledger.Student) bool { return st.GradeID == gradeID }), nil
}

func (s *Store) StudentsByClass(_ context.Context, classID uuid.UUID) ([]ledger.Student, error) {
	return s.studentsWhere(func(st ledger.Student) bool { return st.ClassID == classID }), nil
}

func (s *Store) studentsWhere(keep func(ledger.Student) bool) []ledger.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Student
	for _, st := range s.students {
		if keep(st) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *Store) FeeCategory(_ context.Context, id uuid.UUID) (ledger.FeeCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return ledger.FeeCategory{}, errs.NotFound("fee category", id.String())
	}
	return c, nil
}
