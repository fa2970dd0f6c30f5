package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
)

func (s *Store) CreateGroup(_ context.Context, g ledger.LedgerGroup) (ledger.LedgerGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return ledger.LedgerGroup{}, errs.Conflict("ledger group already exists")
	}
	s.groups[g.ID] = g
	return g, nil
}

func (s *Store) GetGroup(_ context.Context, id uuid.UUID) (ledger.LedgerGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return ledger.LedgerGroup{}, errs.NotFound("ledger group", id.String())
	}
	return g, nil
}

func (s *Store) ListGroups(_ context.Context) ([]ledger.LedgerGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.LedgerGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateLedger(_ context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[l.GroupID]; !ok {
		return ledger.Ledger{}, errs.NotFound("ledger group", l.GroupID.String())
	}
	for _, other := range s.ledgers {
		if other.Code == l.Code {
			return ledger.Ledger{}, errs.Conflict("ledger code already exists")
		}
	}
	s.ledgers[l.ID] = l
	return l, nil
}

func (s *Store) GetLedger(_ context.Context, id uuid.UUID) (ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[id]
	if !ok {
		return ledger.Ledger{}, errs.NotFound("ledger", id.String())
	}
	return l, nil
}

func (s *Store) ListLedgers(_ context.Context) ([]ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Ledger, 0, len(s.ledgers))
	for _, l := range s.ledgers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// LedgersByIDs returns the ledgers that exist among ids; unknown ids are absent.
func (s *Store) LedgersByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]ledger.Ledger, len(ids))
	for _, id := range ids {
		if l, ok := s.ledgers[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}
