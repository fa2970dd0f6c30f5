package report

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/metrics"
)

// Repo defines the read-only data the reports need.
type Repo interface {
	ListGroups(ctx context.Context) ([]ledger.LedgerGroup, error)
	ListLedgers(ctx context.Context) ([]ledger.Ledger, error)
	ListVoucherEntries(ctx context.Context) ([]ledger.VoucherEntry, error)
}

type Service interface {
	TrialBalance(ctx context.Context) (TrialBalance, error)
	ProfitAndLoss(ctx context.Context) (ProfitAndLoss, error)
	BalanceSheet(ctx context.Context) (BalanceSheet, error)
}

type service struct {
	repo Repo
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	snap  Snapshot
	at    time.Time
}

// New returns a report service. A positive ttl reuses a loaded snapshot for
// that long; concurrent loads are coalesced either way.
func New(repo Repo, ttl time.Duration) Service {
	return &service{repo: repo, ttl: ttl, now: time.Now}
}

func (s *service) TrialBalance(ctx context.Context) (TrialBalance, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(snap), nil
}

func (s *service) ProfitAndLoss(ctx context.Context) (ProfitAndLoss, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(snap), nil
}

func (s *service) BalanceSheet(ctx context.Context) (BalanceSheet, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(snap), nil
}

func (s *service) snapshot(ctx context.Context) (Snapshot, error) {
	if s.ttl > 0 {
		s.mu.Lock()
		if !s.at.IsZero() && s.now().Sub(s.at) < s.ttl {
			snap := s.snap
			s.mu.Unlock()
			metrics.ReportCache.WithLabelValues("hit").Inc()
			return snap, nil
		}
		s.mu.Unlock()
		metrics.ReportCache.WithLabelValues("miss").Inc()
	}
	// The load is shared by every coalesced caller, so one caller's
	// cancellation must not fail the others.
	v, err, _ := s.group.Do("snapshot", func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (s *service) load(ctx context.Context) (Snapshot, error) {
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	ledgers, err := s.repo.ListLedgers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	entries, err := s.repo.ListVoucherEntries(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Groups: groups, Ledgers: ledgers, Entries: entries}
	if s.ttl > 0 {
		s.mu.Lock()
		s.snap, s.at = snap, s.now()
		s.mu.Unlock()
	}
	return snap, nil
}
