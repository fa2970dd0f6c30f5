// Package chart implements the chart of accounts: ledger groups with a closed
// category, ledgers bound to exactly one group, and the stable-code lookup used
// to configure fee postings.
package chart

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/dictionary"
	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/slug"
)

type Repo interface {
	ListGroups(ctx context.Context) ([]ledger.LedgerGroup, error)
	GetGroup(ctx context.Context, id uuid.UUID) (ledger.LedgerGroup, error)
	ListLedgers(ctx context.Context) ([]ledger.Ledger, error)
	GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error)
}

type Writer interface {
	CreateGroup(ctx context.Context, g ledger.LedgerGroup) (ledger.LedgerGroup, error)
	CreateLedger(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error)
}

// Classified is a ledger together with the group that fixes its normal side.
type Classified struct {
	Ledger ledger.Ledger
	Group  ledger.LedgerGroup
}

// NormalSide is the side on which the ledger's balance grows.
func (c Classified) NormalSide() ledger.Side { return c.Group.Category.NormalSide() }

// PostingCodes names the ledgers fee receipts post to, by ledger code.
type PostingCodes struct {
	Cash      string
	Bank      string
	FeeIncome string
	ByMode    map[ledger.PaymentMode]string
}

type Service interface {
	CreateGroup(ctx context.Context, name string, category ledger.GroupCategory) (ledger.LedgerGroup, error)
	CreateLedger(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error)
	ListGroups(ctx context.Context) ([]ledger.LedgerGroup, error)
	ListLedgers(ctx context.Context) ([]ledger.Ledger, error)
	GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error)
	Classify(ctx context.Context, ledgerID uuid.UUID) (Classified, error)
	EnsureDefaultChart(ctx context.Context) error
	ResolvePostingMap(ctx context.Context, codes PostingCodes) (ledger.PostingMap, []string, error)
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) CreateGroup(ctx context.Context, name string, category ledger.GroupCategory) (ledger.LedgerGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ledger.LedgerGroup{}, errs.Invalid("name", "is required")
	}
	if !category.Valid() {
		return ledger.LedgerGroup{}, errs.Invalid("category", "must be one of ASSET, LIABILITY, EQUITY, INCOME, EXPENSE")
	}
	existing, err := s.repo.ListGroups(ctx)
	if err != nil {
		return ledger.LedgerGroup{}, err
	}
	for _, g := range existing {
		if strings.EqualFold(g.Name, name) {
			return ledger.LedgerGroup{}, ErrGroupExists
		}
	}
	return s.writer.CreateGroup(ctx, ledger.LedgerGroup{ID: uuid.New(), Name: name, Category: category})
}

// CreateLedger validates and persists a ledger. The code defaults to a slug of
// the name; the opening side defaults to the group's normal side.
func (s *service) CreateLedger(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return ledger.Ledger{}, errs.Invalid("name", "is required")
	}
	if l.Code == "" {
		l.Code = slug.FromName(l.Name)
	}
	if !slug.IsCode(l.Code) {
		return ledger.Ledger{}, errs.Invalid("code", "must match ^[a-z0-9_]{2,40}$")
	}
	if l.GroupID == uuid.Nil {
		return ledger.Ledger{}, errs.Invalid("group_id", "is required")
	}
	if l.OpeningBalance < 0 {
		return ledger.Ledger{}, errs.Invalid("opening_balance", "must be >= 0")
	}
	group, err := s.repo.GetGroup(ctx, l.GroupID)
	if err != nil {
		return ledger.Ledger{}, err
	}
	if l.OpeningSide == "" {
		l.OpeningSide = group.Category.NormalSide()
	}
	if !l.OpeningSide.Valid() {
		return ledger.Ledger{}, errs.Invalid("opening_side", "must be DEBIT or CREDIT")
	}
	existing, err := s.repo.ListLedgers(ctx)
	if err != nil {
		return ledger.Ledger{}, err
	}
	for _, other := range existing {
		if other.Code == l.Code {
			return ledger.Ledger{}, ErrCodeExists
		}
	}
	l.ID = uuid.New()
	return s.writer.CreateLedger(ctx, l)
}

func (s *service) ListGroups(ctx context.Context) ([]ledger.LedgerGroup, error) {
	out, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *service) ListLedgers(ctx context.Context) ([]ledger.Ledger, error) {
	out, err := s.repo.ListLedgers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *service) GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	if id == uuid.Nil {
		return ledger.Ledger{}, errs.Invalid("id", "is required")
	}
	return s.repo.GetLedger(ctx, id)
}

// Classify resolves a ledger's group. Consumers decide debit/credit behaviour
// from the group category, never from the ledger name.
func (s *service) Classify(ctx context.Context, ledgerID uuid.UUID) (Classified, error) {
	l, err := s.GetLedger(ctx, ledgerID)
	if err != nil {
		return Classified{}, err
	}
	g, err := s.repo.GetGroup(ctx, l.GroupID)
	if err != nil {
		return Classified{}, err
	}
	return Classified{Ledger: l, Group: g}, nil
}

// EnsureDefaultChart creates any curated group or ledger that is missing.
// Existing groups are matched by name and ledgers by code, so reruns are no-ops.
func (s *service) EnsureDefaultChart(ctx context.Context) error {
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]ledger.LedgerGroup, len(groups))
	for _, g := range groups {
		byName[strings.ToLower(g.Name)] = g
	}
	for _, def := range dictionary.DefaultGroups() {
		if _, ok := byName[strings.ToLower(def.Name)]; ok {
			continue
		}
		g, err := s.CreateGroup(ctx, def.Name, def.Category)
		if err != nil {
			return err
		}
		byName[strings.ToLower(g.Name)] = g
	}
	ledgers, err := s.repo.ListLedgers(ctx)
	if err != nil {
		return err
	}
	codes := make(map[string]struct{}, len(ledgers))
	for _, l := range ledgers {
		codes[l.Code] = struct{}{}
	}
	for _, def := range dictionary.DefaultLedgers() {
		if _, ok := codes[def.Code]; ok {
			continue
		}
		g := byName[strings.ToLower(def.Group)]
		if _, err := s.CreateLedger(ctx, ledger.Ledger{Code: def.Code, Name: def.Name, GroupID: g.ID}); err != nil {
			return err
		}
	}
	return nil
}

// ResolvePostingMap turns configured ledger codes into ids. Codes that do not
// resolve are returned so the caller can log them; they never fail the call.
func (s *service) ResolvePostingMap(ctx context.Context, codes PostingCodes) (ledger.PostingMap, []string, error) {
	ledgers, err := s.repo.ListLedgers(ctx)
	if err != nil {
		return ledger.PostingMap{}, nil, err
	}
	byCode := make(map[string]uuid.UUID, len(ledgers))
	for _, l := range ledgers {
		byCode[l.Code] = l.ID
	}
	var missing []string
	lookup := func(code string) uuid.UUID {
		if code == "" {
			return uuid.Nil
		}
		id, ok := byCode[code]
		if !ok {
			missing = append(missing, code)
		}
		return id
	}
	pm := ledger.PostingMap{
		Cash:      lookup(codes.Cash),
		Bank:      lookup(codes.Bank),
		FeeIncome: lookup(codes.FeeIncome),
		ByMode:    make(map[ledger.PaymentMode]uuid.UUID, len(codes.ByMode)),
	}
	for mode, code := range codes.ByMode {
		if id := lookup(code); id != uuid.Nil {
			pm.ByMode[mode] = id
		}
	}
	return pm, missing, nil
}

var (
	// ErrGroupExists indicates a group with the same name already exists.
	ErrGroupExists = errs.Conflict("ledger group name already exists")
	// ErrCodeExists indicates a ledger with the same code already exists.
	ErrCodeExists = errs.Conflict("ledger code already exists")
)
