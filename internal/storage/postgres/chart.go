package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
)

const ledgerColumns = `id, code, name, group_id, opening_balance, opening_side`

func (s *Store) CreateGroup(ctx context.Context, g ledger.LedgerGroup) (ledger.LedgerGroup, error) {
	_, err := s.pool.Exec(ctx, `
		insert into ledger_groups (id, name, category) values ($1, $2, $3)
	`, g.ID, g.Name, g.Category)
	if err != nil {
		return ledger.LedgerGroup{}, mapErr(err)
	}
	return g, nil
}

func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (ledger.LedgerGroup, error) {
	var g ledger.LedgerGroup
	err := s.pool.QueryRow(ctx, `
		select id, name, category from ledger_groups where id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.LedgerGroup{}, errs.NotFound("ledger group", id.String())
	}
	return g, err
}

func (s *Store) ListGroups(ctx context.Context) ([]ledger.LedgerGroup, error) {
	rows, err := s.pool.Query(ctx, `select id, name, category from ledger_groups order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.LedgerGroup, 0)
	for rows.Next() {
		var g ledger.LedgerGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Category); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) CreateLedger(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	_, err := s.pool.Exec(ctx, `
		insert into ledgers (`+ledgerColumns+`) values ($1, $2, $3, $4, $5, $6)
	`, l.ID, l.Code, l.Name, l.GroupID, l.OpeningBalance, l.OpeningSide)
	if err != nil {
		return ledger.Ledger{}, mapErr(err)
	}
	return l, nil
}

func (s *Store) GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	l, err := scanLedger(s.pool.QueryRow(ctx, `select `+ledgerColumns+` from ledgers where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Ledger{}, errs.NotFound("ledger", id.String())
	}
	return l, err
}

func (s *Store) ListLedgers(ctx context.Context) ([]ledger.Ledger, error) {
	return s.queryLedgers(ctx, `select `+ledgerColumns+` from ledgers order by code`)
}

// LedgersByIDs returns the ledgers that exist among ids; unknown ids are absent.
func (s *Store) LedgersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Ledger, error) {
	out := make(map[uuid.UUID]ledger.Ledger, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ls, err := s.queryLedgers(ctx, `select `+ledgerColumns+` from ledgers where id = any($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, l := range ls {
		out[l.ID] = l
	}
	return out, nil
}

func (s *Store) queryLedgers(ctx context.Context, sql string, args ...any) ([]ledger.Ledger, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Ledger, 0)
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLedger(row pgx.Row) (ledger.Ledger, error) {
	var l ledger.Ledger
	err := row.Scan(&l.ID, &l.Code, &l.Name, &l.GroupID, &l.OpeningBalance, &l.OpeningSide)
	return l, err
}
