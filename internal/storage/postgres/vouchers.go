package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/meta"
)

const voucherColumns = `id, number, date, type, narration, total_amount, coalesce(reference, ''), metadata`

// CreateVoucher inserts the header and its entries in one transaction.
func (s *Store) CreateVoucher(ctx context.Context, v ledger.Voucher) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertVoucher(ctx, tx, v); err != nil {
			return err
		}
		return insertEntries(ctx, tx, v.ID, v.Entries)
	})
}

// InsertVoucher stores the header only.
func (s *Store) InsertVoucher(ctx context.Context, v ledger.Voucher) error {
	return mapErr(insertVoucher(ctx, s.pool, v))
}

func (s *Store) InsertVoucherEntries(ctx context.Context, voucherID uuid.UUID, entries []ledger.VoucherEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return insertEntries(ctx, tx, voucherID, entries)
	})
}

// DeleteVoucher removes the header; entries cascade. A missing voucher is not an error.
func (s *Store) DeleteVoucher(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `delete from vouchers where id = $1`, id)
	return err
}

func (s *Store) GetVoucher(ctx context.Context, id uuid.UUID) (ledger.Voucher, error) {
	vs, err := s.queryVouchers(ctx, `select `+voucherColumns+` from vouchers where id = $1`, id)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if len(vs) == 0 {
		return ledger.Voucher{}, errs.NotFound("voucher", id.String())
	}
	return vs[0], nil
}

func (s *Store) VoucherByReference(ctx context.Context, ref string) (ledger.Voucher, bool, error) {
	vs, err := s.queryVouchers(ctx, `select `+voucherColumns+` from vouchers where reference = $1`, ref)
	if err != nil || len(vs) == 0 {
		return ledger.Voucher{}, false, err
	}
	return vs[0], true, nil
}

func (s *Store) ListVouchers(ctx context.Context) ([]ledger.Voucher, error) {
	return s.queryVouchers(ctx, `select `+voucherColumns+` from vouchers order by number`)
}

// ListVoucherEntries returns every persisted entry, for reporting.
func (s *Store) ListVoucherEntries(ctx context.Context) ([]ledger.VoucherEntry, error) {
	rows, err := s.pool.Query(ctx, `
		select id, voucher_id, ledger_id, amount, side from voucher_entries
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.VoucherEntry, 0)
	for rows.Next() {
		var e ledger.VoucherEntry
		if err := rows.Scan(&e.ID, &e.VoucherID, &e.LedgerID, &e.Amount, &e.Side); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// queryVouchers loads headers, then their entries in one round trip.
func (s *Store) queryVouchers(ctx context.Context, sql string, args ...any) ([]ledger.Voucher, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Voucher, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var v ledger.Voucher
		var md []byte
		if err := rows.Scan(&v.ID, &v.Number, &v.Date, &v.Type, &v.Narration, &v.TotalAmount, &v.Reference, &md); err != nil {
			return nil, err
		}
		if len(md) > 0 {
			var m meta.Metadata
			if err := m.UnmarshalJSON(md); err == nil {
				v.Metadata = m
			}
		}
		v.Date = v.Date.UTC()
		out = append(out, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	entryRows, err := s.pool.Query(ctx, `
		select e.id, e.voucher_id, e.ledger_id, e.amount, e.side
		from voucher_entries e
		where e.voucher_id = any($1)
		order by e.voucher_id, e.line
	`, ids)
	if err != nil {
		return nil, err
	}
	defer entryRows.Close()
	idx := make(map[uuid.UUID]*ledger.Voucher, len(out))
	for i := range out {
		idx[out[i].ID] = &out[i]
	}
	for entryRows.Next() {
		var e ledger.VoucherEntry
		if err := entryRows.Scan(&e.ID, &e.VoucherID, &e.LedgerID, &e.Amount, &e.Side); err != nil {
			return nil, err
		}
		if v := idx[e.VoucherID]; v != nil {
			v.Entries = append(v.Entries, e)
		}
	}
	return out, entryRows.Err()
}

func insertVoucher(ctx context.Context, q querier, v ledger.Voucher) error {
	md, err := v.Metadata.MarshalStableJSON()
	if err != nil {
		return err
	}
	var ref *string
	if v.Reference != "" {
		ref = &v.Reference
	}
	_, err = q.Exec(ctx, `
		insert into vouchers (id, number, date, type, narration, total_amount, reference, metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.ID, v.Number, v.Date, v.Type, v.Narration, v.TotalAmount, ref, md)
	return err
}

func insertEntries(ctx context.Context, q querier, voucherID uuid.UUID, entries []ledger.VoucherEntry) error {
	for i, e := range entries {
		if _, err := q.Exec(ctx, `
			insert into voucher_entries (id, voucher_id, line, ledger_id, amount, side)
			values ($1, $2, $3, $4, $5, $6)
		`, e.ID, voucherID, i, e.LedgerID, e.Amount, e.Side); err != nil {
			return err
		}
	}
	return nil
}
