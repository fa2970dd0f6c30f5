// Package voucher posts balanced double-entry vouchers. A voucher and its entries
// are written all-or-nothing: in one transaction when the store supports it,
// otherwise as a header-then-entries saga that deletes the header on failure.
package voucher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/meta"
	"github.com/tinoosan/feeledger/internal/metrics"
)

// SequenceName is the store sequence voucher numbers are drawn from.
const SequenceName = "voucher"

// Repo defines read operations needed by the service.
type Repo interface {
	LedgersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Ledger, error)
	GetVoucher(ctx context.Context, id uuid.UUID) (ledger.Voucher, error)
	VoucherByReference(ctx context.Context, ref string) (ledger.Voucher, bool, error)
	ListVouchers(ctx context.Context) ([]ledger.Voucher, error)
}

// Writer defines the individual write steps of the posting saga.
type Writer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
	// InsertVoucher stores the header only. A duplicate Reference is ErrConflict.
	InsertVoucher(ctx context.Context, v ledger.Voucher) error
	InsertVoucherEntries(ctx context.Context, voucherID uuid.UUID, entries []ledger.VoucherEntry) error
	// DeleteVoucher removes the header and any entries. Deleting a missing voucher is not an error.
	DeleteVoucher(ctx context.Context, id uuid.UUID) error
}

// AtomicVoucherWriter is implemented by stores that can persist a header and its
// entries in one transaction.
type AtomicVoucherWriter interface {
	CreateVoucher(ctx context.Context, v ledger.Voucher) error
}

// EntryInput is one requested leg of a voucher.
type EntryInput struct {
	LedgerID uuid.UUID
	Amount   int64
	Side     ledger.Side
}

// Input is a voucher to post.
type Input struct {
	Date      time.Time
	Type      ledger.VoucherType
	Narration string
	// Reference, when set, makes posting idempotent: a second post with the same
	// reference returns the first voucher.
	Reference string
	Metadata  meta.Metadata
	Entries   []EntryInput
}

// Service exposes posting, lookup and reversal of vouchers.
type Service interface {
	Validate(ctx context.Context, in Input) error
	Post(ctx context.Context, in Input) (ledger.Voucher, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Voucher, error)
	ByReference(ctx context.Context, ref string) (ledger.Voucher, bool, error)
	List(ctx context.Context) ([]ledger.Voucher, error)
	Reverse(ctx context.Context, id uuid.UUID, date time.Time) (ledger.Voucher, error)
}

type service struct {
	repo   Repo
	writer Writer
	log    *slog.Logger
	now    func() time.Time
}

func New(repo Repo, writer Writer, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{repo: repo, writer: writer, log: log, now: time.Now}
}

// Validate checks shape, balance and ledger existence without writing anything.
func (s *service) Validate(ctx context.Context, in Input) error {
	if !in.Type.Valid() {
		return errs.Invalid("type", "must be one of JOURNAL, RECEIPT, PAYMENT, CONTRA")
	}
	if len(in.Entries) == 0 {
		return errs.Invalid("entries", "at least one entry is required")
	}
	if in.Metadata != nil {
		if err := in.Metadata.Validate(); err != nil {
			return errs.Invalid("metadata", err.Error())
		}
	}
	ids := make([]uuid.UUID, 0, len(in.Entries))
	var debit, credit int64
	for i, e := range in.Entries {
		if e.LedgerID == uuid.Nil {
			return fieldErr(i, "ledger_id", "is required")
		}
		if e.Amount <= 0 {
			return fieldErr(i, "amount", "must be > 0")
		}
		switch e.Side {
		case ledger.SideDebit:
			if e.Amount > math.MaxInt64-debit {
				return fieldErr(i, "amount", "debit total exceeds the largest representable amount")
			}
			debit += e.Amount
		case ledger.SideCredit:
			if e.Amount > math.MaxInt64-credit {
				return fieldErr(i, "amount", "credit total exceeds the largest representable amount")
			}
			credit += e.Amount
		default:
			return fieldErr(i, "side", "must be DEBIT or CREDIT")
		}
		ids = append(ids, e.LedgerID)
	}
	if debit != credit {
		return &errs.UnbalancedVoucherError{Debit: debit, Credit: credit}
	}

	found, err := s.repo.LedgersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return errs.NotFound("ledger", id.String())
		}
	}
	return nil
}

func (s *service) Post(ctx context.Context, in Input) (ledger.Voucher, error) {
	if err := s.Validate(ctx, in); err != nil {
		return ledger.Voucher{}, err
	}
	in.Reference = strings.TrimSpace(in.Reference)
	if in.Reference != "" {
		existing, ok, err := s.repo.VoucherByReference(ctx, in.Reference)
		if err != nil {
			return ledger.Voucher{}, err
		}
		if ok {
			return existing, nil
		}
	}

	seq, err := s.writer.NextSequence(ctx, SequenceName)
	if err != nil {
		return ledger.Voucher{}, &errs.PersistenceError{Op: "allocate voucher number", Err: err}
	}
	v := build(in, seq, s.now)

	if aw, ok := s.writer.(AtomicVoucherWriter); ok {
		if err := aw.CreateVoucher(ctx, v); err != nil {
			return s.existingOr(ctx, v.Reference, &errs.PersistenceError{Op: "create voucher", Err: err})
		}
	} else if err := s.postSaga(ctx, v); err != nil {
		return s.existingOr(ctx, v.Reference, err)
	}
	metrics.VouchersPosted.WithLabelValues(string(v.Type)).Inc()
	return v, nil
}

// postSaga inserts the header then the entries. Entry failure deletes the header.
func (s *service) postSaga(ctx context.Context, v ledger.Voucher) error {
	header := v
	header.Entries = nil
	if err := s.writer.InsertVoucher(ctx, header); err != nil {
		return &errs.PersistenceError{Op: "insert voucher header", Err: err}
	}
	if err := s.writer.InsertVoucherEntries(ctx, v.ID, v.Entries); err != nil {
		derr := s.writer.DeleteVoucher(ctx, v.ID)
		metrics.Compensated("post_voucher", derr)
		if derr != nil {
			s.log.ErrorContext(ctx, "voucher compensation failed",
				"voucher_id", v.ID.String(), "number", v.Number, "err", err, "compensation_err", derr)
			return &errs.InconsistentStateError{Op: "post voucher " + v.Number, Cause: err, CompensationErr: derr}
		}
		s.log.WarnContext(ctx, "voucher entries failed; header removed",
			"voucher_id", v.ID.String(), "number", v.Number, "err", err)
		return &errs.PersistenceError{Op: "insert voucher entries", Err: err}
	}
	return nil
}

// existingOr turns a duplicate-reference write error into the voucher a
// concurrent post stored first. Any other error is returned unchanged.
func (s *service) existingOr(ctx context.Context, ref string, err error) (ledger.Voucher, error) {
	if ref != "" && errors.Is(err, errs.ErrConflict) {
		if existing, ok, lerr := s.repo.VoucherByReference(ctx, ref); lerr == nil && ok {
			return existing, nil
		}
	}
	return ledger.Voucher{}, err
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Voucher, error) {
	if id == uuid.Nil {
		return ledger.Voucher{}, errs.Invalid("id", "is required")
	}
	return s.repo.GetVoucher(ctx, id)
}

func (s *service) ByReference(ctx context.Context, ref string) (ledger.Voucher, bool, error) {
	if strings.TrimSpace(ref) == "" {
		return ledger.Voucher{}, false, errs.Invalid("reference", "is required")
	}
	return s.repo.VoucherByReference(ctx, strings.TrimSpace(ref))
}

// List returns vouchers ordered by date, then number.
func (s *service) List(ctx context.Context) ([]ledger.Voucher, error) {
	out, err := s.repo.ListVouchers(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// Reverse posts a mirror of voucher id with every side flipped. Reversing twice
// returns the first reversal.
func (s *service) Reverse(ctx context.Context, id uuid.UUID, date time.Time) (ledger.Voucher, error) {
	orig, err := s.Get(ctx, id)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if date.IsZero() {
		date = s.now().UTC()
	}
	if date.Before(orig.Date) {
		return ledger.Voucher{}, errs.Invalid("date", "must not be before the original voucher date")
	}
	entries := make([]EntryInput, 0, len(orig.Entries))
	for _, e := range orig.Entries {
		entries = append(entries, EntryInput{LedgerID: e.LedgerID, Amount: e.Amount, Side: e.Side.Opposite()})
	}
	return s.Post(ctx, Input{
		Date:      date,
		Type:      orig.Type,
		Narration: fmt.Sprintf("Reversal of %s", orig.Number),
		Reference: ReversalReference(orig.Number),
		Metadata: meta.Metadata{
			meta.KeySource:     meta.SourceReversal,
			meta.KeyReversalOf: orig.ID.String(),
		},
		Entries: entries,
	})
}

// ReversalReference is the idempotency key of the reversal of voucher number.
func ReversalReference(number string) string { return "REV-" + number }

// FormatNumber renders a voucher number from its type and sequence value.
func FormatNumber(t ledger.VoucherType, seq int64) string {
	return fmt.Sprintf("%s-%06d", t.Prefix(), seq)
}

func build(in Input, seq int64, now func() time.Time) ledger.Voucher {
	date := in.Date
	if date.IsZero() {
		date = now().UTC()
	}
	v := ledger.Voucher{
		ID:        uuid.New(),
		Number:    FormatNumber(in.Type, seq),
		Date:      date,
		Type:      in.Type,
		Narration: strings.TrimSpace(in.Narration),
		Reference: in.Reference,
		Metadata:  in.Metadata.Clone(),
		Entries:   make([]ledger.VoucherEntry, 0, len(in.Entries)),
	}
	for _, e := range in.Entries {
		v.Entries = append(v.Entries, ledger.VoucherEntry{
			ID:        uuid.New(),
			VoucherID: v.ID,
			LedgerID:  e.LedgerID,
			Amount:    e.Amount,
			Side:      e.Side,
		})
		if e.Side == ledger.SideDebit {
			v.TotalAmount += e.Amount
		}
	}
	return v
}

func fieldErr(i int, field, msg string) error {
	return errs.Invalid(fmt.Sprintf("entries[%d].%s", i, field), msg)
}
