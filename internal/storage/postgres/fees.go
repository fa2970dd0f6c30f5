package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
)

// ErrVersionMismatch is returned when an update carries a stale version.
var ErrVersionMismatch = errs.Conflict("student fee was modified concurrently")

const feeColumns = `id, student_id, fee_category_id, total_amount, discount, paid_amount,
	pending_amount, status, due_date, version`

// CreateStudentFee inserts the fee and its installment plan in one transaction.
func (s *Store) CreateStudentFee(ctx context.Context, f ledger.StudentFee, insts []ledger.Installment) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertFee(ctx, tx, f); err != nil {
			return err
		}
		return insertInstallments(ctx, tx, f.ID, insts)
	})
}

// ApplyPayment records p, stores f under the version check and writes the
// installment statuses, all or nothing.
func (s *Store) ApplyPayment(ctx context.Context, p ledger.Payment, f ledger.StudentFee, expected int64, insts []ledger.Installment) (ledger.StudentFee, error) {
	var out ledger.StudentFee
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertPayment(ctx, tx, p); err != nil {
			return err
		}
		var err error
		if out, err = updateFee(ctx, tx, f, expected); err != nil {
			return err
		}
		return updateInstallments(ctx, tx, insts)
	})
	if err != nil {
		return ledger.StudentFee{}, err
	}
	return out, nil
}

func (s *Store) InsertStudentFee(ctx context.Context, f ledger.StudentFee) error {
	return mapErr(insertFee(ctx, s.pool, f))
}

func (s *Store) InsertInstallments(ctx context.Context, feeID uuid.UUID, insts []ledger.Installment) error {
	return s.inTx(ctx, func(tx pgx.Tx) error { return insertInstallments(ctx, tx, feeID, insts) })
}

// UpdateStudentFee replaces the fee when its stored version equals expected and
// returns it with the version bumped.
func (s *Store) UpdateStudentFee(ctx context.Context, f ledger.StudentFee, expected int64) (ledger.StudentFee, error) {
	out, err := updateFee(ctx, s.pool, f, expected)
	return out, mapErr(err)
}

// UpdateInstallments writes the status of each given installment.
func (s *Store) UpdateInstallments(ctx context.Context, insts []ledger.Installment) error {
	return s.inTx(ctx, func(tx pgx.Tx) error { return updateInstallments(ctx, tx, insts) })
}

// DeleteStudentFee removes the fee; installments and payments cascade.
func (s *Store) DeleteStudentFee(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `delete from student_fees where id = $1`, id)
	return err
}

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) error {
	return mapErr(insertPayment(ctx, s.pool, p))
}

func (s *Store) DeletePayment(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `delete from payments where id = $1`, id)
	return err
}

func (s *Store) GetStudentFee(ctx context.Context, id uuid.UUID) (ledger.StudentFee, error) {
	f, err := scanFee(s.pool.QueryRow(ctx, `select `+feeColumns+` from student_fees where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.StudentFee{}, errs.NotFound("student fee", id.String())
	}
	return f, err
}

// StudentFeeFor returns the fee a student holds for a category, if any.
func (s *Store) StudentFeeFor(ctx context.Context, studentID, categoryID uuid.UUID) (ledger.StudentFee, bool, error) {
	f, err := scanFee(s.pool.QueryRow(ctx, `
		select `+feeColumns+` from student_fees where student_id = $1 and fee_category_id = $2
	`, studentID, categoryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.StudentFee{}, false, nil
	}
	if err != nil {
		return ledger.StudentFee{}, false, err
	}
	return f, true, nil
}

func (s *Store) ListStudentFeesByStudent(ctx context.Context, studentID uuid.UUID) ([]ledger.StudentFee, error) {
	return s.queryFees(ctx, `
		select `+feeColumns+` from student_fees where student_id = $1
		order by due_date nulls first, id
	`, studentID)
}

func (s *Store) ListStudentFees(ctx context.Context) ([]ledger.StudentFee, error) {
	return s.queryFees(ctx, `select `+feeColumns+` from student_fees order by due_date nulls first, id`)
}

// InstallmentsByFee returns the plan ordered by Order.
func (s *Store) InstallmentsByFee(ctx context.Context, feeID uuid.UUID) ([]ledger.Installment, error) {
	rows, err := s.pool.Query(ctx, `
		select id, student_fee_id, amount, due_date, ord, status
		from installments where student_fee_id = $1 order by ord
	`, feeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Installment, 0)
	for rows.Next() {
		var in ledger.Installment
		var due *time.Time
		if err := rows.Scan(&in.ID, &in.StudentFeeID, &in.Amount, &due, &in.Order, &in.Status); err != nil {
			return nil, err
		}
		in.DueDate = fromNull(due)
		out = append(out, in)
	}
	return out, rows.Err()
}

// PaymentsByFee returns payments in the order they were recorded.
func (s *Store) PaymentsByFee(ctx context.Context, feeID uuid.UUID) ([]ledger.Payment, error) {
	rows, err := s.pool.Query(ctx, `
		select id, student_fee_id, amount, mode, receipt_number, remarks, payment_date
		from payments where student_fee_id = $1 order by created_at, receipt_number
	`, feeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Payment, 0)
	for rows.Next() {
		var p ledger.Payment
		if err := rows.Scan(&p.ID, &p.StudentFeeID, &p.Amount, &p.Mode, &p.ReceiptNumber, &p.Remarks, &p.PaymentDate); err != nil {
			return nil, err
		}
		p.PaymentDate = p.PaymentDate.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) queryFees(ctx context.Context, sql string, args ...any) ([]ledger.StudentFee, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.StudentFee, 0)
	for rows.Next() {
		f, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFee(row pgx.Row) (ledger.StudentFee, error) {
	var f ledger.StudentFee
	var due *time.Time
	err := row.Scan(&f.ID, &f.StudentID, &f.FeeCategoryID, &f.TotalAmount, &f.Discount, &f.PaidAmount,
		&f.PendingAmount, &f.Status, &due, &f.Version)
	f.DueDate = fromNull(due)
	return f, err
}

func insertFee(ctx context.Context, q querier, f ledger.StudentFee) error {
	_, err := q.Exec(ctx, `
		insert into student_fees (`+feeColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, f.ID, f.StudentID, f.FeeCategoryID, f.TotalAmount, f.Discount, f.PaidAmount,
		f.PendingAmount, f.Status, nullTime(f.DueDate), f.Version)
	return err
}

func insertInstallments(ctx context.Context, q querier, feeID uuid.UUID, insts []ledger.Installment) error {
	for _, in := range insts {
		if _, err := q.Exec(ctx, `
			insert into installments (id, student_fee_id, amount, due_date, ord, status)
			values ($1, $2, $3, $4, $5, $6)
		`, in.ID, feeID, in.Amount, nullTime(in.DueDate), in.Order, in.Status); err != nil {
			return err
		}
	}
	return nil
}

func updateFee(ctx context.Context, q querier, f ledger.StudentFee, expected int64) (ledger.StudentFee, error) {
	out, err := scanFee(q.QueryRow(ctx, `
		update student_fees
		set total_amount = $2, discount = $3, paid_amount = $4, pending_amount = $5,
			status = $6, due_date = $7, version = version + 1
		where id = $1 and version = $8
		returning `+feeColumns,
		f.ID, f.TotalAmount, f.Discount, f.PaidAmount, f.PendingAmount, f.Status, nullTime(f.DueDate), expected))
	if !errors.Is(err, pgx.ErrNoRows) {
		return out, err
	}
	var exists bool
	if err := q.QueryRow(ctx, `select exists(select 1 from student_fees where id = $1)`, f.ID).Scan(&exists); err != nil {
		return ledger.StudentFee{}, err
	}
	if !exists {
		return ledger.StudentFee{}, errs.NotFound("student fee", f.ID.String())
	}
	return ledger.StudentFee{}, ErrVersionMismatch
}

func updateInstallments(ctx context.Context, q querier, insts []ledger.Installment) error {
	for _, in := range insts {
		tag, err := q.Exec(ctx, `
			update installments set status = $3 where id = $1 and student_fee_id = $2
		`, in.ID, in.StudentFeeID, in.Status)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.NotFound("installment", in.ID.String())
		}
	}
	return nil
}

func insertPayment(ctx context.Context, q querier, p ledger.Payment) error {
	_, err := q.Exec(ctx, `
		insert into payments (id, student_fee_id, amount, mode, receipt_number, remarks, payment_date)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.StudentFeeID, p.Amount, p.Mode, p.ReceiptNumber, p.Remarks, p.PaymentDate)
	return err
}
