package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/ledger"
)

func (s *Store) Student(ctx context.Context, id uuid.UUID) (ledger.Student, error) {
	var st ledger.Student
	err := s.pool.QueryRow(ctx, `
		select id, name, class_id, grade_id from students where id = $1
	`, id).Scan(&st.ID, &st.Name, &st.ClassID, &st.GradeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Student{}, errs.NotFound("student", id.String())
	}
	return st, err
}

func (s *Store) StudentsByGrade(ctx context.Context, gradeID uuid.UUID) ([]ledger.Student, error) {
	return s.queryStudents(ctx, `
		select id, name, class_id, grade_id from students where grade_id = $1 order by name, id
	`, gradeID)
}

func (s *Store) StudentsByClass(ctx context.Context, classID uuid.UUID) ([]ledger.Student, error) {
	return s.queryStudents(ctx, `
		select id, name, class_id, grade_id from students where class_id = $1 order by name, id
	`, classID)
}

func (s *Store) queryStudents(ctx context.Context, sql string, args ...any) ([]ledger.Student, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Student, 0)
	for rows.Next() {
		var st ledger.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.ClassID, &st.GradeID); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) FeeCategory(ctx context.Context, id uuid.UUID) (ledger.FeeCategory, error) {
	var c ledger.FeeCategory
	err := s.pool.QueryRow(ctx, `
		select id, name, base_amount, grade_id from fee_categories where id = $1
	`, id).Scan(&c.ID, &c.Name, &c.BaseAmount, &c.GradeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.FeeCategory{}, errs.NotFound("fee category", id.String())
	}
	return c, err
}

// SeedStudent upserts a roster record; used by the dev seed.
func (s *Store) SeedStudent(ctx context.Context, st ledger.Student) error {
	_, err := s.pool.Exec(ctx, `
		insert into students (id, name, class_id, grade_id) values ($1, $2, $3, $4)
		on conflict (id) do update set name = excluded.name, class_id = excluded.class_id, grade_id = excluded.grade_id
	`, st.ID, st.Name, st.ClassID, st.GradeID)
	return err
}

// SeedFeeCategory upserts a fee category; used by the dev seed.
func (s *Store) SeedFeeCategory(ctx context.Context, c ledger.FeeCategory) error {
	_, err := s.pool.Exec(ctx, `
		insert into fee_categories (id, name, base_amount, grade_id) values ($1, $2, $3, $4)
		on conflict (id) do update set name = excluded.name, base_amount = excluded.base_amount, grade_id = excluded.grade_id
	`, c.ID, c.Name, c.BaseAmount, c.GradeID)
	return err
}
