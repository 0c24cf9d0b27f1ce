package quiz

import (
	"context"
	"database/sql"
	"errors"
)

// SQLCertificateStore implements CertificateStore. The UNIQUE(course_id,
// user_id) constraint is the authority on at-most-one issuance; a duplicate
// insert surfaces as ErrConflict so the evaluator can return the winner.
type SQLCertificateStore struct {
	db *sql.DB
}

func NewSQLCertificateStore(db *sql.DB) *SQLCertificateStore {
	return &SQLCertificateStore{db: db}
}

func (s *SQLCertificateStore) Create(ctx context.Context, c Certificate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO certificates (id, course_id, user_id, certificate_code, generated_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.CourseID, c.UserID, c.CertificateCode, c.GeneratedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *SQLCertificateStore) GetByCourseUser(ctx context.Context, courseID, userID string) (Certificate, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, user_id, certificate_code, generated_at
		   FROM certificates WHERE course_id=$1 AND user_id=$2`, courseID, userID)
	return scanCertificate(row)
}

func (s *SQLCertificateStore) GetByCode(ctx context.Context, code string) (Certificate, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, user_id, certificate_code, generated_at
		   FROM certificates WHERE certificate_code=$1`, code)
	return scanCertificate(row)
}

func scanCertificate(row *sql.Row) (Certificate, bool, error) {
	var c Certificate
	if err := row.Scan(&c.ID, &c.CourseID, &c.UserID, &c.CertificateCode, &c.GeneratedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Certificate{}, false, nil
		}
		return Certificate{}, false, err
	}
	return c, true, nil
}
