package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
)

// PINRepository manages persistence for enrollment identifiers.
type PINRepository struct {
	db *sqlx.DB
}

// NewPINRepository constructs a PINRepository.
func NewPINRepository(db *sqlx.DB) *PINRepository {
	return &PINRepository{db: db}
}

// IsUniqueViolation reports whether the error stems from a duplicate key.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// InsertBatch stores the provided identifiers in a single transaction. Either
// every row is inserted or none are; a duplicate pin_number rolls the whole
// batch back.
func (r *PINRepository) InsertBatch(ctx context.Context, pins []models.StudentPIN) (int, error) {
	if len(pins) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin pin insert: %w", err)
	}

	const query = `INSERT INTO student_pins (pin_number, joining_year, branch, year, section, pin_sequence, status, created_at)
        VALUES (:pin_number, :joining_year, :branch, :year, :section, :pin_sequence, :status, :created_at)`
	now := time.Now().UTC()
	for i := range pins {
		if pins[i].CreatedAt.IsZero() {
			pins[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, pins[i]); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert pin %s: %w", pins[i].PINNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit pin insert: %w", err)
	}
	return len(pins), nil
}

// FindByNumber fetches a single identifier by its pin number.
func (r *PINRepository) FindByNumber(ctx context.Context, pinNumber string) (*models.StudentPIN, error) {
	const query = `SELECT pin_number, joining_year, branch, year, section, pin_sequence, status, created_at
        FROM student_pins WHERE pin_number = $1`
	var pin models.StudentPIN
	if err := r.db.GetContext(ctx, &pin, query, pinNumber); err != nil {
		return nil, err
	}
	return &pin, nil
}

// UpdateStatus transitions an identifier to a new lifecycle status.
func (r *PINRepository) UpdateStatus(ctx context.Context, pinNumber string, status models.PINStatus) error {
	const query = `UPDATE student_pins SET status = $2 WHERE pin_number = $1`
	res, err := r.db.ExecContext(ctx, query, pinNumber, status)
	if err != nil {
		return fmt.Errorf("update pin status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AvailableJoiningYears returns distinct joining years among available
// identifiers, newest first.
func (r *PINRepository) AvailableJoiningYears(ctx context.Context) ([]int, error) {
	const query = `SELECT DISTINCT joining_year FROM student_pins WHERE status = $1 ORDER BY joining_year DESC`
	var years []int
	if err := r.db.SelectContext(ctx, &years, query, models.PINStatusAvailable); err != nil {
		return nil, fmt.Errorf("list joining years: %w", err)
	}
	return years, nil
}

// AvailableBranches returns distinct branches with available identifiers for a
// joining year, ascending.
func (r *PINRepository) AvailableBranches(ctx context.Context, joiningYear int) ([]string, error) {
	const query = `SELECT DISTINCT branch FROM student_pins WHERE status = $1 AND joining_year = $2 ORDER BY branch ASC`
	var branches []string
	if err := r.db.SelectContext(ctx, &branches, query, models.PINStatusAvailable, joiningYear); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

// AvailableYears returns distinct academic years with available identifiers
// within (joining year, branch), ascending.
func (r *PINRepository) AvailableYears(ctx context.Context, joiningYear int, branch string) ([]int, error) {
	const query = `SELECT DISTINCT year FROM student_pins WHERE status = $1 AND joining_year = $2 AND branch = $3 ORDER BY year ASC`
	var years []int
	if err := r.db.SelectContext(ctx, &years, query, models.PINStatusAvailable, joiningYear, branch); err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	return years, nil
}

// AvailableSections returns distinct sections with available identifiers
// within (joining year, branch, year), ascending.
func (r *PINRepository) AvailableSections(ctx context.Context, joiningYear int, branch string, year int) ([]string, error) {
	const query = `SELECT DISTINCT section FROM student_pins WHERE status = $1 AND joining_year = $2 AND branch = $3 AND year = $4 ORDER BY section ASC`
	var sections []string
	if err := r.db.SelectContext(ctx, &sections, query, models.PINStatusAvailable, joiningYear, branch, year); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// AvailableByScope returns the available identifiers matching every scoping
// key, ordered by sequence.
func (r *PINRepository) AvailableByScope(ctx context.Context, scope models.PINScope) ([]models.StudentPIN, error) {
	const query = `SELECT pin_number, joining_year, branch, year, section, pin_sequence, status, created_at
        FROM student_pins
        WHERE status = $1 AND joining_year = $2 AND branch = $3 AND year = $4 AND section = $5
        ORDER BY pin_sequence ASC`
	var pins []models.StudentPIN
	if err := r.db.SelectContext(ctx, &pins, query, models.PINStatusAvailable, scope.JoiningYear, scope.Branch, scope.Year, scope.Section); err != nil {
		return nil, fmt.Errorf("list available pins: %w", err)
	}
	return pins, nil
}

// ListByScope returns every identifier in the scope regardless of status,
// ordered by sequence. Used by roster exports.
func (r *PINRepository) ListByScope(ctx context.Context, scope models.PINScope) ([]models.StudentPIN, error) {
	const query = `SELECT pin_number, joining_year, branch, year, section, pin_sequence, status, created_at
        FROM student_pins
        WHERE joining_year = $1 AND branch = $2 AND year = $3 AND section = $4
        ORDER BY pin_sequence ASC`
	var pins []models.StudentPIN
	if err := r.db.SelectContext(ctx, &pins, query, scope.JoiningYear, scope.Branch, scope.Year, scope.Section); err != nil {
		return nil, fmt.Errorf("list pins by scope: %w", err)
	}
	return pins, nil
}

// RosterByScope returns every identifier in the scope joined with the claiming
// account, ordered by sequence. Feeds roster exports.
func (r *PINRepository) RosterByScope(ctx context.Context, scope models.PINScope) ([]models.RosterRow, error) {
	const query = `SELECT p.pin_number, p.pin_sequence, p.status, s.full_name, s.email, s.phone
        FROM student_pins p
        LEFT JOIN students s ON s.pin_number = p.pin_number
        WHERE p.joining_year = $1 AND p.branch = $2 AND p.year = $3 AND p.section = $4
        ORDER BY p.pin_sequence ASC`
	var rows []models.RosterRow
	if err := r.db.SelectContext(ctx, &rows, query, scope.JoiningYear, scope.Branch, scope.Year, scope.Section); err != nil {
		return nil, fmt.Errorf("list roster by scope: %w", err)
	}
	return rows, nil
}

// DeleteCascade removes an identifier and, when an account claimed it, the
// account and that account's listings. The whole cascade runs inside one
// transaction ordered products, student, pin so a failure can never orphan a
// registered pin without an account.
func (r *PINRepository) DeleteCascade(ctx context.Context, pinNumber string) (*models.PINDeleteResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cascade delete: %w", err)
	}

	result := &models.PINDeleteResult{PINNumber: pinNumber}

	var studentID string
	err = tx.GetContext(ctx, &studentID, `SELECT id FROM students WHERE pin_number = $1`, pinNumber)
	switch {
	case err == nil:
		res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE student_id = $1`, studentID)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("delete products for pin %s: %w", pinNumber, err)
		}
		if deleted, err := res.RowsAffected(); err == nil {
			result.ProductsDeleted = int(deleted)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, studentID); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("delete student for pin %s: %w", pinNumber, err)
		}
		result.StudentDeleted = true
	case errors.Is(err, sql.ErrNoRows):
		// unclaimed pin, nothing to cascade
	default:
		_ = tx.Rollback()
		return nil, fmt.Errorf("lookup student for pin %s: %w", pinNumber, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_pins WHERE pin_number = $1`, pinNumber); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("delete pin %s: %w", pinNumber, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cascade delete for pin %s: %w", pinNumber, err)
	}
	return result, nil
}

// Stats aggregates the full identifier set. Computed fresh on every call.
func (r *PINRepository) Stats(ctx context.Context) (*models.PINStats, error) {
	const query = `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'available') AS available,
        COUNT(*) FILTER (WHERE status = 'registered') AS registered,
        COUNT(*) FILTER (WHERE status = 'blocked') AS blocked,
        COUNT(DISTINCT joining_year) AS joining_years,
        COUNT(DISTINCT branch) AS branches,
        COUNT(DISTINCT section) AS sections
        FROM student_pins`
	var stats models.PINStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("aggregate pin stats: %w", err)
	}
	return &stats, nil
}
