package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
)

// ErrPINNotAvailable signals that the claimed identifier is missing or no
// longer claimable.
var ErrPINNotAvailable = errors.New("pin not available")

// StudentRepository manages persistence for marketplace accounts.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// RegisterWithPIN claims an available identifier and creates the bound
// account in one transaction. The pin row is locked first so two concurrent
// registrations with the same pin cannot both succeed.
func (r *StudentRepository) RegisterWithPIN(ctx context.Context, student *models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}

	var status models.PINStatus
	err = tx.GetContext(ctx, &status, `SELECT status FROM student_pins WHERE pin_number = $1 FOR UPDATE`, student.PINNumber)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPINNotAvailable
		}
		return fmt.Errorf("lock pin %s: %w", student.PINNumber, err)
	}
	if status != models.PINStatusAvailable {
		_ = tx.Rollback()
		return ErrPINNotAvailable
	}

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	const insert = `INSERT INTO students (id, pin_number, full_name, email, phone, whatsapp, password_hash, status, verification_token, created_at, updated_at)
        VALUES (:id, :pin_number, :full_name, :email, :phone, :whatsapp, :password_hash, :status, :verification_token, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, student); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create student: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE student_pins SET status = $2 WHERE pin_number = $1`, student.PINNumber, models.PINStatusRegistered); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("mark pin registered: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

// FindByID fetches a student with the scope of its claimed pin.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.pin_number, s.full_name, s.email, s.phone, s.whatsapp, s.password_hash, s.status, s.verification_token, s.created_at, s.updated_at,
        p.joining_year, p.branch, p.year, p.section
        FROM students s JOIN student_pins p ON p.pin_number = s.pin_number
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByEmail fetches a student account by email.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	const query = `SELECT id, pin_number, full_name, email, phone, whatsapp, password_hash, status, verification_token, created_at, updated_at
        FROM students WHERE email = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByVerificationToken fetches a pending student by its email token.
func (r *StudentRepository) FindByVerificationToken(ctx context.Context, token string) (*models.Student, error) {
	const query = `SELECT id, pin_number, full_name, email, phone, whatsapp, password_hash, status, verification_token, created_at, updated_at
        FROM students WHERE verification_token = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, token); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdateStatus moves an account to a new lifecycle status, clearing the
// verification token on activation.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	query := `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if status == models.StudentStatusActive {
		query = `UPDATE students SET status = $2, verification_token = NULL, updated_at = $3 WHERE id = $1`
	}
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s JOIN student_pins p ON p.pin_number = s.pin_number"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Branch != "" {
		conditions = append(conditions, fmt.Sprintf("p.branch = $%d", len(args)+1))
		args = append(args, filter.Branch)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.pin_number) LIKE $%d OR LOWER(s.email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":  "s.full_name",
		"pin_number": "s.pin_number",
		"created_at": "s.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.pin_number, s.full_name, s.email, s.phone, s.whatsapp, s.password_hash, s.status, s.verification_token, s.created_at, s.updated_at,
        p.joining_year, p.branch, p.year, p.section
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}
