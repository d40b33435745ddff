package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/repository"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
)

type studentRepository interface {
	RegisterWithPIN(ctx context.Context, student *models.Student) error
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.Student, error)
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type studentUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type studentPINLookup interface {
	FindByNumber(ctx context.Context, pinNumber string) (*models.StudentPIN, error)
	UpdateStatus(ctx context.Context, pinNumber string, status models.PINStatus) error
}

// RegisterRequest is the signup payload. The PIN must be in available state.
type RegisterRequest struct {
	PINNumber string `json:"pin_number" validate:"required"`
	FullName  string `json:"full_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	WhatsApp  string `json:"whatsapp"`
	Password  string `json:"password" validate:"required,min=6"`
}

// RegisterResult reports the created account and its verification token. The
// token travels out-of-band in production; it is returned here so local
// deployments without a mailer still work.
type RegisterResult struct {
	StudentID         string `json:"student_id"`
	PINNumber         string `json:"pin_number"`
	VerificationToken string `json:"verification_token,omitempty"`
}

// StudentService covers signup, email verification and admin moderation.
type StudentService struct {
	repo      studentRepository
	users     studentUserRepository
	pins      studentPINLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, users studentUserRepository, pins studentPINLookup, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, users: users, pins: pins, validator: validate, logger: logger}
}

// Register claims an available PIN and creates a pending student account.
func (s *StudentService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	pinNumber := strings.ToUpper(strings.TrimSpace(req.PINNumber))
	if _, err := s.pins.FindByNumber(ctx, pinNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPINUnavailable, "pin does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up pin")
	}

	if existing, err := s.repo.FindByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	token, err := generateVerificationToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create verification token")
	}

	student := &models.Student{
		ID:                uuid.NewString(),
		PINNumber:         pinNumber,
		FullName:          strings.TrimSpace(req.FullName),
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:             strings.TrimSpace(req.Phone),
		WhatsApp:          strings.TrimSpace(req.WhatsApp),
		PasswordHash:      string(hash),
		Status:            models.StudentStatusPending,
		VerificationToken: &token,
	}

	if err := s.repo.RegisterWithPIN(ctx, student); err != nil {
		if errors.Is(err, repository.ErrPINNotAvailable) {
			return nil, appErrors.Clone(appErrors.ErrPINUnavailable, "pin is already claimed or blocked")
		}
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or pin is already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}

	s.logger.Info("student registered",
		zap.String("student_id", student.ID),
		zap.String("pin_number", student.PINNumber))

	return &RegisterResult{
		StudentID:         student.ID,
		PINNumber:         student.PINNumber,
		VerificationToken: token,
	}, nil
}

// VerifyEmail activates a pending account and provisions its login user.
func (s *StudentService) VerifyEmail(ctx context.Context, token string) (*models.Student, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "verification token is required")
	}

	student, err := s.repo.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up token")
	}

	if student.Status != models.StudentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account is already verified")
	}

	if err := s.repo.UpdateStatus(ctx, student.ID, models.StudentStatusActive); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate account")
	}

	user := &models.User{
		ID:           student.ID,
		Email:        student.Email,
		PasswordHash: student.PasswordHash,
		FullName:     student.FullName,
		Role:         models.RoleStudent,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision login account")
		}
	}

	student.Status = models.StudentStatusActive
	student.VerificationToken = nil
	student.UpdatedAt = time.Now().UTC()
	return student, nil
}

// Get returns the full profile for a student, including PIN scope.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// List returns students matching the filter with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Moderate lets an administrator block or unblock a student account. The
// claimed PIN follows the account: blocking a student blocks its PIN.
func (s *StudentService) Moderate(ctx context.Context, actorID, studentID string, status models.StudentStatus) error {
	if status != models.StudentStatusActive && status != models.StudentStatusBlocked {
		return appErrors.Clone(appErrors.ErrValidation, "status must be active or blocked")
	}

	student, err := s.repo.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.repo.UpdateStatus(ctx, studentID, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}

	pinStatus := models.PINStatusRegistered
	if status == models.StudentStatusBlocked {
		pinStatus = models.PINStatusBlocked
	}
	if err := s.pins.UpdateStatus(ctx, student.PINNumber, pinStatus); err != nil {
		s.logger.Warn("failed to sync pin status with moderation",
			zap.String("pin_number", student.PINNumber), zap.Error(err))
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentModerate,
		Resource:   "students",
		ResourceID: &studentID,
		NewValues:  []byte(`{"status":"` + string(status) + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record moderation audit log", zap.Error(err))
	}

	return nil
}

func generateVerificationToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
