package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/repository"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
)

type pinRepository interface {
	InsertBatch(ctx context.Context, pins []models.StudentPIN) (int, error)
	FindByNumber(ctx context.Context, pinNumber string) (*models.StudentPIN, error)
	UpdateStatus(ctx context.Context, pinNumber string, status models.PINStatus) error
	AvailableJoiningYears(ctx context.Context) ([]int, error)
	AvailableBranches(ctx context.Context, joiningYear int) ([]string, error)
	AvailableYears(ctx context.Context, joiningYear int, branch string) ([]int, error)
	AvailableSections(ctx context.Context, joiningYear int, branch string, year int) ([]string, error)
	AvailableByScope(ctx context.Context, scope models.PINScope) ([]models.StudentPIN, error)
	DeleteCascade(ctx context.Context, pinNumber string) (*models.PINDeleteResult, error)
	Stats(ctx context.Context) (*models.PINStats, error)
}

// CreateRangeRequest holds payload for bulk range creation.
type CreateRangeRequest struct {
	JoiningYear   int    `json:"joining_year" validate:"required,min=2000,max=2100"`
	Branch        string `json:"branch" validate:"required"`
	Year          int    `json:"year" validate:"required,min=1,max=3"`
	Section       string `json:"section" validate:"required"`
	StartSequence int    `json:"start_sequence" validate:"required,min=1"`
	EndSequence   int    `json:"end_sequence" validate:"required,min=1"`
}

// CreateIndividualRequest holds payload for list-based creation. Sequence
// entries that do not parse as integers are dropped, not rejected.
type CreateIndividualRequest struct {
	JoiningYear int      `json:"joining_year" validate:"required,min=2000,max=2100"`
	Branch      string   `json:"branch" validate:"required"`
	Year        int      `json:"year" validate:"required,min=1,max=3"`
	Section     string   `json:"section" validate:"required"`
	Sequences   []string `json:"sequences" validate:"required,min=1"`
}

// CreateResult reports how many identifiers a create call inserted.
type CreateResult struct {
	Created int `json:"created"`
}

// PINService implements the identifier allocator. Every call is an
// independent round trip to the store; overlapping concurrent creations race
// and rely on the pin_number uniqueness constraint as the sole backstop.
type PINService struct {
	repo      pinRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPINService constructs the allocator service.
func NewPINService(repo pinRepository, validate *validator.Validate, logger *zap.Logger) *PINService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PINService{repo: repo, validator: validate, logger: logger}
}

// CreateRange mints one identifier per sequence in [start, end]. The insert
// is all-or-nothing; a duplicate pin_number fails the whole range.
func (s *PINService) CreateRange(ctx context.Context, req CreateRangeRequest) (*CreateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid range payload")
	}
	scope, err := normalizeScope(req.JoiningYear, req.Branch, req.Year, req.Section)
	if err != nil {
		return nil, err
	}
	if req.StartSequence > req.EndSequence {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start sequence must not exceed end sequence")
	}

	pins := make([]models.StudentPIN, 0, req.EndSequence-req.StartSequence+1)
	for seq := req.StartSequence; seq <= req.EndSequence; seq++ {
		pins = append(pins, buildPIN(scope, seq))
	}

	created, err := s.repo.InsertBatch(ctx, pins)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "one or more pin numbers already exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pins")
	}
	s.logger.Info("pin range created",
		zap.Int("joining_year", scope.JoiningYear),
		zap.String("branch", scope.Branch),
		zap.Int("count", created))
	return &CreateResult{Created: created}, nil
}

// CreateIndividual mints identifiers for an explicit list of sequences.
// Non-numeric entries are silently skipped; duplicates within the list or
// against existing rows fail the call at the uniqueness constraint.
func (s *PINService) CreateIndividual(ctx context.Context, req CreateIndividualRequest) (*CreateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid individual payload")
	}
	scope, err := normalizeScope(req.JoiningYear, req.Branch, req.Year, req.Section)
	if err != nil {
		return nil, err
	}

	pins := make([]models.StudentPIN, 0, len(req.Sequences))
	for _, raw := range req.Sequences {
		seq, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || seq < 1 {
			continue
		}
		pins = append(pins, buildPIN(scope, seq))
	}
	if len(pins) == 0 {
		return &CreateResult{Created: 0}, nil
	}

	created, err := s.repo.InsertBatch(ctx, pins)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "one or more pin numbers already exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pins")
	}
	return &CreateResult{Created: created}, nil
}

// AvailableJoiningYears lists joining years that still have claimable pins.
func (s *PINService) AvailableJoiningYears(ctx context.Context) ([]int, error) {
	years, err := s.repo.AvailableJoiningYears(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list joining years")
	}
	return years, nil
}

// AvailableBranches narrows the drill-down to one joining year.
func (s *PINService) AvailableBranches(ctx context.Context, joiningYear int) ([]string, error) {
	if joiningYear == 0 {
		return []string{}, nil
	}
	branches, err := s.repo.AvailableBranches(ctx, joiningYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list branches")
	}
	return branches, nil
}

// AvailableYears narrows the drill-down to (joining year, branch).
func (s *PINService) AvailableYears(ctx context.Context, joiningYear int, branch string) ([]int, error) {
	if joiningYear == 0 || branch == "" {
		return []int{}, nil
	}
	years, err := s.repo.AvailableYears(ctx, joiningYear, branch)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list years")
	}
	return years, nil
}

// AvailableSections narrows the drill-down to (joining year, branch, year).
func (s *PINService) AvailableSections(ctx context.Context, joiningYear int, branch string, year int) ([]string, error) {
	if joiningYear == 0 || branch == "" || year == 0 {
		return []string{}, nil
	}
	sections, err := s.repo.AvailableSections(ctx, joiningYear, branch, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// AvailablePINs returns the claimable identifiers for a fully-scoped query.
func (s *PINService) AvailablePINs(ctx context.Context, scope models.PINScope) ([]models.StudentPIN, error) {
	if scope.JoiningYear == 0 || scope.Branch == "" || scope.Year == 0 || scope.Section == "" {
		return []models.StudentPIN{}, nil
	}
	scope.Section = strings.ToUpper(strings.TrimSpace(scope.Section))
	pins, err := s.repo.AvailableByScope(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available pins")
	}
	if pins == nil {
		pins = []models.StudentPIN{}
	}
	return pins, nil
}

// Delete removes one identifier and cascades to the bound account and its
// listings. Deleting a pin that does not exist is not an error.
func (s *PINService) Delete(ctx context.Context, pinNumber string) (*models.PINDeleteResult, error) {
	pinNumber = strings.TrimSpace(pinNumber)
	if pinNumber == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pin number is required")
	}

	if _, err := s.repo.FindByNumber(ctx, pinNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.PINDeleteResult{PINNumber: pinNumber}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pin")
	}

	result, err := s.repo.DeleteCascade(ctx, pinNumber)
	if err != nil {
		s.logger.Error("cascade delete failed", zap.String("pin_number", pinNumber), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCascadeDelete.Code, appErrors.ErrCascadeDelete.Status, "cascade delete failed for "+pinNumber)
	}
	return result, nil
}

// BulkDelete applies Delete to each pin independently. One failure does not
// abort the rest of the batch.
func (s *PINService) BulkDelete(ctx context.Context, pinNumbers []string) (*models.BulkDeleteResult, error) {
	result := &models.BulkDeleteResult{}
	for _, pinNumber := range pinNumbers {
		deleted, err := s.Delete(ctx, pinNumber)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, models.PINDeleteFailure{
				PINNumber: pinNumber,
				Message:   appErrors.FromError(err).Message,
			})
			continue
		}
		result.Deleted++
		if deleted.StudentDeleted {
			result.StudentsDeleted++
		}
		result.ProductsDeleted += deleted.ProductsDeleted
	}
	return result, nil
}

// Block moves an available identifier out of circulation.
func (s *PINService) Block(ctx context.Context, pinNumber string) error {
	return s.setStatus(ctx, pinNumber, models.PINStatusBlocked)
}

// Unblock returns a blocked identifier to the available pool.
func (s *PINService) Unblock(ctx context.Context, pinNumber string) error {
	return s.setStatus(ctx, pinNumber, models.PINStatusAvailable)
}

func (s *PINService) setStatus(ctx context.Context, pinNumber string, status models.PINStatus) error {
	pin, err := s.repo.FindByNumber(ctx, strings.TrimSpace(pinNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "pin not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pin")
	}
	if pin.Status == models.PINStatusRegistered {
		return appErrors.Clone(appErrors.ErrConflict, "registered pins cannot change status")
	}
	if err := s.repo.UpdateStatus(ctx, pin.PINNumber, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update pin status")
	}
	return nil
}

// Statistics aggregates the identifier dataset for the admin console.
func (s *PINService) Statistics(ctx context.Context) (*models.PINStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute pin statistics")
	}
	return stats, nil
}

func normalizeScope(joiningYear int, branch string, year int, section string) (models.PINScope, error) {
	branch = strings.ToUpper(strings.TrimSpace(branch))
	if !models.IsValidBranch(branch) {
		return models.PINScope{}, appErrors.Clone(appErrors.ErrValidation, "unknown branch code "+branch)
	}
	section = strings.ToUpper(strings.TrimSpace(section))
	if section == "" {
		return models.PINScope{}, appErrors.Clone(appErrors.ErrValidation, "section is required")
	}
	return models.PINScope{JoiningYear: joiningYear, Branch: branch, Year: year, Section: section}, nil
}

func buildPIN(scope models.PINScope, sequence int) models.StudentPIN {
	return models.StudentPIN{
		PINNumber:   models.FormatPINNumber(scope.JoiningYear, scope.Branch, sequence),
		JoiningYear: scope.JoiningYear,
		Branch:      scope.Branch,
		Year:        scope.Year,
		Section:     scope.Section,
		PINSequence: sequence,
		Status:      models.PINStatusAvailable,
		CreatedAt:   time.Now().UTC(),
	}
}
