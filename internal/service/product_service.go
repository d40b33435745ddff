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
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
)

const catalogCacheKey = "catalog:active"

type productRepository interface {
	ListActive(ctx context.Context) ([]models.Product, error)
	ListBySeller(ctx context.Context, studentID string) ([]models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	SetStatus(ctx context.Context, id string, status models.ProductStatus) error
}

type sellerLookup interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// CreateProductRequest holds payload for creating a listing. The price is
// accepted as a string and parsed; non-numeric input becomes 0 (free).
type CreateProductRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Category    string   `json:"category" validate:"required"`
	Branch      *string  `json:"branch"`
	ImageURLs   []string `json:"image_urls"`
}

// UpdateProductRequest holds payload for updating a listing.
type UpdateProductRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Category    string   `json:"category" validate:"required"`
	Branch      *string  `json:"branch"`
	ImageURLs   []string `json:"image_urls"`
}

// BrowseResult pairs the filtered catalog with the active filter badge count.
type BrowseResult struct {
	Products          []models.Product `json:"products"`
	ActiveFilterCount int              `json:"active_filter_count"`
	TotalActive       int              `json:"total_active"`
}

// ProductService handles marketplace listing use-cases. Browsing loads a
// snapshot of active listings (optionally through the cache) and runs the
// in-memory filter pipeline over it.
type ProductService struct {
	repo      productRepository
	students  sellerLookup
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProductService constructs the product service.
func NewProductService(repo productRepository, students sellerLookup, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ProductService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ProductService{repo: repo, students: students, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Browse returns active listings narrowed by the query. The boolean reports
// whether the snapshot was served from the cache.
func (s *ProductService) Browse(ctx context.Context, query models.ProductQuery) (*BrowseResult, bool, error) {
	var snapshot []models.Product
	hit, _ := s.cache.Get(ctx, catalogCacheKey, &snapshot)
	if !hit {
		loaded, err := s.repo.ListActive(ctx)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
		}
		snapshot = loaded
		if err := s.cache.Set(ctx, catalogCacheKey, snapshot, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache set failed", zap.Error(err))
		}
	}

	filtered := FilterProducts(snapshot, query)
	return &BrowseResult{
		Products:          filtered,
		ActiveFilterCount: ActiveFilterCount(query),
		TotalActive:       len(snapshot),
	}, hit, nil
}

// ListBySeller returns a seller's own listings.
func (s *ProductService) ListBySeller(ctx context.Context, studentID string) ([]models.Product, error) {
	products, err := s.repo.ListBySeller(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seller products")
	}
	return products, nil
}

// Create publishes a new listing for an active seller.
func (s *ProductService) Create(ctx context.Context, studentID string, req CreateProductRequest) (*models.Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}
	if !models.IsValidCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category "+req.Category)
	}
	branch, err := normalizeListingBranch(req.Branch)
	if err != nil {
		return nil, err
	}

	seller, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seller not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seller")
	}
	if seller.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "account must be active to sell")
	}

	product := &models.Product{
		StudentID:   studentID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Price:       ParsePrice(req.Price),
		Category:    req.Category,
		Branch:      branch,
		ImageURLs:   req.ImageURLs,
		Status:      models.ProductStatusActive,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create product")
	}
	s.invalidateCatalog(ctx)
	return product, nil
}

// Update modifies a listing owned by the caller.
func (s *ProductService) Update(ctx context.Context, studentID, productID string, req UpdateProductRequest) (*models.Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}
	if !models.IsValidCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category "+req.Category)
	}
	branch, err := normalizeListingBranch(req.Branch)
	if err != nil {
		return nil, err
	}

	product, err := s.loadOwned(ctx, studentID, productID)
	if err != nil {
		return nil, err
	}

	product.Title = strings.TrimSpace(req.Title)
	product.Description = strings.TrimSpace(req.Description)
	product.Price = ParsePrice(req.Price)
	product.Category = req.Category
	product.Branch = branch
	product.ImageURLs = req.ImageURLs
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update product")
	}
	s.invalidateCatalog(ctx)
	return product, nil
}

// Deactivate hides a listing owned by the caller.
func (s *ProductService) Deactivate(ctx context.Context, studentID, productID string) error {
	if _, err := s.loadOwned(ctx, studentID, productID); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, productID, models.ProductStatusInactive); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate product")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// Moderate lets an administrator force a listing's status.
func (s *ProductService) Moderate(ctx context.Context, productID string, status models.ProductStatus) error {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	if err := s.repo.SetStatus(ctx, productID, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to moderate product")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *ProductService) loadOwned(ctx context.Context, studentID, productID string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	if product.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "product belongs to another seller")
	}
	return product, nil
}

func (s *ProductService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, catalogCacheKey); err != nil {
		s.logger.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}

// ParsePrice converts free-form price input into a non-negative integer.
// Anything that does not parse, including negatives, becomes 0 (free).
func ParsePrice(raw string) int {
	price, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || price < 0 {
		return 0
	}
	return price
}

func normalizeListingBranch(branch *string) (*string, error) {
	if branch == nil {
		return nil, nil
	}
	code := strings.ToUpper(strings.TrimSpace(*branch))
	if code == "" {
		return nil, nil
	}
	if !models.IsValidBranch(code) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown branch code "+code)
	}
	return &code, nil
}
