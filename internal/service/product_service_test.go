package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
)

type mockProductRepo struct {
	active      []models.Product
	activeCalls int
	bySeller    map[string][]models.Product
	byID        map[string]*models.Product
	created     []*models.Product
	updated     []*models.Product
	statusSet   map[string]models.ProductStatus
}

func (m *mockProductRepo) ListActive(ctx context.Context) ([]models.Product, error) {
	m.activeCalls++
	return m.active, nil
}

func (m *mockProductRepo) ListBySeller(ctx context.Context, studentID string) ([]models.Product, error) {
	return m.bySeller[studentID], nil
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := m.byID[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProductRepo) Create(ctx context.Context, product *models.Product) error {
	m.created = append(m.created, product)
	return nil
}

func (m *mockProductRepo) Update(ctx context.Context, product *models.Product) error {
	m.updated = append(m.updated, product)
	return nil
}

func (m *mockProductRepo) SetStatus(ctx context.Context, id string, status models.ProductStatus) error {
	if m.statusSet == nil {
		m.statusSet = make(map[string]models.ProductStatus)
	}
	m.statusSet[id] = status
	return nil
}

type mockSellerLookup struct {
	sellers map[string]*models.StudentDetail
}

func (m *mockSellerLookup) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.sellers[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

// memoryCacheRepo keeps typed catalog snapshots so tests can count store hits.
type memoryCacheRepo struct {
	entries map[string][]models.Product
	deleted []string
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	snapshot, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	out, ok := dest.(*[]models.Product)
	if !ok {
		return errors.New("unexpected destination type")
	}
	*out = snapshot
	return nil
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	snapshot, ok := value.([]models.Product)
	if !ok {
		return errors.New("unexpected value type")
	}
	if m.entries == nil {
		m.entries = make(map[string][]models.Product)
	}
	m.entries[key] = snapshot
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	delete(m.entries, pattern)
	return nil
}

func activeSeller(id string) *models.StudentDetail {
	return &models.StudentDetail{Student: models.Student{ID: id, Status: models.StudentStatusActive}}
}

func TestProductServiceBrowseCachesSnapshot(t *testing.T) {
	repo := &mockProductRepo{active: sampleCatalog()}
	cacheRepo := &memoryCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewProductService(repo, &mockSellerLookup{}, cache, time.Minute, nil, nil)

	result, cacheHit, err := svc.Browse(context.Background(), models.ProductQuery{PriceRange: models.PriceRangeAll, Sort: models.SortNone})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Len(t, result.Products, 4)
	assert.Equal(t, 4, result.TotalActive)
	assert.Equal(t, 1, repo.activeCalls)

	// second browse is served from cache
	_, cacheHit, err = svc.Browse(context.Background(), models.ProductQuery{PriceRange: models.PriceRangeAll, Sort: models.SortNone})
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, 1, repo.activeCalls)
}

func TestProductServiceBrowseWithoutCache(t *testing.T) {
	repo := &mockProductRepo{active: sampleCatalog()}
	svc := NewProductService(repo, &mockSellerLookup{}, nil, 0, nil, nil)

	result, cacheHit, err := svc.Browse(context.Background(), models.ProductQuery{Categories: []string{"books"}, PriceRange: models.PriceRangeAll})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Len(t, result.Products, 1)
	assert.Equal(t, 1, result.ActiveFilterCount)
}

func TestProductServiceCreate(t *testing.T) {
	repo := &mockProductRepo{}
	cacheRepo := &memoryCacheRepo{entries: map[string][]models.Product{"catalog:active": nil}}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	sellers := &mockSellerLookup{sellers: map[string]*models.StudentDetail{"stu-1": activeSeller("stu-1")}}
	svc := NewProductService(repo, sellers, cache, time.Minute, nil, nil)

	branch := "cme"
	product, err := svc.Create(context.Background(), "stu-1", CreateProductRequest{
		Title:    "  Data Structures  ",
		Price:    "250",
		Category: "books",
		Branch:   &branch,
	})
	require.NoError(t, err)
	assert.Equal(t, "Data Structures", product.Title)
	assert.Equal(t, 250, product.Price)
	require.NotNil(t, product.Branch)
	assert.Equal(t, "CME", *product.Branch)
	assert.Equal(t, models.ProductStatusActive, product.Status)

	// creating a listing drops the cached catalog
	assert.Contains(t, cacheRepo.deleted, "catalog:active")
}

func TestProductServiceCreateRejectsInactiveSeller(t *testing.T) {
	sellers := &mockSellerLookup{sellers: map[string]*models.StudentDetail{
		"stu-1": {Student: models.Student{ID: "stu-1", Status: models.StudentStatusBlocked}},
	}}
	svc := NewProductService(&mockProductRepo{}, sellers, nil, 0, nil, nil)

	_, err := svc.Create(context.Background(), "stu-1", CreateProductRequest{Title: "X", Category: "books"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestProductServiceCreateRejectsUnknownCategory(t *testing.T) {
	svc := NewProductService(&mockProductRepo{}, &mockSellerLookup{}, nil, 0, nil, nil)

	_, err := svc.Create(context.Background(), "stu-1", CreateProductRequest{Title: "X", Category: "vehicles"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProductServiceParsePrice(t *testing.T) {
	assert.Equal(t, 250, ParsePrice("250"))
	assert.Equal(t, 250, ParsePrice(" 250 "))
	assert.Equal(t, 0, ParsePrice("free"))
	assert.Equal(t, 0, ParsePrice(""))
	assert.Equal(t, 0, ParsePrice("-10"))
}

func TestProductServiceUpdateEnforcesOwnership(t *testing.T) {
	repo := &mockProductRepo{byID: map[string]*models.Product{
		"p1": {ID: "p1", StudentID: "stu-1", Title: "Old", Category: "books"},
	}}
	svc := NewProductService(repo, &mockSellerLookup{}, nil, 0, nil, nil)

	_, err := svc.Update(context.Background(), "stu-2", "p1", UpdateProductRequest{Title: "New", Category: "books"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), "stu-1", "p1", UpdateProductRequest{Title: "New", Price: "99", Category: "books"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, 99, updated.Price)
}

func TestProductServiceDeactivate(t *testing.T) {
	repo := &mockProductRepo{byID: map[string]*models.Product{
		"p1": {ID: "p1", StudentID: "stu-1"},
	}}
	svc := NewProductService(repo, &mockSellerLookup{}, nil, 0, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "stu-1", "p1"))
	assert.Equal(t, models.ProductStatusInactive, repo.statusSet["p1"])

	err := svc.Deactivate(context.Background(), "stu-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProductServiceModerate(t *testing.T) {
	repo := &mockProductRepo{byID: map[string]*models.Product{
		"p1": {ID: "p1", StudentID: "stu-1", Status: models.ProductStatusActive},
	}}
	svc := NewProductService(repo, &mockSellerLookup{}, nil, 0, nil, nil)

	require.NoError(t, svc.Moderate(context.Background(), "p1", models.ProductStatusInactive))
	assert.Equal(t, models.ProductStatusInactive, repo.statusSet["p1"])
}
