package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
)

// ProductRepository manages persistence for marketplace listings.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository constructs a ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, student_id, title, description, price, category, branch, image_urls, status, created_at, updated_at`

// ListActive returns every visible listing, newest first. The filter pipeline
// narrows this snapshot in memory.
func (r *ProductRepository) ListActive(ctx context.Context) ([]models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE status = $1 ORDER BY created_at DESC`, productColumns)
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, models.ProductStatusActive); err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	return products, nil
}

// ListBySeller returns a seller's listings regardless of status.
func (r *ProductRepository) ListBySeller(ctx context.Context, studentID string) ([]models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE student_id = $1 ORDER BY created_at DESC`, productColumns)
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, studentID); err != nil {
		return nil, fmt.Errorf("list seller products: %w", err)
	}
	return products, nil
}

// FindByID fetches a listing by identifier.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		return nil, err
	}
	return &product, nil
}

// Create inserts a new listing.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	const query = `INSERT INTO products (id, student_id, title, description, price, category, branch, image_urls, status, created_at, updated_at)
        VALUES (:id, :student_id, :title, :description, :price, :category, :branch, :image_urls, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// Update modifies an existing listing.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	const query = `UPDATE products SET title = :title, description = :description, price = :price, category = :category, branch = :branch, image_urls = :image_urls, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// SetStatus flips a listing's visibility.
func (r *ProductRepository) SetStatus(ctx context.Context, id string, status models.ProductStatus) error {
	const query = `UPDATE products SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set product status: %w", err)
	}
	return nil
}
