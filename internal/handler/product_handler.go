package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gandhamprakashtech/stumart-api/internal/middleware"
	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/service"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
	"github.com/gandhamprakashtech/stumart-api/pkg/response"
)

// ProductHandler exposes the marketplace catalog and seller listing management.
type ProductHandler struct {
	service *service.ProductService
}

// NewProductHandler creates a new handler.
func NewProductHandler(svc *service.ProductService) *ProductHandler {
	return &ProductHandler{service: svc}
}

// Browse godoc
// @Summary Browse the catalog
// @Description Filter active listings by search text, facets, price bucket and sort
// @Tags Products
// @Produce json
// @Param search query string false "Search text"
// @Param categories query string false "Comma separated categories"
// @Param branches query string false "Comma separated branch codes"
// @Param priceRange query string false "Price bucket (all, 0, 1-100, 100-500, 500-1000, 1000-5000, 5000+)"
// @Param freeOnly query bool false "Only free listings"
// @Param sort query string false "Sort order (none, newest, price-asc, price-desc)"
// @Success 200 {object} response.Envelope
// @Router /products [get]
func (h *ProductHandler) Browse(c *gin.Context) {
	query := models.ProductQuery{
		Search:     c.Query("search"),
		Categories: splitCSV(c.Query("categories")),
		Branches:   splitCSV(c.Query("branches")),
		PriceRange: c.DefaultQuery("priceRange", models.PriceRangeAll),
		FreeOnly:   c.Query("freeOnly") == "true",
		Sort:       c.DefaultQuery("sort", models.SortNone),
	}

	start := time.Now()
	result, cacheHit, err := h.service.Browse(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, result, nil, meta)
}

// Mine godoc
// @Summary List own listings
// @Tags Products
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /products/mine [get]
func (h *ProductHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	products, err := h.service.ListBySeller(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, products, nil)
}

// Create godoc
// @Summary Publish a listing
// @Tags Products
// @Accept json
// @Produce json
// @Param payload body service.CreateProductRequest true "Listing payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid listing payload"))
		return
	}

	product, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, product)
}

// Update godoc
// @Summary Update a listing
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param payload body service.UpdateProductRequest true "Listing payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid listing payload"))
		return
	}

	product, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, product, nil)
}

// Deactivate godoc
// @Summary Take down own listing
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [delete]
func (h *ProductHandler) Deactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Moderate godoc
// @Summary Force a listing status
// @Description Admin moderation of any listing
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param payload body handler.moderateProductRequest true "New status"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id}/moderate [post]
func (h *ProductHandler) Moderate(c *gin.Context) {
	var req moderateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}
	status := models.ProductStatus(req.Status)
	if status != models.ProductStatusActive && status != models.ProductStatusInactive {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be active or inactive"))
		return
	}
	if err := h.service.Moderate(c.Request.Context(), c.Param("id"), status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type moderateProductRequest struct {
	Status string `json:"status" binding:"required"`
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
