package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/service"
	"github.com/gandhamprakashtech/stumart-api/pkg/response"
)

type stubPINRepo struct {
	pins     map[string]models.StudentPIN
	inserted int
	branches []string
	stats    *models.PINStats
}

func (s *stubPINRepo) InsertBatch(ctx context.Context, pins []models.StudentPIN) (int, error) {
	s.inserted += len(pins)
	return len(pins), nil
}

func (s *stubPINRepo) FindByNumber(ctx context.Context, pinNumber string) (*models.StudentPIN, error) {
	if pin, ok := s.pins[pinNumber]; ok {
		return &pin, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubPINRepo) UpdateStatus(ctx context.Context, pinNumber string, status models.PINStatus) error {
	return nil
}

func (s *stubPINRepo) AvailableJoiningYears(ctx context.Context) ([]int, error) {
	return []int{2026}, nil
}

func (s *stubPINRepo) AvailableBranches(ctx context.Context, joiningYear int) ([]string, error) {
	return s.branches, nil
}

func (s *stubPINRepo) AvailableYears(ctx context.Context, joiningYear int, branch string) ([]int, error) {
	return []int{1}, nil
}

func (s *stubPINRepo) AvailableSections(ctx context.Context, joiningYear int, branch string, year int) ([]string, error) {
	return []string{"A"}, nil
}

func (s *stubPINRepo) AvailableByScope(ctx context.Context, scope models.PINScope) ([]models.StudentPIN, error) {
	return nil, nil
}

func (s *stubPINRepo) DeleteCascade(ctx context.Context, pinNumber string) (*models.PINDeleteResult, error) {
	return &models.PINDeleteResult{PINNumber: pinNumber}, nil
}

func (s *stubPINRepo) Stats(ctx context.Context) (*models.PINStats, error) {
	return s.stats, nil
}

func newPINRouter(repo *stubPINRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPINHandler(service.NewPINService(repo, nil, nil), service.NewMetricsService())
	r := gin.New()
	r.POST("/pins/range", h.CreateRange)
	r.POST("/pins/individual", h.CreateIndividual)
	r.GET("/pins/availability/branches", h.Branches)
	r.GET("/pins/stats", h.Stats)
	r.POST("/pins/bulk-delete", h.BulkDelete)
	r.DELETE("/pins/:pinNumber", h.Delete)
	return r
}

func TestPINHandlerCreateRange(t *testing.T) {
	repo := &stubPINRepo{}
	router := newPINRouter(repo)

	body := `{"joining_year":2026,"branch":"CME","year":1,"section":"A","start_sequence":1,"end_sequence":10}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pins/range", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(10), data["created"])
	assert.Equal(t, 10, repo.inserted)
}

func TestPINHandlerCreateRangeInvalidBranch(t *testing.T) {
	router := newPINRouter(&stubPINRepo{})

	body := `{"joining_year":2026,"branch":"XYZ","year":1,"section":"A","start_sequence":1,"end_sequence":5}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pins/range", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestPINHandlerBranchesRequiresJoiningYear(t *testing.T) {
	router := newPINRouter(&stubPINRepo{branches: []string{"CME"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pins/availability/branches", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/pins/availability/branches?joiningYear=2026", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, []interface{}{"CME"}, envelope.Data)
}

func TestPINHandlerBulkDeleteRequiresPINs(t *testing.T) {
	router := newPINRouter(&stubPINRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pins/bulk-delete", strings.NewReader(`{"pin_numbers":[]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPINHandlerDelete(t *testing.T) {
	repo := &stubPINRepo{pins: map[string]models.StudentPIN{
		"26030-CME-001": {PINNumber: "26030-CME-001", Status: models.PINStatusAvailable},
	}}
	router := newPINRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/pins/26030-CME-001", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "26030-CME-001", data["pin_number"])
}

func TestPINHandlerStats(t *testing.T) {
	router := newPINRouter(&stubPINRepo{stats: &models.PINStats{Total: 5, Available: 5}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pins/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), data["total"])
}
