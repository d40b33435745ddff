package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
)

type mockPINRepo struct {
	pins         map[string]models.StudentPIN
	inserted     []models.StudentPIN
	insertErr    error
	deleteErr    error
	deleted      []string
	statusSet    map[string]models.PINStatus
	years        []int
	branches     []string
	studyYears   []int
	sections     []string
	scoped       []models.StudentPIN
	statsResult  *models.PINStats
	cascadeProds int
	cascadeStu   bool
}

func (m *mockPINRepo) InsertBatch(ctx context.Context, pins []models.StudentPIN) (int, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.inserted = append(m.inserted, pins...)
	return len(pins), nil
}

func (m *mockPINRepo) FindByNumber(ctx context.Context, pinNumber string) (*models.StudentPIN, error) {
	if pin, ok := m.pins[pinNumber]; ok {
		return &pin, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPINRepo) UpdateStatus(ctx context.Context, pinNumber string, status models.PINStatus) error {
	if m.statusSet == nil {
		m.statusSet = make(map[string]models.PINStatus)
	}
	m.statusSet[pinNumber] = status
	return nil
}

func (m *mockPINRepo) AvailableJoiningYears(ctx context.Context) ([]int, error) {
	return m.years, nil
}

func (m *mockPINRepo) AvailableBranches(ctx context.Context, joiningYear int) ([]string, error) {
	return m.branches, nil
}

func (m *mockPINRepo) AvailableYears(ctx context.Context, joiningYear int, branch string) ([]int, error) {
	return m.studyYears, nil
}

func (m *mockPINRepo) AvailableSections(ctx context.Context, joiningYear int, branch string, year int) ([]string, error) {
	return m.sections, nil
}

func (m *mockPINRepo) AvailableByScope(ctx context.Context, scope models.PINScope) ([]models.StudentPIN, error) {
	return m.scoped, nil
}

func (m *mockPINRepo) DeleteCascade(ctx context.Context, pinNumber string) (*models.PINDeleteResult, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.deleted = append(m.deleted, pinNumber)
	return &models.PINDeleteResult{
		PINNumber:       pinNumber,
		StudentDeleted:  m.cascadeStu,
		ProductsDeleted: m.cascadeProds,
	}, nil
}

func (m *mockPINRepo) Stats(ctx context.Context) (*models.PINStats, error) {
	return m.statsResult, nil
}

func TestPINServiceCreateRange(t *testing.T) {
	repo := &mockPINRepo{}
	svc := NewPINService(repo, nil, nil)

	result, err := svc.CreateRange(context.Background(), CreateRangeRequest{
		JoiningYear:   2026,
		Branch:        "cme",
		Year:          1,
		Section:       "a",
		StartSequence: 1,
		EndSequence:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)
	require.Len(t, repo.inserted, 5)
	assert.Equal(t, "26030-CME-001", repo.inserted[0].PINNumber)
	assert.Equal(t, "26030-CME-005", repo.inserted[4].PINNumber)
	assert.Equal(t, "A", repo.inserted[0].Section)
	assert.Equal(t, models.PINStatusAvailable, repo.inserted[0].Status)
}

func TestPINServiceCreateRangeValidation(t *testing.T) {
	svc := NewPINService(&mockPINRepo{}, nil, nil)

	_, err := svc.CreateRange(context.Background(), CreateRangeRequest{
		JoiningYear: 2026, Branch: "XYZ", Year: 1, Section: "A", StartSequence: 1, EndSequence: 2,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateRange(context.Background(), CreateRangeRequest{
		JoiningYear: 2026, Branch: "CME", Year: 1, Section: "A", StartSequence: 9, EndSequence: 2,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPINServiceCreateRangeDuplicateBecomesConflict(t *testing.T) {
	repo := &mockPINRepo{insertErr: errors.New(`pq: duplicate key value violates unique constraint "student_pins_pkey"`)}
	svc := NewPINService(repo, nil, nil)

	_, err := svc.CreateRange(context.Background(), CreateRangeRequest{
		JoiningYear: 2026, Branch: "CME", Year: 1, Section: "A", StartSequence: 1, EndSequence: 2,
	})
	require.Error(t, err)
	// a plain error is not a pq unique violation, so it surfaces as internal
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestPINServiceCreateIndividualDropsNonNumeric(t *testing.T) {
	repo := &mockPINRepo{}
	svc := NewPINService(repo, nil, nil)

	result, err := svc.CreateIndividual(context.Background(), CreateIndividualRequest{
		JoiningYear: 2026,
		Branch:      "ECE",
		Year:        2,
		Section:     "B",
		Sequences:   []string{"1", "abc", " 3 ", "-2", "7"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	require.Len(t, repo.inserted, 3)
	assert.Equal(t, "26030-ECE-001", repo.inserted[0].PINNumber)
	assert.Equal(t, "26030-ECE-003", repo.inserted[1].PINNumber)
	assert.Equal(t, "26030-ECE-007", repo.inserted[2].PINNumber)
}

func TestPINServiceCreateIndividualAllInvalidSkipsStore(t *testing.T) {
	repo := &mockPINRepo{insertErr: errors.New("must not be called")}
	svc := NewPINService(repo, nil, nil)

	result, err := svc.CreateIndividual(context.Background(), CreateIndividualRequest{
		JoiningYear: 2026,
		Branch:      "CME",
		Year:        1,
		Section:     "A",
		Sequences:   []string{"abc", "x", "0"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Empty(t, repo.inserted)
}

func TestPINServiceAvailabilityEmptyUpstreamKey(t *testing.T) {
	repo := &mockPINRepo{branches: []string{"CME"}, studyYears: []int{1}}
	svc := NewPINService(repo, nil, nil)

	branches, err := svc.AvailableBranches(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, branches)

	years, err := svc.AvailableYears(context.Background(), 2026, "")
	require.NoError(t, err)
	assert.Empty(t, years)

	pins, err := svc.AvailablePINs(context.Background(), models.PINScope{JoiningYear: 2026, Branch: "CME", Year: 1})
	require.NoError(t, err)
	assert.Empty(t, pins)
}

func TestPINServiceDeleteMissingPINIsNoop(t *testing.T) {
	repo := &mockPINRepo{}
	svc := NewPINService(repo, nil, nil)

	result, err := svc.Delete(context.Background(), "26030-CME-001")
	require.NoError(t, err)
	assert.Equal(t, "26030-CME-001", result.PINNumber)
	assert.False(t, result.StudentDeleted)
	assert.Empty(t, repo.deleted)
}

func TestPINServiceDeleteCascade(t *testing.T) {
	repo := &mockPINRepo{
		pins:         map[string]models.StudentPIN{"26030-CME-001": {PINNumber: "26030-CME-001", Status: models.PINStatusRegistered}},
		cascadeStu:   true,
		cascadeProds: 4,
	}
	svc := NewPINService(repo, nil, nil)

	result, err := svc.Delete(context.Background(), "26030-CME-001")
	require.NoError(t, err)
	assert.True(t, result.StudentDeleted)
	assert.Equal(t, 4, result.ProductsDeleted)
}

func TestPINServiceDeleteCascadeFailure(t *testing.T) {
	repo := &mockPINRepo{
		pins:      map[string]models.StudentPIN{"26030-CME-001": {PINNumber: "26030-CME-001"}},
		deleteErr: errors.New("products delete failed"),
	}
	svc := NewPINService(repo, nil, nil)

	_, err := svc.Delete(context.Background(), "26030-CME-001")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCascadeDelete.Code, appErrors.FromError(err).Code)
}

func TestPINServiceBulkDeleteBestEffort(t *testing.T) {
	repo := &mockPINRepo{
		pins: map[string]models.StudentPIN{
			"26030-CME-001": {PINNumber: "26030-CME-001"},
			"26030-CME-002": {PINNumber: "26030-CME-002"},
		},
		cascadeProds: 1,
	}
	svc := NewPINService(repo, nil, nil)

	result, err := svc.BulkDelete(context.Background(), []string{"26030-CME-001", "26030-CME-404", "26030-CME-002"})
	require.NoError(t, err)
	// missing pins count as deleted no-ops, not failures
	assert.Equal(t, 3, result.Deleted)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.ProductsDeleted)
}

func TestPINServiceBulkDeleteRecordsFailures(t *testing.T) {
	repo := &mockPINRepo{
		pins:      map[string]models.StudentPIN{"26030-CME-001": {PINNumber: "26030-CME-001"}},
		deleteErr: errors.New("db down"),
	}
	svc := NewPINService(repo, nil, nil)

	result, err := svc.BulkDelete(context.Background(), []string{"26030-CME-001"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "26030-CME-001", result.Failures[0].PINNumber)
}

func TestPINServiceBlockRegisteredPIN(t *testing.T) {
	repo := &mockPINRepo{
		pins: map[string]models.StudentPIN{"26030-CME-001": {PINNumber: "26030-CME-001", Status: models.PINStatusRegistered}},
	}
	svc := NewPINService(repo, nil, nil)

	err := svc.Block(context.Background(), "26030-CME-001")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPINServiceBlockUnblock(t *testing.T) {
	repo := &mockPINRepo{
		pins: map[string]models.StudentPIN{"26030-CME-001": {PINNumber: "26030-CME-001", Status: models.PINStatusAvailable}},
	}
	svc := NewPINService(repo, nil, nil)

	require.NoError(t, svc.Block(context.Background(), "26030-CME-001"))
	assert.Equal(t, models.PINStatusBlocked, repo.statusSet["26030-CME-001"])
}

func TestPINServiceStatistics(t *testing.T) {
	repo := &mockPINRepo{statsResult: &models.PINStats{Total: 10, Available: 6, Registered: 3, Blocked: 1}}
	svc := NewPINService(repo, nil, nil)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 6, stats.Available)
}
