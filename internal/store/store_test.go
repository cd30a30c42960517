package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/threathunter/internal/store"
	"github.com/kiranshivaraju/threathunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("threathunter_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// defaultTenantID returns the UUID of the seeded default tenant.
func defaultTenantID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	return tenant.ID
}

func newAlert(tenantID uuid.UUID, ts time.Time) *models.Alert {
	return &models.Alert{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Timestamp:   ts,
		Source:      models.SourceTimeSeries,
		Severity:    models.SeverityHigh,
		Title:       "Metric spike",
		Description: "Reconstruction error: 4.2000, Threshold: 0.8000",
		Score:       4.2,
		Status:      models.AlertStatusOpen,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// --- Tenant Tests ---

func TestGetDefaultTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", tenant.Name)
	assert.NotEqual(t, uuid.Nil, tenant.ID)
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "th_abcd",
		Scopes:    []string{"ingest", "read"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.CreateAPIKey(ctx, key)
	require.NoError(t, err)

	// Get by prefix
	keys, err := s.GetAPIKeyByPrefix(ctx, "th_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "test-key", keys[0].Name)
}

func TestAPIKey_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		err := s.CreateAPIKey(ctx, &models.APIKey{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Name:      "key-" + uuid.NewString()[:4],
			KeyHash:   "hash-" + uuid.NewString()[:4],
			KeyPrefix: "th_" + uuid.NewString()[:4],
			Scopes:    []string{"read"},
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.NoError(t, err)
	}

	keys, err := s.ListAPIKeys(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "revoke-me",
		KeyHash:   "hash",
		KeyPrefix: "th_revk",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	// Revoke
	err := s.RevokeAPIKey(ctx, key.ID, tenantID)
	require.NoError(t, err)

	// Should not appear in list or prefix lookup
	keys, err := s.ListAPIKeys(ctx, tenantID)
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.GetAPIKeyByPrefix(ctx, "th_revk")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPIKey_RevokeNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.RevokeAPIKey(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "usage-key",
		KeyHash:   "hash",
		KeyPrefix: "th_used",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	err := s.UpdateAPIKeyLastUsed(ctx, key.ID)
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "th_used")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestAPIKey_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	id := uuid.New()
	key := &models.APIKey{
		ID: id, TenantID: tenantID, Name: "dup1", KeyHash: "h1", KeyPrefix: "th_dup1",
		Scopes: []string{"read"}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	key2 := &models.APIKey{
		ID: id, TenantID: tenantID, Name: "dup2", KeyHash: "h2", KeyPrefix: "th_dup2",
		Scopes: []string{"read"}, CreatedAt: now, UpdatedAt: now,
	}
	err := s.CreateAPIKey(ctx, key2)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

// --- Alert Tests ---

func TestAlert_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	alert := newAlert(tenantID, now)
	err := s.CreateAlert(ctx, alert)
	require.NoError(t, err)

	got, err := s.GetAlert(ctx, alert.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, got.ID)
	assert.Equal(t, models.SourceTimeSeries, got.Source)
	assert.Equal(t, models.SeverityHigh, got.Severity)
	assert.Equal(t, models.AlertStatusOpen, got.Status)
	assert.InDelta(t, 4.2, got.Score, 0.001)
	assert.Nil(t, got.AssignedTo)
}

func TestAlert_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetAlert(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAlert_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		alert := newAlert(tenantID, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.CreateAlert(ctx, alert))
	}

	alerts, total, err := s.ListAlerts(ctx, store.AlertFilter{
		TenantID: tenantID, Page: 1, Limit: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, alerts, 3)
	// Newest first
	assert.True(t, alerts[0].Timestamp.After(alerts[1].Timestamp))
}

func TestAlert_ListWithFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	high := newAlert(tenantID, now)
	require.NoError(t, s.CreateAlert(ctx, high))

	low := newAlert(tenantID, now.Add(time.Minute))
	low.Severity = models.SeverityLow
	low.Source = models.SourceLogs
	require.NoError(t, s.CreateAlert(ctx, low))

	alerts, total, err := s.ListAlerts(ctx, store.AlertFilter{
		TenantID: tenantID, Severity: string(models.SeverityHigh), Page: 1, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, high.ID, alerts[0].ID)

	alerts, total, err = s.ListAlerts(ctx, store.AlertFilter{
		TenantID: tenantID, Source: string(models.SourceLogs), Page: 1, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, low.ID, alerts[0].ID)
}

func TestAlert_ListSince(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	old := newAlert(tenantID, now.Add(-48*time.Hour))
	require.NoError(t, s.CreateAlert(ctx, old))
	recent := newAlert(tenantID, now)
	require.NoError(t, s.CreateAlert(ctx, recent))

	alerts, total, err := s.ListAlerts(ctx, store.AlertFilter{
		TenantID: tenantID, Since: now.Add(-time.Hour), Page: 1, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, recent.ID, alerts[0].ID)
}

func TestAlert_UpdateStatusOpenToInvestigating(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	alert := newAlert(tenantID, now)
	require.NoError(t, s.CreateAlert(ctx, alert))

	err := s.UpdateAlertStatus(ctx, alert.ID, tenantID, models.AlertStatusInvestigating,
		store.WithAssignee("analyst@example.com"))
	require.NoError(t, err)

	got, err := s.GetAlert(ctx, alert.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusInvestigating, got.Status)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "analyst@example.com", *got.AssignedTo)
}

func TestAlert_UpdateStatusInvestigatingToResolved(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	alert := newAlert(tenantID, now)
	require.NoError(t, s.CreateAlert(ctx, alert))
	require.NoError(t, s.UpdateAlertStatus(ctx, alert.ID, tenantID, models.AlertStatusInvestigating))

	err := s.UpdateAlertStatus(ctx, alert.ID, tenantID, models.AlertStatusResolved)
	require.NoError(t, err)

	got, err := s.GetAlert(ctx, alert.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, got.Status)
}

func TestAlert_UpdateStatusInvalidTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	alert := newAlert(tenantID, now)
	require.NoError(t, s.CreateAlert(ctx, alert))
	require.NoError(t, s.UpdateAlertStatus(ctx, alert.ID, tenantID, models.AlertStatusResolved))

	err := s.UpdateAlertStatus(ctx, alert.ID, tenantID, models.AlertStatusOpen) // resolved is terminal
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid alert status transition")
}

func TestAlert_UpdateStatusNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateAlertStatus(context.Background(), uuid.New(), uuid.New(), models.AlertStatusInvestigating)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
