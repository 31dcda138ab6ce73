package integration

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/joshu-sajeev/lanedispatch/internal/models"
	"github.com/joshu-sajeev/lanedispatch/internal/persistence"
	"github.com/joshu-sajeev/lanedispatch/internal/storage/jobstore"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	testDB   *sql.DB
	testPort string
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct pool: %s", err)
	}

	pool.MaxWait = 60 * time.Second

	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	pg, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "17-alpine",
		Env: []string{
			"POSTGRES_USER=testuser",
			"POSTGRES_PASSWORD=testpass",
			"POSTGRES_DB=dispatch",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start postgres container: %s", err)
	}

	testPort = pg.GetPort("5432/tcp")
	dsn := fmt.Sprintf(
		"host=localhost user=testuser password=testpass dbname=dispatch port=%s sslmode=disable TimeZone=UTC",
		testPort,
	)

	if err := pool.Retry(func() error {
		var err error
		testDB, err = sql.Open("postgres", dsn)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := testDB.PingContext(ctx); err != nil {
			testDB.Close()
			return err
		}

		if err := runMigrations(testDB); err != nil {
			log.Printf("Failed to run migrations: %v", err)
			testDB.Close()
			return err
		}

		return nil
	}); err != nil {
		log.Fatalf("Could not connect to postgres: %s", err)
	}

	os.Setenv("POSTGRES_USER", "testuser")
	os.Setenv("POSTGRES_PASSWORD", "testpass")
	os.Setenv("POSTGRES_DB", "dispatch")
	os.Setenv("POSTGRES_HOST", "localhost")
	os.Setenv("POSTGRES_PORT", testPort)
	os.Setenv("DB_MAX_RETRIES", "3")
	os.Setenv("DB_RETRY_DELAY", "100ms")

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}

	if err := pool.Purge(pg); err != nil {
		log.Fatalf("Could not purge postgres container: %s", err)
	}

	os.Exit(code)
}

func runMigrations(db *sql.DB) error {
	_, filename, _, _ := runtime.Caller(0)
	testDir := filepath.Dir(filename)
	projectRoot := filepath.Join(testDir, "../..")
	migrationsDir := filepath.Join(projectRoot, "migrations")

	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", migrationsDir)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	return nil
}

func connect(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()
	cfg, err := jobstore.LoadConfigFromEnv(ctx)
	require.NoError(t, err)

	db, err := jobstore.ConnectDB(ctx, cfg)
	require.NoError(t, err)
	return db
}

func record(id string, status models.JobStatus) *models.JobRecord {
	return &models.JobRecord{
		ID:        id,
		Payload:   datatypes.JSON(`{"task":"integration"}`),
		Status:    status,
		LaneIndex: 0,
		CreatedAt: time.Now().UTC(),
		TimeoutMs: 10000,
	}
}

func TestJobStorePostgres_UpsertRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	store := jobstore.NewJobStore(connect(t))
	ctx := context.Background()

	rec := record("it-upsert", models.StatusPending)
	require.NoError(t, store.UpsertJob(ctx, rec))

	rec.Status = models.StatusRunning
	now := time.Now().UTC()
	rec.StartedAt = &now
	require.NoError(t, store.UpsertJob(ctx, rec))

	found, err := store.FindJobsByStatus(ctx, []models.JobStatus{models.StatusRunning})
	require.NoError(t, err)

	var match *models.JobRecord
	for _, f := range found {
		if f.ID == "it-upsert" {
			match = f
		}
	}
	require.NotNil(t, match)
	assert.NotNil(t, match.StartedAt)
	assert.JSONEq(t, `{"task":"integration"}`, string(match.Payload))
}

func TestJobStorePostgres_AdapterFlushAndRecover(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	store := jobstore.NewJobStore(connect(t))
	ctx := context.Background()

	adapter := persistence.NewAdapter(store, time.Minute, 50)

	running := record("it-recover-running", models.StatusRunning)
	startedAt := time.Now().UTC()
	running.StartedAt = &startedAt
	running.LaneIndex = 9

	adapter.RecordTransition(record("it-recover-pending", models.StatusPending), 1)
	adapter.RecordTransition(running, 9)
	require.NoError(t, adapter.FlushAll(ctx))

	fresh := persistence.NewAdapter(store, time.Minute, 50)
	byLane, err := fresh.Recover(ctx, 3)
	require.NoError(t, err)

	var got []*models.JobRecord
	for _, recs := range byLane {
		got = append(got, recs...)
	}

	ids := map[string]models.JobStatus{}
	for _, rec := range got {
		ids[rec.ID] = rec.Status
	}
	assert.Equal(t, models.StatusPending, ids["it-recover-pending"])
	assert.Equal(t, models.StatusPending, ids["it-recover-running"], "running jobs downgraded on recovery")

	for _, rec := range got {
		assert.Less(t, rec.LaneIndex, 3, "lane indexes remapped into the new topology")
	}
}

func TestJobStorePostgres_Cleanup(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	store := jobstore.NewJobStore(connect(t))
	ctx := context.Background()

	old := time.Now().UTC().Add(-72 * time.Hour)
	done := record("it-cleanup-old", models.StatusCompleted)
	done.CompletedAt = &old
	require.NoError(t, store.UpsertJob(ctx, done))

	count, err := store.DeleteTerminalJobsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(1))

	found, err := store.FindJobsByStatus(ctx, []models.JobStatus{models.StatusCompleted})
	require.NoError(t, err)
	for _, rec := range found {
		assert.NotEqual(t, "it-cleanup-old", rec.ID)
	}
}
