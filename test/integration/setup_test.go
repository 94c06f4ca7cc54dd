package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ehr/searchindex/internal/platform/db"
	"github.com/ehr/searchindex/internal/platform/fhir"
	"github.com/ehr/searchindex/internal/platform/fhirpath"
	"github.com/ehr/searchindex/internal/platform/searchparam"
	"github.com/ehr/searchindex/internal/platform/terminology"
	"github.com/ehr/searchindex/internal/platform/tokenindex"
	"github.com/ehr/searchindex/migrations"
)

var testedTypes = []string{"Patient", "Observation"}

// testEnv holds the shared database and the components wired against it.
type testEnv struct {
	Pool       *pgxpool.Pool
	Registry   *searchparam.Registry
	Store      *tokenindex.Store
	Searcher   *fhir.Searcher
	Expansions *terminology.ExpansionWriter
}

// env is initialized once in TestMain. It stays nil in short mode.
var env *testEnv

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	e, cleanup, err := setupEnv(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	env = e
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupEnv(ctx context.Context) (*testEnv, func(), error) {
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("searchtest"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("connection string: %w", err)
	}

	pool, err := db.NewPool(ctx, connStr, "public", 8, 1)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	cleanup := func() {
		pool.Close()
		terminate()
	}

	logger := zerolog.Nop()
	if _, err := db.NewMigrator(pool, migrations.FS, "public", logger).Up(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if err := tokenindex.EnsureTables(ctx, pool, testedTypes); err != nil {
		cleanup()
		return nil, nil, err
	}

	registry, err := searchparam.NewRegistry(searchparam.Defaults(), logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	compiler := tokenindex.NewCompiler(registry, terminology.NewResolver(), logger)
	extractor := tokenindex.NewExtractor(registry, fhirpath.NewEngine(), logger)

	return &testEnv{
		Pool:       pool,
		Registry:   registry,
		Store:      tokenindex.NewStore(registry, extractor, logger),
		Searcher:   fhir.NewSearcher(registry, compiler, pool, logger),
		Expansions: terminology.NewExpansionWriter(pool, logger),
	}, cleanup, nil
}

// requireEnv skips in short mode and empties every table the test may touch.
func requireEnv(t *testing.T) *testEnv {
	t.Helper()
	if env == nil {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	for _, rt := range testedTypes {
		_, err := env.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s, %s",
			tokenindex.ResourceTable(rt), tokenindex.TokenTable(rt)))
		require.NoError(t, err)
	}
	_, err := env.Pool.Exec(ctx, "TRUNCATE value_set_expansion, reindex_job")
	require.NoError(t, err)
	return env
}

// createResource stores a resource and its tokens in one transaction.
func createResource(t *testing.T, resourceType string, resource map[string]any) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	resource["resourceType"] = resourceType
	resource["id"] = id.String()

	err := db.RunInTx(ctx, env.Pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (id, content) VALUES ($1, $2)",
			tokenindex.ResourceTable(resourceType)), id, resource)
		if err != nil {
			return err
		}
		return env.Store.IndexResource(ctx, tx, id, resourceType, resource, true)
	})
	require.NoError(t, err)
	return id
}

// search runs a query string through the searcher and returns the matching ids.
func search(t *testing.T, resourceType, rawQuery string) []uuid.UUID {
	t.Helper()
	q, err := env.Searcher.Parse(resourceType, mustQuery(t, rawQuery), fhir.HandlingStrict)
	require.NoError(t, err)
	res, err := env.Searcher.Search(context.Background(), q)
	require.NoError(t, err)
	return res.IDs
}

func tokenCount(t *testing.T, resourceType string) int {
	t.Helper()
	var n int
	err := env.Pool.QueryRow(context.Background(),
		fmt.Sprintf("SELECT count(*) FROM %s", tokenindex.TokenTable(resourceType))).Scan(&n)
	require.NoError(t, err)
	return n
}

func patientWithIdentifier(system, value string) map[string]any {
	return map[string]any{
		"identifier": []any{map[string]any{"system": system, "value": value}},
	}
}

func observationWithCode(system, code string) map[string]any {
	return map[string]any{
		"status": "final",
		"code": map[string]any{
			"coding": []any{map[string]any{"system": system, "code": code}},
		},
	}
}
