//go:build integration
// +build integration

package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"smartquery/internal/entity"
	"smartquery/internal/executor"
	"smartquery/internal/logging"
	"smartquery/internal/planner"
	"smartquery/internal/schema"
	"smartquery/internal/testutil/blogschema"
)

// defaultLimits mirrors the shipped engine defaults.
var defaultLimits = planner.Limits{MaxEagerDepth: 5, MaxJoins: 16}

// Integration tests need a reachable MySQL-compatible server:
//
//	SMARTQUERY_TEST_DSN="root:secret@tcp(localhost:3306)/test" \
//	  go test -tags integration ./tests/integration/
func requireIntegrationEnv(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("SMARTQUERY_TEST_DSN") == "" {
		t.Skip("SMARTQUERY_TEST_DSN not set")
	}
}

// testDSN normalizes the configured DSN the same way the engine does:
// parseTime and UTC are forced so time columns scan as time.Time.
func testDSN(t *testing.T) string {
	t.Helper()
	cfg, err := mysql.ParseDSN(os.Getenv("SMARTQUERY_TEST_DSN"))
	require.NoError(t, err, "SMARTQUERY_TEST_DSN must be a valid MySQL DSN")
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("mysql", testDSN(t))
	require.NoError(t, err)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "database should be reachable")
	return db
}

// loadBlogSchema drops and recreates the blog tables.
func loadBlogSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	statements := []string{
		"DROP TABLE IF EXISTS post_tags, comments, posts, tags, categories, users",
		`CREATE TABLE users (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(191) NOT NULL,
			name VARCHAR(191) NOT NULL,
			age INT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE posts (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(191) NOT NULL,
			body TEXT NOT NULL,
			rating INT NOT NULL DEFAULT 0,
			published TINYINT(1) NOT NULL DEFAULT 0,
			user_id BIGINT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			KEY idx_posts_user_id (user_id)
		)`,
		`CREATE TABLE comments (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			body TEXT NOT NULL,
			rating INT NOT NULL DEFAULT 0,
			post_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			KEY idx_comments_post_id (post_id),
			KEY idx_comments_user_id (user_id)
		)`,
		`CREATE TABLE tags (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(191) NOT NULL
		)`,
		`CREATE TABLE post_tags (
			post_id BIGINT NOT NULL,
			tag_id BIGINT NOT NULL,
			PRIMARY KEY (post_id, tag_id)
		)`,
		`CREATE TABLE categories (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(191) NOT NULL,
			parent_id BIGINT NULL
		)`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "schema statement failed")
	}
}

// seedBlogData inserts a fixed dataset with explicit ids and timestamps so
// assertions on ordering and counts stay deterministic.
func seedBlogData(t *testing.T, db *sql.DB) {
	t.Helper()
	statements := []string{
		`INSERT INTO users (id, username, name, age, created_at, updated_at) VALUES
			(1, 'ada', 'Ada Lovelace', 36, '2024-01-01 00:00:00', '2024-01-01 00:00:00'),
			(2, 'grace', 'Grace Hopper', 45, '2024-01-02 00:00:00', '2024-01-02 00:00:00'),
			(3, 'edsger', 'Edsger Dijkstra', 28, '2024-01-03 00:00:00', '2024-01-03 00:00:00')`,
		`INSERT INTO posts (id, title, body, rating, published, user_id, created_at, updated_at) VALUES
			(1, 'Notes on the analytical engine', 'On the operations of the machine.', 4, 1, 1, '2024-02-01 00:00:00', '2024-02-01 00:00:00'),
			(2, 'A sketch in diagrams', 'Sketches and tables.', 2, 0, 1, '2024-02-02 00:00:00', '2024-02-02 00:00:00'),
			(3, 'Compiling thoughts', 'On automatic programming.', 5, 1, 2, '2024-02-03 00:00:00', '2024-02-03 00:00:00'),
			(4, 'Go To statement considered harmful', 'On structured programming.', 5, 1, 3, '2024-02-04 00:00:00', '2024-02-04 00:00:00')`,
		`INSERT INTO comments (id, body, rating, post_id, user_id, created_at, updated_at) VALUES
			(1, 'Remarkably ahead of its time.', 5, 1, 2, '2024-03-01 00:00:00', '2024-03-01 00:00:00'),
			(2, 'The diagrams clarify everything.', 4, 1, 3, '2024-03-02 00:00:00', '2024-03-02 00:00:00'),
			(3, 'Still relevant today.', 3, 3, 1, '2024-03-03 00:00:00', '2024-03-03 00:00:00'),
			(4, 'Sparked quite the debate.', 4, 4, 2, '2024-03-04 00:00:00', '2024-03-04 00:00:00'),
			(5, 'Needs more worked examples.', 2, 3, 3, '2024-03-05 00:00:00', '2024-03-05 00:00:00')`,
		`INSERT INTO tags (id, name) VALUES (1, 'history'), (2, 'programming'), (3, 'essay')`,
		`INSERT INTO post_tags (post_id, tag_id) VALUES (1, 1), (1, 2), (3, 2), (4, 2), (4, 3)`,
		`INSERT INTO categories (id, name, parent_id) VALUES
			(1, 'Science', NULL), (2, 'Computing', 1), (3, 'Hardware', 1), (4, 'Languages', 2)`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "seed statement failed")
	}
}

// setupBlogDB prepares a seeded database plus the catalog and executor
// that tests resolve and run queries against.
func setupBlogDB(t *testing.T) (*schema.Catalog, *executor.Executor, *sql.DB) {
	t.Helper()
	db := openTestDB(t)
	loadBlogSchema(t, db)
	seedBlogData(t, db)

	catalog := blogschema.Catalog(t)
	logger := logging.NewLogger(logging.Config{Level: "error", Format: "text"})
	return catalog, executor.New(db, logger), db
}

func resolveAndRun(t *testing.T, catalog *schema.Catalog, exec *executor.Executor, model string, in planner.Input) []*entity.Record {
	t.Helper()
	plan, err := planner.Resolve(context.Background(), catalog, model, in, defaultLimits)
	require.NoError(t, err)
	records, err := exec.Execute(context.Background(), plan)
	require.NoError(t, err)
	return records
}

// recordIDs extracts the integer primary keys in result order.
func recordIDs(t *testing.T, records []*entity.Record) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		id, ok := rec.Attr("id").(int64)
		require.True(t, ok, "record id should scan as int64, got %T", rec.Attr("id"))
		ids = append(ids, id)
	}
	return ids
}
