package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"smartquery/internal/config"
	"smartquery/internal/crud"
	"smartquery/internal/executor"
	"smartquery/internal/logging"
	"smartquery/internal/naming"
	"smartquery/internal/planner"
	"smartquery/internal/schema"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(); err != nil {
		slog.Error("smartquery error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	pflag.Bool("version", false, "Print version and exit")
	pflag.Bool("seed", false, "Create demo tables and seed sample rows before querying")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Printf("smartquery %s (%s)\n", Version, Commit)
		return nil
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := schema.NewCatalog(demoDefs(), naming.New(cfg.Naming), logger.Logger)
	if err := catalog.Build(ctx); err != nil {
		return fmt.Errorf("failed to build model catalog: %w", err)
	}

	store := crud.NewStore(catalog, db, logger)

	if seed, _ := pflag.CommandLine.GetBool("seed"); seed {
		postID, err := seedDemo(ctx, db, store, logger)
		if err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
		if err := crudRoundTrip(ctx, store, postID, logger); err != nil {
			return fmt.Errorf("crud round trip failed: %w", err)
		}
	}

	return showcase(ctx, cfg, catalog, db, logger)
}

// openDatabase opens the instrumented connection pool and verifies the
// connection before anything else runs.
func openDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	db, err := otelsql.Open("mysql", cfg.Database.DSN(),
		otelsql.WithAttributes(semconv.DBSystemMySQL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Database.Pool.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
		slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
		slog.Int("pool_max_idle", cfg.Database.Pool.MaxIdle),
	)
	return db, nil
}

// demoDefs declares the demo blog models. Table names, foreign keys, and
// join columns all come from naming conventions; only the many-to-many
// join table is spelled out.
func demoDefs() []schema.Definition {
	return []schema.Definition{
		{
			Name: "User",
			Columns: []schema.ColumnDef{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "username", Kind: schema.KindString},
				{Name: "name", Kind: schema.KindString},
				{Name: "age", Kind: schema.KindInt},
				{Name: "created_at", Kind: schema.KindTime},
				{Name: "updated_at", Kind: schema.KindTime},
			},
			Relations: []schema.RelationDef{
				{Name: "posts", Kind: schema.HasMany, Target: "Post"},
				{Name: "comments", Kind: schema.HasMany, Target: "Comment"},
			},
			Timestamps: true,
		},
		{
			Name: "Post",
			Columns: []schema.ColumnDef{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "title", Kind: schema.KindString},
				{Name: "body", Kind: schema.KindString},
				{Name: "rating", Kind: schema.KindInt},
				{Name: "published", Kind: schema.KindBool},
				{Name: "user_id", Kind: schema.KindInt},
				{Name: "created_at", Kind: schema.KindTime},
				{Name: "updated_at", Kind: schema.KindTime},
			},
			Hybrids: []schema.HybridDef{
				{Name: "headline", Expr: "UPPER({t}.`title`)"},
			},
			Relations: []schema.RelationDef{
				{Name: "user", Kind: schema.BelongsTo, Target: "User"},
				{Name: "comments", Kind: schema.HasMany, Target: "Comment"},
				{Name: "tags", Kind: schema.ManyToMany, Target: "Tag", JoinTable: "post_tags"},
			},
			Timestamps: true,
		},
		{
			Name: "Comment",
			Columns: []schema.ColumnDef{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "body", Kind: schema.KindString},
				{Name: "rating", Kind: schema.KindInt},
				{Name: "post_id", Kind: schema.KindInt},
				{Name: "user_id", Kind: schema.KindInt},
				{Name: "created_at", Kind: schema.KindTime},
				{Name: "updated_at", Kind: schema.KindTime},
			},
			Relations: []schema.RelationDef{
				{Name: "post", Kind: schema.BelongsTo, Target: "Post"},
				{Name: "user", Kind: schema.BelongsTo, Target: "User"},
			},
			Timestamps: true,
		},
		{
			Name: "Tag",
			Columns: []schema.ColumnDef{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "name", Kind: schema.KindString},
			},
		},
	}
}

type demoQuery struct {
	title string
	model string
	input planner.Input
}

// demoQueries showcases the query surface: operator suffixes crossing
// relationships, multi-key sorts, and nested eager loads mixing the three
// strategies.
func demoQueries() []demoQuery {
	return []demoQuery{
		{
			title: "published posts by author name, best first",
			model: "Post",
			input: planner.Input{
				Filters: map[string]interface{}{
					"published":         true,
					"user___name__like": "%Lovelace%",
				},
				Sort: []string{"-rating", "title"},
			},
		},
		{
			title: "users with their top posts, comments, and tags",
			model: "User",
			input: planner.Input{
				Filters: map[string]interface{}{"age__ge": 30},
				Sort:    []string{"-age"},
				Load: map[string]interface{}{
					"posts": map[string]interface{}{
						"$limit":   2,
						"$sort":    "-rating",
						"comments": nil,
						"tags":     "batched-select",
					},
				},
			},
		},
		{
			title: "well rated comments joined to their post",
			model: "Comment",
			input: planner.Input{
				Filters: map[string]interface{}{
					"rating__between": []interface{}{3, 5},
				},
				Sort:  []string{"-rating", "-created_at"},
				Load:  map[string]interface{}{"post": "join"},
				Limit: 5,
			},
		},
	}
}

// showcase resolves and executes each demo query, printing records as
// JSON lines.
func showcase(ctx context.Context, cfg *config.Config, catalog *schema.Catalog, db *sql.DB, logger *logging.Logger) error {
	exec := executor.New(db, logger)
	limits := planner.Limits{
		MaxEagerDepth: cfg.Engine.MaxEagerDepth,
		MaxJoins:      cfg.Engine.MaxJoins,
	}

	for _, q := range demoQueries() {
		in := q.input
		if in.Limit == 0 {
			in.Limit = cfg.Engine.DefaultLimit
		}

		plan, err := planner.Resolve(ctx, catalog, q.model, in, limits)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", q.title, err)
		}

		records, err := exec.Execute(ctx, plan)
		if err != nil {
			return fmt.Errorf("executing %q: %w", q.title, err)
		}

		fmt.Printf("-- %s (%d rows)\n", q.title, len(records))
		for _, record := range records {
			line, err := json.Marshal(record.ToMapDepth(2))
			if err != nil {
				return fmt.Errorf("serializing %q: %w", q.title, err)
			}
			fmt.Println(string(line))
		}
	}

	return nil
}

// seedDDL returns the statements that reset the demo tables.
func seedDDL() []string {
	return []string{
		"DROP TABLE IF EXISTS post_tags, comments, posts, tags, users",
		`CREATE TABLE users (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(191) NOT NULL,
			name VARCHAR(191) NOT NULL,
			age INT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			UNIQUE KEY uniq_users_username (username)
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
	}
}

// seedDemo resets the demo tables and inserts sample rows through the
// store so timestamps are stamped the same way real writes are. Usernames
// get a random suffix so reseeding never collides with leftover rows.
// Returns the id of a seeded post for the crud round trip.
func seedDemo(ctx context.Context, db *sql.DB, store *crud.Store, logger *logging.Logger) (int64, error) {
	for _, stmt := range seedDDL() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("creating demo tables: %w", err)
		}
	}

	suffix := uuid.NewString()[:8]

	users := []map[string]interface{}{
		{"username": "ada_" + suffix, "name": "Ada Lovelace", "age": 36},
		{"username": "grace_" + suffix, "name": "Grace Hopper", "age": 45},
		{"username": "edsger_" + suffix, "name": "Edsger Dijkstra", "age": 28},
	}
	userIDs := make([]int64, 0, len(users))
	for _, values := range users {
		id, err := store.Insert(ctx, "User", values)
		if err != nil {
			return 0, fmt.Errorf("seeding users: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	posts := []map[string]interface{}{
		{"title": "Notes on the analytical engine", "body": "On the machine's operations.", "rating": 4, "published": true, "user_id": userIDs[0]},
		{"title": "A sketch in diagrams", "body": "Sketches and tables.", "rating": 2, "published": false, "user_id": userIDs[0]},
		{"title": "Compiling thoughts", "body": "On automatic programming.", "rating": 5, "published": true, "user_id": userIDs[1]},
		{"title": "Go To statement considered harmful", "body": "On structured programming.", "rating": 5, "published": true, "user_id": userIDs[2]},
	}
	postIDs := make([]int64, 0, len(posts))
	for _, values := range posts {
		id, err := store.Insert(ctx, "Post", values)
		if err != nil {
			return 0, fmt.Errorf("seeding posts: %w", err)
		}
		postIDs = append(postIDs, id)
	}

	comments := []map[string]interface{}{
		{"body": "Remarkably ahead of its time.", "rating": 5, "post_id": postIDs[0], "user_id": userIDs[1]},
		{"body": "The diagrams clarify everything.", "rating": 4, "post_id": postIDs[0], "user_id": userIDs[2]},
		{"body": "Still relevant today.", "rating": 3, "post_id": postIDs[2], "user_id": userIDs[0]},
		{"body": "Sparked quite the debate.", "rating": 4, "post_id": postIDs[3], "user_id": userIDs[1]},
	}
	for _, values := range comments {
		if _, err := store.Insert(ctx, "Comment", values); err != nil {
			return 0, fmt.Errorf("seeding comments: %w", err)
		}
	}

	tagIDs := make([]int64, 0, 3)
	for _, name := range []string{"history", "programming", "essay"} {
		id, err := store.Insert(ctx, "Tag", map[string]interface{}{"name": name})
		if err != nil {
			return 0, fmt.Errorf("seeding tags: %w", err)
		}
		tagIDs = append(tagIDs, id)
	}

	// The junction table is not a model, so it is seeded directly.
	links := [][2]int64{
		{postIDs[0], tagIDs[0]},
		{postIDs[0], tagIDs[1]},
		{postIDs[2], tagIDs[1]},
		{postIDs[3], tagIDs[1]},
		{postIDs[3], tagIDs[2]},
	}
	for _, link := range links {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)", link[0], link[1],
		); err != nil {
			return 0, fmt.Errorf("seeding post_tags: %w", err)
		}
	}

	logger.Info("seeded demo data",
		slog.Int("users", len(users)),
		slog.Int("posts", len(posts)),
		slog.Int("comments", len(comments)),
		slog.Int("tags", len(tagIDs)),
	)
	return postIDs[1], nil
}

// crudRoundTrip reads a seeded post back, publishes it with a new rating,
// and confirms the write landed.
func crudRoundTrip(ctx context.Context, store *crud.Store, postID int64, logger *logging.Logger) error {
	post, err := store.GetByPK(ctx, "Post", postID)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %d not found after seeding", postID)
	}

	affected, err := store.UpdateByPK(ctx, "Post", map[string]interface{}{
		"rating":    3,
		"published": true,
	}, postID)
	if err != nil {
		return err
	}

	updated, err := store.GetByPK(ctx, "Post", postID)
	if err != nil {
		return err
	}
	if updated == nil {
		return fmt.Errorf("post %d disappeared during update", postID)
	}

	logger.Info("crud round trip complete",
		slog.Int64("post_id", postID),
		slog.Int64("rows_affected", affected),
		slog.Any("rating_before", post.Attr("rating")),
		slog.Any("rating_after", updated.Attr("rating")),
	)
	return nil
}
