// Package blogschema provides the shared blog model catalog (users, posts,
// comments, tags, categories) used by unit and integration tests across
// the engine packages.
package blogschema

import (
	"context"
	"testing"

	"smartquery/internal/schema"
)

// Defs returns the blog model definitions. Users write posts and comments;
// posts carry comments and many-to-many tags; categories nest
// self-referentially.
func Defs() []schema.Definition {
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
			Hybrids: []schema.HybridDef{
				{Name: "display_name", Expr: "CONCAT({t}.`name`, ' (', {t}.`username`, ')')"},
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
				{Name: "comments", Kind: schema.HasMany, Target: "Comment", RemoteColumn: "post_id"},
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
		{
			Name: "Category",
			Columns: []schema.ColumnDef{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "name", Kind: schema.KindString},
				{Name: "parent_id", Kind: schema.KindInt, Nullable: true},
			},
			Relations: []schema.RelationDef{
				{Name: "parent", Kind: schema.BelongsTo, Target: "Category", LocalColumn: "parent_id"},
				{Name: "children", Kind: schema.HasMany, Target: "Category", RemoteColumn: "parent_id"},
			},
		},
	}
}

// Catalog builds the blog catalog, failing the test on any schema error.
func Catalog(t *testing.T) *schema.Catalog {
	t.Helper()
	catalog := schema.NewCatalog(Defs(), nil, nil)
	if err := catalog.Build(context.Background()); err != nil {
		t.Fatalf("building blog catalog: %v", err)
	}
	return catalog
}

// Model describes a model from the blog catalog, failing the test on error.
func Model(t *testing.T, catalog *schema.Catalog, name string) *schema.Model {
	t.Helper()
	model, err := catalog.Describe(context.Background(), name)
	if err != nil {
		t.Fatalf("describing %s: %v", name, err)
	}
	return model
}
