//go:build integration
// +build integration

package integration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"smartquery/internal/entity"
	"smartquery/internal/planner"
)

func manyIDs(t *testing.T, rec *entity.Record, relation string) []int64 {
	t.Helper()
	children, ok := rec.Many(relation)
	require.True(t, ok, "relation %q should be loaded", relation)
	return recordIDs(t, children)
}

func oneID(t *testing.T, rec *entity.Record, relation string) int64 {
	t.Helper()
	child, ok := rec.One(relation)
	require.True(t, ok, "relation %q should be loaded", relation)
	require.NotNil(t, child, "relation %q should have a row", relation)
	ids := recordIDs(t, []*entity.Record{child})
	return ids[0]
}

func TestEagerLoadDefaultStrategies(t *testing.T) {
	requireIntegrationEnv(t)
	catalog, exec, _ := setupBlogDB(t)

	records := resolveAndRun(t, catalog, exec, "User", planner.Input{
		Filters: map[string]interface{}{"age__ge": 30},
		Sort:    []string{"-age"},
		Load: map[string]interface{}{
			"posts": map[string]interface{}{
				"$sort":    "-rating",
				"comments": nil,
				"tags":     "batched-select",
			},
		},
	})
	require.Equal(t, []int64{2, 1}, recordIDs(t, records))

	grace, ada := records[0], records[1]

	gracePosts, ok := grace.Many("posts")
	require.True(t, ok)
	require.Equal(t, []int64{3}, recordIDs(t, gracePosts))
	require.ElementsMatch(t, []int64{3, 5}, manyIDs(t, gracePosts[0], "comments"))
	tags, ok := gracePosts[0].Many("tags")
	require.True(t, ok)
	require.Len(t, tags, 1)
	require.Equal(t, "programming", tags[0].Attr("name"))

	adaPosts, ok := ada.Many("posts")
	require.True(t, ok)
	require.Equal(t, []int64{1, 2}, recordIDs(t, adaPosts))
	require.ElementsMatch(t, []int64{1, 2}, manyIDs(t, adaPosts[0], "comments"))
	require.ElementsMatch(t, []int64{1, 2}, manyIDs(t, adaPosts[0], "tags"))

	// The unpublished post has no comments or tags; both relations still
	// read as loaded.
	require.Empty(t, manyIDs(t, adaPosts[1], "comments"))
	require.Empty(t, manyIDs(t, adaPosts[1], "tags"))
}

func TestEagerLoadJoinStrategy(t *testing.T) {
	requireIntegrationEnv(t)
	catalog, exec, _ := setupBlogDB(t)

	records := resolveAndRun(t, catalog, exec, "Comment", planner.Input{
		Filters: map[string]interface{}{"rating__ge": 4},
		Sort:    []string{"id"},
		Load: map[string]interface{}{
			"post": "join",
			"user": "join",
		},
	})
	require.Equal(t, []int64{1, 2, 4}, recordIDs(t, records))

	wantPosts := []int64{1, 1, 4}
	wantUsers := []int64{2, 3, 2}
	for i, rec := range records {
		require.Equal(t, wantPosts[i], oneID(t, rec, "post"))
		require.Equal(t, wantUsers[i], oneID(t, rec, "user"))
	}
}

func TestEagerLoadWindowAppliesPerParent(t *testing.T) {
	requireIntegrationEnv(t)
	catalog, exec, _ := setupBlogDB(t)

	records := resolveAndRun(t, catalog, exec, "User", planner.Input{
		Sort: []string{"id"},
		Load: map[string]interface{}{
			"posts": map[string]interface{}{
				"$limit": 1,
				"$sort":  "-rating",
			},
		},
	})
	require.Equal(t, []int64{1, 2, 3}, recordIDs(t, records))

	// Each user keeps exactly their own best post.
	require.Equal(t, []int64{1}, manyIDs(t, records[0], "posts"))
	require.Equal(t, []int64{3}, manyIDs(t, records[1], "posts"))
	require.Equal(t, []int64{4}, manyIDs(t, records[2], "posts"))
}

func TestEagerLoadOffsetWithinParent(t *testing.T) {
	requireIntegrationEnv(t)
	catalog, exec, _ := setupBlogDB(t)

	records := resolveAndRun(t, catalog, exec, "User", planner.Input{
		Sort: []string{"id"},
		Load: map[string]interface{}{
			"posts": map[string]interface{}{
				"$sort":   "-rating",
				"$limit":  1,
				"$offset": 1,
			},
		},
	})

	// Only the author with two posts has a second best one.
	require.Equal(t, []int64{2}, manyIDs(t, records[0], "posts"))
	require.Empty(t, manyIDs(t, records[1], "posts"))
	require.Empty(t, manyIDs(t, records[2], "posts"))
}

func TestEagerLoadFilterOption(t *testing.T) {
	requireIntegrationEnv(t)
	catalog, exec, _ := setupBlogDB(t)

	records := resolveAndRun(t, catalog, exec, "User", planner.Input{
		Sort: []string{"id"},
		Load: map[string]interface{}{
			"posts": map[string]interface{}{
				"$filter": map[string]interface{}{"published": true},
			},
		},
	})

	require.Equal(t, []int64{1}, manyIDs(t, records[0], "posts"))
	require.Equal(t, []int64{3}, manyIDs(t, records[1], "posts"))
	require.Equal(t, []int64{4}, manyIDs(t, records[2], "posts"))
}

func TestEagerLoadNestsUnderToOne(t *testing.T) {
	requireIntegrationEnv(t)
	catalog, exec, _ := setupBlogDB(t)

	records := resolveAndRun(t, catalog, exec, "Post", planner.Input{
		Filters: map[string]interface{}{"id": 1},
		Load: map[string]interface{}{
			"user": map[string]interface{}{
				"comments": nil,
			},
		},
	})
	require.Len(t, records, 1)

	author, ok := records[0].One("user")
	require.True(t, ok)
	require.NotNil(t, author)
	require.Equal(t, "ada", author.Attr("username"))
	require.Equal(t, []int64{3}, manyIDs(t, author, "comments"))
}
