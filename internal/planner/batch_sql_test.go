package planner

import (
	"strings"
	"testing"
)

func resolveSingleBatch(t *testing.T, model string, in Input) *BatchPlan {
	t.Helper()
	plan := mustResolve(t, model, in)
	if len(plan.Batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(plan.Batches))
	}
	return plan.Batches[0]
}

func TestRenderBatchSelect(t *testing.T) {
	bp := resolveSingleBatch(t, "User", Input{Load: map[string]interface{}{"posts": nil}})
	got, err := RenderBatch(bp, []interface{}{1, 2})
	if err != nil {
		t.Fatalf("RenderBatch: %v", err)
	}
	want := "SELECT `posts`.`id`, `posts`.`title`, `posts`.`body`, `posts`.`rating`, " +
		"`posts`.`published`, `posts`.`user_id`, `posts`.`created_at`, `posts`.`updated_at`, " +
		"`posts`.`user_id` AS `__batch_parent_id` FROM `posts` " +
		"WHERE `posts`.`user_id` IN (?,?) ORDER BY `posts`.`id` ASC"
	if got.SQL != want {
		t.Errorf("sql = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 2 || got.Args[0] != 1 || got.Args[1] != 2 {
		t.Errorf("args = %v, want [1 2]", got.Args)
	}
}

func TestRenderBatchSelectWithOptions(t *testing.T) {
	bp := resolveSingleBatch(t, "User", Input{Load: map[string]interface{}{
		"posts": map[string]interface{}{
			"$strategy": "batched-select",
			"$filter":   map[string]interface{}{"published": true},
			"$sort":     "-created_at",
		},
	}})
	got, err := RenderBatch(bp, []interface{}{1})
	if err != nil {
		t.Fatalf("RenderBatch: %v", err)
	}
	want := "SELECT `posts`.`id`, `posts`.`title`, `posts`.`body`, `posts`.`rating`, " +
		"`posts`.`published`, `posts`.`user_id`, `posts`.`created_at`, `posts`.`updated_at`, " +
		"`posts`.`user_id` AS `__batch_parent_id` FROM `posts` " +
		"WHERE `posts`.`user_id` IN (?) AND `posts`.`published` = ? " +
		"ORDER BY `posts`.`created_at` DESC"
	if got.SQL != want {
		t.Errorf("sql = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 2 || got.Args[0] != 1 || got.Args[1] != true {
		t.Errorf("args = %v, want [1 true]", got.Args)
	}
}

func TestRenderBatchWindow(t *testing.T) {
	bp := resolveSingleBatch(t, "User", Input{Load: map[string]interface{}{
		"posts": map[string]interface{}{
			"$sort":   "-created_at",
			"$limit":  2,
			"$offset": 1,
		},
	}})
	if bp.Strategy != StrategyBatchedSubquery {
		t.Fatalf("strategy = %s, want batched-subquery", bp.Strategy)
	}
	got, err := RenderBatch(bp, []interface{}{7, 8, 9})
	if err != nil {
		t.Fatalf("RenderBatch: %v", err)
	}
	want := "SELECT `id`, `title`, `body`, `rating`, `published`, `user_id`, `created_at`, `updated_at`, `__batch_parent_id` " +
		"FROM (SELECT `posts`.`id` AS `id`, `posts`.`title` AS `title`, `posts`.`body` AS `body`, " +
		"`posts`.`rating` AS `rating`, `posts`.`published` AS `published`, `posts`.`user_id` AS `user_id`, " +
		"`posts`.`created_at` AS `created_at`, `posts`.`updated_at` AS `updated_at`, " +
		"`posts`.`user_id` AS `__batch_parent_id`, " +
		"ROW_NUMBER() OVER (PARTITION BY `posts`.`user_id` ORDER BY `posts`.`created_at` DESC) AS __rn " +
		"FROM `posts` WHERE `posts`.`user_id` IN (?,?,?)) AS __batch " +
		"WHERE __rn > ? AND __rn <= ? ORDER BY `__batch_parent_id`, __rn"
	if got.SQL != want {
		t.Errorf("sql = %q, want %q", got.SQL, want)
	}
	wantArgs := []interface{}{7, 8, 9, 1, 3}
	if len(got.Args) != len(wantArgs) {
		t.Fatalf("args = %v, want %v", got.Args, wantArgs)
	}
	for i, arg := range wantArgs {
		if got.Args[i] != arg {
			t.Errorf("args[%d] = %v, want %v", i, got.Args[i], arg)
		}
	}
}

func TestRenderBatchWindowOffsetOnly(t *testing.T) {
	bp := resolveSingleBatch(t, "User", Input{Load: map[string]interface{}{
		"posts": map[string]interface{}{"$offset": 2},
	}})
	got, err := RenderBatch(bp, []interface{}{1})
	if err != nil {
		t.Fatalf("RenderBatch: %v", err)
	}
	if !strings.Contains(got.SQL, ") AS __batch WHERE __rn > ? ORDER BY") {
		t.Errorf("sql = %q, want an unbounded row-number filter", got.SQL)
	}
	if len(got.Args) != 2 || got.Args[1] != 2 {
		t.Errorf("args = %v, want trailing offset 2", got.Args)
	}
}

func TestRenderBatchManyToMany(t *testing.T) {
	bp := resolveSingleBatch(t, "Post", Input{Load: map[string]interface{}{"tags": nil}})
	got, err := RenderBatch(bp, []interface{}{5})
	if err != nil {
		t.Fatalf("RenderBatch: %v", err)
	}
	want := "SELECT `tags`.`id`, `tags`.`name`, `post_tags`.`post_id` AS `__batch_parent_id` " +
		"FROM `tags` INNER JOIN `post_tags` ON `post_tags`.`tag_id` = `tags`.`id` " +
		"WHERE `post_tags`.`post_id` IN (?) ORDER BY `tags`.`id` ASC"
	if got.SQL != want {
		t.Errorf("sql = %q, want %q", got.SQL, want)
	}
}

func TestRenderBatchWithNestedJoin(t *testing.T) {
	bp := resolveSingleBatch(t, "User", Input{Load: map[string]interface{}{
		"posts": map[string]interface{}{"user": nil},
	}})
	if bp.Strategy != StrategyBatchedSubquery {
		t.Fatalf("strategy = %s, want batched-subquery", bp.Strategy)
	}
	got, err := RenderBatch(bp, []interface{}{1})
	if err != nil {
		t.Fatalf("RenderBatch: %v", err)
	}
	// the child query carries its own eager to-one join inside the window
	if !strings.Contains(got.SQL, "LEFT JOIN `users` AS `__user` ON `posts`.`user_id` = `__user`.`id`") {
		t.Errorf("sql = %q, want nested user join", got.SQL)
	}
	if !strings.Contains(got.SQL, "`__user`.`name` AS `user___name`") {
		t.Errorf("sql = %q, want aliased joined columns", got.SQL)
	}
	if !strings.Contains(got.SQL, "ROW_NUMBER() OVER (PARTITION BY `posts`.`user_id`") {
		t.Errorf("sql = %q, want parent partition", got.SQL)
	}
}

func TestRenderBatchNoParents(t *testing.T) {
	bp := resolveSingleBatch(t, "User", Input{Load: map[string]interface{}{"posts": nil}})
	if _, err := RenderBatch(bp, nil); err == nil {
		t.Errorf("expected error for empty parent set")
	}
}
