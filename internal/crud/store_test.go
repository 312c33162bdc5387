package crud

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartquery/internal/attrpath"
	"smartquery/internal/planner"
	"smartquery/internal/schema"
	"smartquery/internal/testutil/blogschema"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(blogschema.Catalog(t), db, nil), mock
}

func freezeTime(t *testing.T) time.Time {
	t.Helper()

	frozen := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	timeNow = func() time.Time { return frozen }
	t.Cleanup(func() { timeNow = time.Now })
	return frozen
}

func TestInsertStampsTimestamps(t *testing.T) {
	store, mock := newMockStore(t)
	frozen := freezeTime(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `posts` (`title`,`body`,`rating`,`published`,`user_id`,`created_at`,`updated_at`) VALUES (?,?,?,?,?,?,?)")).
		WithArgs("Hello", "world", 4, true, 1, frozen, frozen).
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := store.Insert(context.Background(), "Post", map[string]interface{}{
		"title":     "Hello",
		"body":      "world",
		"rating":    4,
		"published": true,
		"user_id":   1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEmptyValues(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `tags` () VALUES ()")).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := store.Insert(context.Background(), "Tag", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRejectsInvalidAttributes(t *testing.T) {
	store, _ := newMockStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "Post", map[string]interface{}{"bogus": 1})
	var unknownErr *attrpath.UnknownAttributeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "bogus", unknownErr.Name)
	assert.Equal(t, "Post", unknownErr.Model)

	readOnly := []map[string]interface{}{
		{"id": 5},
		{"created_at": time.Now()},
		{"headline": "computed"},
	}
	for _, values := range readOnly {
		_, err := store.Insert(ctx, "Post", values)
		var roErr *ReadOnlyAttributeError
		require.ErrorAs(t, err, &roErr, "values %v", values)
		assert.Equal(t, "Post", roErr.Model)
	}
}

func TestUpdateByPKRestampsUpdatedAt(t *testing.T) {
	store, mock := newMockStore(t)
	frozen := freezeTime(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `posts` SET `rating` = ?, `updated_at` = ? WHERE `id` = ?")).
		WithArgs(5, frozen, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := store.UpdateByPK(context.Background(), "Post", map[string]interface{}{"rating": 5}, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateByPKTouchOnly(t *testing.T) {
	store, mock := newMockStore(t)
	frozen := freezeTime(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `posts` SET `updated_at` = ? WHERE `id` = ?")).
		WithArgs(frozen, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := store.UpdateByPK(context.Background(), "Post", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateByPKRequiresAttributes(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.UpdateByPK(context.Background(), "Tag", nil, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one attribute")
}

func TestUpdateByPKValidatesPayload(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.UpdateByPK(context.Background(), "Post", map[string]interface{}{"id": 3}, 10)
	var roErr *ReadOnlyAttributeError
	require.ErrorAs(t, err, &roErr)
	assert.Equal(t, "id", roErr.Attribute)
}

func TestDeleteByPK(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `posts` WHERE `id` = ?")).
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := store.DeleteByPK(context.Background(), "Post", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByPKArity(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.DeleteByPK(context.Background(), "Post", 10, 11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary key values")
}

func TestCompositePrimaryKey(t *testing.T) {
	defs := []schema.Definition{{
		Name: "Membership",
		Columns: []schema.ColumnDef{
			{Name: "user_id", Kind: schema.KindInt, PrimaryKey: true},
			{Name: "group_id", Kind: schema.KindInt, PrimaryKey: true},
			{Name: "role", Kind: schema.KindString},
		},
	}}
	catalog := schema.NewCatalog(defs, nil, nil)
	require.NoError(t, catalog.Build(context.Background()))

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(catalog, db, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `memberships` (`user_id`,`group_id`,`role`) VALUES (?,?,?)")).
		WithArgs(7, 12, "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	id, err := store.Insert(context.Background(), "Membership", map[string]interface{}{
		"user_id": 7, "group_id": 12, "role": "admin",
	})
	require.NoError(t, err)
	assert.Zero(t, id, "composite keys have no auto-generated value")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `memberships` WHERE `group_id` = ? AND `user_id` = ?")).
		WithArgs(12, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	affected, err := store.DeleteByPK(context.Background(), "Membership", 7, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPK(t *testing.T) {
	store, mock := newMockStore(t)

	plan, err := planner.Resolve(context.Background(), blogschema.Catalog(t), "User",
		planner.Input{Filters: map[string]interface{}{"id": 7}, Limit: 1}, planner.Limits{})
	require.NoError(t, err)
	query, err := planner.Render(plan)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "username", "name", "age", "created_at", "updated_at"}).
		AddRow(int64(7), "ada", "Ada", int64(36), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(query.SQL)).
		WithArgs(7).
		WillReturnRows(rows)

	rec, err := store.GetByPK(context.Background(), "User", 7)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Ada", rec.Attr("name"))

	mock.ExpectQuery(regexp.QuoteMeta(query.SQL)).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "age", "created_at", "updated_at"}))
	rec, err = store.GetByPK(context.Background(), "User", 99)
	require.NoError(t, err)
	assert.Nil(t, rec, "a missing record is not an error")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertExecError(t *testing.T) {
	store, mock := newMockStore(t)

	boom := errors.New("duplicate entry")
	mock.ExpectExec("INSERT INTO `tags`").WillReturnError(boom)

	_, err := store.Insert(context.Background(), "Tag", map[string]interface{}{"name": "go"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "inserting Tag")
}

func TestStoreUnknownModel(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.Insert(context.Background(), "Ghost", nil)
	var schemaErr *schema.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Ghost", schemaErr.Model)
}
