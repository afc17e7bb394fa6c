// Package storagetest holds the behavior every storage backend must share.
// Backend packages run it from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns fresh, empty stores for one test.
type Factory func(t *testing.T) (storage.Store[records.User], storage.Store[records.Note])

func ptr[T any](v T) *T { return &v }

func newNote(owner int64, contents string) *records.NoteRequest {
	return &records.NoteRequest{OwnerID: ptr(owner), Contents: ptr(contents)}
}

func newUser(guid, name string) *records.UserRequest {
	return &records.UserRequest{
		GUID:    ptr(guid),
		Name:    ptr(name),
		Email:   ptr(name + "@example.com"),
		Picture: ptr("https://example.com/" + name + ".png"),
	}
}

// Run exercises the full store contract against the backend built by f.
func Run(t *testing.T, f Factory) {
	t.Run("CreateGetRoundTrip", func(t *testing.T) {
		_, notes := f(t)
		ctx := context.Background()

		created, err := notes.Create(ctx, newNote(1, "hello"))
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.NotZero(t, created.ID)
		assert.Equal(t, int64(1), created.OwnerID)
		assert.Equal(t, "hello", created.Contents)

		got, err := notes.Get(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *created, *got)
	})

	t.Run("GetAbsentIsEmpty", func(t *testing.T) {
		_, notes := f(t)

		got, err := notes.Get(context.Background(), 424242)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteAbsentIsNotFound", func(t *testing.T) {
		_, notes := f(t)

		got, err := notes.Delete(context.Background(), 424242)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("DeleteThenGetIsEmpty", func(t *testing.T) {
		_, notes := f(t)
		ctx := context.Background()

		created, err := notes.Create(ctx, newNote(1, "gone soon"))
		require.NoError(t, err)

		deleted, err := notes.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, *created, *deleted)

		got, err := notes.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("QueriesFilter", func(t *testing.T) {
		_, notes := f(t)
		ctx := context.Background()

		a, err := notes.Create(ctx, newNote(1, "buy milk"))
		require.NoError(t, err)
		b, err := notes.Create(ctx, newNote(2, "buy 100% cotton"))
		require.NoError(t, err)
		c, err := notes.Create(ctx, newNote(1, "call mom"))
		require.NoError(t, err)

		all, err := notes.GetQueries(ctx, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []records.Note{*a, *b, *c}, all)

		owned, err := notes.GetQueries(ctx, []storage.Predicate{storage.Equal("owner_id", int64(1))})
		require.NoError(t, err)
		assert.ElementsMatch(t, []records.Note{*a, *c}, owned)

		buying, err := notes.GetQueries(ctx, []storage.Predicate{storage.Containing("contents", "buy")})
		require.NoError(t, err)
		assert.ElementsMatch(t, []records.Note{*a, *b}, buying)

		literal, err := notes.GetQueries(ctx, []storage.Predicate{storage.Containing("contents", "100%")})
		require.NoError(t, err)
		assert.Equal(t, []records.Note{*b}, literal)

		both, err := notes.GetQueries(ctx, []storage.Predicate{
			storage.Equal("owner_id", int64(1)),
			storage.Containing("contents", "milk"),
		})
		require.NoError(t, err)
		assert.Equal(t, []records.Note{*a}, both)
	})

	t.Run("UpdateMergesPresentFields", func(t *testing.T) {
		_, notes := f(t)
		ctx := context.Background()

		created, err := notes.Create(ctx, newNote(3, "draft"))
		require.NoError(t, err)

		updated, err := notes.Update(ctx, &records.NoteRequest{ID: ptr(created.ID), Contents: ptr("final")})
		require.NoError(t, err)
		assert.Equal(t, records.Note{ID: created.ID, OwnerID: 3, Contents: "final"}, *updated)

		got, err := notes.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, *updated, *got)
	})

	t.Run("UpdateAbsentIsNotFound", func(t *testing.T) {
		_, notes := f(t)

		_, err := notes.Update(context.Background(), &records.NoteRequest{ID: ptr(int64(424242)), Contents: ptr("x")})
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("ValidationBeforeBackend", func(t *testing.T) {
		_, notes := f(t)
		ctx := context.Background()

		_, err := notes.Create(ctx, &records.NoteRequest{OwnerID: ptr(int64(1))})
		vErr, ok := storage.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, storage.MissingRequiredOnCreate, vErr.Kind)
		assert.Equal(t, "contents", vErr.Field)

		_, err = notes.Create(ctx, &records.NoteRequest{ID: ptr(int64(5)), OwnerID: ptr(int64(1)), Contents: ptr("x")})
		vErr, ok = storage.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, storage.IDProvidedOnCreate, vErr.Kind)

		_, err = notes.Update(ctx, &records.NoteRequest{Contents: ptr("x")})
		vErr, ok = storage.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, storage.MissingIDOnUpdate, vErr.Kind)

		all, err := notes.GetQueries(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("UserGUIDIsUnique", func(t *testing.T) {
		users, _ := f(t)
		ctx := context.Background()

		first, err := users.Create(ctx, newUser("google/1", "ada"))
		require.NoError(t, err)

		_, err = users.Create(ctx, newUser("google/1", "imposter"))
		assert.True(t, errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotCreated))

		found, err := users.GetQueries(ctx, []storage.Predicate{storage.Equal("guid", "google/1")})
		require.NoError(t, err)
		assert.Equal(t, []records.User{*first}, found)
	})

	t.Run("UserGUIDIsImmutable", func(t *testing.T) {
		users, _ := f(t)
		ctx := context.Background()

		created, err := users.Create(ctx, newUser("google/1", "ada"))
		require.NoError(t, err)

		_, err = users.Update(ctx, &records.UserRequest{ID: ptr(created.ID), GUID: ptr("google/999")})
		vErr, ok := storage.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, storage.ImmutableField, vErr.Kind)
		assert.Equal(t, "guid", vErr.Field)

		got, err := users.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "google/1", got.GUID)

		renamed, err := users.Update(ctx, &records.UserRequest{ID: ptr(created.ID), Name: ptr("Ada L")})
		require.NoError(t, err)
		assert.Equal(t, "google/1", renamed.GUID)
		assert.Equal(t, "Ada L", renamed.Name)
	})
}
