package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/internal/storage"
	"github.com/smallbiznis/authr/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewBackend(node)
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) (storage.Store[records.User], storage.Store[records.Note]) {
		b := newTestBackend(t)
		return For[records.User](b), For[records.Note](b)
	})
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	notes := For[records.Note](newTestBackend(t))
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := int64(1)
			contents := "x"
			created, err := notes.Create(ctx, &records.NoteRequest{OwnerID: &owner, Contents: &contents})
			if assert.NoError(t, err) {
				ids <- created.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)

	all, err := notes.GetQueries(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, n)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}
