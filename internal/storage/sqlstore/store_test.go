package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/internal/storage"
	"github.com/smallbiznis/authr/internal/storage/storagetest"
	"github.com/smallbiznis/authr/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authr.db")
	conn, err := gorm.Open(sqlite.Open(db.SQLiteDSN(path)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&records.User{}, &records.Note{}))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func newTestBackend(t *testing.T) *Backend {
	return NewBackend(newTestDB(t), 5*time.Second, zap.NewNop())
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) (storage.Store[records.User], storage.Store[records.Note]) {
		b := newTestBackend(t)
		return For[records.User](b), For[records.Note](b)
	})
}

func TestSQLiteBackendIsExclusive(t *testing.T) {
	b := newTestBackend(t)
	assert.NotNil(t, b.exclusive)
	assert.True(t, b.returning)
}

func TestConcurrentWritesAreSerialized(t *testing.T) {
	b := newTestBackend(t)
	notes := For[records.Note](b)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := int64(i % 3)
			contents := fmt.Sprintf("note %d", i)
			_, err := notes.Create(ctx, &records.NoteRequest{OwnerID: &owner, Contents: &contents})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := notes.GetQueries(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestLockWaitHonorsTimeout(t *testing.T) {
	b := NewBackend(newTestDB(t), 20*time.Millisecond, zap.NewNop())
	notes := For[records.Note](b)

	b.exclusive <- struct{}{}
	defer func() { <-b.exclusive }()

	_, err := notes.Get(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestInsertStatement(t *testing.T) {
	s := &store[records.Note]{b: &Backend{returning: true}, schema: storage.SchemaOf[records.Note]()}
	assert.Equal(t, "INSERT INTO notes (contents, owner_id) VALUES (?, ?)", s.insertStatement([]string{"contents", "owner_id"}))
	assert.Equal(t, "INSERT INTO notes DEFAULT VALUES", s.insertStatement(nil))

	s.b.returning = false
	assert.Equal(t, "INSERT INTO notes () VALUES ()", s.insertStatement(nil))
}
