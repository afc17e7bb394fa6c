// Package memory is the process-lifetime storage backend. Records vanish on
// restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authr/internal/storage"
)

// Backend carries what every memory store shares.
type Backend struct {
	genID *snowflake.Node
}

func NewBackend(genID *snowflake.Node) *Backend {
	return &Backend{genID: genID}
}

// For returns the store for record kind T. Call it once per kind; each call
// yields an independent, empty table.
func For[T storage.Record](b *Backend) storage.Store[T] {
	return storage.Validated[T](&store[T]{
		genID:  b.genID,
		schema: storage.SchemaOf[T](),
		rows:   make(map[int64]T),
	})
}

type store[T storage.Record] struct {
	mu     sync.RWMutex
	rows   map[int64]T
	genID  *snowflake.Node
	schema storage.Schema
}

func (s *store[T]) Get(ctx context.Context, id int64) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *store[T]) GetQueries(ctx context.Context, preds []storage.Predicate) ([]T, error) {
	s.mu.RLock()
	out := make([]T, 0, len(s.rows))
	for id, row := range s.rows {
		if storage.MatchesAll(preds, id, s.schema.IDColumn, row.Values()) {
			out = append(out, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RecordID() < out[j].RecordID() })
	return out, nil
}

func (s *store[T]) Create(ctx context.Context, req storage.Request[T]) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.genID.Generate().Int64()
	row := req.Build(id)
	if s.violatesUnique(row) {
		return nil, storage.ErrConflict
	}
	s.rows[id] = row
	return &row, nil
}

func (s *store[T]) Update(ctx context.Context, req storage.Request[T]) (*T, error) {
	id, _ := req.TargetID()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	row := req.Apply(existing)
	if s.violatesUnique(row) {
		return nil, storage.ErrConflict
	}
	s.rows[id] = row
	return &row, nil
}

func (s *store[T]) Delete(ctx context.Context, id int64) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(s.rows, id)
	return &row, nil
}

// violatesUnique must be called with mu held.
func (s *store[T]) violatesUnique(candidate T) bool {
	values := candidate.Values()
	for _, col := range s.schema.Columns {
		if !col.Unique {
			continue
		}
		want := storage.Equal(col.Name, values[col.Name])
		for id, row := range s.rows {
			if id == candidate.RecordID() {
				continue
			}
			if want.Matches(id, s.schema.IDColumn, row.Values()) {
				return true
			}
		}
	}
	return false
}
