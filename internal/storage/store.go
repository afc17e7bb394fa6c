// Package storage defines the capability contract every persistence backend
// implements, plus the predicate language and request validation shared by
// all of them.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type ColumnType int

const (
	Text ColumnType = iota
	Integer
)

// Column describes one persisted, non-id field of a record.
type Column struct {
	Name   string
	Type   ColumnType
	Unique bool
	// Immutable columns are set on create and rejected on update.
	Immutable bool
}

// Schema is the metadata backends use to build statements at call time.
// Column names only ever come from here, never from request input.
type Schema struct {
	Table    string
	IDColumn string
	Columns  []Column
}

// Column looks up a column by name. The id column is reported as an integer.
func (s Schema) Column(name string) (Column, bool) {
	if name == s.IDColumn {
		return Column{Name: s.IDColumn, Type: Integer, Unique: true}, true
	}
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the non-id column names in declaration order.
func (s Schema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		names = append(names, col.Name)
	}
	return names
}

// SelectList is the id column followed by every other column.
func (s Schema) SelectList() string {
	return strings.Join(append([]string{s.IDColumn}, s.ColumnNames()...), ", ")
}

// ParseValue converts a raw string, typically from a query string, into the
// Go type stored in the named column.
func (s Schema) ParseValue(field, raw string) (any, error) {
	col, ok := s.Column(field)
	if !ok {
		return nil, &ValidationError{Kind: UnknownField, Field: field}
	}
	if col.Type == Integer {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, &ValidationError{Kind: InvalidValue, Field: field}
		}
		return v, nil
	}
	return raw, nil
}

// Record is implemented by every persisted record kind. Methods must have
// value receivers so the zero value of T can describe its own schema.
type Record interface {
	Schema() Schema
	RecordID() int64
	// Values returns the non-id columns keyed by column name.
	Values() map[string]any
}

// Request is the partial, all-optional input for Create and Update.
type Request[T Record] interface {
	// TargetID reports the record id carried by the request, if any.
	TargetID() (int64, bool)
	// Changes returns only the fields that are present, keyed by column name.
	Changes() map[string]any
	// Build materializes a new record with the given id.
	Build(id int64) T
	// Apply overlays the present fields onto an existing record.
	Apply(existing T) T
}

// Store is the capability contract shared by the memory and SQL backends.
// Callers cannot tell backends apart through it.
type Store[T Record] interface {
	// Get returns nil, nil when no record has the id.
	Get(ctx context.Context, id int64) (*T, error)
	// GetQueries returns every record matching all predicates, in ascending
	// id order. An empty predicate list returns every record.
	GetQueries(ctx context.Context, preds []Predicate) ([]T, error)
	Create(ctx context.Context, req Request[T]) (*T, error)
	Update(ctx context.Context, req Request[T]) (*T, error)
	// Delete returns the removed record, or ErrNotFound.
	Delete(ctx context.Context, id int64) (*T, error)
}

// SchemaOf returns the schema of record kind T.
func SchemaOf[T Record]() Schema {
	var zero T
	return zero.Schema()
}

// CheckChanges rejects change sets naming columns outside the schema.
func CheckChanges(schema Schema, changes map[string]any) error {
	for name := range changes {
		if name == schema.IDColumn {
			return &ValidationError{Kind: UnknownField, Field: name}
		}
		if _, ok := schema.Column(name); !ok {
			return &ValidationError{Kind: UnknownField, Field: name}
		}
	}
	return nil
}

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}
