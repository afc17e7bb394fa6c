package storage

import (
	"fmt"
	"strings"
)

type Operator int

const (
	Equals Operator = iota + 1
	Contains
)

func (o Operator) String() string {
	switch o {
	case Equals:
		return "equals"
	case Contains:
		return "contains"
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// Predicate is one field condition. A slice of predicates is combined with AND.
type Predicate struct {
	Field string
	Op    Operator
	Value any
}

func Equal(field string, value any) Predicate {
	return Predicate{Field: field, Op: Equals, Value: value}
}

// Containing matches records whose field contains substr.
func Containing(field, substr string) Predicate {
	return Predicate{Field: field, Op: Contains, Value: substr}
}

// Matches evaluates the predicate against a record's column values in Go.
// It mirrors what BuildWhere produces for SQL backends.
func (p Predicate) Matches(id int64, idColumn string, values map[string]any) bool {
	var actual any
	if p.Field == idColumn {
		actual = id
	} else {
		v, ok := values[p.Field]
		if !ok {
			return false
		}
		actual = v
	}
	switch p.Op {
	case Equals:
		return fmt.Sprint(actual) == fmt.Sprint(p.Value)
	case Contains:
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(p.Value))
	default:
		return false
	}
}

// MatchesAll reports whether every predicate holds.
func MatchesAll(preds []Predicate, id int64, idColumn string, values map[string]any) bool {
	for _, p := range preds {
		if !p.Matches(id, idColumn, values) {
			return false
		}
	}
	return true
}

// ValidatePredicates checks that every predicate names a schema column and
// uses an operator that column supports.
func ValidatePredicates(schema Schema, preds []Predicate) error {
	for _, p := range preds {
		col, ok := schema.Column(p.Field)
		if !ok {
			return &ValidationError{Kind: UnknownField, Field: p.Field}
		}
		switch p.Op {
		case Equals:
		case Contains:
			if col.Type != Text {
				return &ValidationError{Kind: UnsupportedOperator, Field: p.Field}
			}
		default:
			return &ValidationError{Kind: UnsupportedOperator, Field: p.Field}
		}
	}
	return nil
}
