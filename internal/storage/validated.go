package storage

import "context"

type validated[T Record] struct {
	next Store[T]
}

// Validated wraps a backend so that malformed requests and predicates are
// rejected before the backend sees them. Every backend constructor returns
// its store through this.
func Validated[T Record](next Store[T]) Store[T] {
	if v, ok := next.(*validated[T]); ok {
		return v
	}
	return &validated[T]{next: next}
}

func (v *validated[T]) Get(ctx context.Context, id int64) (*T, error) {
	return v.next.Get(ctx, id)
}

func (v *validated[T]) GetQueries(ctx context.Context, preds []Predicate) ([]T, error) {
	if err := ValidatePredicates(SchemaOf[T](), preds); err != nil {
		return nil, err
	}
	return v.next.GetQueries(ctx, preds)
}

func (v *validated[T]) Create(ctx context.Context, req Request[T]) (*T, error) {
	if err := ValidateCreate(req); err != nil {
		return nil, err
	}
	return v.next.Create(ctx, req)
}

func (v *validated[T]) Update(ctx context.Context, req Request[T]) (*T, error) {
	if err := ValidateUpdate(req); err != nil {
		return nil, err
	}
	return v.next.Update(ctx, req)
}

func (v *validated[T]) Delete(ctx context.Context, id int64) (*T, error) {
	return v.next.Delete(ctx, id)
}
