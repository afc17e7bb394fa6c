package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/authr/internal/storage"
	"github.com/smallbiznis/authr/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// For returns the store for record kind T on backend b.
func For[T storage.Record](b *Backend) storage.Store[T] {
	schema := storage.SchemaOf[T]()
	return storage.Validated[T](&store[T]{
		b:      b,
		schema: schema,
		log:    b.log.With(zap.String("table", schema.Table)),
	})
}

type store[T storage.Record] struct {
	b      *Backend
	schema storage.Schema
	log    *zap.Logger
}

func (s *store[T]) Get(ctx context.Context, id int64) (*T, error) {
	var rows []T
	err := s.b.run(ctx, func(tx *gorm.DB) error {
		return tx.Raw(s.selectByID(), id).Scan(&rows).Error
	})
	if err != nil {
		return nil, s.unavailable("get", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *store[T]) GetQueries(ctx context.Context, preds []storage.Predicate) ([]T, error) {
	where, args, err := storage.BuildWhere(s.schema, preds)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s", s.schema.SelectList(), s.schema.Table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + s.schema.IDColumn

	rows := make([]T, 0)
	err = s.b.run(ctx, func(tx *gorm.DB) error {
		return tx.Raw(query, args...).Scan(&rows).Error
	})
	if err != nil {
		return nil, s.unavailable("query", err)
	}
	return rows, nil
}

func (s *store[T]) Create(ctx context.Context, req storage.Request[T]) (*T, error) {
	changes := req.Changes()
	if err := storage.CheckChanges(s.schema, changes); err != nil {
		return nil, err
	}
	cols, args := columnsAndArgs(changes)
	insert := s.insertStatement(cols)

	var rows []T
	err := s.b.run(ctx, func(tx *gorm.DB) error {
		if s.b.returning {
			return tx.Raw(insert+" RETURNING "+s.schema.SelectList(), args...).Scan(&rows).Error
		}
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(insert, args...).Error; err != nil {
				return err
			}
			var id int64
			if err := tx.Raw("SELECT LAST_INSERT_ID()").Scan(&id).Error; err != nil {
				return err
			}
			return tx.Raw(s.selectByID(), id).Scan(&rows).Error
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, storage.ErrConflict
		}
		s.log.Warn("create failed", zap.Error(err))
		return nil, storage.ErrNotCreated
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotCreated
	}
	return &rows[0], nil
}

func (s *store[T]) Update(ctx context.Context, req storage.Request[T]) (*T, error) {
	id, _ := req.TargetID()
	changes := req.Changes()
	if err := storage.CheckChanges(s.schema, changes); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		row, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, storage.ErrNotFound
		}
		return row, nil
	}

	cols, args := columnsAndArgs(changes)
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, col+" = ?")
	}
	update := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", s.schema.Table, strings.Join(sets, ", "), s.schema.IDColumn)
	args = append(args, id)

	var rows []T
	err := s.b.run(ctx, func(tx *gorm.DB) error {
		if s.b.returning {
			return tx.Raw(update+" RETURNING "+s.schema.SelectList(), args...).Scan(&rows).Error
		}
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(update, args...).Error; err != nil {
				return err
			}
			return tx.Raw(s.selectByID(), id).Scan(&rows).Error
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, storage.ErrConflict
		}
		return nil, s.unavailable("update", err)
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return &rows[0], nil
}

func (s *store[T]) Delete(ctx context.Context, id int64) (*T, error) {
	remove := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.schema.Table, s.schema.IDColumn)

	var rows []T
	err := s.b.run(ctx, func(tx *gorm.DB) error {
		if s.b.returning {
			return tx.Raw(remove+" RETURNING "+s.schema.SelectList(), id).Scan(&rows).Error
		}
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Raw(s.selectByID()+" FOR UPDATE", id).Scan(&rows).Error; err != nil {
				return err
			}
			if len(rows) == 0 {
				return nil
			}
			return tx.Exec(remove, id).Error
		})
	})
	if err != nil {
		return nil, s.unavailable("delete", err)
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return &rows[0], nil
}

func (s *store[T]) selectByID() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", s.schema.SelectList(), s.schema.Table, s.schema.IDColumn)
}

func (s *store[T]) insertStatement(cols []string) string {
	if len(cols) == 0 {
		if s.b.returning {
			return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", s.schema.Table)
		}
		return fmt.Sprintf("INSERT INTO %s () VALUES ()", s.schema.Table)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.schema.Table, strings.Join(cols, ", "), placeholders)
}

// unavailable logs the driver error and hides it from callers.
func (s *store[T]) unavailable(op string, err error) error {
	s.log.Error("storage operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s %s: %w", op, s.schema.Table, storage.ErrUnavailable)
}

func columnsAndArgs(changes map[string]any) ([]string, []any) {
	cols := make([]string, 0, len(changes))
	for col := range changes {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		args = append(args, changes[col])
	}
	return cols, args
}
