package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK STORE
// Writes tracked entities generically from their Columns(). Modified
// entities only write the columns that changed.
// ══════════════════════════════════════════════════════════════════════════════

// Transactor runs a function inside a database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// Store implements changeset.Store on PostgreSQL.
type Store struct {
	db Transactor
}

var _ changeset.Store = (*Store)(nil)

// NewStore creates a store. *Connection is the production Transactor.
func NewStore(db Transactor) *Store {
	return &Store{db: db}
}

// Apply writes changes in order and runs beforeCommit in the same transaction.
func (s *Store) Apply(ctx context.Context, changes []changeset.Change, beforeCommit func(ctx context.Context) error) (changeset.SaveResult, error) {
	var result changeset.SaveResult

	err := s.db.InTx(ctx, func(q Querier) error {
		for _, c := range changes {
			switch c.State {
			case changeset.Added:
				if err := insertEntity(ctx, q, c.Entity); err != nil {
					return err
				}
				result.Inserted++
			case changeset.Modified:
				if len(c.Changed) == 0 {
					continue
				}
				if err := updateEntity(ctx, q, c); err != nil {
					return err
				}
				result.Updated++
			case changeset.Deleted:
				if err := deleteEntity(ctx, q, c.Entity); err != nil {
					return err
				}
				result.Deleted++
			}
		}
		if beforeCommit != nil {
			return beforeCommit(ctx)
		}
		return nil
	})
	if err != nil {
		return changeset.SaveResult{}, err
	}
	return result, nil
}

func insertEntity(ctx context.Context, q Querier, e changeset.Entity) error {
	cols := e.Columns()
	names := make([]string, 0, len(cols)+1)
	params := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)

	names = append(names, "id")
	params = append(params, "$1")
	args = append(args, e.Key())
	for _, c := range cols {
		args = append(args, c.Value)
		names = append(names, pgx.Identifier{c.Name}.Sanitize())
		params = append(params, fmt.Sprintf("$%d", len(args)))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{e.TableName()}.Sanitize(),
		strings.Join(names, ", "),
		strings.Join(params, ", "),
	)
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("persistence", "Insert", shared.ErrAlreadyExists, e.TableName()+" "+e.Key(), err)
		}
		return fmt.Errorf("insert %s %s: %w", e.TableName(), e.Key(), err)
	}
	return nil
}

func updateEntity(ctx context.Context, q Querier, c changeset.Change) error {
	values := make(map[string]any)
	for _, col := range c.Entity.Columns() {
		values[col.Name] = col.Value
	}

	changed := c.ChangedColumns()
	sets := make([]string, 0, len(changed))
	args := make([]any, 0, len(changed)+1)
	for _, name := range changed {
		args = append(args, values[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{name}.Sanitize(), len(args)))
	}
	args = append(args, c.Entity.Key())

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pgx.Identifier{c.Entity.TableName()}.Sanitize(),
		strings.Join(sets, ", "),
		len(args),
	)
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", c.Entity.TableName(), c.Entity.Key(), err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("persistence", "Update", shared.ErrConcurrentModification,
			c.Entity.TableName()+" "+c.Entity.Key()+" no longer exists")
	}
	return nil
}

func deleteEntity(ctx context.Context, q Querier, e changeset.Entity) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pgx.Identifier{e.TableName()}.Sanitize())
	if _, err := q.Exec(ctx, sql, e.Key()); err != nil {
		return fmt.Errorf("delete %s %s: %w", e.TableName(), e.Key(), err)
	}
	return nil
}
