package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/delegate/internal/querysql"
)

// Insert appends rows to a table created with CreateTable. Columns missing
// from a row are stored as blank. All rows are written in one transaction:
// on error none of them are.
func (s *Store) Insert(ctx context.Context, table string, rows []Row) error {
	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("insert into %q: unknown table", table)
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = querysql.Quote(c.Name)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		querysql.Quote(t.Name),
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert into %q: %w", table, err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		for name := range row {
			if _, ok := t.FieldType(name); !ok {
				return fmt.Errorf("insert into %q: row %d: unknown column %q", table, i, name)
			}
		}
		args := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			v, err := marshalValue(c.Type, row[c.Name])
			if err != nil {
				return fmt.Errorf("insert into %q: row %d: column %q: %w", table, i, c.Name, err)
			}
			args[j] = v
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert into %q: row %d: %w", table, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert into %q: %w", table, err)
	}
	return nil
}
