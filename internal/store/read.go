package store

import (
	"context"
	"fmt"
)

// QueryRows runs a row query over table and decodes every returned column
// by its declared type. Result order is the query's ORDER BY.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) QueryRows(ctx context.Context, table, query string, args ...any) ([]Row, error) {
	t, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("query %q: unknown table", table)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %q: columns: %w", table, err)
	}
	for _, n := range names {
		if _, ok := t.FieldType(n); !ok {
			return nil, fmt.Errorf("query %q: result column %q is not stored", table, n)
		}
	}

	out := []Row{}
	raw := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %q: %w", table, err)
		}
		row := make(Row, len(names))
		for i, n := range names {
			kind, _ := t.FieldType(n)
			v, err := unmarshalValue(kind, raw[i])
			if err != nil {
				return nil, fmt.Errorf("scan %q: column %q: %w", table, n, err)
			}
			row[n] = v
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %q: %w", table, err)
	}
	return out, nil
}

// QueryCount runs a query returning a single integer, e.g. SELECT COUNT(*).
func (s *Store) QueryCount(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
