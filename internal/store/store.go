package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/querysql"
)

// Row is one stored record keyed by column name.
type Row map[string]ir.Value

// Store holds the rows of every table it was asked to create.
type Store struct {
	db     *sql.DB
	tables map[string]*metadata.Table
}

// Open creates or opens a SQLite database at the given path. Use ":memory:"
// for a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: an in-memory database is private to its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db, tables: make(map[string]*metadata.Table)}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Table returns the metadata a table was created with.
func (s *Store) Table(name string) (*metadata.Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

var storageTypes = map[ir.Kind]string{
	ir.KindBoolean:  "INTEGER",
	ir.KindNumber:   "NUMERIC",
	ir.KindDecimal:  "NUMERIC",
	ir.KindCurrency: "NUMERIC",
	ir.KindString:   "TEXT",
	ir.KindGuid:     "TEXT",
	ir.KindDateTime: "TEXT",
}

// CreateTable creates the SQLite table for t. The primary key column is
// declared PRIMARY KEY.
func (s *Store) CreateTable(ctx context.Context, t *metadata.Table) error {
	if _, exists := s.tables[t.Name]; exists {
		return fmt.Errorf("create table %q: already exists", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("create table %q: no columns", t.Name)
	}

	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ, ok := storageTypes[c.Type]
		if !ok {
			return fmt.Errorf("create table %q: column %q has unsupported type %s", t.Name, c.Name, c.Type)
		}
		defs[i] = querysql.Quote(c.Name) + " " + typ
		if c.Name == t.PrimaryKey {
			defs[i] += " PRIMARY KEY"
		}
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", querysql.Quote(t.Name), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %q: %w", t.Name, err)
	}
	s.tables[t.Name] = t
	return nil
}
