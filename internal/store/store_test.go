package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
	"github.com/roach88/delegate/internal/testutil"
)

// createTestStore creates an in-memory store with Contacts loaded.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.CreateTable(ctx, testutil.Contacts()); err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	rows := []Row{
		{"contactid": testutil.Key("Contacts", 1), "fullname": ir.String("Ada"), "age": ir.Int(36)},
		{"contactid": testutil.Key("Contacts", 2), "fullname": ir.String("Grace"), "age": ir.Int(85)},
		{"contactid": testutil.Key("Contacts", 3), "fullname": ir.String("Linus"), "age": ir.Int(17)},
	}
	if err := s.Insert(ctx, "Contacts", rows); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	return s
}

func TestOpen_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.CreateTable(context.Background(), testutil.Accounts()); err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var s Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on zero Store = %v", err)
	}
}

func TestQueryRows_RoundTrip(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.QueryRows(context.Background(), "Contacts",
		`SELECT "contactid", "fullname", "accountid", "age" FROM "Contacts" WHERE "age" > ? ORDER BY "age" ASC`, 18)
	if err != nil {
		t.Fatalf("QueryRows() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first["fullname"] != ir.String("Ada") {
		t.Errorf("fullname = %v, want Ada", first["fullname"])
	}
	if first["contactid"] != ir.Value(testutil.Key("Contacts", 1)) {
		t.Errorf("contactid = %v, want %v", first["contactid"], testutil.Key("Contacts", 1))
	}
	if first["accountid"] != ir.Value(ir.Null{}) {
		t.Errorf("accountid = %v, want blank", first["accountid"])
	}
	if first["age"] != ir.Value(ir.Int(36)) {
		t.Errorf("age = %v, want 36", first["age"])
	}
}

func TestQueryRows_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.QueryRows(context.Background(), "Contacts", `SELECT "fullname" FROM "Contacts" WHERE "age" > ?`, 1000)
	if err != nil {
		t.Fatalf("QueryRows() failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("QueryRows() = %#v, want empty slice", rows)
	}
}

func TestQueryCount(t *testing.T) {
	s := createTestStore(t)

	n, err := s.QueryCount(context.Background(), `SELECT COUNT(*) FROM "Contacts" WHERE "age" < ?`, 40)
	if err != nil {
		t.Fatalf("QueryCount() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestStorageTypes(t *testing.T) {
	table := &metadata.Table{
		Name:         "Flags",
		PrimaryKey:   "id",
		Capabilities: queryir.CapAll,
		Columns: []metadata.Column{
			{Name: "id", Type: ir.KindString},
			{Name: "on", Type: ir.KindBoolean},
			{Name: "price", Type: ir.KindCurrency},
		},
	}
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.CreateTable(ctx, table); err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	err = s.Insert(ctx, "Flags", []Row{
		{"id": ir.String("a"), "on": ir.Bool(true), "price": ir.Decimal("12.5")},
	})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	rows, err := s.QueryRows(ctx, "Flags", `SELECT "id", "on", "price" FROM "Flags"`)
	if err != nil {
		t.Fatalf("QueryRows() failed: %v", err)
	}
	if rows[0]["on"] != ir.Value(ir.Bool(true)) {
		t.Errorf("on = %v, want true", rows[0]["on"])
	}
	if rows[0]["price"] != ir.Value(ir.Decimal("12.5")) {
		t.Errorf("price = %v, want 12.5", rows[0]["price"])
	}
}

func TestInsert_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rows []Row
	}{
		{"unknown column", []Row{{"contactid": testutil.Key("Contacts", 9), "nickname": ir.String("x")}}},
		{"type mismatch", []Row{{"contactid": testutil.Key("Contacts", 9), "age": ir.String("old")}}},
		{"duplicate key", []Row{{"contactid": testutil.Key("Contacts", 1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Insert(ctx, "Contacts", tt.rows); err == nil {
				t.Error("Insert() succeeded, want error")
			}
		})
	}

	if err := s.Insert(ctx, "Missing", nil); err == nil {
		t.Error("Insert() into unknown table succeeded")
	}
}

func TestInsert_Atomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Insert(ctx, "Contacts", []Row{
		{"contactid": testutil.Key("Contacts", 10), "fullname": ir.String("New")},
		{"contactid": testutil.Key("Contacts", 1), "fullname": ir.String("Duplicate")},
	})
	if err == nil {
		t.Fatal("Insert() succeeded, want duplicate key error")
	}

	n, err := s.QueryCount(ctx, `SELECT COUNT(*) FROM "Contacts"`)
	if err != nil {
		t.Fatalf("QueryCount() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d after failed insert, want 3", n)
	}
}

func TestCreateTable_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.CreateTable(ctx, testutil.Contacts()); err == nil {
		t.Error("CreateTable() twice succeeded")
	}
	if err := s.CreateTable(ctx, &metadata.Table{Name: "Empty"}); err == nil {
		t.Error("CreateTable() without columns succeeded")
	}
	bad := &metadata.Table{Name: "Bad", Columns: []metadata.Column{{Name: "x", Type: ir.KindRecord}}}
	if err := s.CreateTable(ctx, bad); err == nil {
		t.Error("CreateTable() with record column succeeded")
	}
	if _, ok := s.Table("Contacts"); !ok {
		t.Error("Table(Contacts) not found")
	}
}
