package driver

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestNewDriver(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		wantErr bool
	}{
		{"sqlite", DialectSQLite, false},
		{"postgres", DialectPostgres, false},
		{"invalid", Dialect("invalid"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, err := New(tt.dialect)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if drv == nil {
				t.Error("expected driver, got nil")
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input   string
		want    Dialect
		wantErr bool
	}{
		{"sqlite", DialectSQLite, false},
		{"sqlite3", DialectSQLite, false},
		{"postgres", DialectPostgres, false},
		{"postgresql", DialectPostgres, false},
		{"pg", DialectPostgres, false},
		{"mysql", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDialect(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLiteDriver(t *testing.T) {
	drv := NewSQLite()
	if err := drv.Open(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = drv.Close() }()

	if drv.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %v, want %v", drv.Dialect(), DialectSQLite)
	}
	if drv.Placeholder(3) != "?" {
		t.Errorf("Placeholder(3) = %v, want ?", drv.Placeholder(3))
	}
	if drv.DB() == nil {
		t.Error("DB() returned nil")
	}

	ctx := context.Background()
	if _, err := drv.Exec(ctx, "CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("Exec CREATE TABLE failed: %v", err)
	}
	if _, err := drv.Exec(ctx, "INSERT INTO test (name) VALUES (?)", "hello"); err != nil {
		t.Fatalf("Exec INSERT failed: %v", err)
	}

	var name string
	if err := drv.QueryRow(ctx, "SELECT name FROM test WHERE id = ?", 1).Scan(&name); err != nil {
		t.Errorf("QueryRow Scan failed: %v", err)
	}
	if name != "hello" {
		t.Errorf("got %q, want 'hello'", name)
	}
}

func TestSQLiteDriver_InMemorySharesOneDatabase(t *testing.T) {
	drv := NewSQLite()
	if err := drv.Open(":memory:"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = drv.Close() }()

	ctx := context.Background()
	if _, err := drv.Exec(ctx, "CREATE TABLE t (v TEXT)"); err != nil {
		t.Fatal(err)
	}
	// A second statement must see the table created by the first
	rows, err := drv.Query(ctx, "SELECT v FROM t")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	_ = rows.Close()
}

func TestDriver_CloseWithoutOpen(t *testing.T) {
	if err := NewSQLite().Close(); err != nil {
		t.Errorf("sqlite Close without Open failed: %v", err)
	}
	if err := NewPostgres().Close(); err != nil {
		t.Errorf("postgres Close without Open failed: %v", err)
	}
}

func TestPostgresDriver_Placeholder(t *testing.T) {
	drv := NewPostgres()

	tests := []struct {
		index int
		want  string
	}{
		{1, "$1"},
		{2, "$2"},
		{10, "$10"},
	}

	for _, tt := range tests {
		if got := drv.Placeholder(tt.index); got != tt.want {
			t.Errorf("Placeholder(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
	if drv.Dialect() != DialectPostgres {
		t.Errorf("Dialect() = %v, want %v", drv.Dialect(), DialectPostgres)
	}
}

func TestSQLiteMigrate(t *testing.T) {
	drv := NewSQLite()
	if err := drv.Open(":memory:"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = drv.Close() }()

	schema := fstest.MapFS{
		"schema/test_001.sql": {Data: []byte(`CREATE TABLE first (id INTEGER PRIMARY KEY);`)},
		"schema/test_002.sql": {Data: []byte(`ALTER TABLE first ADD COLUMN name TEXT;`)},
		"schema/other_001.sql": {Data: []byte(`CREATE TABLE unrelated (id INTEGER);`)},
		"schema/postgres/test_001.sql": {Data: []byte(`CREATE TABLE pg_only (id SERIAL);`)},
	}

	ctx := context.Background()
	if err := drv.Migrate(ctx, schema, "test"); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	if _, err := drv.Exec(ctx, "INSERT INTO first (name) VALUES (?)", "x"); err != nil {
		t.Errorf("second migration not applied: %v", err)
	}

	var count int
	if err := drv.QueryRow(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name IN ('unrelated', 'pg_only')").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("migrations for other schema types or dialects applied: %d tables", count)
	}

	// Run again - should be idempotent
	if err := drv.Migrate(ctx, schema, "test"); err != nil {
		t.Errorf("second Migrate failed: %v", err)
	}
	if err := drv.QueryRow(ctx, "SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("recorded migrations = %d, want 2", count)
	}
}

func TestSQLiteMigrate_BadSQLRollsBack(t *testing.T) {
	drv := NewSQLite()
	if err := drv.Open(":memory:"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = drv.Close() }()

	schema := fstest.MapFS{
		"schema/bad_001.sql": {Data: []byte(`CREATE TABLE oops (`)},
	}

	ctx := context.Background()
	if err := drv.Migrate(ctx, schema, "bad"); err == nil {
		t.Fatal("expected migration error")
	}

	var count int
	if err := drv.QueryRow(ctx, "SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("failed migration recorded: %d", count)
	}
}

func TestExtractVersion(t *testing.T) {
	if v := extractVersion("history_012.sql", "history_"); v != 12 {
		t.Errorf("extractVersion = %d, want 12", v)
	}
}
