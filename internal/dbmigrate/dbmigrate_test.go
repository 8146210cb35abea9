package dbmigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func migrations(table string) fstest.MapFS {
	return fstest.MapFS{
		"sql/000001_create.up.sql":   {Data: []byte("CREATE TABLE IF NOT EXISTS " + table + " (id TEXT PRIMARY KEY);")},
		"sql/000001_create.down.sql": {Data: []byte("DROP TABLE IF EXISTS " + table + ";")},
		"sql/000002_col.up.sql":      {Data: []byte("ALTER TABLE " + table + " ADD COLUMN note TEXT NOT NULL DEFAULT '';")},
		"sql/000002_col.down.sql":    {Data: []byte("ALTER TABLE " + table + " DROP COLUMN note;")},
	}
}

func TestUpIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	src := Source{FS: migrations("items"), Dir: "sql"}

	for i := 0; i < 2; i++ {
		v, err := Up(path, src)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if v != 2 {
			t.Fatalf("run %d: version = %d, want 2", i, v)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`INSERT INTO items (id, note) VALUES ('a', 'x')`); err != nil {
		t.Errorf("migrated schema unusable: %v", err)
	}
}

func TestSchemasShareFileWithSeparateTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	if _, err := Up(path, Source{FS: migrations("alpha"), Dir: "sql", Table: "alpha_migrations"}); err != nil {
		t.Fatalf("alpha: %v", err)
	}
	if _, err := Up(path, Source{FS: migrations("beta"), Dir: "sql", Table: "beta_migrations"}); err != nil {
		t.Fatalf("beta: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, table := range []string{"alpha", "beta"} {
		if _, err := db.Exec(`INSERT INTO ` + table + ` (id) VALUES ('a')`); err != nil {
			t.Errorf("%s not migrated: %v", table, err)
		}
	}
}

func TestUpRejectsMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	if _, err := Up(path, Source{FS: migrations("items"), Dir: "nope"}); err == nil {
		t.Error("expected an error for a missing migrations directory")
	}
}
