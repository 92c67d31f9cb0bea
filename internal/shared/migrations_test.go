package shared

import (
	"database/sql"
	"errors"
	"slices"
	"testing"
)

func newMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrations(t *testing.T) {
	t.Run("parseMigrationName", func(t *testing.T) {
		tests := []struct {
			file      string
			version   int
			name      string
			direction string
			ok        bool
		}{
			{file: "0000_create_runs_up.sql", version: 0, name: "create_runs", direction: "up", ok: true},
			{file: "0012_add_index_down.sql", version: 12, name: "add_index", direction: "down", ok: true},
			{file: "0001_create_runs.sql"},
			{file: "readme.md"},
			{file: "latest_up.sql"},
		}
		for _, tt := range tests {
			t.Run(tt.file, func(t *testing.T) {
				version, name, direction, ok := parseMigrationName(tt.file)
				if ok != tt.ok {
					t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
				}
				if ok && (version != tt.version || name != tt.name || direction != tt.direction) {
					t.Errorf("got %d %q %q", version, name, direction)
				}
			})
		}
	})

	t.Run("splitStatements", func(t *testing.T) {
		script := "-- runs\nCREATE TABLE a (id TEXT); -- trailing\n\nCREATE INDEX i ON a(id);\n"
		got := splitStatements(script)
		want := []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX i ON a(id)"}
		if !slices.Equal(got, want) {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}
		if migrations[0].Name != "create_runs" {
			t.Errorf("expected the runs table first, got %q", migrations[0].Name)
		}
		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
	})

	t.Run("Migrate And Roll Back", func(t *testing.T) {
		db := newMemoryDB(t)
		migrations, _ := loadMigrations()

		n, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if n != len(migrations) {
			t.Errorf("expected %d migrations applied, got %d", len(migrations), n)
		}
		if _, err := db.Exec("SELECT matched, missed, unexpected FROM runs LIMIT 1"); err != nil {
			t.Errorf("runs table should exist after migrations: %v", err)
		}

		reverted, err := RollbackMigration(db)
		if err != nil {
			t.Fatalf("failed to roll back migration: %v", err)
		}
		if reverted.Version != migrations[len(migrations)-1].Version {
			t.Errorf("expected the latest migration to be reverted, got %d", reverted.Version)
		}

		applied, err := AppliedMigrations(db)
		if err != nil {
			t.Fatal(err)
		}
		if len(applied) != len(migrations)-1 {
			t.Errorf("expected %d applied after rollback, got %v", len(migrations)-1, applied)
		}
	})

	t.Run("Rollback On Fresh Database", func(t *testing.T) {
		db := newMemoryDB(t)

		if _, err := RollbackMigration(db); !errors.Is(err, ErrNoMigrations) {
			t.Errorf("expected %v, got %v", ErrNoMigrations, err)
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db := newMemoryDB(t)

		if _, err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}
		n, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}
		if n != 0 {
			t.Errorf("expected nothing pending, %d applied", n)
		}
	})
}
