package migrate_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/dlokwo/portfolio/internal/db/testdb"
	"github.com/dlokwo/portfolio/internal/migrate"
)

func Test_RunFS(t *testing.T) {
	t.Run("ok, empty dir", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		got, err := migrate.RunFS(context.Background(), db, fstest.MapFS{}, metaForTest(t, "v1.0.0"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertMigrations(t, got, []migrate.Migration{})
		assertTable(t, db, []migrate.Migration{})
	})

	t.Run("ok, non-sql files and subdirs are skipped", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)
		meta := metaForTest(t, "v1.0.0")

		fileSys := fstest.MapFS{
			"0000_test_table.sql": {Data: []byte(`CREATE TABLE test_table (value TEXT NOT NULL);`)},
			"README.md":           {Data: []byte(`not a migration`)},
			"subdir/0001_iou.sql": {Data: []byte(`INVALID SQL, never ran`)},
		}

		got, err := migrate.RunFS(context.Background(), db, fileSys, meta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []migrate.Migration{
			{Sequence: 0, Filename: "0000_test_table.sql", Metadata: meta},
		}
		assertMigrations(t, got, want)
		assertTable(t, db, want)
	})

	t.Run("ok, progression of migrations", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		metas := []migrate.Metadata{
			metaForTest(t, "v1.0.0"),
			metaForTest(t, "v2.0.0"),
		}

		run1 := fstest.MapFS{
			"0000_test_table.sql": {Data: []byte(`CREATE TABLE test_table (value TEXT NOT NULL);`)},
		}
		run2 := fstest.MapFS{
			"0000_test_table.sql": run1["0000_test_table.sql"],
			"0001_add_row.sql":    {Data: []byte(`INSERT INTO test_table (value) VALUES ('one');`)},
			"0002_add_row.sql":    {Data: []byte(`INSERT INTO test_table (value) VALUES ('two');`)},
		}

		migrations := []migrate.Migration{
			{Sequence: 0, Filename: "0000_test_table.sql", Metadata: metas[0]},
			{Sequence: 1, Filename: "0001_add_row.sql", Metadata: metas[1]},
			{Sequence: 2, Filename: "0002_add_row.sql", Metadata: metas[1]},
		}

		t.Run("run_1", func(t *testing.T) {
			got, err := migrate.RunFS(context.Background(), db, run1, metas[0])
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			assertMigrations(t, got, migrations[:1])
			assertTable(t, db, migrations[:1])
			assertNrOfRowsInTestTable(t, db, 0)
		})

		t.Run("run_2", func(t *testing.T) {
			got, err := migrate.RunFS(context.Background(), db, run2, metas[1])
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Only the new migrations ran, each exactly once.
			assertMigrations(t, got, migrations[1:])
			assertTable(t, db, migrations)
			assertNrOfRowsInTestTable(t, db, 2)
		})

		t.Run("run_2 again is a no-op", func(t *testing.T) {
			got, err := migrate.RunFS(context.Background(), db, run2, metas[1])
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			assertMigrations(t, got, []migrate.Migration{})
			assertTable(t, db, migrations)
			assertNrOfRowsInTestTable(t, db, 2)
		})
	})

	t.Run("fail, error in migration rolls everything back", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		fileSys := fstest.MapFS{
			"0000_test_table.sql": {Data: []byte(`CREATE TABLE test_table (value TEXT NOT NULL);`)},
			"0001_typo.sql":       {Data: []byte(`INSER INTO test_table (value) VALUES ('oops');`)},
		}

		_, err := migrate.RunFS(context.Background(), db, fileSys, metaForTest(t, "v1.0.0"))

		var mErr migrate.MigrationError
		if !errors.As(err, &mErr) {
			t.Fatalf("got %T, want %T", err, mErr)
		}

		if mErr.Sequence != 1 || mErr.Filename != "0001_typo.sql" {
			t.Errorf("unexpected migration error: %v", mErr)
		}

		// The whole run failed, including the valid first migration.
		_, err = migrate.QueryMigrations(context.Background(), db)
		if !errors.Is(err, migrate.ErrNoTable) {
			t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrNoTable)
		}
	})

	t.Run("fail, migration file that ran before was removed", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)
		meta := metaForTest(t, "v1.0.0")

		run1 := fstest.MapFS{
			"0000_test_table.sql": {Data: []byte(`CREATE TABLE test_table (value TEXT NOT NULL);`)},
			"0001_add_row.sql":    {Data: []byte(`INSERT INTO test_table (value) VALUES ('one');`)},
		}

		_, err := migrate.RunFS(context.Background(), db, run1, meta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		run2 := fstest.MapFS{
			"0000_test_table.sql": run1["0000_test_table.sql"],
		}

		_, err = migrate.RunFS(context.Background(), db, run2, meta)
		if !errors.Is(err, migrate.ErrMigrationsMismatch) {
			t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrMigrationsMismatch)
		}

		assertNrOfRowsInTestTable(t, db, 1)
	})

	t.Run("fail, migration file that ran before was renamed", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)
		meta := metaForTest(t, "v1.0.0")

		run1 := fstest.MapFS{
			"0000_test_table.sql": {Data: []byte(`CREATE TABLE test_table (value TEXT NOT NULL);`)},
		}

		_, err := migrate.RunFS(context.Background(), db, run1, meta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		run2 := fstest.MapFS{
			"0000_renamed.sql": run1["0000_test_table.sql"],
		}

		_, err = migrate.RunFS(context.Background(), db, run2, meta)
		if !errors.Is(err, migrate.ErrMigrationsMismatch) {
			t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrMigrationsMismatch)
		}
	})
}

func Test_QueryMigrations(t *testing.T) {
	t.Run("fail, no table", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		_, err := migrate.QueryMigrations(context.Background(), db)
		if !errors.Is(err, migrate.ErrNoTable) {
			t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrNoTable)
		}
	})
}

func metaForTest(t *testing.T, version string) migrate.Metadata {
	t.Helper()

	ts, err := time.Parse(time.RFC3339, "2026-08-01T10:00:00Z")
	if err != nil {
		t.Fatalf("failed to parse time: %v", err)
	}

	return migrate.Metadata{
		AppVersion: version,
		Timestamp:  ts,
	}
}

func assertTable(t *testing.T, db *sql.DB, want []migrate.Migration) {
	t.Helper()

	got, err := migrate.QueryMigrations(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to query migrations: %v", err)
	}

	assertMigrations(t, got, want)
}

func assertMigrations(t *testing.T, got, want []migrate.Migration) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("got\n%+v\nwant\n%+v\n", got, want)
	}

	for i := range got {
		if !got[i].Equal(want[i]) {
			t.Errorf("got\n%+v\nwant\n%+v\n", got, want)
		}
	}
}

func assertNrOfRowsInTestTable(t *testing.T, db *sql.DB, want int) {
	t.Helper()

	var got int
	err := db.QueryRow(`SELECT COUNT(*) FROM test_table`).Scan(&got)
	if err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}

	if got != want {
		t.Errorf("got %d rows, want %d", got, want)
	}
}
