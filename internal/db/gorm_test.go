package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestOpenGormSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carsa.db")
	db, err := OpenGorm("sqlite", path, nil)
	if err != nil {
		t.Fatalf("open gorm sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
}

func TestOpenGormInvalidDriver(t *testing.T) {
	if _, err := OpenGorm("invalid", "x", nil); err == nil {
		t.Fatalf("expected invalid driver error")
	}
	if _, err := OpenGorm("postgres", "", nil); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestOpenGormSQLiteCreatesParentDirectory(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	dbPath := filepath.Join(t.TempDir(), "nested", "path", "carsa.db")

	db, err := OpenGorm("sqlite", dbPath, logger)
	if err != nil {
		t.Fatalf("open gorm sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Fatalf("expected parent dir to be created: %v", err)
	}
}

func TestSQLiteFilePath(t *testing.T) {
	cases := []struct {
		dsn  string
		path string
		ok   bool
	}{
		{dsn: ":memory:", ok: false},
		{dsn: "file::memory:?cache=shared", ok: false},
		{dsn: "file:data/carsa.db?mode=memory", ok: false},
		{dsn: "data/carsa.db?_pragma=busy_timeout(5000)", path: "data/carsa.db", ok: true},
		{dsn: "file:/tmp/carsa.db?cache=shared", path: "/tmp/carsa.db", ok: true},
		{dsn: "file:data/carsa.db", path: "data/carsa.db", ok: true},
	}
	for _, tc := range cases {
		path, ok := sqliteFilePath(tc.dsn)
		if ok != tc.ok || path != tc.path {
			t.Fatalf("sqliteFilePath(%q) = %q, %v; want %q, %v", tc.dsn, path, ok, tc.path, tc.ok)
		}
	}
}
