package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestMigrationFiles_Sorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "001_a.sql" {
		t.Errorf("unexpected files %v", files)
	}

	if _, err := migrationFiles(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestApplyMigrations_StopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "001_init.sql")
	second := filepath.Join(dir, "002_bad.sql")
	os.WriteFile(first, []byte("CREATE TABLE watchlist (symbol TEXT);"), 0o644)
	os.WriteFile(second, []byte("CREATE TABLE broken"), 0o644)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE watchlist (symbol TEXT);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE broken")).WillReturnError(errors.New("syntax error"))

	logger, hook := test.NewNullLogger()
	err = applyMigrations(context.Background(), db, []string{first, second}, logger)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(hook.AllEntries()) != 2 {
		t.Errorf("expected 2 log entries, got %d", len(hook.AllEntries()))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
