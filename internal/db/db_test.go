package db

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bar.sqlite3")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	// Migrate must be idempotent.
	for i := 0; i < 2; i++ {
		if err := Migrate(database); err != nil {
			t.Fatalf("Migrate run %d: %v", i+1, err)
		}
	}

	for _, table := range []string{"members", "items", "transactions", "item_pictures", "users", "revoked_tokens", "settings"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	database := NewTestDB(t)

	_, err := database.Exec(`INSERT INTO members (barcode, nick, created_at, updated_at) VALUES ('1', 'a', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err = database.Exec(`INSERT INTO members (barcode, nick, created_at, updated_at) VALUES ('1', 'b', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Fatal("expected unique violation")
	}

	if !IsUniqueViolation(err, "") {
		t.Errorf("expected unique violation, got %v", err)
	}
	if !IsUniqueViolation(err, "members.barcode") {
		t.Errorf("expected members.barcode in %v", err)
	}
	if IsUniqueViolation(err, "members.nick") {
		t.Errorf("did not expect members.nick in %v", err)
	}
	if IsUniqueViolation(nil, "") {
		t.Error("nil error is not a unique violation")
	}
}

func TestIsUnavailable(t *testing.T) {
	database, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	database.Close()

	_, err = database.Exec(`SELECT 1`)
	if !IsUnavailable(err) {
		t.Errorf("expected closed database to be unavailable, got %v", err)
	}
	if IsUnavailable(errors.New("syntax error")) {
		t.Error("syntax error is not unavailability")
	}
}
