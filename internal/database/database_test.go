package database

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test_database.db")

	db, err := New(tmpFile)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if db.Dialect != DialectSQLite {
		t.Errorf("Expected sqlite dialect, got %s", db.Dialect)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
}

func TestNew_SQLiteScheme(t *testing.T) {
	db, err := New("sqlite://" + filepath.Join(t.TempDir(), "scheme.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("/invalid/path/that/does/not/exist/test.db")
	if err == nil {
		t.Fatal("Expected error for invalid path, got nil")
	}
}

func TestInitialize(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test_init.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	for _, table := range []string{"users", "chats", "messages", "settings"} {
		var name string
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
		if err := db.QueryRow(query, table).Scan(&name); err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}

	exists, err := db.columnExists("users", "ai_provider")
	if err != nil || !exists {
		t.Errorf("Expected users.ai_provider migration, exists=%v err=%v", exists, err)
	}

	// Running twice must be a no-op
	if err := db.Initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}
}

func TestInitialize_CascadeDelete(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test_fk.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	if _, err := db.Exec("INSERT INTO chats (id, user_id, title) VALUES ('c1', 'u1', 'hello')"); err != nil {
		t.Fatalf("Failed to insert chat: %v", err)
	}
	if _, err := db.Exec("INSERT INTO messages (chat_id, user_message, assistant_message, provider) VALUES ('c1', 'q', 'a', 'ollama')"); err != nil {
		t.Fatalf("Failed to insert message: %v", err)
	}
	if _, err := db.Exec("DELETE FROM chats WHERE id = 'c1'"); err != nil {
		t.Fatalf("Failed to delete chat: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected messages to cascade, %d left", count)
	}
}

func TestUpsertClause(t *testing.T) {
	sqlite := &DB{Dialect: DialectSQLite}
	if got := sqlite.UpsertClause("setting_key", "value"); !strings.Contains(got, "ON CONFLICT(setting_key) DO UPDATE SET value = excluded.value") {
		t.Errorf("Unexpected sqlite clause %q", got)
	}

	mysql := &DB{Dialect: DialectMySQL}
	if got := mysql.UpsertClause("setting_key", "value"); !strings.Contains(got, "ON DUPLICATE KEY UPDATE value = VALUES(value)") {
		t.Errorf("Unexpected mysql clause %q", got)
	}
}
