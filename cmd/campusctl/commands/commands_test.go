package commands

import (
	"bytes"
	"campusbot/internal/database"
	"campusbot/internal/services"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PROVIDERS_FILE", filepath.Join(dir, "providers.yaml"))
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(dir, "campusbot.db"))
	t.Setenv("KNOWLEDGE_DIR", filepath.Join(dir, "kb"))
	return dir
}

func TestPromoteAdmins(t *testing.T) {
	dir := isolateEnv(t)
	t.Setenv("ADMIN_EMAIL_DOMAINS", "staff.uni.edu")

	db, err := database.New(filepath.Join(dir, "campusbot.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatal(err)
	}
	users := services.NewUserService(db, nil, nil)
	if _, err := users.CreateUser(context.Background(), "dean@staff.uni.edu", "dean", "hash"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	out, err := run(t, "promote-admins")
	if err != nil {
		t.Fatalf("promote-admins failed: %v", err)
	}
	if !strings.Contains(out, "promoted 1 user(s)") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPromoteAdmins_RequiresDomains(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ADMIN_EMAIL_DOMAINS", "")

	if _, err := run(t, "promote-admins"); err == nil {
		t.Error("expected error without ADMIN_EMAIL_DOMAINS")
	}
}

func TestTestProvider_UnknownKind(t *testing.T) {
	isolateEnv(t)

	if _, err := run(t, "test-provider", "claude"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestTestProvider_MissingServerKey(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OPENAI_API_KEY", "")

	out, err := run(t, "test-provider", "openai")
	if err == nil {
		t.Fatal("expected failure without a server key")
	}
	if !strings.Contains(out, "openai") {
		t.Errorf("result line missing from output %q", out)
	}
}

func TestReindex(t *testing.T) {
	dir := isolateEnv(t)
	kb := filepath.Join(dir, "kb")
	if err := os.MkdirAll(filepath.Join(kb, "academic"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(kb, "academic", "calendar.txt"), []byte("Classes begin Sept 2\nFinals Dec 10"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "reindex")
	if err != nil {
		t.Fatalf("reindex failed: %v", err)
	}
	if !strings.Contains(out, "calendar.txt") || !strings.Contains(out, "1 document(s) indexed") {
		t.Errorf("unexpected output %q", out)
	}
}
