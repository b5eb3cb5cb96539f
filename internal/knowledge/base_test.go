package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeDoc(t *testing.T, root string, cat Category, name, content string) {
	t.Helper()
	dir := filepath.Join(root, string(cat))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBase_ReloadAndSearch(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, CategoryAcademic, "calendar.txt", "Fall semester starts Aug 18\nNov 1 holiday: Founders Day\n")
	writeDoc(t, root, CategoryAdministrative, "fees.md", "# Fees\n\nTuition is due **Aug 1**.\n\n- Bursar: bursar@uni.edu\n")
	writeDoc(t, root, CategoryEducational, "ignored.docx", "not indexed")

	b := NewBase(root)
	if err := b.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	docs := b.Documents()
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}

	got := b.Search("when is tuition due")
	if !strings.Contains(got, "From fees.md:") || !strings.Contains(got, "Tuition is due Aug 1.") {
		t.Errorf("Unexpected search result %q", got)
	}
	if strings.Contains(got, "**") {
		t.Error("Markdown markup should be stripped")
	}

	holiday := b.Search("nov 1 holiday", CategoryAcademic)
	if !strings.Contains(holiday, "Founders Day") || strings.Contains(holiday, "fees.md") {
		t.Errorf("Unexpected category-scoped result %q", holiday)
	}

	if b.Search("zzzz") != "" {
		t.Error("Expected empty result for unmatched query")
	}
}

func TestBase_Retrieve(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, CategoryAdministrative, "library.txt", "Library hours: 8am to 10pm\n")

	b := NewBase(root)
	if err := b.Reload(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	found, err := b.Retrieve(ctx, "library hours")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !strings.Contains(found, "8am to 10pm") {
		t.Errorf("Unexpected context %q", found)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := b.Retrieve(cancelled, "library"); !errors.Is(err, ErrRetrievalDegraded) {
		t.Errorf("Expected ErrRetrievalDegraded, got %v", err)
	}
}

func TestBase_RetrieveDegradedWhenRootUnusable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(root, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	b := NewBase(root)
	if err := b.Reload(); err == nil {
		t.Fatal("Expected reload to fail when root is a file")
	}
	if _, err := b.Retrieve(context.Background(), "anything"); !errors.Is(err, ErrRetrievalDegraded) {
		t.Errorf("Expected ErrRetrievalDegraded, got %v", err)
	}
}

func TestBase_Save(t *testing.T) {
	root := t.TempDir()
	b := NewBase(root)
	if err := b.Reload(); err != nil {
		t.Fatal(err)
	}

	doc, err := b.Save(CategoryEducational, "../../sql-course.txt", strings.NewReader("SQL joins are covered in week 3\n"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if doc.Name != "sql-course.txt" {
		t.Errorf("Expected path components stripped, got %q", doc.Name)
	}
	if _, err := os.Stat(filepath.Join(root, "educational", "sql-course.txt")); err != nil {
		t.Errorf("Expected file in category dir: %v", err)
	}
	if !strings.Contains(b.Search("joins"), "week 3") {
		t.Error("Expected saved document to be searchable immediately")
	}

	if _, err := b.Save(CategoryEducational, "virus.exe", strings.NewReader("x")); err == nil {
		t.Error("Expected unsupported extension to be rejected")
	}
	if _, err := b.Save(CategoryEducational, "broken.pdf", strings.NewReader("not a pdf")); err == nil {
		t.Error("Expected unreadable PDF to be rejected")
	}
	if _, err := os.Stat(filepath.Join(root, "educational", "broken.pdf")); !os.IsNotExist(err) {
		t.Error("Rejected upload must not be stored")
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Course")
	f.SetCellValue("Sheet1", "B1", "Room")
	f.SetCellValue("Sheet1", "A2", "Databases")
	f.SetCellValue("Sheet1", "B2", "B-204")

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	got, err := loadXLSX(buf.Bytes())
	if err != nil {
		t.Fatalf("loadXLSX failed: %v", err)
	}
	if !strings.Contains(got, "[Sheet1]") || !strings.Contains(got, "Databases | B-204") {
		t.Errorf("Unexpected extraction %q", got)
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory(" Academic "); err != nil || c != CategoryAcademic {
		t.Errorf("Unexpected result %q %v", c, err)
	}
	if _, err := ParseCategory("finance"); err == nil {
		t.Error("Expected error for unknown category")
	}
}
