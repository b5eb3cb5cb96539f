package knowledge

import (
	"campusbot/internal/models"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrRetrievalDegraded marks a retrieval failure. Callers log it and
// continue without context.
var ErrRetrievalDegraded = errors.New("retrieval degraded")

// maxContextChars bounds the context handed to a provider
const maxContextChars = 12000

// maxUploadBytes bounds a single uploaded document
const maxUploadBytes = 20 << 20

// Category is one knowledge base directory
type Category string

const (
	CategoryAcademic       Category = "academic"
	CategoryAdministrative Category = "administrative"
	CategoryEducational    Category = "educational"
)

// Categories returns every category in search order
func Categories() []Category {
	return []Category{CategoryAdministrative, CategoryAcademic, CategoryEducational}
}

// ParseCategory validates a category name
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid category %q: must be one of academic, administrative, educational", s)
}

// contextLines is the number of lines kept around each match.
// Calendars are dense, so academic files get less context.
func (c Category) contextLines() int {
	if c == CategoryAcademic {
		return 3
	}
	return 5
}

// Document is one loaded file
type Document struct {
	Category Category
	Name     string
	Path     string
	Lines    []string
	Size     int64
	ModTime  time.Time
}

// Base is the in-memory index over the knowledge directory. Reload builds a
// new index and swaps it in, so searches never see a half-built index.
type Base struct {
	dir string

	mu       sync.RWMutex
	docs     []*Document
	loadErr  error
	loadedAt time.Time
}

// NewBase creates a knowledge base rooted at dir. Call Reload to index it.
func NewBase(dir string) *Base {
	return &Base{dir: dir}
}

// Dir returns the root directory
func (b *Base) Dir() string {
	return b.dir
}

// Reload re-reads every supported file. Files that fail to load are skipped.
func (b *Base) Reload() error {
	var docs []*Document
	var loadErr error

	for _, cat := range Categories() {
		catDir := filepath.Join(b.dir, string(cat))
		if err := os.MkdirAll(catDir, 0755); err != nil {
			loadErr = fmt.Errorf("failed to prepare %s: %w", catDir, err)
			break
		}

		entries, err := os.ReadDir(catDir)
		if err != nil {
			loadErr = fmt.Errorf("failed to list %s: %w", catDir, err)
			break
		}

		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !IsSupported(entry.Name()) {
				continue
			}
			path := filepath.Join(catDir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				continue
			}
			content, err := LoadFile(path)
			if err != nil {
				log.Printf("⚠️  [KNOWLEDGE] Skipping %s: %v", path, err)
				continue
			}
			docs = append(docs, &Document{
				Category: cat,
				Name:     entry.Name(),
				Path:     path,
				Lines:    strings.Split(content, "\n"),
				Size:     info.Size(),
				ModTime:  info.ModTime(),
			})
		}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Category != docs[j].Category {
			return categoryRank(docs[i].Category) < categoryRank(docs[j].Category)
		}
		return docs[i].Name < docs[j].Name
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadErr = loadErr
	if loadErr != nil {
		return loadErr
	}
	b.docs = docs
	b.loadedAt = time.Now()
	log.Printf("📚 [KNOWLEDGE] Indexed %d document(s) from %s", len(docs), b.dir)
	return nil
}

func categoryRank(c Category) int {
	for i, known := range Categories() {
		if c == known {
			return i
		}
	}
	return len(Categories())
}

// Documents lists the indexed documents
func (b *Base) Documents() []models.KnowledgeDocument {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.KnowledgeDocument, 0, len(b.docs))
	for _, d := range b.docs {
		out = append(out, models.KnowledgeDocument{
			Category:   string(d.Category),
			Name:       d.Name,
			Size:       d.Size,
			Lines:      len(d.Lines),
			ModifiedAt: d.ModTime,
		})
	}
	return out
}

// Search returns matching sections from the given categories (all when none
// are named), grouped per file. An empty string means nothing matched.
func (b *Base) Search(query string, categories ...Category) string {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return ""
	}

	wanted := map[Category]bool{}
	for _, c := range categories {
		wanted[c] = true
	}

	b.mu.RLock()
	docs := b.docs
	b.mu.RUnlock()

	var results []string
	for _, d := range docs {
		if len(wanted) > 0 && !wanted[d.Category] {
			continue
		}
		sections := SearchLines(d.Lines, keywords, d.Category.contextLines())
		if len(sections) == 0 {
			continue
		}
		results = append(results, fmt.Sprintf("From %s:\n%s", d.Name, strings.Join(sections, "\n---\n")))
	}
	return strings.Join(results, "\n\n---\n\n")
}

// Retrieve searches every category for query. Failures wrap ErrRetrievalDegraded.
func (b *Base) Retrieve(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrievalDegraded, err)
	}

	b.mu.RLock()
	loadErr := b.loadErr
	b.mu.RUnlock()
	if loadErr != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrievalDegraded, loadErr)
	}

	found := b.Search(query)
	if len(found) > maxContextChars {
		found = found[:maxContextChars] + "\n..."
	}
	return found, nil
}

// Save stores an uploaded document in category and re-indexes the base
func (b *Base) Save(category Category, filename string, r io.Reader) (*models.KnowledgeDocument, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("invalid file name %q", filename)
	}
	if !IsSupported(name) {
		return nil, fmt.Errorf("unsupported file type %q: allowed %s", filepath.Ext(name), strings.Join(SupportedExtensions(), ", "))
	}

	catDir := filepath.Join(b.dir, string(category))
	if err := os.MkdirAll(catDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", catDir, err)
	}

	tmp, err := os.CreateTemp(catDir, ".upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, maxUploadBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if n > maxUploadBytes {
		return nil, fmt.Errorf("file exceeds %d MB limit", maxUploadBytes>>20)
	}

	// Reject files we cannot extract before they replace anything
	if _, err := LoadFile(tmp.Name()); err != nil {
		return nil, err
	}

	dest := filepath.Join(catDir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", name, err)
	}

	if err := b.Reload(); err != nil {
		return nil, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ [KNOWLEDGE] Stored %s/%s (%d bytes)", category, name, info.Size())
	return &models.KnowledgeDocument{
		Category:   string(category),
		Name:       name,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}
