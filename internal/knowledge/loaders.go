package knowledge

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	// MaxPDFPages limits the number of pages to process
	MaxPDFPages = 100

	// MaxExtractedTextSize limits the extracted text size per document (1MB)
	MaxExtractedTextSize = 1024 * 1024
)

// loader turns raw file bytes into plain text
type loader func(data []byte) (string, error)

var loaders = map[string]loader{
	".txt":  loadText,
	".md":   loadMarkdown,
	".pdf":  loadPDF,
	".xlsx": loadXLSX,
}

// SupportedExtensions lists the file types the knowledge base indexes
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".pdf", ".xlsx"}
}

// IsSupported reports whether name has an indexable extension
func IsSupported(name string) bool {
	_, ok := loaders[strings.ToLower(filepath.Ext(name))]
	return ok
}

// LoadFile reads and extracts the text of one document
func LoadFile(path string) (string, error) {
	load, ok := loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	extracted, err := load(data)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", filepath.Base(path), err)
	}
	if len(extracted) > MaxExtractedTextSize {
		extracted = extracted[:MaxExtractedTextSize]
	}
	return extracted, nil
}

func loadText(data []byte) (string, error) {
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// loadMarkdown walks the goldmark AST and keeps the text of every block on its own line
func loadMarkdown(data []byte) (string, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(data))

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(data))
				}
				ensureNewline(&sb)
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(data))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				ensureNewline(&sb)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func ensureNewline(sb *strings.Builder) {
	s := sb.String()
	if len(s) > 0 && s[len(s)-1] != '\n' {
		sb.WriteByte('\n')
	}
}

// loadPDF extracts the plain text of every page
func loadPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}
	if totalPages > MaxPDFPages {
		return "", fmt.Errorf("PDF has too many pages (%d), max allowed is %d", totalPages, MaxPDFPages)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		plain, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages with extraction errors, don't fail completely
			continue
		}
		if cleaned := cleanPDFText(plain); cleaned != "" {
			sb.WriteString(cleaned)
			sb.WriteString("\n")
		}
		if sb.Len() > MaxExtractedTextSize {
			break
		}
	}
	return sb.String(), nil
}

// cleanPDFText removes null bytes and collapses runs of spaces, keeping newlines
func cleanPDFText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	var result strings.Builder
	lastWasSpace := false
	for _, r := range s {
		switch {
		case r == '\n':
			result.WriteRune('\n')
			lastWasSpace = false
		case unicode.IsSpace(r):
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			result.WriteRune(r)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(result.String())
}

// loadXLSX renders every sheet as one line per non-empty row, cells joined by " | "
func loadXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		fmt.Fprintf(&sb, "[%s]\n", sheet)
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if c := strings.TrimSpace(cell); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				sb.WriteString(strings.Join(cells, " | "))
				sb.WriteString("\n")
			}
		}
	}
	return sb.String(), nil
}
