package knowledge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var monthAbbreviations = map[string]bool{
	"jan": true, "feb": true, "mar": true, "apr": true, "may": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "oct": true, "nov": true, "dec": true,
}

// Keywords splits a query into search terms. Digits, month abbreviations and
// words longer than two characters are kept; if nothing survives the whole
// query is used as a single term.
func Keywords(query string) []string {
	var keywords []string
	for _, field := range strings.Fields(query) {
		kw := strings.TrimRight(strings.ToLower(field), ",?.!;:")
		if kw == "" {
			continue
		}
		if isDigits(kw) || utf8.RuneCountInString(kw) > 2 || monthAbbreviations[kw] {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
			keywords = []string{q}
		}
	}
	return keywords
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// SearchLines returns the sections of lines that mention any keyword, each
// with contextLines lines around the match. Matches closer than twice the
// context are merged into one section.
func SearchLines(lines []string, keywords []string, contextLines int) []string {
	if len(keywords) == 0 {
		return nil
	}

	var matched []int
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, i)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	var sections []string
	var current []string
	last := -1 << 30

	for _, n := range matched {
		if n-last > contextLines*2 {
			if len(current) > 0 {
				sections = append(sections, strings.Join(current, "\n"))
			}
			current = nil
			start := max(0, n-contextLines)
			end := min(len(lines)-1, n+contextLines)
			current = append(current, lines[start:end+1]...)
		} else {
			// Extend with the lines past the previous section's tail
			start := last + contextLines + 1
			end := min(len(lines)-1, n+contextLines)
			if start <= end {
				current = append(current, lines[start:end+1]...)
			}
		}
		last = n
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}
