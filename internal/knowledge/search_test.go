package knowledge

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestKeywords(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"When is Nov 1 holiday?", []string{"when", "nov", "1", "holiday"}},
		{"fees, due 15", []string{"fees", "due", "15"}},
		{"is it", []string{"is it"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		got := Keywords(tt.query)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Keywords(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return lines
}

func TestSearchLines_MergesNearbyMatches(t *testing.T) {
	lines := numberedLines(20)
	lines[2] = "tuition deadline"
	lines[5] = "tuition refund"
	lines[15] = "tuition waiver"

	sections := SearchLines(lines, []string{"tuition"}, 2)
	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d: %q", len(sections), sections)
	}

	first := strings.Split(sections[0], "\n")
	if first[0] != "line 0" || first[len(first)-1] != "line 7" || len(first) != 8 {
		t.Errorf("Unexpected first section %q", first)
	}

	second := strings.Split(sections[1], "\n")
	if second[0] != "line 13" || second[len(second)-1] != "line 17" {
		t.Errorf("Unexpected second section %q", second)
	}
}

func TestSearchLines_ClampsAtEdges(t *testing.T) {
	lines := []string{"Bursar office", "email bursar@uni.edu"}
	sections := SearchLines(lines, []string{"bursar"}, 5)
	if len(sections) != 1 || sections[0] != "Bursar office\nemail bursar@uni.edu" {
		t.Errorf("Unexpected sections %q", sections)
	}
}

func TestSearchLines_NoMatch(t *testing.T) {
	if got := SearchLines(numberedLines(5), []string{"library"}, 3); got != nil {
		t.Errorf("Expected no sections, got %q", got)
	}
}
