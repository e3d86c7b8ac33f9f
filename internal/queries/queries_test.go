package queries

import (
	"strings"
	"testing"
)

func TestTitleLinks(t *testing.T) {
	query, args := TitleLinks("Medicine")
	if !strings.Contains(query, "LEFT JOIN langlinks") {
		t.Error("query must keep pages without langlinks")
	}
	if !strings.Contains(query, "page_is_redirect = 0") {
		t.Error("redirects must be excluded")
	}
	if len(args) != 1 || args[0] != "Medicine" {
		t.Errorf("args = %v", args)
	}
}

func TestEditorCountsStandard(t *testing.T) {
	titles := []string{"Asthma", "Cholera", "Diabetes"}
	query, args, err := EditorCountsStandard(titles, "2025")
	if err != nil {
		t.Fatalf("EditorCountsStandard: %v", err)
	}

	if got := strings.Count(query, "?"); got != len(titles)+1 {
		t.Errorf("placeholder count = %d, want %d", got, len(titles)+1)
	}
	if len(args) != len(titles)+1 {
		t.Fatalf("args = %d, want %d", len(args), len(titles)+1)
	}
	if args[0] != "Asthma" || args[len(args)-1] != "2025" {
		t.Errorf("args order wrong: %v", args)
	}
	if !strings.Contains(query, "NOT LIKE '%bot%'") {
		t.Errorf("missing bot pre-filter:\n%s", query)
	}
	if strings.Contains(query, "%%") {
		t.Errorf("unexpanded format verb in query:\n%s", query)
	}
}

func TestEditorCountsStandardRejectsEmptyTitles(t *testing.T) {
	if _, _, err := EditorCountsStandard(nil, "2025"); err == nil {
		t.Error("empty title list should be rejected")
	}
}

func TestEditorCountsArabic(t *testing.T) {
	query, args := EditorCountsArabic("2025")
	if !strings.Contains(query, "طب") {
		t.Error("arwiki query must select by the Arabic project assessment")
	}
	if !strings.Contains(query, "LIMIT 100") {
		t.Error("arwiki query must cap results")
	}
	if len(args) != 1 || args[0] != "2025" {
		t.Errorf("args = %v", args)
	}
}

func TestEditorCountsEnglish(t *testing.T) {
	query, args := EditorCountsEnglish("2025")
	if !strings.Contains(query, "WikiProject_Medicine") {
		t.Error("enwiki query must scope by the project banner")
	}
	if !strings.Contains(query, "page_namespace = 1") {
		t.Error("banner lookup must go through talk pages")
	}
	if len(args) != 1 || args[0] != "2025" {
		t.Errorf("args = %v", args)
	}
}
