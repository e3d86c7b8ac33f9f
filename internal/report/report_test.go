package report

import (
	"strings"
	"testing"

	"github.com/medwiki-tools/editor-stats/internal/aggregate"
	"github.com/medwiki-tools/editor-stats/internal/config"
)

func testFiles(t *testing.T) *Files {
	t.Helper()
	return NewFiles(config.OutputConfig{Dir: t.TempDir()})
}

func TestTitlesRoundTrip(t *testing.T) {
	f := testFiles(t)

	titles := []string{"Asthme", "Choléra", "Diabète_sucré"}
	if err := f.SaveTitles("fr", titles); err != nil {
		t.Fatalf("SaveTitles: %v", err)
	}

	loaded, err := f.LoadTitles("fr")
	if err != nil {
		t.Fatalf("LoadTitles: %v", err)
	}
	if len(loaded) != 3 || loaded[2] != "Diabète_sucré" {
		t.Errorf("loaded = %v", loaded)
	}

	langs, err := f.Languages()
	if err != nil {
		t.Fatalf("Languages: %v", err)
	}
	if len(langs) != 1 || langs[0] != "fr" {
		t.Errorf("Languages = %v", langs)
	}
}

func TestLoadTitlesMissing(t *testing.T) {
	f := testFiles(t)
	if _, err := f.LoadTitles("xx"); err == nil {
		t.Error("missing title list should be an error")
	}
}

func TestEditorsRoundTrip(t *testing.T) {
	f := testFiles(t)

	entries := []aggregate.Entry{{Name: "Doc_James", Count: 120}, {Name: "Ozzie10aaaa", Count: 45}}
	if err := f.SaveEditors("de", entries); err != nil {
		t.Fatalf("SaveEditors: %v", err)
	}

	loaded, err := f.LoadEditors("de")
	if err != nil {
		t.Fatalf("LoadEditors: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Name != "Doc_James" || loaded[0].Count != 120 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadEditorsMissingIsEmpty(t *testing.T) {
	f := testFiles(t)
	entries, err := f.LoadEditors("xx")
	if err != nil {
		t.Fatalf("LoadEditors: %v", err)
	}
	if entries != nil {
		t.Errorf("missing editor data should be empty, got %+v", entries)
	}
}

func TestRenderLanguage(t *testing.T) {
	entries := []aggregate.Entry{
		{Name: "Doc_James", Count: 1234},
		{Name: "Ozzie10aaaa", Count: 45},
	}
	text := RenderLanguage("de", entries, 2500, "2025")

	for _, want := range []string{
		"{{Top medical editors by lang|2025}}",
		"There are 2,500 articles in de",
		"[[:w:de:user:Doc James|Doc James]]",
		"|1,234",
		"!2\n|[[:w:de:user:Ozzie10aaaa|Ozzie10aaaa]]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}

func TestRenderLanguageArabicSkipsTitleCount(t *testing.T) {
	text := RenderLanguage("ar", []aggregate.Entry{{Name: "X", Count: 1}}, 0, "2025")
	if strings.Contains(text, "articles in ar") {
		t.Error("arwiki report should not claim a title count")
	}
}

func TestRenderLanguageCapsAtHundred(t *testing.T) {
	entries := make([]aggregate.Entry, 150)
	for i := range entries {
		entries[i] = aggregate.Entry{Name: "U", Count: int64(1000 - i)}
	}
	text := RenderLanguage("fr", entries, 10, "2025")

	if !strings.Contains(text, "!100\n") {
		t.Error("rank 100 should be present")
	}
	if strings.Contains(text, "!101\n") {
		t.Error("report must stop at rank 100")
	}
}

func TestGlobalTop(t *testing.T) {
	perLang := map[string][]aggregate.Entry{
		"de": {{Name: "Doc_James", Count: 50}, {Name: "LocalHero", Count: 80}},
		"fr": {{Name: "Doc_James", Count: 70}},
	}

	got := GlobalTop(perLang, 100)
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	// Doc_James sums to 120 globally but is attributed to fr (70 > 50).
	if got[0].Name != "LocalHero" || got[0].Count != 80 {
		t.Errorf("first = %+v, want LocalHero at 80 (home-wiki ranking)", got[0])
	}
	if got[1].Name != "Doc_James" || got[1].Wiki != "fr" || got[1].Count != 70 {
		t.Errorf("second = %+v, want Doc_James attributed to fr", got[1])
	}
}

func TestRenderGlobal(t *testing.T) {
	entries := []GlobalEntry{
		{Name: "Doc_James", Count: 1500, Wiki: "en"},
		{Name: "Petit_Editeur", Count: 5, Wiki: "fr"},
		{Name: "Unseen", Count: 3, Wiki: "de"},
	}
	text := RenderGlobal(entries, "2025")

	for _, want := range []string{
		"Numbers of 2025.",
		"#{{#target:User:Doc James|en.wikipedia.org}}",
		"[[:w:en:user:Doc James|Doc James]]",
		"|1,500",
		"==users==",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("global report missing %q", want)
		}
	}

	// The table includes the first sub-ten editor, then stops.
	if !strings.Contains(text, "Petit Editeur") {
		t.Error("first sub-ten editor should close the table")
	}
	if strings.Contains(text, "[[:w:de:user:Unseen|Unseen]]") {
		t.Error("table rows after the cutoff should not appear")
	}
}

func TestWriteReports(t *testing.T) {
	f := testFiles(t)
	if err := f.SaveTitles("de", []string{"Asthma"}); err != nil {
		t.Fatalf("SaveTitles: %v", err)
	}

	entries := []aggregate.Entry{{Name: "Doc_James", Count: 12}}
	path, err := f.WriteLanguageReport("de", entries, "2025")
	if err != nil {
		t.Fatalf("WriteLanguageReport: %v", err)
	}
	if !strings.HasSuffix(path, "de.wiki") {
		t.Errorf("path = %q", path)
	}

	global, err := f.WriteGlobalReport(map[string][]aggregate.Entry{"de": entries}, "2025")
	if err != nil {
		t.Fatalf("WriteGlobalReport: %v", err)
	}
	text, err := f.ReadReport("total_report.wiki")
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if !strings.Contains(text, "Doc James") {
		t.Errorf("global report %s missing editor", global)
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.n); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
