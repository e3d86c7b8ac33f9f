// Package report persists intermediate analysis data and renders the
// WikiText reports built from it.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/medwiki-tools/editor-stats/internal/aggregate"
	"github.com/medwiki-tools/editor-stats/internal/config"
	"github.com/medwiki-tools/editor-stats/internal/logging"
)

// Files reads and writes the per-language data files under the output tree:
// title lists, editor counts, and rendered reports.
type Files struct {
	out config.OutputConfig
}

// NewFiles returns a Files rooted at the configured output directory.
func NewFiles(out config.OutputConfig) *Files {
	return &Files{out: out}
}

// SaveTitles writes the title list for one language.
func (f *Files) SaveTitles(lang string, titles []string) error {
	return writeJSON(filepath.Join(f.out.TitlesDir(), lang+".json"), titles)
}

// LoadTitles reads the title list for one language.
func (f *Files) LoadTitles(lang string) ([]string, error) {
	path := filepath.Join(f.out.TitlesDir(), lang+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("language file not found: %s", path)
	}
	var titles []string
	if err := json.Unmarshal(data, &titles); err != nil {
		return nil, fmt.Errorf("corrupt title list %s: %w", path, err)
	}
	return titles, nil
}

// Languages lists the language codes with a saved title list.
func (f *Files) Languages() ([]string, error) {
	return jsonStems(f.out.TitlesDir())
}

// SaveEditors writes the ranked editor counts for one language.
func (f *Files) SaveEditors(lang string, entries []aggregate.Entry) error {
	return writeJSON(filepath.Join(f.out.EditorsDir(), lang+".json"), entries)
}

// LoadEditors reads saved editor counts for one language. A missing file
// yields an empty list, matching a language processed with zero editors.
func (f *Files) LoadEditors(lang string) ([]aggregate.Entry, error) {
	path := filepath.Join(f.out.EditorsDir(), lang+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logging.Debug("no editor data for %s", lang)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []aggregate.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corrupt editor data %s: %w", path, err)
	}
	return entries, nil
}

// EditorLanguages lists the language codes with saved editor data.
func (f *Files) EditorLanguages() ([]string, error) {
	return jsonStems(f.out.EditorsDir())
}

// WriteLanguageReport renders and writes the per-language report.
func (f *Files) WriteLanguageReport(lang string, entries []aggregate.Entry, year string) (string, error) {
	titles, err := f.LoadTitles(lang)
	if err != nil && lang != "ar" {
		return "", err
	}
	text := RenderLanguage(lang, entries, len(titles), year)

	path := filepath.Join(f.out.ReportsDir(), lang+".wiki")
	if err := writeText(path, text); err != nil {
		return "", err
	}
	logging.Info("generated report: %s", path)
	return path, nil
}

// WriteGlobalReport renders and writes the cross-language report.
func (f *Files) WriteGlobalReport(perLang map[string][]aggregate.Entry, year string) (string, error) {
	text := RenderGlobal(GlobalTop(perLang, 100), year)

	path := filepath.Join(f.out.ReportsDir(), "total_report.wiki")
	if err := writeText(path, text); err != nil {
		return "", err
	}
	logging.Info("generated global report: %s", path)
	return path, nil
}

// WriteLanguageSummary renders and writes the per-language title counts.
func (f *Files) WriteLanguageSummary(counts map[string]int) (string, error) {
	path := filepath.Join(f.out.ReportsDir(), "language_titles_summary.wiki")
	if err := writeText(path, RenderLanguageSummary(counts)); err != nil {
		return "", err
	}
	logging.Info("saved language titles summary: %s", path)
	return path, nil
}

// Reports lists the rendered report file names, sorted.
func (f *Files) Reports() ([]string, error) {
	entries, err := os.ReadDir(f.out.ReportsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wiki") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadReport returns the rendered WikiText for one report file.
func (f *Files) ReadReport(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.out.ReportsDir(), name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func jsonStems(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stems []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			stems = append(stems, name)
		}
	}
	sort.Strings(stems)
	return stems, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0644)
}
