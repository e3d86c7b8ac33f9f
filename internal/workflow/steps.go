package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/medwiki-tools/editor-stats/internal/aggregate"
	"github.com/medwiki-tools/editor-stats/internal/batch"
	"github.com/medwiki-tools/editor-stats/internal/logging"
	"github.com/medwiki-tools/editor-stats/internal/mwclient"
	"github.com/medwiki-tools/editor-stats/internal/queries"
	"github.com/medwiki-tools/editor-stats/internal/state"
)

// TitlesOutput summarizes the title retrieval step.
type TitlesOutput struct {
	Languages int    `json:"languages" yaml:"languages"`
	Articles  int    `json:"articles" yaml:"articles"`
	Pairs     int    `json:"pairs" yaml:"pairs"`
	Summary   string `json:"summary_report" yaml:"summary_report"`
}

// EditorsOutput summarizes the editor processing step.
type EditorsOutput struct {
	Languages int      `json:"languages" yaml:"languages"`
	Failed    []string `json:"failed,omitempty" yaml:"failed,omitempty"`
	Editors   int      `json:"editors" yaml:"editors"`
}

// ReportsOutput summarizes the report generation step.
type ReportsOutput struct {
	Languages    int    `json:"languages" yaml:"languages"`
	GlobalReport string `json:"global_report" yaml:"global_report"`
}

// UploadOutput summarizes the upload step.
type UploadOutput struct {
	Success int `json:"success" yaml:"success"`
	Failed  int `json:"failed" yaml:"failed"`
	Total   int `json:"total" yaml:"total"`
}

// editorsCursor is the partial-progress payload for the editor step. A
// language in either list is not reprocessed on resume; Editors carries the
// running total across interruptions so the completed step's output does not
// depend on where the run was cut.
type editorsCursor struct {
	Done    []string `json:"done,omitempty" yaml:"done,omitempty"`
	Failed  []string `json:"failed,omitempty" yaml:"failed,omitempty"`
	Editors int      `json:"editors,omitempty" yaml:"editors,omitempty"`
}

func (c editorsCursor) seen(lang string) bool {
	for _, l := range c.Done {
		if l == lang {
			return true
		}
	}
	for _, l := range c.Failed {
		if l == lang {
			return true
		}
	}
	return false
}

// runTitles pulls the project's articles and their language links from
// enwiki and writes one title list per language.
func (o *Orchestrator) runTitles(ctx context.Context) (TitlesOutput, error) {
	target, err := o.resolver.Target(ctx, "en")
	if err != nil {
		return TitlesOutput{}, err
	}

	query, args := queries.TitleLinks(o.cfg.Analysis.Project)
	rows, err := o.client.TitleLinks(ctx, target, query, args...)
	if err != nil {
		return TitlesOutput{}, err
	}
	logging.Info("Retrieved %d article-language pairs", len(rows))

	enTitles := make(map[string]struct{})
	byLanguage := make(map[string][]string)
	for _, row := range rows {
		if row.LangCode != "" && row.LangTitle != "" {
			byLanguage[row.LangCode] = append(byLanguage[row.LangCode], row.LangTitle)
		}
		if row.PageTitle != "" {
			enTitles[row.PageTitle] = struct{}{}
		}
	}

	en := make([]string, 0, len(enTitles))
	for title := range enTitles {
		en = append(en, title)
	}
	sort.Strings(en)
	byLanguage["en"] = en

	counts := make(map[string]int, len(byLanguage))
	for lang, titles := range byLanguage {
		if err := o.files.SaveTitles(lang, titles); err != nil {
			return TitlesOutput{}, fmt.Errorf("saving %s titles: %w", lang, err)
		}
		counts[lang] = len(titles)
	}

	summary, err := o.files.WriteLanguageSummary(counts)
	if err != nil {
		return TitlesOutput{}, err
	}

	logging.Info("✓ Found %d languages with %d English articles", len(byLanguage), len(en))
	return TitlesOutput{
		Languages: len(byLanguage),
		Articles:  len(en),
		Pairs:     len(rows),
		Summary:   summary,
	}, nil
}

// runEditors aggregates editor counts for every language with a title list.
// Each language is checkpointed as it finishes; a failing language is logged
// and skipped so one broken replica cannot sink the whole step.
func (o *Orchestrator) runEditors(ctx context.Context, st *state.WorkflowState) (EditorsOutput, error) {
	langs, err := o.languagesToProcess()
	if err != nil {
		return EditorsOutput{}, err
	}

	var cursor editorsCursor
	if partial, ok := st.PartialProgress[StepEditors]; ok {
		if err := state.DecodeInto(partial, &cursor); err != nil {
			logging.Warn("discarding unreadable partial progress: %v", err)
			cursor = editorsCursor{}
		}
	}

	titlesByLang := make(map[string][]string, len(langs))
	var todo []string
	for _, lang := range langs {
		if cursor.seen(lang) {
			continue
		}
		titles, err := o.files.LoadTitles(lang)
		if err != nil {
			return EditorsOutput{}, err
		}
		titlesByLang[lang] = titles
		todo = append(todo, lang)
	}
	if len(cursor.Done)+len(cursor.Failed) > 0 {
		logging.Info("Resuming: %d languages done, %d failed, %d remaining",
			len(cursor.Done), len(cursor.Failed), len(todo))
	}

	if o.cfg.Analysis.SortDescending {
		sort.SliceStable(todo, func(i, j int) bool {
			return len(titlesByLang[todo[i]]) > len(titlesByLang[todo[j]])
		})
	}

	var bar *progressbar.ProgressBar
	if o.ShowProgress {
		bar = progressbar.Default(int64(len(todo)), "Processing languages")
	}

	for i, lang := range todo {
		if err := ctx.Err(); err != nil {
			return EditorsOutput{}, err
		}

		logging.Info("Language %d/%d: %s (%d titles)", i+1, len(todo), lang, len(titlesByLang[lang]))
		entries, err := o.processLanguage(ctx, lang, titlesByLang[lang])
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return EditorsOutput{}, err
			}
			logging.Error("✗ Language %s failed: %v", lang, err)
			st.LogError(StepEditors, fmt.Sprintf("%s: %v", lang, err))
			cursor.Failed = append(cursor.Failed, lang)
			if nerr := o.notifier.LanguageFailed(st.RunID, lang, err); nerr != nil {
				logging.Warn("notification failed: %v", nerr)
			}
		} else {
			if err := o.files.SaveEditors(lang, entries); err != nil {
				return EditorsOutput{}, fmt.Errorf("saving %s editors: %w", lang, err)
			}
			logging.Info("✓ Language %s complete: %d editors", lang, len(entries))
			cursor.Done = append(cursor.Done, lang)
			cursor.Editors += len(entries)
		}

		st.SetPartial(StepEditors, cursor)
		if err := o.store.Save(st); err != nil {
			return EditorsOutput{}, fmt.Errorf("checkpointing after %s: %w", lang, err)
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	return EditorsOutput{
		Languages: len(cursor.Done),
		Failed:    cursor.Failed,
		Editors:   cursor.Editors,
	}, nil
}

// processLanguage aggregates editor counts for one language. Arabic and
// English have dedicated project-scoped queries; everything else runs the
// batched title query.
func (o *Orchestrator) processLanguage(ctx context.Context, lang string, titles []string) ([]aggregate.Entry, error) {
	target, err := o.resolver.Target(ctx, lang)
	if err != nil {
		return nil, err
	}

	year := o.cfg.Analysis.Year
	acc := aggregate.NewAccumulator()

	switch lang {
	case "ar":
		query, args := queries.EditorCountsArabic(year)
		rows, err := o.client.EditorCounts(ctx, target, query, args...)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			acc.Add(r.Identity, r.Count)
		}
	case "en":
		query, args := queries.EditorCountsEnglish(year)
		rows, err := o.client.EditorCounts(ctx, target, query, args...)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			acc.Add(r.Identity, r.Count)
		}
	default:
		if len(titles) == 0 {
			return nil, nil
		}
		batches, err := batch.Split(titles, o.cfg.Analysis.BatchSize)
		if err != nil {
			return nil, err
		}
		for i, titleBatch := range batches {
			logging.Debug("%s: batch %d/%d (%d titles)", lang, i+1, len(batches), len(titleBatch))
			query, args, err := queries.EditorCountsStandard(titleBatch, year)
			if err != nil {
				return nil, err
			}
			rows, err := o.client.EditorCounts(ctx, target, query, args...)
			if err != nil {
				return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
			}
			for _, r := range rows {
				acc.Add(r.Identity, r.Count)
			}
		}
	}

	ex := acc.Excluded()
	if ex.Bots > 0 || ex.Anonymous > 0 {
		logging.Debug("%s: excluded %d bots, %d anonymous editors", lang, ex.Bots, ex.Anonymous)
	}
	return acc.Sorted(), nil
}

// runReports renders per-language reports and the global ranking from the
// editor data written by the previous step.
func (o *Orchestrator) runReports(ctx context.Context) (ReportsOutput, error) {
	langs, err := o.files.EditorLanguages()
	if err != nil {
		return ReportsOutput{}, err
	}
	if len(langs) == 0 {
		return ReportsOutput{}, fmt.Errorf("no editor data found; run the editor step first")
	}

	year := o.cfg.Analysis.Year
	perLang := make(map[string][]aggregate.Entry, len(langs))
	for _, lang := range langs {
		if err := ctx.Err(); err != nil {
			return ReportsOutput{}, err
		}
		entries, err := o.files.LoadEditors(lang)
		if err != nil {
			return ReportsOutput{}, err
		}
		perLang[lang] = entries
		if _, err := o.files.WriteLanguageReport(lang, entries, year); err != nil {
			return ReportsOutput{}, fmt.Errorf("rendering %s report: %w", lang, err)
		}
	}

	global, err := o.files.WriteGlobalReport(perLang, year)
	if err != nil {
		return ReportsOutput{}, err
	}

	return ReportsOutput{Languages: len(langs), GlobalReport: global}, nil
}

// runUpload publishes every rendered report. Individual page failures are
// counted, not fatal.
func (o *Orchestrator) runUpload(ctx context.Context) (UploadOutput, error) {
	if o.uploader == nil {
		return UploadOutput{}, fmt.Errorf("upload enabled but no wiki client configured")
	}

	names, err := o.files.Reports()
	if err != nil {
		return UploadOutput{}, err
	}
	if len(names) == 0 {
		return UploadOutput{}, fmt.Errorf("no reports to upload; run the report step first")
	}

	if err := o.uploader.Login(ctx); err != nil {
		return UploadOutput{}, err
	}

	year := o.cfg.Analysis.Year
	out := UploadOutput{Total: len(names)}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return UploadOutput{}, err
		}

		lang := strings.TrimSuffix(name, ".wiki")
		global := lang == "total_report"
		title := mwclient.PageTitle(o.cfg.Upload.PagePrefix, lang, year, global)

		text, err := o.files.ReadReport(name)
		if err != nil {
			logging.Error("✗ could not read %s: %v", name, err)
			out.Failed++
			continue
		}

		summary := fmt.Sprintf("Update %s medical editors statistics for %s", lang, year)
		if global {
			summary = fmt.Sprintf("Update global medical editors statistics for %s", year)
		}

		if err := o.uploader.EditPage(ctx, title, text, summary); err != nil {
			logging.Error("✗ upload failed for %s: %v", name, err)
			out.Failed++
			continue
		}
		out.Success++
	}

	logging.Info("Upload summary: %d succeeded, %d failed, %d total", out.Success, out.Failed, out.Total)
	return out, nil
}

func (o *Orchestrator) languagesToProcess() ([]string, error) {
	available, err := o.files.Languages()
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("no title lists found; run the title step first")
	}
	if len(o.cfg.Analysis.Languages) == 0 {
		return available, nil
	}

	availableSet := make(map[string]bool, len(available))
	for _, lang := range available {
		availableSet[lang] = true
	}
	var selected, missing []string
	for _, lang := range o.cfg.Analysis.Languages {
		if availableSet[lang] {
			selected = append(selected, lang)
		} else {
			missing = append(missing, lang)
		}
	}
	if len(missing) > 0 {
		logging.Warn("Requested languages not found: %s", strings.Join(missing, ", "))
	}
	return selected, nil
}
