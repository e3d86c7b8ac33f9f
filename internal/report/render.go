package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/medwiki-tools/editor-stats/internal/aggregate"
)

// GlobalEntry is one editor in the cross-language ranking, attributed to the
// wiki where they made most of their edits.
type GlobalEntry struct {
	Name  string
	Count int64
	Wiki  string
}

const reportHeader = "{{:WPM:WikiProject Medicine/Total medical articles}}\n"

// RenderLanguage produces the per-language WikiText report: a sortable table
// of the top 100 editors by edit count.
func RenderLanguage(lang string, entries []aggregate.Entry, titleCount int, year string) string {
	var b strings.Builder
	b.WriteString(reportHeader)
	fmt.Fprintf(&b, "{{Top medical editors by lang|%s}}\n", year)

	// arwiki's editor query is assessment-scoped, so a title count would
	// be misleading there.
	if lang != "ar" {
		fmt.Fprintf(&b, "Numbers of %s. There are %s articles in %s\n", year, formatCount(int64(titleCount)), lang)
	}

	b.WriteString("{| class=\"sortable wikitable\"\n!#\n!User\n!Count\n|-")
	for i, e := range entries {
		if i == 100 {
			break
		}
		user := displayName(e.Name)
		fmt.Fprintf(&b, "\n|-\n!%d\n|[[:w:%s:user:%s|%s]]\n|%s", i+1, lang, user, user, formatCount(e.Count))
	}
	b.WriteString("\n|}")
	return b.String()
}

// GlobalTop ranks editors across all languages by their summed edit count
// and attributes each to the wiki carrying most of their edits.
func GlobalTop(perLang map[string][]aggregate.Entry, limit int) []GlobalEntry {
	totals := make(map[string]int64)
	byWiki := make(map[string]map[string]int64)

	for lang, entries := range perLang {
		for _, e := range entries {
			totals[e.Name] += e.Count
			if byWiki[e.Name] == nil {
				byWiki[e.Name] = make(map[string]int64)
			}
			byWiki[e.Name][lang] += e.Count
		}
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	out := make([]GlobalEntry, 0, len(names))
	for _, name := range names {
		wiki, count := topWiki(byWiki[name])
		out = append(out, GlobalEntry{Name: name, Count: count, Wiki: wiki})
	}
	// The global table ranks by the home-wiki count, not the sum.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func topWiki(counts map[string]int64) (string, int64) {
	var bestWiki string
	var bestCount int64 = -1
	for wiki, count := range counts {
		if count > bestCount || (count == bestCount && wiki < bestWiki) {
			bestWiki, bestCount = wiki, count
		}
	}
	return bestWiki, bestCount
}

// RenderGlobal produces the cross-language WikiText report with a target
// list for mass messaging and the ranked editor table. Rows stop after the
// first editor under ten edits.
func RenderGlobal(entries []GlobalEntry, year string) string {
	var b strings.Builder
	b.WriteString(reportHeader)
	fmt.Fprintf(&b, "{{Top medical editors by lang|%s}}\n", year)
	fmt.Fprintf(&b, "Numbers of %s.\n", year)

	var targets strings.Builder
	var table strings.Builder
	table.WriteString("{| class=\"sortable wikitable\"\n!#\n!User\n!Count\n!Wiki\n")

	for i, e := range entries {
		user := displayName(e.Name)
		fmt.Fprintf(&targets, "#{{#target:User:%s|%s.wikipedia.org}}\n", user, e.Wiki)
		fmt.Fprintf(&table, "|-\n!%d\n|[[:w:%s:user:%s|%s]]\n|%s\n|%s\n",
			i+1, e.Wiki, user, user, formatCount(e.Count), e.Wiki)
		if e.Count < 10 {
			break
		}
	}
	table.WriteString("\n|}")

	b.WriteString("{| class=\"sortable wikitable floatright\"\n|\n")
	b.WriteString("<div style=\"max-height:250px; overflow: auto;vertical-align:top;font-size:90%;max-width:400px\">\n")
	b.WriteString("<pre>\n")
	b.WriteString(targets.String())
	b.WriteString("\n</pre>")
	b.WriteString("\n</div>")
	b.WriteString("\n|-\n|}")
	fmt.Fprintf(&b, "\n==users==\n%s", table.String())
	return b.String()
}

// RenderLanguageSummary produces the title-count-per-language table written
// after the title retrieval step, largest languages first.
func RenderLanguageSummary(counts map[string]int) string {
	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})

	var b strings.Builder
	b.WriteString("Language Titles Summary:\n")
	b.WriteString("{| class=\"wikitable\"\n! Language !! Number of Titles\n")
	for _, lang := range langs {
		fmt.Fprintf(&b, "|-\n| [https://%s.wikipedia.org/wiki/ %s] || %d\n", lang, lang, counts[lang])
	}
	b.WriteString("|}\n")
	return b.String()
}

// displayName converts a stored identity to its display form.
func displayName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
