// Package queries builds the SQL run against the wiki replicas. All queries
// are read-only and use parameter placeholders; titles and years are never
// spliced into the SQL text.
package queries

import (
	"fmt"
	"strings"
)

// TitleLinks returns the enwiki query listing project articles together with
// their language links. Pages without langlinks still appear (NULL link),
// so the English title list is complete.
func TitleLinks(project string) (string, []any) {
	query := `
		SELECT
			page_title,
			ll_lang,
			ll_title
		FROM page
		JOIN page_assessments ON pa_page_id = page_id
		JOIN page_assessments_projects ON pa_project_id = pap_project_id
		LEFT JOIN langlinks ON ll_from = page_id
		WHERE
			pap_project_title = ?
			AND page_is_redirect = 0
			AND page_namespace = 0
	`
	return query, []any{project}
}

// WikiCatalog returns the meta_p query mapping language codes to database
// names for open Wikipedia-family wikis.
func WikiCatalog() (string, []any) {
	query := `
		SELECT lang, dbname, url
		FROM wiki
		WHERE is_closed = 0
		  AND family = 'wikipedia'
	`
	return query, nil
}

// EditorCountsStandard returns the per-batch editor aggregation query for a
// standard language wiki. The bot exclusion here is a coarse server-side
// pre-filter; the aggregator applies the authoritative one.
func EditorCountsStandard(titles []string, year string) (string, []any, error) {
	if len(titles) == 0 {
		return "", nil, fmt.Errorf("titles list cannot be empty")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(titles)), ", ")
	query := fmt.Sprintf(`
		SELECT actor_name, COUNT(*) AS count
		FROM revision
		JOIN actor ON rev_actor = actor_id
		JOIN page ON rev_page = page_id
		WHERE page_title IN (%s)
			AND page_namespace = 0
			AND YEAR(rev_timestamp) = ?
			AND LOWER(CAST(actor_name AS CHAR)) NOT LIKE '%%bot%%'
		GROUP BY actor_id
		ORDER BY count DESC
	`, placeholders)

	args := make([]any, 0, len(titles)+1)
	for _, t := range titles {
		args = append(args, t)
	}
	args = append(args, year)
	return query, args, nil
}

// EditorCountsArabic returns the arwiki editor query. Arabic has its own
// project assessments, so it selects by assessment instead of a title list.
func EditorCountsArabic(year string) (string, []any) {
	query := `
		SELECT actor_name, COUNT(*) AS count
		FROM revision
		JOIN actor ON rev_actor = actor_id
		JOIN page ON rev_page = page_id
		WHERE page_id IN (
			SELECT DISTINCT pa_page_id
			FROM page_assessments, page_assessments_projects
			WHERE pa_project_id = pap_project_id
				AND pap_project_title = "طب"
		)
			AND page_namespace = 0
			AND YEAR(rev_timestamp) = ?
			AND LOWER(CAST(actor_name AS CHAR)) NOT LIKE '%bot%'
		GROUP BY actor_id
		ORDER BY count DESC
		LIMIT 100
	`
	return query, []any{year}
}

// EditorCountsEnglish returns the enwiki editor query, scoped by the
// WikiProject Medicine banner on article talk pages.
func EditorCountsEnglish(year string) (string, []any) {
	query := `
		SELECT actor_name, COUNT(*) AS count
		FROM revision
		JOIN actor ON rev_actor = actor_id
		JOIN page ON rev_page = page_id
		WHERE page_title IN (
			SELECT page_title
			FROM (
				SELECT tl_from, rd_from
				FROM templatelinks
				LEFT JOIN redirect
					ON rd_from = tl_from
					AND rd_title = "WikiProject_Medicine"
					AND (rd_interwiki = '' OR rd_interwiki IS NULL)
					AND rd_namespace = 10
				JOIN page ON tl_from = page_id
				JOIN linktarget ON tl_target_id = lt_id
				WHERE lt_namespace = 10
					AND lt_title = "WikiProject_Medicine"
				ORDER BY tl_from
			) temp
			JOIN page ON tl_from = page_id
			WHERE page_namespace = 1
		)
			AND page_namespace = 0
			AND YEAR(rev_timestamp) = ?
			AND LOWER(CAST(actor_name AS CHAR)) NOT LIKE '%bot%'
		GROUP BY actor_id
		ORDER BY count DESC
		LIMIT 100
	`
	return query, []any{year}
}
