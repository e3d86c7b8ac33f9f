// Package dbmap resolves language codes to replica database names and hosts.
// The mapping comes from the meta_p wiki catalog, cached on disk so repeated
// runs skip the catalog query, with a static override table for the language
// codes whose wiki database never matched their langlink code.
package dbmap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/medwiki-tools/editor-stats/internal/config"
	"github.com/medwiki-tools/editor-stats/internal/logging"
	"github.com/medwiki-tools/editor-stats/internal/queries"
	"github.com/medwiki-tools/editor-stats/internal/replica"
)

// CatalogClient fetches the wiki catalog. Satisfied by *replica.Executor.
type CatalogClient interface {
	WikiCatalog(ctx context.Context, t replica.Target, query string, args ...any) ([]replica.WikiRow, error)
}

// Language codes whose database name does not follow the <lang>wiki pattern.
var staticMapping = map[string]string{
	"gsw":          "alswiki",
	"sgs":          "bat_smgwiki",
	"bat-smg":      "bat_smgwiki",
	"be-tarask":    "be_x_oldwiki",
	"bho":          "bhwiki",
	"cbk":          "cbk_zamwiki",
	"cbk-zam":      "cbk_zamwiki",
	"vro":          "fiu_vrowiki",
	"fiu-vro":      "fiu_vrowiki",
	"map-bms":      "map_bmswiki",
	"nds-nl":       "nds_nlwiki",
	"nb":           "nowiki",
	"rup":          "roa_rupwiki",
	"roa-rup":      "roa_rupwiki",
	"roa-tara":     "roa_tarawiki",
	"lzh":          "zh_classicalwiki",
	"zh-classical": "zh_classicalwiki",
	"nan":          "zh_min_nanwiki",
	"zh-min-nan":   "zh_min_nanwiki",
	"yue":          "zh_yuewiki",
	"zh-yue":       "zh_yuewiki",
}

// Mapper resolves query targets for language codes.
type Mapper struct {
	client    CatalogClient
	cfg       config.ReplicaConfig
	cachePath string

	mu      sync.Mutex
	mapping map[string]string
}

// New builds a mapper caching the catalog under cacheDir.
func New(client CatalogClient, cfg config.ReplicaConfig, cacheDir string) *Mapper {
	return &Mapper{
		client:    client,
		cfg:       cfg,
		cachePath: filepath.Join(cacheDir, "db_mapping.json"),
	}
}

// MetaTarget returns the target for the meta_p catalog database.
func (m *Mapper) MetaTarget() replica.Target {
	return replica.Target{Host: m.cfg.MetaHost, Database: "meta_p"}
}

// Target resolves the replica target for a language code. The replica views
// always carry the _p suffix; the host is the bare database name plus the
// configured suffix.
func (m *Mapper) Target(ctx context.Context, lang string) (replica.Target, error) {
	if lang == "meta" {
		return m.MetaTarget(), nil
	}

	dbname, err := m.databaseName(ctx, lang)
	if err != nil {
		return replica.Target{}, err
	}

	bare := strings.TrimSuffix(dbname, "_p")
	return replica.Target{
		Host:     bare + "." + m.cfg.HostSuffix,
		Database: bare + "_p",
	}, nil
}

func (m *Mapper) databaseName(ctx context.Context, lang string) (string, error) {
	if db, ok := staticMapping[lang]; ok {
		return db, nil
	}

	mapping, err := m.Mapping(ctx)
	if err != nil {
		return "", err
	}
	if db, ok := mapping[lang]; ok {
		return db, nil
	}

	// Fall back to the usual naming convention.
	return strings.ReplaceAll(strings.ToLower(lang), "-", "_") + "wiki", nil
}

// Mapping returns the language-to-dbname catalog, loading the disk cache or
// fetching from meta_p on first use.
func (m *Mapper) Mapping(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mapping != nil {
		return m.mapping, nil
	}

	if cached, err := m.loadCache(); err == nil && len(cached) > 0 {
		logging.Debug("loaded %d database mappings from %s", len(cached), m.cachePath)
		m.mapping = cached
		return m.mapping, nil
	}

	fetched, err := m.fetch(ctx)
	if err != nil {
		return nil, err
	}
	m.mapping = fetched
	if err := m.saveCache(fetched); err != nil {
		logging.Warn("could not cache database mapping: %v", err)
	}
	return m.mapping, nil
}

func (m *Mapper) fetch(ctx context.Context) (map[string]string, error) {
	logging.Info("retrieving database name mappings from meta_p")

	query, args := queries.WikiCatalog()
	rows, err := m.client.WikiCatalog(ctx, m.MetaTarget(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching wiki catalog: %w", err)
	}

	mapping := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.DBName == "" {
			continue
		}
		if row.Lang != "" {
			mapping[row.Lang] = row.DBName
		}
		if ul := urlLang(row.URL); ul != "" {
			mapping[ul] = row.DBName
		}
	}

	// The catalog has stray rows claiming the "en" code (test wikis); pin it.
	mapping["en"] = "enwiki"

	logging.Info("retrieved mappings for %d language codes", len(mapping))
	return mapping, nil
}

// urlLang extracts the subdomain language code from a wiki URL,
// e.g. "https://fr.wikipedia.org" yields "fr".
func urlLang(url string) string {
	host := strings.TrimPrefix(url, "https://")
	host = strings.TrimPrefix(host, "http://")
	code, _, ok := strings.Cut(host, ".")
	if !ok {
		return ""
	}
	return code
}

func (m *Mapper) loadCache() (map[string]string, error) {
	data, err := os.ReadFile(m.cachePath)
	if err != nil {
		return nil, err
	}
	var mapping map[string]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("corrupt mapping cache %s: %w", m.cachePath, err)
	}
	return mapping, nil
}

func (m *Mapper) saveCache(mapping map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(m.cachePath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.cachePath, data, 0644)
}
