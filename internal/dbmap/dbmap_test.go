package dbmap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/medwiki-tools/editor-stats/internal/config"
	"github.com/medwiki-tools/editor-stats/internal/replica"
)

type fakeCatalog struct {
	rows  []replica.WikiRow
	err   error
	calls int
}

func (f *fakeCatalog) WikiCatalog(ctx context.Context, t replica.Target, query string, args ...any) ([]replica.WikiRow, error) {
	f.calls++
	return f.rows, f.err
}

func testConfig() config.ReplicaConfig {
	return config.ReplicaConfig{
		HostSuffix: "analytics.db.svc.wikimedia.cloud",
		MetaHost:   "s7.analytics.db.svc.wikimedia.cloud",
	}
}

func TestTargetFromCatalog(t *testing.T) {
	catalog := &fakeCatalog{rows: []replica.WikiRow{
		{Lang: "fr", DBName: "frwiki", URL: "https://fr.wikipedia.org"},
		{Lang: "de", DBName: "dewiki", URL: "https://de.wikipedia.org"},
	}}
	m := New(catalog, testConfig(), t.TempDir())

	target, err := m.Target(context.Background(), "fr")
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	if target.Database != "frwiki_p" {
		t.Errorf("Database = %q, want frwiki_p", target.Database)
	}
	if target.Host != "frwiki.analytics.db.svc.wikimedia.cloud" {
		t.Errorf("Host = %q", target.Host)
	}
}

func TestTargetStaticOverrides(t *testing.T) {
	// Static overrides never hit the catalog.
	catalog := &fakeCatalog{err: errors.New("catalog should not be queried")}
	m := New(catalog, testConfig(), t.TempDir())

	tests := []struct {
		lang   string
		wantDB string
	}{
		{"gsw", "alswiki_p"},
		{"zh-classical", "zh_classicalwiki_p"},
		{"bat-smg", "bat_smgwiki_p"},
		{"nb", "nowiki_p"},
	}
	for _, tt := range tests {
		target, err := m.Target(context.Background(), tt.lang)
		if err != nil {
			t.Fatalf("Target(%q): %v", tt.lang, err)
		}
		if target.Database != tt.wantDB {
			t.Errorf("Target(%q).Database = %q, want %q", tt.lang, target.Database, tt.wantDB)
		}
	}
	if catalog.calls != 0 {
		t.Errorf("catalog queried %d times for static languages", catalog.calls)
	}
}

func TestTargetFallbackNamingConvention(t *testing.T) {
	catalog := &fakeCatalog{rows: []replica.WikiRow{
		{Lang: "fr", DBName: "frwiki", URL: "https://fr.wikipedia.org"},
	}}
	m := New(catalog, testConfig(), t.TempDir())

	target, err := m.Target(context.Background(), "xx-yy")
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	if target.Database != "xx_yywiki_p" {
		t.Errorf("Database = %q, want xx_yywiki_p", target.Database)
	}
}

func TestMetaTarget(t *testing.T) {
	m := New(&fakeCatalog{}, testConfig(), t.TempDir())
	target := m.MetaTarget()
	if target.Database != "meta_p" || target.Host != "s7.analytics.db.svc.wikimedia.cloud" {
		t.Errorf("MetaTarget = %+v", target)
	}

	viaLang, err := m.Target(context.Background(), "meta")
	if err != nil {
		t.Fatalf("Target(meta): %v", err)
	}
	if viaLang != target {
		t.Errorf("Target(meta) = %+v, want %+v", viaLang, target)
	}
}

func TestMappingCachedOnDisk(t *testing.T) {
	dir := t.TempDir()
	catalog := &fakeCatalog{rows: []replica.WikiRow{
		{Lang: "fr", DBName: "frwiki", URL: "https://fr.wikipedia.org"},
	}}

	m := New(catalog, testConfig(), dir)
	if _, err := m.Mapping(context.Background()); err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	if catalog.calls != 1 {
		t.Fatalf("catalog calls = %d, want 1", catalog.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "db_mapping.json")); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	// A fresh mapper reads the cache instead of the catalog.
	m2 := New(catalog, testConfig(), dir)
	mapping, err := m2.Mapping(context.Background())
	if err != nil {
		t.Fatalf("Mapping from cache: %v", err)
	}
	if catalog.calls != 1 {
		t.Errorf("catalog calls = %d, want 1 (cache hit)", catalog.calls)
	}
	if mapping["fr"] != "frwiki" {
		t.Errorf("mapping[fr] = %q", mapping["fr"])
	}
}

func TestMappingPinsEnglish(t *testing.T) {
	catalog := &fakeCatalog{rows: []replica.WikiRow{
		{Lang: "en", DBName: "testwiki", URL: "https://test.wikipedia.org"},
		{Lang: "en", DBName: "enwiki", URL: "https://en.wikipedia.org"},
	}}
	m := New(catalog, testConfig(), t.TempDir())

	mapping, err := m.Mapping(context.Background())
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	if mapping["en"] != "enwiki" {
		t.Errorf("mapping[en] = %q, want enwiki", mapping["en"])
	}
}

func TestURLLang(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://fr.wikipedia.org", "fr"},
		{"http://simple.wikipedia.org", "simple"},
		{"", ""},
		{"nonsense", ""},
	}
	for _, tt := range tests {
		if got := urlLang(tt.url); got != tt.want {
			t.Errorf("urlLang(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestMappingFetchError(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("meta_p unreachable")}
	m := New(catalog, testConfig(), t.TempDir())

	if _, err := m.Mapping(context.Background()); err == nil {
		t.Error("expected error when catalog fetch fails and no cache exists")
	}
}
