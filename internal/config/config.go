package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// expandTilde expands ~ or ~/ at the start of a path to the user's home directory
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Config holds all configuration for the analysis tool
type Config struct {
	Replica  ReplicaConfig  `yaml:"replica"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Upload   UploadConfig   `yaml:"upload"`
	Slack    SlackConfig    `yaml:"slack"`
}

// ReplicaConfig holds wiki replica connection settings
type ReplicaConfig struct {
	CredentialFile string        `yaml:"credential_file"` // MySQL-style cnf with user/password
	HostSuffix     string        `yaml:"host_suffix"`     // appended to the db name to form the host
	MetaHost       string        `yaml:"meta_host"`       // host serving the meta_p catalog database
	Port           int           `yaml:"port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`  // total attempts per query, transient failures only
	RetryBackoff   time.Duration `yaml:"retry_backoff"` // base delay, doubled each attempt
}

// AnalysisConfig holds what to analyze and how to chunk it
type AnalysisConfig struct {
	Year           string   `yaml:"year"`            // default: previous calendar year
	Project        string   `yaml:"project"`         // assessment project title on enwiki
	BatchSize      int      `yaml:"batch_size"`      // titles per editor-count query
	Languages      []string `yaml:"languages"`       // restrict to these language codes (default: all)
	SortDescending bool     `yaml:"sort_descending"` // process languages with the most titles first
}

// OutputConfig holds output and state locations
type OutputConfig struct {
	Dir     string `yaml:"dir"`      // base directory for titles/editors/reports
	DataDir string `yaml:"data_dir"` // state database location
}

// UploadConfig holds MediaWiki upload settings for the report step
type UploadConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIURL     string `yaml:"api_url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	PagePrefix string `yaml:"page_prefix"` // e.g. "WikiProjectMed:Stats"
}

// SlackConfig holds Slack notification settings
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
	Enabled    bool   `yaml:"enabled"`
}

// TitlesDir returns the directory holding per-language title lists.
func (o OutputConfig) TitlesDir() string { return filepath.Join(o.Dir, "languages") }

// EditorsDir returns the directory holding per-language editor data.
func (o OutputConfig) EditorsDir() string { return filepath.Join(o.Dir, "editors") }

// ReportsDir returns the directory holding rendered WikiText reports.
func (o OutputConfig) ReportsDir() string { return filepath.Join(o.Dir, "reports") }

// ResultsDir returns the directory holding raw query result dumps.
func (o OutputConfig) ResultsDir() string { return filepath.Join(o.Dir, "sqlresults") }

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes reads configuration from YAML bytes.
func LoadBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no file read.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultDataDir returns the default data directory for state storage.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".editor-stats")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func (c *Config) applyDefaults() {
	if c.Replica.CredentialFile == "" {
		c.Replica.CredentialFile = "~/replica.my.cnf"
	}
	c.Replica.CredentialFile = expandTilde(c.Replica.CredentialFile)
	if c.Replica.HostSuffix == "" {
		c.Replica.HostSuffix = "analytics.db.svc.wikimedia.cloud"
	}
	if c.Replica.MetaHost == "" {
		c.Replica.MetaHost = "s7." + c.Replica.HostSuffix
	}
	if c.Replica.Port == 0 {
		c.Replica.Port = 3306
	}
	if c.Replica.ConnectTimeout == 0 {
		c.Replica.ConnectTimeout = 30 * time.Second
	}
	if c.Replica.ReadTimeout == 0 {
		c.Replica.ReadTimeout = 60 * time.Second
	}
	if c.Replica.MaxAttempts == 0 {
		c.Replica.MaxAttempts = 3
	}
	if c.Replica.RetryBackoff == 0 {
		c.Replica.RetryBackoff = 2 * time.Second
	}

	if c.Analysis.Year == "" {
		c.Analysis.Year = fmt.Sprintf("%d", time.Now().Year()-1)
	}
	if c.Analysis.Project == "" {
		c.Analysis.Project = "Medicine"
	}
	if c.Analysis.BatchSize == 0 {
		c.Analysis.BatchSize = 100
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	c.Output.Dir = expandTilde(c.Output.Dir)
	if c.Output.DataDir == "" {
		home, _ := os.UserHomeDir()
		c.Output.DataDir = filepath.Join(home, ".editor-stats")
	} else {
		c.Output.DataDir = expandTilde(c.Output.DataDir)
	}

	if c.Upload.APIURL == "" {
		c.Upload.APIURL = "https://mdwiki.org/w/api.php"
	}
}

func (c *Config) validate() error {
	if c.Analysis.BatchSize < 1 {
		return fmt.Errorf("analysis.batch_size must be >= 1, got %d", c.Analysis.BatchSize)
	}
	if c.Replica.MaxAttempts < 1 {
		return fmt.Errorf("replica.max_attempts must be >= 1, got %d", c.Replica.MaxAttempts)
	}
	if c.Replica.RetryBackoff < 0 {
		return fmt.Errorf("replica.retry_backoff must not be negative")
	}
	if len(c.Analysis.Year) != 4 {
		return fmt.Errorf("analysis.year must be a four-digit year, got %q", c.Analysis.Year)
	}
	for _, r := range c.Analysis.Year {
		if r < '0' || r > '9' {
			return fmt.Errorf("analysis.year must be a four-digit year, got %q", c.Analysis.Year)
		}
	}
	if c.Upload.Enabled {
		if c.Upload.Username == "" || c.Upload.Password == "" {
			return fmt.Errorf("upload.username and upload.password are required when upload.enabled is true")
		}
	}
	return nil
}

// Sanitized returns a copy of the config with sensitive fields redacted
func (c *Config) Sanitized() *Config {
	sanitized := *c // shallow copy

	if sanitized.Upload.Password != "" {
		sanitized.Upload.Password = "[REDACTED]"
	}
	if sanitized.Slack.WebhookURL != "" {
		sanitized.Slack.WebhookURL = "[REDACTED]"
	}

	return &sanitized
}
