package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte("analysis:\n  year: \"2024\"\n"))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	if cfg.Analysis.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100", cfg.Analysis.BatchSize)
	}
	if cfg.Analysis.Project != "Medicine" {
		t.Errorf("Project = %q, want Medicine", cfg.Analysis.Project)
	}
	if cfg.Replica.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Replica.MaxAttempts)
	}
	if cfg.Replica.RetryBackoff != 2*time.Second {
		t.Errorf("RetryBackoff = %v, want 2s", cfg.Replica.RetryBackoff)
	}
	if cfg.Replica.Port != 3306 {
		t.Errorf("Port = %d, want 3306", cfg.Replica.Port)
	}
	if cfg.Replica.MetaHost != "s7.analytics.db.svc.wikimedia.cloud" {
		t.Errorf("MetaHost = %q", cfg.Replica.MetaHost)
	}
	if cfg.Output.TitlesDir() != filepath.Join("output", "languages") {
		t.Errorf("TitlesDir = %q", cfg.Output.TitlesDir())
	}
}

func TestLoadBytesInvalidBatchSize(t *testing.T) {
	_, err := LoadBytes([]byte("analysis:\n  batch_size: -5\n"))
	if err == nil {
		t.Fatal("expected error for negative batch size")
	}
	if !strings.Contains(err.Error(), "batch_size") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadBytesInvalidYear(t *testing.T) {
	for _, year := range []string{"24", "twenty"} {
		_, err := LoadBytes([]byte("analysis:\n  year: \"" + year + "\"\n"))
		if err == nil {
			t.Errorf("expected error for year %q", year)
		}
	}
}

func TestLoadBytesUploadRequiresCredentials(t *testing.T) {
	_, err := LoadBytes([]byte("upload:\n  enabled: true\n"))
	if err == nil {
		t.Fatal("expected error when upload enabled without credentials")
	}
}

func TestLoadBytesEnvExpansion(t *testing.T) {
	t.Setenv("EDITOR_STATS_TEST_YEAR", "2023")
	cfg, err := LoadBytes([]byte("analysis:\n  year: \"${EDITOR_STATS_TEST_YEAR}\"\n"))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if cfg.Analysis.Year != "2023" {
		t.Errorf("Year = %q, want 2023", cfg.Analysis.Year)
	}
}

func TestSanitized(t *testing.T) {
	cfg := Default()
	cfg.Upload.Password = "secret"
	cfg.Slack.WebhookURL = "https://hooks.slack.com/services/T/B/x"

	s := cfg.Sanitized()
	if s.Upload.Password != "[REDACTED]" {
		t.Errorf("upload password not redacted: %q", s.Upload.Password)
	}
	if s.Slack.WebhookURL != "[REDACTED]" {
		t.Errorf("webhook not redacted: %q", s.Slack.WebhookURL)
	}
	if cfg.Upload.Password != "secret" {
		t.Error("Sanitized mutated the original config")
	}
}

func TestLoadCredentials(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "replica.my.cnf")
	content := "[client]\n# Toolforge credentials\nuser = u12345\npassword = 'hunter2'\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.User != "u12345" {
		t.Errorf("User = %q, want u12345", creds.User)
	}
	if creds.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", creds.Password)
	}
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	_, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.cnf"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "credential file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadCredentialsMalformed(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "replica.my.cnf")
	if err := os.WriteFile(path, []byte("[client]\nuser = u12345\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := LoadCredentials(path)
	if err == nil {
		t.Fatal("expected error for cnf without password")
	}
}
