package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfigAndChdir drops a config.yaml into a temp dir and makes it the
// working directory so Load() finds it.
func writeConfigAndChdir(t *testing.T, yamlContent string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	writeConfigAndChdir(t, `
port: "3443"
env: "test"
database:
  host: "db.example.com"
  port: 5432
  user: "testuser"
  database: "testdb"
`)

	os.Unsetenv("PGHOST")
	os.Unsetenv("BASE_URL")

	t.Setenv("PORT", "4443")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4443" {
		t.Errorf("expected Port=4443 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.BaseURL != "http://localhost:4443" {
		t.Errorf("expected BaseURL auto-derived from PORT, got %s", cfg.BaseURL)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host from yaml, got %s", cfg.Database.Host)
	}
}

func TestLoad_MatrixDefaults(t *testing.T) {
	writeConfigAndChdir(t, "env: \"test\"\n")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Matrix.Width != 420 || cfg.Matrix.Height != 360 || cfg.Matrix.Padding != 40 {
		t.Errorf("unexpected matrix defaults: %+v", cfg.Matrix)
	}
	if cfg.Scan.TimeoutMinutes != 30 {
		t.Errorf("expected default scan timeout of 30 minutes, got %d", cfg.Scan.TimeoutMinutes)
	}
}

func TestLoad_TLSRequiresBothPaths(t *testing.T) {
	writeConfigAndChdir(t, "env: \"test\"\ntls_cert_path: \"/tmp/only-cert.pem\"\n")

	_, err := Load("dev")
	if err == nil {
		t.Fatal("expected error when only one TLS path is set")
	}
	if !strings.Contains(err.Error(), "tls") && !strings.Contains(err.Error(), "TLS") {
		t.Errorf("expected a TLS error, got: %v", err)
	}
}

func TestParseJWKSEndpoints(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "empty",
			input: "",
			want:  map[string]string{},
		},
		{
			name:  "single pair",
			input: "https://auth.example.com=https://auth.example.com/jwks.json",
			want: map[string]string{
				"https://auth.example.com": "https://auth.example.com/jwks.json",
			},
		},
		{
			name:  "multiple pairs with spaces",
			input: "a=1, b=2",
			want:  map[string]string{"a": "1", "b": "2"},
		},
		{
			name:  "malformed pair skipped",
			input: "a=1,bogus",
			want:  map[string]string{"a": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseJWKSEndpoints(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d endpoints, want %d", len(got), len(tt.want))
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("endpoint %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "sentra",
		Password: "secret",
		Database: "sentra_engine",
		SSLMode:  "disable",
	}

	got := db.ConnectionString()
	want := "host=localhost port=5432 user=sentra password=secret dbname=sentra_engine sslmode=disable"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestRedisConfig(t *testing.T) {
	r := RedisConfig{}
	if r.IsAvailable() {
		t.Error("empty host must report unavailable")
	}

	r = RedisConfig{Host: "cache.internal", Port: 6379}
	if !r.IsAvailable() {
		t.Error("configured host must report available")
	}
	if r.Addr() != "cache.internal:6379" {
		t.Errorf("Addr() = %q", r.Addr())
	}
}
