package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newTestLoader returns a loader isolated from the process environment.
func newTestLoader(configPath, envFile string, env map[string]string) *loader {
	return &loader{
		configPath: configPath,
		envFile:    envFile,
		lookupEnv: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
	if cfg.Credit.Limit != 1500 {
		t.Errorf("Credit.Limit = %v, want 1500", cfg.Credit.Limit)
	}
	if got := cfg.Credit.Thresholds; len(got) != 3 || got[0] != 75 || got[2] != 95 {
		t.Errorf("Credit.Thresholds = %v, want [75 85 95]", got)
	}
	if cfg.Output.Dir != "output" {
		t.Errorf("Output.Dir = %q, want %q", cfg.Output.Dir, "output")
	}
	if cfg.ManifestPath() != filepath.Join("output", "manifest.db") {
		t.Errorf("ManifestPath() = %q", cfg.ManifestPath())
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid default config", func(*Config) {}, nil},
		{"empty url", func(c *Config) { c.Service.URL = "" }, ErrInvalidServiceURL},
		{"zero timeout", func(c *Config) { c.Service.Timeout = 0 }, ErrInvalidTimeout},
		{"blank output dir", func(c *Config) { c.Output.Dir = "  " }, ErrNoOutputDir},
		{"zero limit", func(c *Config) { c.Credit.Limit = 0 }, ErrInvalidCreditLimit},
		{"no thresholds", func(c *Config) { c.Credit.Thresholds = nil }, ErrInvalidThresholds},
		{"negative threshold", func(c *Config) { c.Credit.Thresholds = []float64{75, -1} }, ErrInvalidThresholds},
		{"bad display format", func(c *Config) { c.Display.Format = "live" }, ErrInvalidDisplayFormat},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequireServiceKey(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.RequireServiceKey(); !errors.Is(err, ErrMissingServiceKey) {
		t.Errorf("RequireServiceKey() = %v, want ErrMissingServiceKey", err)
	}

	cfg.Service.ServiceKey = "svc"
	if err := cfg.RequireServiceKey(); err != nil {
		t.Errorf("RequireServiceKey() = %v, want nil", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
		check   func(*testing.T, *Config)
	}{
		{
			name: "partial file keeps defaults",
			content: `
output:
  dir: /tmp/reports
credit:
  thresholds: [50, 90]
`,
			check: func(t *testing.T, c *Config) {
				if c.Output.Dir != "/tmp/reports" {
					t.Errorf("Output.Dir = %q", c.Output.Dir)
				}
				if len(c.Credit.Thresholds) != 2 || c.Credit.Thresholds[1] != 90 {
					t.Errorf("Credit.Thresholds = %v, want [50 90]", c.Credit.Thresholds)
				}
				if c.Credit.Limit != 1500 {
					t.Errorf("Credit.Limit = %v, want default 1500", c.Credit.Limit)
				}
				if !c.Display.ColorEnabled {
					t.Error("Display.ColorEnabled lost its default")
				}
			},
		},
		{
			name: "durations and service",
			content: `
service:
  url: http://localhost:9999/Analytics
  timeout: 5s
display:
  color_enabled: false
`,
			check: func(t *testing.T, c *Config) {
				if c.Service.URL != "http://localhost:9999/Analytics" {
					t.Errorf("Service.URL = %q", c.Service.URL)
				}
				if c.Service.Timeout != 5*time.Second {
					t.Errorf("Service.Timeout = %v, want 5s", c.Service.Timeout)
				}
				if c.Display.ColorEnabled {
					t.Error("Display.ColorEnabled = true, want false")
				}
			},
		},
		{
			name:    "service key in file is ignored",
			content: "service:\n  service_key: leaked\n  ServiceKey: leaked\n",
			check: func(t *testing.T, c *Config) {
				if c.Service.ServiceKey != "" {
					t.Errorf("Service.ServiceKey = %q, want empty", c.Service.ServiceKey)
				}
			},
		},
		{
			name:    "empty file",
			content: "\n",
			check: func(t *testing.T, c *Config) {
				if c.Output.Dir != "output" {
					t.Errorf("Output.Dir = %q, want default", c.Output.Dir)
				}
			},
		},
		{
			name:    "invalid yaml",
			content: "output: [unclosed",
			wantErr: ErrInvalidYAML,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "config"+string(rune('a'+i))+".yaml", tt.content)

			cfg, err := newTestLoader("", "", nil).LoadFromFile(path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("LoadFromFile() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFromFile() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}

	_, err := newTestLoader("", "", nil).LoadFromFile(filepath.Join(dir, "missing.yaml"))
	if !IsNotFound(err) {
		t.Errorf("LoadFromFile(missing) error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", `
output:
  dir: from-file
logging:
  level: warn
`)
	envFile := writeFile(t, dir, ".env", "SERVICE_KEY=from-dotenv\nUSAGE_REPORT_OUTPUT_DIR=from-dotenv\n")

	processEnv := map[string]string{
		EnvServiceKey:   "from-env",
		EnvOutputDir:    "from-env",
		EnvLogLevel:     "DEBUG",
		EnvAPIURL:       "http://127.0.0.1/Analytics",
		EnvTimeout:      "2s",
		EnvManifest:     "/tmp/m.db",
		"UNRELATED_VAR": "x",
	}

	tests := []struct {
		name        string
		env         map[string]string
		wantKey     string
		wantDir     string
		wantLevel   string
		wantURL     string
		wantTimeout time.Duration
	}{
		{
			name:        "dotenv beats file",
			env:         nil,
			wantKey:     "from-dotenv",
			wantDir:     "from-dotenv",
			wantLevel:   "warn",
			wantURL:     Default().Service.URL,
			wantTimeout: 60 * time.Second,
		},
		{
			name:        "process env beats dotenv",
			env:         processEnv,
			wantKey:     "from-env",
			wantDir:     "from-env",
			wantLevel:   "debug",
			wantURL:     "http://127.0.0.1/Analytics",
			wantTimeout: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := newTestLoader(configPath, envFile, tt.env).Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Service.ServiceKey != tt.wantKey {
				t.Errorf("ServiceKey = %q, want %q", cfg.Service.ServiceKey, tt.wantKey)
			}
			if cfg.Output.Dir != tt.wantDir {
				t.Errorf("Output.Dir = %q, want %q", cfg.Output.Dir, tt.wantDir)
			}
			if cfg.Logging.Level != tt.wantLevel {
				t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, tt.wantLevel)
			}
			if cfg.Service.URL != tt.wantURL {
				t.Errorf("Service.URL = %q, want %q", cfg.Service.URL, tt.wantURL)
			}
			if cfg.Service.Timeout != tt.wantTimeout {
				t.Errorf("Service.Timeout = %v, want %v", cfg.Service.Timeout, tt.wantTimeout)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	badLevel := writeFile(t, dir, "bad.yaml", "logging:\n  level: loud\n")
	emptyEnv := writeFile(t, dir, "empty.env", "")

	tests := []struct {
		name    string
		loader  *loader
		wantErr error
	}{
		{
			name:    "named config missing",
			loader:  newTestLoader(filepath.Join(dir, "nope.yaml"), emptyEnv, nil),
			wantErr: ErrConfigNotFound,
		},
		{
			name:    "config from env var missing",
			loader:  newTestLoader("", emptyEnv, map[string]string{EnvConfig: filepath.Join(dir, "nope.yaml")}),
			wantErr: ErrConfigNotFound,
		},
		{
			name:    "validation failure",
			loader:  newTestLoader(badLevel, emptyEnv, nil),
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "named env file missing",
			loader:  newTestLoader(badLevel, filepath.Join(dir, "missing.env"), nil),
			wantErr: ErrInvalidEnvFile,
		},
		{
			name:    "bad timeout",
			loader:  newTestLoader(writeFile(t, dir, "ok.yaml", ""), emptyEnv, map[string]string{EnvTimeout: "soon"}),
			wantErr: ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.loader.Load()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSave(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Service.ServiceKey = "must-not-leak"
	cfg.Output.Dir = "/srv/reports"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "must-not-leak") {
		t.Error("Save() wrote the service key")
	}

	loaded, err := newTestLoader("", "", nil).LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Output.Dir != "/srv/reports" {
		t.Errorf("Output.Dir = %q, want /srv/reports", loaded.Output.Dir)
	}

	invalid := Default()
	invalid.Credit.Limit = -1
	if err := Save(invalid, path); !errors.Is(err, ErrInvalidCreditLimit) {
		t.Errorf("Save(invalid) error = %v, want ErrInvalidCreditLimit", err)
	}
}

func BenchmarkValidate(b *testing.B) {
	cfg := Default()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}
