package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		HTTP struct {
			Addr string `koanf:"addr"`
		} `koanf:"http"`
	} `koanf:"server"`
	Session struct {
		TTL          time.Duration `koanf:"ttl"`
		MaxSizeBytes int64         `koanf:"max_size_bytes"`
	} `koanf:"session"`
	Ingestion struct {
		BaseURL string `koanf:"base_url"`
	} `koanf:"ingestion"`
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
}

func TestLoader_LoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
server:
  http:
    addr: "0.0.0.0:5090"
session:
  ttl: "30m"
  max_size_bytes: 52428800
ingestion:
  base_url: "http://ingest.internal:8080"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	l := NewLoader()
	if err := l.LoadFile(configPath); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if cfg.Server.HTTP.Addr != "0.0.0.0:5090" {
		t.Errorf("Addr = %q, want 0.0.0.0:5090", cfg.Server.HTTP.Addr)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("TTL = %v, want 30m", cfg.Session.TTL)
	}
	if cfg.Session.MaxSizeBytes != 52428800 {
		t.Errorf("MaxSizeBytes = %d, want 52428800", cfg.Session.MaxSizeBytes)
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Fatal("LoadFile accepted a missing file")
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("TABMESH_SERVER_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("TABMESH_INGESTION_BASE_URL", "http://upstream:9000")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Server.HTTP.Addr != "127.0.0.1:7000" {
		t.Errorf("Addr = %q, want 127.0.0.1:7000", cfg.Server.HTTP.Addr)
	}
	if cfg.Ingestion.BaseURL != "http://upstream:9000" {
		t.Errorf("BaseURL = %q, want http://upstream:9000", cfg.Ingestion.BaseURL)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
server:
  http:
    addr: "from-file:1"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("TABMESH_SERVER_HTTP_ADDR", "from-env:2")

	l := NewLoader(WithConfigFile(configPath))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTP.Addr != "from-env:2" {
		t.Errorf("Addr = %q, want from-env:2", cfg.Server.HTTP.Addr)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() = false after Load")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{
		"session.ttl": "15m",
	}); err != nil {
		t.Fatalf("LoadMap: %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Session.TTL != 15*time.Minute {
		t.Errorf("TTL = %v, want 15m", cfg.Session.TTL)
	}
}

func TestLoader_MapOverridesEnv(t *testing.T) {
	t.Setenv("TABMESH_SESSION_TTL", "10m")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if err := l.LoadMap(map[string]any{"session.ttl": "45m"}); err != nil {
		t.Fatalf("LoadMap: %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Session.TTL != 45*time.Minute {
		t.Errorf("TTL = %v, want 45m (flags beat env)", cfg.Session.TTL)
	}
}

func TestLoader_Get(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"log.level": "debug"}); err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	if got := l.GetString("log.level"); got != "debug" {
		t.Errorf("GetString = %q, want debug", got)
	}
	if l.Get("log.missing") != nil {
		t.Error("Get for missing key should be nil")
	}
}
