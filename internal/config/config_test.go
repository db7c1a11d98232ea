package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knock.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("backend = %q, want file", cfg.Storage.Backend)
	}
	if filepath.Base(cfg.Storage.Path) != "pins.json" {
		t.Errorf("storage path = %q", cfg.Storage.Path)
	}
	if cfg.Storage.MaxBytes != 5<<20 {
		t.Errorf("maxBytes = %d", cfg.Storage.MaxBytes)
	}
	if cfg.Proximity.RadiusMeters != 4000 {
		t.Errorf("radius = %v, want 4000", cfg.Proximity.RadiusMeters)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Geocode.Workers != 4 || cfg.Geocode.RatePerSecond != 5 {
		t.Errorf("geocode = %+v", cfg.Geocode)
	}
	if cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.HTTP.ShutdownTimeout)
	}
	if loc, err := cfg.Location(); err != nil || loc != time.Local {
		t.Errorf("Location = %v, %v, want Local", loc, err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9090
  readTimeout: 5s
storage:
  backend: sqlite
  path: /tmp/knock-test.db
proximity:
  radiusMeters: 1500
timezone: UTC
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 30*time.Second {
		t.Errorf("write timeout = %v, want default kept", cfg.HTTP.WriteTimeout)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.Path != "/tmp/knock-test.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Proximity.RadiusMeters != 1500 {
		t.Errorf("radius = %v", cfg.Proximity.RadiusMeters)
	}
	if !cfg.Log.Pretty || cfg.Log.Level != "debug" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if loc, _ := cfg.Location(); loc.String() != "UTC" {
		t.Errorf("location = %v", loc)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "http:\n  port: 9090\n")

	t.Setenv("KNOCK_HTTP_PORT", "7070")
	t.Setenv("KNOCK_STORAGE_BACKEND", "memory")
	t.Setenv("KNOCK_STORAGE_MAX_BYTES", "1024")
	t.Setenv("KNOCK_PROXIMITY_RADIUS_METERS", "250.5")
	t.Setenv("KNOCK_GEOCODE_TOKEN", "pk.env")
	t.Setenv("KNOCK_HTTP_SHUTDOWNTIMEOUT", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.HTTP.Port)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Storage.MaxBytes != 1024 {
		t.Errorf("maxBytes = %d", cfg.Storage.MaxBytes)
	}
	if cfg.Proximity.RadiusMeters != 250.5 {
		t.Errorf("radius = %v", cfg.Proximity.RadiusMeters)
	}
	if cfg.Geocode.Token != "pk.env" {
		t.Errorf("token = %q", cfg.Geocode.Token)
	}
	if cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.HTTP.ShutdownTimeout)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown backend", content: "storage:\n  backend: redis\n", wantErr: "Backend"},
		{name: "zero radius", content: "proximity:\n  radiusMeters: 0\n", wantErr: "RadiusMeters"},
		{name: "bad timezone", content: "timezone: Mars/Olympus\n", wantErr: "timezone"},
		{name: "bad log level", env: map[string]string{"KNOCK_LOG_LEVEL": "loud"}, wantErr: "Level"},
		{name: "no workers", content: "geocode:\n  workers: 0\n", wantErr: "Workers"},
		{name: "file backend without path", content: "storage:\n  path: \"\"\n", wantErr: "storage.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.content != "" {
				path = writeConfig(t, tt.content)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestAddr(t *testing.T) {
	cfg := &Config{}
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 8080
	if got := cfg.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", got)
	}
}

func TestCanonicalizeEnvKey(t *testing.T) {
	existing := map[string]any{
		"storage": map[string]any{
			"backend":  "file",
			"maxBytes": 1,
		},
		"proximity": map[string]any{
			"radiusMeters": 4000.0,
		},
		"geocode": map[string]any{
			"ratePerSecond": 5.0,
		},
		"timezone": "Local",
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "STORAGE_BACKEND", want: "storage.backend"},
		{envKey: "STORAGE_MAXBYTES", want: "storage.maxBytes"},
		{envKey: "STORAGE_MAX_BYTES", want: "storage.maxBytes"},
		{envKey: "PROXIMITY_RADIUS_METERS", want: "proximity.radiusMeters"},
		{envKey: "GEOCODE_RATE_PER_SECOND", want: "geocode.ratePerSecond"},
		{envKey: "TIMEZONE", want: "timezone"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
		{envKey: "STORAGE__PATH", want: "storage.path"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}
