package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.NBuf != 64 {
		t.Errorf("NBuf: got %d, want 64", cfg.NBuf)
	}
	if cfg.NBucket != 13 {
		t.Errorf("NBucket: got %d, want 13", cfg.NBucket)
	}
	if cfg.BSize != 1024 {
		t.Errorf("BSize: got %d, want 1024", cfg.BSize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
	if cfg.DiskPath != "" {
		t.Errorf("DiskPath: got %q, want empty (in-memory disk default)", cfg.DiskPath)
	}
	if cfg.DiskLatency != "0ms" {
		t.Errorf("DiskLatency: got %s, want 0ms", cfg.DiskLatency)
	}
}

func TestDiskLatencyDuration(t *testing.T) {
	cfg := defaults()
	cfg.DiskLatency = "5ms"
	if got := cfg.DiskLatencyDuration(); got != 5*time.Millisecond {
		t.Errorf("DiskLatencyDuration: got %v, want 5ms", got)
	}
}

func TestDiskLatencyDuration_Malformed_DefaultsZero(t *testing.T) {
	cfg := defaults()
	cfg.DiskLatency = "not-a-duration"
	if got := cfg.DiskLatencyDuration(); got != 0 {
		t.Errorf("DiskLatencyDuration: got %v, want 0", got)
	}
}

func TestLoadEnv_NBuf(t *testing.T) {
	t.Setenv("BCACHE_NBUF", "128")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.NBuf != 128 {
		t.Errorf("NBuf: got %d, want 128", cfg.NBuf)
	}
}

func TestLoadEnv_NBucket(t *testing.T) {
	t.Setenv("BCACHE_NBUCKET", "29")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.NBucket != 29 {
		t.Errorf("NBucket: got %d, want 29", cfg.NBucket)
	}
}

func TestLoadEnv_BSize(t *testing.T) {
	t.Setenv("BCACHE_BSIZE", "4096")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.BSize != 4096 {
		t.Errorf("BSize: got %d, want 4096", cfg.BSize)
	}
}

func TestLoadEnv_LogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
}

func TestLoadEnv_DiskPath(t *testing.T) {
	t.Setenv("BCACHE_DISK_PATH", "/tmp/disk.db")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.DiskPath != "/tmp/disk.db" {
		t.Errorf("DiskPath: got %s", cfg.DiskPath)
	}
}

func TestLoadEnv_DiskLatency(t *testing.T) {
	t.Setenv("BCACHE_DISK_LATENCY", "2ms")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.DiskLatency != "2ms" {
		t.Errorf("DiskLatency: got %s", cfg.DiskLatency)
	}
}

func TestLoadEnv_NBuf_Zero_Ignored(t *testing.T) {
	t.Setenv("BCACHE_NBUF", "0")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.NBuf != 64 {
		t.Errorf("NBuf: got %d, want 64 (zero should be ignored)", cfg.NBuf)
	}
}

func TestLoadEnv_NBuf_Invalid_Ignored(t *testing.T) {
	t.Setenv("BCACHE_NBUF", "not-a-number")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.NBuf != 64 {
		t.Errorf("NBuf: got %d, want 64 (invalid env should be ignored)", cfg.NBuf)
	}
}

func TestLoadFile_ValidJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	if err != nil {
		t.Fatal(err)
	}

	data, marshalErr := json.Marshal(map[string]any{
		"nbuf":     256,
		"nbucket":  17,
		"diskPath": "/var/lib/blockcache/disk.db",
	})
	if marshalErr != nil {
		t.Fatal(marshalErr)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())

	if cfg.NBuf != 256 {
		t.Errorf("NBuf: got %d, want 256", cfg.NBuf)
	}
	if cfg.NBucket != 17 {
		t.Errorf("NBucket: got %d, want 17", cfg.NBucket)
	}
	if cfg.DiskPath != "/var/lib/blockcache/disk.db" {
		t.Errorf("DiskPath: got %s", cfg.DiskPath)
	}
}

func TestLoadFile_Missing_IsNoOp(t *testing.T) {
	cfg := defaults()
	loadFile(cfg, "/nonexistent/path/config.json")
	if cfg.NBuf != 64 {
		t.Errorf("NBuf changed unexpectedly: %d", cfg.NBuf)
	}
}

func TestLoadFile_InvalidJSON_PreservesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-bad-*.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{this is not json}"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())
	if cfg.NBuf != 64 {
		t.Errorf("NBuf changed on bad JSON: %d", cfg.NBuf)
	}
}

func TestLoad_ReturnsNonNil(t *testing.T) {
	cfg := Load()
	if cfg == nil {
		t.Fatal("Load() returned nil")
	}
	if cfg.NBuf <= 0 {
		t.Errorf("NBuf should be positive, got %d", cfg.NBuf)
	}
}
