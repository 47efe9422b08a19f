// Package config loads and holds all block buffer cache configuration.
// Settings are layered: defaults → blockcache-config.json → environment
// variables (env vars win). These are the spec's "compile-time constants"
// made runtime-configurable for the demo harness and tests; once New builds
// a Cache from a Config, the cache core treats NBuf/NBucket/BSize as fixed
// for that Cache's lifetime.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the full block buffer cache configuration.
type Config struct {
	NBuf        int    `json:"nbuf"`        // buffer pool size
	NBucket     int    `json:"nbucket"`     // hash fan-out; should be a small prime
	BSize       int    `json:"bsize"`       // bytes per block
	LogLevel    string `json:"logLevel"`
	DiskPath    string `json:"diskPath"`    // bbolt-backed disk image path; empty = in-memory disk
	DiskLatency string `json:"diskLatency"` // artificial disk latency, parsed via time.ParseDuration
}

// Load returns config with defaults overridden by blockcache-config.json and env vars.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "blockcache-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		NBuf:        64,
		NBucket:     13,
		BSize:       1024,
		LogLevel:    "info",
		DiskPath:    "",
		DiskLatency: "0ms",
	}
}

// DiskLatencyDuration parses DiskLatency, defaulting to 0 on a malformed value.
func (c *Config) DiskLatencyDuration() time.Duration {
	d, err := time.ParseDuration(c.DiskLatency)
	if err != nil {
		return 0
	}
	return d
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("BCACHE_NBUF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NBuf = n
		}
	}
	if v := os.Getenv("BCACHE_NBUCKET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NBucket = n
		}
	}
	if v := os.Getenv("BCACHE_BSIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BSize = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BCACHE_DISK_PATH"); v != "" {
		cfg.DiskPath = v
	}
	if v := os.Getenv("BCACHE_DISK_LATENCY"); v != "" {
		cfg.DiskLatency = v
	}
}
