// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// ErrCatalogPathRequired is returned when no catalog file is configured.
var ErrCatalogPathRequired = errors.New("catalog path is required")

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type CatalogConfig struct {
	Path string `toml:"path"`
}

type EmbeddingConfig struct {
	Enabled        bool   `toml:"enabled"`
	Host           string `toml:"host"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type SearchConfig struct {
	TopK          int `toml:"top_k"`
	Threshold     int `toml:"threshold"`
	MaxSpanTokens int `toml:"max_span_tokens"`
	BatchPoolSize int `toml:"batch_pool_size"`
}

type HistoryConfig struct {
	Enabled    bool   `toml:"enabled"`
	Path       string `toml:"path"`
	MaxEntries int    `toml:"max_entries"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Search    SearchConfig    `toml:"search"`
	History   HistoryConfig   `toml:"history"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Embedding: EmbeddingConfig{
			Enabled:        true,
			Host:           "http://localhost:11434/v1",
			Model:          "bge-m3",
			TimeoutSeconds: 5,
		},
		Search: SearchConfig{
			TopK:          5,
			Threshold:     70,
			MaxSpanTokens: 4,
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       "./data/history",
			MaxEntries: 1000,
		},
	}
}

// Load reads a TOML config file over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with TERMSTD_* environment variables.
func (c *Config) applyEnv() {
	if addr := os.Getenv("TERMSTD_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("TERMSTD_CATALOG"); path != "" {
		c.Catalog.Path = path
	}
	if host := os.Getenv("TERMSTD_EMBEDDING_HOST"); host != "" {
		c.Embedding.Host = host
	}
	if model := os.Getenv("TERMSTD_EMBEDDING_MODEL"); model != "" {
		c.Embedding.Model = model
	}
	if enabled := os.Getenv("TERMSTD_EMBEDDING_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			c.Embedding.Enabled = v
		}
	}
	if path := os.Getenv("TERMSTD_HISTORY_PATH"); path != "" {
		c.History.Path = path
	}
}

// Validate checks fields that have no usable fallback.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return ErrCatalogPathRequired
	}
	if c.Search.TopK < 1 {
		c.Search.TopK = 5
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 100 {
		c.Search.Threshold = 70
	}
	if c.History.MaxEntries < 1 {
		c.History.MaxEntries = 1000
	}
	return nil
}
