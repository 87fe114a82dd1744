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


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/termstd"
	"github.com/poiesic/termstd/ai"
	"github.com/poiesic/termstd/ai/openai"
	"github.com/poiesic/termstd/catalog"
	"github.com/poiesic/termstd/config"
	"github.com/poiesic/termstd/history"
	"github.com/poiesic/termstd/server"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "termstd",
		Usage: "Financial term standardization service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
			},
			{
				Name:      "standardize",
				Usage:     "Standardize one passage and print the result as JSON",
				ArgsUsage: "<text>",
				Action:    standardizeCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "threshold",
						Usage: "Minimum similarity on the 0-100 scale",
						Value: 70,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print catalog statistics",
				Action: statsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

// loadService builds the full service from configuration: catalog,
// optional embedder plus startup index build, and history store.
func loadService(ctx context.Context, c *cli.Context, withHistory bool) (*termstd.Service, *config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	opts := []termstd.ServiceOption{
		termstd.WithMaxSpanTokens(cfg.Search.MaxSpanTokens),
	}
	if cfg.Search.BatchPoolSize > 0 {
		opts = append(opts, termstd.WithBatchPoolSize(cfg.Search.BatchPoolSize))
	}

	if cfg.Embedding.Enabled {
		aiConfig := ai.NewConfig(
			ai.WithHost(cfg.Embedding.Host),
			ai.WithModel(cfg.Embedding.Model),
			ai.WithTimeout(time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second),
		)
		if err := aiConfig.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid embedding configuration: %w", err)
		}
		embedder, err := openai.NewEmbedder(aiConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		opts = append(opts,
			termstd.WithEmbedder(embedder),
			termstd.WithEmbedTimeout(aiConfig.Timeout))
	}

	if withHistory && cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, false,
			history.WithMaxEntries(cfg.History.MaxEntries))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history store: %w", err)
		}
		opts = append(opts, termstd.WithRecorder(store))
	}

	svc, err := termstd.NewService(ctx, cat, opts...)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cfg, err := loadService(ctx, c, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := server.NewServer(svc,
		server.WithAddr(cfg.Server.Addr),
		server.WithDefaults(cfg.Search.TopK, cfg.Search.Threshold))
	return srv.Run(ctx)
}

func standardizeCommand(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("usage: termstd standardize <text>")
	}

	ctx := context.Background()
	svc, _, err := loadService(ctx, c, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Standardize(ctx, text, c.Int("threshold"))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func statsCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	stats := cat.Stats()
	fmt.Printf("Terms:        %d\n", stats.TotalTerms)
	fmt.Printf("Labels:       %d\n", stats.UniqueLabels)
	fmt.Printf("Fingerprint:  %s\n", stats.Fingerprint)
	return nil
}
