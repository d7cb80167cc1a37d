package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cleaan/internal"
	pkgconfig "github.com/starford/cleaan/pkg/config"
)

type runner func(ctx context.Context, opts ...internal.Option) error

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	return cfg, nil
}

// action builds a command action around one of the application entry
// points.
func action(fn runner, logOutput func(*cli.Command) (io.Writer, func(), error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
		}
		if logOutput != nil {
			w, closeFn, err := logOutput(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			opts = append(opts, internal.WithLogOutput(w))
		}

		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

// logFile sends logs to --log-file when given. The terminal host would
// otherwise draw over them.
func logFile(cmd *cli.Command) (io.Writer, func(), error) {
	path := cmd.String("log-file")
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func main() {
	cmd := &cli.Command{
		Name:   "cleaan",
		Usage:  "Markdown notes with a searchable command palette and a shared selection",
		Action: action(internal.Run, nil),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Override the vault directory from the config file",
				Sources: cli.EnvVars("CLEAAN_VAULT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and event stream",
				Action: action(internal.Run, nil),
			},
			{
				Name:   "mcp",
				Usage:  "Serve note tools over MCP stdio",
				Action: action(internal.RunMCP, nil),
			},
			{
				Name:   "tui",
				Usage:  "Browse and search notes in the terminal",
				Action: action(internal.RunTUI, logFile),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Write logs to this file instead of discarding them",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
