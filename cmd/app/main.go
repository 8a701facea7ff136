package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/brief/internal"
	pkgconfig "github.com/starford/brief/pkg/config"
)

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

// pathAction wraps commands that take one document path argument.
func pathAction(fn func(context.Context, string, []internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.Args().First()
		if path == "" {
			return fmt.Errorf("%s: document path is required", cmd.Name)
		}
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, path, opts)
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "brief",
		Usage:  "Typed models over a corpus of Markdown documents",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and corpus watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:      "render",
				Usage:     "Print the rendered HTML of a document",
				ArgsUsage: "<path>",
				Action: pathAction(func(ctx context.Context, path string, opts []internal.Option) error {
					return internal.Render(ctx, path, os.Stdout, opts...)
				}),
			},
			{
				Name:      "inspect",
				Usage:     "Print a model's attributes, sections and relationships as JSON",
				ArgsUsage: "<path>",
				Action: pathAction(func(ctx context.Context, path string, opts []internal.Option) error {
					return internal.Inspect(ctx, path, os.Stdout, opts...)
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
