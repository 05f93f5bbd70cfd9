package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dagaz/internal"
	"github.com/starford/dagaz/internal/export"
	pkgconfig "github.com/starford/dagaz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := export.Options{
		Width:               cmd.Float("width"),
		IncludeAnnotations:  !cmd.Bool("no-annotations"),
		IncludeDependencies: !cmd.Bool("no-dependencies"),
	}
	if cmd.IsSet("scroll-left") {
		v := cmd.Float("scroll-left")
		opts.ScrollLeft = &v
	}
	if cmd.IsSet("scroll-top") {
		v := cmd.Float("scroll-top")
		opts.ScrollTop = &v
	}
	return internal.RunExport(ctx, cmd.String("out"), opts, internal.WithConfig(cfg))
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "dagaz",
		Usage:  "Calendar timeline board with date-anchored annotations and PNG export",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Render the board to a PNG image and exit",
				Action: runExport,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file path (\"-\" for stdout, empty for a timestamped name)",
					},
					&cli.FloatFlag{
						Name:  "width",
						Usage: "Viewport width in pixels (default from config)",
					},
					&cli.FloatFlag{
						Name:  "scroll-left",
						Usage: "Horizontal scroll position in pixels",
					},
					&cli.FloatFlag{
						Name:  "scroll-top",
						Usage: "Vertical scroll position in pixels",
					},
					&cli.BoolFlag{
						Name:  "no-annotations",
						Usage: "Skip the annotation layer",
					},
					&cli.BoolFlag{
						Name:  "no-dependencies",
						Usage: "Skip dependency curves",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve board tools over the Model Context Protocol on stdio",
				Action: runMCP,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
