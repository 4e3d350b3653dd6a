package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Applicator defines the interface for the core application logic.
// This allows the CLI to be tested independently of the main app implementation.
type Applicator interface {
	Serve(ctx context.Context, cfgPath string) error
	Sync(ctx context.Context, cfgPath string) error
	Export(ctx context.Context, cfgPath, outPath string) error
	Configure(ctx context.Context, cfgPath, endpoint, token string) error
	WatchAttachments(ctx context.Context, cfgPath string) error
}

// BuildCLI creates the full CLI command structure for the application.
// It injects the core application logic (the Applicator) into the command actions.
func BuildCLI(app Applicator) *cli.Command {
	// Define flags that are common across multiple commands.
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config.yaml",
		Usage:   "path to the configuration file",
	}

	serveCmd := &cli.Command{
		Name:  "serve",
		Usage: "Run the local API server, sync engine and attachment watcher",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Serve(ctx, c.String("config"))
		},
	}

	syncCmd := &cli.Command{
		Name:  "sync",
		Usage: "Upload a snapshot of the local data to the configured endpoint",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Sync(ctx, c.String("config"))
		},
	}

	exportCmd := &cli.Command{
		Name:  "export",
		Usage: "Write a snapshot of the local data to a file",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "hisab-export.json",
				Usage:   "output path; a .gz suffix gzips the snapshot",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Export(ctx, c.String("config"), c.String("out"))
		},
	}

	configureCmd := &cli.Command{
		Name:  "configure",
		Usage: "Store the sync endpoint and token in the local database",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{Name: "endpoint", Usage: "base URL of the sync server", Required: true},
			&cli.StringFlag{Name: "token", Usage: "shared-secret token sent as X-TOKEN", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Configure(ctx, c.String("config"), c.String("endpoint"), c.String("token"))
		},
	}

	watchCmd := &cli.Command{
		Name:  "watch-attachments",
		Usage: "Watch the attachments directory and upload new images",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.WatchAttachments(ctx, c.String("config"))
		},
	}

	// Assemble the root command.
	rootCmd := &cli.Command{
		Name:     "hisab",
		Usage:    "An offline-first personal finance tracker with snapshot sync",
		Commands: []*cli.Command{serveCmd, syncCmd, exportCmd, configureCmd, watchCmd},
	}

	return rootCmd
}
