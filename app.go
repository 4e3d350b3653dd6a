package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"hisab/config"
	"hisab/db"
	"hisab/sync"
	"hisab/web"
)

// App implements Applicator over the real config, database, web and sync
// layers. Each command opens its own database connection; serve keeps it open
// for the process lifetime.
type App struct {
	log *log.Logger
}

// NewApp creates the application object. Environment variables from an
// optional .env file supplement the shell environment before the config's
// env overrides are read.
func NewApp() *App {
	_ = godotenv.Load()
	logger := log.New(os.Stderr)
	if strings.EqualFold(os.Getenv("HISAB_DEBUG"), "true") {
		logger.SetLevel(log.DebugLevel)
	}
	return &App{log: logger}
}

// open loads the config and connects to the database.
func (a *App) open(cfgPath string) (*config.Config, *db.DB, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	database, err := db.NewConnection(cfg.DatabasePath, a.log)
	if err != nil {
		return nil, nil, fmt.Errorf("database setup error: %w", err)
	}
	return cfg, database, nil
}

// Serve runs the local API server together with the sync engine and, when an
// attachments directory is configured, the attachment watcher. It blocks
// until ctx is cancelled or a component fails.
func (a *App) Serve(ctx context.Context, cfgPath string) error {
	cfg, database, err := a.open(cfgPath)
	if err != nil {
		return err
	}
	defer database.Close()

	engine := sync.NewEngine(database, nil, a.log)

	// Every transaction write schedules a best-effort background upload.
	database.OnTransactionWrite(engine.TriggerSync)

	webApp, err := web.New(a.log, cfg, database, engine)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webApp.StartServer(ctx)
	})
	if cfg.AttachmentsDir != "" {
		uploader := sync.NewUploader(database, nil, a.log)
		watcher, err := sync.NewAttachmentWatcher(cfg.AttachmentsDir, uploader, a.log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}
	return g.Wait()
}

// Sync performs a single foreground snapshot upload.
func (a *App) Sync(ctx context.Context, cfgPath string) error {
	_, database, err := a.open(cfgPath)
	if err != nil {
		return err
	}
	defer database.Close()

	result := sync.NewEngine(database, nil, a.log).Sync(ctx)
	if !result.Success {
		return fmt.Errorf("sync failed: %s", result.Message)
	}
	return nil
}

// Export writes a snapshot of the local data to outPath, gzipped when the
// path carries a .gz suffix.
func (a *App) Export(ctx context.Context, cfgPath, outPath string) error {
	_, database, err := a.open(cfgPath)
	if err != nil {
		return err
	}
	defer database.Close()

	snap, err := sync.Export(ctx, database)
	if err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(outPath, ".gz") {
		gz := gzip.NewWriter(f)
		if err := json.NewEncoder(gz).Encode(snap); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}
	} else {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	}
	a.log.Info("exported snapshot", "path", outPath)
	return nil
}

// WatchAttachments runs only the attachment watcher, uploading images that
// appear in the configured attachments directory until ctx is cancelled.
func (a *App) WatchAttachments(ctx context.Context, cfgPath string) error {
	cfg, database, err := a.open(cfgPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.AttachmentsDir == "" {
		return fmt.Errorf("no attachments_dir configured in %s", cfgPath)
	}
	uploader := sync.NewUploader(database, nil, a.log)
	watcher, err := sync.NewAttachmentWatcher(cfg.AttachmentsDir, uploader, a.log)
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}

// Configure stores the sync endpoint and token in the settings table.
func (a *App) Configure(ctx context.Context, cfgPath, endpoint, token string) error {
	_, database, err := a.open(cfgPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.SaveAPISettings(ctx, endpoint, token); err != nil {
		return err
	}
	a.log.Info("saved api settings", "endpoint", endpoint)
	return nil
}
