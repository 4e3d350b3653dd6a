package sync

// watcher.go watches the configured attachments directory and uploads newly
// created image files through the upload client. Upload failures are logged,
// not fatal: the file stays on disk for a later manual upload.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// settleDuration is the time given for a file write to finish before the
// upload starts.
const settleDuration = 250 * time.Millisecond

// imageSuffixes are the file suffixes treated as uploadable images.
var imageSuffixes = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// AttachmentWatcher uploads images dropped into a watched directory.
type AttachmentWatcher struct {
	dir      string
	uploader *Uploader
	logger   *log.Logger
	watcher  *fsnotify.Watcher
}

// NewAttachmentWatcher registers a watcher on dir.
func NewAttachmentWatcher(dir string, uploader *Uploader, logger *log.Logger) (*AttachmentWatcher, error) {
	dir = filepath.Clean(dir)
	check, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("attachments dir %q not found: %w", dir, err)
	}
	if !check.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify new watcher error: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("fsnotify add error for dir %q: %w", dir, err)
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &AttachmentWatcher{
		dir:      dir,
		uploader: uploader,
		logger:   logger,
		watcher:  watcher,
	}, nil
}

// Run watches until ctx is done.
func (aw *AttachmentWatcher) Run(ctx context.Context) error {
	defer aw.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return nil
			}
			aw.logger.Warn("attachment watcher error", "err", err)
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !isImage(event.Name) {
				continue
			}
			time.Sleep(settleDuration)
			aw.upload(ctx, event.Name)
		}
	}
}

// upload posts one file, logging the outcome.
func (aw *AttachmentWatcher) upload(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		aw.logger.Warn("could not open attachment", "path", path, "err", err)
		return
	}
	defer f.Close()

	url, err := aw.uploader.UploadImage(ctx, f, filepath.Base(path), "attachment-watcher")
	if err != nil {
		aw.logger.Warn("attachment upload failed", "path", path, "err", err)
		return
	}
	aw.logger.Info("attachment uploaded", "path", path, "url", url)
}

func isImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range imageSuffixes {
		if ext == s {
			return true
		}
	}
	return false
}
