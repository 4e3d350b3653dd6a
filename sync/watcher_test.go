package sync

// tests for the attachment directory watcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func Test_IsImage(t *testing.T) {

	cases := []struct {
		path string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPG", true},
		{"a.jpeg", true},
		{"a.png", true},
		{"a.webp", true},
		{"a.gif", true},
		{"a.txt", false},
		{"a.jpg.part", false},
		{"noext", false},
	}
	for _, c := range cases {
		if got := isImage(c.path); got != c.want {
			t.Errorf("isImage(%q) got %v want %v", c.path, got, c.want)
		}
	}
}

func Test_NewAttachmentWatcherValidatesDir(t *testing.T) {

	database := setupTestDB(t)
	uploader := NewUploader(database, nil, log.New(io.Discard))

	if _, err := NewAttachmentWatcher("/no/such/dir", uploader, nil); err == nil {
		t.Error("expected an error for a missing directory")
	}

	file := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAttachmentWatcher(file, uploader, nil); err == nil {
		t.Error("expected an error for a non-directory path")
	}
}

func Test_AttachmentWatcherUploadsNewImages(t *testing.T) {

	database := setupTestDB(t)
	ctx := context.Background()

	uploaded := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("could not read uploaded image: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		uploaded <- header.Filename
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"url":"attachments/stored.jpg"}`)
	}))
	t.Cleanup(server.Close)
	if err := database.SaveAPISettings(ctx, server.URL, "sekrit"); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	uploader := NewUploader(database, nil, log.New(io.Discard))
	watcher, err := NewAttachmentWatcher(dir, uploader, log.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected watcher creation error: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		_ = watcher.Run(runCtx)
		close(done)
	}()

	// a non-image file is ignored; an image gets uploaded.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "receipt.jpg"), []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-uploaded:
		if got, want := name, "receipt.jpg"; got != want {
			t.Errorf("uploaded filename got %q want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the attachment upload")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}
