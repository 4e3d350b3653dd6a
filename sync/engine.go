package sync

// engine.go implements the sync upload: serialize the snapshot, gzip it, wrap
// it as a multipart file upload and POST it to the configured endpoint with
// the shared-secret token header. Local writes never depend on sync outcome;
// sync is best-effort and non-blocking for local usability.

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	stdsync "sync"
	"time"

	"github.com/charmbracelet/log"

	"hisab/db"
)

// syncPath is the fixed sync endpoint path appended to the configured base
// URL.
const syncPath = "/sync-app-data"

// snapshotFilename is the multipart filename of the uploaded snapshot.
const snapshotFilename = "data.json.gz"

// SyncResult is the outcome of a sync attempt. Network and configuration
// failures are converted into a result at this boundary rather than
// propagated.
type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Engine produces snapshots and uploads them. Uploads are serialized by an
// internal mutex: a second Sync call while one is in flight waits its turn
// rather than racing it.
type Engine struct {
	db         *db.DB
	httpClient *http.Client
	logger     *log.Logger

	// online probes connectivity to the endpoint host; replaceable in tests.
	online func(ctx context.Context, endpoint string) bool

	mu       stdsync.Mutex // serializes uploads
	stateMu  stdsync.Mutex // guards the advisory fields below
	syncing  bool
	lastSync time.Time
	lastErr  string
}

// NewEngine creates a sync engine over the database. A nil httpClient gets a
// client with a sensible timeout; a nil logger gets a default logging to
// stderr.
func NewEngine(database *db.DB, httpClient *http.Client, logger *log.Logger) *Engine {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Engine{
		db:         database,
		httpClient: httpClient,
		logger:     logger,
		online:     probeConnectivity,
	}
}

// probeConnectivity dials the endpoint host to detect whether the network is
// reachable at all.
func probeConnectivity(ctx context.Context, endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	d := net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Syncing reports whether an upload is currently in flight. Advisory, for
// display only.
func (e *Engine) Syncing() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.syncing
}

// LastSync returns the time of the last successful upload, zero if none.
func (e *Engine) LastSync() time.Time {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.lastSync
}

// TriggerSync runs a sync in the background, logging the outcome. It is the
// fire-and-forget form wired to the transaction repository's post-write hook.
func (e *Engine) TriggerSync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result := e.Sync(ctx)
		if !result.Success {
			e.logger.Warn("background sync failed", "message", result.Message)
		}
	}()
}

// Sync exports a snapshot and uploads it, returning the outcome. It fails
// fast on missing endpoint/token configuration or absent connectivity. On
// success the rows captured by the snapshot are marked synced.
func (e *Engine) Sync(ctx context.Context) SyncResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setSyncing(true)
	defer e.setSyncing(false)

	result := e.sync(ctx)
	e.stateMu.Lock()
	if result.Success {
		e.lastSync = time.Now()
		e.lastErr = ""
	} else {
		e.lastErr = result.Message
	}
	e.stateMu.Unlock()
	return result
}

func (e *Engine) setSyncing(v bool) {
	e.stateMu.Lock()
	e.syncing = v
	e.stateMu.Unlock()
}

func (e *Engine) sync(ctx context.Context) SyncResult {
	endpoint, token, err := e.apiSettings(ctx)
	if err != nil {
		return SyncResult{Success: false, Message: err.Error()}
	}

	if !e.online(ctx, endpoint) {
		return SyncResult{Success: false, Message: "no internet connection"}
	}

	snap, err := Export(ctx, e.db)
	if err != nil {
		return SyncResult{Success: false, Message: err.Error()}
	}

	body, contentType, err := packSnapshot(snap)
	if err != nil {
		return SyncResult{Success: false, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+syncPath, body)
	if err != nil {
		return SyncResult{Success: false, Message: err.Error()}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-TOKEN", token)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return SyncResult{Success: false, Message: fmt.Sprintf("sync request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SyncResult{
			Success: false,
			Message: fmt.Sprintf("server responded with %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	if err := e.db.MarkSynced(ctx, snap.ExportDate); err != nil {
		// The upload succeeded; report success but log the status flip
		// failure so the rows are retried next sync.
		e.logger.Warn("could not mark rows synced", "err", err)
	}

	e.logger.Info("sync complete",
		"books", len(snap.Data.Books),
		"transactions", len(snap.Data.Transactions),
	)
	return SyncResult{Success: true}
}

// apiSettings reads the endpoint and token settings, failing with a
// *db.ConfigurationError when either is unset.
func (e *Engine) apiSettings(ctx context.Context) (endpoint, token string, err error) {
	endpoint, err = e.db.SettingString(ctx, db.SettingAPIEndpoint)
	if err != nil {
		return "", "", err
	}
	if endpoint == "" {
		return "", "", &db.ConfigurationError{Setting: db.SettingAPIEndpoint}
	}
	token, err = e.db.SettingString(ctx, db.SettingAPIToken)
	if err != nil {
		return "", "", err
	}
	if token == "" {
		return "", "", &db.ConfigurationError{Setting: db.SettingAPIToken}
	}
	return endpoint, token, nil
}

// packSnapshot serializes the snapshot to JSON, gzips it and wraps it in a
// multipart form file field named "file".
func packSnapshot(snap *Snapshot) (*bytes.Buffer, string, error) {
	jsonBytes, err := json.Marshal(snap)
	if err != nil {
		return nil, "", fmt.Errorf("could not serialize snapshot: %w", err)
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(jsonBytes); err != nil {
		return nil, "", fmt.Errorf("could not compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, "", fmt.Errorf("could not compress snapshot: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", snapshotFilename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(compressed.Bytes()); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}
