package sync

// upload.go implements the image upload client. Attachment values stored on
// products and transactions are relative paths returned by the remote upload
// endpoint.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"hisab/db"
)

// uploadPath is the fixed image upload path appended to the configured base
// URL.
const uploadPath = "/upload-image"

// Uploader posts image files to the remote upload endpoint.
type Uploader struct {
	db         *db.DB
	httpClient *http.Client
	logger     *log.Logger
}

// NewUploader creates an image uploader. A nil httpClient gets a client with
// a sensible timeout; a nil logger gets a default logging to stderr.
func NewUploader(database *db.DB, httpClient *http.Client, logger *log.Logger) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Uploader{db: database, httpClient: httpClient, logger: logger}
}

// UploadImage posts the image to the upload endpoint with a "from" label
// naming the calling context, returning the relative path the server stored
// it under. Missing endpoint/token configuration is a *db.ConfigurationError.
func (u *Uploader) UploadImage(ctx context.Context, r io.Reader, filename, from string) (string, error) {
	endpoint, err := u.db.SettingString(ctx, db.SettingAPIEndpoint)
	if err != nil {
		return "", err
	}
	if endpoint == "" {
		return "", &db.ConfigurationError{Setting: db.SettingAPIEndpoint}
	}
	token, err := u.db.SettingString(ctx, db.SettingAPIToken)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", &db.ConfigurationError{Setting: db.SettingAPIToken}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", fmt.Errorf("could not read image: %w", err)
	}
	if err := mw.WriteField("from", from); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+uploadPath, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-TOKEN", token)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("could not parse upload response: %w", err)
	}
	return parsed.URL, nil
}
