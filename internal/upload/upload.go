// Package upload delivers finished artifacts to the configured collection
// endpoint. Transient network failures are retried with exponential
// backoff; permanent rejections (4xx) are surfaced immediately. The
// scheduler itself never retries an upload.
package upload

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
)

// Metadata accompanies an artifact so the receiving side can file it.
type Metadata struct {
	StationID    string    `json:"station_id"`
	Satellite    string    `json:"satellite"`
	SessionID    string    `json:"session_id"`
	Start        time.Time `json:"start"`
	MaxElevation float64   `json:"max_elevation"`
}

// permanentErr marks failures that retrying cannot fix.
type permanentErr struct{ error }

// Client posts artifacts to a fixed URL.
type Client struct {
	url        string
	httpClient *http.Client
	log        *log.Logger
	maxRetries uint64
}

// NewClient returns an upload client for the given endpoint.
func NewClient(url string, logger *log.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        logger,
		maxRetries: 5,
	}
}

// Upload sends the artifact and its metadata as a multipart POST. It
// returns nil on 2xx, a terminal error on 4xx, and otherwise retries with
// exponential backoff until the retry budget or ctx is exhausted.
func (c *Client) Upload(ctx context.Context, artifactPath string, meta Metadata) error {
	op := func() error {
		err := c.post(ctx, artifactPath, meta)
		if err == nil {
			return nil
		}
		if pe, ok := err.(permanentErr); ok {
			return backoff.Permanent(pe.error)
		}
		c.log.Printf("upload: transient failure for %s: %v", filepath.Base(artifactPath), err)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("upload: %s: %w", filepath.Base(artifactPath), err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, artifactPath string, meta Metadata) error {
	f, err := os.Open(artifactPath)
	if err != nil {
		return permanentErr{err}
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		_ = mw.WriteField("station_id", meta.StationID)
		_ = mw.WriteField("satellite", meta.Satellite)
		_ = mw.WriteField("session_id", meta.SessionID)
		_ = mw.WriteField("start", meta.Start.UTC().Format(time.RFC3339))
		_ = mw.WriteField("max_elevation", fmt.Sprintf("%.1f", meta.MaxElevation))

		part, err := mw.CreateFormFile("artifact", filepath.Base(artifactPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		return permanentErr{err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return permanentErr{fmt.Errorf("upload rejected with HTTP %d", resp.StatusCode)}
	default:
		return fmt.Errorf("upload returned HTTP %d", resp.StatusCode)
	}
}
