// Package download fetches testimony documents into the local store.
package download

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/metrics"
	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

// Config controls the HTTP client used for document downloads.
type Config struct {
	// URLPrefix is joined with a document ID to form the download URL.
	URLPrefix  string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// Limiter paces requests; nil means unlimited.
	Limiter Limiter
}

// Limiter blocks until a request to url may proceed.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Store is the subset of the testimony directory the downloader needs.
type Store interface {
	HasPDF(id testimony.DocumentID) bool
	PutPDF(id testimony.DocumentID, r io.Reader) (string, error)
}

// Downloader implements testimony.Downloader with a resty client.
type Downloader struct {
	client  *resty.Client
	store   Store
	limiter Limiter
	prefix  string
	logger  *zap.Logger
}

// New builds a Downloader.
func New(cfg Config, store Store, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Downloader{
		client:  client,
		store:   store,
		limiter: cfg.Limiter,
		prefix:  cfg.URLPrefix,
		logger:  logger,
	}
}

// URL returns the download location of a document.
func (d *Downloader) URL(id testimony.DocumentID) string {
	return d.prefix + string(id)
}

// Download fetches one document and stores the body under its ID. Any 2xx body is kept,
// even one that is not a PDF; the prune task deals with those.
func (d *Downloader) Download(ctx context.Context, id testimony.DocumentID) (err error) {
	defer func() { metrics.ObserveDownload(err) }()

	url := d.URL(id)
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, url); err != nil {
			return fmt.Errorf("download %s: %w", url, err)
		}
	}
	d.logger.Info("downloading testimony", zap.String("id", string(id)), zap.String("url", url))
	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if !resp.IsSuccess() {
		return fmt.Errorf("download %s: %w: %d", url, testimony.ErrUnexpectedStatus, resp.StatusCode())
	}
	if _, err := d.store.PutPDF(id, body); err != nil {
		return fmt.Errorf("store %s: %w", id, err)
	}
	return nil
}

// MissingIDs filters ids down to those without a stored file. Existing files are never
// downloaded again.
func (d *Downloader) MissingIDs(ids []testimony.DocumentID) []testimony.DocumentID {
	var out []testimony.DocumentID
	for _, id := range ids {
		if !d.store.HasPDF(id) {
			out = append(out, id)
		}
	}
	return out
}
