package testimony

import (
	"context"
	"errors"
	"time"
)

// ErrUnexpectedStatus is returned when a remote server answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Fetcher retrieves an HTML page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Downloader stores the testimony document with the given ID.
type Downloader interface {
	Download(ctx context.Context, id DocumentID) error
}

// Merger concatenates PDFs into a single output file.
type Merger interface {
	Merge(ctx context.Context, inputs []string, output string) error
}

// TextExtractor converts one PDF into a plain-text file.
type TextExtractor interface {
	Extract(ctx context.Context, pdfPath string, txtPath string) error
}

// Publisher pushes tally-change events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// ResultsChanged is published whenever the testimony total moves.
type ResultsChanged struct {
	Bill     string    `json:"bill"`
	Results  Results   `json:"results"`
	Previous *Results  `json:"previous,omitempty"`
	At       time.Time `json:"at"`
}
