// Package testimony defines the core types shared across the tracker subsystems.
package testimony

import (
	"strconv"
	"time"
)

// Stance is the position a testimony takes on the bill.
type Stance string

// Stance markers as they appear on the listing page.
const (
	StanceSupport Stance = "Support"
	StanceOppose  Stance = "Oppose"
	StanceUnknown Stance = "Unknown"
)

// Stances lists every stance in display order.
var Stances = []Stance{StanceSupport, StanceOppose, StanceUnknown}

// Results holds the stance tallies read from one listing page.
type Results struct {
	Total   int `json:"all"`
	Support int `json:"support"`
	Oppose  int `json:"oppose"`
	Unknown int `json:"unknown"`
}

// Count returns the tally for a single stance.
func (r Results) Count(s Stance) int {
	switch s {
	case StanceSupport:
		return r.Support
	case StanceOppose:
		return r.Oppose
	case StanceUnknown:
		return r.Unknown
	default:
		return 0
	}
}

// Snapshot is the state served to readers. It is replaced wholesale, never mutated.
type Snapshot struct {
	Results      Results   `json:"results"`
	UpdatedAt    time.Time `json:"updated_at"`
	MissingCount int       `json:"missing_count"`
	// MissingEnabled reports whether a comparison bill is configured.
	MissingEnabled bool `json:"missing_enabled"`
}

// DocumentID is the numeric identifier of a PublicTestimonyDocument.
type DocumentID string

// Int returns the numeric value of the ID, or -1 when it is not numeric.
func (id DocumentID) Int() int64 {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// Less orders IDs numerically, falling back to lexical order for malformed IDs.
func (id DocumentID) Less(other DocumentID) bool {
	a, b := id.Int(), other.Int()
	if a < 0 || b < 0 || a == b {
		return id < other
	}
	return a < b
}

// Page is a fetched HTML document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
