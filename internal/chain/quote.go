// Package chain holds the quote-table data model shared by loaders, the
// arbitrage cleaner and the report writers.
//
// Design notes:
//   - A Quote is identified by its strike (Key), never by its position
//   - Tables are values; every transformation returns a new Table
//   - Malformed quotes (bid > ask, NaN) are carried as-is, not rejected here
package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSide is returned when an option side label cannot be parsed.
var ErrUnknownSide = errors.New("unknown option side")

// Side is the option right of every quote in a table.
type Side string

const (
	Call Side = "call"
	Put  Side = "put"
)

// ParseSide accepts "call", "c", "put" or "p" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSide, s)
}

func (s Side) String() string { return string(s) }

// Key is the stable identity of a quote inside a table: its strike.
type Key = float64

// Quote is one market observation for a single strike.
type Quote struct {
	Strike float64 `json:"strike" validate:"gt=0"`
	Bid    float64 `json:"bid" validate:"gte=0"`
	Ask    float64 `json:"ask" validate:"gte=0"`
	// QuotedMid is the mid as delivered by the source; zero means absent.
	QuotedMid float64 `json:"mid,omitempty" validate:"gte=0"`
}

// Key returns the identity used for removal bookkeeping.
func (q Quote) Key() Key { return q.Strike }

// Mid returns the quoted mid when present, otherwise the bid/ask midpoint.
func (q Quote) Mid() float64 {
	if q.QuotedMid != 0 {
		return q.QuotedMid
	}
	return (q.Bid + q.Ask) / 2
}
