// Package data loads quote tables from files, live snapshots or a synthetic
// generator.
//
// Every provider may carry a secondary provider. FetchChain walks the chain
// primary -> secondary -> ... and returns the first table that loads.
package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/logger"
	"github.com/contactkeval/chain-clean/internal/pricing"
)

var (
	ErrUnknownSource = errors.New("unknown chain source")
	ErrNoQuotes      = errors.New("no quotes loaded")
)

// Source names accepted by NewProvider.
const (
	SourceCSV       = "csv"
	SourceXLSX      = "xlsx"
	SourceMassive   = "massive"
	SourceSynthetic = "synthetic"
)

type DateMatchType string

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // next available date after target
	MatchLower   DateMatchType = "lower"   // last available date before target
	MatchNearest DateMatchType = "nearest" // closest available date (default)
)

// Provider supplies one quote table per request.
type Provider interface {
	Secondary() Provider
	GetChain(ctx context.Context, req ChainRequest) (chain.Table, error)
}

// ChainRequest describes one table to load. Which fields matter depends on
// the provider: files use Path (and Sheet), live sources use Underlying and
// Expiry.
type ChainRequest struct {
	Name       string
	Side       chain.Side
	Path       string
	Sheet      string
	Underlying string
	Expiry     time.Time
}

// Options carries what the concrete providers need at construction.
type Options struct {
	Dir               string
	MassiveAPIKey     string
	RequestsPerSecond float64
	Pricing           pricing.Context
	Synthetic         SyntheticParams
}

// NewProvider builds the provider named by source with an optional
// secondary.
func NewProvider(source string, opts Options, secondary Provider) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceCSV, "":
		return NewLocalCSVProvider(opts.Dir, secondary), nil
	case SourceXLSX:
		return NewLocalXLSXProvider(opts.Dir, secondary), nil
	case SourceMassive:
		return NewMassiveDataProvider(opts.MassiveAPIKey, opts.RequestsPerSecond, secondary), nil
	case SourceSynthetic:
		return NewSyntheticProvider(opts.Pricing, opts.Synthetic, secondary), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
}

// FetchChain asks p for req and falls back along the secondary chain when a
// provider fails.
func FetchChain(ctx context.Context, p Provider, req ChainRequest) (chain.Table, error) {
	var errs []error
	for cur := p; cur != nil; cur = cur.Secondary() {
		t, err := cur.GetChain(ctx, req)
		if err == nil {
			return t, nil
		}
		if ctx.Err() != nil {
			return chain.Table{}, ctx.Err()
		}
		logger.Warnf("event=chain_fetch_failed chain=%s provider=%T err=%v", req.Name, cur, err)
		errs = append(errs, err)
	}
	return chain.Table{}, fmt.Errorf("fetch chain %q: %w", req.Name, errors.Join(errs...))
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateQuotes rejects rows that cannot be keyed or priced at all. Quotes
// with bid > ask pass: the cleaner handles those.
func validateQuotes(quotes []chain.Quote) error {
	for i, q := range quotes {
		if err := validate.Struct(q); err != nil {
			return fmt.Errorf("quote %d (strike %g): %w", i, q.Strike, err)
		}
	}
	return nil
}

// MatchDate picks the date in dates matching d under mode. A zero time means
// nothing matched.
func MatchDate(d time.Time, dates []time.Time, mode DateMatchType) time.Time {

	// Search useful info
	var (
		exact  time.Time
		lower  time.Time
		higher time.Time
	)

	// default to MatchNearest
	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
		// ok
	default:
		mode = MatchNearest
	}

	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for _, dt := range sorted {
		if dt.Equal(d) {
			exact = dt
		}
		if dt.Before(d) {
			lower = dt // will keep last ≤ d
		}
		if dt.After(d) && higher.IsZero() {
			higher = dt
		}
	}

	switch mode {

	case MatchExact:
		return exact // may be zero → caller skips it

	case MatchLower:
		return lower

	case MatchHigher:
		return higher

	case MatchNearest:
		if !exact.IsZero() {
			return exact
		}
		switch {
		case !lower.IsZero() && !higher.IsZero():
			if d.Sub(lower) <= higher.Sub(d) {
				return lower
			}
			return higher
		case !lower.IsZero():
			return lower
		case !higher.IsZero():
			return higher
		}
	}

	return time.Time{}
}
