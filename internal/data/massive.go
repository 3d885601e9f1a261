// This file contains the Massive-backed Provider. It pulls the option chain
// snapshot of an underlying through the Massive SDK, keeps the contracts of
// one side at the listed expiry closest to the request, and turns their last
// quotes into a table.
//
// Design notes:
//   - Requests are paced by a token bucket so batch runs stay under the plan's
//     per-minute cap
//   - The SDK sits behind snapshotLister so tests can feed canned snapshots

package data

import (
	"context"
	"fmt"
	"time"

	massive "github.com/massive-com/client-go/v2/rest"
	"github.com/massive-com/client-go/v2/rest/models"
	"golang.org/x/time/rate"

	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/logger"
)

// defaultRequestsPerSecond matches the free plan (5 requests per minute).
const defaultRequestsPerSecond = 5.0 / 60

// snapshotQuote is the slice of a contract snapshot the cleaner needs.
type snapshotQuote struct {
	Strike float64
	Expiry time.Time
	Bid    float64
	Ask    float64
}

type snapshotLister interface {
	listChain(ctx context.Context, underlying string, side chain.Side) ([]snapshotQuote, error)
}

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	lister    snapshotLister
	limiter   *rate.Limiter
	secondary Provider
}

// NewMassiveDataProvider constructs a Massive-backed chain provider.
//
// Parameters:
//   - apiKey: Massive API key for authentication
//   - rps: request budget per second; zero or less uses the free-plan pace
//   - secondary: optional fallback provider
func NewMassiveDataProvider(apiKey string, rps float64, secondary Provider) Provider {
	logger.Infof("event=provider_init provider=massive")
	return newMassiveDataProvider(sdkLister{client: massive.New(apiKey)}, rps, secondary)
}

func newMassiveDataProvider(l snapshotLister, rps float64, secondary Provider) *massiveDataProvider {
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	return &massiveDataProvider{
		lister:    l,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		secondary: secondary,
	}
}

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetChain returns the req.Side quotes of req.Underlying at the listed
// expiry nearest req.Expiry. Contracts with no offer (ask <= 0) or a
// negative bid are dropped; a zero bid is a valid far out-of-the-money quote.
func (massiveDataProv *massiveDataProvider) GetChain(ctx context.Context, req ChainRequest) (chain.Table, error) {
	if req.Underlying == "" {
		return chain.Table{}, fmt.Errorf("chain %q: massive source needs an underlying", req.Name)
	}
	if err := massiveDataProv.limiter.Wait(ctx); err != nil {
		return chain.Table{}, err
	}

	logger.Debugf("event=snapshot_request chain=%s underlying=%s side=%s expiry=%s",
		req.Name, req.Underlying, req.Side, req.Expiry.Format("2006-01-02"))

	snaps, err := massiveDataProv.lister.listChain(ctx, req.Underlying, req.Side)
	if err != nil {
		return chain.Table{}, fmt.Errorf("massive snapshot %s: %w", req.Underlying, err)
	}

	seen := map[time.Time]struct{}{}
	var expiries []time.Time
	for _, s := range snaps {
		if _, ok := seen[s.Expiry]; !ok {
			seen[s.Expiry] = struct{}{}
			expiries = append(expiries, s.Expiry)
		}
	}
	expiry := MatchDate(req.Expiry, expiries, MatchNearest)
	if expiry.IsZero() {
		return chain.Table{}, fmt.Errorf("chain %q: %w", req.Name, ErrNoQuotes)
	}
	if !expiry.Equal(req.Expiry) {
		logger.Infof("event=expiry_snapped chain=%s requested=%s listed=%s",
			req.Name, req.Expiry.Format("2006-01-02"), expiry.Format("2006-01-02"))
	}

	var quotes []chain.Quote
	for _, s := range snaps {
		if !s.Expiry.Equal(expiry) || s.Bid < 0 || s.Ask <= 0 {
			continue
		}
		quotes = append(quotes, chain.Quote{Strike: s.Strike, Bid: s.Bid, Ask: s.Ask})
	}
	if len(quotes) == 0 {
		return chain.Table{}, fmt.Errorf("chain %q: %w", req.Name, ErrNoQuotes)
	}
	if err := validateQuotes(quotes); err != nil {
		return chain.Table{}, fmt.Errorf("chain %q: %w", req.Name, err)
	}

	logger.Tracef("event=snapshot_loaded chain=%s contracts=%d kept=%d", req.Name, len(snaps), len(quotes))
	return chain.NewTable(req.Name, req.Side, quotes), nil
}

// sdkLister reads the chain snapshot through the Massive REST client. The
// SDK iterator follows next_url pagination itself.
type sdkLister struct {
	client *massive.Client
}

func (l sdkLister) listChain(ctx context.Context, underlying string, side chain.Side) ([]snapshotQuote, error) {
	params := models.ListOptionsChainParams{UnderlyingAsset: underlying}.
		WithContractType(models.ContractType(side)).
		WithLimit(250)

	iter := l.client.ListOptionsChainSnapshot(ctx, params)

	var out []snapshotQuote
	for iter.Next() {
		snap := iter.Item()
		out = append(out, snapshotQuote{
			Strike: snap.Details.StrikePrice,
			Expiry: time.Time(snap.Details.ExpirationDate),
			Bid:    snap.LastQuote.Bid,
			Ask:    snap.LastQuote.Ask,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
