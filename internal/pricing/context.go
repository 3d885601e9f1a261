// Package pricing holds the market inputs every no-arbitrage check reads:
// spot bid/ask, rates, maturity and the discount factors derived from them.
//
// A Context is immutable once built and safe to share across goroutines.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidContext is returned when pricing inputs cannot describe a market.
var ErrInvalidContext = errors.New("invalid pricing context")

// Context carries spot and discounting inputs for one batch.
type Context struct {
	spotBid float64
	spotAsk float64
	rate    float64
	tau     float64
	divYld  float64
	dfR     float64
	dfQ     float64
}

// NewContext builds a pricing context.
//
// Parameters:
//   - spotBid, spotAsk: underlying quote
//   - r: continuously compounded risk-free rate
//   - T: time to maturity in years
//   - q: continuous dividend yield
//
// Returns:
//   - Context with df_r = e^{-rT} and df_q = e^{-qT} precomputed
//   - error when an input is NaN/Inf, T is negative or spotBid > spotAsk
func NewContext(spotBid, spotAsk, r, T, q float64) (Context, error) {
	for _, v := range []float64{spotBid, spotAsk, r, T, q} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Context{}, fmt.Errorf("%w: non-finite input", ErrInvalidContext)
		}
	}
	if T < 0 {
		return Context{}, fmt.Errorf("%w: negative maturity %g", ErrInvalidContext, T)
	}
	if spotBid > spotAsk {
		return Context{}, fmt.Errorf("%w: spot bid %g above ask %g", ErrInvalidContext, spotBid, spotAsk)
	}
	return Context{
		spotBid: spotBid,
		spotAsk: spotAsk,
		rate:    r,
		tau:     T,
		divYld:  q,
		dfR:     math.Exp(-r * T),
		dfQ:     math.Exp(-q * T),
	}, nil
}

// MustContext is NewContext for fixed inputs known to be valid.
func MustContext(spotBid, spotAsk, r, T, q float64) Context {
	pc, err := NewContext(spotBid, spotAsk, r, T, q)
	if err != nil {
		panic(err)
	}
	return pc
}

func (c Context) SpotBid() float64 { return c.spotBid }
func (c Context) SpotAsk() float64 { return c.spotAsk }
func (c Context) Rate() float64 { return c.rate }
func (c Context) Maturity() float64 { return c.tau }
func (c Context) DividendYield() float64 { return c.divYld }

// SpotMid is the midpoint of the spot quote.
func (c Context) SpotMid() float64 { return (c.spotBid + c.spotAsk) / 2 }

// DiscountRate returns e^{-rT}.
func (c Context) DiscountRate() float64 { return c.dfR }

// DiscountDividend returns e^{-qT}.
func (c Context) DiscountDividend() float64 { return c.dfQ }

// CallBounds returns the model-free price range of a call struck at k:
// max(Sb·df_q − K·df_r, 0) ≤ C ≤ Sa.
func (c Context) CallBounds(k float64) (lower, upper float64) {
	lower = math.Max(c.spotBid*c.dfQ-k*c.dfR, 0)
	return lower, c.spotAsk
}

// PutBounds returns the model-free price range of a put struck at k:
// max(K·df_r − Sa·df_q, 0) ≤ P ≤ K·df_r.
func (c Context) PutBounds(k float64) (lower, upper float64) {
	upper = k * c.dfR
	lower = math.Max(upper-c.spotAsk*c.dfQ, 0)
	return lower, upper
}
