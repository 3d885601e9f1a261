package data

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/pricing"
)

// SyntheticParams shapes a Black-Scholes generated chain.
type SyntheticParams struct {
	Low        float64 `yaml:"low" json:"low"`
	High       float64 `yaml:"high" json:"high"`
	Step       float64 `yaml:"step" json:"step"`
	Sigma      float64 `yaml:"sigma" json:"sigma"`
	HalfSpread float64 `yaml:"half_spread" json:"half_spread"`
	// NoiseProb is the chance that a non-ATM quote gets its price shocked
	// by a normal draw scaled by NoiseScale.
	NoiseProb  float64 `yaml:"noise_prob" json:"noise_prob"`
	NoiseScale float64 `yaml:"noise_scale" json:"noise_scale"`
	Seed       int64   `yaml:"seed" json:"seed"`
}

// DefaultSyntheticParams returns a 70..130 chain with 20% vol.
func DefaultSyntheticParams() SyntheticParams {
	return SyntheticParams{Low: 70, High: 130, Step: 5, Sigma: 0.2, HalfSpread: 0.05, Seed: 1}
}

func (p SyntheticParams) strikes() []float64 {
	if p.Step <= 0 || p.High < p.Low {
		return nil
	}
	var out []float64
	for k := p.Low; k <= p.High+p.Step/2; k += p.Step {
		out = append(out, math.Round(k*1e6)/1e6)
	}
	return out
}

// synthDataProvider implements Data Provider generating synthetic data.
type synthDataProvider struct {
	pc        pricing.Context
	params    SyntheticParams
	secondary Provider
}

func NewSyntheticProvider(pc pricing.Context, params SyntheticParams, secondary Provider) Provider {
	return &synthDataProvider{pc: pc, params: params, secondary: secondary}
}

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

func (synthDataProv *synthDataProvider) GetChain(ctx context.Context, req ChainRequest) (chain.Table, error) {
	t := GenerateChain(req.Name, req.Side, synthDataProv.pc, synthDataProv.params)
	if t.Len() == 0 {
		return chain.Table{}, fmt.Errorf("chain %q: %w", req.Name, ErrNoQuotes)
	}
	return t, nil
}

// GenerateChain prices every strike off the spot mid with Black-Scholes,
// wraps a half spread around it and shocks some non-ATM quotes. Prices are
// rounded to cents. The same params always give the same table.
func GenerateChain(name string, side chain.Side, pc pricing.Context, p SyntheticParams) chain.Table {
	rng := rand.New(rand.NewSource(p.Seed))
	strikes := p.strikes()
	spot := pc.SpotMid()

	atm, best := math.NaN(), math.Inf(1)
	for _, k := range strikes {
		if d := math.Abs(k - spot); d < best {
			atm, best = k, d
		}
	}

	cents := func(x float64) float64 { return math.Round(x*100) / 100 }

	quotes := make([]chain.Quote, 0, len(strikes))
	for _, k := range strikes {
		price := pricing.BlackScholesPrice(side == chain.Call, spot, k, pc.Maturity(), pc.Rate(), pc.DividendYield(), p.Sigma)
		if k != atm && rng.Float64() < p.NoiseProb {
			price += rng.NormFloat64() * p.NoiseScale
		}
		bid := cents(math.Max(price-p.HalfSpread, 0))
		ask := cents(math.Max(price+p.HalfSpread, bid+0.01))
		quotes = append(quotes, chain.Quote{Strike: k, Bid: bid, Ask: ask})
	}
	return chain.NewTable(name, side, quotes)
}
