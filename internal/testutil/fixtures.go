package testutil

import (
	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/data"
	"github.com/contactkeval/chain-clean/internal/pricing"
)

// Flat is a zero-rate, zero-carry context with spot quoted 99.95 / 100.05.
func Flat() pricing.Context {
	return pricing.MustContext(99.95, 100.05, 0, 1, 0)
}

// Table builds a table from strike, bid, ask triples.
func Table(name string, side chain.Side, rows ...[3]float64) chain.Table {
	quotes := make([]chain.Quote, len(rows))
	for i, r := range rows {
		quotes[i] = chain.Quote{Strike: r[0], Bid: r[1], Ask: r[2]}
	}
	return chain.NewTable(name, side, quotes)
}

// CleanCalls is arbitrage-free against Flat under every rule and check.
func CleanCalls() chain.Table {
	return Table("clean-calls", chain.Call,
		[3]float64{90, 10, 11},
		[3]float64{95, 6.3, 7.3},
		[3]float64{100, 3.5, 4.5},
		[3]float64{105, 1.6, 2.6},
		[3]float64{110, 0.5, 1.5},
	)
}

// CleanPuts is arbitrage-free against Flat with the conservative butterfly
// rule; the quoted rule flags all three bodies.
func CleanPuts() chain.Table {
	return Table("clean-puts", chain.Put,
		[3]float64{90, 0.7, 0.9},
		[3]float64{95, 1.7, 1.9},
		[3]float64{100, 3.5, 3.7},
		[3]float64{105, 6.5, 6.7},
		[3]float64{110, 10.4, 10.6},
	)
}

// WideAsk105 is a call chain whose 105 offer sits far above its neighbours.
func WideAsk105() chain.Table {
	return Table("wide-ask-105", chain.Call,
		[3]float64{90, 12, 12.5},
		[3]float64{95, 8, 8.3},
		[3]float64{100, 5, 5.2},
		[3]float64{105, 2.8, 10},
		[3]float64{110, 1, 1.3},
	)
}

// RichBody100 is an equally spaced call triplet with a positive quoted
// butterfly cost at 100 and nothing else wrong.
func RichBody100() chain.Table {
	return Table("rich-body-100", chain.Call,
		[3]float64{95, 8, 8.3},
		[3]float64{100, 5, 5.2},
		[3]float64{105, 2.8, 3.0},
	)
}

// NoisyChain is a Black-Scholes chain around spot 100 where roughly a third
// of the non-ATM quotes are shocked.
func NoisyChain(seed int64, side chain.Side, pc pricing.Context) chain.Table {
	p := data.DefaultSyntheticParams()
	p.Sigma = 0.25
	p.NoiseProb = 0.35
	p.NoiseScale = 1.5
	p.Seed = seed
	return data.GenerateChain("noisy", side, pc, p)
}
