package arb

import (
	"fmt"
	"math"

	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/pricing"
)

// SelectATM returns the strike closest to the spot midpoint.
//
// Ties are broken towards the lowest strike: the table is scanned in
// ascending strike order and a later strike only wins when it is strictly
// closer. A NaN strike never wins against a finite one.
//
// Returns:
//   - float64: the anchor strike
//   - error: ErrEmptyTable when the table has no quotes
func SelectATM(t chain.Table, pc pricing.Context) (float64, error) {
	if t.Len() == 0 {
		return 0, fmt.Errorf("select atm for %q: %w", t.Name, ErrEmptyTable)
	}

	mid := pc.SpotMid()
	best, bestDist := math.NaN(), math.NaN()
	for _, q := range t.Sorted().Quotes {
		d := math.Abs(q.Strike - mid)
		if math.IsNaN(bestDist) || d < bestDist {
			best, bestDist = q.Strike, d
		}
	}
	return best, nil
}
