package arb

import (
	"github.com/contactkeval/chain-clean/internal/chain"
)

// CheckDominance flags quotes whose ask is above the ask of a strictly more
// valuable neighbour: a higher-strike call offered above the lower-strike
// call, or a lower-strike put offered above the higher-strike put. Nobody
// can lift such an offer profitably, so it carries no price information.
//
// The check is off by default; enable it with Options.Dominance.
func CheckDominance(t chain.Table, side chain.Side) chain.KeySet {
	v := Violations{}
	checkDominance(t, side, v)
	return v.All()
}

func checkDominance(t chain.Table, side chain.Side, v Violations) {
	qs := t.Sorted().Quotes
	for i := 0; i+1 < len(qs); i++ {
		lo, hi := qs[i], qs[i+1]
		if side == chain.Call {
			if lo.Ask < hi.Ask-Epsilon {
				v.flag(KindDominance, hi.Key())
			}
		} else if lo.Ask > hi.Ask+Epsilon {
			v.flag(KindDominance, lo.Key())
		}
	}
}
