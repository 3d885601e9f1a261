package arb

import (
	"github.com/contactkeval/chain-clean/internal/chain"
)

// CheckVertical flags monotonicity and convexity violations along strikes.
//
// The table is checked on a sorted copy; the caller's table is not touched.
//
//   - Monotonicity, consecutive K_i < K_{i+1}: calls need ask(K_i) ≥ bid(K_{i+1}),
//     puts need bid(K_i) ≤ ask(K_{i+1}). The higher strike is flagged.
//   - Convexity, triplets: with calls priced (ask, bid, ask) and puts priced
//     (bid, ask, bid), the left slope may not exceed the right slope by more
//     than Epsilon. The middle strike is flagged.
//
// Returns the union of both sub-checks.
func CheckVertical(t chain.Table, side chain.Side) chain.KeySet {
	v := Violations{}
	checkVertical(t, side, v)
	return v.All()
}

func checkVertical(t chain.Table, side chain.Side, v Violations) {
	qs := t.Sorted().Quotes

	for i := 0; i+1 < len(qs); i++ {
		lo, hi := qs[i], qs[i+1]
		if side == chain.Call {
			if lo.Ask < hi.Bid {
				v.flag(KindMonotonicity, hi.Key())
			}
		} else if lo.Bid > hi.Ask {
			v.flag(KindMonotonicity, hi.Key())
		}
	}

	for i := 1; i+1 < len(qs); i++ {
		left, mid, right := qs[i-1], qs[i], qs[i+1]

		var pl, pm, pr float64
		if side == chain.Call {
			pl, pm, pr = left.Ask, mid.Bid, right.Ask
		} else {
			pl, pm, pr = left.Bid, mid.Ask, right.Bid
		}

		s1 := (pm - pl) / (mid.Strike - left.Strike)
		s2 := (pr - pm) / (right.Strike - mid.Strike)
		if s1 > s2+Epsilon {
			v.flag(KindConvexity, mid.Key())
		}
	}
}
