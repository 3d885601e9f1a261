package arb

import (
	"math"

	"github.com/contactkeval/chain-clean/internal/chain"
)

// CheckButterfly flags the body of every approximately equally spaced
// triplet whose quoted butterfly cost bid_{i-1} − 2·ask_i + bid_{i+1}
// exceeds Epsilon. The same formula applies to calls and puts; use
// CheckButterflyRule for the side-aware variants.
func CheckButterfly(t chain.Table, side chain.Side) chain.KeySet {
	return CheckButterflyRule(t, side, ButterflyQuoted)
}

// CheckButterflyRule is CheckButterfly with an explicit cost rule.
func CheckButterflyRule(t chain.Table, side chain.Side, rule ButterflyRule) chain.KeySet {
	v := Violations{}
	checkButterfly(t, side, rule, v)
	return v.All()
}

func checkButterfly(t chain.Table, side chain.Side, rule ButterflyRule, v Violations) {
	qs := t.Sorted().Quotes
	rule = rule.forSide(side)

	for i := 1; i+1 < len(qs); i++ {
		left, body, right := qs[i-1], qs[i], qs[i+1]

		// unequal spacing is skipped, not judged
		if math.Abs((body.Strike-left.Strike)-(right.Strike-body.Strike))/body.Strike > ButterflySpacingTolerance {
			continue
		}

		switch rule {
		case ButterflyConservative:
			cost := left.Ask - 2*body.Bid + right.Ask
			if cost < -Epsilon {
				v.flag(KindButterfly, body.Key())
			}
		default:
			cost := left.Bid - 2*body.Ask + right.Bid
			if cost > Epsilon {
				v.flag(KindButterfly, body.Key())
			}
		}
	}
}
