package arb

import (
	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/pricing"
)

// CheckBounds flags quotes outside the model-free price bounds:
//
//	calls: max(Sb·df_q − K·df_r, 0) ≤ C ≤ Sa
//	puts:  max(K·df_r − Sa·df_q, 0) ≤ P ≤ K·df_r
//
// A quote is flagged when bid < lower − ε or ask > upper + ε. Each quote is
// judged on its own, independent of its neighbours.
func CheckBounds(t chain.Table, side chain.Side, pc pricing.Context) chain.KeySet {
	v := Violations{}
	checkBounds(t, side, pc, v)
	return v.All()
}

func checkBounds(t chain.Table, side chain.Side, pc pricing.Context, v Violations) {
	for _, q := range t.Quotes {
		var lower, upper float64
		if side == chain.Call {
			lower, upper = pc.CallBounds(q.Strike)
		} else {
			lower, upper = pc.PutBounds(q.Strike)
		}
		if q.Bid < lower-Epsilon || q.Ask > upper+Epsilon {
			v.flag(KindBounds, q.Key())
		}
	}
}
