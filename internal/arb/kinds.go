package arb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/contactkeval/chain-clean/internal/chain"
)

// Epsilon is the absolute price tolerance used by every check.
const Epsilon = 1e-10

// ButterflySpacingTolerance is the largest relative spacing mismatch
// |(K_i − K_{i-1}) − (K_{i+1} − K_i)| / K_i for which a triplet is checked.
const ButterflySpacingTolerance = 0.01

// Kind names the check that flagged a quote.
type Kind string

const (
	KindMonotonicity Kind = "monotonicity"
	KindConvexity    Kind = "convexity"
	KindButterfly    Kind = "butterfly"
	KindBounds       Kind = "bounds"
	KindDominance    Kind = "dominance"
)

// Violations groups flagged keys by the check that raised them.
type Violations map[Kind]chain.KeySet

// flag records k under kind, allocating the set on first use.
func (v Violations) flag(kind Kind, k chain.Key) {
	s, ok := v[kind]
	if !ok {
		s = chain.KeySet{}
		v[kind] = s
	}
	s.Add(k)
}

// All returns the union over every kind.
func (v Violations) All() chain.KeySet {
	out := chain.KeySet{}
	for _, s := range v {
		out = out.Union(s)
	}
	return out
}

// KindsOf lists, in name order, the kinds that flagged k.
func (v Violations) KindsOf(k chain.Key) []Kind {
	var out []Kind
	for kind, s := range v {
		if s.Has(k) {
			out = append(out, kind)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ButterflyRule selects how a butterfly's cost is built from quotes.
type ButterflyRule string

const (
	// ButterflyAuto uses the quoted cost for calls and the conservative cost
	// for puts.
	ButterflyAuto ButterflyRule = "auto"
	// ButterflyQuoted uses bid_{i-1} − 2·ask_i + bid_{i+1} > ε on both sides.
	ButterflyQuoted ButterflyRule = "quoted"
	// ButterflyConservative buys the wings at the ask and sells the body at
	// the bid: ask_{i-1} − 2·bid_i + ask_{i+1} < −ε on both sides.
	ButterflyConservative ButterflyRule = "conservative"
)

// ParseButterflyRule maps a config string to a rule; "" means auto.
func ParseButterflyRule(s string) (ButterflyRule, error) {
	switch r := ButterflyRule(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return ButterflyAuto, nil
	case ButterflyAuto, ButterflyQuoted, ButterflyConservative:
		return r, nil
	}
	return "", fmt.Errorf("unknown butterfly rule %q", s)
}

// forSide resolves auto to the concrete rule used on side.
func (r ButterflyRule) forSide(side chain.Side) ButterflyRule {
	if r == "" || r == ButterflyAuto {
		if side == chain.Put {
			return ButterflyConservative
		}
		return ButterflyQuoted
	}
	return r
}
