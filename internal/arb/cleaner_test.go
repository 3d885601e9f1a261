package arb_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/pricing"
	"github.com/contactkeval/chain-clean/internal/testutil"
)

func clean(t *testing.T, tbl chain.Table, side chain.Side, pc pricing.Context, opts arb.Options) arb.Result {
	t.Helper()
	res, err := arb.NewCleaner(pc, opts).Clean(tbl, side)
	require.NoError(t, err)
	return res
}

func TestClean_WideAsk105(t *testing.T) {
	res := clean(t, testutil.WideAsk105(), chain.Call, testutil.Flat(), arb.DefaultOptions())

	assert.Equal(t, arb.StateClean, res.State)
	assert.Equal(t, 100.0, res.Anchor)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, []float64{90, 100, 105, 110}, res.Table.Strikes())
	assert.Equal(t, []arb.Kind{arb.KindButterfly}, res.Kinds())

	require.Len(t, res.Trace, 2)
	assert.Equal(t, []float64{95, 100}, res.Trace[0].Flagged[arb.KindButterfly])
	assert.Equal(t, []float64{95}, res.Trace[0].Removed)
	assert.Empty(t, res.Trace[1].Removed)
}

func TestClean_WideAsk105WithDominance(t *testing.T) {
	opts := arb.DefaultOptions()
	opts.Dominance = true
	res := clean(t, testutil.WideAsk105(), chain.Call, testutil.Flat(), opts)

	assert.Equal(t, arb.StateClean, res.State)
	assert.LessOrEqual(t, res.Iterations, 2)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, []float64{90, 100, 110}, res.Table.Strikes())
	assert.Equal(t, []arb.Kind{arb.KindButterfly, arb.KindDominance}, res.Kinds())
	assert.Equal(t, []float64{105}, res.Trace[0].Flagged[arb.KindDominance])

	// 100 is still a butterfly body on the thinned chain but it is the anchor
	assert.Equal(t, []float64{100}, res.Trace[1].Flagged[arb.KindButterfly])
}

func TestClean_SingleQuote(t *testing.T) {
	one := testutil.Table("one", chain.Call, row{100, 3.5, 4.5})
	res := clean(t, one, chain.Call, testutil.Flat(), arb.DefaultOptions())

	assert.Equal(t, arb.StateClean, res.State)
	assert.Equal(t, 1, res.Iterations)
	assert.Zero(t, res.Removed)
	assert.Equal(t, one.Quotes, res.Table.Quotes)
}

func TestClean_BoundsOnlyViolation(t *testing.T) {
	tests := []struct {
		name  string
		table chain.Table
		bad   float64
	}{
		{
			"deep strike above spot",
			chain.NewTable("c", chain.Call, append(testutil.CleanCalls().Quotes, chain.Quote{Strike: 80, Bid: 101, Ask: 102})),
			80,
		},
		{
			"interior bid below intrinsic",
			testutil.Table("c", chain.Call, row{90, 10, 11}, row{95, 4.9, 7.3}, row{100, 3.5, 4.5}, row{105, 1.6, 2.6}, row{110, 0.5, 1.5}),
			95,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := clean(t, tt.table, chain.Call, testutil.Flat(), arb.DefaultOptions())

			assert.Equal(t, arb.StateClean, res.State)
			assert.Equal(t, 1, res.Removed)
			assert.False(t, res.Table.Has(tt.bad))
			assert.Equal(t, map[arb.Kind][]float64{arb.KindBounds: {tt.bad}}, res.Trace[0].Flagged)
			assert.Equal(t, []float64{tt.bad}, res.Trace[0].Removed)
		})
	}
}

func TestClean_RichBody(t *testing.T) {
	t.Run("anchor survives", func(t *testing.T) {
		res := clean(t, testutil.RichBody100(), chain.Call, testutil.Flat(), arb.DefaultOptions())
		assert.Equal(t, arb.StateClean, res.State)
		assert.Equal(t, 1, res.Iterations)
		assert.Zero(t, res.Removed)
		assert.Equal(t, []float64{100}, res.Trace[0].Flagged[arb.KindButterfly])
	})

	t.Run("body removed off anchor", func(t *testing.T) {
		pc := pricing.MustContext(94.95, 95.05, 0, 1, 0)
		res := clean(t, testutil.RichBody100(), chain.Call, pc, arb.DefaultOptions())
		assert.Equal(t, arb.StateClean, res.State)
		assert.Equal(t, 95.0, res.Anchor)
		assert.Equal(t, 1, res.Removed)
		assert.Equal(t, []float64{95, 105}, res.Table.Strikes())
	})
}

func TestCleanAround_AnchorLost(t *testing.T) {
	in := testutil.WideAsk105()
	res, err := arb.NewCleaner(testutil.Flat(), arb.DefaultOptions()).CleanAround(in, chain.Call, 102.5)
	require.NoError(t, err)

	assert.Equal(t, arb.StateAnchorLost, res.State)
	assert.Equal(t, 1, res.Iterations)
	assert.Zero(t, res.Removed)
	assert.Equal(t, in.Quotes, res.Table.Quotes, "previous table is returned")
	assert.Empty(t, res.Kinds())
	require.Len(t, res.Trace, 1)
	assert.Empty(t, res.Trace[0].Removed, "the abandoned pass removes nothing")
	assert.NotEmpty(t, res.Trace[0].Flagged)
}

func TestCleanAround_ParsesSide(t *testing.T) {
	c := arb.NewCleaner(testutil.Flat(), arb.DefaultOptions())

	_, err := c.CleanAround(testutil.CleanCalls(), chain.Side("straddle"), 100)
	require.ErrorIs(t, err, chain.ErrUnknownSide)

	short, err := c.CleanAround(testutil.WideAsk105(), chain.Side("C"), 100)
	require.NoError(t, err)
	full, err := c.CleanAround(testutil.WideAsk105(), chain.Call, 100)
	require.NoError(t, err)
	assert.Equal(t, full.Table, short.Table)
	assert.Equal(t, full.State, short.State)
}

func TestClean_IterationCap(t *testing.T) {
	opts := arb.DefaultOptions()
	opts.MaxIter = 1
	res := clean(t, testutil.WideAsk105(), chain.Call, testutil.Flat(), opts)

	assert.Equal(t, arb.StateIterExhausted, res.State)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, []float64{90, 100, 105, 110}, res.Table.Strikes())
}

func TestClean_UsageErrors(t *testing.T) {
	c := arb.NewCleaner(testutil.Flat(), arb.Options{})

	_, err := c.Clean(chain.Table{Name: "empty"}, chain.Call)
	require.ErrorIs(t, err, arb.ErrEmptyTable)

	_, err = c.Clean(testutil.CleanCalls(), chain.Side("straddle"))
	require.ErrorIs(t, err, chain.ErrUnknownSide)
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	in := chain.Table{Name: "raw", Side: chain.Call, Quotes: []chain.Quote{
		{Strike: 110, Bid: 1, Ask: 1.3},
		{Strike: 90, Bid: 12, Ask: 12.5},
		{Strike: 105, Bid: 2.8, Ask: 10},
		{Strike: 95, Bid: 8, Ask: 8.3},
		{Strike: 100, Bid: 5, Ask: 5.2},
	}}
	before := in.Clone()

	res := clean(t, in, chain.Call, testutil.Flat(), arb.DefaultOptions())
	assert.Equal(t, before, in)
	assert.Equal(t, 1, res.Removed)
}

type recorder struct {
	mu    sync.Mutex
	calls []arb.State
}

func (r *recorder) ObserveResult(side chain.Side, res arb.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, res.State)
}

func TestClean_NotifiesObserver(t *testing.T) {
	rec := &recorder{}
	opts := arb.DefaultOptions()
	opts.Observer = rec

	clean(t, testutil.CleanCalls(), chain.Call, testutil.Flat(), opts)
	assert.Equal(t, []arb.State{arb.StateClean}, rec.calls)
}

// TestClean_Properties runs noisy Black-Scholes chains through the cleaner
// and checks the post-conditions every clean table must meet.
func TestClean_Properties(t *testing.T) {
	pc := pricing.MustContext(99.95, 100.05, 0.02, 0.5, 0.01)
	opts := arb.DefaultOptions()
	c := arb.NewCleaner(pc, opts)

	removed := 0
	for seed := int64(1); seed <= 40; seed++ {
		for _, side := range []chain.Side{chain.Call, chain.Put} {
			t.Run(fmt.Sprintf("%s/%d", side, seed), func(t *testing.T) {
				in := testutil.NoisyChain(seed, side, pc)
				atm, err := arb.SelectATM(in, pc)
				require.NoError(t, err)
				atmQuote, _ := in.Lookup(atm)

				res, err := c.Clean(in, side)
				require.NoError(t, err)
				removed += res.Removed

				assert.LessOrEqual(t, res.Iterations, opts.MaxIter)
				assert.NotEqual(t, arb.StateAnchorLost, res.State)

				got, ok := res.Table.Lookup(atm)
				require.True(t, ok, "anchor must survive")
				assert.Equal(t, atmQuote, got)

				if res.State != arb.StateClean {
					return
				}

				qs := res.Table.Quotes
				for i := 0; i+1 < len(qs); i++ {
					lo, hi := qs[i], qs[i+1]
					if hi.Strike == atm {
						continue
					}
					if side == chain.Call {
						assert.GreaterOrEqual(t, lo.Ask, hi.Bid-arb.Epsilon, "monotonic at %g", hi.Strike)
					} else {
						assert.LessOrEqual(t, lo.Bid, hi.Ask+arb.Epsilon, "monotonic at %g", hi.Strike)
					}
				}
				for _, q := range qs {
					if q.Strike == atm {
						continue
					}
					lower, upper := pc.CallBounds(q.Strike)
					if side == chain.Put {
						lower, upper = pc.PutBounds(q.Strike)
					}
					assert.GreaterOrEqual(t, q.Bid, lower-arb.Epsilon, "lower bound at %g", q.Strike)
					assert.LessOrEqual(t, q.Ask, upper+arb.Epsilon, "upper bound at %g", q.Strike)
				}

				again, err := c.Clean(res.Table, side)
				require.NoError(t, err)
				assert.Equal(t, arb.StateClean, again.State)
				assert.Zero(t, again.Removed)
				assert.Equal(t, res.Table, again.Table)
			})
		}
	}
	assert.Positive(t, removed, "noise should trip at least one check")
}
