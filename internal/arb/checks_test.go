package arb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/pricing"
	"github.com/contactkeval/chain-clean/internal/testutil"
)

type row = [3]float64

func TestSelectATM(t *testing.T) {
	pc := testutil.Flat()

	tests := []struct {
		name  string
		table chain.Table
		want  float64
	}{
		{"nearest strike", testutil.CleanCalls(), 100},
		{"single quote", testutil.Table("one", chain.Call, row{120, 1, 2}), 120},
		{"tie goes to lowest strike", testutil.Table("tie", chain.Call, row{105, 1, 2}, row{95, 6, 7}), 95},
		{
			"tie independent of input order",
			chain.Table{Name: "raw", Quotes: []chain.Quote{{Strike: 105, Ask: 1}, {Strike: 95, Ask: 1}}},
			95,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := arb.SelectATM(tt.table, pc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := arb.SelectATM(chain.Table{Name: "empty"}, pc)
	require.ErrorIs(t, err, arb.ErrEmptyTable)
}

func TestCheckVertical(t *testing.T) {
	tests := []struct {
		name  string
		side  chain.Side
		table chain.Table
		want  []float64
	}{
		{"clean calls", chain.Call, testutil.CleanCalls(), []float64{}},
		{"clean puts", chain.Put, testutil.CleanPuts(), []float64{}},
		{"call bid above lower strike ask", chain.Call, testutil.Table("m", chain.Call, row{95, 5, 5.2}, row{100, 6, 6.5}), []float64{100}},
		{"put bid above higher strike ask", chain.Put, testutil.Table("m", chain.Put, row{95, 4, 4.2}, row{100, 3, 3.5}), []float64{100}},
		{"call curve bends down", chain.Call, testutil.Table("c", chain.Call, row{90, 10, 11}, row{95, 8, 8.2}, row{100, 3.5, 4.5}), []float64{95}},
		{"straight line is convex", chain.Call, testutil.Table("c", chain.Call, row{90, 10, 11}, row{95, 8, 8.2}, row{100, 4, 5}), []float64{}},
		{"put curve bends down", chain.Put, testutil.Table("c", chain.Put, row{90, 1, 1.2}, row{95, 4, 4.5}, row{100, 5, 5.5}), []float64{95}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, arb.CheckVertical(tt.table, tt.side).Sorted())
		})
	}
}

func TestCheckVertical_LeavesInputOrder(t *testing.T) {
	raw := chain.Table{Name: "raw", Side: chain.Call, Quotes: []chain.Quote{
		{Strike: 100, Bid: 3.5, Ask: 4.5},
		{Strike: 90, Bid: 10, Ask: 11},
		{Strike: 95, Bid: 6.3, Ask: 7.3},
	}}
	assert.Empty(t, arb.CheckVertical(raw, chain.Call))
	assert.Equal(t, []float64{100, 90, 95}, raw.Strikes())
}

func TestCheckButterfly(t *testing.T) {
	assert.Equal(t, []float64{100}, arb.CheckButterfly(testutil.RichBody100(), chain.Call).Sorted())
	assert.Empty(t, arb.CheckButterfly(testutil.CleanCalls(), chain.Call))

	// the quoted formula is applied to puts unchanged
	assert.Equal(t, []float64{95, 100, 105}, arb.CheckButterfly(testutil.CleanPuts(), chain.Put).Sorted())
}

func TestCheckButterflyRule(t *testing.T) {
	puts := testutil.CleanPuts()
	assert.Empty(t, arb.CheckButterflyRule(puts, chain.Put, arb.ButterflyAuto))
	assert.Empty(t, arb.CheckButterflyRule(puts, chain.Put, arb.ButterflyConservative))
	assert.Len(t, arb.CheckButterflyRule(puts, chain.Put, arb.ButterflyQuoted), 3)

	calls := testutil.RichBody100()
	assert.Equal(t, []float64{100}, arb.CheckButterflyRule(calls, chain.Call, arb.ButterflyAuto).Sorted())
	assert.Empty(t, arb.CheckButterflyRule(calls, chain.Call, arb.ButterflyConservative))

	// wings offered far below the body bid
	cheap := testutil.Table("cheap", chain.Put, row{90, 0.5, 0.6}, row{95, 3, 3.2}, row{100, 3.5, 3.7})
	assert.Equal(t, []float64{95}, arb.CheckButterflyRule(cheap, chain.Put, arb.ButterflyConservative).Sorted())
}

func TestCheckButterfly_Spacing(t *testing.T) {
	uneven := testutil.Table("uneven", chain.Call, row{90, 12, 12.5}, row{100, 5, 5.2}, row{105, 2.8, 3})
	assert.Empty(t, arb.CheckButterfly(uneven, chain.Call))

	nearlyEven := testutil.Table("near", chain.Call, row{95, 8, 8.3}, row{100, 5, 5.2}, row{105.5, 2.8, 3})
	assert.Equal(t, []float64{100}, arb.CheckButterfly(nearlyEven, chain.Call).Sorted())
}

func TestParseButterflyRule(t *testing.T) {
	for in, want := range map[string]arb.ButterflyRule{
		"":             arb.ButterflyAuto,
		"auto":         arb.ButterflyAuto,
		" Quoted ":     arb.ButterflyQuoted,
		"CONSERVATIVE": arb.ButterflyConservative,
	} {
		got, err := arb.ParseButterflyRule(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := arb.ParseButterflyRule("ratio")
	require.Error(t, err)
}

func TestCheckBounds(t *testing.T) {
	flat := testutil.Flat()
	carry := pricing.MustContext(99.95, 100.05, 0.05, 1, 0)

	tests := []struct {
		name  string
		side  chain.Side
		pc    pricing.Context
		table chain.Table
		want  []float64
	}{
		{"clean calls", chain.Call, flat, testutil.CleanCalls(), []float64{}},
		{"clean puts", chain.Put, flat, testutil.CleanPuts(), []float64{}},
		{"call ask above spot ask", chain.Call, flat, testutil.Table("b", chain.Call, row{80, 101, 102}, row{90, 10, 11}), []float64{80}},
		{"call bid below intrinsic", chain.Call, flat, testutil.Table("b", chain.Call, row{90, 9, 11}, row{100, 3.5, 4.5}), []float64{90}},
		{"call bid below discounted intrinsic", chain.Call, carry, testutil.Table("b", chain.Call, row{90, 14, 15}, row{100, 8, 9}), []float64{90}},
		{"put ask above strike", chain.Put, flat, testutil.Table("b", chain.Put, row{90, 0.7, 90.5}, row{100, 3.5, 3.7}), []float64{90}},
		{"put bid below intrinsic", chain.Put, flat, testutil.Table("b", chain.Put, row{100, 3.5, 3.7}, row{110, 9.9, 10.6}), []float64{110}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, arb.CheckBounds(tt.table, tt.side, tt.pc).Sorted())
		})
	}
}

func TestCheckDominance(t *testing.T) {
	assert.Equal(t, []float64{105}, arb.CheckDominance(testutil.WideAsk105(), chain.Call).Sorted())
	assert.Empty(t, arb.CheckDominance(testutil.CleanCalls(), chain.Call))
	assert.Empty(t, arb.CheckDominance(testutil.CleanPuts(), chain.Put))

	puts := testutil.Table("p", chain.Put, row{95, 1.7, 4}, row{100, 3.5, 3.7})
	assert.Equal(t, []float64{95}, arb.CheckDominance(puts, chain.Put).Sorted())
}

func TestChecksTolerateMalformedQuotes(t *testing.T) {
	crossed := testutil.Table("crossed", chain.Call, row{95, 9, 8}, row{100, 6, 5}, row{105, 3, 2})
	assert.NotPanics(t, func() {
		arb.CheckVertical(crossed, chain.Call)
		arb.CheckButterfly(crossed, chain.Call)
		arb.CheckBounds(crossed, chain.Call, testutil.Flat())
		arb.CheckDominance(crossed, chain.Call)
	})
}
