package arb_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/pricing"
	"github.com/contactkeval/chain-clean/internal/testutil"
)

func TestCleanAll(t *testing.T) {
	tables := []chain.Table{testutil.WideAsk105(), testutil.CleanPuts(), testutil.RichBody100()}
	sides := []chain.Side{chain.Call, chain.Put, chain.Call}
	opts := arb.DefaultOptions()
	opts.Workers = 3

	cleaned, rep, err := arb.CleanAll(context.Background(), tables, sides, testutil.Flat(), opts)
	require.NoError(t, err)

	require.Len(t, cleaned, 3)
	assert.Equal(t, []float64{90, 100, 105, 110}, cleaned[0].Strikes())
	assert.Equal(t, tables[1].Strikes(), cleaned[1].Strikes())

	assert.Equal(t, []int{1, 0, 0}, rep.RemovedCounts)
	assert.Equal(t, [][]arb.Kind{{arb.KindButterfly}, {}, {}}, rep.ArbitrageTypesFound)
	assert.Equal(t, 13, rep.TotalInitial)
	assert.Equal(t, 12, rep.TotalFinal)
	assert.Equal(t, 1, rep.TotalRemoved)

	_, err = uuid.Parse(rep.RunID)
	assert.NoError(t, err)
	assert.False(t, rep.CreatedAt.IsZero())

	require.Len(t, rep.Tables, 3)
	for i, tr := range rep.Tables {
		assert.Equal(t, i, tr.Index)
		assert.Equal(t, tables[i].Name, tr.Name)
		assert.Equal(t, sides[i], tr.Side)
		assert.Equal(t, arb.StateClean, tr.State)
	}
}

func TestCleanAll_UsageErrors(t *testing.T) {
	ctx := context.Background()
	pc := testutil.Flat()

	_, _, err := arb.CleanAll(ctx, []chain.Table{testutil.CleanCalls()}, nil, pc, arb.DefaultOptions())
	require.ErrorIs(t, err, arb.ErrLengthMismatch)

	_, _, err = arb.CleanAll(ctx,
		[]chain.Table{testutil.CleanCalls(), {Name: "empty"}},
		[]chain.Side{chain.Call, chain.Put},
		pc, arb.DefaultOptions())
	require.ErrorIs(t, err, arb.ErrEmptyTable)

	_, _, err = arb.CleanAll(ctx, []chain.Table{testutil.CleanCalls()}, []chain.Side{"fly"}, pc, arb.DefaultOptions())
	require.ErrorIs(t, err, chain.ErrUnknownSide)
}

func TestCleanAll_NonFatalStatesDoNotAbort(t *testing.T) {
	opts := arb.DefaultOptions()
	opts.MaxIter = 1

	_, rep, err := arb.CleanAll(context.Background(),
		[]chain.Table{testutil.WideAsk105(), testutil.CleanCalls()},
		[]chain.Side{chain.Call, chain.Call},
		testutil.Flat(), opts)
	require.NoError(t, err)
	assert.Equal(t, arb.StateIterExhausted, rep.Tables[0].State)
	assert.Equal(t, arb.StateClean, rep.Tables[1].State)
}

func TestCleanAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := arb.CleanAll(ctx, []chain.Table{testutil.CleanCalls()}, []chain.Side{chain.Call}, testutil.Flat(), arb.DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestCleanAll_WorkerCountDoesNotChangeResults(t *testing.T) {
	pc := pricing.MustContext(99.95, 100.05, 0.02, 0.5, 0.01)

	var tables []chain.Table
	var sides []chain.Side
	for seed := int64(1); seed <= 24; seed++ {
		side := chain.Call
		if seed%2 == 0 {
			side = chain.Put
		}
		tables = append(tables, testutil.NoisyChain(seed, side, pc))
		sides = append(sides, side)
	}

	serial := arb.DefaultOptions()
	parallel := arb.DefaultOptions()
	parallel.Workers = 8

	a, repA, err := arb.CleanAll(context.Background(), tables, sides, pc, serial)
	require.NoError(t, err)
	b, repB, err := arb.CleanAll(context.Background(), tables, sides, pc, parallel)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, repA.RemovedCounts, repB.RemovedCounts)
	assert.Equal(t, repA.ArbitrageTypesFound, repB.ArbitrageTypesFound)
	assert.NotEqual(t, repA.RunID, repB.RunID)
}
