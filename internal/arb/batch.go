package arb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/logger"
	"github.com/contactkeval/chain-clean/internal/pricing"
)

// TableReport summarises the run of one input table.
type TableReport struct {
	Index      int              `json:"index"`
	Name       string           `json:"name,omitempty"`
	Side       chain.Side       `json:"side"`
	Anchor     float64          `json:"anchor"`
	Initial    int              `json:"initial"`
	Final      int              `json:"final"`
	Removed    int              `json:"removed"`
	State      State            `json:"state"`
	Iterations int              `json:"iterations"`
	Kinds      []Kind           `json:"kinds,omitempty"`
	Trace      []IterationTrace `json:"trace,omitempty"`
}

// Report is the batch-level outcome. RemovedCounts and ArbitrageTypesFound
// follow input order.
type Report struct {
	RunID               string        `json:"run_id"`
	CreatedAt           time.Time     `json:"created_at"`
	RemovedCounts       []int         `json:"removed_counts"`
	ArbitrageTypesFound [][]Kind      `json:"arbitrage_types_found"`
	Tables              []TableReport `json:"tables"`

	TotalInitial int `json:"total_initial"`
	TotalFinal   int `json:"total_final"`
	TotalRemoved int `json:"total_removed"`
}

// CleanAll cleans every (table, side) pair against the shared pricing
// context pc. Tables run concurrently, bounded by opts.Workers, and results
// are collected in input order.
//
// Usage errors (length mismatch, empty table, unknown side) abort the batch.
// Anchor loss and the iteration cap do not; they surface per table in the
// report. Cancelling ctx stops tables that have not started yet.
func CleanAll(ctx context.Context, tables []chain.Table, sides []chain.Side, pc pricing.Context, opts Options) ([]chain.Table, Report, error) {
	if len(tables) != len(sides) {
		return nil, Report{}, fmt.Errorf("clean %d tables with %d sides: %w", len(tables), len(sides), ErrLengthMismatch)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	cleaner := NewCleaner(pc, opts)
	results := make([]Result, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range tables {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := cleaner.Clean(tables[i], sides[i])
			if err != nil {
				return fmt.Errorf("table %d (%s): %w", i, tables[i].Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Report{}, err
	}

	rep := Report{
		RunID:               uuid.NewString(),
		CreatedAt:           time.Now().UTC(),
		RemovedCounts:       make([]int, len(results)),
		ArbitrageTypesFound: make([][]Kind, len(results)),
		Tables:              make([]TableReport, len(results)),
	}
	cleaned := make([]chain.Table, len(results))

	for i, res := range results {
		kinds := res.Kinds()
		cleaned[i] = res.Table
		rep.RemovedCounts[i] = res.Removed
		rep.ArbitrageTypesFound[i] = kinds
		rep.Tables[i] = TableReport{
			Index:      i,
			Name:       tables[i].Name,
			Side:       sides[i],
			Anchor:     res.Anchor,
			Initial:    res.Initial,
			Final:      res.Table.Len(),
			Removed:    res.Removed,
			State:      res.State,
			Iterations: res.Iterations,
			Kinds:      kinds,
			Trace:      res.Trace,
		}
		rep.TotalInitial += res.Initial
		rep.TotalFinal += res.Table.Len()
		rep.TotalRemoved += res.Removed
	}

	logger.Infof("event=batch_done run_id=%s tables=%d initial=%d final=%d removed=%d",
		rep.RunID, len(tables), rep.TotalInitial, rep.TotalFinal, rep.TotalRemoved)

	return cleaned, rep, nil
}
