package arb

import (
	"fmt"

	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/logger"
	"github.com/contactkeval/chain-clean/internal/pricing"
)

// DefaultMaxIter bounds the detect/remove loop of a single table.
const DefaultMaxIter = 20

// State is the cleaner's position in its run.
type State string

const (
	StateRunning       State = "RUNNING"
	StateClean         State = "CLEAN"
	StateAnchorLost    State = "ANCHOR_LOST"
	StateIterExhausted State = "ITER_EXHAUSTED"
)

// Options tunes a cleaning run. The zero value is usable.
type Options struct {
	MaxIter   int           `json:"max_iter,omitempty" yaml:"max_iter"`
	Butterfly ButterflyRule `json:"butterfly,omitempty" yaml:"butterfly"`
	Dominance bool          `json:"dominance,omitempty" yaml:"dominance"`
	Workers   int           `json:"workers,omitempty" yaml:"workers"`

	// Observer, when set, receives every finished table run.
	Observer Observer `json:"-" yaml:"-"`
}

// Observer is notified after each table finishes cleaning.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveResult(side chain.Side, res Result)
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{MaxIter: DefaultMaxIter, Butterfly: ButterflyAuto, Workers: 1}
}

func (o Options) maxIter() int {
	if o.MaxIter <= 0 {
		return DefaultMaxIter
	}
	return o.MaxIter
}

// IterationTrace records one detect/remove pass.
type IterationTrace struct {
	Iteration int                `json:"iteration"`
	Flagged   map[Kind][]float64 `json:"flagged,omitempty"`
	Removed   []float64          `json:"removed,omitempty"`
}

// Result is the outcome of cleaning one table.
type Result struct {
	Table      chain.Table      `json:"table"`
	Anchor     float64          `json:"anchor"`
	Initial    int              `json:"initial"`
	Removed    int              `json:"removed"`
	State      State            `json:"state"`
	Iterations int              `json:"iterations"`
	RemovedBy  map[Kind]int     `json:"removed_by,omitempty"`
	Trace      []IterationTrace `json:"trace"`
}

// Kinds lists, in name order, the checks that caused at least one removal.
func (r Result) Kinds() []Kind {
	out := make([]Kind, 0, len(r.RemovedBy))
	for _, k := range []Kind{KindBounds, KindButterfly, KindConvexity, KindDominance, KindMonotonicity} {
		if r.RemovedBy[k] > 0 {
			out = append(out, k)
		}
	}
	return out
}

// Cleaner strips arbitrage-violating quotes from tables priced against one
// shared, read-only pricing context.
type Cleaner struct {
	pc   pricing.Context
	opts Options
}

// NewCleaner returns a cleaner bound to pc.
func NewCleaner(pc pricing.Context, opts Options) *Cleaner {
	return &Cleaner{pc: pc, opts: opts}
}

// Detect runs every enabled check against t once and returns the flags
// grouped by kind. t is not modified.
func (c *Cleaner) Detect(t chain.Table, side chain.Side) Violations {
	v := Violations{}
	checkVertical(t, side, v)
	checkButterfly(t, side, c.opts.Butterfly, v)
	checkBounds(t, side, c.pc, v)
	if c.opts.Dominance {
		checkDominance(t, side, v)
	}
	return v
}

// Clean anchors t at its ATM strike and iterates detection and removal.
//
// Returns:
//   - Result: the cleaned table, terminal state and per-iteration trace
//   - error: ErrEmptyTable or chain.ErrUnknownSide; the anchor being lost or
//     the iteration cap being hit are reported through Result.State
func (c *Cleaner) Clean(t chain.Table, side chain.Side) (Result, error) {
	side, err := chain.ParseSide(string(side))
	if err != nil {
		return Result{}, err
	}
	anchor, err := SelectATM(t, c.pc)
	if err != nil {
		return Result{}, err
	}
	return c.CleanAround(t, side, anchor)
}

// CleanAround is Clean with a caller-chosen anchor strike. An anchor absent
// from t protects nothing; the run then ends ANCHOR_LOST on its first
// removal.
//
// Returns chain.ErrUnknownSide when side does not parse.
func (c *Cleaner) CleanAround(t chain.Table, side chain.Side, anchor float64) (Result, error) {
	side, err := chain.ParseSide(string(side))
	if err != nil {
		return Result{}, err
	}

	current := t.Sorted()
	current.Side = side

	res := Result{
		Anchor:    anchor,
		Initial:   t.Len(),
		State:     StateRunning,
		RemovedBy: map[Kind]int{},
	}

	logger.Debugf("event=clean_start table=%s side=%s quotes=%d anchor=%g", t.Name, side, t.Len(), anchor)

	anchored := current.Has(anchor)
	maxIter := c.opts.maxIter()

	for iter := 1; iter <= maxIter; iter++ {
		flags := c.Detect(current, side)
		doomed := flags.All()
		if anchored {
			doomed.Remove(anchor)
		}

		step := IterationTrace{Iteration: iter, Flagged: map[Kind][]float64{}, Removed: doomed.Sorted()}
		for kind, keys := range flags {
			step.Flagged[kind] = keys.Sorted()
		}
		res.Iterations = iter

		if doomed.Len() == 0 {
			res.Trace = append(res.Trace, step)
			res.State = StateClean
			logger.Debugf("event=iteration table=%s n=%d clean=true", t.Name, iter)
			break
		}

		logger.Debugf("event=iteration table=%s n=%d removing=%d", t.Name, iter, doomed.Len())

		next := current.Without(doomed)
		if !next.Has(anchor) {
			// nothing from this pass is applied
			step.Removed = nil
			res.Trace = append(res.Trace, step)
			res.State = StateAnchorLost
			logger.Warnf("event=anchor_lost table=%s anchor=%g iteration=%d", t.Name, anchor, iter)
			break
		}
		res.Trace = append(res.Trace, step)

		for _, k := range step.Removed {
			for _, kind := range flags.KindsOf(k) {
				res.RemovedBy[kind]++
			}
		}
		current = next
		anchored = true
	}

	if res.State == StateRunning {
		res.State = StateIterExhausted
		logger.Warnf("event=iterations_exhausted table=%s max_iter=%d remaining=%d", t.Name, maxIter, current.Len())
	}

	res.Table = current
	res.Removed = res.Initial - current.Len()

	logger.Infof(
		"event=table_cleaned table=%s side=%s initial=%d final=%d state=%s iterations=%d",
		t.Name, side, res.Initial, current.Len(), res.State, res.Iterations,
	)

	if c.opts.Observer != nil {
		c.opts.Observer.ObserveResult(side, res)
	}
	return res, nil
}

// String is a short human summary used in logs and the CLI.
func (r Result) String() string {
	return fmt.Sprintf("%s: %d -> %d quotes (%s after %d iterations)",
		r.Table.Name, r.Initial, r.Table.Len(), r.State, r.Iterations)
}
