// Package arb detects static arbitrage in a quoted option chain and strips
// the offending quotes until the chain is internally consistent.
//
// Responsibilities:
//   - Pick the ATM anchor that is never removed
//   - Run the vertical, butterfly and bounds checks (plus the optional
//     dominance check) as pure table -> key-set passes
//   - Iterate detection and removal to a fixed point, a lost anchor or the
//     iteration cap, returning a trace instead of printing progress
//   - Clean many tables against one pricing context and aggregate a report
//
// Design notes:
//   - Quotes are identified by strike; checkers never return positions
//   - Checkers are read-only and safe to run concurrently on disjoint tables
//   - Errors are typed where useful and wrapped for caller inspection
package arb

import (
	"errors"
)

// Usage errors. They are returned immediately and never retried.
var (
	ErrEmptyTable     = errors.New("empty quote table")
	ErrLengthMismatch = errors.New("tables and sides differ in length")
)
