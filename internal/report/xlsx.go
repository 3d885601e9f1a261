package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
)

const (
	summarySheet   = "summary"
	maxSheetName   = 31
	sheetForbidden = `:\/?*[]`
)

var summaryHeaders = []string{"table", "name", "side", "anchor", "initial", "final", "removed", "state", "iterations", "kinds"}

// WriteXLSX writes a workbook with a summary sheet followed by one sheet of
// cleaned quotes per table.
func WriteXLSX(rep arb.Report, tables []chain.Table, outdir string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	if err := setRow(f, summarySheet, 1, toCells(summaryHeaders)); err != nil {
		return err
	}
	for i, tr := range rep.Tables {
		kinds := make([]string, len(tr.Kinds))
		for j, k := range tr.Kinds {
			kinds[j] = string(k)
		}
		row := []any{tr.Index, tr.Name, string(tr.Side), tr.Anchor, tr.Initial, tr.Final, tr.Removed, string(tr.State), tr.Iterations, strings.Join(kinds, ",")}
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}

	used := map[string]bool{summarySheet: true}
	for i, t := range tables {
		name := sheetName(i, t.Name, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %q: %w", name, err)
		}
		if err := setRow(f, name, 1, []any{"strike", "bid", "ask", "mid"}); err != nil {
			return err
		}
		for r, q := range t.Quotes {
			if err := setRow(f, name, r+2, []any{q.Strike, q.Bid, q.Ask, q.Mid()}); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(filepath.Join(outdir, XLSXFile))
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// sheetName derives a legal, unique sheet name from a table name.
func sheetName(i int, name string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		if strings.ContainsRune(sheetForbidden, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if base == "" {
		base = fmt.Sprintf("table %d", i)
	}
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}

	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		cut := base
		if len(cut)+len(suffix) > maxSheetName {
			cut = cut[:maxSheetName-len(suffix)]
		}
		candidate = cut + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
