// Package report writes the outcome of a cleaning run to disk: the JSON
// report, the cleaned quotes as CSV and a workbook holding both.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
)

// File names written into the output directory.
const (
	JSONFile = "report.json"
	CSVFile  = "cleaned.csv"
	XLSXFile = "report.xlsx"
)

// WriteAll writes every report format into outdir, creating it if needed.
func WriteAll(rep arb.Report, tables []chain.Table, outdir string) error {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := WriteJSON(rep, outdir); err != nil {
		return err
	}
	if err := WriteCSV(tables, outdir); err != nil {
		return err
	}
	return WriteXLSX(rep, tables, outdir)
}

func WriteJSON(rep arb.Report, outdir string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, JSONFile), b, 0644)
}

func WriteCSV(tables []chain.Table, outdir string) error {
	f, err := os.Create(filepath.Join(outdir, CSVFile))
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeCSV(f, tables)
}

// EncodeCSV writes one row per surviving quote, tables in input order.
func EncodeCSV(out io.Writer, tables []chain.Table) error {
	w := csv.NewWriter(out)
	if err := w.Write(quoteHeaders); err != nil {
		return err
	}
	for i, t := range tables {
		for _, q := range t.Quotes {
			if err := w.Write(quoteRow(i, t, q)); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

var quoteHeaders = []string{"table", "name", "side", "strike", "bid", "ask", "mid"}

func quoteRow(i int, t chain.Table, q chain.Quote) []string {
	return []string{strconv.Itoa(i), t.Name, string(t.Side), num(q.Strike), num(q.Bid), num(q.Ask), num(q.Mid())}
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
