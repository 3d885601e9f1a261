package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/logger"
)

// localCSVDataProvider loads quote tables from CSV files with a header row
// naming at least strike, bid and ask (mid is optional).
type localCSVDataProvider struct {
	dir       string
	secondary Provider
}

// NewLocalCSVProvider resolves relative request paths against dir.
func NewLocalCSVProvider(dir string, secondary Provider) Provider {
	return &localCSVDataProvider{dir: dir, secondary: secondary}
}

func (localCSVProv *localCSVDataProvider) Secondary() Provider {
	return localCSVProv.secondary
}

func (localCSVProv *localCSVDataProvider) GetChain(ctx context.Context, req ChainRequest) (chain.Table, error) {
	path := resolvePath(localCSVProv.dir, req.Path)
	logger.Debugf("event=load_csv chain=%s path=%s", req.Name, path)

	f, err := os.Open(path)
	if err != nil {
		return chain.Table{}, fmt.Errorf("open chain csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return chain.Table{}, fmt.Errorf("read chain csv %s: %w", path, err)
	}
	return tableFromRows(req, records)
}

func resolvePath(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// tableFromRows turns a header row plus data rows into a validated table.
// Blank rows are skipped; a row with an unparsable number is an error.
func tableFromRows(req ChainRequest, rows [][]string) (chain.Table, error) {
	if len(rows) == 0 {
		return chain.Table{}, fmt.Errorf("chain %q: %w", req.Name, ErrNoQuotes)
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"strike", "bid", "ask"} {
		if _, ok := cols[need]; !ok {
			return chain.Table{}, fmt.Errorf("chain %q: missing %q column", req.Name, need)
		}
	}
	midCol, hasMid := cols["mid"]

	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(row []string, i int, line int, col string) (float64, error) {
		v, err := strconv.ParseFloat(cell(row, i), 64)
		if err != nil {
			return 0, fmt.Errorf("chain %q row %d %s: %w", req.Name, line, col, err)
		}
		return v, nil
	}

	quotes := make([]chain.Quote, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		if strings.Join(row, "") == "" {
			continue
		}

		var q chain.Quote
		var err error
		if q.Strike, err = num(row, cols["strike"], line, "strike"); err != nil {
			return chain.Table{}, err
		}
		if q.Bid, err = num(row, cols["bid"], line, "bid"); err != nil {
			return chain.Table{}, err
		}
		if q.Ask, err = num(row, cols["ask"], line, "ask"); err != nil {
			return chain.Table{}, err
		}
		if hasMid && cell(row, midCol) != "" {
			if q.QuotedMid, err = num(row, midCol, line, "mid"); err != nil {
				return chain.Table{}, err
			}
		}
		quotes = append(quotes, q)
	}

	if len(quotes) == 0 {
		return chain.Table{}, fmt.Errorf("chain %q: %w", req.Name, ErrNoQuotes)
	}
	if err := validateQuotes(quotes); err != nil {
		return chain.Table{}, fmt.Errorf("chain %q: %w", req.Name, err)
	}

	logger.Tracef("event=rows_parsed chain=%s quotes=%d", req.Name, len(quotes))
	return chain.NewTable(req.Name, req.Side, quotes), nil
}
