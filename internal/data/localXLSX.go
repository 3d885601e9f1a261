package data

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/logger"
)

// localXLSXDataProvider loads quote tables from a workbook sheet laid out
// like the CSV source: one header row, then one quote per row.
type localXLSXDataProvider struct {
	dir       string
	secondary Provider
}

func NewLocalXLSXProvider(dir string, secondary Provider) Provider {
	return &localXLSXDataProvider{dir: dir, secondary: secondary}
}

func (localXLSXProv *localXLSXDataProvider) Secondary() Provider {
	return localXLSXProv.secondary
}

// GetChain reads req.Sheet, or the first sheet when none is named.
func (localXLSXProv *localXLSXDataProvider) GetChain(ctx context.Context, req ChainRequest) (chain.Table, error) {
	path := resolvePath(localXLSXProv.dir, req.Path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return chain.Table{}, fmt.Errorf("open chain workbook: %w", err)
	}
	defer f.Close()

	sheet := req.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	logger.Debugf("event=load_xlsx chain=%s path=%s sheet=%s", req.Name, path, sheet)

	rows, err := f.GetRows(sheet)
	if err != nil {
		return chain.Table{}, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	return tableFromRows(req, rows)
}
