package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
)

// Spreadsheet reads one sheet of an .xlsx workbook. The header is the first
// non-empty row; cells are read raw so dates arrive as serial numbers.
type Spreadsheet struct {
	Path string
	// Sheet defaults to the first sheet.
	Sheet string
}

func (s *Spreadsheet) Name() string { return filepath.Base(s.Path) }

func (s *Spreadsheet) open() (*excelize.File, string, error) {
	if err := statFile(s.Path); err != nil {
		return nil, "", err
	}
	if strings.EqualFold(filepath.Ext(s.Path), ".xls") {
		return nil, "", failure.New(failure.KindSourceUnreadable, "load",
			"%s: legacy .xls workbooks are not supported, save it as .xlsx", s.Name())
	}
	x, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, "", failure.Wrap(failure.KindSourceUnreadable, "load", err, "cannot read workbook %s", s.Name())
	}
	sheet := s.Sheet
	if sheet == "" {
		list := x.GetSheetList()
		if len(list) == 0 {
			x.Close()
			return nil, "", failure.New(failure.KindSourceUnreadable, "load", "%s has no sheets", s.Name())
		}
		sheet = list[0]
	} else if idx, _ := x.GetSheetIndex(sheet); idx < 0 {
		x.Close()
		return nil, "", failure.New(failure.KindSourceUnreadable, "load", "%s has no sheet %q", s.Name(), sheet)
	}
	return x, sheet, nil
}

// Columns reads rows until the header row.
func (s *Spreadsheet) Columns(ctx context.Context) ([]string, error) {
	x, sheet, err := s.open()
	if err != nil {
		return nil, err
	}
	defer x.Close()

	rows, err := x.Rows(sheet)
	if err != nil {
		return nil, failure.Wrap(failure.KindSourceUnreadable, "load", err, "%s", s.Name())
	}
	defer rows.Close()
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		if !isBlank(cells) {
			return headerNames(cells), nil
		}
	}
	return nil, rows.Error()
}

func (s *Spreadsheet) Read(ctx context.Context) (*dataset.Table, error) {
	x, sheet, err := s.open()
	if err != nil {
		return nil, err
	}
	defer x.Close()

	rows, err := x.Rows(sheet)
	if err != nil {
		return nil, failure.Wrap(failure.KindSourceUnreadable, "load", err, "%s", s.Name())
	}
	defer rows.Close()

	var t *dataset.Table
	n := 0
	for rows.Next() {
		if n++; n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", s.Name(), n, err)
		}
		if isBlank(cells) {
			continue
		}
		if t == nil {
			t = dataset.New(s.Name(), headerNames(cells))
			continue
		}
		appendCells(t, cells)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}
	if t == nil {
		t = dataset.New(s.Name(), nil)
	}
	return t, nil
}
