package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
)

// WriteResult is returned to callers on success.
type WriteResult struct {
	Status string   `json:"status"`
	Path   string   `json:"path"`
	Sheets []string `json:"sheets,omitempty"`
}

// Writer writes grouped workbooks.
type Writer struct {
	logger *zap.Logger

	// DateColumn holds the work date used for grouping.
	DateColumn string
	// DropDateColumn leaves the date column out of the sheets; the sheet name carries it.
	DropDateColumn bool
}

// NewWriter creates a writer grouping on dateColumn.
func NewWriter(logger *zap.Logger, dateColumn string) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger.Named("report"), DateColumn: dateColumn}
}

// WriteGroupedReport writes data to outputPath, one sheet per group. The
// workbook is built next to outputPath and renamed into place, so a failed
// write never leaves a partial file behind.
func (w *Writer) WriteGroupedReport(ctx context.Context, data *dataset.Table, groupBy GroupBy, outputPath string) (WriteResult, error) {
	if data == nil || data.Len() == 0 {
		return WriteResult{}, failure.New(failure.KindEmptyResult, "report", "nothing to write")
	}
	if !strings.EqualFold(filepath.Ext(outputPath), ".xlsx") {
		return WriteResult{}, failure.New(failure.KindInvalidRequest, "report",
			"output %q must be an .xlsx file", outputPath)
	}
	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return WriteResult{}, failure.Wrap(failure.KindWriteError, "report", err, "resolve %s", outputPath)
	}

	groups, err := GroupRows(data, w.DateColumn, groupBy)
	if err != nil {
		return WriteResult{}, err
	}

	header := make([]string, 0, len(data.Columns))
	for _, c := range data.Columns {
		if w.DropDateColumn && c == w.DateColumn {
			continue
		}
		header = append(header, c)
	}

	x := excelize.NewFile()
	defer x.Close()

	headerStyle, err := x.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return WriteResult{}, failure.Wrap(failure.KindWriteError, "report", err, "header style")
	}

	names := newSheetNamer()
	sheets := make([]string, 0, len(groups))
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return WriteResult{}, failure.Wrap(failure.KindTimeout, "report", err, "writing sheet %d of %d", i+1, len(groups))
		}
		name := names.next(g.Label)
		if i == 0 {
			err = x.SetSheetName("Sheet1", name)
		} else {
			_, err = x.NewSheet(name)
		}
		if err != nil {
			return WriteResult{}, failure.Wrap(failure.KindWriteError, "report", err, "sheet %q", name)
		}
		if err := writeSheet(x, name, header, g.Rows); err != nil {
			return WriteResult{}, failure.Wrap(failure.KindWriteError, "report", err, "sheet %q", name)
		}
		if err := x.SetRowStyle(name, 1, 1, headerStyle); err != nil {
			return WriteResult{}, failure.Wrap(failure.KindWriteError, "report", err, "sheet %q", name)
		}
		sheets = append(sheets, name)
		w.logger.Debug("Sheet written", zap.String("sheet", name), zap.Int("rows", len(g.Rows)))
	}
	x.SetActiveSheet(0)

	tmp := filepath.Join(filepath.Dir(abs), "."+uuid.NewString()+".xlsx")
	if err := x.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return WriteResult{}, failure.Wrap(failure.KindWriteError, "report", err, "save %s", abs)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return WriteResult{}, failure.Wrap(failure.KindTimeout, "report", err, "save %s", abs)
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return WriteResult{}, failure.Wrap(failure.KindWriteError, "report", err, "move into %s", abs)
	}

	w.logger.Info("Report written",
		zap.String("path", abs),
		zap.Int("sheets", len(sheets)),
		zap.Int("rows", data.Len()))
	return WriteResult{Status: "success", Path: abs, Sheets: sheets}, nil
}

func writeSheet(x *excelize.File, sheet string, header []string, rows []dataset.Row) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := x.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	for r, row := range rows {
		vals := make([]any, len(header))
		for c, col := range header {
			vals[c] = cellValue(row.Get(col))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := x.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}
	return nil
}

func cellValue(v dataset.Value) any {
	if t, ok := v.Time(); ok {
		return t.Format("02-01-2006")
	}
	return v.Interface()
}
