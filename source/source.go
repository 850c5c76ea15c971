// Package source loads tabular datasets from spreadsheets, CSV files and SQL
// queries behind one interface.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
)

// TabularSource yields a header and rows.
type TabularSource interface {
	// Name identifies the source in logs and errors.
	Name() string
	// Columns reads only the header.
	Columns(ctx context.Context) ([]string, error)
	// Read loads the whole dataset.
	Read(ctx context.Context) (*dataset.Table, error)
}

// Option adjusts Load.
type Option func(*loadOptions)

type loadOptions struct {
	aliases map[string]string
}

// WithAliases renames header columns to canonical names before validation.
// Keys are compared case- and space-insensitively.
func WithAliases(aliases map[string]string) Option {
	return func(o *loadOptions) {
		for k, v := range aliases {
			o.aliases[norm(k)] = v
		}
	}
}

// Load reads src and checks that every required column is present. All
// missing columns are reported together.
func Load(ctx context.Context, src TabularSource, required []string, opts ...Option) (*dataset.Table, error) {
	o := loadOptions{aliases: map[string]string{}}
	for _, opt := range opts {
		opt(&o)
	}

	t, err := src.Read(ctx)
	if err != nil {
		return nil, classify(ctx, src.Name(), err)
	}
	if len(o.aliases) > 0 {
		applyAliases(t, o.aliases)
	}
	if missing := t.Missing(required); len(missing) > 0 {
		e := failure.Missing("load "+src.Name(), missing)
		e.Message = fmt.Sprintf("%s: %s", src.Name(), e.Message)
		return nil, e
	}
	return t, nil
}

// ListColumns returns the header of src.
func ListColumns(ctx context.Context, src TabularSource) ([]string, error) {
	cols, err := src.Columns(ctx)
	if err != nil {
		return nil, classify(ctx, src.Name(), err)
	}
	return cols, nil
}

// Open picks a file source by extension.
func Open(path string) (TabularSource, error) {
	if err := statFile(path); err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return &Spreadsheet{Path: path}, nil
	case ".csv":
		return &CSV{Path: path}, nil
	case ".xls":
		return nil, failure.New(failure.KindSourceUnreadable, "open",
			"%s: legacy .xls workbooks are not supported, save it as .xlsx", filepath.Base(path))
	default:
		return nil, failure.New(failure.KindSourceUnreadable, "open",
			"%s: unsupported file type %q (expected .xlsx, .xlsm or .csv)", filepath.Base(path), ext)
	}
}

// classify turns a reader error into a failure kind.
func classify(ctx context.Context, name string, err error) error {
	var fe *failure.Error
	switch {
	case errors.As(err, &fe):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return failure.Wrap(failure.KindTimeout, "load", err, "%s", name)
	case errors.Is(err, os.ErrNotExist):
		return failure.Wrap(failure.KindSourceNotFound, "load", err, "%s", name)
	}
	return failure.Wrap(failure.KindSourceUnreadable, "load", err, "%s", name)
}

func statFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return failure.Wrap(failure.KindSourceNotFound, "load", err, "file not found: %s", path)
		}
		return failure.Wrap(failure.KindSourceUnreadable, "load", err, "%s", path)
	}
	if fi.IsDir() {
		return failure.New(failure.KindSourceUnreadable, "load", "%s is a directory", path)
	}
	return nil
}

/* ──────────── header helpers ──────────── */

var spaceRE = regexp.MustCompile(`\s+`)

func norm(s string) string { return spaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ") }

// headerNames trims raw header cells, names empty cells COLUMN_<n> and
// suffixes repeated names with _<n>.
func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("COLUMN_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		out[i] = h
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// appendCells adds one raw record; short records are padded with null.
func appendCells(t *dataset.Table, cells []string) {
	row := make(dataset.Row, len(t.Columns))
	for i, c := range t.Columns {
		if i < len(cells) {
			row[c] = dataset.FromCell(cells[i])
		} else {
			row[c] = dataset.NullValue()
		}
	}
	t.Rows = append(t.Rows, row)
}

func applyAliases(t *dataset.Table, aliases map[string]string) {
	for i, c := range t.Columns {
		canon, ok := aliases[norm(c)]
		if !ok || canon == c || t.Has(canon) {
			continue
		}
		t.Columns[i] = canon
		for _, r := range t.Rows {
			r[canon] = r[c]
			delete(r, c)
		}
	}
}
