package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jalad-shrimali/node-filter/dataset"
)

// CSV reads a delimited text file. The header is the first non-empty record.
type CSV struct {
	Path string
	// Comma defaults to ','.
	Comma rune
}

func (c *CSV) Name() string { return filepath.Base(c.Path) }

func (c *CSV) reader() (*csv.Reader, io.Closer, error) {
	if err := statFile(c.Path); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if c.Comma != 0 {
		r.Comma = c.Comma
	}
	return r, f, nil
}

func (c *CSV) Columns(ctx context.Context) ([]string, error) {
	r, f, err := c.reader()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
		if !isBlank(rec) {
			return headerNames(rec), nil
		}
	}
}

func (c *CSV) Read(ctx context.Context) (*dataset.Table, error) {
	r, f, err := c.reader()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var t *dataset.Table
	for n := 1; ; n++ {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", c.Name(), n, err)
		}
		if isBlank(rec) {
			continue
		}
		if t == nil {
			t = dataset.New(c.Name(), headerNames(rec))
			continue
		}
		appendCells(t, rec)
	}
	if t == nil {
		t = dataset.New(c.Name(), nil)
	}
	return t, nil
}
