// Package report writes reconciled rows to a workbook with one sheet per
// work date or month.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
)

// GroupBy selects the sheet partition.
type GroupBy string

const (
	ByDate  GroupBy = "date"
	ByMonth GroupBy = "month"
)

// ParseGroupBy maps a flag or config value; empty means def.
func ParseGroupBy(s string, def GroupBy) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "date", "day", "fecha":
		return ByDate, nil
	case "month", "mes":
		return ByMonth, nil
	}
	return "", failure.New(failure.KindInvalidRequest, "report", "unknown grouping %q (date|month)", s)
}

// Group is one output sheet before naming.
type Group struct {
	Label string
	Key   time.Time
	Rows  []dataset.Row
}

var meses = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Label renders the group key: DD-MM-YYYY for dates, "marzo 2024" for months.
func Label(t time.Time, by GroupBy) string {
	if by == ByMonth {
		return fmt.Sprintf("%s %d", meses[t.Month()-1], t.Year())
	}
	return t.Format("02-01-2006")
}

func groupKey(t time.Time, by GroupBy) time.Time {
	if by == ByMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GroupRows partitions data by dateColumn. Rows keep their order inside a
// group; groups are ordered by key.
func GroupRows(data *dataset.Table, dateColumn string, by GroupBy) ([]Group, error) {
	if !data.Has(dateColumn) {
		return nil, failure.Missing("report", []string{dateColumn})
	}
	index := map[time.Time]int{}
	var groups []Group
	for i, r := range data.Rows {
		d, ok := dataset.ParseDate(r.Get(dateColumn))
		if !ok {
			return nil, failure.New(failure.KindWriteError, "report",
				"row %d: %s is not a date (%q)", i+1, dateColumn, r.Text(dateColumn))
		}
		k := groupKey(d, by)
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, Group{Label: Label(k, by), Key: k})
		}
		groups[gi].Rows = append(groups[gi].Rows, r)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Key.Before(groups[j].Key) })
	return groups, nil
}
