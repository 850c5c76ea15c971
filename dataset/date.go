package dataset

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02/01/2006 15:04:05",
	"02.01.2006",
	"2006/01/02",
}

// Excel serials outside this window are not dates (1900-01-01 .. 9999-12-31).
const (
	minSerial = 1
	maxSerial = 2958465
)

// ParseDate coerces v to a calendar date. Numbers are read as spreadsheet
// serial dates; text is tried against day-first and ISO layouts.
func ParseDate(v Value) (time.Time, bool) {
	switch v.kind {
	case Date:
		return v.t, true
	case Number:
		if v.n < minSerial || v.n > maxSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(v.n, false)
		if err != nil {
			return time.Time{}, false
		}
		return DateOf(t).t, true
	case String:
		s := strings.TrimSpace(v.s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return DateOf(t).t, true
			}
		}
	}
	return time.Time{}, false
}
