package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the scalar type held by a Value.
type Kind int

const (
	Null Kind = iota
	String
	Number
	Date
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Date:
		return "date"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// DateLayout is the rendering of Date values in previews.
const DateLayout = "2006-01-02"

// Value is one typed cell.
type Value struct {
	kind Kind
	s    string
	n    float64
	t    time.Time
}

// NullValue returns the null scalar.
func NullValue() Value { return Value{} }

// Str wraps a string.
func Str(s string) Value { return Value{kind: String, s: s} }

// Num wraps a number.
func Num(n float64) Value { return Value{kind: Number, n: n} }

// DateOf wraps a calendar date; the time of day is dropped.
func DateOf(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: Date, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

// Float returns the numeric payload.
func (v Value) Float() (float64, bool) { return v.n, v.kind == Number }

// Time returns the date payload.
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == Date }

// String renders the value as text; null renders as "".
func (v Value) String() string {
	switch v.kind {
	case String:
		return v.s
	case Number:
		return formatNumber(v.n)
	case Date:
		return v.t.Format(DateLayout)
	}
	return ""
}

// Interface returns a plain Go value for writers and encoders.
func (v Value) Interface() any {
	switch v.kind {
	case String:
		return v.s
	case Number:
		if v.n == math.Trunc(v.n) && math.Abs(v.n) < 1<<53 {
			return int64(v.n)
		}
		return v.n
	case Date:
		return v.t.Format(DateLayout)
	}
	return nil
}

// MarshalJSON renders dates as strings and whole numbers without a fraction.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Equal reports whether two values hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case String:
		return v.s == o.s
	case Number:
		return v.n == o.n
	case Date:
		return v.t.Equal(o.t)
	}
	return true
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// maxExactDigits is the longest digit run a float64 holds without rounding.
const maxExactDigits = 15

// FromCell types raw spreadsheet or CSV text. Numeric text becomes a Number
// unless it carries leading zeros or more significant digits than a float64
// keeps, since either would be lost.
func FromCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NullValue()
	}
	if looksNumeric(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Num(f)
		}
	}
	return Str(raw)
}

func looksNumeric(s string) bool {
	t := strings.TrimPrefix(s, "-")
	if t == "" {
		return false
	}
	if len(t) > 1 && t[0] == '0' && t[1] != '.' {
		return false
	}
	dot := false
	digits := 0
	for i, c := range t {
		switch {
		case c >= '0' && c <= '9':
			if digits > 0 || c != '0' {
				digits++
			}
		case c == '.' && !dot && i > 0 && i < len(t)-1:
			dot = true
		default:
			return false
		}
	}
	return digits <= maxExactDigits
}

// exactInt reports whether n survives conversion to float64.
func exactInt(n int64) bool { return n > -1<<53 && n < 1<<53 }

// FromAny converts a driver or decoder value.
func FromAny(x any) Value {
	switch v := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return v
	case string:
		return FromCell(v)
	case []byte:
		return FromCell(string(v))
	case time.Time:
		return DateOf(v)
	case bool:
		if v {
			return Str("TRUE")
		}
		return Str("FALSE")
	case int:
		return Num(float64(v))
	case int8:
		return Num(float64(v))
	case int16:
		return Num(float64(v))
	case int32:
		return Num(float64(v))
	case int64:
		if !exactInt(v) {
			return Str(strconv.FormatInt(v, 10))
		}
		return Num(float64(v))
	case uint8:
		return Num(float64(v))
	case uint16:
		return Num(float64(v))
	case uint32:
		return Num(float64(v))
	case uint64:
		if v >= 1<<53 {
			return Str(strconv.FormatUint(v, 10))
		}
		return Num(float64(v))
	case float32:
		return Num(float64(v))
	case float64:
		return Num(v)
	case fmt.Stringer:
		return FromCell(v.String())
	}
	return Str(fmt.Sprint(x))
}
