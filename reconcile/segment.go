package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jalad-shrimali/node-filter/dataset"
)

// Segment is the closed business classification of a client.
type Segment string

const (
	B2B Segment = "B2B"
	B2C Segment = "B2C"
)

// SegmentTable maps raw classification text to a Segment. Lookups are on the
// trimmed, uppercased text; anything not listed is an error.
type SegmentTable struct {
	values map[string]Segment
}

// NewSegmentTable builds a table from explicit value lists.
func NewSegmentTable(b2b, b2c []string) (*SegmentTable, error) {
	t := &SegmentTable{values: make(map[string]Segment, len(b2b)+len(b2c))}
	for _, v := range b2b {
		t.values[canonSegment(v)] = B2B
	}
	for _, v := range b2c {
		k := canonSegment(v)
		if t.values[k] == B2B {
			return nil, fmt.Errorf("segment value %q listed as both B2B and B2C", v)
		}
		t.values[k] = B2C
	}
	return t, nil
}

// FlagSegments reads yes/no style flag columns such as ES_B2B.
func FlagSegments() *SegmentTable {
	t, _ := NewSegmentTable(
		[]string{"1", "SI", "SÍ", "S", "TRUE", "YES", "Y", "B2B", "VERDADERO"},
		[]string{"0", "NO", "N", "FALSE", "B2C", "FALSO", ""},
	)
	return t
}

// ProductSegments reads product/segment descriptions such as NUEVO_SEGMENTO.
func ProductSegments() *SegmentTable {
	t, _ := NewSegmentTable(
		[]string{"LARGE", "CORPORATIVO", "CORPORATE", "EMPRESA", "EMPRESAS", "PYME", "PYMES", "SME", "MEDIUM", "GOBIERNO", "B2B"},
		[]string{"MASIVO", "RESIDENCIAL", "HOGAR", "CONSUMER", "CONSUMO", "B2C"},
	)
	return t
}

// Extend returns a copy of t with extra values.
func (t *SegmentTable) Extend(b2b, b2c []string) (*SegmentTable, error) {
	var baseB2B, baseB2C []string
	for k, s := range t.values {
		if s == B2B {
			baseB2B = append(baseB2B, k)
		} else {
			baseB2C = append(baseB2C, k)
		}
	}
	return NewSegmentTable(append(baseB2B, b2b...), append(baseB2C, b2c...))
}

// Classify maps v to a Segment.
func (t *SegmentTable) Classify(v dataset.Value) (Segment, error) {
	k := canonSegment(v.String())
	if s, ok := t.values[k]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unmapped classification value %q", v.String())
}

// Values lists the recognized inputs for s, sorted.
func (t *SegmentTable) Values(s Segment) []string {
	var out []string
	for k, v := range t.values {
		if v == s {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func canonSegment(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
