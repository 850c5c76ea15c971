package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
)

// FilterMode names a client filter.
type FilterMode string

const (
	FilterAll           FilterMode = "all"
	FilterB2BOnly       FilterMode = "b2b-only"
	FilterB2COnly       FilterMode = "b2c-only"
	FilterHasPublicIP   FilterMode = "has-public-ip"
	FilterLacksPublicIP FilterMode = "lacks-public-ip"
)

// Host applications send these older names.
var filterAliases = map[string]FilterMode{
	"":           FilterAll,
	"b2b":        FilterB2BOnly,
	"b2c":        FilterB2COnly,
	"with_ip":    FilterHasPublicIP,
	"without_ip": FilterLacksPublicIP,
}

// ParseFilterMode resolves s, accepting legacy aliases.
func ParseFilterMode(s string) (FilterMode, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	if m, ok := filterAliases[k]; ok {
		return m, nil
	}
	m := FilterMode(k)
	if _, ok := predicates[m]; ok {
		return m, nil
	}
	return "", failure.New(failure.KindInvalidFilter, "filter", "unknown filter mode %q (known: %s)",
		s, strings.Join(FilterModes(), ", "))
}

// FilterModes lists the registered modes, sorted.
func FilterModes() []string {
	out := make([]string, 0, len(predicates))
	for m := range predicates {
		out = append(out, string(m))
	}
	sort.Strings(out)
	return out
}

// PublicIPPresent is the flag value meaning the account has a public IP.
const PublicIPPresent = "TIENE"

// PublicIPAbsent is the default for accounts missing from the IP view.
const PublicIPAbsent = "NO TIENE"

// publicIPValues is the closed set of public IP flag spellings. Blank means
// the account has no flag row.
var publicIPValues = map[string]bool{
	PublicIPPresent: true, "SI": true, "SÍ": true, "S": true, "1": true,
	"TRUE": true, "YES": true, "CON IP": true,
	PublicIPAbsent: false, "NO": false, "N": false, "0": false,
	"FALSE": false, "SIN IP": false, "": false,
}

// ParsePublicIP maps a raw flag to presence. Unlisted spellings are an error.
func ParsePublicIP(raw string) (bool, error) {
	k := strings.Join(strings.Fields(strings.ToUpper(raw)), " ")
	present, ok := publicIPValues[k]
	if !ok {
		return false, fmt.Errorf("unmapped public IP flag %q", raw)
	}
	return present, nil
}

func publicIPValue(present bool) dataset.Value {
	if present {
		return dataset.Str(PublicIPPresent)
	}
	return dataset.Str(PublicIPAbsent)
}

// Predicate decides whether a client row is kept.
type Predicate func(row dataset.Row) (bool, error)

// filterEnv carries the column bindings a predicate needs.
type filterEnv struct {
	segmentColumn  string
	publicIPColumn string
}

type predicateFactory func(env filterEnv) (Predicate, error)

var predicates = map[FilterMode]predicateFactory{
	FilterAll: func(filterEnv) (Predicate, error) {
		return func(dataset.Row) (bool, error) { return true, nil }, nil
	},
	FilterB2BOnly: segmentPredicate(B2B),
	FilterB2COnly: segmentPredicate(B2C),
	FilterHasPublicIP:   ipPredicate(true),
	FilterLacksPublicIP: ipPredicate(false),
}

func segmentPredicate(want Segment) predicateFactory {
	return func(env filterEnv) (Predicate, error) {
		if env.segmentColumn == "" {
			return nil, fmt.Errorf("client source has no segment classification")
		}
		return func(row dataset.Row) (bool, error) {
			return Segment(row.Text(SegmentColumn)) == want, nil
		}, nil
	}
}

func ipPredicate(want bool) predicateFactory {
	return func(env filterEnv) (Predicate, error) {
		if env.publicIPColumn == "" {
			return nil, fmt.Errorf("client source has no public IP flag")
		}
		col := env.publicIPColumn
		return func(row dataset.Row) (bool, error) {
			present, err := ParsePublicIP(row.Text(col))
			if err != nil {
				return false, failure.Wrap(failure.KindSchemaMismatch, "filter", err, "column %s", col)
			}
			return present == want, nil
		}, nil
	}
}

func resolvePredicate(mode FilterMode, env filterEnv) (Predicate, error) {
	m, err := ParseFilterMode(string(mode))
	if err != nil {
		return nil, err
	}
	p, err := predicates[m](env)
	if err != nil {
		return nil, failure.Wrap(failure.KindInvalidFilter, "filter", err, "filter mode %q not applicable", m)
	}
	return p, nil
}
