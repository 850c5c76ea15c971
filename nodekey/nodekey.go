// Package nodekey turns free-text node/site labels into comparable join keys.
//
// Two strategies exist because the sources disagree on how a node is written:
// the schedule carries short labels such as "Nodo SCZ001" while client views
// carry zone descriptions such as "ZONA SCZ123 SECTOR B" or "SCZ001 Centro".
package nodekey

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects the normalization strategy.
type Mode int

const (
	// Strip removes the node word and separator noise and keeps the rest.
	Strip Mode = iota
	// Extract keeps only the first whitelisted region code found in the label.
	Extract
	// Auto tries Extract first and falls back to Strip.
	Auto
)

func (m Mode) String() string {
	switch m {
	case Strip:
		return "strip"
	case Extract:
		return "extract"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strip":
		return Strip, nil
	case "extract":
		return Extract, nil
	case "auto":
		return Auto, nil
	}
	return Strip, fmt.Errorf("unknown node key mode %q", s)
}

// DefaultRegions are the region prefixes used by node codes.
var DefaultRegions = []string{"SCZ", "LPZ", "SRE", "EAL", "PTS", "CBB", "TRJ"}

var (
	spaceRE    = regexp.MustCompile(`\s+`)
	nodeWordRE = regexp.MustCompile(`\bNOD[OE]\b`)
	edgeSepRE  = regexp.MustCompile(`^[\s\-_:.#/]+|[\s\-_:.#/]+$`)
	codeRE     = regexp.MustCompile(`^[A-Z]+$`)
)

// Normalizer canonicalizes raw labels. The zero value is not usable; call New.
type Normalizer struct {
	mode    Mode
	pattern *regexp.Regexp
}

// New returns a normalizer for mode using DefaultRegions.
func New(mode Mode) *Normalizer {
	n, _ := NewWithRegions(mode, DefaultRegions)
	return n
}

// NewWithRegions returns a normalizer that recognizes the given region prefixes.
func NewWithRegions(mode Mode, regions []string) (*Normalizer, error) {
	if len(regions) == 0 {
		regions = DefaultRegions
	}
	alts := make([]string, 0, len(regions))
	for _, r := range regions {
		r = strings.ToUpper(strings.TrimSpace(r))
		if !codeRE.MatchString(r) {
			return nil, fmt.Errorf("invalid region prefix %q", r)
		}
		alts = append(alts, r+`\d+`)
	}
	return &Normalizer{
		mode:    mode,
		pattern: regexp.MustCompile(`(` + strings.Join(alts, "|") + `)`),
	}, nil
}

// Mode reports the configured strategy.
func (n *Normalizer) Mode() Mode { return n.mode }

// Normalize returns the canonical key for raw, or "" when none can be derived.
func (n *Normalizer) Normalize(raw string) string {
	switch n.mode {
	case Extract:
		return n.extract(raw)
	case Auto:
		if k := n.extract(raw); k != "" {
			return k
		}
		return strip(raw)
	default:
		return strip(raw)
	}
}

// NormalizeValue accepts any scalar; non-strings other than numbers yield "".
func (n *Normalizer) NormalizeValue(v any) string {
	switch x := v.(type) {
	case string:
		return n.Normalize(x)
	case fmt.Stringer:
		return n.Normalize(x.String())
	case int, int64, float64:
		return n.Normalize(fmt.Sprint(x))
	default:
		return ""
	}
}

func (n *Normalizer) extract(raw string) string {
	s := strings.ToUpper(raw)
	return n.pattern.FindString(s)
}

func strip(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = nodeWordRE.ReplaceAllString(s, " ")
	s = spaceRE.ReplaceAllString(s, " ")
	s = edgeSepRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
