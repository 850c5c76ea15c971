package report

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Excel limit on sheet name length, in characters.
const maxSheetName = 31

var sheetReplacer = strings.NewReplacer(
	"[", "-", "]", "-", ":", "-", "*", "-", "?", "-", "/", "-", `\`, "-",
)

// sheetNamer hands out unique, valid sheet names. Excel compares names
// case-insensitively.
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: map[string]bool{}}
}

func (n *sheetNamer) next(label string) string {
	base := strings.Trim(sheetReplacer.Replace(strings.TrimSpace(label)), "'")
	if base == "" {
		base = "Hoja"
	}
	name := truncateRunes(base, maxSheetName)
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncateRunes(base, maxSheetName-utf8.RuneCountInString(suffix)) + suffix
	}
	n.used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
