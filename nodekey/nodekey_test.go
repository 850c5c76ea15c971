package nodekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rawLabels = []string{
	"",
	"   ",
	"Nodo SCZ001",
	"nodo scz001",
	"SCZ001",
	" Scz001 ",
	"NODO-SCZ001",
	"nodo: lpz-014",
	"ZONA SCZ123 SECTOR B",
	"SCZ001 Centro",
	"Zona Norte sin codigo",
	"CBB77/NODO",
	"node trj9",
	"#EAL5 nodo",
	"NODOS RURALES",
	"--__",
	"pts0001 / sre02",
}

func TestStrip(t *testing.T) {
	n := New(Strip)
	cases := map[string]string{
		"":              "",
		"   ":           "",
		"Nodo SCZ001":   "SCZ001",
		"nodo scz001":   "SCZ001",
		" Scz001 ":      "SCZ001",
		"NODO-SCZ001":   "SCZ001",
		"nodo: lpz-014": "LPZ-014",
		"CBB77/NODO":    "CBB77",
		"node trj9":     "TRJ9",
		"#EAL5 nodo":    "EAL5",
		"NODOS RURALES": "NODOS RURALES",
		"--__":          "",
		"SCZ001  Centro": "SCZ001 CENTRO",
	}
	for raw, want := range cases {
		assert.Equal(t, want, n.Normalize(raw), "raw=%q", raw)
	}
}

func TestExtract(t *testing.T) {
	n := New(Extract)
	cases := map[string]string{
		"ZONA SCZ123 SECTOR B":  "SCZ123",
		"SCZ001 Centro":         "SCZ001",
		"nodo scz001":           "SCZ001",
		"Zona Norte sin codigo": "",
		"pts0001 / sre02":       "PTS0001",
		"ABC123":                "",
		"SCZ":                   "",
		"":                      "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, n.Normalize(raw), "raw=%q", raw)
	}
}

func TestAutoFallsBackToStrip(t *testing.T) {
	n := New(Auto)
	assert.Equal(t, "SCZ123", n.Normalize("ZONA SCZ123 SECTOR B"))
	assert.Equal(t, "ZONA NORTE", n.Normalize("Nodo Zona  Norte"))
}

func TestIdempotent(t *testing.T) {
	for _, mode := range []Mode{Strip, Extract, Auto} {
		n := New(mode)
		for _, raw := range rawLabels {
			once := n.Normalize(raw)
			assert.Equal(t, once, n.Normalize(once), "mode=%s raw=%q", mode, raw)
		}
	}
}

func TestCaseAndWhitespaceInvariance(t *testing.T) {
	for _, mode := range []Mode{Strip, Auto, Extract} {
		n := New(mode)
		want := n.Normalize("SCZ001")
		require.Equal(t, "SCZ001", want, "mode=%s", mode)
		assert.Equal(t, want, n.Normalize("nodo scz001"), "mode=%s", mode)
		assert.Equal(t, want, n.Normalize(" Scz001 "), "mode=%s", mode)
		assert.Equal(t, want, n.Normalize("Nodo SCZ001"), "mode=%s", mode)
	}
}

func TestNormalizeValue(t *testing.T) {
	n := New(Strip)
	assert.Equal(t, "", n.NormalizeValue(nil))
	assert.Equal(t, "", n.NormalizeValue(true))
	assert.Equal(t, "42", n.NormalizeValue(42))
	assert.Equal(t, "SCZ1", n.NormalizeValue("nodo scz1"))
}

func TestCustomRegions(t *testing.T) {
	n, err := NewWithRegions(Extract, []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, "ABC12", n.Normalize("zona abc12"))
	assert.Equal(t, "", n.Normalize("SCZ001"))

	_, err = NewWithRegions(Extract, []string{"S1"})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Extract")
	require.NoError(t, err)
	assert.Equal(t, Extract, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Strip, m)

	_, err = ParseMode("regex")
	assert.Error(t, err)
}
