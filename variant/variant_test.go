package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalad-shrimali/node-filter/config"
	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
	"github.com/jalad-shrimali/node-filter/nodekey"
	"github.com/jalad-shrimali/node-filter/reconcile"
	"github.com/jalad-shrimali/node-filter/report"
)

func TestBuiltins(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cartera-ip", "cubo-trabajos", "planilla-b2b"}, r.Names())

	cartera, err := r.Get("cartera-ip")
	require.NoError(t, err)
	assert.True(t, cartera.UsesStore())
	assert.Equal(t, report.ByDate, cartera.GroupBy)
	assert.ElementsMatch(t, []reconcile.FilterMode{
		reconcile.FilterAll, reconcile.FilterHasPublicIP, reconcile.FilterLacksPublicIP,
	}, cartera.Filters())

	planilla, err := r.Get(" Planilla-B2B ")
	require.NoError(t, err)
	assert.False(t, planilla.UsesStore())
	assert.Equal(t, report.ByMonth, planilla.GroupBy)
	assert.Equal(t, nodekey.Extract, planilla.Keys.ClientNormalizer.Mode())
	assert.Equal(t, reconcile.DepartmentExact, planilla.Keys.Department)

	_, err = r.Get("otra")
	assert.Equal(t, failure.KindInvalidRequest, failure.KindOf(err))
}

func TestOverrides(t *testing.T) {
	r, err := NewRegistry(map[string]config.VariantOverride{
		"planilla-b2b": {
			Regions:          []string{"SCZ", "ORU"},
			DepartmentPolicy: "normalized",
			GroupBy:          "date",
			B2BValues:        []string{"MAYORISTA"},
		},
		"cubo-trabajos": {
			ClientsQuery:    "SELECT * FROM CUBO_TRABAJOS_V2",
			ClientKeyMode:   "extract",
			ScheduleKeyMode: "auto",
		},
	})
	require.NoError(t, err)

	p, err := r.Get("planilla-b2b")
	require.NoError(t, err)
	assert.Equal(t, "ORU77", p.Keys.ClientNormalizer.Normalize("zona oru77 sur"))
	assert.Equal(t, "", p.Keys.ClientNormalizer.Normalize("LPZ001"))
	assert.Equal(t, reconcile.DepartmentNormalized, p.Keys.Department)
	assert.Equal(t, report.ByDate, p.GroupBy)
	seg, err := p.Segments.Classify(dataset.Str("mayorista"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.B2B, seg)

	c, err := r.Get("cubo-trabajos")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM CUBO_TRABAJOS_V2", c.ClientsQuery)
	assert.Equal(t, nodekey.Extract, c.Keys.ClientNormalizer.Mode())
	assert.Equal(t, nodekey.Auto, c.Keys.ScheduleNormalizer.Mode())
}

func TestOverrideErrors(t *testing.T) {
	cases := map[string]config.VariantOverride{
		"nope":          {},
		"cartera-ip":    {DepartmentPolicy: "exact"},
		"planilla-b2b":  {PublicIPQuery: "SELECT 1"},
		"cubo-trabajos": {ClientKeyMode: "fuzzy"},
	}
	for name, o := range cases {
		_, err := NewRegistry(map[string]config.VariantOverride{name: o})
		assert.Error(t, err, name)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	a, err := r.Get("cartera-ip")
	require.NoError(t, err)
	a.Output[0].To = "CHANGED"
	a.PublicIP.FlagColumn = "CHANGED"

	b, err := r.Get("cartera-ip")
	require.NoError(t, err)
	assert.Equal(t, "NRO_CUENTA", b.Output[0].To)
	assert.Equal(t, "BANDERA_IP", b.PublicIP.FlagColumn)
}

func TestEngineAndWriterBindings(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	v, err := r.Get("cartera-ip")
	require.NoError(t, err)
	e := v.Engine(nil)
	assert.Equal(t, "BANDERA_IP", e.PublicIP)
	assert.Empty(t, e.SegmentSource)

	w := v.Writer(nil)
	assert.Equal(t, "FECHA_TRABAJO", w.DateColumn)
	assert.True(t, w.DropDateColumn)
}
