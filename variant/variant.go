// Package variant binds each known client/schedule layout to the columns,
// key strategies, filters and output shape the pipeline needs.
package variant

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jalad-shrimali/node-filter/config"
	"github.com/jalad-shrimali/node-filter/failure"
	"github.com/jalad-shrimali/node-filter/nodekey"
	"github.com/jalad-shrimali/node-filter/reconcile"
	"github.com/jalad-shrimali/node-filter/report"
)

// Variant is one historical layout of the client roster and schedule.
type Variant struct {
	Name        string
	Description string

	// Required columns, checked after aliases are applied.
	ClientColumns   []string
	ScheduleColumns []string
	// Header aliases (compared case-insensitively) to canonical names.
	ClientAliases   map[string]string
	ScheduleAliases map[string]string

	// ClientsQuery reads the roster from the store when no clients file is given.
	ClientsQuery string
	// PublicIPQuery and PublicIP enable the public IP merge.
	PublicIPQuery string
	PublicIP      *reconcile.EnrichSpec

	Keys          reconcile.KeySpec
	SegmentSource string
	Segments      *reconcile.SegmentTable
	Output        []reconcile.Rename

	GroupBy report.GroupBy
	// DateColumn is the output column carrying the work date.
	DateColumn string
	// DropDateOnExport leaves DateColumn out of exported sheets.
	DropDateOnExport bool
}

// UsesStore reports whether the variant can read clients from the store.
func (v *Variant) UsesStore() bool { return v.ClientsQuery != "" }

// Engine returns a reconciliation engine bound to the variant's columns.
func (v *Variant) Engine(logger *zap.Logger) *reconcile.Engine {
	e := reconcile.NewEngine(logger)
	e.SegmentSource = v.SegmentSource
	e.Segments = v.Segments
	if v.PublicIP != nil {
		e.PublicIP = v.PublicIP.FlagColumn
	}
	e.Output = v.Output
	return e
}

// Writer returns a report writer grouping on the variant's date column.
func (v *Variant) Writer(logger *zap.Logger) *report.Writer {
	w := report.NewWriter(logger, v.DateColumn)
	w.DropDateColumn = v.DropDateOnExport
	return w
}

// Filters lists the filter modes the variant can serve.
func (v *Variant) Filters() []reconcile.FilterMode {
	out := []reconcile.FilterMode{reconcile.FilterAll}
	if v.SegmentSource != "" {
		out = append(out, reconcile.FilterB2BOnly, reconcile.FilterB2COnly)
	}
	if v.PublicIP != nil {
		out = append(out, reconcile.FilterHasPublicIP, reconcile.FilterLacksPublicIP)
	}
	return out
}

func (v *Variant) clone() *Variant {
	c := *v
	c.ClientColumns = append([]string(nil), v.ClientColumns...)
	c.ScheduleColumns = append([]string(nil), v.ScheduleColumns...)
	c.Output = append([]reconcile.Rename(nil), v.Output...)
	if v.PublicIP != nil {
		ip := *v.PublicIP
		c.PublicIP = &ip
	}
	return &c
}

// apply merges a config override into v.
func (v *Variant) apply(o config.VariantOverride) error {
	if q := strings.TrimSpace(o.ClientsQuery); q != "" {
		v.ClientsQuery = q
	}
	if q := strings.TrimSpace(o.PublicIPQuery); q != "" {
		if v.PublicIP == nil {
			return fmt.Errorf("%s has no public IP flag to query", v.Name)
		}
		v.PublicIPQuery = q
	}

	clientMode, scheduleMode := v.Keys.ClientNormalizer.Mode(), v.Keys.ScheduleNormalizer.Mode()
	var err error
	if o.ClientKeyMode != "" {
		if clientMode, err = nodekey.ParseMode(o.ClientKeyMode); err != nil {
			return err
		}
	}
	if o.ScheduleKeyMode != "" {
		if scheduleMode, err = nodekey.ParseMode(o.ScheduleKeyMode); err != nil {
			return err
		}
	}
	if v.Keys.ClientNormalizer, err = nodekey.NewWithRegions(clientMode, o.Regions); err != nil {
		return err
	}
	if v.Keys.ScheduleNormalizer, err = nodekey.NewWithRegions(scheduleMode, o.Regions); err != nil {
		return err
	}

	if o.DepartmentPolicy != "" {
		if v.Keys.ClientDepartment == "" {
			return fmt.Errorf("%s has no department column", v.Name)
		}
		if v.Keys.Department, err = reconcile.ParseDepartmentPolicy(o.DepartmentPolicy); err != nil {
			return err
		}
	}
	if v.GroupBy, err = report.ParseGroupBy(o.GroupBy, v.GroupBy); err != nil {
		return err
	}
	if len(o.B2BValues) > 0 || len(o.B2CValues) > 0 {
		if v.Segments == nil {
			return fmt.Errorf("%s has no segment column", v.Name)
		}
		if v.Segments, err = v.Segments.Extend(o.B2BValues, o.B2CValues); err != nil {
			return err
		}
	}
	return nil
}

// Registry holds the built-in variants with config overrides applied.
type Registry struct {
	variants map[string]*Variant
}

var builtins = []func() *Variant{
	carteraIP,
	cuboTrabajos,
	planillaB2B,
}

// NewRegistry builds the registry. Overrides naming an unknown variant are errors.
func NewRegistry(overrides map[string]config.VariantOverride) (*Registry, error) {
	r := &Registry{variants: make(map[string]*Variant, len(builtins))}
	for _, b := range builtins {
		v := b()
		r.variants[v.Name] = v
	}
	for name, o := range overrides {
		v, ok := r.variants[name]
		if !ok {
			return nil, fmt.Errorf("override for unknown variant %q", name)
		}
		if err := v.apply(o); err != nil {
			return nil, fmt.Errorf("variant %s: %w", name, err)
		}
	}
	return r, nil
}

// Get returns a copy of the named variant, safe to adjust per request.
func (r *Registry) Get(name string) (*Variant, error) {
	v, ok := r.variants[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, failure.New(failure.KindInvalidRequest, "variant",
			"unknown variant %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return v.clone(), nil
}

// Names lists registered variants, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.variants))
	for n := range r.variants {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
