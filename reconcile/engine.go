// Package reconcile joins the client roster against the work schedule on
// normalized node keys and produces the affected-clients table.
package reconcile

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
	"github.com/jalad-shrimali/node-filter/nodekey"
)

// Derived columns added to joined rows.
const (
	KeyColumn     = "NODO_NORMALIZADO"
	SegmentColumn = "SEGMENTO"
)

// suffix applied to schedule columns whose name clashes with a client column
const scheduleSuffix = "_TRABAJO"

// DepartmentPolicy controls the secondary join key.
type DepartmentPolicy int

const (
	// DepartmentIgnore joins on the node key alone.
	DepartmentIgnore DepartmentPolicy = iota
	// DepartmentExact requires identical trimmed text.
	DepartmentExact
	// DepartmentNormalized compares case-, space- and accent-insensitively.
	DepartmentNormalized
)

// ParseDepartmentPolicy maps a config value.
func ParseDepartmentPolicy(s string) (DepartmentPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore", "none":
		return DepartmentIgnore, nil
	case "exact":
		return DepartmentExact, nil
	case "normalized", "normalised":
		return DepartmentNormalized, nil
	}
	return DepartmentIgnore, errors.New("unknown department policy " + s)
}

// KeySpec binds the join columns of both datasets.
type KeySpec struct {
	// Raw node/site label columns.
	ClientKey   string
	ScheduleKey string

	ClientNormalizer   *nodekey.Normalizer
	ScheduleNormalizer *nodekey.Normalizer

	// Optional secondary key; used unless Department is DepartmentIgnore.
	ClientDepartment   string
	ScheduleDepartment string
	Department         DepartmentPolicy

	ScheduleDate string
	Account      string
}

// Rename maps a joined column to its output name.
type Rename struct {
	From string
	To   string
}

// Stats counts rows at each stage. Clients without an account id are kept
// and counted in ClientsWithoutAccount; they skip duplicate detection.
type Stats struct {
	Clients               int
	ClientsWithoutKey     int
	ClientsDuplicate      int
	ClientsWithoutAccount int
	ClientsFiltered       int
	Schedule              int
	ScheduleWithoutKey    int
	ScheduleBadDate       int
	ScheduleDuplicate     int
	Joined                int
}

// Fields renders the stats for structured logs.
func (s Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("clients", s.Clients),
		zap.Int("clients_without_key", s.ClientsWithoutKey),
		zap.Int("clients_duplicate", s.ClientsDuplicate),
		zap.Int("clients_without_account", s.ClientsWithoutAccount),
		zap.Int("clients_after_filter", s.ClientsFiltered),
		zap.Int("schedule", s.Schedule),
		zap.Int("schedule_without_key", s.ScheduleWithoutKey),
		zap.Int("schedule_bad_date", s.ScheduleBadDate),
		zap.Int("schedule_duplicate", s.ScheduleDuplicate),
		zap.Int("joined", s.Joined),
	}
}

// Engine holds the column bindings that do not change between requests.
type Engine struct {
	logger *zap.Logger

	// SegmentSource is the raw classification column; empty disables segment filters.
	SegmentSource string
	Segments      *SegmentTable
	// PublicIP is the flag column; empty disables public IP filters.
	PublicIP string
	Output   []Rename
}

// NewEngine creates an engine. A nil logger is replaced by a no-op logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger.Named("reconcile")}
}

type scheduleEntry struct {
	row  dataset.Row
	key  string
	date time.Time
}

type joinedRow struct {
	row     dataset.Row
	key     string
	date    time.Time
	account dataset.Value
}

// Reconcile joins clients with schedule and returns the projected, ordered result.
// An empty join is an EmptyResult failure.
func (e *Engine) Reconcile(ctx context.Context, clients, schedule *dataset.Table, mode FilterMode, keys KeySpec) (*dataset.Table, Stats, error) {
	var st Stats

	keep, err := resolvePredicate(mode, filterEnv{
		segmentColumn:  e.SegmentSource,
		publicIPColumn: e.PublicIP,
	})
	if err != nil {
		return nil, st, err
	}
	if err := checkKeys(keys, clients, schedule); err != nil {
		return nil, st, err
	}

	entries, err := e.prepareSchedule(ctx, schedule, keys, &st)
	if err != nil {
		return nil, st, err
	}

	index := make(map[string][]scheduleEntry, len(entries))
	for _, en := range entries {
		jk := joinKey(en.key, en.row.Text(keys.ScheduleDepartment), keys.Department)
		index[jk] = append(index[jk], en)
	}

	st.Clients = clients.Len()
	seen := make(map[string]bool, clients.Len())
	var joined []joinedRow
	for i, src := range clients.Rows {
		if i%1000 == 0 {
			if err := ctxErr(ctx, "reconcile"); err != nil {
				return nil, st, err
			}
		}
		key := keys.ClientNormalizer.Normalize(src.Text(keys.ClientKey))
		if key == "" {
			st.ClientsWithoutKey++
			continue
		}
		account := src.Get(keys.Account)
		// rows without an account id cannot be told apart and are all kept
		if acc := strings.TrimSpace(account.String()); acc != "" {
			dedup := key + "\x00" + acc
			if seen[dedup] {
				st.ClientsDuplicate++
				continue
			}
			seen[dedup] = true
		} else {
			st.ClientsWithoutAccount++
		}

		row := src.Clone()
		row[KeyColumn] = dataset.Str(key)
		if e.SegmentSource != "" {
			seg, err := e.Segments.Classify(src.Get(e.SegmentSource))
			if err != nil {
				return nil, st, failure.Wrap(failure.KindSchemaMismatch, "reconcile", err,
					"column %s, account %s", e.SegmentSource, account.String())
			}
			row[SegmentColumn] = dataset.Str(string(seg))
		}
		ok, err := keep(row)
		if err != nil {
			if failure.KindOf(err) != failure.KindUnknown {
				return nil, st, err
			}
			return nil, st, failure.Wrap(failure.KindInvalidFilter, "reconcile", err, "filter %s", mode)
		}
		if !ok {
			continue
		}
		st.ClientsFiltered++

		jk := joinKey(key, src.Text(keys.ClientDepartment), keys.Department)
		for _, en := range index[jk] {
			joined = append(joined, joinedRow{
				row:     merge(row, en.row, keys, en.date),
				key:     key,
				date:    en.date,
				account: account,
			})
		}
	}
	st.Joined = len(joined)
	if st.ClientsWithoutAccount > 0 {
		e.logger.Info("Clients without account id kept", zap.Int("count", st.ClientsWithoutAccount))
	}

	e.logger.Debug("Join finished", st.Fields()...)

	if len(joined) == 0 {
		return nil, st, failure.New(failure.KindEmptyResult, "reconcile",
			"no clients matched the scheduled nodes with filter %q (%d clients after filter, %d schedule rows)",
			mode, st.ClientsFiltered, len(entries))
	}

	sort.SliceStable(joined, func(i, j int) bool {
		a, b := joined[i], joined[j]
		if !a.date.Equal(b.date) {
			return a.date.Before(b.date)
		}
		if a.key != b.key {
			return a.key < b.key
		}
		return lessAccount(a.account, b.account)
	})

	return e.project(clients, schedule, joined), st, nil
}

func (e *Engine) prepareSchedule(ctx context.Context, schedule *dataset.Table, keys KeySpec, st *Stats) ([]scheduleEntry, error) {
	st.Schedule = schedule.Len()
	entries := make([]scheduleEntry, 0, schedule.Len())
	seen := make(map[string]bool, schedule.Len())
	for i, r := range schedule.Rows {
		if i%1000 == 0 {
			if err := ctxErr(ctx, "reconcile"); err != nil {
				return nil, err
			}
		}
		date, ok := dataset.ParseDate(r.Get(keys.ScheduleDate))
		if !ok {
			st.ScheduleBadDate++
			continue
		}
		key := keys.ScheduleNormalizer.Normalize(r.Text(keys.ScheduleKey))
		if key == "" {
			st.ScheduleWithoutKey++
			continue
		}
		d := joinKey(key, r.Text(keys.ScheduleDepartment), keys.Department) + "\x00" + date.Format(dataset.DateLayout)
		if seen[d] {
			st.ScheduleDuplicate++
			continue
		}
		seen[d] = true
		entries = append(entries, scheduleEntry{row: r, key: key, date: date})
	}
	if st.ScheduleBadDate > 0 || st.ScheduleWithoutKey > 0 {
		e.logger.Info("Schedule rows excluded",
			zap.Int("bad_date", st.ScheduleBadDate),
			zap.Int("without_key", st.ScheduleWithoutKey))
	}
	return entries, nil
}

func merge(client, sched dataset.Row, keys KeySpec, date time.Time) dataset.Row {
	out := client.Clone()
	for k, v := range sched {
		if k == keys.ScheduleDate {
			v = dataset.DateOf(date)
		}
		if _, clash := out[k]; clash {
			out[k+scheduleSuffix] = v
			continue
		}
		out[k] = v
	}
	return out
}

// joinedColumns is the header of a merged row before projection.
func joinedColumns(clients, schedule *dataset.Table) map[string]bool {
	cols := make(map[string]bool, len(clients.Columns)+len(schedule.Columns)+2)
	for _, c := range clients.Columns {
		cols[c] = true
	}
	cols[KeyColumn] = true
	cols[SegmentColumn] = true
	for _, c := range schedule.Columns {
		if cols[c] {
			cols[c+scheduleSuffix] = true
			continue
		}
		cols[c] = true
	}
	return cols
}

func (e *Engine) project(clients, schedule *dataset.Table, joined []joinedRow) *dataset.Table {
	present := joinedColumns(clients, schedule)
	var (
		header []string
		picks  []Rename
	)
	for _, r := range e.Output {
		if !present[r.From] {
			continue
		}
		picks = append(picks, r)
		header = append(header, r.To)
	}
	if len(picks) == 0 {
		// No rename table: keep every merged column.
		for _, c := range clients.Columns {
			picks = append(picks, Rename{From: c, To: c})
		}
		picks = append(picks, Rename{From: KeyColumn, To: KeyColumn})
		if e.SegmentSource != "" {
			picks = append(picks, Rename{From: SegmentColumn, To: SegmentColumn})
		}
		for _, c := range schedule.Columns {
			name := c
			if clients.Has(c) {
				name = c + scheduleSuffix
			}
			picks = append(picks, Rename{From: name, To: name})
		}
		for _, p := range picks {
			header = append(header, p.To)
		}
	}

	out := dataset.New("reconciled", header)
	for _, j := range joined {
		row := make(dataset.Row, len(picks))
		for _, p := range picks {
			row[p.To] = j.row.Get(p.From)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Enrich left-joins a per-account flag table onto clients. Accounts missing
// from flags get PublicIPAbsent.
func (e *Engine) Enrich(clients, flags *dataset.Table, spec EnrichSpec) (*dataset.Table, error) {
	for _, c := range []string{spec.FlagAccount, spec.FlagColumn} {
		if !flags.Has(c) {
			return nil, failure.Missing("enrich", []string{c})
		}
	}
	if !clients.Has(spec.ClientAccount) {
		return nil, failure.Missing("enrich", []string{spec.ClientAccount})
	}

	byAccount := make(map[string]dataset.Value, flags.Len())
	for _, r := range flags.Rows {
		acc := r.Text(spec.FlagAccount)
		if acc == "" {
			continue
		}
		if _, dup := byAccount[acc]; dup {
			continue
		}
		present, err := ParsePublicIP(r.Text(spec.FlagColumn))
		if err != nil {
			return nil, failure.Wrap(failure.KindSchemaMismatch, "enrich", err,
				"column %s, account %s", spec.FlagColumn, acc)
		}
		byAccount[acc] = publicIPValue(present)
	}

	out := clients.Clone()
	out.AddColumn(spec.FlagColumn)
	matched := 0
	for _, r := range out.Rows {
		if v, ok := byAccount[r.Text(spec.ClientAccount)]; ok {
			r[spec.FlagColumn] = v
			matched++
			continue
		}
		r[spec.FlagColumn] = publicIPValue(false)
	}
	e.logger.Info("Public IP flags merged",
		zap.Int("clients", out.Len()),
		zap.Int("flag_rows", flags.Len()),
		zap.Int("matched", matched))
	return out, nil
}

// EnrichSpec binds the flag table columns.
type EnrichSpec struct {
	ClientAccount string
	FlagAccount   string
	FlagColumn    string
}

func checkKeys(keys KeySpec, clients, schedule *dataset.Table) error {
	if keys.ClientNormalizer == nil || keys.ScheduleNormalizer == nil {
		return failure.New(failure.KindInvalidRequest, "reconcile", "key normalizers are required")
	}
	clientCols := []string{keys.ClientKey, keys.Account}
	scheduleCols := []string{keys.ScheduleKey, keys.ScheduleDate}
	if keys.Department != DepartmentIgnore {
		clientCols = append(clientCols, keys.ClientDepartment)
		scheduleCols = append(scheduleCols, keys.ScheduleDepartment)
	}
	if m := clients.Missing(clientCols); len(m) > 0 {
		return failure.Missing("reconcile clients", m)
	}
	if m := schedule.Missing(scheduleCols); len(m) > 0 {
		return failure.Missing("reconcile schedule", m)
	}
	return nil
}

func joinKey(key, dept string, policy DepartmentPolicy) string {
	switch policy {
	case DepartmentExact:
		return key + "\x00" + strings.TrimSpace(dept)
	case DepartmentNormalized:
		return key + "\x00" + normalizeDepartment(dept)
	}
	return key
}

func normalizeDepartment(s string) string {
	// transformers are stateful; one chain per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}

func lessAccount(a, b dataset.Value) bool {
	af, aok := a.Float()
	bf, bok := b.Float()
	if aok && bok {
		return af < bf
	}
	if aok != bok {
		// numbers before text
		return aok
	}
	return a.String() < b.String()
}

func ctxErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return failure.Wrap(failure.KindTimeout, op, err, "request cancelled")
	}
	return nil
}
