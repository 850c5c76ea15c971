// Package task is the entry point shared by the CLI and the HTTP server:
// it loads both datasets, reconciles them and previews or exports the result.
package task

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jalad-shrimali/node-filter/config"
	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
	"github.com/jalad-shrimali/node-filter/reconcile"
	"github.com/jalad-shrimali/node-filter/report"
	"github.com/jalad-shrimali/node-filter/source"
	"github.com/jalad-shrimali/node-filter/variant"
)

// Name is the task name used in default export file names.
const Name = "clients_by_node"

// Request carries one preview or export call.
type Request struct {
	Variant      string `json:"variant,omitempty"`
	SchedulePath string `json:"schedule_path"`
	// ClientsPath may be empty when the variant reads clients from the store.
	ClientsPath string `json:"clients_path,omitempty"`
	Filter      string `json:"filter,omitempty"`
	GroupBy     string `json:"group_by,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
	MaxRows     int    `json:"max_rows,omitempty"`
	// Timeout overrides the configured request timeout.
	Timeout time.Duration `json:"-"`
}

// ExportResult describes a written workbook.
type ExportResult struct {
	Status string   `json:"status"`
	Path   string   `json:"path"`
	Sheets []string `json:"sheets,omitempty"`
	Rows   int      `json:"rows"`
}

// Service runs requests. It is safe for concurrent use; every request gets
// its own datasets.
type Service struct {
	cfg      *config.Config
	registry *variant.Registry
	db       *sqlx.DB
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires a service. db may be nil when no client store is configured.
func NewService(cfg *config.Config, registry *variant.Registry, db *sqlx.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		registry: registry,
		db:       db,
		logger:   logger.Named("task"),
		now:      time.Now,
	}
}

// Preview returns at most MaxRows reconciled rows in engine order.
func (s *Service) Preview(ctx context.Context, req Request) ([]map[string]any, error) {
	ctx, cancel := s.withTimeout(ctx, req)
	defer cancel()
	log := s.logger.With(zap.String("request_id", uuid.NewString()), zap.String("mode", "preview"))

	out, _, err := s.reconcile(ctx, log, req)
	if err != nil {
		return nil, s.fail(ctx, log, err)
	}

	limit := req.MaxRows
	if limit <= 0 {
		limit = s.cfg.PreviewRows
	}
	if limit <= 0 {
		limit = 20
	}
	rows := out.Head(limit).Records()
	log.Info("Preview ready", zap.Int("rows", len(rows)), zap.Int("total", out.Len()))
	return rows, nil
}

// Export writes the grouped workbook. An empty OutputPath writes
// <OutputDir>/clients_by_node_resultado_<unix>.xlsx.
func (s *Service) Export(ctx context.Context, req Request) (ExportResult, error) {
	ctx, cancel := s.withTimeout(ctx, req)
	defer cancel()
	log := s.logger.With(zap.String("request_id", uuid.NewString()), zap.String("mode", "export"))

	out, v, err := s.reconcile(ctx, log, req)
	if err != nil {
		return ExportResult{}, s.fail(ctx, log, err)
	}

	groupBy, err := report.ParseGroupBy(req.GroupBy, v.GroupBy)
	if err != nil {
		return ExportResult{}, s.fail(ctx, log, err)
	}
	path := req.OutputPath
	if path == "" {
		path = filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%s_resultado_%d.xlsx", Name, s.now().Unix()))
	}

	res, err := v.Writer(log).WriteGroupedReport(ctx, out, groupBy, path)
	if err != nil {
		return ExportResult{}, s.fail(ctx, log, err)
	}
	return ExportResult{Status: res.Status, Path: res.Path, Sheets: res.Sheets, Rows: out.Len()}, nil
}

// Columns lists the header of a schedule or clients file.
func (s *Service) Columns(ctx context.Context, path string) ([]string, error) {
	if path == "" {
		return nil, failure.New(failure.KindInvalidRequest, "columns", "a file path is required")
	}
	src, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	return source.ListColumns(ctx, src)
}

// Variants exposes the registry for listings.
func (s *Service) Variants() *variant.Registry { return s.registry }

func (s *Service) withTimeout(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	d := req.Timeout
	if d <= 0 {
		d = s.cfg.Timeout
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *Service) reconcile(ctx context.Context, log *zap.Logger, req Request) (*dataset.Table, *variant.Variant, error) {
	if req.SchedulePath == "" {
		return nil, nil, failure.New(failure.KindInvalidRequest, "request", "schedule_path is required")
	}
	name := req.Variant
	if name == "" {
		name = s.cfg.Variant
	}
	v, err := s.registry.Get(name)
	if err != nil {
		return nil, nil, err
	}
	log = log.With(zap.String("variant", v.Name))

	schedSrc, err := source.Open(req.SchedulePath)
	if err != nil {
		return nil, nil, err
	}
	schedule, err := source.Load(ctx, schedSrc, v.ScheduleColumns, source.WithAliases(v.ScheduleAliases))
	if err != nil {
		return nil, nil, err
	}
	log.Info("Schedule loaded", zap.String("source", schedSrc.Name()), zap.Int("rows", schedule.Len()))

	clients, err := s.loadClients(ctx, log, v, req.ClientsPath)
	if err != nil {
		return nil, nil, err
	}

	engine := v.Engine(log)
	if v.PublicIP != nil && !clients.Has(v.PublicIP.FlagColumn) {
		flags, err := s.loadPublicIP(ctx, log, v)
		if err != nil {
			return nil, nil, err
		}
		if clients, err = engine.Enrich(clients, flags, *v.PublicIP); err != nil {
			return nil, nil, err
		}
	}

	out, stats, err := engine.Reconcile(ctx, clients, schedule, reconcile.FilterMode(req.Filter), v.Keys)
	log.Info("Reconciliation finished", stats.Fields()...)
	if err != nil {
		return nil, nil, err
	}
	return out, v, nil
}

func (s *Service) loadClients(ctx context.Context, log *zap.Logger, v *variant.Variant, path string) (*dataset.Table, error) {
	var src source.TabularSource
	switch {
	case path != "":
		var err error
		if src, err = source.Open(path); err != nil {
			return nil, err
		}
	case v.UsesStore() && s.db != nil:
		src = s.query(v.Name+" clients", v.ClientsQuery)
	case v.UsesStore():
		return nil, failure.New(failure.KindInvalidRequest, "request",
			"clients_path is required: no client store is configured")
	default:
		return nil, failure.New(failure.KindInvalidRequest, "request",
			"clients_path is required for variant %s", v.Name)
	}

	clients, err := source.Load(ctx, src, v.ClientColumns, source.WithAliases(v.ClientAliases))
	if err != nil {
		return nil, err
	}
	log.Info("Clients loaded", zap.String("source", src.Name()), zap.Int("rows", clients.Len()))
	return clients, nil
}

// loadPublicIP reads the flag view, or returns an empty table so that every
// account defaults to absent.
func (s *Service) loadPublicIP(ctx context.Context, log *zap.Logger, v *variant.Variant) (*dataset.Table, error) {
	cols := []string{v.PublicIP.FlagAccount, v.PublicIP.FlagColumn}
	if s.db == nil || v.PublicIPQuery == "" {
		log.Warn("No public IP source; all accounts default to absent",
			zap.String("default", reconcile.PublicIPAbsent))
		return dataset.New("public_ip", cols), nil
	}
	return source.Load(ctx, s.query(v.Name+" public IP", v.PublicIPQuery), cols)
}

func (s *Service) query(label, sql string) *source.Query {
	q := &source.Query{DB: s.db, Label: label, SQL: sql}
	if s.cfg.Database != nil {
		q.Timeout = s.cfg.Database.QueryTimeout
	}
	return q
}

// fail turns an expired request into Timeout and logs the failure once.
func (s *Service) fail(ctx context.Context, log *zap.Logger, err error) error {
	if ctx.Err() != nil && failure.KindOf(err) != failure.KindTimeout {
		err = failure.Wrap(failure.KindTimeout, "task", err, "request exceeded its time limit")
	}
	var fe *failure.Error
	if !errors.As(err, &fe) {
		err = failure.Wrap(failure.KindUnknown, "task", err, "unexpected failure")
	}
	log.Warn("Request failed", zap.String("kind", failure.KindOf(err).String()), zap.Error(err))
	return err
}
