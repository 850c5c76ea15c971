package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jalad-shrimali/node-filter/config"
	"github.com/jalad-shrimali/node-filter/failure"
	"github.com/jalad-shrimali/node-filter/source"
	"github.com/jalad-shrimali/node-filter/task"
	"github.com/jalad-shrimali/node-filter/variant"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		writeError(root.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "node-filter",
		Short: "Find the clients affected by scheduled node work",
		Long: `node-filter joins a maintenance schedule with a client dataset on the
normalized node code and returns the affected clients, either as a JSON
preview or as an Excel workbook with one sheet per work date or month.

Clients come from a spreadsheet, a CSV file, or the configured client store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML config file (default $NODEFILTER_CONFIG)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		a.previewCmd(),
		a.exportCmd(),
		a.columnsCmd(),
		a.variantsCmd(),
		a.runCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return failure.Wrap(failure.KindInvalidRequest, "config", err, "loading configuration")
	}
	logger, err := buildLogger(cfg, a.verbose, stderr)
	if err != nil {
		return failure.Wrap(failure.KindInvalidRequest, "config", err, "building logger")
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// service wires the façade. The returned close func releases the store.
func (a *app) service(ctx context.Context) (*task.Service, func(), error) {
	registry, err := variant.NewRegistry(a.cfg.Variants)
	if err != nil {
		return nil, nil, err
	}
	var db *sqlx.DB
	closeFn := func() {}
	if a.cfg.Database != nil {
		if db, err = source.OpenStore(ctx, a.cfg.Database, a.logger); err != nil {
			return nil, nil, err
		}
		closeFn = func() { _ = db.Close() }
	}
	return task.NewService(a.cfg, registry, db, a.logger), closeFn, nil
}

// offlineService never touches the client store. Commands that only read
// a file header or the variant registry use it so a down store does not
// block them.
func (a *app) offlineService() (*task.Service, error) {
	registry, err := variant.NewRegistry(a.cfg.Variants)
	if err != nil {
		return nil, err
	}
	return task.NewService(a.cfg, registry, nil, a.logger), nil
}

// buildLogger writes to stderr only; stdout carries the payload.
func buildLogger(cfg *config.Config, verbose bool, stderr io.Writer) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		l, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
		}
		level = l
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	var enc zapcore.Encoder
	if strings.EqualFold(cfg.LogFormat, "console") {
		ec := zap.NewDevelopmentEncoderConfig()
		enc = zapcore.NewConsoleEncoder(ec)
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(stderr)), level)
	return zap.New(core, zap.AddCaller()).Named("node-filter"), nil
}

/* ──────────── output ──────────── */

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

type errorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w io.Writer, err error) {
	kind := failure.KindOf(err)
	if kind == failure.KindUnknown && !isFailure(err) {
		// flag and argument errors from cobra
		kind = failure.KindInvalidRequest
	}
	_ = writeJSON(w, errorPayload{Error: err.Error(), Kind: kind.String()})
}

func isFailure(err error) bool {
	var fe *failure.Error
	return errors.As(err, &fe)
}
