package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jalad-shrimali/node-filter/failure"
	"github.com/jalad-shrimali/node-filter/task"
)

/* ──────────── host-process contract: run <task> '<params-json>' ──────────── */

type runParams struct {
	Mode         string `json:"mode"`
	Variant      string `json:"variant"`
	FilterB2B    string `json:"filter_b2b"`
	IPFilter     string `json:"ip_filter"`
	SchedulePath string `json:"schedule_path"`
	ClientsPath  string `json:"clients_path"`
	OutputPath   string `json:"output_path"`
	GroupBy      string `json:"group_by"`
	MaxRows      int    `json:"max_rows"`
}

const (
	modePreview = "preview"
	modeExport  = "export"
)

// parseRunParams decodes the host params. Bare file names are resolved
// against the system temp dir, where the host drops uploads.
func parseRunParams(taskName, raw string) (string, task.Request, error) {
	if taskName != task.Name {
		return "", task.Request{}, failure.New(failure.KindInvalidRequest, "run", "unknown task %q", taskName)
	}
	var p runParams
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", task.Request{}, failure.Wrap(failure.KindInvalidRequest, "run", err, "parsing params")
	}

	mode := strings.ToLower(strings.TrimSpace(p.Mode))
	switch mode {
	case "":
		mode = modePreview
	case modePreview, modeExport:
	default:
		return "", task.Request{}, failure.New(failure.KindInvalidRequest, "run", "unknown mode %q", p.Mode)
	}
	if p.SchedulePath == "" {
		return "", task.Request{}, failure.New(failure.KindInvalidRequest, "run", "schedule_path is required")
	}

	filter := p.FilterB2B
	if filter == "" {
		filter = p.IPFilter
	}
	return mode, task.Request{
		Variant:      p.Variant,
		SchedulePath: hostPath(p.SchedulePath),
		ClientsPath:  hostPath(p.ClientsPath),
		Filter:       filter,
		GroupBy:      p.GroupBy,
		OutputPath:   p.OutputPath,
		MaxRows:      p.MaxRows,
	}, nil
}

func hostPath(p string) string {
	if p == "" || filepath.IsAbs(p) || strings.ContainsRune(p, filepath.Separator) {
		return p
	}
	return filepath.Join(os.TempDir(), p)
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run TASK PARAMS_JSON",
		Short: "Run a task with JSON params, as the desktop host does",
		Long: `Runs TASK (clients_by_node) with a JSON object of params:

  mode           preview (default) or export
  filter_b2b     all, b2b or b2c
  ip_filter      all, with_ip or without_ip
  schedule_path  schedule file; a bare name is looked up in the temp dir
  clients_path   clients file; empty reads the configured store
  output_path    export destination (default in the output dir)
  variant, group_by, max_rows are optional

Preview prints a JSON array; export prints {"status","path"}.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, req, err := parseRunParams(args[0], args[1])
			if err != nil {
				return err
			}
			svc, closeFn, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if mode == modeExport {
				res, err := svc.Export(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			}
			rows, err := svc.Preview(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
}
