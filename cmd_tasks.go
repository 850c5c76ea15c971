package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jalad-shrimali/node-filter/reconcile"
	"github.com/jalad-shrimali/node-filter/server"
	"github.com/jalad-shrimali/node-filter/task"
)

// requestFlags binds the flags shared by preview and export.
func requestFlags(cmd *cobra.Command, req *task.Request) {
	cmd.Flags().StringVar(&req.SchedulePath, "schedule", "", "Maintenance schedule file (.xlsx or .csv)")
	cmd.Flags().StringVar(&req.ClientsPath, "clients", "", "Client file; empty reads the configured store")
	cmd.Flags().StringVar(&req.Filter, "filter", "", "Client filter ("+fmt.Sprint(reconcile.FilterModes())+")")
	cmd.Flags().StringVar(&req.Variant, "variant", "", "Schema variant (default from config)")
	cmd.Flags().DurationVar(&req.Timeout, "timeout", 0, "Request time limit (default from config)")
	_ = cmd.MarkFlagRequired("schedule")
}

func (a *app) previewCmd() *cobra.Command {
	var req task.Request
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the first affected clients as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			rows, err := svc.Preview(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	requestFlags(cmd, &req)
	cmd.Flags().IntVar(&req.MaxRows, "max-rows", 0, "Rows to print (default from config)")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var req task.Request
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the affected clients to a grouped workbook",
		Long: `Writes one sheet per work date (or month) and prints {"status","path"}.
Without --output the workbook goes to the output dir as
clients_by_node_resultado_<unix>.xlsx.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	requestFlags(cmd, &req)
	cmd.Flags().StringVar(&req.OutputPath, "output", "", "Workbook path (.xlsx)")
	cmd.Flags().StringVar(&req.GroupBy, "group-by", "", "Sheet grouping: date or month (default from variant)")
	return cmd
}

func (a *app) columnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns FILE",
		Short: "List the header of a schedule or clients file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.offlineService()
			if err != nil {
				return err
			}

			cols, err := svc.Columns(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cols)
		},
	}
}

type variantInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Store       bool     `json:"store"`
	GroupBy     string   `json:"group_by"`
	Filters     []string `json:"filters"`
}

func (a *app) variantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List schema variants and the filters each accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.offlineService()
			if err != nil {
				return err
			}

			reg := svc.Variants()
			var out []variantInfo
			for _, name := range reg.Names() {
				v, err := reg.Get(name)
				if err != nil {
					return err
				}
				info := variantInfo{
					Name:        v.Name,
					Description: v.Description,
					Store:       v.UsesStore(),
					GroupBy:     string(v.GroupBy),
				}
				for _, f := range v.Filters() {
					info.Filters = append(info.Filters, string(f))
				}
				out = append(out, info)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve preview, export and download over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			return server.New(svc, a.cfg.OutputDir, a.logger, a.verbose).Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}
