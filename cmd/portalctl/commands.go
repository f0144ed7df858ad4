package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/service"
)

type dashboardSource interface {
	BuildQuery(req dto.DashboardQuery, claims *models.PortalClaims) (service.Query, error)
	Dashboard(ctx context.Context, q service.Query) (*dto.DashboardResponse, bool, error)
	Audit(ctx context.Context) (*dto.AuditResults, error)
}

type exporter interface {
	Export(ctx context.Context, q service.Query, format, table string) (*service.ExportFile, error)
}

type deps struct {
	dashboards dashboardSource
	exports    exporter
	purge      func(context.Context) error
	logger     *zap.Logger
}

type connector func(context.Context) (*deps, error)

// operator is the identity the CLI reads the portal as.
var operator = &models.PortalClaims{UserID: "portalctl", Role: models.RoleAdmin}

type selection struct {
	weeks    []string
	director string
	clinic   string
	client   string
}

func (s *selection) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&s.weeks, "week", nil, "week start dates (YYYY-MM-DD), repeatable")
	cmd.Flags().StringVar(&s.director, "director", "", "director id")
	cmd.Flags().StringVar(&s.clinic, "clinic", "", "clinic name")
	cmd.Flags().StringVar(&s.client, "client", "", "client name")
}

func (s *selection) query(d *deps) (service.Query, error) {
	return d.dashboards.BuildQuery(dto.DashboardQuery{
		Weeks:      s.weeks,
		DirectorID: s.director,
		Clinic:     s.clinic,
		Client:     s.client,
	}, operator)
}

func newRootCommand(ctx context.Context, connect connector) *cobra.Command {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Inspect clinic portal dashboards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReportCommand(ctx, connect), newExportCommand(ctx, connect), newAuditCommand(ctx, connect), newPurgeCommand(ctx, connect))
	return root
}

func newReportCommand(ctx context.Context, connect connector) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:       "report <clinics|clients|students|missing|quick-stats>",
		Short:     "Print a dashboard table",
		ValidArgs: []string{"clinics", "clients", "students", "missing", "quick-stats"},
		Args:      cobra.ExactValidArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.close()
			q, err := sel.query(d)
			if err != nil {
				return err
			}
			resp, _, err := d.dashboards.Dashboard(ctx, q)
			if err != nil {
				return err
			}
			if len(resp.Degraded) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: incomplete data from %s\n", strings.Join(resp.Degraded, ", "))
			}
			if args[0] == "quick-stats" {
				return printQuickStats(cmd, resp.QuickStats)
			}
			table, err := service.Table(resp, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(table.Labels(), "\t"))
			for _, row := range table.Rows {
				fmt.Fprintln(w, strings.Join(row, "\t"))
			}
			return w.Flush()
		},
	}
	sel.bind(cmd)
	return cmd
}

func printQuickStats(cmd *cobra.Command, s dto.QuickStats) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Total hours\t%.1f\t%s\n", s.TotalHours, s.HoursChangeLabel)
	fmt.Fprintf(w, "Active students\t%d\t%s\n", s.ActiveStudents, s.StudentsChangeLabel)
	fmt.Fprintf(w, "Active clients\t%d\t\n", s.ActiveClients)
	fmt.Fprintf(w, "Debriefs submitted\t%d\t\n", s.DebriefsSubmitted)
	fmt.Fprintf(w, "Pending reviews\t%d\t\n", s.PendingReviews)
	fmt.Fprintf(w, "Completion rate\t%d%%\t\n", s.CompletionRate)
	fmt.Fprintf(w, "Avg hours per student\t%.1f\t\n", s.AvgHoursPerStudent)
	return w.Flush()
}

func newExportCommand(ctx context.Context, connect connector) *cobra.Command {
	var (
		sel    selection
		format string
		table  string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a dashboard table as CSV or PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.close()
			q, err := sel.query(d)
			if err != nil {
				return err
			}
			file, err := d.exports.Export(ctx, q, format, table)
			if err != nil {
				return err
			}
			if out == "" {
				out = file.FileName
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(file.Data)
				return err
			}
			if err := os.WriteFile(out, file.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(file.Data))
			return nil
		},
	}
	sel.bind(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "csv or pdf")
	cmd.Flags().StringVar(&table, "table", service.ExportClients, "clinics, clients, students or missing")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path, - for stdout")
	return cmd
}

func newAuditCommand(ctx context.Context, connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Print roster integrity counts as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.close()
			results, err := d.dashboards.Audit(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}

func newPurgeCommand(ctx context.Context, connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-cache",
		Short: "Drop every cached portal view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.close()
			if d.purge == nil {
				return nil
			}
			if err := d.purge(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache purged")
			return nil
		},
	}
}
