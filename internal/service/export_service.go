package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/export"
)

// Exportable dashboard tables.
const (
	ExportClinics  = "clinics"
	ExportClients  = "clients"
	ExportStudents = "students"
	ExportMissing  = "missing"
)

type tableWriter interface {
	Write(w io.Writer, t export.Table) error
	ContentType() string
	Extension() string
}

// ExportFile is a rendered export ready to be sent.
type ExportFile struct {
	ID          string
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders dashboard tables as CSV or PDF.
type ExportService struct {
	dashboards dashboardBuilder
	writers    map[string]tableWriter
	logger     *zap.Logger
}

// NewExportService constructs an ExportService. Nil writers fall back to the
// package defaults.
func NewExportService(dashboards dashboardBuilder, csv, pdf tableWriter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		dashboards: dashboards,
		writers:    map[string]tableWriter{"csv": csv, "pdf": pdf},
		logger:     logger,
	}
}

// Export builds the dashboard for q and renders one of its tables.
func (s *ExportService) Export(ctx context.Context, q Query, format, table string) (*ExportFile, error) {
	writer, ok := s.writers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if table == "" {
		table = ExportClients
	}

	dashboard, _, err := s.dashboards.Dashboard(ctx, q)
	if err != nil {
		return nil, err
	}
	t, err := Table(dashboard, table)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writer.Write(&buf, t); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render export")
	}
	id := uuid.NewString()
	s.logger.Info("dashboard exported", zap.String("export_id", id), zap.String("table", table), zap.String("format", format), zap.Int("rows", len(t.Rows)))
	return &ExportFile{
		ID:          id,
		FileName:    fmt.Sprintf("%s-%s-%s.%s", table, dashboard.Selection.AsOf, id[:8], writer.Extension()),
		ContentType: writer.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// Table converts one dashboard table into export rows.
func Table(d *dto.DashboardResponse, name string) (export.Table, error) {
	switch name {
	case ExportClinics:
		t := export.Table{Title: "Clinic performance", Columns: columns("Clinic:2", "Hours", "Students", "Clients", "Debriefs", "Completion", "Target", "Progress", "Status")}
		for _, c := range d.Clinics {
			t.Rows = append(t.Rows, []string{c.Name, num(c.Hours), strconv.Itoa(c.Students), strconv.Itoa(c.Clients), strconv.Itoa(c.Debriefs), pct(c.CompletionRate), num(c.TargetHours), c.ProgressLabel, c.Status})
		}
		return t, nil
	case ExportClients:
		t := export.Table{Title: "Client leaderboard", Columns: columns("Client:2", "Hours", "Share", "Team", "Director:2", "Target", "Progress", "Status")}
		for _, c := range d.Clients {
			t.Rows = append(t.Rows, []string{c.Name, num(c.Hours), c.ShareLabel, strconv.Itoa(c.TeamSize), c.DirectorName, num(c.TargetHours), c.ProgressLabel, c.Status})
		}
		return t, nil
	case ExportStudents:
		t := export.Table{Title: "Student hours", Columns: columns("Student:2", "Clinic:2", "Client:2", "Hours", "Debriefs", "Classes", "Attendance")}
		for _, st := range d.Students {
			t.Rows = append(t.Rows, []string{st.Name, st.Clinic, st.ClientName, num(st.Hours), strconv.Itoa(st.Debriefs), strconv.Itoa(st.ClassesPresent), pct(st.AttendanceRate)})
		}
		return t, nil
	case ExportMissing:
		t := export.Table{Title: "Missing debriefs", Columns: columns("Student:2", "Clinic:2", "Client:2", "Expected", "Submitted", "Missing weeks:3")}
		for _, m := range d.Missing {
			t.Rows = append(t.Rows, []string{m.StudentName, m.Clinic, m.ClientName, strconv.Itoa(m.Expected), strconv.Itoa(m.Submitted), strings.Join(m.MissingWeeks, ", ")})
		}
		return t, nil
	default:
		return export.Table{}, appErrors.Clone(appErrors.ErrValidation, "unknown export table")
	}
}

// columns parses "Label:weight" definitions.
func columns(defs ...string) []export.Column {
	out := make([]export.Column, len(defs))
	for i, def := range defs {
		label, w, found := strings.Cut(def, ":")
		out[i] = export.Column{Label: label}
		if found {
			out[i].Width, _ = strconv.ParseFloat(w, 64)
		}
	}
	return out
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func pct(v int) string {
	return strconv.Itoa(v) + "%"
}
