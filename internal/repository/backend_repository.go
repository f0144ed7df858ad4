package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/normalizer"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/fetch"
)

// Backend tables and views.
const (
	TableDebriefs   = "debriefs"
	TableAttendance = "attendance"
	TableMapping    = "v_complete_mapping"
	TableSchedule   = "semester_schedule"
	TableStudents   = "students"
	TableDirectors  = "directors"
	TableClients    = "clients"
	TableDocuments  = "documents"
)

// envelopeKeys are the wrapper fields a backend reply may nest rows under.
var envelopeKeys = []string{"data", "records", "debriefs", "rows"}

type backendFetcher interface {
	Get(ctx context.Context, url string) *fetch.Response
	Send(ctx context.Context, method, url string, body interface{}) (*fetch.Response, error)
	Sequential(ctx context.Context, urls []string) []*fetch.Response
}

// DebriefFilter narrows debrief reads. Empty fields are ignored.
type DebriefFilter struct {
	StudentID  string
	ClientName string
	SemesterID string
}

// AttendanceFilter narrows attendance reads.
type AttendanceFilter struct {
	StudentID  string
	SemesterID string
	WeekNumber int
}

// DocumentFilter narrows document reads.
type DocumentFilter struct {
	StudentID string
	ClientID  string
}

// Roster holds the reference tables read together for audits.
type Roster struct {
	Students  []models.Student
	Directors []models.Director
	Clients   []models.Client
}

// BackendRepository reads and writes portal tables over the backend REST API.
type BackendRepository struct {
	client  backendFetcher
	baseURL string
	logger  *zap.Logger
}

// NewBackendRepository constructs a repository rooted at baseURL.
func NewBackendRepository(client backendFetcher, baseURL string, logger *zap.Logger) *BackendRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackendRepository{client: client, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Debriefs returns normalized debriefs newest first.
func (r *BackendRepository) Debriefs(ctx context.Context, filter DebriefFilter) ([]models.Debrief, error) {
	params := eqParams(map[string]string{
		"student_id":  filter.StudentID,
		"client_name": filter.ClientName,
		"semester_id": filter.SemesterID,
	})
	params.Set("order", "week_ending.desc")
	rows, err := r.load(ctx, TableDebriefs, params)
	return normalizer.Debriefs(rows), err
}

// Attendance returns normalized attendance rows.
func (r *BackendRepository) Attendance(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, error) {
	values := map[string]string{
		"student_id":  filter.StudentID,
		"semester_id": filter.SemesterID,
	}
	if filter.WeekNumber > 0 {
		values["week_number"] = strconv.Itoa(filter.WeekNumber)
	}
	params := eqParams(values)
	params.Set("order", "class_date.desc")
	rows, err := r.load(ctx, TableAttendance, params)
	return normalizer.AttendanceRecords(rows), err
}

// Mappings returns the complete student, client and director join.
func (r *BackendRepository) Mappings(ctx context.Context) ([]models.CompleteMapping, error) {
	rows, err := r.load(ctx, TableMapping, url.Values{})
	return normalizer.Mappings(rows), err
}

// Schedule returns the semester weeks ordered by week number.
func (r *BackendRepository) Schedule(ctx context.Context, semesterID string) ([]models.SemesterWeek, error) {
	params := eqParams(map[string]string{"semester_id": semesterID})
	params.Set("order", "week_number.asc")
	rows, err := r.load(ctx, TableSchedule, params)
	return normalizer.SemesterWeeks(rows), err
}

// Students returns the student roster.
func (r *BackendRepository) Students(ctx context.Context) ([]models.Student, error) {
	rows, err := r.load(ctx, TableStudents, url.Values{})
	return normalizer.Students(rows), err
}

// Directors returns every director.
func (r *BackendRepository) Directors(ctx context.Context) ([]models.Director, error) {
	rows, err := r.load(ctx, TableDirectors, url.Values{})
	return normalizer.Directors(rows), err
}

// Clients returns every client.
func (r *BackendRepository) Clients(ctx context.Context) ([]models.Client, error) {
	rows, err := r.load(ctx, TableClients, url.Values{})
	return normalizer.Clients(rows), err
}

// Documents returns registered documents.
func (r *BackendRepository) Documents(ctx context.Context, filter DocumentFilter) ([]models.Document, error) {
	params := eqParams(map[string]string{
		"student_id": filter.StudentID,
		"client_id":  filter.ClientID,
	})
	params.Set("order", "uploaded_at.desc")
	rows, err := r.load(ctx, TableDocuments, params)
	return normalizer.Documents(rows), err
}

// Roster reads students, directors and clients one after another so bulk
// audits stay under the backend's request rate. A table that fails is
// returned empty and named in the error.
func (r *BackendRepository) Roster(ctx context.Context) (Roster, error) {
	tables := []string{TableStudents, TableDirectors, TableClients}
	urls := make([]string, len(tables))
	for i, table := range tables {
		urls[i] = r.tableURL(table, url.Values{})
	}
	responses := r.client.Sequential(ctx, urls)

	var failed []string
	rows := make([][]normalizer.Record, len(tables))
	for i, resp := range responses {
		got, err := r.decode(tables[i], resp)
		if err != nil {
			if appErrors.IsAuthentication(err) || appErrors.IsPermission(err) {
				return Roster{}, err
			}
			failed = append(failed, tables[i])
		}
		rows[i] = got
	}

	roster := Roster{
		Students:  normalizer.Students(rows[0]),
		Directors: normalizer.Directors(rows[1]),
		Clients:   normalizer.Clients(rows[2]),
	}
	if len(failed) > 0 {
		return roster, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("unavailable: %s", strings.Join(failed, ", ")))
	}
	return roster, nil
}

// CreateDebrief inserts a debrief and returns the stored row.
func (r *BackendRepository) CreateDebrief(ctx context.Context, debrief models.Debrief) (models.Debrief, error) {
	payload := map[string]interface{}{
		"student_id":    nullable(debrief.StudentID),
		"student_email": nullable(debrief.StudentEmail),
		"client_name":   nullable(debrief.ClientName),
		"clinic":        nullable(debrief.Clinic),
		"hours_worked":  debrief.HoursWorked,
		"work_summary":  debrief.WorkSummary,
		"questions":     nullable(debrief.Questions),
		"question_type": string(debrief.QuestionType),
		"week_ending":   nullable(debrief.WeekEnding),
		"week_number":   debrief.WeekNumber,
		"semester_id":   nullable(debrief.SemesterID),
		"status":        string(debrief.Status),
	}
	row, err := r.insert(ctx, TableDebriefs, payload)
	if err != nil {
		return models.Debrief{}, err
	}
	if len(row) == 0 {
		return debrief, nil
	}
	return normalizer.Debrief(row), nil
}

// UpdateDebriefStatus changes the review state of a debrief.
func (r *BackendRepository) UpdateDebriefStatus(ctx context.Context, id string, status models.DebriefStatus) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "debrief id is required")
	}
	target := r.tableURL(TableDebriefs, eqParams(map[string]string{"id": id}))
	resp, err := r.client.Send(ctx, http.MethodPatch, target, map[string]interface{}{"status": string(status)})
	if err != nil {
		return err
	}
	if len(fetch.Records(resp, envelopeKeys...)) == 0 && resp.Status != http.StatusNoContent {
		return appErrors.Clone(appErrors.ErrNotFound, "debrief not found")
	}
	return nil
}

// CreateAttendance inserts a present attendance row.
func (r *BackendRepository) CreateAttendance(ctx context.Context, record models.AttendanceRecord) (models.AttendanceRecord, error) {
	payload := map[string]interface{}{
		"student_id":   record.StudentID,
		"student_name": nullable(record.StudentName),
		"week_number":  record.WeekNumber,
		"week_ending":  nullable(record.WeekEnding),
		"class_date":   nullable(record.ClassDate),
		"clinic":       nullable(record.Clinic),
		"notes":        nullable(record.Notes),
		"is_present":   record.IsPresent,
		"semester_id":  nullable(record.Semester),
	}
	row, err := r.insert(ctx, TableAttendance, payload)
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	if len(row) == 0 {
		return record, nil
	}
	return normalizer.Attendance(row), nil
}

// CreateDocument registers uploaded file metadata.
func (r *BackendRepository) CreateDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	payload := map[string]interface{}{
		"student_id":  nullable(doc.StudentID),
		"client_id":   nullable(doc.ClientID),
		"client_name": nullable(doc.ClientName),
		"file_name":   doc.FileName,
		"file_url":    doc.FileURL,
		"file_type":   doc.FileType,
		"file_size":   doc.FileSize,
		"description": nullable(doc.Description),
		"uploaded_by": nullable(doc.UploadedBy),
	}
	row, err := r.insert(ctx, TableDocuments, payload)
	if err != nil {
		return models.Document{}, err
	}
	if len(row) == 0 {
		return doc, nil
	}
	return normalizer.Document(row), nil
}

func (r *BackendRepository) load(ctx context.Context, table string, params url.Values) ([]normalizer.Record, error) {
	return r.decode(table, r.client.Get(ctx, r.tableURL(table, params)))
}

// decode never returns nil rows. Degraded replies and non-2xx statuses
// produce an error alongside the empty slice.
func (r *BackendRepository) decode(table string, resp *fetch.Response) ([]normalizer.Record, error) {
	if resp == nil || resp.Degraded {
		r.logger.Warn("backend table degraded", zap.String("table", table))
		return []normalizer.Record{}, appErrors.Clone(appErrors.ErrUpstream, table+" unavailable")
	}
	if err := resp.Err(); err != nil {
		r.logger.Warn("backend table rejected", zap.String("table", table), zap.Int("status", resp.Status), zap.Error(err))
		return []normalizer.Record{}, err
	}
	return normalizer.Records(fetch.Records(resp, envelopeKeys...)), nil
}

func (r *BackendRepository) insert(ctx context.Context, table string, payload map[string]interface{}) (normalizer.Record, error) {
	resp, err := r.client.Send(ctx, http.MethodPost, r.tableURL(table, nil), payload)
	if err != nil {
		return nil, err
	}
	if rows := fetch.Records(resp, envelopeKeys...); len(rows) > 0 {
		return normalizer.Record(rows[0]), nil
	}
	var single map[string]interface{}
	if fetch.Decode(resp, &single) && len(single) > 0 {
		return normalizer.Record(single), nil
	}
	return nil, nil
}

func (r *BackendRepository) tableURL(table string, params url.Values) string {
	if params == nil {
		return fmt.Sprintf("%s/rest/v1/%s", r.baseURL, table)
	}
	if params.Get("select") == "" {
		params.Set("select", "*")
	}
	return fmt.Sprintf("%s/rest/v1/%s?%s", r.baseURL, table, params.Encode())
}

func eqParams(values map[string]string) url.Values {
	params := url.Values{}
	for column, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			params.Set(column, "eq."+value)
		}
	}
	return params
}

func nullable(v string) interface{} {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
