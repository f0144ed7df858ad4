package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/clinic-portal-api/internal/aggregate"
	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/filter"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/normalizer"
	"github.com/noah-isme/clinic-portal-api/internal/repository"
	"github.com/noah-isme/clinic-portal-api/internal/semester"
	"github.com/noah-isme/clinic-portal-api/internal/viewmodel"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

// Dataset names reported in DashboardResponse.Degraded.
const (
	SourceDebriefs   = "debriefs"
	SourceAttendance = "attendance"
	SourceMapping    = "mapping"
	SourceSchedule   = "schedule"
	SourceStudents   = "students"
	SourceRoster     = "roster"
)

type dashboardBackend interface {
	Debriefs(ctx context.Context, filter repository.DebriefFilter) ([]models.Debrief, error)
	Attendance(ctx context.Context, filter repository.AttendanceFilter) ([]models.AttendanceRecord, error)
	Mappings(ctx context.Context) ([]models.CompleteMapping, error)
	Schedule(ctx context.Context, semesterID string) ([]models.SemesterWeek, error)
	Students(ctx context.Context) ([]models.Student, error)
	Roster(ctx context.Context) (repository.Roster, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL               time.Duration
	TopN                   int
	SemesterID             string
	HoursPerStudentPerWeek float64
	ClientHoursTarget      float64
	Clinics                []string
	Calendar               semester.Calendar
}

// DashboardService loads portal data, scopes it to the viewer and assembles
// the dashboard view models.
type DashboardService struct {
	backend   dashboardBackend
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Backend   dashboardBackend
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.HoursPerStudentPerWeek <= 0 {
		cfg.HoursPerStudentPerWeek = 3
	}
	if cfg.ClientHoursTarget <= 0 {
		cfg.ClientHoursTarget = 60
	}
	if len(cfg.Clinics) == 0 {
		cfg.Clinics = aggregate.DefaultClinics
	}
	if cfg.Calendar.Location == nil && cfg.Calendar.ClassHour == 0 {
		cfg.Calendar = semester.DefaultCalendar()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &DashboardService{
		backend:   params.Backend,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Query is the complete input of a dashboard build. Nothing else about the
// viewer or the selection is consulted while building.
type Query struct {
	Weeks      []string         `json:"weeks"`
	DirectorID string           `json:"directorId"`
	Clinic     string           `json:"clinic"`
	Client     string           `json:"client"`
	StudentID  string           `json:"studentId"`
	SemesterID string           `json:"semesterId"`
	AsOf       time.Time        `json:"asOf"`
	Policy     viewmodel.Policy `json:"policy"`
}

// Key returns a stable digest of the query for cache and session keys.
func (q Query) Key() string {
	weeks := append([]string(nil), q.Weeks...)
	sort.Strings(weeks)
	norm := q
	norm.Weeks = weeks
	norm.AsOf = time.Date(q.AsOf.Year(), q.AsOf.Month(), q.AsOf.Day(), 0, 0, 0, 0, time.UTC)
	raw, _ := json.Marshal(norm)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// BuildQuery validates the request and pins scope to the caller's role:
// students only ever see themselves and directors default to their own
// assignments.
func (s *DashboardService) BuildQuery(req dto.DashboardQuery, claims *models.PortalClaims) (Query, error) {
	if err := s.validator.Struct(req); err != nil {
		return Query{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dashboard query")
	}
	if claims == nil {
		return Query{}, appErrors.ErrUnauthorized
	}

	asOf := s.now()
	if req.AsOf != "" {
		if t, ok := normalizer.ParseDate(req.AsOf); ok {
			asOf = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, s.location())
		}
	}

	weeks := make([]string, 0, len(req.Weeks))
	for _, raw := range req.Weeks {
		for _, w := range strings.Split(raw, ",") {
			if d := normalizer.NormalizeDate(w); d != "" {
				weeks = append(weeks, d)
			}
		}
	}

	policy := viewmodel.DefaultPolicy()
	if req.SortBy != "" {
		policy.SortBy = req.SortBy
	}
	if req.Desc != nil {
		policy.Desc = *req.Desc
	}
	policy.Limit = req.Limit

	semesterID := req.SemesterID
	if semesterID == "" {
		semesterID = s.cfg.SemesterID
	}

	q := Query{
		Weeks:      weeks,
		DirectorID: strings.TrimSpace(req.DirectorID),
		Clinic:     strings.TrimSpace(req.Clinic),
		Client:     strings.TrimSpace(req.Client),
		StudentID:  strings.TrimSpace(req.StudentID),
		SemesterID: semesterID,
		AsOf:       asOf,
		Policy:     policy,
	}

	switch claims.Role {
	case models.RoleStudent:
		q.StudentID = claims.EffectiveStudentID()
		q.DirectorID = ""
	case models.RoleDirector:
		if q.DirectorID == "" {
			q.DirectorID = claims.EffectiveDirectorID()
		}
	case models.RoleAdmin:
	default:
		return Query{}, appErrors.ErrForbidden
	}
	return q, nil
}

// Dashboard returns the assembled dashboard and whether it came from cache.
func (s *DashboardService) Dashboard(ctx context.Context, q Query) (*dto.DashboardResponse, bool, error) {
	cacheKey := CacheKey("dashboard", q.Key())
	var cached dto.DashboardResponse
	if s.tryCache(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	data, err := s.load(ctx, q)
	if err != nil {
		return nil, false, err
	}
	resp := s.assemble(q, data)
	s.metrics.ObserveDashboardBuild(len(resp.Degraded) > 0, time.Since(start))

	if len(resp.Degraded) == 0 {
		s.persistCache(ctx, cacheKey, resp)
	}
	return resp, false, nil
}

// WeeklySummary groups the selected weeks' work by client.
func (s *DashboardService) WeeklySummary(ctx context.Context, q Query) (*dto.WeeklySummaryResponse, bool, error) {
	cacheKey := CacheKey("weekly", q.Key())
	var cached dto.WeeklySummaryResponse
	if s.tryCache(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	data, err := s.load(ctx, q)
	if err != nil {
		return nil, false, err
	}
	view := s.scope(q, data)
	clients := viewmodel.WeeklySummary(view.debriefs, view.mappings)
	resp := &dto.WeeklySummaryResponse{
		Selection:  selectionOf(q),
		TotalHours: viewmodel.Round1(aggregate.Total(view.debriefs).Hours),
		Clients:    clients,
	}
	if len(data.degraded) == 0 {
		s.persistCache(ctx, cacheKey, resp)
	}
	return resp, false, nil
}

// StudentProgress builds the student portal overview for q.StudentID.
func (s *DashboardService) StudentProgress(ctx context.Context, q Query) (*dto.StudentProgress, error) {
	if q.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}

	var (
		debriefs   []models.Debrief
		attendance []models.AttendanceRecord
		mappings   []models.CompleteMapping
		schedule   []models.SemesterWeek
	)
	tracker := newDegradedTracker()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.backend.Debriefs(gctx, repository.DebriefFilter{StudentID: q.StudentID, SemesterID: q.SemesterID})
		debriefs = rows
		return tracker.check(SourceDebriefs, err, s.logger)
	})
	g.Go(func() error {
		rows, err := s.backend.Attendance(gctx, repository.AttendanceFilter{StudentID: q.StudentID, SemesterID: q.SemesterID})
		attendance = rows
		return tracker.check(SourceAttendance, err, s.logger)
	})
	g.Go(func() error {
		rows, err := s.backend.Mappings(gctx)
		mappings = rows
		return tracker.check(SourceMapping, err, s.logger)
	})
	g.Go(func() error {
		rows, err := s.backend.Schedule(gctx, q.SemesterID)
		schedule = rows
		return tracker.check(SourceSchedule, err, s.logger)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	schedule = s.scheduleOrFallback(schedule)

	student := models.Student{ID: q.StudentID}
	for _, st := range normalizer.StudentsFromMappings(mappings) {
		if st.ID == q.StudentID {
			student = st
			break
		}
	}

	cal := s.cfg.Calendar
	matcher := filter.NewWeekMatcher(q.Weeks, schedule)
	weeks := matcher.Weeks(schedule)
	expected := aggregate.ExpectedWeeks(schedule, matcher, cal, q.AsOf)
	debriefs = matcher.Debriefs(normalizer.EnrichDebriefs(debriefs, mappings))
	attendance = matcher.Attendance(attendance)

	progress := viewmodel.StudentProgress(student, debriefs, attendance, weeks, expected,
		cal.ElapsedClasses(weeks, q.AsOf), cal.CurrentWeekNumber(schedule, q.AsOf))
	return &progress, nil
}

// Audit cross-checks the roster tables. Roster tables are read sequentially.
func (s *DashboardService) Audit(ctx context.Context) (*dto.AuditResults, error) {
	var (
		roster   repository.Roster
		mappings []models.CompleteMapping
	)
	tracker := newDegradedTracker()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.backend.Roster(gctx)
		roster = r
		return tracker.check(SourceRoster, err, s.logger)
	})
	g.Go(func() error {
		rows, err := s.backend.Mappings(gctx)
		mappings = rows
		return tracker.check(SourceMapping, err, s.logger)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if degraded := tracker.list(); len(degraded) > 0 {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "audit data unavailable: "+strings.Join(degraded, ", "))
	}

	report := viewmodel.Audit(aggregate.AuditRoster(roster.Directors, roster.Students, roster.Clients, mappings, s.cfg.Clinics))
	return &report, nil
}

// Invalidate drops every cached portal view.
func (s *DashboardService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, AllViews())
}

type dataset struct {
	debriefs   []models.Debrief
	attendance []models.AttendanceRecord
	mappings   []models.CompleteMapping
	schedule   []models.SemesterWeek
	students   []models.Student
	degraded   []string
}

// load fans out to the backend. Authentication and permission failures abort
// the whole load; any other failure leaves that dataset empty.
func (s *DashboardService) load(ctx context.Context, q Query) (*dataset, error) {
	data := &dataset{}
	tracker := newDegradedTracker()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.backend.Debriefs(gctx, repository.DebriefFilter{StudentID: q.StudentID, SemesterID: q.SemesterID})
		data.debriefs = rows
		return tracker.check(SourceDebriefs, err, s.logger)
	})
	g.Go(func() error {
		rows, err := s.backend.Attendance(gctx, repository.AttendanceFilter{StudentID: q.StudentID, SemesterID: q.SemesterID})
		data.attendance = rows
		return tracker.check(SourceAttendance, err, s.logger)
	})
	g.Go(func() error {
		rows, err := s.backend.Mappings(gctx)
		data.mappings = rows
		return tracker.check(SourceMapping, err, s.logger)
	})
	g.Go(func() error {
		rows, err := s.backend.Schedule(gctx, q.SemesterID)
		data.schedule = rows
		return tracker.check(SourceSchedule, err, s.logger)
	})
	g.Go(func() error {
		rows, err := s.backend.Students(gctx)
		data.students = rows
		return tracker.check(SourceStudents, err, s.logger)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.degraded = tracker.list()
	data.schedule = s.scheduleOrFallback(data.schedule)
	if len(data.students) == 0 {
		data.students = normalizer.StudentsFromMappings(data.mappings)
	}
	data.debriefs = normalizer.EnrichDebriefs(data.debriefs, data.mappings)
	return data, nil
}

type scopedView struct {
	matcher    *filter.WeekMatcher
	trend      []models.Debrief
	debriefs   []models.Debrief
	attendance []models.AttendanceRecord
	students   []models.Student
	mappings   []models.CompleteMapping
}

// scope narrows the dataset to the viewer first, then to the selected weeks.
func (s *DashboardService) scope(q Query, data *dataset) scopedView {
	var sc *filter.Scope
	switch {
	case q.DirectorID != "" && !strings.EqualFold(q.DirectorID, filter.AllScope):
		sc = filter.BuildScope(data.mappings, q.DirectorID, q.Clinic)
	case q.Clinic != "":
		sc = filter.ClinicScope(q.Clinic)
	default:
		sc = filter.Everything()
	}
	matcher := filter.NewWeekMatcher(q.Weeks, data.schedule)

	debriefs := sc.Debriefs(data.debriefs)
	attendance := sc.Attendance(data.attendance)
	students := sc.Students(data.students)
	mappings := sc.Mappings(data.mappings)

	if q.Client != "" && !strings.EqualFold(q.Client, filter.AllScope) {
		debriefs = keep(debriefs, func(d models.Debrief) bool { return strings.EqualFold(strings.TrimSpace(d.ClientName), q.Client) })
		students = keep(students, func(st models.Student) bool { return strings.EqualFold(strings.TrimSpace(st.ClientName), q.Client) })
		mappings = keep(mappings, func(m models.CompleteMapping) bool {
			return strings.EqualFold(strings.TrimSpace(m.ClientName), q.Client)
		})
		ids := make(map[string]struct{}, len(students))
		for _, st := range students {
			ids[st.ID] = struct{}{}
		}
		attendance = keep(attendance, func(a models.AttendanceRecord) bool {
			_, ok := ids[a.StudentID]
			return ok
		})
	}
	if q.StudentID != "" {
		debriefs = keep(debriefs, func(d models.Debrief) bool { return d.StudentID == q.StudentID })
		attendance = keep(attendance, func(a models.AttendanceRecord) bool { return a.StudentID == q.StudentID })
		students = keep(students, func(st models.Student) bool { return st.ID == q.StudentID })
	}

	return scopedView{
		matcher:    matcher,
		trend:      debriefs,
		debriefs:   matcher.Debriefs(debriefs),
		attendance: matcher.Attendance(attendance),
		students:   students,
		mappings:   mappings,
	}
}

func (s *DashboardService) assemble(q Query, data *dataset) *dto.DashboardResponse {
	view := s.scope(q, data)
	cal := s.cfg.Calendar
	weeks := view.matcher.Weeks(data.schedule)
	expected := aggregate.ExpectedWeeks(data.schedule, view.matcher, cal, q.AsOf)
	elapsed := cal.ElapsedClasses(weeks, q.AsOf)

	in := viewmodel.Input{
		Debriefs:       view.debriefs,
		TrendDebriefs:  view.trend,
		Attendance:     view.attendance,
		Students:       view.students,
		Mappings:       view.mappings,
		Weeks:          weeks,
		ExpectedWeeks:  expected,
		ElapsedClasses: elapsed,
		Targets: viewmodel.Targets{
			HoursPerStudentPerWeek: s.cfg.HoursPerStudentPerWeek,
			ClientHoursTarget:      s.cfg.ClientHoursTarget,
		},
	}

	clientPolicy := q.Policy
	if clientPolicy.Limit <= 0 {
		clientPolicy.Limit = s.cfg.TopN
	}

	return &dto.DashboardResponse{
		Selection:   selectionOf(q),
		CurrentWeek: cal.CurrentWeekNumber(data.schedule, q.AsOf),
		QuickStats:  viewmodel.QuickStats(in),
		Clinics:     viewmodel.Clinics(in, q.Policy),
		Clients:     viewmodel.Clients(in, clientPolicy),
		Students:    viewmodel.Students(in, q.Policy),
		Attendance:  viewmodel.Attendance(view.attendance, weeks, elapsed, len(view.students)),
		Missing:     viewmodel.Missing(aggregate.MissingDebriefs(view.students, view.debriefs, expected)),
		Schedule:    viewmodel.Schedule(data.schedule),
		Degraded:    data.degraded,
		GeneratedAt: s.now().UTC(),
	}
}

func (s *DashboardService) scheduleOrFallback(weeks []models.SemesterWeek) []models.SemesterWeek {
	if len(weeks) == 0 {
		return semester.FallbackSchedule()
	}
	return semester.Sort(weeks)
}

func (s *DashboardService) location() *time.Location {
	if s.cfg.Calendar.Location != nil {
		return s.cfg.Calendar.Location
	}
	return time.Local
}

func (s *DashboardService) tryCache(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func selectionOf(q Query) dto.DashboardQuery {
	desc := q.Policy.Desc
	return dto.DashboardQuery{
		Weeks:      q.Weeks,
		DirectorID: q.DirectorID,
		Clinic:     q.Clinic,
		Client:     q.Client,
		StudentID:  q.StudentID,
		SemesterID: q.SemesterID,
		AsOf:       q.AsOf.Format("2006-01-02"),
		SortBy:     q.Policy.SortBy,
		Desc:       &desc,
		Limit:      q.Policy.Limit,
	}
}

// degradedTracker collects dataset names whose load failed softly.
type degradedTracker struct {
	mu    sync.Mutex
	names []string
}

func newDegradedTracker() *degradedTracker {
	return &degradedTracker{}
}

// check returns err when it must abort the fan-out and records it otherwise.
func (t *degradedTracker) check(source string, err error, logger *zap.Logger) error {
	if err == nil {
		return nil
	}
	if appErrors.IsAuthentication(err) || appErrors.IsPermission(err) {
		return err
	}
	logger.Warn("dashboard source degraded", zap.String("source", source), zap.Error(err))
	t.mu.Lock()
	t.names = append(t.names, source)
	t.mu.Unlock()
	return nil
}

func (t *degradedTracker) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]string(nil), t.names...)
	sort.Strings(out)
	return out
}

func keep[T any](in []T, pred func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}
