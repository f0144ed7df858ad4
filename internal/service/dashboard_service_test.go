package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/repository"
	"github.com/noah-isme/clinic-portal-api/internal/semester"
	"github.com/noah-isme/clinic-portal-api/internal/viewmodel"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

type fakeBackend struct {
	debriefs   []models.Debrief
	attendance []models.AttendanceRecord
	mappings   []models.CompleteMapping
	schedule   []models.SemesterWeek
	students   []models.Student
	roster     repository.Roster
	errs       map[string]error
	calls      int32
}

func (f *fakeBackend) err(source string) error {
	atomic.AddInt32(&f.calls, 1)
	return f.errs[source]
}

func (f *fakeBackend) Debriefs(_ context.Context, filter repository.DebriefFilter) ([]models.Debrief, error) {
	if err := f.err(SourceDebriefs); err != nil {
		return []models.Debrief{}, err
	}
	out := make([]models.Debrief, 0, len(f.debriefs))
	for _, d := range f.debriefs {
		if filter.StudentID == "" || d.StudentID == filter.StudentID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeBackend) Attendance(_ context.Context, filter repository.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if err := f.err(SourceAttendance); err != nil {
		return []models.AttendanceRecord{}, err
	}
	out := make([]models.AttendanceRecord, 0, len(f.attendance))
	for _, a := range f.attendance {
		if filter.StudentID == "" || a.StudentID == filter.StudentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBackend) Mappings(context.Context) ([]models.CompleteMapping, error) {
	if err := f.err(SourceMapping); err != nil {
		return []models.CompleteMapping{}, err
	}
	return f.mappings, nil
}

func (f *fakeBackend) Schedule(context.Context, string) ([]models.SemesterWeek, error) {
	if err := f.err(SourceSchedule); err != nil {
		return []models.SemesterWeek{}, err
	}
	return f.schedule, nil
}

func (f *fakeBackend) Students(context.Context) ([]models.Student, error) {
	if err := f.err(SourceStudents); err != nil {
		return []models.Student{}, err
	}
	return f.students, nil
}

func (f *fakeBackend) Roster(context.Context) (repository.Roster, error) {
	if err := f.err(SourceRoster); err != nil {
		return repository.Roster{}, err
	}
	return f.roster, nil
}

type memoryCacheRepo struct {
	mu      sync.Mutex
	store   map[string][]byte
	deleted []string
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	m.store[key] = payload
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	m.store = nil
	return nil
}

var testNow = time.Date(2025, 9, 16, 12, 0, 0, 0, time.UTC)

func clinicBackend() *fakeBackend {
	return &fakeBackend{
		schedule: []models.SemesterWeek{
			{WeekNumber: 1, WeekLabel: "Week 1", WeekStart: "2025-09-01", WeekEnd: "2025-09-07"},
			{WeekNumber: 2, WeekLabel: "Week 2", WeekStart: "2025-09-08", WeekEnd: "2025-09-14"},
			{WeekNumber: 3, WeekLabel: "Fall Break", WeekStart: "2025-09-15", WeekEnd: "2025-09-21", IsBreak: true},
		},
		mappings: []models.CompleteMapping{
			{StudentID: "s1", StudentName: "Ada", StudentClinicName: "Accounting", ClientName: "Acme", ClinicDirectorID: "dir-1", ClientDirectorName: "Dr. One"},
			{StudentID: "s2", StudentName: "Ben", StudentClinicName: "Consulting", ClientName: "Beta", ClinicDirectorID: "dir-2", ClientDirectorName: "Dr. Two"},
		},
		debriefs: []models.Debrief{
			{ID: "d1", StudentID: "s1", HoursWorked: 4, WeekEnding: "2025-09-07", WorkSummary: "ledger", Status: models.DebriefReviewed},
			{ID: "d2", StudentID: "s1", HoursWorked: 2, WeekEnding: "2025-09-14", WorkSummary: "payroll", Status: models.DebriefSubmitted},
			{ID: "d3", StudentID: "s2", HoursWorked: 6, WeekEnding: "2025-09-07", WorkSummary: "interviews", Status: models.DebriefSubmitted},
		},
		attendance: []models.AttendanceRecord{
			{StudentID: "s1", WeekNumber: 1, ClassDate: "2025-09-01", IsPresent: true},
			{StudentID: "s1", WeekNumber: 2, ClassDate: "2025-09-08", IsPresent: true},
			{StudentID: "s2", WeekNumber: 1, ClassDate: "2025-09-01", IsPresent: true},
		},
	}
}

func newTestDashboard(backend *fakeBackend, cache *CacheService) *DashboardService {
	svc := NewDashboardService(DashboardServiceParams{
		Backend: backend,
		Cache:   cache,
		Logger:  zap.NewNop(),
		Config: DashboardServiceConfig{
			Calendar: semester.Calendar{ClassHour: 19, ClassMinute: 30, Location: time.UTC},
		},
	})
	svc.now = func() time.Time { return testNow }
	return svc
}

func adminQuery() Query {
	return Query{AsOf: testNow, Policy: viewmodel.DefaultPolicy()}
}

func TestDashboardServiceAssemblesAndCaches(t *testing.T) {
	cacheSvc := NewCacheService(&memoryCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	backend := clinicBackend()
	svc := newTestDashboard(backend, cacheSvc)
	ctx := context.Background()

	result, cacheHit, err := svc.Dashboard(ctx, adminQuery())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Empty(t, result.Degraded)
	assert.Equal(t, 12.0, result.QuickStats.TotalHours)
	assert.Equal(t, 2, result.QuickStats.ActiveStudents)
	assert.Equal(t, 3, result.CurrentWeek)
	assert.Len(t, result.Clients, 2)
	assert.Len(t, result.Students, 2)
	require.Len(t, result.Missing, 1)
	assert.Equal(t, "s2", result.Missing[0].StudentID)
	assert.Equal(t, []string{"Week 2"}, result.Missing[0].MissingWeeks)
	require.Len(t, result.Schedule, 3)
	assert.Equal(t, "2025-09-01", result.Schedule[0].Value)

	calls := atomic.LoadInt32(&backend.calls)
	cached, cacheHit, err := svc.Dashboard(ctx, adminQuery())
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, result.QuickStats, cached.QuickStats)
	assert.Equal(t, calls, atomic.LoadInt32(&backend.calls))
}

func TestDashboardServiceDirectorScope(t *testing.T) {
	svc := newTestDashboard(clinicBackend(), nil)
	q := adminQuery()
	q.DirectorID = "dir-1"

	result, _, err := svc.Dashboard(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 6.0, result.QuickStats.TotalHours)
	require.Len(t, result.Clients, 1)
	assert.Equal(t, "Acme", result.Clients[0].Name)
	assert.Empty(t, result.Missing)
}

func TestDashboardServiceWeekSelection(t *testing.T) {
	svc := newTestDashboard(clinicBackend(), nil)
	q := adminQuery()
	q.Weeks = []string{"2025-09-08"}

	result, _, err := svc.Dashboard(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.QuickStats.TotalHours)
	require.Len(t, result.Missing, 1)
	assert.Equal(t, "s2", result.Missing[0].StudentID)
}

func TestDashboardServiceClientFilter(t *testing.T) {
	svc := newTestDashboard(clinicBackend(), nil)
	q := adminQuery()
	q.Client = "beta"

	result, _, err := svc.Dashboard(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 6.0, result.QuickStats.TotalHours)
	require.Len(t, result.Students, 1)
	assert.Equal(t, "s2", result.Students[0].StudentID)
}

func TestDashboardServiceDegradedSourceIsReportedNotCached(t *testing.T) {
	repo := &memoryCacheRepo{}
	cacheSvc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	backend := clinicBackend()
	backend.errs = map[string]error{SourceAttendance: appErrors.Clone(appErrors.ErrUpstream, "attendance unavailable")}
	svc := newTestDashboard(backend, cacheSvc)

	result, _, err := svc.Dashboard(context.Background(), adminQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{SourceAttendance}, result.Degraded)
	assert.Equal(t, 12.0, result.QuickStats.TotalHours)
	assert.Zero(t, result.Attendance.Present)

	_, cacheHit, err := svc.Dashboard(context.Background(), adminQuery())
	require.NoError(t, err)
	assert.False(t, cacheHit)
}

func TestDashboardServiceScheduleFallback(t *testing.T) {
	backend := clinicBackend()
	backend.errs = map[string]error{SourceSchedule: appErrors.Clone(appErrors.ErrUpstream, "semester_schedule unavailable")}
	svc := newTestDashboard(backend, nil)

	result, _, err := svc.Dashboard(context.Background(), adminQuery())
	require.NoError(t, err)
	assert.Contains(t, result.Degraded, SourceSchedule)
	assert.Equal(t, len(semester.FallbackSchedule()), len(result.Schedule))
}

func TestDashboardServiceAuthFailureAborts(t *testing.T) {
	backend := clinicBackend()
	backend.errs = map[string]error{SourceDebriefs: appErrors.Clone(appErrors.ErrUnauthorized, "JWT expired")}
	svc := newTestDashboard(backend, nil)

	_, _, err := svc.Dashboard(context.Background(), adminQuery())
	require.Error(t, err)
	assert.True(t, appErrors.IsAuthentication(err))
}

func TestDashboardServiceBuildQueryPinsRole(t *testing.T) {
	svc := newTestDashboard(clinicBackend(), nil)
	req := dto.DashboardQuery{
		Weeks:     []string{"2025-09-01, 2025-09-08", "garbage"},
		StudentID: "someone-else",
		AsOf:      "2025-09-10",
	}

	student := &models.PortalClaims{UserID: "u-1", StudentID: "s1", Role: models.RoleStudent}
	q, err := svc.BuildQuery(req, student)
	require.NoError(t, err)
	assert.Equal(t, "s1", q.StudentID)
	assert.Empty(t, q.DirectorID)
	assert.Equal(t, []string{"2025-09-01", "2025-09-08"}, q.Weeks)
	assert.Equal(t, 10, q.AsOf.Day())
	assert.Equal(t, 23, q.AsOf.Hour())

	director := &models.PortalClaims{UserID: "dir-1", Role: models.RoleDirector}
	q, err = svc.BuildQuery(dto.DashboardQuery{}, director)
	require.NoError(t, err)
	assert.Equal(t, "dir-1", q.DirectorID)
	assert.Equal(t, testNow, q.AsOf)

	q, err = svc.BuildQuery(dto.DashboardQuery{DirectorID: "all"}, director)
	require.NoError(t, err)
	assert.Equal(t, "all", q.DirectorID)

	admin := &models.PortalClaims{UserID: "root", Role: models.RoleAdmin}
	q, err = svc.BuildQuery(dto.DashboardQuery{StudentID: "s2"}, admin)
	require.NoError(t, err)
	assert.Equal(t, "s2", q.StudentID)
}

func TestDashboardServiceBuildQueryValidation(t *testing.T) {
	svc := newTestDashboard(clinicBackend(), nil)
	admin := &models.PortalClaims{UserID: "root", Role: models.RoleAdmin}

	_, err := svc.BuildQuery(dto.DashboardQuery{SortBy: "popularity"}, admin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.BuildQuery(dto.DashboardQuery{AsOf: "10/09/2025"}, admin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.BuildQuery(dto.DashboardQuery{}, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.BuildQuery(dto.DashboardQuery{}, &models.PortalClaims{Role: "client"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestQueryKeyIgnoresWeekOrderAndTime(t *testing.T) {
	a := Query{Weeks: []string{"2025-09-08", "2025-09-01"}, AsOf: testNow}
	b := Query{Weeks: []string{"2025-09-01", "2025-09-08"}, AsOf: testNow.Add(3 * time.Hour)}
	c := Query{Weeks: []string{"2025-09-01"}, AsOf: testNow}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Len(t, a.Key(), 16)
}

func TestDashboardServiceWeeklySummary(t *testing.T) {
	svc := newTestDashboard(clinicBackend(), nil)

	summary, _, err := svc.WeeklySummary(context.Background(), adminQuery())
	require.NoError(t, err)
	assert.Equal(t, 12.0, summary.TotalHours)
	require.Len(t, summary.Clients, 2)
	assert.Equal(t, "Acme", summary.Clients[0].ClientName)
	assert.Equal(t, "Dr. One", summary.Clients[0].DirectorName)
	assert.Equal(t, []string{"Ada"}, summary.Clients[0].TeamMembers)
	assert.Len(t, summary.Clients[0].Entries, 2)
}

func TestDashboardServiceStudentProgress(t *testing.T) {
	svc := newTestDashboard(clinicBackend(), nil)
	q := adminQuery()
	q.StudentID = "s2"

	progress, err := svc.StudentProgress(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "Ben", progress.Name)
	assert.Equal(t, "Beta", progress.ClientName)
	assert.Equal(t, 6.0, progress.TotalHours)
	assert.Equal(t, 2, progress.Expected)
	assert.Equal(t, 50, progress.DebriefRate)
	assert.Equal(t, []string{"Week 2"}, progress.MissingWeeks)
	assert.Equal(t, 1, progress.Attendance.Present)
	assert.Equal(t, 2, progress.Attendance.Expected)
	assert.Equal(t, 3, progress.CurrentWeek)

	_, err = svc.StudentProgress(context.Background(), adminQuery())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDashboardServiceAudit(t *testing.T) {
	backend := clinicBackend()
	backend.roster = repository.Roster{
		Directors: []models.Director{{ID: "dir-1", FullName: "Dr. One", Clinic: "Accounting"}},
		Students: []models.Student{
			{ID: "s1", FullName: "Ada", Clinic: "Accounting", ClientName: "Acme"},
			{ID: "s2", FullName: "Ben", Clinic: "Consulting", ClientName: "Beta"},
		},
		Clients: []models.Client{{ID: "c1", Name: "Acme", DirectorID: "dir-1"}, {ID: "c2", Name: "Beta"}},
	}
	svc := newTestDashboard(backend, nil)

	report, err := svc.Audit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Directors.Total)
	assert.Equal(t, 2, report.Students.Total)
	assert.Equal(t, 2, report.Clients.Total)

	backend.errs = map[string]error{SourceRoster: appErrors.Clone(appErrors.ErrUpstream, "unavailable: directors")}
	_, err = svc.Audit(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), SourceRoster)
}

func TestDashboardServiceInvalidate(t *testing.T) {
	repo := &memoryCacheRepo{}
	svc := newTestDashboard(clinicBackend(), NewCacheService(repo, nil, time.Minute, zap.NewNop(), true))

	require.NoError(t, svc.Invalidate(context.Background()))
	assert.Equal(t, []string{"portal:*"}, repo.deleted)
}
