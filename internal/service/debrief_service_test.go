package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/repository"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

// writeBackend adds the write endpoints to the read-only fake.
type writeBackend struct {
	*fakeBackend

	mu         sync.Mutex
	created    []models.Debrief
	statuses   map[string]models.DebriefStatus
	attendance []models.AttendanceRecord
	documents  []models.Document
	writeErr   error
}

func newWriteBackend() *writeBackend {
	return &writeBackend{fakeBackend: clinicBackend(), statuses: map[string]models.DebriefStatus{}}
}

func (w *writeBackend) CreateDebrief(_ context.Context, d models.Debrief) (models.Debrief, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return models.Debrief{}, w.writeErr
	}
	d.ID = "new-debrief"
	w.created = append(w.created, d)
	return d, nil
}

func (w *writeBackend) UpdateDebriefStatus(_ context.Context, id string, status models.DebriefStatus) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.statuses[id] = status
	return nil
}

func (w *writeBackend) CreateAttendance(_ context.Context, record models.AttendanceRecord) (models.AttendanceRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return models.AttendanceRecord{}, w.writeErr
	}
	w.attendance = append(w.attendance, record)
	return record, nil
}

func (w *writeBackend) CreateDocument(_ context.Context, doc models.Document) (models.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return models.Document{}, w.writeErr
	}
	doc.ID = "doc-1"
	w.documents = append(w.documents, doc)
	return doc, nil
}

func (w *writeBackend) Documents(_ context.Context, filter repository.DocumentFilter) ([]models.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := []models.Document{}
	for _, d := range w.documents {
		if filter.StudentID == "" || d.StudentID == filter.StudentID {
			out = append(out, d)
		}
	}
	return out, nil
}

func inlineInvalidator() (*Invalidator, *memoryCacheRepo) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	return NewInvalidator(cache, nil, zap.NewNop()), repo
}

func studentClaims(id string) *models.PortalClaims {
	return &models.PortalClaims{UserID: "user-" + id, Role: models.RoleStudent, StudentID: id, Email: id + "@example.edu", FullName: "Student " + id}
}

func TestDebriefSubmitPinsStudentAndEnriches(t *testing.T) {
	backend := newWriteBackend()
	inv, cache := inlineInvalidator()
	svc := NewDebriefService(backend, inv, nil, "fall-2025", zap.NewNop())

	created, err := svc.Submit(context.Background(), dto.CreateDebriefRequest{
		StudentID:   "someone-else",
		HoursWorked: 3.5,
		WorkSummary: "reconciled accounts",
		WeekEnding:  "2025-09-14",
	}, studentClaims("s1"))
	require.NoError(t, err)

	assert.Equal(t, "s1", created.StudentID)
	assert.Equal(t, "s1@example.edu", created.StudentEmail)
	assert.Equal(t, "Acme", created.ClientName)
	assert.Equal(t, "Accounting", created.Clinic)
	assert.Equal(t, "fall-2025", created.SemesterID)
	assert.Equal(t, models.DebriefSubmitted, created.Status)
	assert.Equal(t, []string{"portal:*"}, cache.deleted)
}

func TestDebriefSubmitRules(t *testing.T) {
	backend := newWriteBackend()
	svc := NewDebriefService(backend, nil, nil, "fall-2025", zap.NewNop())
	ctx := context.Background()
	base := dto.CreateDebriefRequest{HoursWorked: 1, WorkSummary: "notes", WeekNumber: 2}

	_, err := svc.Submit(ctx, base, nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.Submit(ctx, base, &models.PortalClaims{UserID: "d1", Role: models.RoleDirector})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Submit(ctx, base, &models.PortalClaims{UserID: "a1", Role: models.RoleAdmin})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	noWeek := base
	noWeek.WeekNumber = 0
	_, err = svc.Submit(ctx, noWeek, studentClaims("s1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	tooMany := base
	tooMany.HoursWorked = 200
	_, err = svc.Submit(ctx, tooMany, studentClaims("s1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	admin := base
	admin.StudentID = "s2"
	created, err := svc.Submit(ctx, admin, &models.PortalClaims{UserID: "a1", Role: models.RoleAdmin, FullName: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, "Ben", created.StudentName)
	assert.Equal(t, "Beta", created.ClientName)
}

func TestDebriefSubmitAbortsOnAuthFailureDuringEnrichment(t *testing.T) {
	backend := newWriteBackend()
	backend.errs = map[string]error{SourceMapping: appErrors.ErrUnauthorized}
	svc := NewDebriefService(backend, nil, nil, "", zap.NewNop())

	_, err := svc.Submit(context.Background(), dto.CreateDebriefRequest{WorkSummary: "notes", WeekNumber: 1}, studentClaims("s1"))
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Empty(t, backend.created)
}

func TestDebriefSubmitSkipsEnrichmentOnTransientFailure(t *testing.T) {
	backend := newWriteBackend()
	backend.errs = map[string]error{SourceMapping: errors.New("timeout")}
	svc := NewDebriefService(backend, nil, nil, "", zap.NewNop())

	created, err := svc.Submit(context.Background(), dto.CreateDebriefRequest{WorkSummary: "notes", WeekNumber: 1}, studentClaims("s1"))
	require.NoError(t, err)
	assert.Empty(t, created.ClientName)
}

func TestDebriefListForcesStudentScope(t *testing.T) {
	backend := newWriteBackend()
	svc := NewDebriefService(backend, nil, nil, "", zap.NewNop())
	ctx := context.Background()

	items, err := svc.List(ctx, "s2", "", studentClaims("s1"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, d := range items {
		assert.Equal(t, "s1", d.StudentID)
	}

	_, err = svc.List(ctx, "", "", &models.PortalClaims{UserID: "d1", Role: models.RoleDirector})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	items, err = svc.List(ctx, "s2", "", &models.PortalClaims{UserID: "d1", Role: models.RoleDirector})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDebriefReview(t *testing.T) {
	backend := newWriteBackend()
	inv, cache := inlineInvalidator()
	svc := NewDebriefService(backend, inv, nil, "", zap.NewNop())
	ctx := context.Background()
	director := &models.PortalClaims{UserID: "d1", Role: models.RoleDirector}

	require.NoError(t, svc.Review(ctx, "d2", dto.ReviewDebriefRequest{Status: "reviewed"}, director))
	assert.Equal(t, models.DebriefReviewed, backend.statuses["d2"])
	assert.Len(t, cache.deleted, 1)

	err := svc.Review(ctx, "d2", dto.ReviewDebriefRequest{Status: "reviewed"}, studentClaims("s1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	err = svc.Review(ctx, "d2", dto.ReviewDebriefRequest{Status: "approved"}, director)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	backend.writeErr = appErrors.Clone(appErrors.ErrUpstream, "debriefs: 500")
	err = svc.Review(ctx, "d2", dto.ReviewDebriefRequest{Status: "pending"}, director)
	require.ErrorIs(t, err, appErrors.ErrUpstream)
	assert.Len(t, cache.deleted, 1)
}
