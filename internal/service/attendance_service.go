package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/repository"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

type attendancePasswordStore interface {
	Upsert(ctx context.Context, pw *models.AttendancePassword) error
	Get(ctx context.Context, semesterID string, weekNumber int) (*models.AttendancePassword, error)
	List(ctx context.Context, semesterID string) ([]models.AttendancePassword, error)
	RecordSubmission(ctx context.Context, sub *models.AttendanceSubmission) error
	DeleteSubmission(ctx context.Context, id string) error
}

type attendanceBackend interface {
	CreateAttendance(ctx context.Context, record models.AttendanceRecord) (models.AttendanceRecord, error)
	Schedule(ctx context.Context, semesterID string) ([]models.SemesterWeek, error)
}

// AttendanceServiceConfig tunes the check-in flow.
type AttendanceServiceConfig struct {
	SemesterID string
	BcryptCost int
}

// AttendanceService manages weekly check-in passwords and student check-ins.
type AttendanceService struct {
	store       attendancePasswordStore
	backend     attendanceBackend
	invalidator *Invalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         AttendanceServiceConfig
	now         func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(store attendancePasswordStore, backend attendanceBackend, invalidator *Invalidator, metrics *MetricsService, validate *validator.Validate, cfg AttendanceServiceConfig, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AttendanceService{
		store:       store,
		backend:     backend,
		invalidator: invalidator,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// SetPassword creates or replaces the check-in password for a week. Missing
// week bounds are taken from the semester schedule.
func (s *AttendanceService) SetPassword(ctx context.Context, req dto.CreateAttendancePasswordRequest, claims *models.PortalClaims) (*dto.AttendancePasswordView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance password")
	}
	if err := requireStaff(claims); err != nil {
		return nil, err
	}

	semesterID := s.semester(req.SemesterID)
	pw := &models.AttendancePassword{
		SemesterID: semesterID,
		WeekNumber: req.WeekNumber,
		WeekStart:  req.WeekStart,
		WeekEnd:    req.WeekEnd,
		CreatedBy:  claims.UserID,
	}
	if pw.WeekStart == "" || pw.WeekEnd == "" {
		weeks, err := s.backend.Schedule(ctx, semesterID)
		if err != nil && (appErrors.IsAuthentication(err) || appErrors.IsPermission(err)) {
			return nil, err
		}
		for _, w := range weeks {
			if w.WeekNumber == req.WeekNumber {
				pw.WeekStart = firstNonBlank(pw.WeekStart, w.WeekStart)
				pw.WeekEnd = firstNonBlank(pw.WeekEnd, w.WeekEnd)
				break
			}
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "hash attendance password")
	}
	pw.PasswordHash = string(hash)

	start := time.Now()
	err = s.store.Upsert(ctx, pw)
	s.metrics.ObserveDBQuery("attendance_password_upsert", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "save attendance password")
	}
	s.logger.Info("attendance password set", zap.String("semester_id", semesterID), zap.Int("week", req.WeekNumber), zap.String("by", claims.UserID))
	view := passwordView(*pw)
	return &view, nil
}

// ListPasswords returns the configured weeks of a semester without hashes.
func (s *AttendanceService) ListPasswords(ctx context.Context, semesterID string, claims *models.PortalClaims) ([]dto.AttendancePasswordView, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	start := time.Now()
	items, err := s.store.List(ctx, s.semester(semesterID))
	s.metrics.ObserveDBQuery("attendance_password_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list attendance passwords")
	}
	out := make([]dto.AttendancePasswordView, 0, len(items))
	for _, item := range items {
		out = append(out, passwordView(item))
	}
	return out, nil
}

// CheckIn records a student's presence for a week. A wrong password, an
// unknown week and a repeated check-in are all rejected the same way.
func (s *AttendanceService) CheckIn(ctx context.Context, req dto.AttendanceCheckInRequest, claims *models.PortalClaims) (*dto.AttendanceCheckInResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in")
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students check in")
	}

	semesterID := s.semester(req.SemesterID)
	start := time.Now()
	pw, err := s.store.Get(ctx, semesterID, req.WeekNumber)
	s.metrics.ObserveDBQuery("attendance_password_get", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAttendanceRejected
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load attendance password")
	}
	if bcrypt.CompareHashAndPassword([]byte(pw.PasswordHash), []byte(req.Password)) != nil {
		s.logger.Info("attendance check-in rejected", zap.String("student_id", claims.EffectiveStudentID()), zap.Int("week", req.WeekNumber))
		return nil, appErrors.ErrAttendanceRejected
	}

	sub := &models.AttendanceSubmission{
		SemesterID:  semesterID,
		WeekNumber:  req.WeekNumber,
		StudentID:   claims.EffectiveStudentID(),
		SubmittedAt: s.now().UTC(),
	}
	start = time.Now()
	err = s.store.RecordSubmission(ctx, sub)
	s.metrics.ObserveDBQuery("attendance_submission_insert", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			return nil, appErrors.ErrAttendanceRejected
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record check-in")
	}

	classDate := firstNonBlank(req.ClassDate, pw.WeekStart)
	record := models.AttendanceRecord{
		StudentID:   sub.StudentID,
		StudentName: claims.FullName,
		WeekNumber:  req.WeekNumber,
		WeekEnding:  pw.WeekEnd,
		ClassDate:   classDate,
		Notes:       "Present",
		IsPresent:   true,
		Semester:    semesterID,
	}
	if _, err := s.backend.CreateAttendance(ctx, record); err != nil {
		if delErr := s.store.DeleteSubmission(context.WithoutCancel(ctx), sub.ID); delErr != nil {
			s.logger.Error("rollback check-in failed", zap.String("submission_id", sub.ID), zap.Error(delErr))
		}
		return nil, err
	}
	s.invalidator.Invalidate(ctx)

	return &dto.AttendanceCheckInResponse{
		WeekNumber:  req.WeekNumber,
		ClassDate:   classDate,
		SubmittedAt: sub.SubmittedAt,
	}, nil
}

func (s *AttendanceService) semester(id string) string {
	if strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return s.cfg.SemesterID
}

func requireStaff(claims *models.PortalClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleDirector && claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "directors only")
	}
	return nil
}

func passwordView(pw models.AttendancePassword) dto.AttendancePasswordView {
	return dto.AttendancePasswordView{
		ID:         pw.ID,
		SemesterID: pw.SemesterID,
		WeekNumber: pw.WeekNumber,
		WeekStart:  pw.WeekStart,
		WeekEnd:    pw.WeekEnd,
		CreatedBy:  pw.CreatedBy,
		UpdatedAt:  pw.UpdatedAt,
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
