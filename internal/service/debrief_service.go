package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/normalizer"
	"github.com/noah-isme/clinic-portal-api/internal/repository"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

type debriefBackend interface {
	Debriefs(ctx context.Context, filter repository.DebriefFilter) ([]models.Debrief, error)
	CreateDebrief(ctx context.Context, debrief models.Debrief) (models.Debrief, error)
	UpdateDebriefStatus(ctx context.Context, id string, status models.DebriefStatus) error
	Mappings(ctx context.Context) ([]models.CompleteMapping, error)
}

// DebriefService handles weekly debrief submission and review.
type DebriefService struct {
	backend     debriefBackend
	invalidator *Invalidator
	validator   *validator.Validate
	logger      *zap.Logger
	semesterID  string
}

// NewDebriefService constructs the debrief service.
func NewDebriefService(backend debriefBackend, invalidator *Invalidator, validate *validator.Validate, semesterID string, logger *zap.Logger) *DebriefService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DebriefService{
		backend:     backend,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
		semesterID:  semesterID,
	}
}

// Submit records a debrief. Students always submit for themselves; admins
// must name the student.
func (s *DebriefService) Submit(ctx context.Context, req dto.CreateDebriefRequest, claims *models.PortalClaims) (*models.Debrief, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid debrief")
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	debrief := models.Debrief{
		StudentID:    strings.TrimSpace(req.StudentID),
		StudentEmail: strings.TrimSpace(req.StudentEmail),
		StudentName:  claims.FullName,
		ClientName:   strings.TrimSpace(req.ClientName),
		Clinic:       strings.TrimSpace(req.Clinic),
		HoursWorked:  req.HoursWorked,
		WorkSummary:  strings.TrimSpace(req.WorkSummary),
		Questions:    strings.TrimSpace(req.Questions),
		QuestionType: models.QuestionType(req.QuestionType),
		WeekEnding:   normalizer.NormalizeDate(req.WeekEnding),
		WeekNumber:   req.WeekNumber,
		Status:       models.DebriefSubmitted,
		SemesterID:   req.SemesterID,
	}
	switch claims.Role {
	case models.RoleStudent:
		debrief.StudentID = claims.EffectiveStudentID()
		if debrief.StudentEmail == "" {
			debrief.StudentEmail = claims.Email
		}
	case models.RoleAdmin:
		if debrief.StudentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
		}
		debrief.StudentName = ""
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students submit debriefs")
	}
	if debrief.WeekEnding == "" && debrief.WeekNumber == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekEnding or weekNumber is required")
	}
	if debrief.SemesterID == "" {
		debrief.SemesterID = s.semesterID
	}

	if debrief.ClientName == "" || debrief.Clinic == "" {
		mappings, err := s.backend.Mappings(ctx)
		if err != nil {
			if appErrors.IsAuthentication(err) || appErrors.IsPermission(err) {
				return nil, err
			}
			s.logger.Warn("debrief enrichment skipped", zap.Error(err))
		}
		debrief = normalizer.EnrichDebriefs([]models.Debrief{debrief}, mappings)[0]
	}

	created, err := s.backend.CreateDebrief(ctx, debrief)
	if err != nil {
		return nil, err
	}
	s.invalidator.Invalidate(ctx)
	s.logger.Info("debrief submitted", zap.String("student_id", created.StudentID), zap.String("week_ending", created.WeekEnding))
	return &created, nil
}

// List returns a student's debriefs, newest first. Students only see their own.
func (s *DebriefService) List(ctx context.Context, studentID, semesterID string, claims *models.PortalClaims) ([]models.Debrief, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleStudent {
		studentID = claims.EffectiveStudentID()
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if semesterID == "" {
		semesterID = s.semesterID
	}
	return s.backend.Debriefs(ctx, repository.DebriefFilter{StudentID: studentID, SemesterID: semesterID})
}

// Review changes a debrief's review status.
func (s *DebriefService) Review(ctx context.Context, id string, req dto.ReviewDebriefRequest, claims *models.PortalClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review")
	}
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleDirector && claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only directors review debriefs")
	}
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "debrief id is required")
	}
	if err := s.backend.UpdateDebriefStatus(ctx, id, models.ParseDebriefStatus(req.Status)); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx)
	return nil
}
