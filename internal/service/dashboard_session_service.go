package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/session"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/middleware/requestid"
)

// Session states.
const (
	SessionEmpty   = "empty"
	SessionLoading = "loading"
	SessionReady   = "ready"
	SessionFailed  = "failed"
)

type dashboardBuilder interface {
	Dashboard(ctx context.Context, q Query) (*dto.DashboardResponse, bool, error)
}

type sessionResult struct {
	dashboard *dto.DashboardResponse
	err       string
}

// DashboardSessionService rebuilds a viewer's dashboard in the background
// whenever the selection changes. Only the newest selection's result is kept.
type DashboardSessionService struct {
	builder dashboardBuilder
	store   *session.Store[sessionResult]
	metrics *MetricsService
	logger  *zap.Logger
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DashboardSessionConfig tunes session behaviour.
type DashboardSessionConfig struct {
	TTL          time.Duration
	BuildTimeout time.Duration
}

// NewDashboardSessionService constructs the session service.
func NewDashboardSessionService(builder dashboardBuilder, metrics *MetricsService, logger *zap.Logger, cfg DashboardSessionConfig) *DashboardSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &DashboardSessionService{
		builder: builder,
		store:   session.NewStore[sessionResult](cfg.TTL),
		metrics: metrics,
		logger:  logger,
		timeout: cfg.BuildTimeout,
		base:    base,
		cancel:  cancel,
	}
}

// Update starts a rebuild for the new selection and returns immediately.
// Any rebuild still running for the session is cancelled.
func (s *DashboardSessionService) Update(ctx context.Context, id string, q Query) dto.DashboardSession {
	tracker := s.store.Acquire(id)

	parent := s.base
	if reqID := requestid.FromContext(ctx); reqID != "" {
		parent = requestid.WithContext(parent, reqID)
	}
	ticket, buildCtx := tracker.Begin(parent, q.Key())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(buildCtx, s.timeout)
		defer cancel()

		resp, _, err := s.builder.Dashboard(ctx, q)
		result := sessionResult{dashboard: resp}
		if err != nil {
			if buildCtx.Err() != nil {
				s.metrics.RecordStaleResult()
				return
			}
			result = sessionResult{err: appErrors.UserMessage(err)}
			s.logger.Warn("dashboard session build failed", zap.String("session", id), zap.Error(err))
		}
		if !tracker.Resolve(ticket, result) {
			s.metrics.RecordStaleResult()
			s.logger.Debug("dashboard session result superseded", zap.String("session", id), zap.Uint64("generation", ticket.Generation))
		}
	}()

	out := s.view(id, tracker.Latest())
	out.Selection = selectionOf(q)
	out.Status = SessionLoading
	return out
}

// Get returns the latest committed state of a session.
func (s *DashboardSessionService) Get(id string) (dto.DashboardSession, error) {
	tracker, ok := s.store.Get(id)
	if !ok {
		return dto.DashboardSession{}, appErrors.Clone(appErrors.ErrNotFound, "dashboard session not found")
	}
	return s.view(id, tracker.Latest()), nil
}

// Delete drops a session and cancels its rebuild.
func (s *DashboardSessionService) Delete(id string) {
	s.store.Delete(id)
}

// Sweep evicts idle sessions.
func (s *DashboardSessionService) Sweep() int {
	return s.store.Evict()
}

// Wait blocks until every running rebuild has finished.
func (s *DashboardSessionService) Wait() {
	s.wg.Wait()
}

// Close cancels every running rebuild and waits for them to exit.
func (s *DashboardSessionService) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *DashboardSessionService) view(id string, snap session.Snapshot[sessionResult]) dto.DashboardSession {
	out := dto.DashboardSession{
		SessionID:  id,
		Generation: snap.Generation,
		Status:     SessionEmpty,
		UpdatedAt:  snap.UpdatedAt,
	}
	if snap.HasValue {
		out.Dashboard = snap.Value.dashboard
		out.Error = snap.Value.err
		out.Status = SessionReady
		if snap.Value.err != "" {
			out.Status = SessionFailed
		}
		if snap.Value.dashboard != nil {
			out.Selection = snap.Value.dashboard.Selection
		}
	}
	if snap.Pending {
		out.Status = SessionLoading
	}
	return out
}
