// Command portalctl prints and exports portal dashboards from the command
// line using the same backend and aggregation code as the API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/noah-isme/clinic-portal-api/internal/repository"
	"github.com/noah-isme/clinic-portal-api/internal/semester"
	"github.com/noah-isme/clinic-portal-api/internal/service"
	"github.com/noah-isme/clinic-portal-api/pkg/cache"
	"github.com/noah-isme/clinic-portal-api/pkg/config"
	"github.com/noah-isme/clinic-portal-api/pkg/fetch"
	"github.com/noah-isme/clinic-portal-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(ctx, connect)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect builds an uncached dashboard service from the environment.
func connect(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Log.Format = "console"
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	headers := http.Header{}
	if cfg.Backend.APIKey != "" {
		headers.Set("apikey", cfg.Backend.APIKey)
		headers.Set("Authorization", "Bearer "+cfg.Backend.APIKey)
	}
	client := fetch.New(fetch.Options{
		HTTPClient:      &http.Client{Timeout: cfg.Backend.Timeout},
		MaxRetries:      cfg.Backend.MaxRetries,
		BackoffBase:     cfg.Backend.BackoffBase,
		JitterMax:       cfg.Backend.JitterMax,
		SequentialDelay: cfg.Backend.SequentialDelay,
		Headers:         headers,
		Logger:          logr.Named("fetch"),
	})

	calendar := semester.DefaultCalendar()
	calendar.ClassHour = cfg.Syllabus.ClassHour
	calendar.ClassMinute = cfg.Syllabus.ClassMinute
	dashboards := service.NewDashboardService(service.DashboardServiceParams{
		Backend: repository.NewBackendRepository(client, cfg.Backend.BaseURL, logr.Named("backend")),
		Logger:  logr.Named("dashboard"),
		Config: service.DashboardServiceConfig{
			TopN:                   cfg.Dashboard.TopN,
			SemesterID:             cfg.Dashboard.SemesterID,
			HoursPerStudentPerWeek: cfg.Syllabus.HoursPerStudentPerWeek,
			ClientHoursTarget:      cfg.Syllabus.ClientHoursTarget,
			Clinics:                cfg.Dashboard.Clinics,
			Calendar:               calendar,
		},
	})

	d := &deps{
		dashboards: dashboards,
		exports:    service.NewExportService(dashboards, nil, nil, logr.Named("exports")),
		logger:     logr,
	}
	d.purge = func(ctx context.Context) error {
		rdb, err := cache.NewRedis(ctx, cfg.Redis, logr)
		if err != nil {
			return err
		}
		if rdb == nil {
			logr.Info("redis disabled, nothing to purge")
			return nil
		}
		defer rdb.Close() //nolint:errcheck
		return repository.NewCacheRepository(rdb, logr).DeleteByPattern(ctx, service.AllViews())
	}
	return d, nil
}

func (d *deps) close() {
	if d.logger != nil {
		_ = d.logger.Sync()
	}
}
