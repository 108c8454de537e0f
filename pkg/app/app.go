// Package app wires configuration, storage and the HTTP router together.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arnavshah/shift-solver-api/pkg/auth"
	"github.com/arnavshah/shift-solver-api/pkg/config"
	"github.com/arnavshah/shift-solver-api/pkg/database"
	"github.com/arnavshah/shift-solver-api/pkg/handlers"
	"github.com/arnavshah/shift-solver-api/pkg/logging"
	"github.com/arnavshah/shift-solver-api/pkg/metrics"
	"github.com/arnavshah/shift-solver-api/pkg/planner"
	"github.com/arnavshah/shift-solver-api/pkg/scheduler"
)

// Build opens the database, seeds the admin user and returns the router
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gin.Engine, error) {
	log = logging.OrNop(log)

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		return nil, err
	}
	store := database.NewStore(db)

	authn := auth.New(cfg.JWTSecret, cfg.APIMasterSecret)
	if err := authn.EnsureAdminExists(ctx, store, cfg.AdminUsername, cfg.AdminPassword, log); err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	opts := cfg.Solver.Options(cfg.Location)
	solver := scheduler.NewSolver(opts)
	collector := metrics.NewCollector()

	h := &handlers.Handler{
		Store:       store,
		Auth:        authn,
		Solver:      solver,
		History:     scheduler.NewHistoryAggregator(opts),
		HistoryDays: cfg.Solver.HistoryDays,
		Planner: planner.New(store, solver,
			planner.WithLogger(log.Named("planner")),
			planner.WithMetrics(collector),
			planner.WithHistoryDays(cfg.Solver.HistoryDays),
		),
		Manual:  cfg.Solver.ManualPolicy(),
		Metrics: collector,
		Logger:  log.Named("http"),
	}
	return handlers.NewRouter(h), nil
}
