package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/shift-solver-api/pkg/app"
	"github.com/arnavshah/shift-solver-api/pkg/config"
	"github.com/arnavshah/shift-solver-api/pkg/logging"
)

var (
	once     sync.Once
	r        *gin.Engine
	buildErr error
)

func setup() {
	// Load .env if it exists (for local testing with vercel dev)
	config.LoadDotEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		buildErr = err
		return
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		buildErr = err
		return
	}
	r, buildErr = app.Build(context.Background(), cfg, logger)
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	once.Do(setup)
	if buildErr != nil {
		http.Error(w, buildErr.Error(), http.StatusInternalServerError)
		return
	}
	r.ServeHTTP(w, req)
}
