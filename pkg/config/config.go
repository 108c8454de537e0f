package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config is the process configuration read from the environment
type Config struct {
	Port            string
	DatabaseURL     string
	DataPath        string
	JWTSecret       string
	APIMasterSecret string
	AdminUsername   string
	AdminPassword   string
	LogLevel        string
	LogFormat       string
	SolverConfig    string
	Timezone        string
	GinMode         string

	Location *time.Location
	Solver   SolverConfig
}

// LoadDotEnv loads the first .env found in the working directory or its parents.
// Variables already set in the environment win.
func LoadDotEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// FromEnv builds the config from environment variables, reading the solver
// tuning file when SOLVER_CONFIG is set.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getenv("PORT", "8000"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DataPath:        getenv("DATA_PATH", "shift_solver.db"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		APIMasterSecret: os.Getenv("API_MASTER_SECRET"),
		AdminUsername:   getenv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getenv("ADMIN_PASSWORD", "admin123"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
		SolverConfig:    os.Getenv("SOLVER_CONFIG"),
		Timezone:        getenv("TIMEZONE", "UTC"),
		GinMode:         os.Getenv("GIN_MODE"),
		Solver:          DefaultSolverConfig(),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.SolverConfig != "" {
		sc, err := LoadSolverConfig(cfg.SolverConfig)
		if err != nil {
			return nil, err
		}
		cfg.Solver = sc
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
