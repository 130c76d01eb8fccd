package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Decision modes
const (
	ModeSimulation = "simulation"
	ModeModel      = "model"
)

// Config holds all configuration for the decision service
type Config struct {
	// HTTP
	Port           string
	AllowedOrigins []string

	// Storage
	DatabasePath string
	DatabaseURL  string // optional PostgreSQL mirror of decision runs

	// Engine
	DecisionMode string
	SimWorkers   int
	ForestTrees  int

	// Live reporting
	ReportInterval    time.Duration
	RetentionDuration time.Duration
	ScenarioTrains    int

	// GTFS-Realtime ingest
	GTFSVehiclePositionsURL string
	GTFSTripUpdatesURL      string
	TimetablePath           string

	// Training
	TrainSeed int64
}

// LoadEnvFiles loads .env then lets .env.local override it. Missing files are ignored.
func LoadEnvFiles(dir string) {
	_ = godotenv.Load(dir + "/.env")
	_ = godotenv.Overload(dir + "/.env.local")
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// HTTP
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		// Storage
		DatabasePath: getEnv("SQLITE_DATABASE", "./data/railsetu.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		// Engine
		DecisionMode: getEnv("DECISION_MODE", ModeSimulation),
		SimWorkers:   getEnvInt("SIM_WORKERS", 4),
		ForestTrees:  getEnvInt("FOREST_TREES", 150),

		// Live reporting
		ReportInterval:    time.Duration(getEnvInt("REPORT_INTERVAL", 30)) * time.Second,
		RetentionDuration: time.Duration(getEnvInt("RETENTION_HOURS", 24)) * time.Hour,
		ScenarioTrains:    getEnvInt("SCENARIO_TRAINS", 25),

		// GTFS-Realtime ingest
		GTFSVehiclePositionsURL: getEnv("GTFS_VEHICLE_POSITIONS_URL", ""),
		GTFSTripUpdatesURL:      getEnv("GTFS_TRIP_UPDATES_URL", ""),
		TimetablePath:           getEnv("TIMETABLE_PATH", "./data/timetable.json"),

		// Training
		TrainSeed: int64(getEnvInt("TRAIN_SEED", 42)),
	}
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	if c.DecisionMode != ModeSimulation && c.DecisionMode != ModeModel {
		return fmt.Errorf("DECISION_MODE must be %q or %q, got %q", ModeSimulation, ModeModel, c.DecisionMode)
	}
	if c.SimWorkers < 1 {
		return fmt.Errorf("SIM_WORKERS must be positive, got %d", c.SimWorkers)
	}
	if c.ForestTrees < 1 {
		return fmt.Errorf("FOREST_TREES must be positive, got %d", c.ForestTrees)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("REPORT_INTERVAL must be positive, got %s", c.ReportInterval)
	}
	if c.ScenarioTrains < 2 {
		return fmt.Errorf("SCENARIO_TRAINS must be at least 2, got %d", c.ScenarioTrains)
	}
	return nil
}

// LiveFeed reports whether a GTFS-Realtime source is configured
func (c *Config) LiveFeed() bool {
	return c.GTFSVehiclePositionsURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
