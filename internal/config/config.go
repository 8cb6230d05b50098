// Package config loads togglguard settings from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

// Config holds all process settings.
type Config struct {
	Addr            string
	DBPath          string
	PostgresURL     string
	TogglBaseURL    string
	Team            []domain.Member
	UpstreamTimeout time.Duration
	RequestTimeout  time.Duration
	EntriesTTL      time.Duration
	TeamDayTTL      time.Duration
	TeamWeekTTL     time.Duration
	LogLevel        string
}

// DefaultConfig returns a Config with sensible defaults. The database lives
// under ~/.togglguard when the home directory is known.
func DefaultConfig() Config {
	dbPath := "togglguard.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".togglguard", "togglguard.db")
	}
	return Config{
		Addr:            ":8080",
		DBPath:          dbPath,
		TogglBaseURL:    toggl.DefaultBaseURL,
		UpstreamTimeout: 8 * time.Second,
		RequestTimeout:  15 * time.Second,
		EntriesTTL:      10 * time.Minute,
		TeamDayTTL:      10 * time.Minute,
		TeamWeekTTL:     30 * time.Minute,
		LogLevel:        "info",
	}
}

// Load reads configuration from environment variables, falling back to
// defaults for any unset or invalid values. Only a malformed TOGGL_TEAM is
// an error.
func Load() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("TOGGLGUARD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("TOGGLGUARD_DB"); v != "" {
		cfg.DBPath = v
	}
	cfg.PostgresURL = os.Getenv("TOGGLGUARD_POSTGRES_URL")
	if v := os.Getenv("TOGGL_API_BASE"); v != "" {
		cfg.TogglBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("TOGGLGUARD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	applyDurationEnv(&cfg.UpstreamTimeout, "TOGGLGUARD_UPSTREAM_TIMEOUT_MS", time.Millisecond)
	applyDurationEnv(&cfg.RequestTimeout, "TOGGLGUARD_REQUEST_TIMEOUT_MS", time.Millisecond)
	applyDurationEnv(&cfg.EntriesTTL, "TOGGLGUARD_ENTRIES_TTL_SECONDS", time.Second)
	applyDurationEnv(&cfg.TeamDayTTL, "TOGGLGUARD_TEAM_DAY_TTL_SECONDS", time.Second)
	applyDurationEnv(&cfg.TeamWeekTTL, "TOGGLGUARD_TEAM_WEEK_TTL_SECONDS", time.Second)

	if v := os.Getenv("TOGGL_TEAM"); v != "" {
		team, err := ParseTeam(v)
		if err != nil {
			return cfg, err
		}
		cfg.Team = team
	}
	return cfg, nil
}

// ParseTeam decodes TOGGL_TEAM, a JSON array of {"name","token"} objects.
func ParseTeam(raw string) ([]domain.Member, error) {
	var members []domain.Member
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return nil, fmt.Errorf("parsing TOGGL_TEAM: %w", err)
	}
	return domain.NewTeam(members).Members(), nil
}

// TogglConfig returns the upstream client settings.
func (c Config) TogglConfig() toggl.Config {
	return toggl.Config{BaseURL: c.TogglBaseURL, Timeout: c.UpstreamTimeout}
}

func applyDurationEnv(d *time.Duration, envName string, unit time.Duration) {
	v := os.Getenv(envName)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return
	}
	*d = time.Duration(n) * unit
}
