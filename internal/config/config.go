// Package config reads service settings from the environment (optionally
// seeded from a .env file) and tuning tables from YAML.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads .env into the process environment when present.
func Load(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
}

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// Crowd signal source kinds.
const (
	SourceSynthetic = "synthetic"
	SourceRedis     = "redis"
	SourceHTTP      = "http"
)

type Settings struct {
	Port         string
	TopologyPath string
	DatabaseURL  string
	TablesPath   string

	CrowdSource  string
	RedisAddr    string
	FeedURL      string
	FeedRPS      float64
	FeedTimeout  time.Duration
	WeatherURL   string
	WeatherValue float64

	RefreshSchedule string
	RefreshDebounce time.Duration
	RefreshTimeout  time.Duration
	SyntheticSeed   uint64
}

// FromEnv reads Settings and reports every invalid value at once.
func FromEnv() (Settings, error) {
	s := Settings{
		Port:            Get("PORT", "8080"),
		TopologyPath:    Get("TOPOLOGY_PATH", "data/topology.json"),
		DatabaseURL:     Get("DATABASE_URL", ""),
		TablesPath:      Get("TABLES_PATH", ""),
		CrowdSource:     strings.ToLower(Get("CROWD_SOURCE", SourceSynthetic)),
		RedisAddr:       Get("REDIS_ADDR", ""),
		FeedURL:         Get("CROWD_FEED_URL", ""),
		WeatherURL:      Get("WEATHER_URL", ""),
		RefreshSchedule: Get("REFRESH_SCHEDULE", "@every 30s"),
	}

	var errs []error
	var err error

	if s.FeedRPS, err = GetFloat("CROWD_FEED_RPS", 20); err != nil {
		errs = append(errs, err)
	}
	if s.FeedTimeout, err = GetDuration("CROWD_FEED_TIMEOUT", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	if s.WeatherValue, err = GetFloat("WEATHER_FACTOR", 1); err != nil {
		errs = append(errs, err)
	}
	if s.RefreshDebounce, err = GetDuration("REFRESH_DEBOUNCE", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	if s.RefreshTimeout, err = GetDuration("REFRESH_TIMEOUT", 20*time.Second); err != nil {
		errs = append(errs, err)
	}

	seed := Get("SYNTHETIC_SEED", "")
	if seed == "" {
		s.SyntheticSeed = uint64(time.Now().UnixNano())
	} else if s.SyntheticSeed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("config: SYNTHETIC_SEED: %w", err))
	}

	switch s.CrowdSource {
	case SourceSynthetic:
	case SourceRedis:
		if s.RedisAddr == "" {
			errs = append(errs, errors.New("config: CROWD_SOURCE=redis requires REDIS_ADDR"))
		}
	case SourceHTTP:
		if s.FeedURL == "" {
			errs = append(errs, errors.New("config: CROWD_SOURCE=http requires CROWD_FEED_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: CROWD_SOURCE: unknown source %q", s.CrowdSource))
	}

	if !(s.FeedRPS > 0) {
		errs = append(errs, fmt.Errorf("config: CROWD_FEED_RPS must be positive, got %v", s.FeedRPS))
	}
	if !(s.WeatherValue > 0) || s.WeatherValue > 1 {
		errs = append(errs, fmt.Errorf("config: WEATHER_FACTOR must be in (0,1], got %v", s.WeatherValue))
	}

	if len(errs) > 0 {
		return Settings{}, errors.Join(errs...)
	}
	return s, nil
}
