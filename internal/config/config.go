package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/wu-weather/internal/weather"
)

const defaultStationName = "WU Weather"

// Observations API throttle defaults. A zero rate leaves the API unthrottled;
// every station job fires on the same tick, so a low shared rate makes the
// last stations miss their cycle deadline.
const (
	DefaultAPIRateLimit = 0.0
	DefaultAPIRateBurst = 3
)

var validate = validator.New()

// AppConfig is the runtime configuration of the service.
type AppConfig struct {
	// FetchInterval controls how often every station is refreshed.
	FetchInterval time.Duration `validate:"gt=0"`

	// HTTPTimeout bounds each outbound request.
	HTTPTimeout time.Duration `validate:"gt=0"`

	// Stations to track.
	Stations []weather.StationConfig `validate:"dive"`

	// Observations API settings.
	ObservationsURL string  `validate:"omitempty,url"`
	APIRateLimit    float64 `validate:"gte=0"` // requests per second, 0 = unlimited
	APIRateBurst    int     `validate:"gte=1"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	Port string `validate:"required,numeric"`
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	// Scheduler interval: default 5 minutes.
	interval, err := time.ParseDuration(getenvDefault("FETCH_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.ObservationsURL = os.Getenv("OBSERVATIONS_API_URL")
	cfg.APIRateLimit = getenvFloat("API_RATE_LIMIT", DefaultAPIRateLimit)
	cfg.APIRateBurst = getenvInt("API_RATE_BURST", DefaultAPIRateBurst)

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")
	cfg.Port = getenvDefault("PORT", "8080")

	stations, err := loadStations()
	if err != nil {
		return nil, err
	}
	cfg.Stations = stations

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ValidateStation checks a single station definition.
func ValidateStation(st weather.StationConfig) error {
	return validate.Struct(st)
}

type stationsFile struct {
	Stations []weather.StationConfig `yaml:"stations"`
}

// loadStations reads STATIONS_FILE when set, otherwise a single station from
// WU_STATION_NAME / WU_CURRENT_WEATHER_URL / WU_STATION_ID.
func loadStations() ([]weather.StationConfig, error) {
	if path := os.Getenv("STATIONS_FILE"); path != "" {
		return readStationsFile(path)
	}

	u := os.Getenv("WU_CURRENT_WEATHER_URL")
	if u == "" {
		return nil, nil
	}
	return []weather.StationConfig{{
		Name:      getenvDefault("WU_STATION_NAME", defaultStationName),
		URL:       u,
		StationID: os.Getenv("WU_STATION_ID"),
	}}, nil
}

func readStationsFile(path string) ([]weather.StationConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}

	var f stationsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse stations file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Stations))
	for _, st := range f.Stations {
		if seen[st.Name] {
			return nil, fmt.Errorf("stations file %s: duplicate station name %q", path, st.Name)
		}
		seen[st.Name] = true
	}
	if len(f.Stations) == 0 {
		return nil, fmt.Errorf("stations file %s defines no stations", path)
	}
	return f.Stations, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
