// Package config handles loading, defaulting, and validation of the skywatch
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
//
// Validation is deliberately strict: the daemon refuses to start with a
// missing or partially valid configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Station    StationConfig     `toml:"station"    json:"station"`
	SDR        SDRConfig         `toml:"sdr"        json:"sdr"`
	Predict    PredictConfig     `toml:"predict"    json:"predict"`
	Data       DataConfig        `toml:"data"       json:"data"`
	Upload     UploadConfig      `toml:"upload"     json:"upload"`
	Server     ServerConfig      `toml:"server"     json:"server"`
	Satellites []SatelliteConfig `toml:"satellites" json:"satellites"`
}

// StationConfig identifies the ground station and its fixed location.
type StationConfig struct {
	ID        string  `toml:"id"        json:"id"`
	Latitude  float64 `toml:"latitude"  json:"latitude"`
	Longitude float64 `toml:"longitude" json:"longitude"`
	Altitude  float64 `toml:"altitude"  json:"altitude"`
	UseGPSD   bool    `toml:"use_gpsd"  json:"use_gpsd"`
	GPSDHost  string  `toml:"gpsd_host" json:"gpsd_host"`
}

type SDRConfig struct {
	DeviceIndex   int     `toml:"device_index"   json:"device_index"`
	Gain          float64 `toml:"gain"           json:"gain"`
	PPMCorrection int     `toml:"ppm_correction" json:"ppm_correction"`
	CaptureRate   int     `toml:"capture_rate"   json:"capture_rate"`
	OutputRate    int     `toml:"output_rate"    json:"output_rate"`
	Simulate      bool    `toml:"simulate"       json:"simulate"`
}

// PredictConfig holds the pass detection policy knobs.
type PredictConfig struct {
	TLEURL          string  `toml:"tle_url"            json:"tle_url"`
	HorizonDays     int     `toml:"horizon_days"       json:"horizon_days"`
	MinElevation    float64 `toml:"min_elevation"      json:"min_elevation"`
	MaxDistanceM    float64 `toml:"max_distance_m"     json:"max_distance_m"`
	BufferMinutes   int     `toml:"buffer_minutes"     json:"buffer_minutes"`
	RefreshHours    int     `toml:"refresh_hours"      json:"refresh_hours"`
	CacheMaxAgeDays int     `toml:"cache_max_age_days" json:"cache_max_age_days"`
}

type DataConfig struct {
	Root         string `toml:"root"           json:"root"`
	SaveDir      string `toml:"save_dir"       json:"save_dir"`
	PassesFile   string `toml:"passes_file"    json:"passes_file"`
	TLECacheFile string `toml:"tle_cache_file" json:"tle_cache_file"`
}

type UploadConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	URL     string `toml:"url"     json:"url"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// SatelliteConfig maps a tracked object name to its downlink frequency.
type SatelliteConfig struct {
	Name   string `toml:"name"    json:"name"`
	FreqHz int    `toml:"freq_hz" json:"freq_hz"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field. The default satellite catalog
// is the three active NOAA APT birds.
func Default() Config {
	return Config{
		Station: StationConfig{
			UseGPSD:  false,
			GPSDHost: "localhost:2947",
		},
		SDR: SDRConfig{
			DeviceIndex: 0,
			Gain:        40.0,
			CaptureRate: 60000,
			OutputRate:  11025,
		},
		Predict: PredictConfig{
			TLEURL:          "https://celestrak.org/NORAD/elements/gp.php?GROUP=weather&FORMAT=tle",
			HorizonDays:     1,
			MinElevation:    30,
			MaxDistanceM:    2200000,
			BufferMinutes:   2,
			RefreshHours:    12,
			CacheMaxAgeDays: 7,
		},
		Data: DataConfig{
			Root:         "/var/lib/skywatch",
			SaveDir:      "/var/lib/skywatch/recordings",
			PassesFile:   "/var/lib/skywatch/passes.json",
			TLECacheFile: "/var/lib/skywatch/tle_cache.json",
		},
		Upload: UploadConfig{
			Enabled: false,
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8080",
		},
		Satellites: []SatelliteConfig{
			{Name: "NOAA-15", FreqHz: 137620000},
			{Name: "NOAA-18", FreqHz: 137912500},
			{Name: "NOAA-19", FreqHz: 137100000},
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks every constraint the core depends on. A Config that fails
// Validate must never reach the scheduler.
func Validate(cfg Config) error {
	if cfg.Station.ID == "" {
		return errors.New("station.id must not be empty")
	}
	if cfg.Station.Latitude < -90 || cfg.Station.Latitude > 90 {
		return errors.New("station.latitude must be between -90 and 90")
	}
	if cfg.Station.Longitude < -180 || cfg.Station.Longitude > 180 {
		return errors.New("station.longitude must be between -180 and 180")
	}
	if cfg.SDR.CaptureRate <= 0 {
		return errors.New("sdr.capture_rate must be > 0")
	}
	if cfg.SDR.OutputRate <= 0 || cfg.SDR.OutputRate > cfg.SDR.CaptureRate {
		return errors.New("sdr.output_rate must be > 0 and <= sdr.capture_rate")
	}
	if cfg.Predict.TLEURL == "" {
		return errors.New("predict.tle_url must not be empty")
	}
	if cfg.Predict.HorizonDays < 1 {
		return errors.New("predict.horizon_days must be >= 1")
	}
	if cfg.Predict.MinElevation < 0 || cfg.Predict.MinElevation > 90 {
		return errors.New("predict.min_elevation must be between 0 and 90")
	}
	if cfg.Predict.MaxDistanceM <= 0 {
		return errors.New("predict.max_distance_m must be > 0")
	}
	if cfg.Predict.BufferMinutes < 0 {
		return errors.New("predict.buffer_minutes must be >= 0")
	}
	if cfg.Predict.RefreshHours < 1 {
		return errors.New("predict.refresh_hours must be >= 1")
	}
	if cfg.Predict.CacheMaxAgeDays < 1 {
		return errors.New("predict.cache_max_age_days must be >= 1")
	}
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if cfg.Data.SaveDir == "" {
		return errors.New("data.save_dir must not be empty")
	}
	if cfg.Data.PassesFile == "" {
		return errors.New("data.passes_file must not be empty")
	}
	if cfg.Data.TLECacheFile == "" {
		return errors.New("data.tle_cache_file must not be empty")
	}
	if cfg.Upload.Enabled && cfg.Upload.URL == "" {
		return errors.New("upload.url must not be empty when upload.enabled is true")
	}
	if len(cfg.Satellites) == 0 {
		return errors.New("at least one [[satellites]] entry is required")
	}
	seen := make(map[string]bool, len(cfg.Satellites))
	for i, sat := range cfg.Satellites {
		if sat.Name == "" {
			return fmt.Errorf("satellites[%d].name must not be empty", i)
		}
		if sat.FreqHz <= 0 {
			return fmt.Errorf("satellites[%d].freq_hz must be > 0", i)
		}
		if seen[sat.Name] {
			return fmt.Errorf("duplicate satellite name %q", sat.Name)
		}
		seen[sat.Name] = true
	}
	return nil
}

// FrequencyFor returns the configured downlink frequency for a satellite
// name, or 0 if the name is not in the catalog.
func (c Config) FrequencyFor(name string) int {
	for _, sat := range c.Satellites {
		if sat.Name == name {
			return sat.FreqHz
		}
	}
	return 0
}

// LockFile returns the path of the single-instance lock under the data root.
func (c Config) LockFile() string {
	return filepath.Join(c.Data.Root, "skywatchd.lock")
}
