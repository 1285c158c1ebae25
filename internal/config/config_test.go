package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalTOML = `
[station]
id = "pnw-test-1"
latitude = 47.65
longitude = -122.3
altitude = 50.0
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skywatch.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalTOML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Station.ID != "pnw-test-1" {
		t.Errorf("Station.ID = %q", cfg.Station.ID)
	}
	if cfg.SDR.CaptureRate != 60000 {
		t.Errorf("SDR.CaptureRate = %d, want default 60000", cfg.SDR.CaptureRate)
	}
	if cfg.SDR.OutputRate != 11025 {
		t.Errorf("SDR.OutputRate = %d, want default 11025", cfg.SDR.OutputRate)
	}
	if cfg.Predict.MinElevation != 30 {
		t.Errorf("Predict.MinElevation = %.1f, want default 30", cfg.Predict.MinElevation)
	}
	if cfg.Predict.CacheMaxAgeDays != 7 {
		t.Errorf("Predict.CacheMaxAgeDays = %d, want default 7", cfg.Predict.CacheMaxAgeDays)
	}
	if len(cfg.Satellites) != 3 {
		t.Fatalf("got %d default satellites, want 3", len(cfg.Satellites))
	}
	if got := cfg.FrequencyFor("NOAA-18"); got != 137912500 {
		t.Errorf("FrequencyFor(NOAA-18) = %d, want 137912500", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalTOML+`
[predict]
min_elevation = 20.0
horizon_days = 2

[[satellites]]
name = "METEOR-M2"
freq_hz = 137100000
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Predict.MinElevation != 20 {
		t.Errorf("MinElevation = %.1f, want 20", cfg.Predict.MinElevation)
	}
	if cfg.Predict.HorizonDays != 2 {
		t.Errorf("HorizonDays = %d, want 2", cfg.Predict.HorizonDays)
	}
	// A satellites table in the file replaces the default catalog.
	if len(cfg.Satellites) != 1 || cfg.Satellites[0].Name != "METEOR-M2" {
		t.Errorf("satellite catalog not overridden: %+v", cfg.Satellites)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load of missing file should fail")
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	if _, err := Load(writeConfig(t, "[station\nid =")); err == nil {
		t.Error("Load of malformed TOML should fail")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Station.ID = "pnw-test-1"
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty station id", func(c *Config) { c.Station.ID = "" }, "station.id"},
		{"latitude out of range", func(c *Config) { c.Station.Latitude = 91 }, "latitude"},
		{"longitude out of range", func(c *Config) { c.Station.Longitude = -181 }, "longitude"},
		{"zero capture rate", func(c *Config) { c.SDR.CaptureRate = 0 }, "capture_rate"},
		{"output above capture rate", func(c *Config) { c.SDR.OutputRate = c.SDR.CaptureRate + 1 }, "output_rate"},
		{"empty tle url", func(c *Config) { c.Predict.TLEURL = "" }, "tle_url"},
		{"zero horizon", func(c *Config) { c.Predict.HorizonDays = 0 }, "horizon_days"},
		{"negative elevation", func(c *Config) { c.Predict.MinElevation = -1 }, "min_elevation"},
		{"zero max distance", func(c *Config) { c.Predict.MaxDistanceM = 0 }, "max_distance_m"},
		{"negative buffer", func(c *Config) { c.Predict.BufferMinutes = -1 }, "buffer_minutes"},
		{"zero refresh", func(c *Config) { c.Predict.RefreshHours = 0 }, "refresh_hours"},
		{"zero cache age", func(c *Config) { c.Predict.CacheMaxAgeDays = 0 }, "cache_max_age_days"},
		{"empty data root", func(c *Config) { c.Data.Root = "" }, "data.root"},
		{"upload enabled without url", func(c *Config) { c.Upload.Enabled = true; c.Upload.URL = "" }, "upload.url"},
		{"no satellites", func(c *Config) { c.Satellites = nil }, "satellites"},
		{"unnamed satellite", func(c *Config) { c.Satellites[0].Name = "" }, "name"},
		{"zero frequency", func(c *Config) { c.Satellites[0].FreqHz = 0 }, "freq_hz"},
		{"duplicate satellite", func(c *Config) { c.Satellites[1].Name = c.Satellites[0].Name }, "duplicate"},
	}

	for _, tc := range cases {
		cfg := valid()
		tc.mutate(&cfg)
		err := Validate(cfg)
		if err == nil {
			t.Errorf("%s: Validate accepted a bad config", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestValidateAcceptsDefaultsWithID(t *testing.T) {
	cfg := Default()
	cfg.Station.ID = "pnw-test-1"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate rejected defaults: %v", err)
	}
}

func TestFrequencyForUnknown(t *testing.T) {
	cfg := Default()
	if got := cfg.FrequencyFor("SPUTNIK-1"); got != 0 {
		t.Errorf("FrequencyFor(unknown) = %d, want 0", got)
	}
}

func TestLockFileUnderDataRoot(t *testing.T) {
	cfg := Default()
	cfg.Data.Root = "/tmp/sw-test"
	if got := cfg.LockFile(); got != "/tmp/sw-test/skywatchd.lock" {
		t.Errorf("LockFile = %q", got)
	}
}
