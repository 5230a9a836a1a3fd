package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port     string    `toml:"port"`
	DBPath   string    `toml:"db_path"`
	Log      LogConfig `toml:"log"`
	API      APIConfig `toml:"api"`
	Progress Progress  `toml:"progress"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type APIConfig struct {
	URL     string   `toml:"url"`
	UserID  string   `toml:"user_id"`
	Timeout Duration `toml:"timeout"`
}

type Progress struct {
	// Timezone names the IANA zone whose calendar day bounds a check-in
	// cycle. Empty means the device's local zone.
	Timezone      string `toml:"timezone"`
	ResetOnSwitch bool   `toml:"reset_on_switch"`
}

// Duration decodes TOML strings such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Config {
	return Config{
		Port:   "8080",
		DBPath: "questwalk.db",
		Log:    LogConfig{Level: "info", Format: "text"},
		API: APIConfig{
			URL:     "http://localhost:5000/api",
			UserID:  "1",
			Timeout: Duration{10 * time.Second},
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file and
// the environment, in increasing precedence. A .env file in the working
// directory is loaded first if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "QUESTWALK_PORT")
	setString(&c.DBPath, "QUESTWALK_DB_PATH")
	setString(&c.Log.Level, "QUESTWALK_LOG_LEVEL")
	setString(&c.Log.Format, "QUESTWALK_LOG_FORMAT")
	setString(&c.API.URL, "QUESTWALK_API_URL")
	setString(&c.API.UserID, "QUESTWALK_USER_ID")
	setString(&c.Progress.Timezone, "QUESTWALK_TIMEZONE")

	if v := os.Getenv("QUESTWALK_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QUESTWALK_API_TIMEOUT: %w", err)
		}
		c.API.Timeout = Duration{d}
	}
	if v := os.Getenv("QUESTWALK_RESET_ON_SWITCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("QUESTWALK_RESET_ON_SWITCH: %w", err)
		}
		c.Progress.ResetOnSwitch = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Location resolves the check-in timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Progress.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Progress.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Progress.Timezone, err)
	}
	return loc, nil
}
