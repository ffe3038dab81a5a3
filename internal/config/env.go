package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHATSYNC_"

// LoadDotenv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// ApplyEnv overlays CHATSYNC_* variables from the process environment.
// It reports whether any variable was used.
func ApplyEnv(cfg *Config) (bool, error) {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) (bool, error) {
	used := false
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
			used = true
		}
	}
	var errs []error
	dur := func(name string, dst *Duration) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = Duration(d)
		used = true
	}

	str("SELF", &cfg.Self)
	str("DB", &cfg.DB)
	str("WS_URL", &cfg.Transport.WSURL)
	str("HTTP_URL", &cfg.Transport.HTTPURL)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	str("LOG_LEVEL", &cfg.Log.Level)
	dur("REFRESH_INTERVAL", &cfg.Transport.RefreshInterval)
	dur("TIMEOUT", &cfg.Transport.Timeout)
	dur("MATCH_WINDOW", &cfg.Sync.MatchWindow)
	dur("CONFLICT_AGE", &cfg.Sync.ConflictAge)

	if v, ok := lookup(EnvPrefix + "DEDUP"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sDEDUP: %w", EnvPrefix, err))
		} else {
			cfg.Sync.Dedup = b
			used = true
		}
	}
	return used, errors.Join(errs...)
}
