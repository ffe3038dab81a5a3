// Package config loads chatsync settings.
//
// Precedence, lowest first: built-in defaults, the YAML config file, a .env
// file, CHATSYNC_* environment variables, then command-line flags (applied
// by the cli package).
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/chatsync/internal/optimistic"
)

//go:embed schema.cue
var schemaSource string

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every setting a chatsync process needs.
type Config struct {
	// Self is the local identity used as author of optimistic writes.
	Self string `yaml:"self"`
	// DB is the SQLite database path.
	DB string `yaml:"db"`

	Transport   Transport `yaml:"transport"`
	Sync        Sync      `yaml:"sync"`
	MetricsAddr string    `yaml:"metrics_addr"`
	Log         Log       `yaml:"log"`
}

// Transport configures the push socket and the snapshot endpoint.
type Transport struct {
	WSURL           string   `yaml:"ws_url"`
	HTTPURL         string   `yaml:"http_url"`
	RefreshInterval Duration `yaml:"refresh_interval"`
	Timeout         Duration `yaml:"timeout"`
}

// Sync configures reconciliation.
type Sync struct {
	Dedup       bool     `yaml:"dedup"`
	MatchWindow Duration `yaml:"match_window"`
	ConflictAge Duration `yaml:"conflict_age"`
}

// Log configures the slog handler.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DB: "chatsync.db",
		Transport: Transport{
			Timeout: Duration(10 * time.Second),
		},
		Sync: Sync{
			MatchWindow: Duration(optimistic.DefaultMatchWindow),
			ConflictAge: Duration(2 * optimistic.DefaultMatchWindow),
		},
		Log: Log{Level: "info"},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	if err := Parse(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the schema and decodes it onto cfg. Keys
// absent from data keep their value in cfg.
func Parse(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := validate(raw); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// validate unifies raw with #Config.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks settings that only make sense once every layer is
// applied.
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.Transport.RefreshInterval < 0 {
		errs = append(errs, errors.New("refresh interval must not be negative"))
	}
	if c.Sync.MatchWindow <= 0 {
		errs = append(errs, errors.New("match window must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
