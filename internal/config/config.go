// Package config loads server configuration from an optional YAML file
// and KNOCK_* environment variables.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KNOCK_"

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the server configuration: built-in defaults, overlaid by an
// optional YAML file, overlaid by KNOCK_* environment variables.
type Config struct {
	HTTP struct {
		Host            string        `koanf:"host" yaml:"host"`
		Port            int           `koanf:"port" yaml:"port" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `koanf:"readTimeout" yaml:"readTimeout"`
		WriteTimeout    time.Duration `koanf:"writeTimeout" yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `koanf:"shutdownTimeout" yaml:"shutdownTimeout"`
	} `koanf:"http" yaml:"http"`

	Storage struct {
		Backend  string `koanf:"backend" yaml:"backend" validate:"oneof=file sqlite memory"`
		Path     string `koanf:"path" yaml:"path"`
		MaxBytes int    `koanf:"maxBytes" yaml:"maxBytes" validate:"gte=0"`
	} `koanf:"storage" yaml:"storage"`

	Proximity struct {
		RadiusMeters float64 `koanf:"radiusMeters" yaml:"radiusMeters" validate:"gt=0"`
	} `koanf:"proximity" yaml:"proximity"`

	// Timezone is the IANA zone that decides which day an entry belongs to.
	Timezone string `koanf:"timezone" yaml:"timezone" validate:"required"`

	Log Log `koanf:"log" yaml:"log"`

	Geocode struct {
		// Token is the Mapbox access token. Empty disables address lookup.
		Token         string  `koanf:"token" yaml:"token"`
		RatePerSecond float64 `koanf:"ratePerSecond" yaml:"ratePerSecond" validate:"gte=0"`
		Workers       int     `koanf:"workers" yaml:"workers" validate:"gte=1"`
	} `koanf:"geocode" yaml:"geocode"`
}

// Log selects the slog handler and minimum level for the server.
type Log struct {
	Pretty bool   `koanf:"pretty" yaml:"pretty"`
	Level  string `koanf:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
}

// defaults returns the built-in values keyed by koanf path.
func defaults() map[string]any {
	storagePath := "pins.json"
	if home, err := os.UserHomeDir(); err == nil {
		storagePath = filepath.Join(home, ".config", "knock", "pins.json")
	}

	return map[string]any{
		"http.host":              "",
		"http.port":              8080,
		"http.readTimeout":       10 * time.Second,
		"http.writeTimeout":      30 * time.Second,
		"http.shutdownTimeout":   10 * time.Second,
		"storage.backend":        BackendFile,
		"storage.path":           storagePath,
		"storage.maxBytes":       5 << 20,
		"proximity.radiusMeters": 4000.0,
		"timezone":               "Local",
		"log.pretty":             false,
		"log.level":              "info",
		"geocode.token":          "",
		"geocode.ratePerSecond":  5.0,
		"geocode.workers":        4,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then KNOCK_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, errors.Wrapf(err, "set default %s", key)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "config file %s", path)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s failed", path)
		}
	}

	known := k.Raw()

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, v string) (string, any) {
			// KNOCK_STORAGE_MAX_BYTES -> storage.maxBytes
			return canonicalizeEnvKey(strings.TrimPrefix(key, EnvPrefix), known), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges, the storage backend and the timezone.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.Storage.Backend != BackendMemory && c.Storage.Path == "" {
		return errors.Errorf("invalid config: storage.path is required for the %s backend", c.Storage.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", c.Timezone)
	}
	return loc, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.HTTP.Host, strconv.Itoa(c.HTTP.Port))
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// canonicalizeEnvKey maps an underscore-separated variable name onto the
// dotted path of an existing key. Consecutive segments are joined when
// together they name a known key, so MAX_BYTES finds maxBytes. Unknown
// segments are kept lowercased.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	var segments []string
	for _, s := range strings.Split(strings.ToLower(rawKey), "_") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	canonical := make([]string, 0, len(segments))
	current := existing

	for i := 0; i < len(segments); {
		matched, next, used := longestMatch(current, segments[i:])
		if used == 0 {
			canonical = append(canonical, segments[i])
			current = nil
			i++
			continue
		}
		canonical = append(canonical, matched)
		current = next
		i += used
	}

	return strings.Join(canonical, ".")
}

// longestMatch finds the key in current that equals the most leading segments joined together.
func longestMatch(current map[string]any, segments []string) (matched string, next map[string]any, used int) {
	if len(current) == 0 {
		return "", nil, 0
	}

	for n := len(segments); n > 0; n-- {
		needle := normalizeToken(strings.Join(segments[:n], ""))
		for key, value := range current {
			if normalizeToken(key) != needle {
				continue
			}
			child, _ := value.(map[string]any)
			return key, child, n
		}
	}
	return "", nil, 0
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
