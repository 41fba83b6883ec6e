package config

import (
	_ "embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"kartpitsbot/pkg/scoring"
)

//go:embed sample_config.toml
var sampleConfig string

// Pit contains the pit lane layout created at start-up.
type Pit struct {
	Rows        int `toml:"rows"`
	KartsPerRow int `toml:"karts_per_row"`
}

// Poll contains the live timing feed settings.
type Poll struct {
	URL             string `toml:"url"`
	IntervalSeconds int    `toml:"interval_seconds"`
}

// Scoring contains the kart scoring tunables.
type Scoring struct {
	SettlingLaps        int     `toml:"settling_laps"`
	OutlierFactor       float64 `toml:"outlier_factor"`
	InconsistencyFactor float64 `toml:"inconsistency_factor"`
	BaselineStints      int     `toml:"baseline_stints"`
	ScoreMin            float64 `toml:"score_min"`
	ScoreMax            float64 `toml:"score_max"`
	MaxRetainedLaps     int     `toml:"max_retained_laps"`
}

type Web struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Telegram configures the operator bot and the pit announcements.
type Telegram struct {
	Token          string  `toml:"token"`
	NotifyChatIDs  []int64 `toml:"notify_chat_ids"`
	AllowedChatIDs []int64 `toml:"allowed_chat_ids"`
}

type Archive struct {
	Path string `toml:"path"`
}

type Console struct {
	Enabled bool `toml:"enabled"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config holds every setting of the service.
type Config struct {
	Pit      Pit      `toml:"pit"`
	Poll     Poll     `toml:"poll"`
	Scoring  Scoring  `toml:"scoring"`
	Web      Web      `toml:"web"`
	Telegram Telegram `toml:"telegram"`
	Archive  Archive  `toml:"archive"`
	Console  Console  `toml:"console"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigFile)
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// Load parses the file at path on top of Default, applies environment
// overrides and validates the result. A missing file is not an error; the
// returned bool reports whether it existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, errors.Wrap(err, "open config")
		}
		defer file.Close()

		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, "", false, errors.Wrap(err, "parse config")
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolvePath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigFile
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, errors.Wrap(err, "stat config")
	}
	if info.IsDir() {
		return "", false, errors.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

// ScoringParams converts the [scoring] section for the scorer.
func (c *Config) ScoringParams() scoring.Params {
	return scoring.Params{
		SettlingLaps:        c.Scoring.SettlingLaps,
		OutlierFactor:       c.Scoring.OutlierFactor,
		InconsistencyFactor: c.Scoring.InconsistencyFactor,
		BaselineStints:      c.Scoring.BaselineStints,
		ScoreMin:            c.Scoring.ScoreMin,
		ScoreMax:            c.Scoring.ScoreMax,
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

func expandPath(value string) (string, error) {
	if value == "" {
		return value, nil
	}
	if strings.HasPrefix(value, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		if value == "~" {
			value = home
		} else if len(value) > 1 && (value[1] == '/' || value[1] == '\\') {
			value = filepath.Join(home, value[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", errors.Wrapf(err, "resolve absolute path for %q", value)
	}
	return abs, nil
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create config directory")
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return errors.Wrap(err, "write sample config")
	}
	return nil
}
