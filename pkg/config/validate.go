package config

import (
	"net/url"

	"github.com/pkg/errors"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePit(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePit() error {
	if c.Pit.Rows < 1 {
		return errors.Errorf("pit.rows must be at least 1, got %d", c.Pit.Rows)
	}
	if c.Pit.KartsPerRow < 0 || c.Pit.KartsPerRow > maxKartsPerRow {
		return errors.Errorf("pit.karts_per_row must be between 0 and %d, got %d", maxKartsPerRow, c.Pit.KartsPerRow)
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.URL == "" {
		return nil
	}
	u, err := url.Parse(c.Poll.URL)
	if err != nil {
		return errors.Wrap(err, "poll.url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("poll.url must be http or https, got %q", c.Poll.URL)
	}
	return nil
}

func (c *Config) validateScoring() error {
	s := c.Scoring
	if s.SettlingLaps < 0 {
		return errors.Errorf("scoring.settling_laps must not be negative, got %d", s.SettlingLaps)
	}
	if s.OutlierFactor <= 0 {
		return errors.Errorf("scoring.outlier_factor must be positive, got %g", s.OutlierFactor)
	}
	if s.InconsistencyFactor <= 0 {
		return errors.Errorf("scoring.inconsistency_factor must be positive, got %g", s.InconsistencyFactor)
	}
	if s.BaselineStints < 1 {
		return errors.Errorf("scoring.baseline_stints must be at least 1, got %d", s.BaselineStints)
	}
	if s.ScoreMax <= s.ScoreMin {
		return errors.Errorf("scoring.score_max (%g) must be above scoring.score_min (%g)", s.ScoreMax, s.ScoreMin)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return errors.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
}
