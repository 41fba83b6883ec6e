package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

func (c *Config) normalize() error {
	c.applyEnv()

	c.Poll.URL = strings.TrimSpace(c.Poll.URL)
	if c.Poll.IntervalSeconds <= 0 {
		c.Poll.IntervalSeconds = defaultPollInterval
	}
	if c.Scoring.MaxRetainedLaps <= 0 {
		c.Scoring.MaxRetainedLaps = defaultMaxRetainedLaps
	}

	c.Web.Address = strings.TrimSpace(c.Web.Address)
	if c.Web.Address == "" {
		c.Web.Address = defaultWebAddress
	}
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)

	var err error
	if c.Archive.Path, err = expandPath(strings.TrimSpace(c.Archive.Path)); err != nil {
		return errors.Wrap(err, "archive.path")
	}

	c.normalizeLogging()
	return nil
}

// applyEnv lets the usual deployment variables win over the file.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("TELEGRAM_TOKEN"); ok && strings.TrimSpace(v) != "" {
		c.Telegram.Token = v
	}
	if v, ok := os.LookupEnv("WEBSERVER_ADDRESS"); ok && strings.TrimSpace(v) != "" {
		c.Web.Address = v
	}
	if v, ok := os.LookupEnv("FEED_URL"); ok && strings.TrimSpace(v) != "" {
		c.Poll.URL = v
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
