package config

import "kartpitsbot/pkg/scoring"

const (
	defaultConfigFile      = "~/.config/kartpit/config.toml"
	defaultPitRows         = 2
	defaultKartsPerRow     = 3
	defaultPollInterval    = 5
	defaultMaxRetainedLaps = 200
	defaultWebAddress      = ":8080"
	defaultArchivePath     = "~/.local/share/kartpit/exports.db"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"

	maxKartsPerRow = 64
)

// Default returns a Config populated with the service defaults.
func Default() Config {
	return Config{
		Pit: Pit{
			Rows:        defaultPitRows,
			KartsPerRow: defaultKartsPerRow,
		},
		Poll: Poll{
			IntervalSeconds: defaultPollInterval,
		},
		Scoring: Scoring{
			SettlingLaps:        scoring.DefaultSettlingLaps,
			OutlierFactor:       scoring.DefaultOutlierFactor,
			InconsistencyFactor: scoring.DefaultInconsistencyFactor,
			BaselineStints:      scoring.DefaultBaselineStints,
			ScoreMin:            scoring.DefaultScoreMin,
			ScoreMax:            scoring.DefaultScoreMax,
			MaxRetainedLaps:     defaultMaxRetainedLaps,
		},
		Web: Web{
			Enabled: true,
			Address: defaultWebAddress,
		},
		Archive: Archive{
			Path: defaultArchivePath,
		},
		Console: Console{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
