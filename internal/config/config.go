// Package config layers the helper and plugin binaries' tunables — the
// ones outside spec.md §6's two required command-line flags — on top of
// an optional config file and environment variables via viper, with
// sensible defaults. Command-line flags always win over a file/env value,
// following ijakenorton-Roundtable's cmd/config pattern.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds every helper tunable outside --push-uid/--flx4-uid, which
// cmd/helper parses directly with the flag package per spec.md §6.
type Config struct {
	// NominalSampleRate seeds a device's drift tracker when the hardware
	// reports no usable nominal rate of its own.
	NominalSampleRate float64

	// CueProcessMatch / CueStreamIndex configure the optional cue tap
	// (spec.md §1/§4.4/§6).
	CueProcessMatch string
	CueStreamIndex  int

	// LogLevel is one of "none", "error", "warn", "info", "debug".
	LogLevel string
	// LogFile, if set, switches the logger to a JSON file handler;
	// otherwise it logs text to stderr.
	LogFile string

	// ServiceName overrides handshake.ServiceName for development against
	// a non-default helper instance.
	ServiceName string
}

func setDefaults() {
	viper.SetDefault("nominalsamplerate", 48000.0)
	viper.SetDefault("cueprocessmatch", "algoriddim")
	viper.SetDefault("cuestreamindex", 1)
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("servicename", "")
}

// Overrides carries values already parsed from flags. A non-empty field
// takes precedence over whatever viper resolved from file/env/default.
type Overrides struct {
	LogLevel    string
	LogFile     string
	ServiceName string
}

// Load resolves a Config from viper's defaults, an optional config file,
// the environment (prefixed AGGREGATE_), and finally flag overrides — in
// increasing order of precedence, so a flag always wins.
func Load(configFilePath string, overrides Overrides) (Config, error) {
	setDefaults()

	if configFilePath != "" {
		viper.SetConfigFile(configFilePath)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("config: read config file %q: %w", configFilePath, err)
			}
		}
	}

	viper.SetEnvPrefix("aggregate")
	viper.AutomaticEnv()

	cfg := Config{
		NominalSampleRate: viper.GetFloat64("nominalsamplerate"),
		CueProcessMatch:   viper.GetString("cueprocessmatch"),
		CueStreamIndex:    viper.GetInt("cuestreamindex"),
		LogLevel:          viper.GetString("loglevel"),
		LogFile:           viper.GetString("logfile"),
		ServiceName:       viper.GetString("servicename"),
	}

	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.LogFile != "" {
		cfg.LogFile = overrides.LogFile
	}
	if overrides.ServiceName != "" {
		cfg.ServiceName = overrides.ServiceName
	}

	return cfg, nil
}
