// Package config loads the settings of the viewperf command line tool.
//
// Settings come from, in increasing priority: built-in defaults, a YAML
// configuration file, a .env file and VIEWPERF_* environment variables. A
// nested key such as report.warn_threshold maps to
// VIEWPERF_REPORT_WARN_THRESHOLD.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "VIEWPERF"

// Config represents the complete viewperf configuration.
type Config struct {
	Tracking TrackingConfig `mapstructure:"tracking"`
	Report   ReportConfig   `mapstructure:"report"`
	Async    AsyncConfig    `mapstructure:"async"`
	Record   RecordConfig   `mapstructure:"record"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

// TrackingConfig controls the span tracker.
type TrackingConfig struct {
	// MaxDepth is the maximum number of open spans per thread, including the
	// traversal root.
	MaxDepth int `mapstructure:"max_depth"`

	// DeliverAborted hands aborted traversals to the sinks instead of
	// discarding them.
	DeliverAborted bool `mapstructure:"deliver_aborted"`
}

// ReportConfig controls how traversals are reported.
type ReportConfig struct {
	// Format is one of "tree", "views", "json" or "none".
	Format string `mapstructure:"format"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// A traversal longer than a threshold is logged at the matching level.
	InfoThreshold  time.Duration `mapstructure:"info_threshold"`
	WarnThreshold  time.Duration `mapstructure:"warn_threshold"`
	ErrorThreshold time.Duration `mapstructure:"error_threshold"`

	// SegmentSize is the maximum length of one log message. Longer reports are
	// split.
	SegmentSize int `mapstructure:"segment_size"`

	// JSONPath is a file that receives every traversal as a line of JSON.
	// Empty disables it and AutoJSONPath picks a unique file name.
	JSONPath string `mapstructure:"json_path"`
}

// AutoJSONPath asks for a generated JSON output file name.
const AutoJSONPath = "auto"

// AsyncConfig controls the dispatch of traversals to the sinks.
type AsyncConfig struct {
	// QueueSize is the number of traversals that can wait for the sinks. Zero
	// calls the sinks on the rendering thread.
	QueueSize int `mapstructure:"queue_size"`
}

// RecordConfig controls the SQLite recording of traversals.
type RecordConfig struct {
	// Path is the database file. Empty disables recording.
	Path string `mapstructure:"path"`
}

// MonitorConfig controls the live monitoring server.
type MonitorConfig struct {
	// Port is the port of the server. Zero picks a free port.
	Port        int  `mapstructure:"port"`
	OpenBrowser bool `mapstructure:"open_browser"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Tracking: TrackingConfig{
			MaxDepth:       256,
			DeliverAborted: false,
		},
		Report: ReportConfig{
			Format:         FormatTree,
			LogLevel:       "info",
			LogFormat:      "text",
			InfoThreshold:  time.Millisecond,
			WarnThreshold:  16 * time.Millisecond,
			ErrorThreshold: 33 * time.Millisecond,
			SegmentSize:    3 * 1024,
		},
		Async: AsyncConfig{
			QueueSize: 0,
		},
		Monitor: MonitorConfig{
			Port: 0,
		},
	}
}

// SetDefaults registers the default values with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("tracking.max_depth", defaults.Tracking.MaxDepth)
	v.SetDefault("tracking.deliver_aborted", defaults.Tracking.DeliverAborted)

	v.SetDefault("report.format", defaults.Report.Format)
	v.SetDefault("report.log_level", defaults.Report.LogLevel)
	v.SetDefault("report.log_format", defaults.Report.LogFormat)
	v.SetDefault("report.info_threshold", defaults.Report.InfoThreshold)
	v.SetDefault("report.warn_threshold", defaults.Report.WarnThreshold)
	v.SetDefault("report.error_threshold", defaults.Report.ErrorThreshold)
	v.SetDefault("report.segment_size", defaults.Report.SegmentSize)
	v.SetDefault("report.json_path", defaults.Report.JSONPath)

	v.SetDefault("async.queue_size", defaults.Async.QueueSize)

	v.SetDefault("record.path", defaults.Record.Path)

	v.SetDefault("monitor.port", defaults.Monitor.Port)
	v.SetDefault("monitor.open_browser", defaults.Monitor.OpenBrowser)
}

// NewViper creates a viper instance with the defaults and the environment
// bindings of viewperf.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadDotEnv loads the given .env file into the process environment. A
// missing file is not an error. Variables that are already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}

	return nil
}

// Load reads the configuration file at path, if not empty, and returns the
// validated configuration.
func Load(path string) (*Config, error) {
	return LoadFrom(NewViper(), path)
}

// LoadFrom is like Load but uses the given viper instance.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
