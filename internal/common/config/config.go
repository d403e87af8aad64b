package config

import (
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/pkg/helper"
)

type (
	// BridgeConfig is the typed view of the bridge configuration file
	BridgeConfig struct {
		OSC            OSCConfig         `yaml:"osc"`
		Screenshots    ScreenshotsConfig `yaml:"screenshots"`
		CommandMapping map[string]string `yaml:"command_mapping"`
		Session        SessionConfig     `yaml:"session"`
		Logger         LoggerConfig      `yaml:"logger"`
		Notifier       NotifierConfig    `yaml:"notifier"`
		Admin          AdminConfig       `yaml:"admin"`
		Metrics        MetricsConfig     `yaml:"metrics"`
		PID            string            `yaml:"pid"`
	}

	// OSCConfig configures the inbound OSC listener
	OSCConfig struct {
		ListenAddress string `yaml:"listen_address"`
		ListenPort    int    `yaml:"listen_port"`
		QueueSize     int    `yaml:"queue_size"` // bounded listener -> router queue
	}

	// ScreenshotsConfig is kept for compatibility with existing config files
	ScreenshotsConfig struct {
		SavePath           string `yaml:"save_path"`
		RelativeToPictures bool   `yaml:"relative_to_pictures"`
	}

	// SessionConfig configures the mailbox websocket session
	SessionConfig struct {
		URL              string        `yaml:"url"`
		Origin           string        `yaml:"origin"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		Backoff          BackoffConfig `yaml:"backoff"`
	}

	// BackoffConfig defines reconnect backoff behavior
	BackoffConfig struct {
		InitialDelay time.Duration `yaml:"initial_delay"`
		Multiplier   float64       `yaml:"multiplier"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		Jitter       bool          `yaml:"jitter"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// AdminConfig configures the local admin HTTP server. Port 0 disables it.
	AdminConfig struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	}

	// MetricsConfig configures the prometheus collectors
	MetricsConfig struct {
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

// DefaultConfig returns the configuration used for every key the file does not set
func DefaultConfig() *BridgeConfig {
	return &BridgeConfig{
		OSC: OSCConfig{
			ListenAddress: "127.0.0.1",
			ListenPort:    9001,
			QueueSize:     256,
		},
		Screenshots: ScreenshotsConfig{
			SavePath:           "SteamVR",
			RelativeToPictures: true,
		},
		CommandMapping: map[string]string{},
		Session: SessionConfig{
			URL:              cnst.DefaultMailboxURL,
			Origin:           cnst.DefaultMailboxOrigin,
			HandshakeTimeout: 5 * time.Second,
			WriteTimeout:     5 * time.Second,
			Backoff: BackoffConfig{
				InitialDelay: 250 * time.Millisecond,
				Multiplier:   2.0,
				MaxDelay:     5 * time.Second,
				Jitter:       true,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "console",
			Output: "file",
		},
		Notifier: NotifierConfig{
			Role: string(RoleReceiver),
			Type: "signal",
			Signal: SignalConfig{
				Signal: "SIGHUP",
				PID:    cnst.BridgePID,
			},
			Redis: RedisConfig{
				ClusterType: cnst.RedisClusterTypeSingle,
				Topic:       "oscbridge:reload",
			},
		},
		Admin: AdminConfig{
			Host: "127.0.0.1",
		},
		Metrics: MetricsConfig{
			Namespace: "oscbridge",
		},
		PID: cnst.BridgePID,
	}
}

// LoadConfig loads configuration from a YAML file with environment variable support.
// Keys missing from the file keep their default values.
func LoadConfig(filename string) (*BridgeConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(resolveEnv(data), cfg); err != nil {
		return nil, cfgPath, err
	}
	if cfg.CommandMapping == nil {
		cfg.CommandMapping = map[string]string{}
	}
	return cfg, cfgPath, nil
}

var envPattern = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	return envPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := envPattern.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
