// Package config loads the lockup node configuration from an optional YAML
// file, an optional dotenv file and the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm"
)

// Config is the node configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// DataDir holds the accounts database and, unless JournalPath is set,
	// the journal.
	DataDir string `mapstructure:"data_dir"`

	// InMemory keeps accounts in memory. The journal is disabled.
	InMemory bool `mapstructure:"in_memory"`

	ListenAddress  string   `mapstructure:"listen_address"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogRequests    bool     `mapstructure:"log_requests"`

	JournalEnabled       bool          `mapstructure:"journal_enabled"`
	JournalPath          string        `mapstructure:"journal_path"`
	JournalRetainEntries uint64        `mapstructure:"journal_retain_entries"`
	JournalPruneInterval time.Duration `mapstructure:"journal_prune_interval"`

	LockupProgramID  string `mapstructure:"lockup_program_id"`
	ComputeUnitLimit uint64 `mapstructure:"compute_unit_limit"`
	MaxInvokeDepth   int    `mapstructure:"max_invoke_depth"`

	// SnapshotPath is loaded into an empty accounts database at startup and
	// rewritten at shutdown.
	SnapshotPath string `mapstructure:"snapshot_path"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

var defaultConfig = Config{
	LogLevel:  "info",
	LogFormat: "json",

	DataDir: "data",

	ListenAddress: ":8899",
	EnableCORS:    true,

	JournalEnabled:       true,
	JournalPruneInterval: time.Hour,

	LockupProgramID:  types.LockupProgramAddr.String(),
	ComputeUnitLimit: svm.CUDefault,
	MaxInvokeDepth:   4,

	ShutdownGracePeriod: 10 * time.Second,
}

// envBindings maps configuration keys to environment variables.
var envBindings = map[string]string{
	"log_level":  "LOCKUP_LOG_LEVEL",
	"log_format": "LOCKUP_LOG_FORMAT",

	"data_dir":  "LOCKUP_DATA_DIR",
	"in_memory": "LOCKUP_IN_MEMORY",

	"listen_address":  "LOCKUP_LISTEN_ADDRESS",
	"enable_cors":     "LOCKUP_ENABLE_CORS",
	"allowed_origins": "LOCKUP_ALLOWED_ORIGINS",
	"log_requests":    "LOCKUP_LOG_REQUESTS",

	"journal_enabled":        "LOCKUP_JOURNAL_ENABLED",
	"journal_path":           "LOCKUP_JOURNAL_PATH",
	"journal_retain_entries": "LOCKUP_JOURNAL_RETAIN_ENTRIES",
	"journal_prune_interval": "LOCKUP_JOURNAL_PRUNE_INTERVAL",

	"lockup_program_id":  "LOCKUP_PROGRAM_ID",
	"compute_unit_limit": "LOCKUP_COMPUTE_UNIT_LIMIT",
	"max_invoke_depth":   "LOCKUP_MAX_INVOKE_DEPTH",

	"snapshot_path": "LOCKUP_SNAPSHOT_PATH",

	"shutdown_grace_period": "LOCKUP_SHUTDOWN_GRACE_PERIOD",
}

// Default returns the default configuration.
func Default() Config {
	return defaultConfig
}

// Load reads the configuration. A missing configPath is not an error; an
// empty envPath skips the dotenv file. Environment variables override the
// file, which overrides the defaults.
func Load(configPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, errors.Wrapf(err, "failed to load env file %s", envPath)
		}
	}

	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "failed to read config %s", configPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to check if config exists")
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("listen_address must be set")
	}
	if !c.InMemory && c.DataDir == "" {
		return errors.New("data_dir must be set unless in_memory is enabled")
	}
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if c.ComputeUnitLimit == 0 {
		return errors.New("compute_unit_limit must be positive")
	}
	if c.MaxInvokeDepth < 1 {
		return errors.New("max_invoke_depth must be at least 1")
	}
	if _, err := logrus.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return errors.Wrap(err, "invalid log_level")
	}
	return nil
}

// ProgramID returns the parsed lockup program address.
func (c *Config) ProgramID() (types.Pubkey, error) {
	id, err := types.PubkeyFromBase58(c.LockupProgramID)
	if err != nil {
		return types.Pubkey{}, errors.Wrap(err, "invalid lockup_program_id")
	}
	return id, nil
}

// AccountsPath returns the accounts database directory.
func (c *Config) AccountsPath() string {
	return filepath.Join(c.DataDir, "accounts")
}

// JournalFile returns the journal database file.
func (c *Config) JournalFile() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}
	return filepath.Join(c.DataDir, "journal.db")
}

// JournalActive reports whether transactions are journaled.
func (c *Config) JournalActive() bool {
	return c.JournalEnabled && !c.InMemory
}

// ConfigureLogger applies the log level and format to the standard logger.
func (c *Config) ConfigureLogger() {
	switch strings.ToLower(c.LogFormat) {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", c.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
