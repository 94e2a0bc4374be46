package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. EASYCLAIM_COOKIE.
const EnvPrefix = "EASYCLAIM"

// DefaultJournalPath returns ~/.easyclaim/journal.db.
func DefaultJournalPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".easyclaim", "journal.db")
}

// NewViper returns a viper instance with defaults and environment binding.
// Callers bind command flags onto it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers DefaultConfig values on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("server", d.Server)
	v.SetDefault("cookie", d.Cookie)
	v.SetDefault("task_type", string(d.TaskType))
	v.SetDefault("limit", d.Limit)
	v.SetDefault("interval", d.Interval)
	v.SetDefault("subject_id", d.SubjectID)
	v.SetDefault("step_id", d.StepID)
	v.SetDefault("clue_type_id", d.ClueTypeID)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("journal", DefaultJournalPath())
	v.SetDefault("json_logs", false)
	v.SetDefault("verbose", false)
}

// Load reads an optional config file (yaml or toml, by extension) into v and
// unmarshals the merged result. Precedence, lowest first: defaults, file,
// environment, flags.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}
