// Package config defines and loads the easyclaim configuration.
package config

import (
	"math"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/fentz26/easyclaim/internal/remote"
)

// DefaultServer is the task API the tool was built against.
const DefaultServer = "https://easylearn.baidu.com"

// Config is the validated input of a claiming run.
type Config struct {
	// Server is the base URL of the task API.
	Server string `mapstructure:"server" yaml:"server"`
	// Cookie is the session credential sent with every request.
	Cookie string `mapstructure:"cookie" yaml:"cookie"`
	// TaskType selects the pool: audittask or producetask.
	TaskType models.TaskType `mapstructure:"task_type" yaml:"task_type"`
	// Limit caps the tasks claimed in one run.
	Limit int `mapstructure:"limit" yaml:"limit"`
	// Interval is the poll interval in seconds; fractions are allowed and
	// zero disables the delay.
	Interval float64 `mapstructure:"interval" yaml:"interval"`

	SubjectID  int `mapstructure:"subject_id" yaml:"subject_id"`
	StepID     int `mapstructure:"step_id" yaml:"step_id"`
	ClueTypeID int `mapstructure:"clue_type_id" yaml:"clue_type_id"`

	// PageSize is the number of tasks requested per list query.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
	// Timeout bounds each remote call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// UserAgent overrides the browser identity presented to the API.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`

	// Journal is the sqlite run journal path; empty disables it.
	Journal string `mapstructure:"journal" yaml:"journal"`
	// JSONLogs switches log output to JSON.
	JSONLogs bool `mapstructure:"json_logs" yaml:"json_logs"`
	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServer,
		TaskType:   models.TaskTypeAudit,
		Limit:      10,
		Interval:   3.0,
		SubjectID:  2,
		StepID:     1,
		ClueTypeID: 1,
		PageSize:   remote.DefaultPageSize,
		Timeout:    remote.DefaultClientTimeout,
		UserAgent:  remote.DefaultUserAgent,
	}
}

// Validate checks the fields a run depends on.
func (c *Config) Validate() error {
	if c.Cookie == "" {
		return errors.WithHint(errors.New("cookie is required"),
			"pass --cookie, set EASYCLAIM_COOKIE or run easyclaim login")
	}
	if err := c.ValidateServer(); err != nil {
		return err
	}
	if !c.TaskType.Valid() {
		return errors.Newf("task type must be %s or %s, got %q",
			models.TaskTypeAudit, models.TaskTypeProduce, c.TaskType)
	}
	if c.Limit < 0 {
		return errors.Newf("limit must be non-negative, got %d", c.Limit)
	}
	if c.Interval < 0 || math.IsNaN(c.Interval) || math.IsInf(c.Interval, 0) {
		return errors.Newf("interval must be a non-negative number of seconds, got %v", c.Interval)
	}
	if c.PageSize <= 0 {
		return errors.Newf("page size must be positive, got %d", c.PageSize)
	}
	if c.Timeout < 0 {
		return errors.Newf("timeout must be non-negative, got %s", c.Timeout)
	}
	return nil
}

// ValidateServer checks only the server URL, for commands that do not need
// the full run configuration.
func (c *Config) ValidateServer() error {
	u, err := url.Parse(c.Server)
	if err != nil {
		return errors.Wrapf(err, "invalid server URL %q", c.Server)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Newf("server URL must be http(s)://host, got %q", c.Server)
	}
	return nil
}

// IntervalDuration converts Interval to a time.Duration.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

// Filter returns the list query the run polls with.
func (c *Config) Filter() models.Filter {
	return models.Filter{
		TaskType: c.TaskType,
		Subject:  c.SubjectID,
		Step:     c.StepID,
		ClueType: c.ClueTypeID,
		Page:     1,
		PageSize: c.PageSize,
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Cookie != "" {
		out.Cookie = "<redacted>"
	}
	return &out
}
