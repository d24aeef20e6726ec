package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/rss-pulse.db" description:"SQLite database file"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background task workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"In-process refresh trigger interval in seconds (0 disables it)"`
	CronSecret        string `long:"cron-secret" env:"CRON_SECRET" description:"Shared secret required by the cron refresh endpoint"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Refresh scheduling
	DefaultRefreshInterval int `long:"default-refresh-interval" env:"DEFAULT_REFRESH_INTERVAL" default:"900" description:"Default feed cadence in seconds"`
	RetryInterval          int `long:"retry-interval" env:"RETRY_INTERVAL" default:"300" description:"Delay before a failed feed becomes due again, in seconds"`
	MaxConsecutiveFailures int `long:"max-consecutive-failures" env:"MAX_CONSECUTIVE_FAILURES" default:"0" description:"Failures in a row before a feed is marked ERROR (0 never)"`
	FetchTimeout           int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10" description:"Default fetch timeout in seconds"`
	MaxInFlight            int `long:"max-in-flight" env:"MAX_IN_FLIGHT" default:"5" description:"Maximum feeds refreshed concurrently within a batch"`

	// Audit
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the audit log (optional)"`
	RedisAuditKey string `long:"redis-audit-key" env:"REDIS_AUDIT_KEY" default:"rss-pulse:audit" description:"Redis list receiving audit entries"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Pulse/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFile   string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file, rotated"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses args instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:                 raw.DBPath,
		FeedsDir:               raw.FeedsDir,
		Port:                   raw.Port,
		WorkerCount:            raw.WorkerCount,
		SchedulerInterval:      raw.SchedulerInterval,
		CronSecret:             raw.CronSecret,
		APIAccessKey:           raw.APIAccessKey,
		DefaultRefreshInterval: raw.DefaultRefreshInterval,
		RetryInterval:          raw.RetryInterval,
		MaxConsecutiveFailures: raw.MaxConsecutiveFailures,
		FetchTimeout:           raw.FetchTimeout,
		MaxInFlight:            raw.MaxInFlight,
		RedisAddr:              raw.RedisAddr,
		RedisAuditKey:          raw.RedisAuditKey,
		UserAgent:              raw.UserAgent,
		Timezone:               raw.Timezone,
		Debug:                  raw.Debug,
		LogFile:                raw.LogFile,
		Version:                GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) validate() error {
	nonNegative := map[string]int{
		"worker count":             c.WorkerCount,
		"scheduler interval":       c.SchedulerInterval,
		"default refresh interval": c.DefaultRefreshInterval,
		"retry interval":           c.RetryInterval,
		"max consecutive failures": c.MaxConsecutiveFailures,
		"fetch timeout":            c.FetchTimeout,
		"max in flight":            c.MaxInFlight,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
