package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath string

	// Application configuration
	FeedsDir          string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	CronSecret        string
	APIAccessKey      string

	// Refresh scheduling
	DefaultRefreshInterval int
	RetryInterval          int
	MaxConsecutiveFailures int
	FetchTimeout           int
	MaxInFlight            int

	// Audit
	RedisAddr     string
	RedisAuditKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFile   string
	Version   string
}

func (c *Cfg) GetDefaultRefreshInterval() time.Duration {
	return seconds(c.DefaultRefreshInterval, 15*time.Minute)
}

func (c *Cfg) GetRetryInterval() time.Duration {
	return seconds(c.RetryInterval, 5*time.Minute)
}

func (c *Cfg) GetFetchTimeout() time.Duration {
	return seconds(c.FetchTimeout, 10*time.Second)
}

// GetSchedulerInterval returns 0 when the in-process timer is disabled.
func (c *Cfg) GetSchedulerInterval() time.Duration {
	if c.SchedulerInterval <= 0 {
		return 0
	}
	return time.Duration(c.SchedulerInterval) * time.Second
}

func seconds(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}
