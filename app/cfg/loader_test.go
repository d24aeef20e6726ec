package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadArgsDefaults(t *testing.T) {
	c, err := LoadArgs([]string{})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, "./data/rss-pulse.db", c.DBPath)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 5, c.MaxInFlight)
	assert.Equal(t, 15*time.Minute, c.GetDefaultRefreshInterval())
	assert.Equal(t, 5*time.Minute, c.GetRetryInterval())
	assert.Equal(t, 10*time.Second, c.GetFetchTimeout())
	assert.Equal(t, time.Minute, c.GetSchedulerInterval())
	assert.Empty(t, c.CronSecret)
	assert.Same(t, c, Get())
}

func TestLoadArgsOverrides(t *testing.T) {
	c, err := LoadArgs([]string{
		"--db-path", "/tmp/x.db",
		"--default-refresh-interval", "600",
		"--scheduler-interval", "0",
		"--cron-secret", "s3cret",
		"--max-in-flight", "2",
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", c.DBPath)
	assert.Equal(t, 10*time.Minute, c.GetDefaultRefreshInterval())
	assert.Equal(t, time.Duration(0), c.GetSchedulerInterval())
	assert.Equal(t, "s3cret", c.CronSecret)
	assert.Equal(t, 2, c.MaxInFlight)
}

func TestLoadArgsRejectsNegative(t *testing.T) {
	_, err := LoadArgs([]string{"--retry-interval=-1"})
	assert.Error(t, err)
}

func TestDurationFallbacks(t *testing.T) {
	c := &Cfg{}
	assert.Equal(t, 15*time.Minute, c.GetDefaultRefreshInterval())
	assert.Equal(t, 5*time.Minute, c.GetRetryInterval())
	assert.Equal(t, 10*time.Second, c.GetFetchTimeout())
}
