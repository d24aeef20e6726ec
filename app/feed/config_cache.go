package feed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const defaultMaxItems = 100

var ErrConfigNotFound = errors.New("feed config not found")

var configExtensions = []string{".yml", ".yaml"}

// filterFields are the entry fields a filter rule may name.
var filterFields = []string{"title", "description", "summary", "content", "authors", "link", "categories"}

// ConfigCache holds the per-feed YAML definitions found in the feeds
// directory, keyed by file name without extension.
type ConfigCache struct {
	feedsDir string
	mu       sync.RWMutex
	cache    map[string]*Config
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
	}
}

// Run loads every config in the feeds directory. Broken files do not stop the
// others from loading; their errors are returned joined. A missing directory
// is not an error.
func (cc *ConfigCache) Run() error {
	if cc.feedsDir == "" {
		return nil
	}

	dirEntries, err := os.ReadDir(cc.feedsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read feeds directory: %w", err)
	}

	var errs []error
	for _, dirEntry := range dirEntries {
		ext := filepath.Ext(dirEntry.Name())
		if dirEntry.IsDir() || !slices.Contains(configExtensions, ext) {
			continue
		}

		feedName := strings.TrimSuffix(dirEntry.Name(), ext)
		feedConfig, err := cc.LoadConfig(feedName)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		slog.Debug("Configuration loaded",
			"feed", feedName,
			"enabled", feedConfig.Settings.IsEnabled(),
			"refresh_interval", feedConfig.Settings.RefreshInterval)
	}

	return errors.Join(errs...)
}

// LoadConfig (re)reads one feed's file and replaces its cached entry.
func (cc *ConfigCache) LoadConfig(feedName string) (*Config, error) {
	configFile, err := cc.resolve(feedName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
	}

	feedConfig, err := decodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFile, err)
	}
	feedConfig.Name = feedName

	if err := validateConfig(feedConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	cc.cache[feedName] = feedConfig
	cc.mu.Unlock()

	return feedConfig, nil
}

// Lookup returns the cached config for a feed name, if any.
func (cc *ConfigCache) Lookup(feedName string) (*Config, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	feedConfig, ok := cc.cache[feedName]
	return feedConfig, ok
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return maps.Clone(cc.cache)
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) resolve(feedName string) (string, error) {
	for _, ext := range configExtensions {
		path := filepath.Join(cc.feedsDir, feedName+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, feedName)
}

// decodeConfig rejects unknown keys so a misspelt setting is not silently
// ignored. RefreshInterval and Timeout stay 0 when absent, meaning the
// global defaults.
func decodeConfig(data []byte) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var feedConfig Config
	if err := decoder.Decode(&feedConfig); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if feedConfig.Settings.MaxItems == 0 {
		feedConfig.Settings.MaxItems = defaultMaxItems
	}

	return &feedConfig, nil
}

func validateConfig(feedConfig *Config) error {
	if feedConfig == nil {
		return errors.New("config is nil")
	}

	var errs []error

	if feedConfig.Name == "" {
		errs = append(errs, errors.New("feed name is required"))
	}

	if feedConfig.URL == "" {
		errs = append(errs, errors.New("feed URL is required"))
	} else if u, err := url.Parse(feedConfig.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("feed URL must be an absolute http(s) URL: %q", feedConfig.URL))
	}

	settings := feedConfig.Settings
	if settings.RefreshInterval < 0 {
		errs = append(errs, errors.New("refresh interval must be non-negative"))
	}
	if settings.MaxItems < 0 {
		errs = append(errs, errors.New("max items must be non-negative"))
	}
	if settings.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}

	for i, filter := range feedConfig.Filters {
		if !slices.Contains(filterFields, filter.Field) {
			errs = append(errs, fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field))
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			errs = append(errs, fmt.Errorf("filter at index %d must have at least one include or exclude rule", i))
		}
	}

	return errors.Join(errs...)
}
