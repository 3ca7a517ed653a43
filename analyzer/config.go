package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Config controls where per-CID logs are read from and how a batch runs.
type Config struct {
	// Dir holds the per-CID bucket dumps, traces and find-peer outputs
	Dir string

	// File name patterns, each formatted with the CID or peer id
	BucketFilePattern   string
	TraceFilePattern    string
	FindPeerFilePattern string
	ExportFilePattern   string

	// MaxWorkers controls how many CIDs are analyzed at once
	// 0 = use runtime.NumCPU()
	// -1 = one worker per CID
	// >0 = use exactly this many workers
	MaxWorkers int

	Visualize     bool // Write the tree export of every analyzed CID
	StrictOrigins bool // Drop responses from peers that were never queried
	LogLevel      string
}

func DefaultConfig() *Config {
	return &Config{
		Dir:                 ".",
		BucketFilePattern:   "%s_dht.txt",
		TraceFilePattern:    "%s_provid.txt",
		FindPeerFilePattern: "%s_findpeer.txt",
		ExportFilePattern:   "%s_tree.json",
		MaxWorkers:          0,
		Visualize:           false,
		StrictOrigins:       false,
		LogLevel:            "info",
	}
}

// LoadConfig applies HOPTRACER_* environment variables over the defaults.
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	config.Dir = getEnv("HOPTRACER_DIR", config.Dir)
	config.LogLevel = getEnv("HOPTRACER_LOG_LEVEL", config.LogLevel)

	if workers := getEnv("HOPTRACER_WORKERS", ""); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("invalid HOPTRACER_WORKERS: %w", err)
		}
		config.MaxWorkers = n
	}

	var err error
	if config.Visualize, err = getEnvBool("HOPTRACER_VISUALIZE", config.Visualize); err != nil {
		return nil, err
	}
	if config.StrictOrigins, err = getEnvBool("HOPTRACER_STRICT", config.StrictOrigins); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("log directory is required")
	}

	for name, pattern := range map[string]string{
		"bucket":    c.BucketFilePattern,
		"trace":     c.TraceFilePattern,
		"find-peer": c.FindPeerFilePattern,
		"export":    c.ExportFilePattern,
	} {
		if strings.Count(pattern, "%s") != 1 {
			return fmt.Errorf("%s file pattern %q must contain exactly one %%s", name, pattern)
		}
	}

	if c.MaxWorkers < -1 {
		return fmt.Errorf("max workers must be -1, 0 or positive, got %d", c.MaxWorkers)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	return nil
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (c *Config) BucketPath(cid string) string {
	return filepath.Join(c.Dir, fmt.Sprintf(c.BucketFilePattern, cid))
}

func (c *Config) TracePath(cid string) string {
	return filepath.Join(c.Dir, fmt.Sprintf(c.TraceFilePattern, cid))
}

func (c *Config) FindPeerPath(peer string) string {
	return filepath.Join(c.Dir, fmt.Sprintf(c.FindPeerFilePattern, peer))
}

func (c *Config) ExportPath(cid string) string {
	return filepath.Join(c.Dir, fmt.Sprintf(c.ExportFilePattern, cid))
}

func (c *Config) workers(tasks int) int {
	switch {
	case c.MaxWorkers > 0:
		return c.MaxWorkers
	case c.MaxWorkers == -1 && tasks > 0:
		return tasks
	default:
		return runtime.NumCPU()
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
