// Package config loads the memhook configuration value.
//
// Configuration is read once per process from <dataDir>/settings.json and
// environment overrides, then threaded explicitly into the components that
// need it. Nothing in memhook reads settings lazily or through a global.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DataDirName is the per-user directory holding settings, the project
	// registry, hook logs and the worker's database.
	DataDirName = ".memhook"
	// SettingsFile is the settings filename inside the data dir.
	SettingsFile = "settings.json"

	// DefaultWorkerHost is where the local worker listens.
	DefaultWorkerHost = "127.0.0.1"
	// DefaultWorkerPort is the worker's default HTTP port.
	DefaultWorkerPort = 37777
	// DefaultContextFormat is the format requested from GET /context.
	DefaultContextFormat = "markdown"
	// DefaultDBFile is the worker database filename inspected by status.
	DefaultDBFile = "memhook.db"
)

// Environment variables that override settings.json.
const (
	EnvDataDir    = "MEMHOOK_DATA_DIR"
	EnvWorkerHost = "MEMHOOK_WORKER_HOST"
	EnvWorkerPort = "MEMHOOK_WORKER_PORT"
	EnvLogLevel   = "MEMHOOK_LOG_LEVEL"
)

// Worker holds everything the worker client needs to reach (and, if
// necessary, start) the local worker.
type Worker struct {
	Host string
	Port int
	// Command starts the worker as a detached background process.
	// Empty means memhook never tries to spawn it.
	Command        []string
	StartRetries   int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// UserAgent is sent on every request.
	UserAgent string
}

// BaseURL returns the worker's root URL.
func (w Worker) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", w.Host, w.Port)
}

// Config is the full memhook configuration value.
type Config struct {
	DataDir          string
	Worker           Worker
	ContextFormat    string
	ExcludedProjects []string
	DBFile           string
	LogLevel         slog.Level
}

// settings mirrors settings.json. Zero values mean "use the default".
type settings struct {
	WorkerHost       string   `json:"workerHost,omitempty"`
	WorkerPort       int      `json:"workerPort,omitempty"`
	WorkerCommand    []string `json:"workerCommand,omitempty"`
	StartRetries     int      `json:"startRetries,omitempty"`
	PollIntervalMS   int      `json:"pollIntervalMs,omitempty"`
	RequestTimeoutMS int      `json:"requestTimeoutMs,omitempty"`
	ContextFormat    string   `json:"contextFormat,omitempty"`
	ExcludedProjects []string `json:"excludedProjects,omitempty"`
	DBFile           string   `json:"dbFile,omitempty"`
	LogLevel         string   `json:"logLevel,omitempty"`
}

// Default returns the configuration used when no settings file exists.
func Default(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		Worker: Worker{
			Host:           DefaultWorkerHost,
			Port:           DefaultWorkerPort,
			StartRetries:   10,
			PollInterval:   250 * time.Millisecond,
			RequestTimeout: 5 * time.Second,
			UserAgent:      "memhook",
		},
		ContextFormat: DefaultContextFormat,
		DBFile:        DefaultDBFile,
		LogLevel:      slog.LevelInfo,
	}
}

// DefaultDataDir returns ~/.memhook, or ./.memhook when the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", DataDirName)
	}
	return filepath.Join(home, DataDirName)
}

// Load reads the configuration from the process environment.
// The returned Config is always usable: a malformed settings file yields the
// defaults together with a non-nil error the caller should log as a warning.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with an injectable environment lookup.
func LoadFrom(getenv func(string) string) (Config, error) {
	dataDir := getenv(EnvDataDir)
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	cfg := Default(dataDir)
	var loadErr error

	path := SettingsPath(dataDir)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var s settings
		if jerr := json.Unmarshal(data, &s); jerr != nil {
			loadErr = fmt.Errorf("parsing %s (using defaults): %w", path, jerr)
		} else {
			s.apply(&cfg)
		}
	case !os.IsNotExist(err):
		loadErr = fmt.Errorf("reading %s (using defaults): %w", path, err)
	}

	if v := getenv(EnvWorkerHost); v != "" {
		cfg.Worker.Host = v
	}
	if v := getenv(EnvWorkerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			loadErr = fmt.Errorf("invalid %s=%q, keeping port %d", EnvWorkerPort, v, cfg.Worker.Port)
		} else {
			cfg.Worker.Port = port
		}
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = parseLevel(v, cfg.LogLevel)
	}

	return cfg, loadErr
}

func (s settings) apply(cfg *Config) {
	if s.WorkerHost != "" {
		cfg.Worker.Host = s.WorkerHost
	}
	if s.WorkerPort > 0 && s.WorkerPort <= 65535 {
		cfg.Worker.Port = s.WorkerPort
	}
	if len(s.WorkerCommand) > 0 {
		cfg.Worker.Command = s.WorkerCommand
	}
	if s.StartRetries > 0 {
		cfg.Worker.StartRetries = s.StartRetries
	}
	if s.PollIntervalMS > 0 {
		cfg.Worker.PollInterval = time.Duration(s.PollIntervalMS) * time.Millisecond
	}
	if s.RequestTimeoutMS > 0 {
		cfg.Worker.RequestTimeout = time.Duration(s.RequestTimeoutMS) * time.Millisecond
	}
	if s.ContextFormat != "" {
		cfg.ContextFormat = s.ContextFormat
	}
	if len(s.ExcludedProjects) > 0 {
		cfg.ExcludedProjects = s.ExcludedProjects
	}
	if s.DBFile != "" {
		cfg.DBFile = s.DBFile
	}
	if s.LogLevel != "" {
		cfg.LogLevel = parseLevel(s.LogLevel, cfg.LogLevel)
	}
}

func parseLevel(v string, fallback slog.Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(v)))); err != nil {
		return fallback
	}
	return l
}

// IsExcluded reports whether hooks should skip the worker for project.
func (c Config) IsExcluded(project string) bool {
	for _, p := range c.ExcludedProjects {
		if strings.EqualFold(p, project) {
			return true
		}
	}
	return false
}

// --- Path helpers ---

// SettingsPath returns <dataDir>/settings.json.
func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, SettingsFile)
}

// RegistryPath returns the project registry file for a host.
func RegistryPath(dataDir, host string) string {
	return filepath.Join(dataDir, host+"-projects.json")
}

// LogDir returns the directory hook executors log into.
func LogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// DBPath returns the worker database path inspected by status.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}
