package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"migraine-sense/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ArtifactsDir string
	CatalogPath  string
	DataPath     string
	ListenPort   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	HistoryLimit int
	LogLevel     string
	LogFormat    string
}

type ConfigFile struct {
	Model struct {
		ArtifactsDir string `yaml:"artifactsDir"`
		CatalogPath  string `yaml:"catalogPath"`
	} `yaml:"model"`

	Server struct {
		ListenPort   int    `yaml:"listenPort"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`

	System struct {
		DataPath     string `yaml:"dataPath"`
		HistoryLimit int    `yaml:"historyLimit"`
		LogLevel     string `yaml:"logLevel"`
		LogFormat    string `yaml:"logFormat"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if err := loadDotEnv(getEnvOrDefault(common.EnvDotEnvFile, common.DefaultDotEnvFile)); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// loadDotEnv populates the process environment from a dotenv file without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("loaded env file")
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	readTimeout, err := time.ParseDuration(config.Server.ReadTimeout)
	if err != nil {
		readTimeout = 10 * time.Second
	}

	writeTimeout, err := time.ParseDuration(config.Server.WriteTimeout)
	if err != nil {
		writeTimeout = 10 * time.Second
	}

	settings := Settings{
		ArtifactsDir: getEnvOrDefault(common.EnvArtifactsDir, orDefault(config.Model.ArtifactsDir, common.DefaultArtifactsDir)),
		CatalogPath:  getEnvOrDefault(common.EnvCatalogPath, config.Model.CatalogPath),
		DataPath:     getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ListenPort:   getIntFromEnvOrConfig(common.EnvListenPort, config.Server.ListenPort, common.DefaultListenPort),
		ReadTimeout:  getDurationOrDefault(common.EnvReadTimeout, readTimeout),
		WriteTimeout: getDurationOrDefault(common.EnvWriteTimeout, writeTimeout),
		HistoryLimit: getIntFromEnvOrConfig(common.EnvHistoryLimit, config.System.HistoryLimit, common.DefaultHistoryLimit),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		LogFormat:    getEnvOrDefault(common.EnvLogFormat, orDefault(config.System.LogFormat, common.DefaultLogFormat)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ArtifactsDir: getEnvOrDefault(common.EnvArtifactsDir, common.DefaultArtifactsDir),
		CatalogPath:  os.Getenv(common.EnvCatalogPath), // optional, embedded catalog otherwise
		DataPath:     os.Getenv(common.EnvDataPath),    // optional, history disabled otherwise
		ListenPort:   getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		ReadTimeout:  getDurationOrDefault(common.EnvReadTimeout, 10*time.Second),
		WriteTimeout: getDurationOrDefault(common.EnvWriteTimeout, 10*time.Second),
		HistoryLimit: getIntOrDefault(common.EnvHistoryLimit, common.DefaultHistoryLimit),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:    getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// HistoryEnabled reports whether prediction history should be persisted.
func (s *Settings) HistoryEnabled() bool {
	return s.DataPath != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings checks ranges and enumerations of the loaded configuration
func validateSettings(settings *Settings) error {
	if settings.ArtifactsDir == "" {
		return fmt.Errorf("artifacts directory cannot be empty")
	}

	if settings.ListenPort < common.MinListenPort || settings.ListenPort > common.MaxListenPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d",
			common.MinListenPort, common.MaxListenPort, settings.ListenPort)
	}

	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", settings.WriteTimeout)
	}

	if settings.HistoryLimit <= 0 || settings.HistoryLimit > common.MaxHistoryLimit {
		return fmt.Errorf("history limit must be between 1 and %d, got %d", common.MaxHistoryLimit, settings.HistoryLimit)
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	switch settings.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	return nil
}
