package main

import (
	"fmt"
	"os"

	"github.com/kadirpekel/notely/pkg/config"
	"github.com/kadirpekel/notely/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
	// DefaultLogFormat is the default log format
	DefaultLogFormat = "simple"
)

// logSettings is the resolved logger configuration.
type logSettings struct {
	Level  string
	File   string
	Format string

	// LevelPinned is true when the level came from a flag or the
	// environment, so config reloads must not change it.
	LevelPinned bool
}

// resolveLogSettings picks each setting by priority:
// CLI flag > env var > config file > default.
func resolveLogSettings(cliLevel, cliFile, cliFormat string, cfg *config.LoggerConfig) (logSettings, error) {
	var fromConfig config.LoggerConfig
	if cfg != nil {
		fromConfig = *cfg
	}

	s := logSettings{
		Level:  firstNonEmpty(cliLevel, os.Getenv(LogLevelEnvVar)),
		File:   firstNonEmpty(cliFile, os.Getenv(LogFileEnvVar), fromConfig.File),
		Format: firstNonEmpty(cliFormat, os.Getenv(LogFormatEnvVar), fromConfig.Format, DefaultLogFormat),
	}
	s.LevelPinned = s.Level != ""
	s.Level = firstNonEmpty(s.Level, fromConfig.Level, "info")

	if _, err := logger.ParseLevel(s.Level); err != nil {
		return logSettings{}, fmt.Errorf("invalid log level: %w", err)
	}
	return s, nil
}

// apply initializes the global logger and returns a cleanup function.
func (s logSettings) apply() (func(), error) {
	level, err := logger.ParseLevel(s.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	cleanup := func() {}
	if s.File != "" {
		file, cleanupFn, err := logger.OpenLogFile(s.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, s.Format)
	return cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
