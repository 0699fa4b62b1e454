// Package logging builds the zerolog loggers used by the mapper, the SQL
// adapter and the dmctl CLI.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config selects the level and output format of a logger.
type Config struct {
	Level  string
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a timestamped logger. An empty level means info.
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	switch cfg.Format {
	case "", FormatJSON:
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// GormLogger implements GORM's logger interface on top of zerolog
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      logger.LogLevel
	log           zerolog.Logger
}

// NewGormLogger creates a GORM logger writing to log. Statements are traced
// when log is at debug level or lower; otherwise only slow statements and
// errors are logged.
func NewGormLogger(log zerolog.Logger, slowThreshold time.Duration) *GormLogger {
	level := logger.Warn
	if log.GetLevel() <= zerolog.DebugLevel {
		level = logger.Info
	}
	return &GormLogger{SlowThreshold: slowThreshold, LogLevel: level, log: log.With().Str("component", "sql").Logger()}
}

// LogMode implements logger.Interface
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info implements logger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		l.log.Info().Msgf(msg, data...)
	}
}

// Warn implements logger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		l.log.Warn().Msgf(msg, data...)
	}
}

// Error implements logger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		l.log.Error().Msgf(msg, data...)
	}
}

// Trace implements logger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		sql, rows := fc()
		l.log.Warn().Err(err).Str("sql", sql).Dur("duration", elapsed).Int64("rows", rows).Msg("query failed")
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= logger.Warn:
		sql, rows := fc()
		l.log.Warn().Str("sql", sql).Dur("duration", elapsed).Int64("rows", rows).Dur("threshold", l.SlowThreshold).Msg("slow query")
	case l.LogLevel >= logger.Info:
		sql, rows := fc()
		l.log.Trace().Str("sql", sql).Dur("duration", elapsed).Int64("rows", rows).Msg("query")
	}
}
