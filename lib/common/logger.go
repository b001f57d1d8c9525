package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Package Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// pkgLogger writes the messages of one package logger. All loggers of a factory share
// the same output.
type pkgLogger struct {
	name  string
	level atomic.Int32
	out   *log.Logger
}

func (l *pkgLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *pkgLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *pkgLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.write("DEBUG", format, args...)
	}
}

func (l *pkgLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.write("INFO", format, args...)
	}
}

func (l *pkgLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.write("WARN", format, args...)
	}
}

func (l *pkgLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.write("ERROR", format, args...)
	}
}

// Panicf always panics, the message is written first regardless of the level
func (l *pkgLogger) Panicf(format string, args ...interface{}) {
	l.write("PANIC", format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (l *pkgLogger) write(level string, format string, args ...interface{}) {
	l.out.Printf("%-5s [%s] %s", level, l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// LoggerFactory returns a dragonboat logger.Factory creating package loggers that write to
// w. New loggers start at level INFO.
func LoggerFactory(w io.Writer) logger.Factory {
	out := log.New(w, "dshard ", log.Ldate|log.Ltime|log.Lmicroseconds)
	return func(pkgName string) logger.ILogger {
		l := &pkgLogger{name: pkgName, out: out}
		l.level.Store(int32(logger.INFO))
		return l
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// LoggerNames lists every logger used by the dShard packages
var LoggerNames = []string{
	"executor",
	"pipeline",
	"importer",
	"checkpoint",
	"memstore",
	"sqlconn",
	"lockmgr",
}

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

var factoryOnce sync.Once

// InitLoggers installs the custom logger factory and sets all dShard loggers to the given level.
//
// Note: the factory has to be installed before the first logger.GetLogger call of a
// package logger is used (dragonboat creates loggers lazily), so call this early in main.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() { logger.SetLoggerFactory(LoggerFactory(os.Stderr)) })

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
