package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

// LoggerNames lists the package loggers configured by InitLoggers.
var LoggerNames = []string{
	"rpc/server",
	"rpc/client",
	"db/redis",
	"db/skytable",
	"db/surreal",
	"dispatch",
	"dataset",
	"cmd",
}

// --------------------------------------------------------------------------
// Bench Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

var levelTags = map[logger.LogLevel]string{
	logger.CRITICAL: "PANIC",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN",
	logger.INFO:     "INFO",
	logger.DEBUG:    "DEBUG",
}

// levelNames maps accepted --log-level values to dragonboat levels.
var levelNames = map[string]logger.LogLevel{
	"debug":   logger.DEBUG,
	"info":    logger.INFO,
	"warn":    logger.WARNING,
	"warning": logger.WARNING,
	"error":   logger.ERROR,
}

// benchLogger writes one line per message: timestamp, level tag, component.
// All loggers share a mutex so lines from concurrent workers never interleave.
type benchLogger struct {
	name  string
	level logger.LogLevel
	out   io.Writer
	now   func() time.Time
}

var outMu sync.Mutex

func newBenchLogger(name string, out io.Writer) *benchLogger {
	return &benchLogger{name: name, level: logger.WARNING, out: out, now: time.Now}
}

func (l *benchLogger) SetLevel(level logger.LogLevel) { l.level = level }

func (l *benchLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *benchLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *benchLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *benchLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf logs at CRITICAL and panics regardless of the configured level.
func (l *benchLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logf(logger.CRITICAL, "%s", msg)
	panic(msg)
}

func (l *benchLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	line := fmt.Sprintf("%s %-5s | %-12s | %s\n",
		l.now().Format("2006/01/02 15:04:05"), levelTags[level], l.name, fmt.Sprintf(format, args...))

	outMu.Lock()
	defer outMu.Unlock()
	_, _ = io.WriteString(l.out, line)
}

// --------------------------------------------------------------------------
// Factory and initialization
// --------------------------------------------------------------------------

// CreateLogger is the logger factory installed by InitLoggers. Logs go to
// stderr so command output on stdout stays machine readable.
func CreateLogger(pkgName string) logger.ILogger {
	return newBenchLogger(pkgName, os.Stderr)
}

// ParseLogLevel converts a --log-level value to a dragonboat level.
func ParseLogLevel(level string) (logger.LogLevel, error) {
	if lvl, ok := levelNames[strings.ToLower(level)]; ok {
		return lvl, nil
	}
	return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
}

// InitLoggers installs CreateLogger and sets the level of every logger in
// LoggerNames.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
