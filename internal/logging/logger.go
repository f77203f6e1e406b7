// Package logging plugs a leveled, line-formatted logger into the
// dragonboat logger registry used by every package of this module.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// Names of the loggers this module registers.
var Names = []string{"server", "server/listener", "client", "transport", "netif"}

// tags are the column labels of each level; logger.LogLevel grows with
// verbosity, so a line is written when its level is at most the logger's.
var tags = map[logger.LogLevel]string{
	logger.CRITICAL: "CRIT",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN",
	logger.INFO:     "INFO",
	logger.DEBUG:    "DEBUG",
}

// socketLogger implements logger.ILogger with a fixed column layout.
type socketLogger struct {
	name  string
	level logger.LogLevel
	out   *log.Logger
}

func (l *socketLogger) SetLevel(level logger.LogLevel) { l.level = level }

func (l *socketLogger) Debugf(format string, args ...interface{}) { l.logf(logger.DEBUG, format, args) }
func (l *socketLogger) Infof(format string, args ...interface{})  { l.logf(logger.INFO, format, args) }
func (l *socketLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args)
}
func (l *socketLogger) Errorf(format string, args ...interface{}) { l.logf(logger.ERROR, format, args) }

// Panicf writes the line at CRITICAL and panics with it.
func (l *socketLogger) Panicf(format string, args ...interface{}) {
	msg := l.logf(logger.CRITICAL, format, args)
	panic(msg)
}

func (l *socketLogger) logf(level logger.LogLevel, format string, args []interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if level <= l.level {
		l.out.Printf("%-5s | %-15s | %s", tags[level], l.name, msg)
	}
	return msg
}

// New returns a logger named name that writes to w at INFO level.
func New(name string, w io.Writer) logger.ILogger {
	return &socketLogger{
		name:  name,
		level: logger.INFO,
		out:   log.New(w, "", log.Ldate|log.Ltime),
	}
}

// CreateLogger is the logger.Factory writing to stderr.
func CreateLogger(pkgName string) logger.ILogger {
	return New(pkgName, os.Stderr)
}

var levels = map[string]logger.LogLevel{
	"debug":    logger.DEBUG,
	"info":     logger.INFO,
	"warn":     logger.WARNING,
	"warning":  logger.WARNING,
	"error":    logger.ERROR,
	"critical": logger.CRITICAL,
}

// ParseLevel converts a level name to a logger.LogLevel.
func ParseLevel(level string) (logger.LogLevel, error) {
	if lvl, ok := levels[strings.ToLower(level)]; ok {
		return lvl, nil
	}
	return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error, critical", level)
}

// Init installs the factory and sets every module logger to level.
func Init(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)
	for _, name := range Names {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
