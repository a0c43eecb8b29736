// Package logger is the level-filtered logger shared by every wrfcycle component.
// Output goes through the standard library `log` package so that batch-system job logs
// keep a single, timestamped stream per allocation.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// LogLevel is a type representing the logging level.
type LogLevel int

const (
	// LevelDebug is the most verbose level.
	LevelDebug LogLevel = iota
	// LevelInfo is the default level.
	LevelInfo
	// LevelWarn reports conditions an operator may want to look at.
	LevelWarn
	// LevelError reports failed operations.
	LevelError
	// LevelFatal reports conditions that terminate the allocation.
	LevelFatal
)

var levelNames = map[string]LogLevel{
	"DEBUG": LevelDebug,
	"INFO":  LevelInfo,
	"WARN":  LevelWarn,
	"ERROR": LevelError,
	"FATAL": LevelFatal,
}

// logLevel is the currently set global log level.
var logLevel = LevelInfo

// SetLogLevel sets the global log level from its name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL",
// case-insensitive). Unknown names fall back to INFO with a notice on standard output.
func SetLogLevel(level string) {
	l, ok := levelNames[strings.ToUpper(strings.TrimSpace(level))]
	if !ok {
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
		l = LevelInfo
	}
	logLevel = l
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	return logLevel
}

// SetOutput redirects log output, e.g. to tee it into a per-step log file.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func logf(level LogLevel, tag, format string, v ...interface{}) {
	if logLevel <= level {
		log.Printf("["+tag+"] "+format, v...)
	}
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	logf(LevelDebug, "DEBUG", format, v...)
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	logf(LevelInfo, "INFO", format, v...)
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	logf(LevelWarn, "WARN", format, v...)
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	logf(LevelError, "ERROR", format, v...)
}

// Fatalf formats and outputs a FATAL level log message, then terminates the program by calling os.Exit(1).
// Prefer returning an error from components; only main may decide to terminate.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
