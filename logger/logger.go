// Package logger provides application-wide logging built on op/go-logging,
// keeping a bounded in-memory tail of recent entries for the status surface.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/op/go-logging"

	"github.com/akellavk/V2RaySub/config"
)

const moduleName = "v2raysub"

var logger *logging.Logger

type logEntry struct {
	time  string
	level logging.Level
	log   string
}

// The buffer is appended to from request handlers and read by the status
// endpoint, so every access goes through bufferMu.
var (
	bufferMu  sync.Mutex
	logBuffer []logEntry
)

func init() {
	InitLogger(logging.INFO)
}

// InitLogger replaces the package logger with one filtering below the given
// level. When a log folder is configured entries are appended to the log
// file there as well as stderr.
func InitLogger(level logging.Level) {
	newLogger := logging.MustGetLogger(moduleName)
	writer := io.Writer(os.Stderr)
	if logFile := config.GetLogFile(); logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file failed:", err)
		} else {
			writer = io.MultiWriter(os.Stderr, file)
		}
	}
	backend := logging.NewLogBackend(writer, "", 0)
	format := logging.MustStringFormatter(`%{time:2006/01/02 15:04:05} %{level} - %{message}`)
	backendFormatter := logging.NewBackendFormatter(backend, format)
	backendLeveled := logging.AddModuleLevel(backendFormatter)
	backendLeveled.SetLevel(level, moduleName)
	newLogger.SetBackend(backendLeveled)
	logger = newLogger
}

// Debug logs a message at debug level.
func Debug(args ...any) {
	logger.Debug(args...)
	addToBuffer(logging.DEBUG, fmt.Sprint(args...))
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
	addToBuffer(logging.DEBUG, fmt.Sprintf(format, args...))
}

// Info logs a message at info level.
func Info(args ...any) {
	logger.Info(args...)
	addToBuffer(logging.INFO, fmt.Sprint(args...))
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	logger.Infof(format, args...)
	addToBuffer(logging.INFO, fmt.Sprintf(format, args...))
}

// Warning logs a message at warning level.
func Warning(args ...any) {
	logger.Warning(args...)
	addToBuffer(logging.WARNING, fmt.Sprint(args...))
}

// Warningf logs a formatted message at warning level.
func Warningf(format string, args ...any) {
	logger.Warningf(format, args...)
	addToBuffer(logging.WARNING, fmt.Sprintf(format, args...))
}

// Error logs a message at error level.
func Error(args ...any) {
	logger.Error(args...)
	addToBuffer(logging.ERROR, fmt.Sprint(args...))
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
	addToBuffer(logging.ERROR, fmt.Sprintf(format, args...))
}

func addToBuffer(level logging.Level, newLog string) {
	t := time.Now()
	bufferMu.Lock()
	defer bufferMu.Unlock()
	if len(logBuffer) >= 10240 {
		logBuffer = logBuffer[1:]
	}
	logBuffer = append(logBuffer, logEntry{
		time:  t.Format("2006/01/02 15:04:05"),
		level: level,
		log:   newLog,
	})
}

// GetLogs returns up to count buffered entries at or above the given level,
// oldest first, formatted as "time level - message".
func GetLogs(count int, level string) []string {
	var output []string
	logLevel, err := logging.LogLevel(level)
	if err != nil {
		logLevel = logging.DEBUG
	}
	bufferMu.Lock()
	defer bufferMu.Unlock()
	for i := len(logBuffer) - 1; i >= 0 && len(output) < count; i-- {
		if logBuffer[i].level <= logLevel {
			output = append(output, fmt.Sprintf("%s %s - %s", logBuffer[i].time, logBuffer[i].level, logBuffer[i].log))
		}
	}
	for i, j := 0, len(output)-1; i < j; i, j = i+1, j-1 {
		output[i], output[j] = output[j], output[i]
	}
	return output
}
