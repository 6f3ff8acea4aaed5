// Package logger provides component-scoped structured logging on top of zap.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base   = newLogger(os.Stderr)
	levels = map[string]LogLevel{
		"debug":   DEBUG,
		"info":    INFO,
		"warn":    WARN,
		"warning": WARN,
		"error":   ERROR,
	}
)

func newLogger(w io.Writer) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w)
}

func SetLevel(l LogLevel) {
	level.SetLevel(toZapLevel(l))
}

func GetLevel() LogLevel {
	switch level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

// ParseLevel maps a config string such as "debug" or "WARN" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	l, ok := levels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func toZapLevel(l LogLevel) zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func logf(l LogLevel, component, msg string, fields map[string]interface{}) {
	zl := toZapLevel(l)
	if !level.Enabled(zl) {
		return
	}
	mu.RLock()
	lg := base
	mu.RUnlock()

	zfields := make([]zap.Field, 0, len(fields)+1)
	if component != "" {
		zfields = append(zfields, zap.String("component", component))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zfields = append(zfields, zap.Any(k, fields[k]))
	}

	if ce := lg.Check(zl, msg); ce != nil {
		ce.Write(zfields...)
	}
}

func DebugC(component, msg string) { logf(DEBUG, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]interface{}) {
	logf(DEBUG, component, msg, fields)
}

func InfoC(component, msg string) { logf(INFO, component, msg, nil) }

func InfoCF(component, msg string, fields map[string]interface{}) {
	logf(INFO, component, msg, fields)
}

func WarnC(component, msg string) { logf(WARN, component, msg, nil) }

func WarnCF(component, msg string, fields map[string]interface{}) {
	logf(WARN, component, msg, fields)
}

func ErrorC(component, msg string) { logf(ERROR, component, msg, nil) }

func ErrorCF(component, msg string, fields map[string]interface{}) {
	logf(ERROR, component, msg, fields)
}
