// Package logger holds the process-wide zap logger. Until one of the Init
// functions runs, every accessor falls back to zap's globals.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	current *zap.Logger
	sugared *zap.SugaredLogger
)

// levels maps a server mode to the minimum level it logs.
var levels = map[string]zapcore.Level{
	"release": zapcore.InfoLevel,
	"debug":   zapcore.DebugLevel,
	"test":    zapcore.WarnLevel,
}

// Init installs the JSON logger for "release" and the console logger for any
// other mode. "test" only keeps warnings and errors.
func Init(mode string) error {
	var cfg zap.Config
	if mode == "release" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl, ok := levels[mode]; ok {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return install(cfg)
}

func InitProduction() error { return Init("release") }

func InitDevelopment() error { return Init("debug") }

func install(cfg zap.Config) error {
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Use(l)
	return nil
}

// Use installs an already built logger, e.g. an observer core in tests. The
// previous logger is flushed and zap's globals follow the new one.
func Use(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		_ = current.Sync()
	}
	current, sugared = l, l.Sugar()
	zap.ReplaceGlobals(l)
}

func Log() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return zap.L()
	}
	return current
}

// Named returns a child logger tagged with a component name.
func Named(component string) *zap.Logger {
	return Log().Named(component)
}

func S() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if sugared == nil {
		return zap.S()
	}
	return sugared
}

func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if current != nil {
		_ = current.Sync()
	}
}
