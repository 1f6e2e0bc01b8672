// Package vlog provides structured logging for vmthook using zap.
package vlog

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// L is the global logger instance.
	L    *zap.Logger
	once sync.Once
)

// Init initializes the global logger. Safe to call multiple times; only the
// first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New builds a logger. debug selects development-friendly encoding and
// Debug-level output; otherwise only Warn and above are emitted.
func New(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

// Nop returns a no-op logger, used when the caller does not configure one.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func init() {
	L = Nop()
}

// Addr formats an address as a zap field using the conventional "0x..." form.
func Addr(key string, addr uint64) zap.Field {
	return zap.String(key, fmt.Sprintf("0x%x", addr))
}

// Slot formats a hook slot index as a zap field.
func Slot(index int) zap.Field {
	return zap.Int("slot", index)
}
