// Package logging provides the process-wide logger and throttled logging
// for high-rate control paths.
//
// Control ticks run at hundreds of hertz; a misbehaving input would
// otherwise flood the log with identical warnings. [Throttle] emits a
// given message at most once per interval, keyed by its format string.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// New builds a console logger. Debug enables the debug level.
func New(debug bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zap.Must(cfg.Build()).Sugar()
}

// Nop returns a logger that discards everything. Intended for tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Throttle rate-limits repeated log messages. Messages are keyed by their
// format string, so distinct call sites throttle independently.
type Throttle struct {
	log      *zap.SugaredLogger
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottle wraps log so that each distinct message fires at most once
// per interval.
func NewThrottle(log *zap.SugaredLogger, interval time.Duration) *Throttle {
	return &Throttle{
		log:      log,
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

func (t *Throttle) allow(key string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.last[key]; ok && now.Sub(prev) < t.interval {
		return false
	}
	t.last[key] = now
	return true
}

func (t *Throttle) Warnf(format string, args ...any) {
	if t.allow(format) {
		t.log.Warnf(format, args...)
	}
}

func (t *Throttle) Infof(format string, args ...any) {
	if t.allow(format) {
		t.log.Infof(format, args...)
	}
}

func (t *Throttle) Errorf(format string, args ...any) {
	if t.allow(format) {
		t.log.Errorf(format, args...)
	}
}
