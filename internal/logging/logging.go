// Package logging provides categorized logging for tempo.
// Each subsystem logs through its own category so a single noisy component
// (usually sync) can be followed or silenced independently.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and shutdown
	CategoryStore   Category = "store"   // Local store operations
	CategorySession Category = "session" // Session registry and message log
	CategoryTasks   Category = "tasks"   // Task/plan state
	CategorySync    Category = "sync"    // Push/pull reconciliation
	CategoryCache   Category = "cache"   // Offline cache layer
	CategoryWeb     Category = "web"     // Presentation HTTP surface
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize installs the process-wide logger. Verbose enables debug output
// with a development encoder; otherwise the production config is used.
// Safe to call more than once; the last call wins.
func Initialize(verbose bool) error {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		logger, err = cfg.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// Sync flushes buffered log entries. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// Get returns (or creates) the logger for a category.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Sugar().With("category", string(category))
	loggers[category] = l
	return l
}

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// Convenience functions for the common categories. These keep call sites
// short: logging.Store("..."), logging.SyncDebug("...").

func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warnf(format, args...)
}

func Store(format string, args ...interface{}) {
	Get(CategoryStore).Infof(format, args...)
}

func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debugf(format, args...)
}

func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warnf(format, args...)
}

func Session(format string, args ...interface{}) {
	Get(CategorySession).Infof(format, args...)
}

func SessionDebug(format string, args ...interface{}) {
	Get(CategorySession).Debugf(format, args...)
}

func Tasks(format string, args ...interface{}) {
	Get(CategoryTasks).Infof(format, args...)
}

func TasksDebug(format string, args ...interface{}) {
	Get(CategoryTasks).Debugf(format, args...)
}

func SyncLog(format string, args ...interface{}) {
	Get(CategorySync).Infof(format, args...)
}

func SyncDebug(format string, args ...interface{}) {
	Get(CategorySync).Debugf(format, args...)
}

func SyncWarn(format string, args ...interface{}) {
	Get(CategorySync).Warnf(format, args...)
}

func Cache(format string, args ...interface{}) {
	Get(CategoryCache).Infof(format, args...)
}

func CacheDebug(format string, args ...interface{}) {
	Get(CategoryCache).Debugf(format, args...)
}

func Web(format string, args ...interface{}) {
	Get(CategoryWeb).Infof(format, args...)
}
