package core

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var (
	singleton *logger
	mu        sync.RWMutex
)

func getLogger() *logger {
	mu.RLock()
	l := singleton
	mu.RUnlock()
	if l != nil {
		return l
	}
	once.Do(func() {
		l := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "Ember 🔥 ",
		})
		l.SetLevel(log.InfoLevel)
		mu.Lock()
		singleton = &logger{l}
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return singleton
}

// SetLogger installs a caller-provided sink, satisfying the "pluggable sink"
// requirement of spec.md §7. Tests use this to redirect or silence output.
func SetLogger(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	singleton = &logger{l}
}

// SetLevel adjusts the minimum severity forwarded to the sink.
func SetLevel(level log.Level) {
	getLogger().SetLevel(level)
}

func LogTrace(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
