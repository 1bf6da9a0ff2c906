// Package testutils holds shared helpers for tests across the repository.
package testutils

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// SimpleLogrusHook implements logrus.Hook and records every entry logged at
// the hooked levels, so tests can assert that a warning or error was
// actually emitted.
type SimpleLogrusHook struct {
	HookedLevels []logrus.Level

	mutex        sync.Mutex
	messageCache []logrus.Entry
}

// Levels returns the levels the hook is registered for.
func (h *SimpleLogrusHook) Levels() []logrus.Level {
	return h.HookedLevels
}

// Fire stores the entry in the cache.
func (h *SimpleLogrusHook) Fire(e *logrus.Entry) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.messageCache = append(h.messageCache, *e)
	return nil
}

// Drain returns the currently stored entries and clears the cache.
func (h *SimpleLogrusHook) Drain() []logrus.Entry {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	res := h.messageCache
	h.messageCache = nil
	return res
}

// Lines returns the messages of all drained entries.
func (h *SimpleLogrusHook) Lines() []string {
	entries := h.Drain()
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = entry.Message
	}
	return lines
}

// NewLogger returns a discard-output logger with a warn-and-up hook
// attached, ready for asserting on degraded-path log output.
func NewLogger() (*logrus.Logger, *SimpleLogrusHook) {
	logger := logrus.New()
	logger.SetOutput(discard{})
	hook := &SimpleLogrusHook{
		HookedLevels: []logrus.Level{logrus.WarnLevel, logrus.ErrorLevel},
	}
	logger.AddHook(hook)
	return logger, hook
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
