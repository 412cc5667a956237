// Package notify carries user-facing messages from the session and cart state logic to
// whatever presents them.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "success":
		*s = SeveritySuccess
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		*s = SeverityInfo
	}
	return nil
}

// Sink receives transient, dismissable notifications.
type Sink interface {
	Notify(message string, severity Severity)
}

// Discard drops every notification.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(string, Severity) {}

// Multi fans a notification out to every sink.
type Multi []Sink

func (m Multi) Notify(message string, severity Severity) {
	for _, s := range m {
		s.Notify(message, severity)
	}
}

// Log writes notifications to a zap logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) Log {
	return Log{logger: logger}
}

func (l Log) Notify(message string, severity Severity) {
	fields := []zap.Field{zap.String("severity", severity.String())}
	switch severity {
	case SeverityError:
		l.logger.Warn(message, fields...)
	default:
		l.logger.Info(message, fields...)
	}
}

// Notification is one entry of a Feed.
type Notification struct {
	ID       uint64    `json:"id"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// Feed keeps the most recent notifications until the UI drains or dismisses them.
// Older entries are dropped once limit is reached.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	limit int
	next  uint64
	now   func() time.Time
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 20
	}
	return &Feed{limit: limit, now: time.Now}
}

func (f *Feed) Notify(message string, severity Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.items = append(f.items, Notification{
		ID:       f.next,
		Message:  message,
		Severity: severity,
		At:       f.now().UTC(),
	})
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Notification(nil), f.items[over:]...)
	}
}

// Pending returns the queued notifications without removing them.
func (f *Feed) Pending() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.items...)
}

// Drain returns and removes every queued notification.
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.items
	f.items = nil
	return out
}

// Dismiss removes a single notification. It reports whether it was still queued.
func (f *Feed) Dismiss(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.items {
		if n.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true
		}
	}
	return false
}
