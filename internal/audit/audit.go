// Package audit records authentication events.
//
// Records go to two places: a structured JSON stream (charmbracelet/log) that
// shares the process log writer, and the audit_logs table for durable storage.
// Recording is fire-and-forget: callers hand an Event to a buffered queue and
// a single worker goroutine does the I/O, so an HTTP response never waits on
// the disk. When the queue is full the event is dropped and counted.
package audit

import (
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DrorShokoPeer/ttydx/internal/database"
	"github.com/DrorShokoPeer/ttydx/internal/logutil"
	charmlog "github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Event names.
const (
	EventLoginSuccess     = "login_success"
	EventLoginFailure     = "login_failure"
	EventLoginRateLimited = "login_rate_limited"
	EventLoginBadRequest  = "login_bad_request"
	EventLogout           = "logout"
)

// Outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Levels.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
)

// DefaultRetentionDays is the default number of days to keep audit rows.
const DefaultRetentionDays = 90

// DefaultQueueSize bounds the number of events waiting for the writer.
const DefaultQueueSize = 256

// Event is one audit record. Passwords never belong here.
type Event struct {
	Time      time.Time
	Level     string
	Event     string
	Username  string
	ClientKey string
	Outcome   string
	Details   string
}

// Auditor writes events asynchronously. A nil db disables durable storage
// and keeps only the stream.
type Auditor struct {
	db            *gorm.DB
	stream        *charmlog.Logger
	retentionDays int
	nowFn         func() time.Time

	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64
}

// NewStreamLogger builds the JSON audit stream on w.
func NewStreamLogger(w io.Writer) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		Formatter:       charmlog.JSONFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "audit",
		Level:           charmlog.DebugLevel,
	})
}

// NewAuditor starts the writer goroutine. If retentionDays is 0,
// DefaultRetentionDays is used; if queueSize is 0, DefaultQueueSize.
func NewAuditor(db *gorm.DB, stream *charmlog.Logger, retentionDays, queueSize int) *Auditor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	a := &Auditor{
		db:            db,
		stream:        stream,
		retentionDays: retentionDays,
		nowFn:         time.Now,
		queue:         make(chan Event, queueSize),
		done:          make(chan struct{}),
	}
	go a.run()
	return a
}

// Record enqueues an event without blocking.
func (a *Auditor) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = a.nowFn().UTC()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- e:
	default:
		n := a.dropped.Add(1)
		log.Printf("[audit] queue full, dropped %s event (%d dropped so far)", e.Event, n)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (a *Auditor) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the queue is drained.
func (a *Auditor) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}

func (a *Auditor) run() {
	defer close(a.done)
	for e := range a.queue {
		a.write(e)
	}
}

func (a *Auditor) write(e Event) {
	username := logutil.SanitizeForLog(e.Username)

	if a.stream != nil {
		kv := []interface{}{"client_key", e.ClientKey, "outcome", e.Outcome, "at", e.Time.Format(time.RFC3339Nano)}
		if username != "" {
			kv = append(kv, "username", username)
		}
		if e.Details != "" {
			kv = append(kv, "details", logutil.SanitizeForLog(e.Details))
		}
		switch e.Level {
		case LevelDebug:
			a.stream.Debug(e.Event, kv...)
		case LevelWarn:
			a.stream.Warn(e.Event, kv...)
		default:
			a.stream.Info(e.Event, kv...)
		}
	}

	if a.db == nil {
		return
	}
	record := database.AuditLog{
		Event:     e.Event,
		Level:     e.Level,
		Username:  username,
		ClientKey: e.ClientKey,
		Outcome:   e.Outcome,
		Details:   e.Details,
		CreatedAt: e.Time,
	}
	if err := a.db.Create(&record).Error; err != nil {
		log.Printf("[audit] failed to write audit log: %v", err)
	}
}

// PurgeOlderThan removes rows older than days (the configured retention
// when days <= 0). Returns the number of rows deleted.
func (a *Auditor) PurgeOlderThan(days int) (int64, error) {
	if a.db == nil {
		return 0, nil
	}
	if days <= 0 {
		days = a.retentionDays
	}
	cutoff := a.nowFn().AddDate(0, 0, -days)
	result := a.db.Where("created_at < ?", cutoff).Delete(&database.AuditLog{})
	if result.Error != nil {
		log.Printf("[audit] purge failed: %v", result.Error)
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("[audit] purged %d audit entries older than %d days", result.RowsAffected, days)
	}
	return result.RowsAffected, nil
}

// RetentionDays returns the configured retention period.
func (a *Auditor) RetentionDays() int {
	return a.retentionDays
}

// SetNowFunc sets the clock function used for testing.
func (a *Auditor) SetNowFunc(fn func() time.Time) {
	a.nowFn = fn
}
