// throttle.go implements login brute-force protection.
//
// Each client key (normally the remote IP) gets a fixed window that opens on
// its first failed login. Within the window at most maxFailures failures are
// tolerated; once reached, further attempts are rejected without touching the
// credential store until the window has elapsed. A successful login does not
// reset the count: the window is the only thing that clears it.
//
// The check and the increment are split around the password comparison, so
// Acquire reserves an in-flight slot that counts against the limit until
// Record releases it. Two concurrent attempts for the same key therefore
// cannot both slip past the last remaining slot.

package auth

import (
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// DefaultLoginWindow is the lifetime of a throttle window.
	DefaultLoginWindow = 15 * time.Minute

	// DefaultLoginMaxAttempts is the number of failures tolerated per window.
	DefaultLoginMaxAttempts = 5
)

// Outcome of a login attempt as seen by the throttle.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// ErrRateLimited is returned when a login attempt is rejected by the throttle.
type ErrRateLimited struct {
	ClientKey  string
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("too many login attempts for %s (retry after %s)", e.ClientKey, e.RetryAfter)
}

// throttleEntry is the per-key state. Its mutex makes check-then-increment
// atomic for one key without serializing unrelated clients.
type throttleEntry struct {
	mu          sync.Mutex
	failures    int
	inFlight    int
	windowStart time.Time
	removed     bool // set by Cleanup once the entry left the map
}

// expire resets the window once it has elapsed. Caller must hold e.mu.
func (e *throttleEntry) expire(now time.Time, window time.Duration) {
	if !e.windowStart.IsZero() && now.Sub(e.windowStart) >= window {
		e.failures = 0
		e.windowStart = time.Time{}
	}
}

// LoginThrottle enforces the per-client failure budget.
type LoginThrottle struct {
	window      time.Duration
	maxFailures int
	entries     sync.Map // client key -> *throttleEntry

	// Clock function for testing. Returns current time.
	nowFunc func() time.Time
}

// NewLoginThrottle creates a throttle. Non-positive arguments select the
// defaults.
func NewLoginThrottle(window time.Duration, maxFailures int) *LoginThrottle {
	if window <= 0 {
		window = DefaultLoginWindow
	}
	if maxFailures <= 0 {
		maxFailures = DefaultLoginMaxAttempts
	}
	return &LoginThrottle{
		window:      window,
		maxFailures: maxFailures,
		nowFunc:     time.Now,
	}
}

// lockedEntry returns the live entry for clientKey with its mutex held.
func (lt *LoginThrottle) lockedEntry(clientKey string) *throttleEntry {
	for {
		v, ok := lt.entries.Load(clientKey)
		if !ok {
			v, _ = lt.entries.LoadOrStore(clientKey, &throttleEntry{})
		}
		e := v.(*throttleEntry)
		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// Attempt is a reserved login slot. Exactly one Record call releases it.
type Attempt struct {
	lt   *LoginThrottle
	e    *throttleEntry
	once sync.Once
}

// Acquire checks the budget for clientKey and reserves a slot. It returns
// *ErrRateLimited when the key has exhausted its window.
func (lt *LoginThrottle) Acquire(clientKey string) (*Attempt, error) {
	now := lt.nowFunc()
	e := lt.lockedEntry(clientKey)
	defer e.mu.Unlock()

	e.expire(now, lt.window)
	if e.failures+e.inFlight >= lt.maxFailures {
		retryAfter := time.Second
		if !e.windowStart.IsZero() {
			retryAfter = e.windowStart.Add(lt.window).Sub(now)
		}
		log.Printf("[throttle] client %s rejected: %d failures in current window", clientKey, e.failures)
		return nil, &ErrRateLimited{ClientKey: clientKey, RetryAfter: retryAfter}
	}
	e.inFlight++
	return &Attempt{lt: lt, e: e}, nil
}

// Record releases the slot and, for a failure, charges it to the window.
// Calls after the first are ignored.
func (a *Attempt) Record(outcome Outcome) {
	a.once.Do(func() {
		now := a.lt.nowFunc()
		a.e.mu.Lock()
		defer a.e.mu.Unlock()

		a.e.inFlight--
		if outcome != OutcomeFailure {
			return
		}
		a.e.expire(now, a.lt.window)
		if a.e.windowStart.IsZero() {
			a.e.windowStart = now
		}
		a.e.failures++
	})
}

// CheckAndRecord is the single-call form used when no work happens between
// the check and the outcome. It reports whether the attempt was allowed.
func (lt *LoginThrottle) CheckAndRecord(clientKey string, outcome Outcome) bool {
	a, err := lt.Acquire(clientKey)
	if err != nil {
		return false
	}
	a.Record(outcome)
	return true
}

// Cleanup drops entries whose window has elapsed and that have no attempt
// in flight.
func (lt *LoginThrottle) Cleanup() {
	now := lt.nowFunc()
	lt.entries.Range(func(k, v interface{}) bool {
		e := v.(*throttleEntry)
		e.mu.Lock()
		e.expire(now, lt.window)
		if e.failures == 0 && e.inFlight == 0 {
			e.removed = true
			lt.entries.CompareAndDelete(k, v)
		}
		e.mu.Unlock()
		return true
	})
}

// GetState returns the failure count and window start for a client key.
// Returns zero values if no state exists. Used for monitoring/debugging.
func (lt *LoginThrottle) GetState(clientKey string) (failures int, windowStart time.Time) {
	v, ok := lt.entries.Load(clientKey)
	if !ok {
		return 0, time.Time{}
	}
	e := v.(*throttleEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expire(lt.nowFunc(), lt.window)
	return e.failures, e.windowStart
}
