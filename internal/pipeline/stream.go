package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned for session ids the log has never seen or has
// already garbage-collected.
var ErrNoSession = errors.New("session not found")

const (
	// DefaultIdleTimeout bounds how long a consumer blocks waiting for a
	// stalled run before the stream terminates.
	DefaultIdleTimeout = 300 * time.Second
	// DefaultRetention is how long a finished session stays retrievable.
	DefaultRetention = 5 * time.Minute
)

type session struct {
	activities []Activity
	result     map[string]any
	done       bool
	notify     chan struct{} // closed and replaced on every append
	updatedAt  time.Time
}

// Log holds the per-session activity sequences. Append is the only mutator
// of a session's activities; consumers either poll with a cursor or block
// in Wait until the session grows. Finished sessions are swept after the
// retention window.
type Log struct {
	mu          sync.Mutex
	sessions    map[string]*session
	idleTimeout time.Duration
	retention   time.Duration
}

// NewLog creates a Log with the default idle timeout and retention.
func NewLog() *Log {
	return &Log{
		sessions:    make(map[string]*session),
		idleTimeout: DefaultIdleTimeout,
		retention:   DefaultRetention,
	}
}

// Create registers an empty session. It also sweeps expired sessions, so
// the log needs no background goroutine of its own.
func (l *Log) Create(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(time.Now())
	l.sessions[sessionID] = &session{
		notify:    make(chan struct{}),
		updatedAt: time.Now(),
	}
}

func (l *Log) sweepLocked(now time.Time) {
	for id, s := range l.sessions {
		if now.Sub(s.updatedAt) > l.retention {
			delete(l.sessions, id)
		}
	}
}

// Append adds one activity to the session and wakes blocked consumers.
// Appending to an unknown session is a no-op; the run it belonged to has
// already been swept and nobody can observe it.
func (l *Log) Append(sessionID string, a Activity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[sessionID]
	if !ok {
		return
	}
	s.activities = append(s.activities, a)
	s.updatedAt = time.Now()
	if a.Terminal() {
		s.done = true
	}
	close(s.notify)
	s.notify = make(chan struct{})
}

// Finish appends the terminal orchestrator activity carrying the run's
// result and stores the result for retrieval.
func (l *Log) Finish(sessionID, message string, result map[string]any) {
	l.mu.Lock()
	if s, ok := l.sessions[sessionID]; ok {
		s.result = result
	}
	l.mu.Unlock()
	l.Append(sessionID, newActivity(AgentOrchestrator, "complete", StatusCompleted, message, result))
}

// Poll returns the activities at or after cursor, the next cursor, whether
// the session is finished, and the terminal result once finished.
func (l *Log) Poll(sessionID string, cursor int) ([]Activity, int, bool, map[string]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[sessionID]
	if !ok {
		return nil, 0, false, nil, ErrNoSession
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(s.activities) {
		cursor = len(s.activities)
	}
	fresh := make([]Activity, len(s.activities)-cursor)
	copy(fresh, s.activities[cursor:])
	return fresh, len(s.activities), s.done, s.result, nil
}

// Wait blocks until the session has activities past cursor, the session
// finishes, the context is cancelled, or the idle timeout elapses. It then
// returns the same shape as Poll. An idle timeout reports done=true so the
// consumer terminates instead of blocking forever on an abandoned run.
func (l *Log) Wait(ctx context.Context, sessionID string, cursor int) ([]Activity, int, bool, map[string]any, error) {
	deadline := time.NewTimer(l.idleTimeout)
	defer deadline.Stop()

	for {
		l.mu.Lock()
		s, ok := l.sessions[sessionID]
		if !ok {
			l.mu.Unlock()
			return nil, 0, false, nil, ErrNoSession
		}
		if cursor < 0 {
			cursor = 0
		}
		if cursor < len(s.activities) || s.done {
			fresh := make([]Activity, len(s.activities)-min(cursor, len(s.activities)))
			copy(fresh, s.activities[min(cursor, len(s.activities)):])
			next, done, result := len(s.activities), s.done, s.result
			l.mu.Unlock()
			return fresh, next, done, result, nil
		}
		notify := s.notify
		l.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return nil, cursor, false, nil, ctx.Err()
		case <-deadline.C:
			return nil, cursor, true, nil, nil
		}
	}
}
