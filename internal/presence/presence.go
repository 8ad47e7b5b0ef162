// Package presence derives a user's observable status (ONLINE, IDLE,
// OFFLINE) from activity signals and connection-count transitions.
//
// Only ONLINE and IDLE are stored; OFFLINE is represented by the absence of
// a record. The status of a user id the tracker has never seen is therefore
// OFFLINE by contract, not by accident.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/duochat/relay/internal/model"
)

// LiveCounter reports how many live connections a user currently has. Timer
// callbacks consult it before transitioning, so a timer that fires late is a
// harmless no-op.
type LiveCounter interface {
	ConnectionCount(userID int64) int
}

// Sink receives presence transition events. Exactly one event is emitted per
// actual transition; repeats are suppressed. Sinks must not call back into
// the tracker.
type Sink interface {
	PresenceChanged(state model.PresenceState)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(state model.PresenceState)

// PresenceChanged implements Sink
func (f SinkFunc) PresenceChanged(state model.PresenceState) {
	f(state)
}

// Tracker is the presence state machine. All state is guarded by one mutex;
// no operation spans an external call, so transitions stay atomic relative
// to connection-count changes for the same user.
type Tracker struct {
	status      map[int64]model.PresenceStatus
	idleTimers  map[int64]*time.Timer
	graceTimers map[int64]*time.Timer

	idleTimeout  time.Duration
	offlineGrace time.Duration

	lives LiveCounter
	sink  Sink

	mu      sync.Mutex
	stopped bool
}

// NewTracker creates a presence tracker. Both durations are tunable; see the
// presence section of the configuration.
func NewTracker(idleTimeout, offlineGrace time.Duration, lives LiveCounter, sink Sink) *Tracker {
	return &Tracker{
		status:       make(map[int64]model.PresenceStatus),
		idleTimers:   make(map[int64]*time.Timer),
		graceTimers:  make(map[int64]*time.Timer),
		idleTimeout:  idleTimeout,
		offlineGrace: offlineGrace,
		lives:        lives,
		sink:         sink,
	}
}

// Touch records an activity signal: connect, explicit ping, room join,
// message send, or signaling send. It cancels any pending offline grace,
// restores ONLINE, and re-arms the idle timer. Arming always goes through
// cancel-then-set, so at most one timer of each kind exists per user.
func (t *Tracker) Touch(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.cancelGraceLocked(userID)
	t.setStatusLocked(userID, model.StatusOnline)

	t.cancelIdleLocked(userID)
	t.idleTimers[userID] = time.AfterFunc(t.idleTimeout, func() {
		t.idleFired(userID)
	})
}

// ScheduleOffline arms the offline-grace timer for a user whose last
// connection just closed. A reconnect within the grace window cancels the
// timer through Touch, and the user never visibly left.
func (t *Tracker) ScheduleOffline(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.cancelGraceLocked(userID)
	t.graceTimers[userID] = time.AfterFunc(t.offlineGrace, func() {
		t.graceFired(userID)
	})
}

// StatusOf returns the current status of a user. Unknown users are OFFLINE.
func (t *Tracker) StatusOf(userID int64) model.PresenceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if status, ok := t.status[userID]; ok {
		return status
	}
	return model.StatusOffline
}

// Snapshot enumerates the ONLINE and IDLE users, ordered by user id. It is
// sent to a newly connected peer so it can render presence without waiting
// for individual change events.
func (t *Tracker) Snapshot() []model.PresenceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.PresenceState, 0, len(t.status))
	for userID, status := range t.status {
		out = append(out, model.PresenceState{UserID: userID, Status: status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Stop cancels every pending timer. Further calls are no-ops; used on
// shutdown so no callback fires into a torn-down process.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for userID, timer := range t.idleTimers {
		timer.Stop()
		delete(t.idleTimers, userID)
	}
	for userID, timer := range t.graceTimers {
		timer.Stop()
		delete(t.graceTimers, userID)
	}
}

// idleFired transitions ONLINE -> IDLE after the idle timeout. If the user
// has no live connections anymore, the grace path owns the OFFLINE
// transition and this does nothing.
func (t *Tracker) idleFired(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.idleTimers, userID)
	if t.stopped {
		return
	}
	if t.lives.ConnectionCount(userID) == 0 {
		return
	}
	if t.status[userID] == model.StatusOnline {
		t.setStatusLocked(userID, model.StatusIdle)
	}
}

// graceFired transitions to OFFLINE once the grace window elapses, unless
// the user reconnected in the meantime.
func (t *Tracker) graceFired(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.graceTimers, userID)
	if t.stopped {
		return
	}
	if t.lives.ConnectionCount(userID) > 0 {
		return
	}

	t.cancelIdleLocked(userID)
	if _, present := t.status[userID]; present {
		delete(t.status, userID)
		t.sink.PresenceChanged(model.PresenceState{UserID: userID, Status: model.StatusOffline})
	}
}

// setStatusLocked stores a status and emits the change event, but only on an
// actual transition.
func (t *Tracker) setStatusLocked(userID int64, status model.PresenceStatus) {
	if t.status[userID] == status {
		return
	}
	t.status[userID] = status
	t.sink.PresenceChanged(model.PresenceState{UserID: userID, Status: status})
}

func (t *Tracker) cancelIdleLocked(userID int64) {
	if timer, ok := t.idleTimers[userID]; ok {
		timer.Stop()
		delete(t.idleTimers, userID)
	}
}

func (t *Tracker) cancelGraceLocked(userID int64) {
	if timer, ok := t.graceTimers[userID]; ok {
		timer.Stop()
		delete(t.graceTimers, userID)
	}
}
