// internal/presence/registry.go
package presence

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ReasonTakeover is the eviction reason given to a connection replaced by a newer session.
const ReasonTakeover = "another session took over"

// Conn is one live transport connection belonging to a player.
type Conn interface {
	// ID uniquely names the connection for its lifetime.
	ID() string
	// Send queues msg without blocking and reports whether it was accepted.
	Send(msg any) bool
	// Evict delivers a takeover notice and closes the connection.
	Evict(reason string)
	// Alive reports whether the connection can still deliver messages.
	Alive() bool
}

// Registry maps a durable player id to the connections currently speaking for it.
// It holds routing state only; marking a seat disconnected is the caller's job.
type Registry struct {
	mu      sync.Mutex
	conns   map[string]map[string]Conn // playerID -> connID -> conn
	offline map[string]time.Time       // playerID -> when the last connection went away
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(logger logrus.FieldLogger) *Registry {
	return &Registry{
		conns:   make(map[string]map[string]Conn),
		offline: make(map[string]time.Time),
		logger:  logger,
		now:     time.Now,
	}
}

// Attach registers c for playerID. Every other live connection of the player is
// evicted with a takeover notice, and dead ones are dropped.
func (r *Registry) Attach(playerID string, c Conn) {
	r.mu.Lock()
	set, ok := r.conns[playerID]
	if !ok {
		set = make(map[string]Conn)
		r.conns[playerID] = set
	}
	var evicted []Conn
	for id, other := range set {
		if id == c.ID() {
			continue
		}
		delete(set, id)
		if other.Alive() {
			evicted = append(evicted, other)
		}
	}
	set[c.ID()] = c
	delete(r.offline, playerID)
	r.mu.Unlock()

	for _, other := range evicted {
		r.logger.WithFields(logrus.Fields{"player": playerID, "conn": other.ID()}).Info("evicting superseded session")
		other.Evict(ReasonTakeover)
	}
}

// Detach removes c from playerID and reports whether the player has no
// connection left, along with the time that happened.
func (r *Registry) Detach(playerID string, c Conn) (last bool, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[playerID]
	if !ok {
		return false, time.Time{}
	}
	if _, mine := set[c.ID()]; !mine {
		// already replaced by a newer session
		return false, time.Time{}
	}
	delete(set, c.ID())
	for id, other := range set {
		if !other.Alive() {
			delete(set, id)
		}
	}
	if len(set) > 0 {
		return false, time.Time{}
	}
	delete(r.conns, playerID)
	at = r.now()
	r.offline[playerID] = at
	return true, at
}

// BroadcastTo sends msg to every live connection of playerID. Dead ones are skipped.
func (r *Registry) BroadcastTo(playerID string, msg any) {
	for _, c := range r.live(playerID) {
		if !c.Send(msg) {
			r.logger.WithFields(logrus.Fields{"player": playerID, "conn": c.ID()}).Warn("dropped outbound message")
		}
	}
}

// Online reports whether playerID has at least one live connection.
func (r *Registry) Online(playerID string) bool {
	return len(r.live(playerID)) > 0
}

// IsAttached reports whether connID is a registered connection of playerID.
func (r *Registry) IsAttached(playerID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[playerID][connID]
	return ok
}

// OfflineSince returns when playerID lost its last connection, if it has.
func (r *Registry) OfflineSince(playerID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.offline[playerID]
	return t, ok
}

// Prune drops dead connections and forgets offline records older than maxAge.
// It returns the players that lost their last connection during the sweep.
func (r *Registry) Prune(maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var gone []string
	for playerID, set := range r.conns {
		for id, c := range set {
			if !c.Alive() {
				delete(set, id)
			}
		}
		if len(set) == 0 {
			delete(r.conns, playerID)
			r.offline[playerID] = now
			gone = append(gone, playerID)
		}
	}
	for playerID, at := range r.offline {
		if now.Sub(at) > maxAge {
			delete(r.offline, playerID)
		}
	}
	return gone
}

func (r *Registry) live(playerID string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.conns[playerID]
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		if c.Alive() {
			out = append(out, c)
		}
	}
	return out
}
