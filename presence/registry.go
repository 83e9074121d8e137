// Package presence tracks which users are connected and what the rest of
// the system may publish about them: display name, join time, and the last
// reported location.
package presence

import (
	"fmt"
	"sync"
	"time"
)

// Location is a user's last reported position. Updates replace the value
// wholesale; partial fields are never merged.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	AreaName  string    `json:"areaName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// User is a logical participant. An identity maps to at most one live
// connection at a time.
type User struct {
	ID          string    `json:"userId"`
	Name        string    `json:"userName"`
	ConnectedAt time.Time `json:"connectedAt"`
	Location    *Location `json:"location,omitempty"`
}

// RosterEntry is the join metadata exposed in presence snapshots.
type RosterEntry struct {
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// UserLocation pairs a user with their last known location, for clients
// rendering map overlays of other participants.
type UserLocation struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Location *Location `json:"location"`
}

type entry struct {
	user   User
	connID string
}

// Registry is the directory of connected users, kept in insertion order.
// It is owned state of a single server instance, never package-global, so
// multiple instances can coexist in tests.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]*entry
	order  []string
	lastID int64
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*entry)}
}

// Bind associates a user identity with the connection identified by connID.
// An empty userID gets a generated time-based identity; an empty name gets
// a guest name derived from the identity. Binding an identity that is
// already present replaces the prior mapping and transfers ownership to
// connID, so a reconnect never yields duplicate roster entries.
func (r *Registry) Bind(userID, name, connID string) User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if userID == "" {
		userID = r.generateUserID()
	}
	if name == "" {
		name = fallbackName(userID)
	}

	user := User{ID: userID, Name: name, ConnectedAt: time.Now()}

	if existing, ok := r.users[userID]; ok {
		existing.user = user
		existing.connID = connID
		return user
	}

	r.users[userID] = &entry{user: user, connID: connID}
	r.order = append(r.order, userID)
	return user
}

// Unbind removes the identity, but only if connID still owns it: a stale
// connection closing after a reconnect must not evict the fresh binding.
// It reports whether an entry was removed; unbinding an absent identity is
// a silent no-op.
func (r *Registry) Unbind(userID, connID string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[userID]
	if !ok || existing.connID != connID {
		return User{}, false
	}

	delete(r.users, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return existing.user, true
}

// UpdateLocation replaces the user's last known location. The location
// timestamp is stamped server-side on arrival.
func (r *Registry) UpdateLocation(userID string, loc Location) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[userID]
	if !ok {
		return User{}, false
	}

	loc.Timestamp = time.Now()
	existing.user.Location = &loc
	return existing.user, true
}

// Get returns the user bound to the given identity.
func (r *Registry) Get(userID string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, ok := r.users[userID]
	if !ok {
		return User{}, false
	}
	return existing.user, true
}

// Snapshot returns the current roster in insertion order. The order is
// stable within a snapshot and across snapshots until membership changes.
func (r *Registry) Snapshot() []RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]RosterEntry, 0, len(r.order))
	for _, id := range r.order {
		e := r.users[id]
		roster = append(roster, RosterEntry{
			UserID:      e.user.ID,
			UserName:    e.user.Name,
			ConnectedAt: e.user.ConnectedAt,
		})
	}
	return roster
}

// Locations returns every user that has reported a location, in insertion
// order.
func (r *Registry) Locations() []UserLocation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]UserLocation, 0, len(r.order))
	for _, id := range r.order {
		e := r.users[id]
		if e.user.Location == nil {
			continue
		}
		out = append(out, UserLocation{
			UserID:   e.user.ID,
			UserName: e.user.Name,
			Location: e.user.Location,
		})
	}
	return out
}

// Count returns the number of bound users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// generateUserID returns a time-based identity, bumped when two bindings
// land on the same millisecond. Callers must hold the write lock.
func (r *Registry) generateUserID() string {
	stamp := time.Now().UnixMilli()
	if stamp <= r.lastID {
		stamp = r.lastID + 1
	}
	r.lastID = stamp
	return fmt.Sprintf("user_%d", stamp)
}

// fallbackName derives a guest display name from the last 4 characters of
// the identity.
func fallbackName(userID string) string {
	suffix := userID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "Guest_" + suffix
}
