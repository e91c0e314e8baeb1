package runtime

import (
	"bizlink/contract"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

type Set map[string]struct{}

// Registry maps users to their live connection. A user is reachable on the
// most recent connection only. Business channels are the one place where
// several connections share a target.
type Registry struct {
	mu               sync.RWMutex
	users            map[string]string           // userID -> connectionID
	sessions         map[string]contract.Session // connectionID -> Session
	businessChannels map[string]Set              // businessID -> connectionIDs
}

func NewRegistry() *Registry {
	return &Registry{
		users:            make(map[string]string),
		sessions:         make(map[string]contract.Session),
		businessChannels: make(map[string]Set),
	}
}

// Register makes session the reachable connection of its user, replacing
// any previous one. The replaced connection stays known until it is
// unregistered so it can still be cleaned up.
func (r *Registry) Register(session contract.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[session.UserID] = session.ConnectionID
	r.sessions[session.ConnectionID] = session
}

// Unregister forgets a connection. The user mapping is removed only when it
// still points at this connection, so a late disconnect of an old socket
// never hides a newer one.
func (r *Registry) Unregister(connectionID string) (contract.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connectionID]
	if !ok {
		return contract.Session{}, false
	}
	delete(r.sessions, connectionID)
	if r.users[session.UserID] == connectionID {
		delete(r.users, session.UserID)
	}
	for businessID, members := range r.businessChannels {
		delete(members, connectionID)
		// No empty channel left behind
		if len(members) == 0 {
			delete(r.businessChannels, businessID)
		}
	}
	return session, true
}

func (r *Registry) Lookup(userID string) (contract.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connectionID, ok := r.users[userID]
	if !ok {
		return contract.Session{}, false
	}
	session, ok := r.sessions[connectionID]
	return session, ok
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// JoinBusiness adds the connection to the broadcast channel of businessID.
func (r *Registry) JoinBusiness(businessID string, session contract.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ConnectionID]; !ok {
		return
	}
	if _, ok := r.businessChannels[businessID]; !ok {
		r.businessChannels[businessID] = make(Set)
	}
	r.businessChannels[businessID][session.ConnectionID] = struct{}{}
}

// BusinessSinks returns the sinks of every connection in the business
// channel. Nil when nobody joined.
func (r *Registry) BusinessSinks(businessID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.businessChannels[businessID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connectionID := range members {
		if session, exists := r.sessions[connectionID]; exists {
			sinks = append(sinks, session.Sink)
		}
	}
	return sinks
}

// Sessions is a snapshot of the reachable sessions, one per user.
func (r *Registry) Sessions() []contract.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FilterMap(lo.Values(r.users), func(connectionID string, _ int) (contract.Session, bool) {
		session, ok := r.sessions[connectionID]
		return session, ok
	})
}

// Count is the number of reachable users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
