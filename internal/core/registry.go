package core

import (
	"sort"
	"sync"

	"github.com/polyglotchat/polyglot-server/internal/auth"
)

// Session is the live state of one connection.
type Session struct {
	ConnID   string
	UserID   string
	Username string
	Role     string
	Room     string
	Lang     string
	Avatar   string
}

// Registry tracks connection sessions and room occupancy. It is an
// explicitly constructed instance, injected into the hub, so isolated
// registries can exist side by side in tests. All mutation is atomic with
// respect to concurrent calls; MembersOf returns a consistent snapshot.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	rooms    map[string]map[string]struct{} // room -> conn ids
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// Register creates a session for an authenticated connection.
func (r *Registry) Register(connID string, identity *auth.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := &Session{ConnID: connID, Lang: "en"}
	if identity != nil {
		session.UserID = identity.UserID
		session.Username = identity.Username
		session.Role = identity.Role
	}
	r.sessions[connID] = session
}

// Join moves the connection into a room, implicitly leaving its previous
// room. It returns the vacated room name ("" if none or unchanged) and
// whether the session exists.
func (r *Registry) Join(connID, room, lang string) (vacated string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	if !exists {
		return "", false
	}

	if session.Room != "" && session.Room != room {
		vacated = session.Room
		r.removeFromRoom(session.Room, connID)
	}

	session.Room = room
	if lang != "" {
		session.Lang = lang
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	return vacated, true
}

// Leave removes the connection from its current room if it matches.
func (r *Registry) Leave(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	if !exists || session.Room != room {
		return false
	}
	session.Room = ""
	r.removeFromRoom(room, connID)
	return true
}

// SetLanguage updates the session's preferred language.
func (r *Registry) SetLanguage(connID, lang string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	if !exists {
		return false
	}
	session.Lang = lang
	return true
}

// Get returns a copy of the session, if registered.
func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	if !exists {
		return Session{}, false
	}
	return *session, true
}

// MembersOf returns a consistent snapshot of a room's occupants, sorted
// by username for stable output.
func (r *Registry) MembersOf(room string) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.rooms[room]
	members := make([]Member, 0, len(conns))
	for connID := range conns {
		session, exists := r.sessions[connID]
		if !exists {
			continue
		}
		members = append(members, Member{
			ID:       session.ConnID,
			Username: session.Username,
			Lang:     session.Lang,
			Online:   true,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	return members
}

// LanguagesOf returns the distinct languages of a room's occupants.
func (r *Registry) LanguagesOf(room string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	var langs []string
	for connID := range r.rooms[room] {
		session, exists := r.sessions[connID]
		if !exists || session.Lang == "" {
			continue
		}
		if _, dup := seen[session.Lang]; dup {
			continue
		}
		seen[session.Lang] = struct{}{}
		langs = append(langs, session.Lang)
	}
	sort.Strings(langs)
	return langs
}

// Disconnect destroys the session and returns the room it vacated.
func (r *Registry) Disconnect(connID string) (vacated string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	if !exists {
		return ""
	}
	if session.Room != "" {
		vacated = session.Room
		r.removeFromRoom(session.Room, connID)
	}
	delete(r.sessions, connID)
	return vacated
}

// removeFromRoom must be called with the lock held.
func (r *Registry) removeFromRoom(room, connID string) {
	conns := r.rooms[room]
	if conns == nil {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.rooms, room)
	}
}
