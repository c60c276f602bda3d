// Package presence tracks which users are active in a workspace and which of
// them are focused on, editing or pointing into each block.
//
// Presence is advisory: removing an unknown user or block is a no-op and no
// operation returns an error. The same Registry type backs the relay's shared
// state and each client's local mirror.
package presence

import (
	"sort"
	"sync"
)

type FocusType string

const (
	Focus FocusType = "focus"
	Blur  FocusType = "blur"
)

// User is a collaborator as shown to other peers.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Color string `json:"color"`
}

// Entry associates a user with a block.
type Entry struct {
	BlockID   string `json:"blockId"`
	User      User   `json:"user"`
	IsEditing bool   `json:"isEditing"`
	Cursor    *int   `json:"cursor,omitempty"`
}

// Snapshot is a copy of one workspace's presence state.
type Snapshot struct {
	WorkspaceID string             `json:"workspaceId"`
	Users       []User             `json:"users"`
	Blocks      map[string][]Entry `json:"blocks"`
}

type workspace struct {
	users   map[string]User
	focus   map[string][]string       // blockID -> userIDs in focus order
	cursors map[string]map[string]int // blockID -> userID -> position
	editing map[string]map[string]bool
}

func newWorkspace() *workspace {
	return &workspace{
		users:   make(map[string]User),
		focus:   make(map[string][]string),
		cursors: make(map[string]map[string]int),
		editing: make(map[string]map[string]bool),
	}
}

// Registry holds presence per workspace, indexed by (workspaceID, blockID).
type Registry struct {
	mu         sync.RWMutex
	workspaces map[string]*workspace
}

func NewRegistry() *Registry {
	return &Registry{workspaces: make(map[string]*workspace)}
}

// withColor fills in the derived color.
func withColor(u User) User {
	u.Color = ColorFor(u.ID)
	if u.Name == "" {
		u.Name = u.Email
	}
	return u
}

func (r *Registry) workspaceLocked(workspaceID string) *workspace {
	ws, ok := r.workspaces[workspaceID]
	if !ok {
		ws = newWorkspace()
		r.workspaces[workspaceID] = ws
	}
	return ws
}

// UserJoined upserts the user into the workspace's active set. A later join
// for the same user ID replaces the earlier entry.
func (r *Registry) UserJoined(workspaceID string, u User) User {
	u = withColor(u)
	if u.ID == "" {
		return u
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaceLocked(workspaceID).users[u.ID] = u
	return u
}

// UserLeft removes the user from the active set and from every block's focus,
// cursor and editing state. It reports whether the user was active.
func (r *Registry) UserLeft(workspaceID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return false
	}
	_, active := ws.users[userID]
	delete(ws.users, userID)

	for blockID, ids := range ws.focus {
		ws.focus[blockID] = removeID(ids, userID)
		if len(ws.focus[blockID]) == 0 {
			delete(ws.focus, blockID)
		}
	}
	for blockID, byUser := range ws.cursors {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(ws.cursors, blockID)
		}
	}
	for blockID, byUser := range ws.editing {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(ws.editing, blockID)
		}
	}

	if len(ws.users) == 0 {
		delete(r.workspaces, workspaceID)
	}
	return active
}

// BlockFocusChanged records a focus or blur on a block. Focusing also upserts
// the user as active so the focus set never references an inactive user.
// Blur only touches the given block. Unknown focus types are ignored.
func (r *Registry) BlockFocusChanged(workspaceID, blockID string, u User, focusType FocusType) {
	if u.ID == "" || blockID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch focusType {
	case Focus:
		ws := r.workspaceLocked(workspaceID)
		if _, ok := ws.users[u.ID]; !ok {
			ws.users[u.ID] = withColor(u)
		}
		if !containsID(ws.focus[blockID], u.ID) {
			ws.focus[blockID] = append(ws.focus[blockID], u.ID)
		}
	case Blur:
		ws, ok := r.workspaces[workspaceID]
		if !ok {
			return
		}
		ws.focus[blockID] = removeID(ws.focus[blockID], u.ID)
		if len(ws.focus[blockID]) == 0 {
			delete(ws.focus, blockID)
		}
		if byUser, ok := ws.editing[blockID]; ok {
			delete(byUser, u.ID)
		}
	}
}

// SetCursor records the user's cursor in a block. Cursors of inactive users
// are dropped.
func (r *Registry) SetCursor(workspaceID, blockID, userID string, position int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return
	}
	if _, active := ws.users[userID]; !active {
		return
	}
	if ws.cursors[blockID] == nil {
		ws.cursors[blockID] = make(map[string]int)
	}
	ws.cursors[blockID][userID] = position
}

// SetEditing flags whether the user is currently editing a block.
func (r *Registry) SetEditing(workspaceID, blockID, userID string, editing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return
	}
	if !editing {
		if byUser, ok := ws.editing[blockID]; ok {
			delete(byUser, userID)
		}
		return
	}
	if _, active := ws.users[userID]; !active {
		return
	}
	if ws.editing[blockID] == nil {
		ws.editing[blockID] = make(map[string]bool)
	}
	ws.editing[blockID][userID] = true
}

// User returns an active user.
func (r *Registry) User(workspaceID, userID string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return User{}, false
	}
	u, ok := ws.users[userID]
	return u, ok
}

// ActiveUsers returns the active users sorted by ID.
func (r *Registry) ActiveUsers(workspaceID string) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return []User{}
	}
	users := make([]User, 0, len(ws.users))
	for _, u := range ws.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// FocusedUsers returns the users focused on a block in focus order.
func (r *Registry) FocusedUsers(workspaceID, blockID string) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return []User{}
	}
	users := make([]User, 0, len(ws.focus[blockID]))
	for _, id := range ws.focus[blockID] {
		if u, ok := ws.users[id]; ok {
			users = append(users, u)
		}
	}
	return users
}

// FocusedBlocks returns blockID -> focused user IDs.
func (r *Registry) FocusedBlocks(workspaceID string) map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string)
	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return out
	}
	for blockID, ids := range ws.focus {
		out[blockID] = append([]string(nil), ids...)
	}
	return out
}

// Cursor returns the user's cursor in a block, if any.
func (r *Registry) Cursor(workspaceID, blockID, userID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return 0, false
	}
	pos, ok := ws.cursors[blockID][userID]
	return pos, ok
}

// Entries lists every user present on a block: focused users first, in focus
// order, followed by users that only have a cursor there.
func (r *Registry) Entries(workspaceID, blockID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return []Entry{}
	}
	return ws.entries(blockID)
}

func (ws *workspace) entries(blockID string) []Entry {
	seen := make(map[string]bool)
	entries := make([]Entry, 0, len(ws.focus[blockID]))
	add := func(id string) {
		u, ok := ws.users[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		e := Entry{BlockID: blockID, User: u, IsEditing: ws.editing[blockID][id]}
		if pos, ok := ws.cursors[blockID][id]; ok {
			p := pos
			e.Cursor = &p
		}
		entries = append(entries, e)
	}

	for _, id := range ws.focus[blockID] {
		add(id)
	}
	rest := make([]string, 0, len(ws.cursors[blockID]))
	for id := range ws.cursors[blockID] {
		rest = append(rest, id)
	}
	sort.Strings(rest)
	for _, id := range rest {
		add(id)
	}
	return entries
}

// Snapshot copies a workspace's presence state.
func (r *Registry) Snapshot(workspaceID string) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{WorkspaceID: workspaceID, Users: []User{}, Blocks: map[string][]Entry{}}
	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return snap
	}
	for _, u := range ws.users {
		snap.Users = append(snap.Users, u)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })

	blocks := make(map[string]bool)
	for id := range ws.focus {
		blocks[id] = true
	}
	for id := range ws.cursors {
		blocks[id] = true
	}
	for id := range blocks {
		if entries := ws.entries(id); len(entries) > 0 {
			snap.Blocks[id] = entries
		}
	}
	return snap
}

// Reset drops all presence for a workspace.
func (r *Registry) Reset(workspaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, workspaceID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
