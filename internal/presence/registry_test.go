package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ws = "ws-1"

func alice() User { return User{ID: "u-alice", Name: "Alice", Email: "alice@example.com"} }
func bob() User   { return User{ID: "u-bob", Name: "Bob", Email: "bob@example.com"} }

// assertConsistent checks that every focused user is also active
func assertConsistent(t *testing.T, r *Registry, workspaceID string) {
	t.Helper()
	active := make(map[string]bool)
	for _, u := range r.ActiveUsers(workspaceID) {
		active[u.ID] = true
	}
	for blockID, ids := range r.FocusedBlocks(workspaceID) {
		for _, id := range ids {
			assert.Truef(t, active[id], "user %s focused on %s but not active", id, blockID)
		}
	}
}

func TestColorFor_Deterministic(t *testing.T) {
	first := ColorFor("u-alice")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ColorFor("u-alice"))
	}
	assert.Contains(t, Palette[:], first)

	r1, r2 := NewRegistry(), NewRegistry()
	a1 := r1.UserJoined(ws, alice())
	a2 := r2.UserJoined("other", alice())
	assert.Equal(t, a1.Color, a2.Color)
	assert.Equal(t, first, a1.Color)
}

func TestColorFor_UsesWholePalette(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		seen[ColorFor(fmt.Sprintf("user-%d", i))] = true
	}
	assert.Len(t, seen, len(Palette))
}

func TestUserJoined_ReplacesStaleEntry(t *testing.T) {
	r := NewRegistry()
	r.UserJoined(ws, alice())

	renamed := alice()
	renamed.Name = "Alice Cooper"
	r.UserJoined(ws, renamed)

	users := r.ActiveUsers(ws)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice Cooper", users[0].Name)
}

func TestUserJoined_FallsBackToEmail(t *testing.T) {
	r := NewRegistry()
	u := r.UserJoined(ws, User{ID: "u-1", Email: "one@example.com"})
	assert.Equal(t, "one@example.com", u.Name)
}

func TestUserJoined_IgnoresEmptyID(t *testing.T) {
	r := NewRegistry()
	r.UserJoined(ws, User{Name: "nobody"})
	assert.Empty(t, r.ActiveUsers(ws))
}

func TestBlockFocusChanged(t *testing.T) {
	r := NewRegistry()
	r.UserJoined(ws, alice())
	r.UserJoined(ws, bob())

	r.BlockFocusChanged(ws, "b1", alice(), Focus)
	r.BlockFocusChanged(ws, "b1", alice(), Focus)
	r.BlockFocusChanged(ws, "b1", bob(), Focus)
	r.BlockFocusChanged(ws, "b2", alice(), Focus)

	focused := r.FocusedUsers(ws, "b1")
	require.Len(t, focused, 2)
	assert.Equal(t, "u-alice", focused[0].ID)
	assert.Equal(t, "u-bob", focused[1].ID)

	r.BlockFocusChanged(ws, "b1", alice(), Blur)
	assert.Equal(t, []string{"u-bob"}, r.FocusedBlocks(ws)["b1"])
	assert.Equal(t, []string{"u-alice"}, r.FocusedBlocks(ws)["b2"], "blur touches only its block")

	r.BlockFocusChanged(ws, "b1", bob(), "hover")
	assert.Equal(t, []string{"u-bob"}, r.FocusedBlocks(ws)["b1"])
}

func TestBlockFocusChanged_FocusMarksUserActive(t *testing.T) {
	r := NewRegistry()
	r.BlockFocusChanged(ws, "b1", bob(), Focus)

	u, ok := r.User(ws, "u-bob")
	require.True(t, ok)
	assert.Equal(t, ColorFor("u-bob"), u.Color)
	assertConsistent(t, r, ws)
}

func TestBlur_UnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() {
		r.BlockFocusChanged("missing", "b1", alice(), Blur)
		r.BlockFocusChanged(ws, "missing", alice(), Blur)
	})
	assert.Empty(t, r.FocusedBlocks(ws))
}

// TestUserLeft_Idempotent tests that a second leave changes nothing
func TestUserLeft_Idempotent(t *testing.T) {
	r := NewRegistry()
	r.UserJoined(ws, alice())
	r.UserJoined(ws, bob())
	r.BlockFocusChanged(ws, "b1", alice(), Focus)
	r.BlockFocusChanged(ws, "b1", bob(), Focus)
	r.BlockFocusChanged(ws, "b2", alice(), Focus)

	assert.True(t, r.UserLeft(ws, "u-alice"))
	afterFirst := r.Snapshot(ws)

	assert.False(t, r.UserLeft(ws, "u-alice"))
	assert.Equal(t, afterFirst, r.Snapshot(ws))

	assert.Equal(t, map[string][]string{"b1": {"u-bob"}}, r.FocusedBlocks(ws))
	assertConsistent(t, r, ws)
}

func TestUserLeft_UnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.UserLeft("nowhere", "ghost"))
	r.UserJoined(ws, alice())
	assert.False(t, r.UserLeft(ws, "ghost"))
	assert.Len(t, r.ActiveUsers(ws), 1)
}

func TestJoinThenLeave_ReturnsToEmpty(t *testing.T) {
	r := NewRegistry()
	r.UserJoined(ws, alice())
	r.BlockFocusChanged(ws, "b1", alice(), Focus)
	r.SetCursor(ws, "b1", "u-alice", 4)
	r.SetEditing(ws, "b1", "u-alice", true)

	r.UserLeft(ws, "u-alice")

	assert.Equal(t, Snapshot{WorkspaceID: ws, Users: []User{}, Blocks: map[string][]Entry{}}, r.Snapshot(ws))
	_, ok := r.Cursor(ws, "b1", "u-alice")
	assert.False(t, ok)
}

func TestEntries(t *testing.T) {
	r := NewRegistry()
	r.UserJoined(ws, alice())
	r.UserJoined(ws, bob())
	r.BlockFocusChanged(ws, "b1", alice(), Focus)
	r.SetEditing(ws, "b1", "u-alice", true)
	r.SetCursor(ws, "b1", "u-bob", 7)
	r.SetCursor(ws, "b1", "ghost", 1)

	entries := r.Entries(ws, "b1")
	require.Len(t, entries, 2)

	assert.Equal(t, "u-alice", entries[0].User.ID)
	assert.True(t, entries[0].IsEditing)
	assert.Nil(t, entries[0].Cursor)

	assert.Equal(t, "u-bob", entries[1].User.ID)
	assert.False(t, entries[1].IsEditing)
	require.NotNil(t, entries[1].Cursor)
	assert.Equal(t, 7, *entries[1].Cursor)

	r.BlockFocusChanged(ws, "b1", alice(), Blur)
	entries = r.Entries(ws, "b1")
	require.Len(t, entries, 1)
	assert.Equal(t, "u-bob", entries[0].User.ID)
}

func TestReset(t *testing.T) {
	r := NewRegistry()
	r.UserJoined(ws, alice())
	r.UserJoined("ws-2", bob())

	r.Reset(ws)

	assert.Empty(t, r.ActiveUsers(ws))
	assert.Len(t, r.ActiveUsers("ws-2"), 1)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := User{ID: fmt.Sprintf("u-%d", i%5)}
			r.UserJoined(ws, u)
			r.BlockFocusChanged(ws, fmt.Sprintf("b%d", i%3), u, Focus)
			r.SetCursor(ws, "b0", u.ID, i)
			if i%2 == 0 {
				r.UserLeft(ws, u.ID)
			}
			_ = r.Snapshot(ws)
		}(i)
	}
	wg.Wait()
	assertConsistent(t, r, ws)
}
