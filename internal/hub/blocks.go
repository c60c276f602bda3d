package hub

import (
	"math"
	"sort"
	"sync"

	"collaborative-workspace/internal/block"
	"collaborative-workspace/internal/protocol"
	"collaborative-workspace/internal/textop"
)

type docKey struct {
	workspaceID string
	documentID  string
}

type blockState struct {
	content   string
	version   int64
	blockType string
}

type document struct {
	loaded bool
	blocks map[string]*blockState
}

// blockTable is the relay's in-memory copy of block content. It is the
// source of document-state snapshots; the database only sees write-behind
// copies of it.
type blockTable struct {
	mu   sync.Mutex
	docs map[docKey]*document
}

func newBlockTable() *blockTable {
	return &blockTable{docs: make(map[docKey]*document)}
}

func (t *blockTable) docLocked(key docKey) *document {
	d, ok := t.docs[key]
	if !ok {
		d = &document{blocks: make(map[string]*blockState)}
		t.docs[key] = d
	}
	return d
}

func (t *blockTable) isLoaded(workspaceID, documentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.docs[docKey{workspaceID, documentID}]
	return ok && d.loaded
}

// merge marks the document loaded and adds persisted blocks that are newer
// than what is already in memory.
func (t *blockTable) merge(workspaceID, documentID string, persisted []block.Block) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.docLocked(docKey{workspaceID, documentID})
	d.loaded = true
	for _, b := range persisted {
		cur, ok := d.blocks[b.BlockID]
		if ok && cur.version >= b.Version {
			continue
		}
		d.blocks[b.BlockID] = &blockState{content: b.Content, version: b.Version, blockType: b.BlockType}
	}
}

// apply replays ops onto a block and bumps its version past both the stored
// and the incoming version. Stale versions are still applied. The version
// never decreases; an incoming version at the int64 ceiling is ignored.
func (t *blockTable) apply(workspaceID, documentID, blockID string, ops []textop.Operation, incoming int64) blockState {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.docLocked(docKey{workspaceID, documentID})
	st, ok := d.blocks[blockID]
	if !ok {
		st = &blockState{blockType: block.DefaultType}
		d.blocks[blockID] = st
	}
	st.content = textop.ApplyAll(st.content, ops)
	if st.version < math.MaxInt64 {
		next := st.version + 1
		if incoming >= st.version && incoming < math.MaxInt64 {
			next = incoming + 1
		}
		st.version = next
	}
	return *st
}

// overwrite takes content computed by another relay node.
func (t *blockTable) overwrite(workspaceID, documentID, blockID, content string, version int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.docLocked(docKey{workspaceID, documentID})
	st, ok := d.blocks[blockID]
	if !ok {
		d.blocks[blockID] = &blockState{content: content, version: version, blockType: block.DefaultType}
		return
	}
	if version >= st.version {
		st.content = content
		st.version = version
	}
}

// snapshot lists the document's blocks ordered by block ID.
func (t *blockTable) snapshot(workspaceID, documentID string) []protocol.BlockState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := []protocol.BlockState{}
	d, ok := t.docs[docKey{workspaceID, documentID}]
	if !ok {
		return out
	}
	for id, st := range d.blocks {
		out = append(out, protocol.BlockState{
			BlockID:   id,
			Content:   st.content,
			Version:   st.version,
			BlockType: st.blockType,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockID < out[j].BlockID })
	return out
}
