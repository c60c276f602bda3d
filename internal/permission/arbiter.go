// Package permission implements the request-to-edit handshake for blocks.
//
// The relay runs an Arbiter that remembers who holds each block and which
// requests are waiting for an answer. Clients keep their own Set of blocks they
// believe they may edit and an Inbox of requests addressed to them. Neither
// side enforces a lock: a grant is advisory and never expires.
package permission

import (
	"sync"
	"time"

	"collaborative-workspace/internal/presence"

	"github.com/google/uuid"
)

// EditRequest is a pending ask from a non-holder to edit a block.
type EditRequest struct {
	RequestID   string        `json:"requestId"`
	WorkspaceID string        `json:"-"`
	Requester   presence.User `json:"requester"`
	DocumentID  string        `json:"documentId"`
	BlockID     string        `json:"blockId"`
	Message     string        `json:"message,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Outcome reports what happened to a Request.
type Outcome struct {
	Request EditRequest
	// Granted is set when the block was unowned (or already held by the
	// requester) and the request resolved immediately.
	Granted bool
	// Holder is the user that has to answer a pending request.
	Holder string
}

type blockKey struct {
	workspaceID string
	blockID     string
}

type Arbiter struct {
	mu      sync.Mutex
	holders map[blockKey]string
	pending map[string]EditRequest

	now   func() time.Time
	newID func() string
}

func NewArbiter() *Arbiter {
	return &Arbiter{
		holders: make(map[blockKey]string),
		pending: make(map[string]EditRequest),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Request registers an edit request for a block. An unowned block is handed
// to the requester straight away. Otherwise the request waits for the holder.
// Repeated requests for the same block each get their own request ID.
func (a *Arbiter) Request(workspaceID, documentID, blockID string, requester presence.User, message string) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	req := EditRequest{
		RequestID:   a.newID(),
		WorkspaceID: workspaceID,
		Requester:   requester,
		DocumentID:  documentID,
		BlockID:     blockID,
		Message:     message,
		Timestamp:   a.now().UTC(),
	}

	key := blockKey{workspaceID, blockID}
	holder, held := a.holders[key]
	if !held || holder == requester.ID {
		a.holders[key] = requester.ID
		return Outcome{Request: req, Granted: true, Holder: requester.ID}
	}

	a.pending[req.RequestID] = req
	return Outcome{Request: req, Holder: holder}
}

// Respond resolves a pending request. It returns the request and true only
// when responderID holds the block and the request matches requesterID and
// blockID; anything else, including a second answer to the same request, is
// ignored. Approving hands the block over to the requester.
func (a *Arbiter) Respond(workspaceID, responderID, requestID, requesterID, blockID string, approved bool) (EditRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	req, ok := a.pending[requestID]
	if !ok || req.WorkspaceID != workspaceID {
		return EditRequest{}, false
	}
	if req.Requester.ID != requesterID || req.BlockID != blockID {
		return EditRequest{}, false
	}
	key := blockKey{workspaceID, blockID}
	if holder, held := a.holders[key]; held && holder != responderID {
		return EditRequest{}, false
	}

	delete(a.pending, requestID)
	if approved {
		a.holders[key] = requesterID
	}
	return req, true
}

// Grant hands a block to userID without a request. Only the current holder
// may grant a held block; an unowned block may be granted by anyone.
func (a *Arbiter) Grant(workspaceID, granterID, blockID, userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := blockKey{workspaceID, blockID}
	if holder, held := a.holders[key]; held && holder != granterID {
		return false
	}
	a.holders[key] = userID
	a.dropPendingLocked(func(r EditRequest) bool {
		return r.WorkspaceID == workspaceID && r.BlockID == blockID && r.Requester.ID == userID
	})
	return true
}

// Release drops every hold and pending request of a user in a workspace.
// It returns the blocks that went back to unowned.
func (a *Arbiter) Release(workspaceID, userID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var released []string
	for key, holder := range a.holders {
		if key.workspaceID == workspaceID && holder == userID {
			delete(a.holders, key)
			released = append(released, key.blockID)
		}
	}
	a.dropPendingLocked(func(r EditRequest) bool {
		return r.WorkspaceID == workspaceID && r.Requester.ID == userID
	})
	return released
}

// Holder returns the user currently holding a block.
func (a *Arbiter) Holder(workspaceID, blockID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	holder, ok := a.holders[blockKey{workspaceID, blockID}]
	return holder, ok
}

// Pending returns a pending request by ID.
func (a *Arbiter) Pending(requestID string) (EditRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	req, ok := a.pending[requestID]
	return req, ok
}

// PendingCount is the number of unanswered requests across workspaces.
func (a *Arbiter) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Arbiter) dropPendingLocked(match func(EditRequest) bool) {
	for id, r := range a.pending {
		if match(r) {
			delete(a.pending, id)
		}
	}
}
