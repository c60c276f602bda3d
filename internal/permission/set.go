package permission

import (
	"sort"
	"sync"
)

// Set is a client's belief of which blocks it may edit.
type Set struct {
	mu     sync.RWMutex
	blocks map[string]struct{}
}

func NewSet() *Set {
	return &Set{blocks: make(map[string]struct{})}
}

func (s *Set) Grant(blockID string) {
	if blockID == "" {
		return
	}
	s.mu.Lock()
	s.blocks[blockID] = struct{}{}
	s.mu.Unlock()
}

func (s *Set) Has(blockID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[blockID]
	return ok
}

// Blocks returns the granted block IDs in sorted order.
func (s *Set) Blocks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.blocks))
	for id := range s.blocks {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Set) Clear() {
	s.mu.Lock()
	s.blocks = make(map[string]struct{})
	s.mu.Unlock()
}

// Inbox holds edit requests waiting for this client's answer, in arrival
// order.
type Inbox struct {
	mu       sync.Mutex
	requests []EditRequest
}

func NewInbox() *Inbox {
	return &Inbox{}
}

// Add queues a request. Requests are not de-duplicated.
func (i *Inbox) Add(req EditRequest) {
	i.mu.Lock()
	i.requests = append(i.requests, req)
	i.mu.Unlock()
}

// Remove drops a request and reports whether it was queued.
func (i *Inbox) Remove(requestID string) (EditRequest, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for idx, r := range i.requests {
		if r.RequestID == requestID {
			i.requests = append(i.requests[:idx], i.requests[idx+1:]...)
			return r, true
		}
	}
	return EditRequest{}, false
}

// RemoveFrom drops every request from a requester, used when they leave.
func (i *Inbox) RemoveFrom(requesterID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	kept := i.requests[:0]
	for _, r := range i.requests {
		if r.Requester.ID != requesterID {
			kept = append(kept, r)
		}
	}
	i.requests = kept
}

func (i *Inbox) List() []EditRequest {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]EditRequest(nil), i.requests...)
}
