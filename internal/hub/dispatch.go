package hub

import (
	"collaborative-workspace/internal/presence"
	"collaborative-workspace/internal/protocol"
)

func (h *Hub) dispatch(c *Client, ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.JoinWorkspaceEvent:
		h.joinWorkspace(c, e.WorkspaceID)
	case protocol.DocumentJoinEvent:
		h.joinDocument(c, e.WorkspaceID, e.BlockID)
	case protocol.DocumentLeaveEvent:
		h.leaveDocument(c, e)
	case protocol.ContentUpdateEvent:
		h.contentUpdate(c, e)
	case protocol.BlockFocusEvent:
		h.blockFocus(c, e)
	case protocol.CursorUpdateEvent:
		h.cursorUpdate(c, e)
	case protocol.RequestEditEvent:
		h.requestEdit(c, e)
	case protocol.EditPermissionResponseEvent:
		h.respondEdit(c, e)
	case protocol.GrantEditEvent:
		h.grantEdit(c, e)
	default:
		// peer->client events sent by a client are ignored
		h.metrics.RejectedEventsTotal.WithLabelValues("direction").Inc()
	}
}

// bound reports whether c is joined to workspaceID.
func (h *Hub) bound(c *Client, workspaceID string) bool {
	ws, _ := h.binding(c)
	if ws == "" || ws != workspaceID {
		h.metrics.RejectedEventsTotal.WithLabelValues("unbound").Inc()
		return false
	}
	return true
}

func (h *Hub) joinWorkspace(c *Client, workspaceID string) {
	prev, _ := h.binding(c)
	if prev == workspaceID {
		h.bootstrapPresence(c, workspaceID)
		return
	}

	h.bind(c, workspaceID, "")
	if prev != "" {
		h.leaveWorkspace(c, prev)
	}

	user := h.registry.UserJoined(workspaceID, c.user)
	h.broadcast(workspaceID, protocol.UserJoinedEvent{UserID: user.ID, User: user}, c, true)
	h.bootstrapPresence(c, workspaceID)
	h.log.Debug().Str("workspace", workspaceID).Str("user", user.ID).Msg("joined workspace")
}

// bootstrapPresence replays the workspace's presence to a newly bound
// connection as the same events peers would have seen.
func (h *Hub) bootstrapPresence(c *Client, workspaceID string) {
	for _, u := range h.registry.ActiveUsers(workspaceID) {
		h.send(c, protocol.UserJoinedEvent{UserID: u.ID, User: u})
	}
	for blockID, ids := range h.registry.FocusedBlocks(workspaceID) {
		for _, id := range ids {
			u, ok := h.registry.User(workspaceID, id)
			if !ok {
				continue
			}
			h.send(c, protocol.BlockFocusChangedEvent{BlockID: blockID, UserID: id, User: u, FocusType: presence.Focus})
		}
	}
}

// joinDocument binds c to a document and answers with its state. A join for
// another workspace implies joining that workspace first.
func (h *Hub) joinDocument(c *Client, workspaceID, documentID string) {
	if ws, _ := h.binding(c); ws != workspaceID {
		h.joinWorkspace(c, workspaceID)
	}
	h.bind(c, workspaceID, documentID)
	h.loadDocument(workspaceID, documentID)

	blocks := h.blocks.snapshot(workspaceID, documentID)
	state := protocol.DocumentStateEvent{
		DocumentID:  documentID,
		ActiveUsers: h.activeUsers(workspaceID, blocks),
		Blocks:      blocks,
	}
	if len(blocks) > 0 {
		state.Content = blocks[0].Content
		state.Version = blocks[0].Version
	}
	h.send(c, state)
}

// activeUsers lists the workspace's users with their cursor in the first of
// the given blocks that has one.
func (h *Hub) activeUsers(workspaceID string, blocks []protocol.BlockState) []protocol.ActiveUser {
	users := h.registry.ActiveUsers(workspaceID)
	out := make([]protocol.ActiveUser, 0, len(users))
	for _, u := range users {
		au := protocol.ActiveUser{ID: u.ID, Name: u.Name, Color: u.Color}
		for _, b := range blocks {
			if pos, ok := h.registry.Cursor(workspaceID, b.BlockID, u.ID); ok {
				au.Cursor = &pos
				break
			}
		}
		out = append(out, au)
	}
	return out
}

func (h *Hub) leaveDocument(c *Client, e protocol.DocumentLeaveEvent) {
	ws, doc := h.binding(c)
	if ws == e.WorkspaceID && doc == e.BlockID {
		h.bind(c, ws, "")
	}
}

func (h *Hub) contentUpdate(c *Client, e protocol.ContentUpdateEvent) {
	if !h.bound(c, e.WorkspaceID) {
		return
	}

	h.contentMu.Lock()
	st := h.blocks.apply(e.WorkspaceID, e.DocumentID, e.BlockID, e.Operations, e.Version)
	h.broadcast(e.WorkspaceID, protocol.ContentUpdatedEvent{
		DocumentID: e.DocumentID,
		BlockID:    e.BlockID,
		Content:    st.content,
		Version:    st.version,
		Operations: e.Operations,
		UserID:     c.user.ID,
	}, c, true)
	h.contentMu.Unlock()

	h.metrics.OperationsAppliedTotal.Add(float64(len(e.Operations)))
	h.persist(e.WorkspaceID, e.DocumentID, e.BlockID, st)
}

func (h *Hub) blockFocus(c *Client, e protocol.BlockFocusEvent) {
	if !h.bound(c, e.WorkspaceID) {
		return
	}
	user, ok := h.registry.User(e.WorkspaceID, c.user.ID)
	if !ok {
		user = h.registry.UserJoined(e.WorkspaceID, c.user)
	}
	h.registry.BlockFocusChanged(e.WorkspaceID, e.BlockID, user, e.FocusType)
	h.broadcast(e.WorkspaceID, protocol.BlockFocusChangedEvent{
		BlockID:   e.BlockID,
		UserID:    user.ID,
		User:      user,
		FocusType: e.FocusType,
	}, c, true)
}

func (h *Hub) cursorUpdate(c *Client, e protocol.CursorUpdateEvent) {
	if !h.bound(c, e.WorkspaceID) {
		return
	}
	h.registry.SetCursor(e.WorkspaceID, e.BlockID, c.user.ID, e.Position)
	h.broadcast(e.WorkspaceID, protocol.CursorUpdatedEvent{
		BlockID:  e.BlockID,
		UserID:   c.user.ID,
		Position: e.Position,
	}, c, true)
}

func (h *Hub) requestEdit(c *Client, e protocol.RequestEditEvent) {
	if !h.bound(c, e.WorkspaceID) {
		return
	}
	requester, ok := h.registry.User(e.WorkspaceID, c.user.ID)
	if !ok {
		requester = presence.User{ID: c.user.ID, Name: c.user.Name, Email: c.user.Email, Color: presence.ColorFor(c.user.ID)}
	}

	out := h.arbiter.Request(e.WorkspaceID, e.DocumentID, e.BlockID, requester, e.Message)
	if out.Granted {
		h.metrics.EditRequestsTotal.WithLabelValues("granted").Inc()
		h.handOver(e.WorkspaceID, e.BlockID, "", requester.ID)
		return
	}

	h.metrics.EditRequestsTotal.WithLabelValues("pending").Inc()
	req := out.Request
	h.sendToUser(e.WorkspaceID, out.Holder, protocol.EditRequestEvent{
		RequestID:  req.RequestID,
		Requester:  req.Requester,
		DocumentID: req.DocumentID,
		BlockID:    req.BlockID,
		Message:    req.Message,
		Timestamp:  req.Timestamp,
	})
}

func (h *Hub) respondEdit(c *Client, e protocol.EditPermissionResponseEvent) {
	if !h.bound(c, e.WorkspaceID) {
		return
	}
	previous, _ := h.arbiter.Holder(e.WorkspaceID, e.BlockID)
	req, ok := h.arbiter.Respond(e.WorkspaceID, c.user.ID, e.RequestID, e.RequesterID, e.BlockID, e.Approved)
	if !ok {
		h.metrics.EditRequestsTotal.WithLabelValues("ignored").Inc()
		return
	}

	h.sendToUser(e.WorkspaceID, req.Requester.ID, protocol.EditPermissionResponseEvent{
		RequestID:   req.RequestID,
		RequesterID: req.Requester.ID,
		DocumentID:  req.DocumentID,
		BlockID:     req.BlockID,
		Approved:    e.Approved,
		WorkspaceID: e.WorkspaceID,
	})
	if !e.Approved {
		h.metrics.EditRequestsTotal.WithLabelValues("denied").Inc()
		return
	}
	h.metrics.EditRequestsTotal.WithLabelValues("approved").Inc()
	h.handOver(e.WorkspaceID, e.BlockID, previous, req.Requester.ID)
}

func (h *Hub) grantEdit(c *Client, e protocol.GrantEditEvent) {
	if !h.bound(c, e.WorkspaceID) {
		return
	}
	previous, _ := h.arbiter.Holder(e.WorkspaceID, e.BlockID)
	if !h.arbiter.Grant(e.WorkspaceID, c.user.ID, e.BlockID, e.UserID) {
		h.metrics.EditRequestsTotal.WithLabelValues("ignored").Inc()
		return
	}
	h.metrics.EditRequestsTotal.WithLabelValues("granted").Inc()
	h.handOver(e.WorkspaceID, e.BlockID, previous, e.UserID)
}

// handOver marks the new holder as editing and tells them. The previous
// holder keeps its local permission; grants are never revoked.
func (h *Hub) handOver(workspaceID, blockID, previous, holder string) {
	if previous != "" && previous != holder {
		h.registry.SetEditing(workspaceID, blockID, previous, false)
	}
	h.registry.SetEditing(workspaceID, blockID, holder, true)
	h.sendToUser(workspaceID, holder, protocol.EditorGrantedEvent{BlockID: blockID})
}
