// Package session is the client side of the collaboration channel.
//
// A Coordinator owns one connection to the relay for one user. It emits the
// join events for the bound workspace and document, keeps local mirrors of
// presence, edit permissions and block buffers up to date from incoming
// events, and reconnects once after a fixed delay when the connection drops.
// None of its methods return transport errors to the caller except Connect;
// connectivity is reported through Connected and OnConnectionChange.
package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"collaborative-workspace/internal/permission"
	"collaborative-workspace/internal/presence"
	"collaborative-workspace/internal/protocol"
	"collaborative-workspace/internal/textop"

	"github.com/rs/zerolog"
)

const (
	DefaultReconnectDelay = 3 * time.Second
	reconnectDialTimeout  = 10 * time.Second
)

// Identity is who the coordinator connects as. Token is the handshake token
// issued by the identity provider; it is not checked here.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	Token       string
}

type Options struct {
	// URL of the relay's channel endpoint, e.g. ws://localhost:8080/ws.
	URL            string
	ReconnectDelay time.Duration
	Dialer         Dialer
	Logger         zerolog.Logger

	// OnEvent is called for every decoded incoming event after the local
	// mirrors have been updated.
	OnEvent func(protocol.Event)
	// OnConnectionChange is called with the new connectivity flag.
	OnConnectionChange func(connected bool)
}

// Stopper is a pending timer; *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

type Coordinator struct {
	opts      Options
	log       zerolog.Logger
	afterFunc func(time.Duration, func()) Stopper

	// writeMu serializes frames on the current connection.
	writeMu sync.Mutex

	mu          sync.Mutex
	identity    Identity
	workspaceID string
	projectID   string
	documentID  string
	conn        Conn
	gen         uint64
	timer       Stopper
	stopped     bool

	presence    *presence.Registry
	permissions *permission.Set
	inbox       *permission.Inbox
	buffers     map[string]string
	versions    map[string]int64
	editing     map[string]EditState
}

func New(opts Options) *Coordinator {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	return &Coordinator{
		opts: opts,
		log:  opts.Logger.With().Str("component", "session").Logger(),
		afterFunc: func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		},
		presence:    presence.NewRegistry(),
		permissions: permission.NewSet(),
		inbox:       permission.NewInbox(),
		buffers:     make(map[string]string),
		versions:    make(map[string]int64),
		editing:     make(map[string]EditState),
	}
}

// Connect opens the channel as id. It is a no-op without a user ID or when a
// connection is already open. A failed dial schedules a reconnect and is
// also returned.
func (c *Coordinator) Connect(ctx context.Context, id Identity) error {
	if id.UserID == "" {
		c.log.Debug().Msg("no identity, not connecting")
		return nil
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.identity = id
	c.stopped = false
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Coordinator) dial(ctx context.Context) error {
	c.mu.Lock()
	target, err := c.handshakeURLLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	conn, err := c.opts.Dialer.Dial(ctx, target)
	if err != nil {
		c.log.Warn().Err(err).Dur("retry_in", c.opts.ReconnectDelay).Msg("connect failed")
		c.mu.Lock()
		if !c.stopped {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	if c.stopped || c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.gen++
	gen := c.gen
	// rebuilt from the relay's join bootstrap
	c.presence.Reset(c.workspaceID)
	joins := c.joinEventsLocked()
	userID := c.identity.UserID
	c.mu.Unlock()

	c.log.Info().Str("user", userID).Msg("connected")
	c.notify(true)
	for _, ev := range joins {
		c.send(ev)
	}
	go c.readLoop(conn, gen)
	return nil
}

// handshakeURLLocked carries the identity in the query string.
func (c *Coordinator) handshakeURLLocked() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	if c.identity.Token != "" {
		q.Set("token", c.identity.Token)
	}
	if c.identity.DisplayName != "" {
		q.Set("userName", c.identity.DisplayName)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Coordinator) joinEventsLocked() []protocol.Event {
	var evs []protocol.Event
	if c.workspaceID == "" {
		return evs
	}
	evs = append(evs, protocol.JoinWorkspaceEvent{WorkspaceID: c.workspaceID, ProjectID: c.projectID})
	if c.documentID != "" {
		evs = append(evs, protocol.DocumentJoinEvent{BlockID: c.documentID, WorkspaceID: c.workspaceID})
	}
	return evs
}

// scheduleReconnectLocked arms the single reconnect timer.
func (c *Coordinator) scheduleReconnectLocked() {
	if c.timer != nil {
		return
	}
	c.timer = c.afterFunc(c.opts.ReconnectDelay, c.reconnect)
}

func (c *Coordinator) reconnect() {
	c.mu.Lock()
	c.timer = nil
	if c.stopped || c.conn != nil || c.identity.UserID == "" {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconnectDialTimeout)
	defer cancel()
	_ = c.dial(ctx)
}

func (c *Coordinator) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.closed(gen, err)
			return
		}
		ev, err := protocol.Decode(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("dropping frame")
			continue
		}
		c.apply(ev)
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}

// closed handles the end of connection gen. Closures caused by Disconnect
// or by an older connection are ignored.
func (c *Coordinator) closed(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	if !c.stopped {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	conn.Close()
	c.log.Warn().Err(err).Dur("retry_in", c.opts.ReconnectDelay).Msg("connection lost")
	c.notify(false)
}

// Disconnect cancels a pending reconnect, closes the channel and clears the
// presence mirror. Edit permissions survive; they are never revoked.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.gen++
	c.presence.Reset(c.workspaceID)
	var leave protocol.Event
	if conn != nil && c.documentID != "" {
		leave = protocol.DocumentLeaveEvent{BlockID: c.documentID, WorkspaceID: c.workspaceID}
	}
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if leave != nil {
		c.write(conn, leave)
	}
	conn.Close()
	c.log.Info().Msg("disconnected")
	c.notify(false)
}

// SetWorkspace binds the coordinator to a workspace and, when connected,
// joins it. Moving to another workspace clears the presence mirror and the
// document binding.
func (c *Coordinator) SetWorkspace(workspaceID, projectID string) {
	c.mu.Lock()
	if workspaceID == c.workspaceID && projectID == c.projectID {
		c.mu.Unlock()
		return
	}
	if workspaceID != c.workspaceID {
		c.presence.Reset(c.workspaceID)
		c.documentID = ""
	}
	c.workspaceID = workspaceID
	c.projectID = projectID
	c.mu.Unlock()

	if workspaceID != "" {
		c.send(protocol.JoinWorkspaceEvent{WorkspaceID: workspaceID, ProjectID: projectID})
	}
}

// SetDocument binds the coordinator to a document of the current workspace,
// leaving the previous one.
func (c *Coordinator) SetDocument(documentID string) {
	c.mu.Lock()
	prev := c.documentID
	ws := c.workspaceID
	if prev == documentID {
		c.mu.Unlock()
		return
	}
	c.documentID = documentID
	c.mu.Unlock()

	if ws == "" {
		return
	}
	if prev != "" {
		c.send(protocol.DocumentLeaveEvent{BlockID: prev, WorkspaceID: ws})
	}
	if documentID != "" {
		c.send(protocol.DocumentJoinEvent{BlockID: documentID, WorkspaceID: ws})
	}
}

// send writes ev on the current connection. Without one the event is
// dropped.
func (c *Coordinator) send(ev protocol.Event) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	return c.write(conn, ev)
}

func (c *Coordinator) write(conn Conn, ev protocol.Event) bool {
	frame, err := protocol.Encode(ev)
	if err != nil {
		c.log.Error().Err(err).Str("event", string(ev.EventType())).Msg("encode event")
		return false
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(frame); err != nil {
		c.log.Debug().Err(err).Str("event", string(ev.EventType())).Msg("write failed")
		return false
	}
	return true
}

func (c *Coordinator) notify(connected bool) {
	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(connected)
	}
}

// apply folds an incoming event into the local mirrors.
func (c *Coordinator) apply(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.workspaceID
	switch e := ev.(type) {
	case protocol.UserJoinedEvent:
		c.presence.UserJoined(ws, e.User)
	case protocol.UserLeftEvent:
		c.presence.UserLeft(ws, e.UserID)
		c.inbox.RemoveFrom(e.UserID)
	case protocol.BlockFocusChangedEvent:
		c.presence.BlockFocusChanged(ws, e.BlockID, e.User, e.FocusType)
	case protocol.CursorUpdatedEvent:
		c.presence.SetCursor(ws, e.BlockID, e.UserID, e.Position)
	case protocol.DocumentStateEvent:
		for _, u := range e.ActiveUsers {
			c.presence.UserJoined(ws, presence.User{ID: u.ID, Name: u.Name})
		}
		for _, b := range e.Blocks {
			c.buffers[b.BlockID] = b.Content
			c.versions[b.BlockID] = b.Version
		}
	case protocol.ContentUpdatedEvent:
		if len(e.Operations) > 0 {
			c.buffers[e.BlockID] = textop.ApplyAll(c.buffers[e.BlockID], e.Operations)
		} else {
			c.buffers[e.BlockID] = e.Content
		}
		c.versions[e.BlockID] = e.Version
	case protocol.EditRequestEvent:
		c.inbox.Add(permission.EditRequest{
			RequestID:   e.RequestID,
			WorkspaceID: ws,
			Requester:   e.Requester,
			DocumentID:  e.DocumentID,
			BlockID:     e.BlockID,
			Message:     e.Message,
			Timestamp:   e.Timestamp,
		})
	case protocol.EditPermissionResponseEvent:
		if e.Approved && e.RequesterID == c.identity.UserID {
			c.permissions.Grant(e.BlockID)
		}
	case protocol.EditorGrantedEvent:
		c.permissions.Grant(e.BlockID)
	}
}

func (c *Coordinator) self() presence.User {
	return presence.User{
		ID:    c.identity.UserID,
		Name:  c.identity.DisplayName,
		Email: c.identity.Email,
		Color: presence.ColorFor(c.identity.UserID),
	}
}

// Edit applies ops to the local buffer of a block, sends them to peers and
// returns the new buffer. The local version moves ahead by one, matching the
// version the relay assigns when no other edit lands first.
func (c *Coordinator) Edit(blockID string, ops ...textop.Operation) string {
	c.mu.Lock()
	content := textop.ApplyAll(c.buffers[blockID], ops)
	c.buffers[blockID] = content
	ev := protocol.ContentUpdateEvent{
		DocumentID:  c.documentID,
		BlockID:     blockID,
		Operations:  ops,
		Version:     c.versions[blockID],
		WorkspaceID: c.workspaceID,
	}
	c.versions[blockID]++
	c.mu.Unlock()

	c.send(ev)
	return content
}

// Format applies a formatting shortcut to the selection [start, end) of a
// block.
func (c *Coordinator) Format(blockID string, start, end int, style textop.Style) string {
	c.mu.Lock()
	ops := textop.Format(c.buffers[blockID], start, end, style)
	c.mu.Unlock()
	return c.Edit(blockID, ops...)
}

func (c *Coordinator) FocusBlock(blockID string) {
	c.focus(blockID, presence.Focus)
}

// BlurBlock also ends editing of the block.
func (c *Coordinator) BlurBlock(blockID string) {
	c.mu.Lock()
	delete(c.editing, blockID)
	c.mu.Unlock()
	c.focus(blockID, presence.Blur)
}

func (c *Coordinator) focus(blockID string, ft presence.FocusType) {
	c.mu.Lock()
	ws := c.workspaceID
	doc := c.documentID
	c.presence.UserJoined(ws, c.self())
	c.presence.BlockFocusChanged(ws, blockID, c.self(), ft)
	c.mu.Unlock()

	c.send(protocol.BlockFocusEvent{DocumentID: doc, BlockID: blockID, WorkspaceID: ws, FocusType: ft})
}

func (c *Coordinator) UpdateCursor(blockID string, position int) {
	if position < 0 {
		position = 0
	}
	c.mu.Lock()
	ws := c.workspaceID
	c.presence.SetCursor(ws, blockID, c.identity.UserID, position)
	c.mu.Unlock()

	c.send(protocol.CursorUpdateEvent{WorkspaceID: ws, BlockID: blockID, Position: position})
}

// RequestEditPermission asks the holder of a block for edit access. The
// answer arrives asynchronously.
func (c *Coordinator) RequestEditPermission(blockID, message string) {
	c.mu.Lock()
	ev := protocol.RequestEditEvent{
		DocumentID:  c.documentID,
		BlockID:     blockID,
		WorkspaceID: c.workspaceID,
		Message:     message,
	}
	c.mu.Unlock()

	c.send(ev)
}

// RespondToEditRequest answers a request from the inbox. Answering a request
// that is no longer pending does nothing and reports false.
func (c *Coordinator) RespondToEditRequest(requestID, requesterID, blockID string, approved bool) bool {
	c.mu.Lock()
	req, ok := c.inbox.Remove(requestID)
	ws := c.workspaceID
	c.mu.Unlock()
	if !ok {
		return false
	}
	if requesterID == "" {
		requesterID = req.Requester.ID
	}
	if blockID == "" {
		blockID = req.BlockID
	}

	c.send(protocol.EditPermissionResponseEvent{
		RequestID:   requestID,
		RequesterID: requesterID,
		DocumentID:  req.DocumentID,
		BlockID:     blockID,
		Approved:    approved,
		WorkspaceID: ws,
	})
	return true
}

// GrantEdit hands a block this user holds to another user without a
// request.
func (c *Coordinator) GrantEdit(blockID, userID string) {
	c.mu.Lock()
	ev := protocol.GrantEditEvent{
		WorkspaceID: c.workspaceID,
		DocumentID:  c.documentID,
		BlockID:     blockID,
		UserID:      userID,
	}
	c.mu.Unlock()

	c.send(ev)
}

func (c *Coordinator) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Coordinator) ActiveUsers() []presence.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.ActiveUsers(c.workspaceID)
}

func (c *Coordinator) FocusedUsers(blockID string) []presence.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.FocusedUsers(c.workspaceID, blockID)
}

// Entries lists who is on a block, with cursors and editing flags.
func (c *Coordinator) Entries(blockID string) []presence.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.Entries(c.workspaceID, blockID)
}

func (c *Coordinator) HasEditPermission(blockID string) bool {
	return c.permissions.Has(blockID)
}

func (c *Coordinator) PendingRequests() []permission.EditRequest {
	return c.inbox.List()
}

func (c *Coordinator) Content(blockID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers[blockID]
}

func (c *Coordinator) Version(blockID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[blockID]
}
