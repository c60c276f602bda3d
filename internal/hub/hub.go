// Package hub is the relay side of the collaboration channel. It owns the
// shared presence registry, the edit-permission arbiter and the in-memory
// block table, and fans events out to every connection bound to a workspace.
//
// Each connection's frames are handled in order on that connection's read
// goroutine. There is no cross-connection ordering beyond what the block
// table lock gives content updates on this node.
package hub

import (
	"context"
	"sync"
	"time"

	"collaborative-workspace/internal/block"
	"collaborative-workspace/internal/observability"
	"collaborative-workspace/internal/permission"
	"collaborative-workspace/internal/presence"
	"collaborative-workspace/internal/protocol"
	"collaborative-workspace/internal/worker"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// BlockStore is the durable side of the block table.
type BlockStore interface {
	DocumentBlocks(ctx context.Context, workspaceID, documentID string) ([]block.Block, error)
	SaveBlock(ctx context.Context, b *block.Block) error
}

// Submitter queues background work; *worker.WorkerPool satisfies it.
type Submitter interface {
	Submit(t worker.Task) bool
}

// Relay forwards frames to other relay nodes.
type Relay interface {
	Publish(ctx context.Context, msg protocol.Relayed) error
}

type Options struct {
	Store   BlockStore
	Pool    Submitter
	Relay   Relay
	NodeID  string
	Metrics *observability.Metrics
	Logger  zerolog.Logger

	MaxMessageBytes int64
	RateLimit       float64
	RateBurst       int
	SendBuffer      int
	LoadTimeout     time.Duration
	AllowedOrigins  []string
}

const (
	defaultMaxMessageBytes = 64 * 1024
	defaultRateLimit       = 50
	defaultRateBurst       = 100
	defaultSendBuffer      = 256
	defaultLoadTimeout     = 3 * time.Second
)

type Hub struct {
	opts     Options
	log      zerolog.Logger
	metrics  *observability.Metrics
	validate *validator.Validate

	registry *presence.Registry
	arbiter  *permission.Arbiter
	blocks   *blockTable
	loads    singleflight.Group

	// contentMu orders apply+fan-out of content updates on this node.
	contentMu sync.Mutex

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func New(opts Options) *Hub {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = defaultMaxMessageBytes
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaultRateBurst
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.NodeID == "" {
		opts.NodeID = uuid.NewString()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	return &Hub{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "hub").Logger(),
		metrics:  opts.Metrics,
		validate: validator.New(),
		registry: presence.NewRegistry(),
		arbiter:  permission.NewArbiter(),
		blocks:   newBlockTable(),
		clients:  make(map[*Client]struct{}),
	}
}

func (h *Hub) Registry() *presence.Registry { return h.registry }
func (h *Hub) Arbiter() *permission.Arbiter { return h.arbiter }

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ConnectionsActive.Inc()
}

// unregister drops a connection and, if it was the user's last one in its
// workspace, removes the user from presence and releases their holds.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	workspaceID := c.workspaceID
	h.mu.Unlock()

	h.metrics.ConnectionsActive.Dec()
	c.close()
	if workspaceID != "" {
		h.leaveWorkspace(c, workspaceID)
	}
}

// bind moves c into a workspace and document. It returns the previous
// workspace.
func (h *Hub) bind(c *Client, workspaceID, documentID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := c.workspaceID
	c.workspaceID = workspaceID
	c.documentID = documentID
	return prev
}

func (h *Hub) binding(c *Client) (string, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.workspaceID, c.documentID
}

// hasOtherConnection reports whether userID has a connection other than
// except bound to workspaceID.
func (h *Hub) hasOtherConnection(workspaceID, userID string, except *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c != except && c.user.ID == userID && c.workspaceID == workspaceID {
			return true
		}
	}
	return false
}

func (h *Hub) leaveWorkspace(c *Client, workspaceID string) {
	if h.hasOtherConnection(workspaceID, c.user.ID, c) {
		return
	}
	released := h.arbiter.Release(workspaceID, c.user.ID)
	if h.registry.UserLeft(workspaceID, c.user.ID) || len(released) > 0 {
		h.log.Debug().Str("workspace", workspaceID).Str("user", c.user.ID).Strs("released", released).Msg("user left")
	}
	h.broadcast(workspaceID, protocol.UserLeftEvent{UserID: c.user.ID}, nil, true)
}

// localTargets collects connections in a workspace. A non-empty userID
// narrows to that user; except is skipped.
func (h *Hub) localTargets(workspaceID, userID string, except *Client) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c == except || c.workspaceID != workspaceID {
			continue
		}
		if userID != "" && c.user.ID != userID {
			continue
		}
		targets = append(targets, c)
	}
	return targets
}

func (h *Hub) encode(ev protocol.Event) ([]byte, bool) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(ev.EventType())).Msg("encode event")
		return nil, false
	}
	h.metrics.EventsTotal.WithLabelValues(string(ev.EventType()), observability.Outbound).Inc()
	return frame, true
}

// send writes one event to one connection.
func (h *Hub) send(c *Client, ev protocol.Event) {
	if frame, ok := h.encode(ev); ok {
		c.enqueue(frame)
	}
}

// broadcast sends ev to every connection in the workspace except one, and
// to other nodes when relay is set.
func (h *Hub) broadcast(workspaceID string, ev protocol.Event, except *Client, relay bool) {
	frame, ok := h.encode(ev)
	if !ok {
		return
	}
	for _, c := range h.localTargets(workspaceID, "", except) {
		c.enqueue(frame)
	}
	if relay {
		h.publish(protocol.Relayed{WorkspaceID: workspaceID, Frame: frame})
	}
}

// sendToUser delivers ev to every connection of a user in a workspace,
// here and on other nodes.
func (h *Hub) sendToUser(workspaceID, userID string, ev protocol.Event) {
	frame, ok := h.encode(ev)
	if !ok {
		return
	}
	for _, c := range h.localTargets(workspaceID, userID, nil) {
		c.enqueue(frame)
	}
	h.publish(protocol.Relayed{WorkspaceID: workspaceID, TargetUserID: userID, Frame: frame})
}

func (h *Hub) publish(msg protocol.Relayed) {
	if h.opts.Relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.opts.Relay.Publish(ctx, msg); err != nil {
		h.log.Warn().Err(err).Str("workspace", msg.WorkspaceID).Msg("relay publish failed")
	}
}

// DeliverRemote applies a frame published by another node: presence and
// content are mirrored locally, then the frame is forwarded to local
// connections.
func (h *Hub) DeliverRemote(msg protocol.Relayed) {
	ev, err := protocol.Decode(msg.Frame)
	if err != nil {
		h.log.Debug().Err(err).Str("node", msg.Node).Msg("dropping relayed frame")
		return
	}

	ws := msg.WorkspaceID
	switch e := ev.(type) {
	case protocol.UserJoinedEvent:
		h.registry.UserJoined(ws, e.User)
	case protocol.UserLeftEvent:
		// still connected here, so local peers keep seeing the user
		if h.hasOtherConnection(ws, e.UserID, nil) {
			return
		}
		h.registry.UserLeft(ws, e.UserID)
	case protocol.BlockFocusChangedEvent:
		h.registry.BlockFocusChanged(ws, e.BlockID, e.User, e.FocusType)
	case protocol.CursorUpdatedEvent:
		h.registry.SetCursor(ws, e.BlockID, e.UserID, e.Position)
	case protocol.ContentUpdatedEvent:
		if e.DocumentID != "" {
			h.blocks.overwrite(ws, e.DocumentID, e.BlockID, e.Content, e.Version)
		}
	}

	for _, c := range h.localTargets(ws, msg.TargetUserID, nil) {
		c.enqueue(msg.Frame)
	}
}

// Snapshot returns the presence snapshot of a workspace.
func (h *Hub) Snapshot(workspaceID string) presence.Snapshot {
	return h.registry.Snapshot(workspaceID)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// loadDocument pulls persisted blocks into the table the first time a
// document is joined. Concurrent joins share one load. On failure the
// document is served from memory and the load is retried on the next join.
func (h *Hub) loadDocument(workspaceID, documentID string) {
	if h.opts.Store == nil || h.blocks.isLoaded(workspaceID, documentID) {
		return
	}
	h.loads.Do(workspaceID+"/"+documentID, func() (any, error) {
		if h.blocks.isLoaded(workspaceID, documentID) {
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.LoadTimeout)
		defer cancel()

		persisted, err := h.opts.Store.DocumentBlocks(ctx, workspaceID, documentID)
		if err != nil {
			// retried on the next join
			h.log.Warn().Err(err).Str("workspace", workspaceID).Str("document", documentID).Msg("load document blocks")
			return nil, err
		}
		h.blocks.merge(workspaceID, documentID, persisted)
		return nil, nil
	})
}

// persist queues a write-behind save of the latest block state.
func (h *Hub) persist(workspaceID, documentID, blockID string, st blockState) {
	if h.opts.Store == nil || h.opts.Pool == nil {
		return
	}
	b := &block.Block{
		WorkspaceID: workspaceID,
		DocumentID:  documentID,
		BlockID:     blockID,
		Content:     st.content,
		Version:     st.version,
		BlockType:   st.blockType,
	}
	ok := h.opts.Pool.Submit(func(ctx context.Context) error {
		return h.opts.Store.SaveBlock(ctx, b)
	})
	if !ok {
		h.metrics.PersistFailuresTotal.Inc()
	}
}
