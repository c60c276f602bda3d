package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"collaborative-workspace/internal/protocol"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPrefix = "collab:ws:"

// Bus forwards relay frames between nodes over Redis pub/sub, one channel
// per workspace. Frames published by this node are skipped on receipt.
type Bus struct {
	client *redis.Client
	node   string
	log    zerolog.Logger
}

func NewBus(client *redis.Client, node string, log zerolog.Logger) *Bus {
	return &Bus{
		client: client,
		node:   node,
		log:    log.With().Str("component", "bus").Str("node", node).Logger(),
	}
}

func (b *Bus) Node() string {
	return b.node
}

func Channel(workspaceID string) string {
	return channelPrefix + workspaceID
}

// Publish stamps msg with this node's ID and sends it to the workspace
// channel.
func (b *Bus) Publish(ctx context.Context, msg protocol.Relayed) error {
	msg.Node = b.node
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode relayed frame: %w", err)
	}
	return b.client.Publish(ctx, Channel(msg.WorkspaceID), data).Err()
}

// Subscription is an active pattern subscription to every workspace channel.
type Subscription struct {
	bus    *Bus
	pubsub *redis.PubSub
}

// Subscribe returns once Redis has confirmed the subscription, so frames
// published afterwards are guaranteed to be seen.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s*: %w", channelPrefix, err)
	}
	return &Subscription{bus: b, pubsub: pubsub}, nil
}

// Deliver hands every foreign frame to fn until ctx is done or the
// subscription is closed.
func (s *Subscription) Deliver(ctx context.Context, fn func(protocol.Relayed)) {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var relayed protocol.Relayed
			if err := json.Unmarshal([]byte(msg.Payload), &relayed); err != nil {
				s.bus.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed relayed frame")
				continue
			}
			if relayed.Node == s.bus.node {
				continue
			}
			if relayed.WorkspaceID == "" {
				relayed.WorkspaceID = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			fn(relayed)
		}
	}
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
