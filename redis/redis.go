package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient connects to addr. It returns nil when Redis is not reachable so
// the caller can run as a single node.
func NewClient(ctx context.Context, addr string, log zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis not available, running without cross-node relay")
		_ = client.Close()
		return nil
	}

	log.Info().Str("addr", addr).Msg("redis connected successfully")
	return client
}
