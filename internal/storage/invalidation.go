package storage

import (
	"context"
	"log"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"chatmemo/internal/redis"
)

const invalidateChannel = "chatmemo:invalidate"

type invalidateMessage struct {
	Origin    string `json:"origin"`
	SessionID string `json:"session_id"`
}

// BroadcastCache keeps a per-instance cache coherent across instances:
// every write or invalidation is announced over Redis pub/sub and peers drop their copy.
type BroadcastCache struct {
	local  SessionCache
	client *redis.Client
	origin string
}

func NewBroadcastCache(local SessionCache, client *redis.Client) *BroadcastCache {
	return &BroadcastCache{local: local, client: client, origin: uuid.NewString()}
}

func (c *BroadcastCache) Get(ctx context.Context, id string) ([]byte, bool) {
	return c.local.Get(ctx, id)
}

func (c *BroadcastCache) Set(ctx context.Context, id string, data []byte) {
	c.local.Set(ctx, id, data)
	c.publish(ctx, id)
}

func (c *BroadcastCache) Invalidate(ctx context.Context, id string) {
	c.local.Invalidate(ctx, id)
	c.publish(ctx, id)
}

func (c *BroadcastCache) publish(ctx context.Context, id string) {
	payload, err := json.Marshal(invalidateMessage{Origin: c.origin, SessionID: id})
	if err != nil {
		log.Printf("cache invalidation marshal failed: %v", err)
		return
	}
	if err := c.client.Publish(ctx, invalidateChannel, payload); err != nil {
		log.Printf("cache publish invalidation failed: %v", err)
	}
}

// Listen subscribes to peer invalidations until ctx is done.
// It returns once the subscription is confirmed.
func (c *BroadcastCache) Listen(ctx context.Context) error {
	pubsub, err := c.client.Subscribe(ctx, invalidateChannel)
	if err != nil {
		return err
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidateMessage
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					log.Printf("cache invalidation decode failed: %v", err)
					continue
				}
				if inv.Origin == c.origin || inv.SessionID == "" {
					continue
				}
				c.local.Invalidate(ctx, inv.SessionID)
			}
		}
	}()
	return nil
}
