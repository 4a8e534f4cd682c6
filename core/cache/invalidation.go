package cache

import (
	"context"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel 跨实例缓存失效广播频道
const InvalidationChannel = "dsquery:cache:invalidate"

type invalidationMessage struct {
	Origin string   `json:"origin"`
	Tags   []string `json:"tags"`
}

// InvalidationBus 通过 Redis pub/sub 在多个实例之间同步标签失效
type InvalidationBus struct {
	client  redis.UniversalClient
	store   *Store
	channel string
	origin  string
}

// NewInvalidationBus 创建失效广播
func NewInvalidationBus(client redis.UniversalClient, store *Store) *InvalidationBus {
	return &InvalidationBus{
		client:  client,
		store:   store,
		channel: InvalidationChannel,
		origin:  strings.ReplaceAll(uuid.New().String(), "-", ""),
	}
}

// Invalidate removes the tags locally, then tells the other instances.
// A publish failure is logged; the local removal has already happened.
func (b *InvalidationBus) Invalidate(ctx context.Context, tags ...string) int {
	removed := b.store.RemoveByTags(tags...)
	if len(tags) == 0 {
		return removed
	}

	payload, err := sonic.Marshal(invalidationMessage{Origin: b.origin, Tags: tags})
	if err != nil {
		g.Log().Errorf(ctx, "marshal invalidation message failed: %v", err)
		return removed
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		g.Log().Warningf(ctx, "publish cache invalidation %v failed: %v", tags, err)
	}
	return removed
}

// Listen applies invalidations published by other instances until ctx is done.
func (b *InvalidationBus) Listen(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	g.Log().Infof(ctx, "Listening for cache invalidations on %s", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.apply(ctx, msg.Payload)
		}
	}
}

func (b *InvalidationBus) apply(ctx context.Context, payload string) {
	var msg invalidationMessage
	if err := sonic.UnmarshalString(payload, &msg); err != nil {
		g.Log().Warningf(ctx, "ignore malformed invalidation message: %v", err)
		return
	}
	if msg.Origin == b.origin {
		return
	}
	removed := b.store.RemoveByTags(msg.Tags...)
	g.Log().Debugf(ctx, "Remote invalidation from %s: tags=%v removed=%d", msg.Origin, msg.Tags, removed)
}
