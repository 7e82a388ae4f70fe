package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tabsync/tabsync/internal/metrics"
)

const bridgeChannel = "tabsync:mutations"

// publisher is the narrow slice of the redis client the bridge needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Bridge relays broadcasts between server processes over redis
// pub/sub, so a mutation applied on one instance reaches clients
// connected to another. Delivery is best-effort, matching the rest of
// the gateway: a relay failure is logged, never surfaced.
type Bridge struct {
	pub        publisher
	sub        *redis.Client
	instanceID string
}

// bridgeFrame wraps a mutation with the publishing instance's id so an
// instance can skip its own relays.
type bridgeFrame struct {
	Instance string  `json:"instance"`
	Message  Message `json:"message"`
}

// NewBridge verifies connectivity and returns a bridge bound to the
// shared mutation channel.
func NewBridge(ctx context.Context, rdb *redis.Client) (*Bridge, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Bridge{
		pub:        rdb,
		sub:        rdb,
		instanceID: uuid.New().String(),
	}, nil
}

// Publish relays one mutation to peer processes.
func (b *Bridge) Publish(ctx context.Context, msg Message) {
	payload, err := json.Marshal(bridgeFrame{Instance: b.instanceID, Message: msg})
	if err != nil {
		slog.Error("failed to encode bridge frame", "group_id", msg.GroupID, "error", err)
		return
	}
	if err := b.pub.Publish(ctx, bridgeChannel, payload).Err(); err != nil {
		slog.Warn("bridge publish failed", "group_id", msg.GroupID, "error", err)
		return
	}
	metrics.BridgeMessages.WithLabelValues("out").Inc()
}

// Run subscribes to the mutation channel and hands relayed mutations
// to the gateway until ctx is cancelled. Mutations published by this
// instance are skipped.
func (b *Bridge) Run(ctx context.Context, g *Gateway) {
	pubsub := b.sub.Subscribe(ctx, bridgeChannel)
	defer pubsub.Close()

	slog.Info("bridge subscribed", "channel", bridgeChannel, "instance", b.instanceID)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var f bridgeFrame
			if err := json.Unmarshal([]byte(m.Payload), &f); err != nil {
				slog.Warn("discarding malformed bridge frame", "error", err)
				continue
			}
			if f.Instance == b.instanceID {
				continue
			}
			metrics.BridgeMessages.WithLabelValues("in").Inc()
			g.deliverRelayed(f.Message)
		}
	}
}
