package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "railbook:events"

type wireEvent struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge delivers locally and mirrors each event to the other replicas
// through a redis channel.
type RedisBridge struct {
	hub     *Hub
	client  *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

func NewRedisBridge(hub *Hub, client *redis.Client, log *zap.Logger) *RedisBridge {
	return &RedisBridge{
		hub:     hub,
		client:  client,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		log:     log.Named("events.redis"),
	}
}

func (b *RedisBridge) Publish(ctx context.Context, event Event) int {
	delivered := b.hub.Publish(ctx, event)

	data, err := json.Marshal(wireEvent{Origin: b.origin, Event: event})
	if err != nil {
		b.log.Warn("encode event for fan-out failed", zap.Error(err))
		return delivered
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.log.Warn("redis fan-out failed", zap.String("event_type", event.Type), zap.Error(err))
	}
	return delivered
}

// Run relays events published by other replicas until ctx ends.
func (b *RedisBridge) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
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
			b.relay(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(ctx context.Context, payload string) {
	var wire wireEvent
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		b.log.Warn("dropping undecodable fan-out message", zap.Error(err))
		return
	}
	if wire.Origin == b.origin {
		return
	}
	b.hub.Publish(ctx, wire.Event)
}
