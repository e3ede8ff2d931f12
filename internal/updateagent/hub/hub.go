package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/log"
	"github.com/gatewing-io/gatewing/pkg/mqtt"
	mqtttopic "github.com/gatewing-io/gatewing/pkg/mqtt/topic"
)

// Hub adapts the MQTT client to the agent's bus contract: it maps event types
// to topics, routes inbound messages to registered handlers and publishes
// device status.
type Hub struct {
	deviceKey string

	mc     mqtt.Client
	topics *mqtttopic.Builder

	routes map[string]core.HandlerFunc
}

var _ core.Bus = (*Hub)(nil)

func New(deviceKey string, client mqtt.Client, builder *mqtttopic.Builder) *Hub {
	return &Hub{
		deviceKey: deviceKey,
		mc:        client,
		topics:    builder,
		routes:    make(map[string]core.HandlerFunc),
	}
}

func (b *Hub) Send(ctx context.Context, event core.EventType, payload []byte) error {
	segment, ok := events[event]
	if !ok {
		return fmt.Errorf("unmapped event: %s", event)
	}
	fullTopic := b.topics.Build(segment, b.deviceKey)
	return b.mc.Publish(ctx, fullTopic, 1, false, payload)
}

func (b *Hub) SendJSON(ctx context.Context, event core.EventType, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Send(ctx, event, payload)
}

// PublishStatus publishes a status text on the update status topic, keyed by
// this device's hardware identifier: { "<deviceKey>": "<text>" }.
func (b *Hub) PublishStatus(ctx context.Context, text string) error {
	return b.SendJSON(ctx, core.EventUpdateStatus, map[string]string{b.deviceKey: text})
}

func (b *Hub) IsConnected() bool {
	return b.mc.IsConnected()
}

func (b *Hub) Start(ctx context.Context) error {
	if err := b.mc.Start(ctx); err != nil {
		return err
	}

	if err := b.mc.AwaitConnection(ctx); err != nil {
		return err
	}

	for topic, handler := range b.routes {
		topic, handler := topic, handler
		err := b.mc.Subscribe(ctx, topic, 1, func(c context.Context, _ string, p []byte) {
			if handleErr := handler(c, p); handleErr != nil {
				log.Error(handleErr, "Handler execution failed", "topic", topic)
			}
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *Hub) Stop() {
	log.Info("Disconnecting MQTT client...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.mc.Disconnect(ctx)
}
