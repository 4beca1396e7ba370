package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ridelink/internal/domain/user"
	"ridelink/internal/general/contracts"
	"ridelink/internal/general/logger"
	"ridelink/internal/general/rabbitmq"
	"ridelink/internal/realtime/dispatch"
	"ridelink/internal/realtime/rooms"

	amqp "github.com/rabbitmq/amqp091-go"
)

const consumerRestartDelay = 3 * time.Second

// Consumer bridges server-initiated notifications from RabbitMQ to live
// WebSocket sessions through the dispatcher.
type Consumer struct {
	rmq        *rabbitmq.Client
	dispatcher *dispatch.Dispatcher
	logger     *logger.Logger
}

func NewConsumer(rmq *rabbitmq.Client, d *dispatch.Dispatcher, log *logger.Logger) *Consumer {
	return &Consumer{rmq: rmq, dispatcher: d, logger: log}
}

// Start runs the notification consumer in the background until ctx is
// cancelled. Consume returns when the channel closes (e.g. during a
// broker reconnect), so the loop restarts it after a short delay.
func (c *Consumer) Start(ctx context.Context) {
	go func() {
		for {
			err := c.rmq.Consume(ctx, contracts.QueueNotifications, "realtime-notify", 20, c.handle)
			if ctx.Err() != nil {
				c.logger.Info(ctx, "notify_consumer_stopped", "Notification consumer stopped", nil)
				return
			}
			if err != nil {
				c.logger.Error(ctx, "notify_consumer_failed", "Notification consumer exited, restarting", err, nil)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(consumerRestartDelay):
			}
		}
	}()
}

// handle routes one notification to its audience. A decode or routing
// error is returned so the delivery gets nacked and dropped.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) error {
	var n contracts.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.logger.Error(ctx, "notification_decode_failed", "Failed to decode notification", err,
			map[string]any{"size": len(d.Body)})
		return fmt.Errorf("decode notification: %w", err)
	}
	if n.Event == "" {
		return fmt.Errorf("notification missing event name")
	}

	var payload any
	if len(n.Payload) > 0 {
		payload = json.RawMessage(n.Payload)
	}

	switch {
	case n.IdentityID != "":
		delivered := c.dispatcher.SendToSession(ctx, n.IdentityID, n.Event, payload)
		c.logger.Debug(ctx, "notification_routed", "Notification routed to session",
			map[string]any{"identity_id": n.IdentityID, "event": n.Event, "delivered": delivered})
		return nil

	case n.Room != "":
		room, ok := rooms.ParseName(n.Room)
		if !ok {
			c.logger.Error(ctx, "notification_bad_room", "Notification names an unknown room", nil,
				map[string]any{"room": n.Room})
			return fmt.Errorf("unknown room name %q", n.Room)
		}
		count := c.dispatcher.SendToRoom(ctx, room, n.Event, payload)
		c.logger.Debug(ctx, "notification_routed", "Notification routed to room",
			map[string]any{"room": n.Room, "event": n.Event, "delivered": count})
		return nil

	case n.Role != "":
		role, err := user.ParseRole(n.Role)
		if err != nil {
			c.logger.Error(ctx, "notification_bad_role", "Notification names an unknown role", err,
				map[string]any{"role": n.Role})
			return fmt.Errorf("parse role %q: %w", n.Role, err)
		}
		count := c.dispatcher.BroadcastToRole(ctx, role, n.Event, payload)
		c.logger.Debug(ctx, "notification_routed", "Notification routed to role",
			map[string]any{"role": n.Role, "event": n.Event, "delivered": count})
		return nil

	default:
		return fmt.Errorf("notification has no audience")
	}
}
