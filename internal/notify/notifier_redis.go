package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var notificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "conforma_notifications_published_total",
	Help: "Workflow notifications published to the Redis channel, by kind",
}, []string{"kind"})

// RedisNotifier publishes alerts to a Redis pub/sub channel. The CRM frontend
// subscribes and turns them into in-app toasts; nothing persists, a subscriber
// that is offline misses the alert and catches up from the trail.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	notificationsPublished.WithLabelValues(notification.Kind).Inc()
	return nil
}
