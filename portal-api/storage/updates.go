package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"portal/domain"
)

// Updates publishes and consumes project update notifications on a Redis
// channel.
type Updates struct {
	redis   *redis.Client
	channel string
}

// NewUpdates creates a notifier bound to channel.
func NewUpdates(client *redis.Client, channel string) *Updates {
	return &Updates{redis: client, channel: channel}
}

// Publish announces that the task collection of projectID changed.
func (u *Updates) Publish(ctx context.Context, projectID string, ts int64) error {
	data, err := json.Marshal(domain.ProjectUpdate{ProjectID: projectID, Timestamp: ts})
	if err != nil {
		return err
	}
	return u.redis.Publish(ctx, u.channel, data).Err()
}

// Subscribe delivers updates to fn until ctx is done, resubscribing when the
// connection drops.
func (u *Updates) Subscribe(ctx context.Context, fn func(domain.ProjectUpdate)) {
	for {
		sub := u.redis.Subscribe(ctx, u.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev domain.ProjectUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.ProjectID == "" {
					log.WithField("payload", msg.Payload).Error("unable to parse project update")
					continue
				}
				fn(ev)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.WithField("channel", u.channel).Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
