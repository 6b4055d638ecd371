package storage

import (
	"context"
	"testing"
	"time"

	"portal/domain"
)

func TestUpdatesPublishSubscribe(t *testing.T) {
	_, client := newTestRedis(t)
	updates := NewUpdates(client, "project-updates")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.ProjectUpdate, 1)
	go updates.Subscribe(ctx, func(u domain.ProjectUpdate) {
		select {
		case got <- u:
		default:
		}
	})

	deadline := time.After(2 * time.Second)
	for {
		if err := updates.Publish(ctx, "p1", 99); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case u := <-got:
			if u.ProjectID != "p1" || u.Timestamp != 99 {
				t.Fatalf("unexpected update %#v", u)
			}
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("no update received")
		}
	}
}
