package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"portal/domain"
)

type recordingWriter struct {
	mu      sync.Mutex
	writes  []domain.TasksWrite
	failFor int
	block   chan struct{}
}

func (r *recordingWriter) write(ctx context.Context, w domain.TasksWrite) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor > 0 {
		r.failFor--
		return errors.New("store unavailable")
	}
	r.writes = append(r.writes, w)
	return nil
}

func (r *recordingWriter) snapshot() []domain.TasksWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TasksWrite(nil), r.writes...)
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) Publish(ctx context.Context, projectID string, ts int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, projectID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.ids)
}

func testOutboxConfig() OutboxConfig {
	return OutboxConfig{
		Shards:         4,
		ShardBuffer:    16,
		WriteTimeout:   time.Second,
		HandoffTimeout: 10 * time.Millisecond,
		MaxAttempts:    3,
		RetryInitial:   time.Millisecond,
		RetryMax:       5 * time.Millisecond,
	}
}

func TestOutboxPreservesPerProjectOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := &recordingWriter{}
	n := &recordingNotifier{}
	ob := NewOutbox(testOutboxConfig(), w.write, n, logger)

	for i := 1; i <= 20; i++ {
		for _, id := range []string{"p1", "p2"} {
			if err := ob.Submit(domain.TasksWrite{ProjectID: id, Timestamp: int64(i)}); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
	}
	ob.Close()

	last := map[string]int64{}
	for _, write := range w.snapshot() {
		if write.Timestamp <= last[write.ProjectID] {
			t.Fatalf("write for %s out of order: %d after %d", write.ProjectID, write.Timestamp, last[write.ProjectID])
		}
		last[write.ProjectID] = write.Timestamp
	}
	if len(w.snapshot()) != 40 || n.count() != 40 {
		t.Fatalf("expected 40 writes and notifications, got %d and %d", len(w.snapshot()), n.count())
	}
}

func TestOutboxRetriesFailedWrites(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := &recordingWriter{failFor: 2}
	ob := NewOutbox(testOutboxConfig(), w.write, nil, logger)

	if err := ob.Submit(domain.TasksWrite{ProjectID: "p1", Timestamp: 1}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ob.Close()

	if got := w.snapshot(); len(got) != 1 {
		t.Fatalf("expected write to succeed on third attempt, got %#v", got)
	}
	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "task write failed, retrying" {
			warnings++
		}
	}
	if warnings != 2 {
		t.Fatalf("expected 2 retry warnings, got %d", warnings)
	}
}

func TestOutboxDropsAfterMaxAttempts(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := &recordingWriter{failFor: 10}
	n := &recordingNotifier{}
	ob := NewOutbox(testOutboxConfig(), w.write, n, logger)

	_ = ob.Submit(domain.TasksWrite{ProjectID: "p1", Timestamp: 1})
	ob.Close()

	if len(w.snapshot()) != 0 || n.count() != 0 {
		t.Fatalf("expected nothing written or published")
	}
	if entry := hook.LastEntry(); entry == nil || entry.Message != "task write dropped" {
		t.Fatalf("expected drop to be logged, got %#v", entry)
	}
}

func TestOutboxSubmitSaturated(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := &recordingWriter{block: make(chan struct{})}
	cfg := testOutboxConfig()
	cfg.Shards = 1
	cfg.ShardBuffer = 1
	ob := NewOutbox(cfg, w.write, nil, logger)

	// The worker takes the first write and blocks; the second fills the buffer.
	if err := ob.Submit(domain.TasksWrite{ProjectID: "p", Timestamp: 1}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for {
		if err := ob.Submit(domain.TasksWrite{ProjectID: "p", Timestamp: 2}); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("buffer never drained into worker")
		}
	}
	if err := ob.Submit(domain.TasksWrite{ProjectID: "p", Timestamp: 3}); !errors.Is(err, errOutboxSaturated) {
		t.Fatalf("expected saturation, got %v", err)
	}

	close(w.block)
	ob.Close()
	if err := ob.Submit(domain.TasksWrite{ProjectID: "p", Timestamp: 4}); !errors.Is(err, errOutboxClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestOutboxWriteNowPublishes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := &recordingWriter{}
	n := &recordingNotifier{}
	ob := NewOutbox(testOutboxConfig(), w.write, n, logger)
	defer ob.Close()

	if err := ob.WriteNow(context.Background(), domain.TasksWrite{ProjectID: "p", Timestamp: 1}); err != nil {
		t.Fatalf("write now: %v", err)
	}
	if len(w.snapshot()) != 1 || n.count() != 1 {
		t.Fatalf("expected inline write and publish")
	}
}

func TestExponentialBackoffBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := exponentialBackoff(attempt, 100*time.Millisecond, time.Second)
		if d <= 0 || d > 1200*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v out of bounds", attempt, d)
		}
	}
}
