package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedQueue struct {
	counts []int32
	calls  int
	err    error
}

func (q *scriptedQueue) Pending(context.Context) (int32, error) {
	if q.err != nil {
		return 0, q.err
	}
	i := q.calls
	if i >= len(q.counts) {
		i = len(q.counts) - 1
	}
	q.calls++
	return q.counts[i], nil
}

func TestWaitDrainedNeedsStablePolls(t *testing.T) {
	q := &scriptedQueue{counts: []int32{3, 0, 1, 0, 0}}
	err := waitDrained(context.Background(), time.Millisecond, 2, map[string]pendingCounter{"task-writes": q})
	if err != nil {
		t.Fatalf("waitDrained: %v", err)
	}
	if q.calls != 5 {
		t.Fatalf("expected 5 polls, got %d", q.calls)
	}
}

func TestWaitDrainedTimesOut(t *testing.T) {
	q := &scriptedQueue{counts: []int32{1}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := waitDrained(ctx, time.Millisecond, 1, map[string]pendingCounter{"task-writes": q})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestWaitDrainedReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	err := waitDrained(context.Background(), time.Millisecond, 1, map[string]pendingCounter{"q": &scriptedQueue{err: boom}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
