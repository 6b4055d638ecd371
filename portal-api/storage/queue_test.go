package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"portal/domain"
)

type fakeQueue struct {
	messages []string
	err      error
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	if f.err != nil {
		return azqueue.EnqueueMessagesResponse{}, f.err
	}
	f.messages = append(f.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func TestQueueWriterEnqueuesTasksWrite(t *testing.T) {
	q := &fakeQueue{}
	w := &QueueWriter{queue: q}
	write := domain.TasksWrite{ProjectID: "p1", Tasks: []domain.Task{{ID: "t1", Name: "Scope", Order: 1, Status: domain.StatusTodo}}, Timestamp: 7}

	if err := w.EnqueueTasksWrite(context.Background(), write); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(q.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(q.messages))
	}
	var got domain.TasksWrite
	if err := json.Unmarshal([]byte(q.messages[0]), &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.ProjectID != "p1" || got.Timestamp != 7 || len(got.Tasks) != 1 {
		t.Fatalf("unexpected message %#v", got)
	}
}

func TestQueueWriterPropagatesErrors(t *testing.T) {
	boom := errors.New("queue down")
	w := &QueueWriter{queue: &fakeQueue{err: boom}}
	if err := w.EnqueueTasksWrite(context.Background(), domain.TasksWrite{ProjectID: "p1"}); !errors.Is(err, boom) {
		t.Fatalf("expected queue error, got %v", err)
	}
}
