package storage

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"portal/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueueWriter hands task-collection writes to the projector through a storage
// queue instead of writing the table directly.
type QueueWriter struct {
	queue queueClient
}

// NewQueueWriter creates a writer for the named queue.
func NewQueueWriter(connStr, queueName string) (*QueueWriter, error) {
	opts := azqueue.ClientOptions{ClientOptions: queueRetryOptions()}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &QueueWriter{queue: q}, nil
}

// EnqueueTasksWrite serialises w onto the queue.
func (q *QueueWriter) EnqueueTasksWrite(ctx context.Context, w domain.TasksWrite) error {
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	_, err = q.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}
