package main

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

type message struct {
	ID           string
	PopReceipt   string
	Text         string
	DequeueCount int64
}

// messageSource is the write queue the projector drains.
type messageSource interface {
	Dequeue(ctx context.Context) (*message, error)
	Delete(ctx context.Context, m *message) error
}

type azureQueue struct {
	queue *azqueue.QueueClient
}

func newAzureQueue(connStr, queueName string) (*azureQueue, error) {
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, nil)
	if err != nil {
		return nil, err
	}
	return &azureQueue{queue: q}, nil
}

// Dequeue returns the next message, or nil when the queue is empty.
func (a *azureQueue) Dequeue(ctx context.Context) (*message, error) {
	resp, err := a.queue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	m := resp.Messages[0]
	out := &message{}
	if m.MessageID != nil {
		out.ID = *m.MessageID
	}
	if m.PopReceipt != nil {
		out.PopReceipt = *m.PopReceipt
	}
	if m.MessageText != nil {
		out.Text = *m.MessageText
	}
	if m.DequeueCount != nil {
		out.DequeueCount = *m.DequeueCount
	}
	return out, nil
}

func (a *azureQueue) Delete(ctx context.Context, m *message) error {
	_, err := a.queue.DeleteMessage(ctx, m.ID, m.PopReceipt, nil)
	return err
}
