package main

import (
	"context"
	"sync"

	"portal/domain"
)

// pusher sends task collections to the API one at a time. Each push replaces the
// whole collection, so while a request is in flight only the latest pending
// collection is kept.
type pusher struct {
	send    func(ctx context.Context, tasks []domain.Task) error
	onError func(error)
	onSaved func()

	mu      sync.Mutex
	pending []domain.Task
	queued  bool
	wake    chan struct{}
}

func newPusher(send func(context.Context, []domain.Task) error, onError func(error), onSaved func()) *pusher {
	return &pusher{send: send, onError: onError, onSaved: onSaved, wake: make(chan struct{}, 1)}
}

func (p *pusher) push(tasks []domain.Task) {
	p.mu.Lock()
	p.pending = domain.CloneTasks(tasks)
	p.queued = true
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pusher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}
		p.mu.Lock()
		tasks, queued := p.pending, p.queued
		p.pending, p.queued = nil, false
		p.mu.Unlock()
		if !queued {
			continue
		}
		if err := p.send(ctx, tasks); err != nil {
			if ctx.Err() != nil {
				return
			}
			if p.onError != nil {
				p.onError(err)
			}
			continue
		}
		if p.onSaved != nil {
			p.onSaved()
		}
	}
}
