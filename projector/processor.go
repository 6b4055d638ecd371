package main

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"portal/domain"
)

type tasksStore interface {
	ApplyTasks(ctx context.Context, w domain.TasksWrite) (bool, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
}

type projectCache interface {
	StoreProject(ctx context.Context, p domain.Project, tasksTS int64) error
}

type notifier interface {
	Publish(ctx context.Context, projectID string, ts int64) error
}

type processor struct {
	store      tasksStore
	cache      projectCache
	updates    notifier
	logger     *log.Logger
	maxDeliver int64
	idleWait   time.Duration
}

// process applies one queued write. It reports whether the message is done
// with and may be deleted; a false result leaves it for redelivery.
func (p *processor) process(ctx context.Context, m *message) bool {
	entry := p.logger.WithField("message", m.ID)
	var w domain.TasksWrite
	if err := sonic.UnmarshalString(m.Text, &w); err != nil || w.ProjectID == "" {
		entry.WithField("payload", m.Text).Error("dropping malformed task write")
		return true
	}
	entry = entry.WithFields(log.Fields{"project": w.ProjectID, "ts": w.Timestamp})

	applied, err := p.store.ApplyTasks(ctx, w)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		entry.Warn("project gone, dropping task write")
		return true
	case err != nil:
		if p.maxDeliver > 0 && m.DequeueCount >= p.maxDeliver {
			entry.WithError(err).Errorf("dropping task write after %d deliveries", m.DequeueCount)
			return true
		}
		entry.WithError(err).Warn("task write failed, leaving for redelivery")
		return false
	case !applied:
		entry.Debug("newer task write already stored")
		return true
	}

	if p.cache != nil {
		proj, err := p.store.GetProject(ctx, w.ProjectID)
		if err != nil {
			entry.WithError(err).Warn("unable to reload project for cache")
		} else if err := p.cache.StoreProject(ctx, proj, w.Timestamp); err != nil {
			entry.WithError(err).Warn("unable to refresh project cache")
		}
	}
	if err := p.updates.Publish(ctx, w.ProjectID, w.Timestamp); err != nil {
		entry.WithError(err).Error("unable to publish project update")
	}
	entry.Debug("task write applied")
	return true
}

// run drains src until ctx is done.
func (p *processor) run(ctx context.Context, src messageSource) {
	for ctx.Err() == nil {
		m, err := src.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.WithError(err).Error("receive failed")
			}
			p.sleep(ctx)
			continue
		}
		if m == nil {
			p.sleep(ctx)
			continue
		}
		if !p.process(ctx, m) {
			continue
		}
		if err := src.Delete(ctx, m); err != nil {
			p.logger.WithError(err).WithField("message", m.ID).Error("unable to delete message")
		}
	}
}

func (p *processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.idleWait)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
