package api

import (
	"context"

	"portal/domain"
)

// Storage is the project and team store the handlers read and edit. Task
// collections are never written through it; they go through the outbox.
type Storage interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
	CreateProject(ctx context.Context, p domain.Project) error
	SaveProject(ctx context.Context, p domain.Project) error
	DeleteProject(ctx context.Context, id string) error

	ListMembers(ctx context.Context) ([]domain.TeamMember, error)
	SaveMember(ctx context.Context, m domain.TeamMember) error
	DeleteMember(ctx context.Context, id string) error
}

// ProjectCache receives the new task collection of a project as soon as a
// handler computes it, so the next read sees it before the store does.
type ProjectCache interface {
	StoreProject(ctx context.Context, p domain.Project, tasksTS int64) error
}

// WriteFunc persists one task collection write, either directly or via the
// write queue.
type WriteFunc func(ctx context.Context, w domain.TasksWrite) error

// Notifier announces that a project's task collection changed.
type Notifier interface {
	Publish(ctx context.Context, projectID string, ts int64) error
}

// Subscriber delivers project update notifications until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(domain.ProjectUpdate))
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing the same import twice.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}

// TemplateSource returns the task templates currently in effect.
type TemplateSource interface {
	Templates() domain.Templates
}
