// Package storage persists projects and team members and caches the task
// collections handed out by the API.
package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"portal/domain"
)

// Backend is a document store for projects and team members. Tables and
// Datastore implement it.
type Backend interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
	CreateProject(ctx context.Context, p domain.Project) error
	// SaveProject writes everything but the task collection.
	SaveProject(ctx context.Context, p domain.Project) error
	DeleteProject(ctx context.Context, id string) error
	// ApplyTasks replaces a project's task collection unless a write issued later
	// has already been applied. It reports whether w was written.
	ApplyTasks(ctx context.Context, w domain.TasksWrite) (bool, error)

	ListMembers(ctx context.Context) ([]domain.TeamMember, error)
	SaveMember(ctx context.Context, m domain.TeamMember) error
	DeleteMember(ctx context.Context, id string) error
}

var retryStatusCodes = []int{408, 429, 500, 502, 503, 504}

func tableRetryOptions() azcore.ClientOptions {
	return azcore.ClientOptions{
		Retry: policy.RetryOptions{
			MaxRetries:    3,
			TryTimeout:    time.Minute * 3,
			RetryDelay:    time.Second * 1,
			MaxRetryDelay: time.Second * 15,
			StatusCodes:   retryStatusCodes,
		},
	}
}

func queueRetryOptions() azcore.ClientOptions {
	return azcore.ClientOptions{
		Retry: policy.RetryOptions{
			MaxRetries:    5,
			TryTimeout:    time.Minute * 5,
			RetryDelay:    time.Second * 1,
			MaxRetryDelay: time.Second * 60,
			StatusCodes:   retryStatusCodes,
		},
	}
}

// mapAzureError translates table service status codes into domain errors.
func mapAzureError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	switch respErr.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return domain.ErrConflict
	}
	return err
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}
