package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"portal/domain"
)

// client talks to the portal API with a bearer token.
type client struct {
	baseURL string
	bearer  string
	http    *http.Client
}

func newClient(baseURL, bearer string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		bearer:  bearer,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type tasksPayload struct {
	Tasks   []domain.Task `json:"tasks"`
	Changed bool          `json:"changed,omitempty"`
}

func (c *client) Project(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &p)
	return p, err
}

func (c *client) Members(ctx context.Context) ([]domain.TeamMember, error) {
	var members []domain.TeamMember
	err := c.do(ctx, http.MethodGet, "/api/team", nil, &members)
	return members, err
}

// PutTasks replaces the project's task collection and returns the stored one.
func (c *client) PutTasks(ctx context.Context, projectID string, tasks []domain.Task) ([]domain.Task, error) {
	var resp tasksPayload
	err := c.do(ctx, http.MethodPut, "/api/projects/"+url.PathEscape(projectID)+"/tasks", tasksPayload{Tasks: tasks}, &resp)
	return resp.Tasks, err
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = sonic.Unmarshal(data, &e)
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return sonic.Unmarshal(data, out)
}
