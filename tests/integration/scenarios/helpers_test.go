package scenarios

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"portal/domain"
	"portal/tests/integration/internal/httpclient"
	testutil "portal/tests/utils"
)

type project struct {
	domain.Project
	Progress int `json:"progress"`
}

type tasksResponse struct {
	Tasks   []domain.Task `json:"tasks"`
	Changed bool          `json:"changed"`
}

// newClient returns a client for API_BASE, skipping the test when no API answers.
func newClient(t *testing.T) *httpclient.Client {
	t.Helper()
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Skipf("skipping, API not reachable: %v", err)
	}
	resp.Body.Close()

	bearer := os.Getenv("TEST_BEARER")
	if bearer == "" {
		tok, err := testutil.Token(testutil.Identity{Subject: "integration-user", Email: "integration@example.com"})
		if err != nil {
			t.Skipf("skipping, no test token: %v", err)
		}
		bearer = tok
	}
	return httpclient.New(base, bearer)
}

// createProject creates a public-client project seeded with the given task names
// and removes it when the test ends.
func createProject(t *testing.T, c *httpclient.Client, tasks ...string) project {
	t.Helper()
	var p project
	resp, err := c.PostJSON("/api/projects", map[string]any{
		"name":       fmt.Sprintf("it-%s-%d", t.Name(), time.Now().UnixNano()),
		"client":     "Integration",
		"clientType": "public",
		"startDate":  "2024-01-01",
		"dueDate":    "2030-12-31",
		"tasks":      tasks,
	}, &p)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: status %v err %v", statusOf(resp), err)
	}
	t.Cleanup(func() { _, _ = c.Delete("/api/projects/"+p.ID, nil) })
	return p
}

// pollProject polls the project until cond holds or the projection SLA passes.
func pollProject(t *testing.T, c *httpclient.Client, id, what string, cond func(project) bool) project {
	t.Helper()
	deadline := time.Now().Add(projectionSLA())
	backoff := 100 * time.Millisecond
	for {
		var p project
		_, err := c.GetJSON("/api/projects/"+id, &p)
		if err == nil && cond(p) {
			return p
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s: %v", what, err)
		}
		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func taskIDByName(t *testing.T, tasks []domain.Task, name string) string {
	t.Helper()
	for _, tk := range tasks {
		if tk.Name == name {
			return tk.ID
		}
	}
	t.Fatalf("task %q not found in %#v", name, tasks)
	return ""
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// projectionSLA is how long a queued write may take to become visible. It is read
// from config.test.yaml next to the scenarios when present.
func projectionSLA() time.Duration {
	sla := 10 * time.Second
	data, err := os.ReadFile("../config.test.yaml")
	if err != nil {
		return sla
	}
	var cfg struct {
		ProjectionSLAMs int `yaml:"projection_visibility_sla_ms"`
	}
	if err := yaml.Unmarshal(data, &cfg); err == nil && cfg.ProjectionSLAMs > 0 {
		sla = time.Duration(cfg.ProjectionSLAMs) * time.Millisecond
	}
	return sla
}
