package scenarios

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"portal/domain"
	"portal/tests/integration/internal/assertx"
)

// A write issued before the latest one must not overwrite it, even when the queue
// delivers it last.
func TestStaleQueuedWriteIsIgnored(t *testing.T) {
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" || os.Getenv("WRITE_MODE") != "queue" {
		t.Skip("needs STORAGE_CONNECTION_STRING and WRITE_MODE=queue")
	}
	qName := os.Getenv("WRITES_QUEUE")
	if qName == "" {
		qName = "task-writes"
	}
	queue, err := azqueue.NewQueueClientFromConnectionString(connStr, qName, nil)
	if err != nil {
		t.Fatalf("queue client: %v", err)
	}

	c := newClient(t)
	p := createProject(t, c, "Keep", "Move")
	keep := taskIDByName(t, p.Tasks, "Keep")
	move := taskIDByName(t, p.Tasks, "Move")

	var res tasksResponse
	resp, err := c.PostJSON("/api/projects/"+p.ID+"/tasks/"+move+"/stage", map[string]string{"status": "in-progress"}, &res)
	assertx.Status(t, "stage", resp, err, http.StatusOK)
	pollProject(t, c, p.ID, "staged write applied", func(p project) bool {
		for _, tk := range p.Tasks {
			if tk.ID == move {
				return tk.Status == domain.StatusInProgress
			}
		}
		return false
	})

	stale := domain.TasksWrite{
		ProjectID: p.ID,
		Tasks:     []domain.Task{{ID: keep, Name: "Keep", Status: domain.StatusTodo, Order: 1}},
		Timestamp: time.Now().Add(-time.Hour).UnixNano(),
	}
	data, err := sonic.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := queue.EnqueueMessage(context.Background(), string(data), nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	time.Sleep(projectionSLA())
	var got project
	resp, err = c.GetJSON("/api/projects/"+p.ID, &got)
	assertx.Status(t, "get project", resp, err, http.StatusOK)
	assertx.Equal(t, 2, len(got.Tasks))
	assertx.ColumnOrder(t, got.Tasks, domain.StatusInProgress, move)
}
