package api

import (
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"portal/domain"
)

const (
	smallBodyMaxSize = 16 * 1024        // 16 KiB
	tasksBodyMaxSize = 1024 * 1024      // 1 MiB
	importMaxSize    = 10 * 1024 * 1024 // 10 MiB
)

type errorResponse struct {
	Error string `json:"error"`
}

// PUT /api/projects/:id/tasks request body
type replaceTasksRequest struct {
	Tasks []domain.Task `json:"tasks"`
}

// POST /api/projects/:id/tasks request body
type addTaskRequest struct {
	Name string `json:"name"`
}

// POST /api/projects/:id/tasks/:taskId/move request body. Column wins over
// TargetTaskID when both are set.
type moveRequest struct {
	TargetTaskID string `json:"targetTaskId,omitempty"`
	Direction    string `json:"direction,omitempty"`
	Column       string `json:"column,omitempty"`
}

type stageRequest struct {
	Status string `json:"status"`
}

type completeRequest struct {
	Completed *bool `json:"completed"`
}

type assignRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// Task mutation response: the full new collection and whether anything changed.
type tasksResponse struct {
	Tasks   []domain.Task `json:"tasks"`
	Changed bool          `json:"changed"`
}

type boardTask struct {
	domain.Task
	AssigneeName string `json:"assigneeName,omitempty"`
}

type boardColumn struct {
	Status domain.Status `json:"status"`
	Title  string        `json:"title"`
	Tasks  []boardTask   `json:"tasks"`
}

type boardResponse struct {
	ProjectID string        `json:"projectId"`
	Name      string        `json:"name"`
	Progress  int           `json:"progress"`
	Columns   []boardColumn `json:"columns"`
}

type createProjectRequest struct {
	Name         string   `json:"name"`
	Client       string   `json:"client"`
	ClientType   string   `json:"clientType"`
	StartDate    string   `json:"startDate"`
	DueDate      string   `json:"dueDate"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	AssignedTeam []string `json:"assignedTeam"`
	// Tasks are custom task names for public clients.
	Tasks []string `json:"tasks"`
}

type updateProjectRequest struct {
	Name         *string   `json:"name"`
	Client       *string   `json:"client"`
	ClientType   *string   `json:"clientType"`
	StartDate    *string   `json:"startDate"`
	DueDate      *string   `json:"dueDate"`
	Status       *string   `json:"status"`
	Priority     *string   `json:"priority"`
	AssignedTeam *[]string `json:"assignedTeam"`
}

type projectView struct {
	domain.Project
	Progress      int  `json:"progress"`
	DaysRemaining *int `json:"daysRemaining,omitempty"`
}

func newProjectView(p domain.Project, today time.Time) projectView {
	v := projectView{Project: p, Progress: p.Progress()}
	if days, ok := p.DaysRemaining(today); ok {
		v.DaysRemaining = &days
	}
	return v
}

type noteRequest struct {
	Content  string `json:"content"`
	AuthorID string `json:"authorId"`
}

type memberRequest struct {
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Email  *string `json:"email"`
	Avatar *string `json:"avatar"`
}

type importResponse struct {
	Imported int             `json:"imported"`
	Projects []domain.Project `json:"projects"`
}

// decodeBody decodes a JSON body of at most limit bytes, rejecting unknown
// fields.
func decodeBody(c echo.Context, limit int64, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, limit))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
