package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"portal/domain"
	"portal/kanban"
)

// boardOp applies one request to a board. Input errors become 400 responses;
// whether anything changed is observed through the board's update hook.
type boardOp func(c echo.Context, b *kanban.Board) error

func getBoard(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		p, err := d.Store.GetProject(ctx, c.Param("id"))
		if err != nil {
			return d.storeError(c, err)
		}
		members, err := d.Store.ListMembers(ctx)
		if err != nil {
			return d.storeError(c, err)
		}

		b := kanban.NewBoard(p.Tasks, members, kanban.Hooks{})
		resp := boardResponse{ProjectID: p.ID, Name: p.Name, Progress: p.Progress()}
		for _, col := range b.Columns() {
			bc := boardColumn{Status: col.Status, Title: col.Title, Tasks: make([]boardTask, len(col.Tasks))}
			for i, t := range col.Tasks {
				bc.Tasks[i] = boardTask{Task: t, AssigneeName: b.AssigneeName(t)}
			}
			resp.Columns = append(resp.Columns, bc)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// mutateTasks loads a project, applies op to its board and, when the board
// reports a new collection, returns it at once and persists it in the
// background.
func mutateTasks(d *Deps, op string, apply boardOp) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, d.Logger, c.Path(), op)
		ctx = spanCtx
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		loadStart := time.Now()
		p, loadErr := d.Store.GetProject(ctx, c.Param("id"))
		metrics.ObserveLoad(time.Since(loadStart))
		if loadErr != nil {
			metrics.SetErrorStage("load")
			return d.storeError(c, loadErr)
		}

		var (
			next    []domain.Task
			changed bool
		)
		b := kanban.NewBoard(p.Tasks, nil, kanban.Hooks{
			OnTasksUpdate: func(tasks []domain.Task) {
				next = tasks
				changed = true
			},
		}, kanban.WithClock(d.now))

		applyStart := time.Now()
		if applyErr := apply(c, b); applyErr != nil {
			metrics.SetErrorStage("request")
			return fail(c, http.StatusBadRequest, applyErr.Error())
		}
		metrics.ObserveApply(time.Since(applyStart))

		if !changed {
			tasks := b.Tasks()
			metrics.SetTasksReturned(len(tasks))
			return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		}

		p.Tasks = next
		d.persistTasks(ctx, p, metrics)
		metrics.SetChanged(true)
		metrics.SetTasksReturned(len(next))
		return c.JSON(http.StatusOK, tasksResponse{Tasks: next, Changed: true})
	}
}

// persistTasks writes the new collection through to the cache, then hands it to
// the outbox. When the outbox cannot take it the write happens inline. Failures
// are logged; the response is never rolled back.
func (d *Deps) persistTasks(ctx context.Context, p domain.Project, metrics *boardRequestMetrics) {
	start := time.Now()
	w := domain.TasksWrite{ProjectID: p.ID, Tasks: p.Tasks, Timestamp: nextTimestamp()}
	entry := d.Logger.WithField("project", p.ID)

	if d.Cache != nil {
		if err := d.Cache.StoreProject(ctx, p, w.Timestamp); err != nil {
			entry.WithError(err).Warn("task write-through to cache failed")
		}
	}
	if d.Outbox == nil {
		metrics.ObservePersist(time.Since(start), "none")
		return
	}

	mode := "outbox"
	if err := d.Outbox.Submit(w); err != nil {
		mode = "inline"
		entry.WithError(err).Warn("task outbox unavailable; writing inline")
		if err := d.Outbox.WriteNow(context.WithoutCancel(ctx), w); err != nil {
			entry.WithError(err).Error("inline task write failed")
		}
	}
	metrics.ObservePersist(time.Since(start), mode)
}

func replaceTasks(c echo.Context, b *kanban.Board) error {
	var req replaceTasksRequest
	if err := decodeBody(c, tasksBodyMaxSize, &req); err != nil {
		return errors.New("invalid body")
	}
	seen := make(map[string]struct{}, len(req.Tasks))
	for _, t := range req.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return errors.New("every task needs an id")
		}
		if _, dup := seen[t.ID]; dup {
			return errors.New("duplicate task id " + t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	if req.Tasks == nil {
		req.Tasks = []domain.Task{}
	}
	b.Replace(req.Tasks)
	return nil
}

func addTask(c echo.Context, b *kanban.Board) error {
	var req addTaskRequest
	if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
		return errors.New("invalid body")
	}
	b.AddTask(req.Name)
	return nil
}

func deleteTask(c echo.Context, b *kanban.Board) error {
	b.DeleteTask(c.Param("taskId"))
	return nil
}

func moveTask(c echo.Context, b *kanban.Board) error {
	var req moveRequest
	if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
		return errors.New("invalid body")
	}
	if req.Column != "" {
		s, err := domain.ParseStatus(req.Column)
		if err != nil {
			return err
		}
		b.DropOnColumn(c.Param("taskId"), s)
		return nil
	}
	if req.TargetTaskID == "" {
		return errors.New("targetTaskId or column is required")
	}
	b.DropOnTask(c.Param("taskId"), req.TargetTaskID, kanban.ParseDirection(req.Direction))
	return nil
}

func stageTask(c echo.Context, b *kanban.Board) error {
	var req stageRequest
	if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
		return errors.New("invalid body")
	}
	s, err := domain.ParseStatus(req.Status)
	if err != nil {
		return err
	}
	b.MoveToStage(c.Param("taskId"), s)
	return nil
}

func completeTask(c echo.Context, b *kanban.Board) error {
	var req completeRequest
	if err := decodeBody(c, smallBodyMaxSize, &req); err != nil || req.Completed == nil {
		return errors.New("completed is required")
	}
	b.SetCompleted(c.Param("taskId"), *req.Completed)
	return nil
}

func assignTask(c echo.Context, b *kanban.Board) error {
	var req assignRequest
	if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
		return errors.New("invalid body")
	}
	b.Assign(c.Param("taskId"), strings.TrimSpace(req.AssignedTo))
	return nil
}
