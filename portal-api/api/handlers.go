package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"portal/domain"
)

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Store     Storage
	Cache     ProjectCache
	Outbox    *Outbox
	Updates   Subscriber
	Deduper   Deduper
	Templates TemplateSource
	Auth      Authenticator
	Logger    *log.Logger

	// ImportConcurrency bounds the parallel saves of one import batch.
	ImportConcurrency int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Register wires up all API routes on the provided Echo instance. Project update
// notifications are consumed until ctx is done.
func Register(ctx context.Context, e *echo.Echo, d *Deps) {
	if d.Logger == nil {
		panic("Logger is not initialized")
	}
	if d.Templates == nil {
		d.Templates = staticTemplates(domain.DefaultTemplates())
	}
	broker := newProjectBroker()
	if d.Updates != nil {
		go d.Updates.Subscribe(ctx, broker.handle)
	}

	e.GET("/healthz", healthz())

	g := e.Group("/api", RequireAuth(d.Auth))
	g.GET("/projects", listProjects(d))
	g.POST("/projects", createProject(d))
	g.GET("/projects/:id", getProject(d))
	g.PATCH("/projects/:id", updateProject(d))
	g.DELETE("/projects/:id", deleteProject(d))
	g.POST("/projects/:id/notes", addNote(d))
	g.DELETE("/projects/:id/notes/:noteId", deleteNote(d))

	g.GET("/projects/:id/board", getBoard(d))
	g.GET("/projects/:id/stream", streamProject(d, broker))
	g.PUT("/projects/:id/tasks", mutateTasks(d, "replace", replaceTasks))
	g.POST("/projects/:id/tasks", mutateTasks(d, "add", addTask))
	g.DELETE("/projects/:id/tasks/:taskId", mutateTasks(d, "delete", deleteTask))
	g.POST("/projects/:id/tasks/:taskId/move", mutateTasks(d, "move", moveTask))
	g.POST("/projects/:id/tasks/:taskId/stage", mutateTasks(d, "stage", stageTask))
	g.POST("/projects/:id/tasks/:taskId/complete", mutateTasks(d, "complete", completeTask))
	g.POST("/projects/:id/tasks/:taskId/assign", mutateTasks(d, "assign", assignTask))

	g.GET("/team", listMembers(d))
	g.POST("/team", createMember(d))
	g.PATCH("/team/:id", updateMember(d))
	g.DELETE("/team/:id", deleteMember(d))

	g.POST("/import", importProjects(d))
	g.GET("/import/template", importTemplate())
	g.GET("/stats", getStats(d))
}

type staticTemplates domain.Templates

func (s staticTemplates) Templates() domain.Templates { return domain.Templates(s) }

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}

// storeError maps storage errors onto responses.
func (d *Deps) storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		return fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMissingField):
		return fail(c, http.StatusBadRequest, err.Error())
	}
	d.Logger.WithError(err).WithField("route", c.Path()).Error("storage request failed")
	return fail(c, http.StatusInternalServerError, "storage unavailable")
}

func listProjects(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		projects, err := d.Store.ListProjects(c.Request().Context())
		if err != nil {
			return d.storeError(c, err)
		}
		projects = domain.FilterProjects(projects, domain.ProjectFilter{
			Status:     c.QueryParam("status"),
			ClientType: c.QueryParam("clientType"),
			Sort:       c.QueryParam("sort"),
		})
		today := d.now()
		views := make([]projectView, len(projects))
		for i, p := range projects {
			views[i] = newProjectView(p, today)
		}
		return c.JSON(http.StatusOK, views)
	}
}

func createProject(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createProjectRequest
		if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}
		now := d.now().UTC()
		ct := domain.ParseClientType(req.ClientType)
		p := domain.Project{
			ID:           uuid.NewString(),
			Name:         strings.TrimSpace(req.Name),
			Client:       strings.TrimSpace(req.Client),
			ClientType:   ct,
			StartDate:    strings.TrimSpace(req.StartDate),
			DueDate:      strings.TrimSpace(req.DueDate),
			Status:       domain.ParseProjectStatus(req.Status),
			Priority:     domain.ParsePriority(req.Priority),
			Tasks:        d.Templates.Templates().SeedTasks(ct, req.Tasks),
			AssignedTeam: req.AssignedTeam,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := p.Validate(); err != nil {
			return fail(c, http.StatusBadRequest, "name, client, startDate and dueDate are required")
		}
		p = p.Normalize()
		if err := d.Store.CreateProject(c.Request().Context(), p); err != nil {
			return d.storeError(c, err)
		}
		return c.JSON(http.StatusCreated, newProjectView(p, now))
	}
}

func getProject(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := d.Store.GetProject(c.Request().Context(), c.Param("id"))
		if err != nil {
			return d.storeError(c, err)
		}
		return c.JSON(http.StatusOK, newProjectView(p, d.now()))
	}
}

func updateProject(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateProjectRequest
		if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}
		ctx := c.Request().Context()
		p, err := d.Store.GetProject(ctx, c.Param("id"))
		if err != nil {
			return d.storeError(c, err)
		}
		setTrimmed(&p.Name, req.Name)
		setTrimmed(&p.Client, req.Client)
		setTrimmed(&p.StartDate, req.StartDate)
		setTrimmed(&p.DueDate, req.DueDate)
		if req.ClientType != nil {
			p.ClientType = domain.ParseClientType(*req.ClientType)
		}
		if req.Status != nil {
			p.Status = domain.ParseProjectStatus(*req.Status)
		}
		if req.Priority != nil {
			p.Priority = domain.ParsePriority(*req.Priority)
		}
		if req.AssignedTeam != nil {
			p.AssignedTeam = *req.AssignedTeam
		}
		if err := p.Validate(); err != nil {
			return fail(c, http.StatusBadRequest, "name, client, startDate and dueDate are required")
		}
		p.UpdatedAt = d.now().UTC()
		if err := d.Store.SaveProject(ctx, p); err != nil {
			return d.storeError(c, err)
		}
		return c.JSON(http.StatusOK, newProjectView(p, d.now()))
	}
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func deleteProject(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := d.Store.DeleteProject(c.Request().Context(), c.Param("id")); err != nil {
			return d.storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func addNote(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req noteRequest
		if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}
		ctx := c.Request().Context()
		p, err := d.Store.GetProject(ctx, c.Param("id"))
		if err != nil {
			return d.storeError(c, err)
		}
		author := strings.TrimSpace(req.AuthorID)
		if author == "" {
			author = userIDFrom(c)
		}
		if !p.AddNote(uuid.NewString(), req.Content, author, d.now()) {
			return c.JSON(http.StatusOK, newProjectView(p, d.now()))
		}
		p.UpdatedAt = d.now().UTC()
		if err := d.Store.SaveProject(ctx, p); err != nil {
			return d.storeError(c, err)
		}
		return c.JSON(http.StatusCreated, newProjectView(p, d.now()))
	}
}

func deleteNote(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		p, err := d.Store.GetProject(ctx, c.Param("id"))
		if err != nil {
			return d.storeError(c, err)
		}
		if !p.DeleteNote(c.Param("noteId")) {
			return fail(c, http.StatusNotFound, "note not found")
		}
		p.UpdatedAt = d.now().UTC()
		if err := d.Store.SaveProject(ctx, p); err != nil {
			return d.storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getStats(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		projects, err := d.Store.ListProjects(c.Request().Context())
		if err != nil {
			return d.storeError(c, err)
		}
		return c.JSON(http.StatusOK, domain.ComputeStats(projects))
	}
}

func listMembers(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		members, err := d.Store.ListMembers(c.Request().Context())
		if err != nil {
			return d.storeError(c, err)
		}
		domain.SortMembers(members)
		return c.JSON(http.StatusOK, members)
	}
}

func applyMember(m *domain.TeamMember, req memberRequest) {
	setTrimmed(&m.Name, req.Name)
	setTrimmed(&m.Role, req.Role)
	setTrimmed(&m.Email, req.Email)
	setTrimmed(&m.Avatar, req.Avatar)
}

func createMember(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req memberRequest
		if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}
		m := domain.TeamMember{ID: uuid.NewString()}
		applyMember(&m, req)
		if err := m.Validate(); err != nil {
			return fail(c, http.StatusBadRequest, "name is required")
		}
		if err := d.Store.SaveMember(c.Request().Context(), m); err != nil {
			return d.storeError(c, err)
		}
		return c.JSON(http.StatusCreated, m)
	}
}

func updateMember(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req memberRequest
		if err := decodeBody(c, smallBodyMaxSize, &req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}
		ctx := c.Request().Context()
		members, err := d.Store.ListMembers(ctx)
		if err != nil {
			return d.storeError(c, err)
		}
		m, ok := domain.IndexMembers(members)[c.Param("id")]
		if !ok {
			return fail(c, http.StatusNotFound, "not found")
		}
		applyMember(&m, req)
		if err := m.Validate(); err != nil {
			return fail(c, http.StatusBadRequest, "name is required")
		}
		if err := d.Store.SaveMember(ctx, m); err != nil {
			return d.storeError(c, err)
		}
		return c.JSON(http.StatusOK, m)
	}
}

func deleteMember(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := d.Store.DeleteMember(c.Request().Context(), c.Param("id")); err != nil {
			return d.storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
