package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sourcegraph/conc/pool"
	log "github.com/sirupsen/logrus"

	"portal/csvimport"
	"portal/domain"
)

const (
	headerIdempotencyKey     = "Idempotency-Key"
	defaultImportConcurrency = 8
)

func importProjects(d *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		req.Body = http.MaxBytesReader(c.Response(), req.Body, importMaxSize)
		fh, err := c.FormFile("file")
		if err != nil {
			return fail(c, http.StatusBadRequest, "multipart field file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return fail(c, http.StatusBadRequest, "unreadable upload")
		}
		defer f.Close()

		projects, err := csvimport.Parse(fh.Filename, f, d.Templates.Templates())
		if err != nil {
			return fail(c, http.StatusBadRequest, err.Error())
		}

		ctx := req.Context()
		userID := userIDFrom(c)
		key := strings.TrimSpace(req.Header.Get(headerIdempotencyKey))
		if key != "" && d.Deduper != nil {
			added, err := d.Deduper.Add(ctx, userID, key)
			if err != nil {
				d.Logger.WithError(err).Error("import dedupe check failed")
				return fail(c, http.StatusInternalServerError, "import unavailable")
			}
			if !added {
				return fail(c, http.StatusConflict, "import already processed")
			}
		}

		now := d.now().UTC()
		for i := range projects {
			projects[i].ID = uuid.NewString()
			projects[i].CreatedAt = now
			projects[i].UpdatedAt = now
		}
		if created, err := d.saveBatch(ctx, projects); err != nil {
			d.rollbackImport(ctx, userID, key, created)
			return d.storeError(c, err)
		}
		d.Logger.WithField("user", userID).Infof("imported %d projects from %s", len(projects), fh.Filename)
		return c.JSON(http.StatusCreated, importResponse{Imported: len(projects), Projects: projects})
	}
}

// saveBatch creates projects with bounded concurrency, stopping at the first
// failure. It returns the ids of the projects that were stored.
func (d *Deps) saveBatch(ctx context.Context, projects []domain.Project) ([]string, error) {
	limit := d.ImportConcurrency
	if limit <= 0 {
		limit = defaultImportConcurrency
	}
	var (
		mu      sync.Mutex
		created []string
	)
	p := pool.New().WithMaxGoroutines(limit).WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, proj := range projects {
		proj := proj
		p.Go(func(ctx context.Context) error {
			if err := d.Store.CreateProject(ctx, proj); err != nil {
				return err
			}
			mu.Lock()
			created = append(created, proj.ID)
			mu.Unlock()
			return nil
		})
	}
	err := p.Wait()
	return created, err
}

// rollbackImport deletes the projects a failed import already stored and then
// releases its idempotency key, if any. When a delete fails the key is kept, so a
// retry with the same key is refused instead of duplicating the stored rows.
func (d *Deps) rollbackImport(ctx context.Context, userID, key string, created []string) {
	ctx = context.WithoutCancel(ctx)
	logger := d.Logger.WithFields(log.Fields{"user": userID, "key": key})
	for _, id := range created {
		if err := d.Store.DeleteProject(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.WithError(err).WithField("project", id).Error("import rollback failed, keeping idempotency key")
			return
		}
	}
	if key == "" || d.Deduper == nil {
		return
	}
	if err := d.Deduper.Remove(ctx, userID, key); err != nil {
		logger.WithError(err).Error("dedupe rollback failed")
	}
}

func importTemplate() echo.HandlerFunc {
	return func(c echo.Context) error {
		if strings.EqualFold(c.QueryParam("format"), "xlsx") {
			data, err := csvimport.SampleXLSX()
			if err != nil {
				return fail(c, http.StatusInternalServerError, "template unavailable")
			}
			name := strings.TrimSuffix(csvimport.SampleFileName, ".csv") + ".xlsx"
			c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
			return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+csvimport.SampleFileName+`"`)
		return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(csvimport.SampleCSV))
	}
}
