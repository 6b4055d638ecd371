package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"portal/domain"
)

const streamKeepAlive = 25 * time.Second

// projectBroker fans project update notifications out to the event streams
// watching that project.
type projectBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newProjectBroker() *projectBroker {
	return &projectBroker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *projectBroker) subscribe(projectID string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[chan struct{}]struct{})
	}
	b.subs[projectID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *projectBroker) unsubscribe(projectID string, ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs[projectID], ch)
	if len(b.subs[projectID]) == 0 {
		delete(b.subs, projectID)
	}
	b.mu.Unlock()
}

// handle wakes every stream of the updated project. A stream that has not yet
// consumed its previous wake-up is left as is; it reloads the latest state anyway.
func (b *projectBroker) handle(u domain.ProjectUpdate) {
	b.mu.Lock()
	for ch := range b.subs[u.ProjectID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

func streamProject(d *Deps, broker *projectBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")
		if _, err := d.Store.GetProject(ctx, id); err != nil {
			return d.storeError(c, err)
		}

		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.Header().Set("X-Accel-Buffering", "no")
		flusher, ok := res.Writer.(http.Flusher)
		if !ok {
			return fail(c, http.StatusInternalServerError, "stream unsupported")
		}
		res.WriteHeader(http.StatusOK)

		ch := broker.subscribe(id)
		defer broker.unsubscribe(id, ch)
		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		for {
			p, err := d.Store.GetProject(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				d.Logger.WithError(err).WithField("project", id).Warn("stream reload failed")
				return nil
			}
			data, err := sonic.Marshal(tasksResponse{Tasks: p.Tasks})
			if err != nil {
				return err
			}
			if _, err := res.Write([]byte("event: tasks\ndata: ")); err != nil {
				return nil
			}
			if _, err := res.Write(data); err != nil {
				return nil
			}
			if _, err := res.Write([]byte("\n\n")); err != nil {
				return nil
			}
			flusher.Flush()

		wait:
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ch:
					break wait
				case <-keepAlive.C:
					if _, err := res.Write([]byte(": keep-alive\n\n")); err != nil {
						return nil
					}
					flusher.Flush()
				}
			}
		}
	}
}
