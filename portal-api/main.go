package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"portal/domain"
	"portal/portal-api/api"
	"portal/portal-api/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("ignoring .env: %v", err)
	}
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := checkWriteMode(backendKind(), writeMode()); err != nil {
		log.Fatal(err)
	}
	backend, closeBackend := openBackend(ctx)
	defer closeBackend()

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(storage.RedisOptions(redisConn))
	defer rc.Close()

	cache := storage.NewCache(backend, rc, api.EnvDur("CACHE_TTL", 24*time.Hour))
	updates := storage.NewUpdates(rc, api.EnvString("UPDATES_CHANNEL", "project-updates"))
	deduper := api.NewRedisDeduper(rc, api.EnvDur("DEDUPER_TTL", 24*time.Hour))

	write, notifier := writePath(backend, updates)
	outbox := api.NewOutbox(api.OutboxConfigFromEnv(), write, notifier, logger)

	templates, err := api.NewTemplateStore(os.Getenv("TASK_TEMPLATES_FILE"), logger)
	if err != nil {
		log.Fatalf("task templates: %v", err)
	}
	if err := templates.Watch(ctx); err != nil {
		log.WithError(err).Warn("task templates will not be reloaded")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	e.Use(api.GzipRequestMiddleware())
	e.Use(api.RequestLogger(logger))

	api.Register(ctx, e, &api.Deps{
		Store:             cache,
		Cache:             cache,
		Outbox:            outbox,
		Updates:           updates,
		Deduper:           deduper,
		Templates:         templates,
		Auth:              newAuth(),
		Logger:            logger,
		ImportConcurrency: api.EnvInt("IMPORT_CONCURRENCY", 8),
	})

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}
	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	outbox.Close()
	log.Info("portal api stopped")
}

func backendKind() string {
	return strings.ToLower(api.EnvString("STORAGE_BACKEND", "tables"))
}

func writeMode() string {
	return strings.ToLower(api.EnvString("WRITE_MODE", "direct"))
}

// checkWriteMode rejects queue mode on any backend but tables: the projector
// applies queued writes to Azure Tables only.
func checkWriteMode(backend, mode string) error {
	switch backend {
	case "tables", "datastore":
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", backend)
	}
	switch mode {
	case "direct":
		return nil
	case "queue":
		if backend != "tables" {
			return fmt.Errorf("WRITE_MODE=queue requires STORAGE_BACKEND=tables, got %q", backend)
		}
		return nil
	}
	return fmt.Errorf("unsupported WRITE_MODE %q", mode)
}

// openBackend selects the document store with STORAGE_BACKEND (tables or
// datastore).
func openBackend(ctx context.Context) (storage.Backend, func()) {
	switch backendKind() {
	case "datastore":
		projectID := os.Getenv("DATASTORE_PROJECT_ID")
		if projectID == "" {
			log.Fatal("missing DATASTORE_PROJECT_ID")
		}
		ds, err := storage.NewDatastore(ctx, projectID)
		if err != nil {
			log.Fatalf("datastore: %v", err)
		}
		return ds, func() { _ = ds.Close() }
	case "tables":
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		if connStr == "" {
			log.Fatal("missing storage config")
		}
		tables, err := storage.NewTables(connStr,
			api.EnvString("PROJECTS_TABLE", "Projects"),
			api.EnvString("MEMBERS_TABLE", "TeamMembers"))
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		return tables, func() {}
	default:
		log.Fatalf("unsupported STORAGE_BACKEND %q", os.Getenv("STORAGE_BACKEND"))
	}
	return nil, nil
}

// writePath builds the outbox write function. In queue mode the projector
// publishes update notifications once it has applied a write.
func writePath(backend storage.Backend, updates *storage.Updates) (api.WriteFunc, api.Notifier) {
	switch writeMode() {
	case "queue":
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		queueName := api.EnvString("WRITES_QUEUE", "task-writes")
		if connStr == "" {
			log.Fatal("missing storage config for WRITE_MODE=queue")
		}
		qw, err := storage.NewQueueWriter(connStr, queueName)
		if err != nil {
			log.Fatalf("queue: %v", err)
		}
		return qw.EnqueueTasksWrite, nil
	case "direct":
		return func(ctx context.Context, w domain.TasksWrite) error {
			applied, err := backend.ApplyTasks(ctx, w)
			if err == nil && !applied {
				log.WithField("project", w.ProjectID).Debug("newer task write already stored")
			}
			return err
		}, updates
	default:
		log.Fatalf("unsupported WRITE_MODE %q", os.Getenv("WRITE_MODE"))
	}
	return nil, nil
}

func newAuth() *api.Auth {
	allow := api.ParseAllowList(os.Getenv("ALLOWED_EMAILS"), os.Getenv("ALLOWED_DOMAINS"))
	if os.Getenv("AUTH0_TEST_MODE") == "1" || os.Getenv("LOCAL_AUTH_MODE") != "" {
		return api.NewAuth(nil, os.Getenv("AUTH_AUDIENCE"), os.Getenv("AUTH_ISSUER"), allow)
	}

	audience := os.Getenv("AUTH_AUDIENCE")
	idp := os.Getenv("AUTH_DOMAIN")
	if audience == "" || idp == "" {
		log.Fatal("missing identity provider config")
	}
	jwks, err := keyfunc.Get(fmt.Sprintf("https://%s/.well-known/jwks.json", idp), keyfunc.Options{
		RefreshInterval: time.Hour,
		RefreshErrorHandler: func(err error) {
			log.WithError(err).Warn("jwks refresh failed")
		},
	})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	issuer := api.EnvString("AUTH_ISSUER", "https://"+idp+"/")
	return api.NewAuth(jwks, audience, issuer, allow)
}
