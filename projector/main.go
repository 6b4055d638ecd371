package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"portal/portal-api/storage"
)

type config struct {
	StorageConnectionString string        `envconfig:"STORAGE_CONNECTION_STRING" required:"true"`
	ProjectsTable           string        `envconfig:"PROJECTS_TABLE" default:"Projects"`
	MembersTable            string        `envconfig:"MEMBERS_TABLE" default:"TeamMembers"`
	WritesQueue             string        `envconfig:"WRITES_QUEUE" default:"task-writes"`
	RedisConnectionString   string        `envconfig:"REDIS_CONNECTION_STRING" required:"true"`
	UpdatesChannel          string        `envconfig:"UPDATES_CHANNEL" default:"project-updates"`
	CacheTTL                time.Duration `envconfig:"CACHE_TTL" default:"24h"`
	MaxDeliveries           int64         `envconfig:"MAX_DELIVERIES" default:"10"`
	IdleWait                time.Duration `envconfig:"IDLE_WAIT" default:"1s"`
	Debug                   bool          `envconfig:"DEBUG"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("projector starting")

	tables, err := storage.NewTables(cfg.StorageConnectionString, cfg.ProjectsTable, cfg.MembersTable)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	queue, err := newAzureQueue(cfg.StorageConnectionString, cfg.WritesQueue)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}
	rc := redis.NewClient(storage.RedisOptions(cfg.RedisConnectionString))
	defer rc.Close()

	p := &processor{
		store:      tables,
		cache:      storage.NewCache(tables, rc, cfg.CacheTTL),
		updates:    storage.NewUpdates(rc, cfg.UpdatesChannel),
		logger:     log.StandardLogger(),
		maxDeliver: cfg.MaxDeliveries,
		idleWait:   cfg.IdleWait,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	p.run(ctx, queue)
	log.Info("projector stopped")
}
