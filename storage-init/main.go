package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

const queueAlreadyExists = "QueueAlreadyExists"

type resource struct {
	kind string
	name string
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		log.Fatalf("table service: %v", err)
	}

	create := func(ctx context.Context, r resource) error {
		switch r.kind {
		case "table":
			_, err := svc.NewClient(r.name).CreateTable(ctx, nil)
			return ignoreExisting(err, string(aztables.TableAlreadyExists))
		case "queue":
			q, err := azqueue.NewQueueClientFromConnectionString(connStr, r.name, nil)
			if err != nil {
				return err
			}
			_, err = q.Create(ctx, nil)
			return ignoreExisting(err, queueAlreadyExists)
		}
		return fmt.Errorf("unknown resource kind %q", r.kind)
	}

	if err := ensureAll(context.Background(), resources(os.Getenv), create); err != nil {
		log.Fatalf("storage init: %v", err)
	}
	log.Info("storage init complete")
}

// resources lists the tables and queues the portal services use, named by the
// same variables and defaults the services read.
func resources(getenv func(string) string) []resource {
	name := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	return []resource{
		{kind: "table", name: name("PROJECTS_TABLE", "Projects")},
		{kind: "table", name: name("MEMBERS_TABLE", "TeamMembers")},
		{kind: "queue", name: name("WRITES_QUEUE", "task-writes")},
	}
}

// ensureAll creates every resource concurrently and returns all failures.
func ensureAll(ctx context.Context, rs []resource, create func(context.Context, resource) error) error {
	p := pool.New().WithErrors().WithContext(ctx)
	for _, r := range rs {
		r := r
		p.Go(func(ctx context.Context) error {
			if err := create(ctx, r); err != nil {
				return fmt.Errorf("%s %s: %w", r.kind, r.name, err)
			}
			log.WithFields(log.Fields{"kind": r.kind, "name": r.name}).Info("ready")
			return nil
		})
	}
	return p.Wait()
}

func ignoreExisting(err error, code string) error {
	var respErr *azcore.ResponseError
	if err == nil || (errors.As(err, &respErr) && respErr.ErrorCode == code) {
		return nil
	}
	return err
}
