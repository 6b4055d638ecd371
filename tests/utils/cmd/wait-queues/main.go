// Command wait-queues blocks until the portal's storage queues stay empty, so
// scenario runs start after the projector has caught up.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/alecthomas/kingpin/v2"
	log "github.com/sirupsen/logrus"
)

var (
	app            = kingpin.New("wait-queues", "Wait for portal storage queues to drain.")
	connStr        = app.Flag("connection-string", "Storage connection string.").Envar("STORAGE_CONNECTION_STRING").Required().String()
	timeout        = app.Flag("timeout", "Maximum time to wait.").Default("2m").Duration()
	interval       = app.Flag("interval", "Polling interval.").Default("2s").Duration()
	stableRequired = app.Flag("stable", "Consecutive empty polls required per queue.").Default("3").Int()
	queues         = app.Flag("queue", "Queue to monitor (repeatable).").Envar("WRITES_QUEUE").Default("task-writes").Strings()
)

// pendingCounter reports the approximate number of messages waiting in a queue.
type pendingCounter interface {
	Pending(ctx context.Context) (int32, error)
}

type azureQueue struct {
	client *azqueue.QueueClient
}

func (q azureQueue) Pending(ctx context.Context) (int32, error) {
	resp, err := q.client.GetProperties(ctx, nil)
	if err != nil {
		return 0, err
	}
	if resp.ApproximateMessagesCount == nil {
		return 0, nil
	}
	return *resp.ApproximateMessagesCount, nil
}

func newQueueClient(connStr, name string) (*azqueue.QueueClient, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    30 * time.Second,
				RetryDelay:    time.Second,
				MaxRetryDelay: 5 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	return azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
}

// waitDrained polls every queue until each has reported zero pending messages
// stableRequired times in a row.
func waitDrained(ctx context.Context, interval time.Duration, stableRequired int, queues map[string]pendingCounter) error {
	if stableRequired < 1 {
		stableRequired = 1
	}
	stable := make(map[string]int, len(queues))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithField("queues", len(queues)).Info("waiting for queues to drain")
	for {
		done := true
		for name, q := range queues {
			n, err := q.Pending(ctx)
			if err != nil {
				return fmt.Errorf("get properties for %s: %w", name, err)
			}
			if n > 0 {
				log.WithFields(log.Fields{"queue": name, "pending": n}).Info("queue not drained")
				stable[name] = 0
				done = false
				continue
			}
			stable[name]++
			if stable[name] < stableRequired {
				done = false
			}
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	log.SetOutput(os.Stderr)

	clients := make(map[string]pendingCounter, len(*queues))
	for _, name := range *queues {
		c, err := newQueueClient(*connStr, name)
		if err != nil {
			log.Fatalf("client for %s: %v", name, err)
		}
		clients[name] = azureQueue{client: c}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := waitDrained(ctx, *interval, *stableRequired, clients); err != nil {
		log.Fatalf("queue wait failed: %v", err)
	}
	log.Info("all queues drained")
}
