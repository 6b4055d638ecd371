package api

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"

	"portal/domain"
)

var (
	errOutboxSaturated = errors.New("task outbox is saturated")
	errOutboxClosed    = errors.New("task outbox is closed")
)

// OutboxConfig sizes the task write outbox.
type OutboxConfig struct {
	Shards         int
	ShardBuffer    int
	WriteTimeout   time.Duration
	HandoffTimeout time.Duration
	MaxAttempts    int
	RetryInitial   time.Duration
	RetryMax       time.Duration
}

// OutboxConfigFromEnv reads OUTBOX_* variables.
func OutboxConfigFromEnv() OutboxConfig {
	cfg := OutboxConfig{
		Shards:         EnvInt("OUTBOX_SHARDS", 16),
		ShardBuffer:    EnvInt("OUTBOX_BUFFER", 256),
		WriteTimeout:   EnvDur("OUTBOX_WRITE_TIMEOUT", 30*time.Second),
		HandoffTimeout: EnvDur("OUTBOX_HANDOFF_TIMEOUT", 25*time.Millisecond),
		MaxAttempts:    EnvInt("OUTBOX_MAX_ATTEMPTS", 5),
		RetryInitial:   EnvDur("OUTBOX_RETRY_INITIAL", 250*time.Millisecond),
		RetryMax:       EnvDur("OUTBOX_RETRY_MAX", 10*time.Second),
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.ShardBuffer <= 0 {
		cfg.ShardBuffer = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return cfg
}

// Outbox persists task collection writes in the background. Writes for one
// project always land on the same shard, so they reach the store in the order
// they were issued. A failed write is retried with backoff and then logged and
// dropped; the collection already returned to the client is never rolled back.
type Outbox struct {
	cfg      OutboxConfig
	write    WriteFunc
	notifier Notifier
	logger   *log.Logger

	shards []chan domain.TasksWrite
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewOutbox starts the shard workers. notifier may be nil when the write path
// publishes updates itself, as the queue projector does.
func NewOutbox(cfg OutboxConfig, write WriteFunc, notifier Notifier, logger *log.Logger) *Outbox {
	if write == nil {
		panic("outbox write func is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	o := &Outbox{
		cfg:      cfg,
		write:    write,
		notifier: notifier,
		logger:   logger,
		shards:   make([]chan domain.TasksWrite, cfg.Shards),
	}
	for i := range o.shards {
		o.shards[i] = make(chan domain.TasksWrite, cfg.ShardBuffer)
		o.wg.Add(1)
		go o.worker(i, o.shards[i])
	}
	logger.Infof("task outbox started, shards: %d, buffer: %d, handoff: %v", cfg.Shards, cfg.ShardBuffer, cfg.HandoffTimeout)
	return o
}

func (o *Outbox) shardFor(projectID string) int {
	return int(xxhash.Sum64String(projectID) % uint64(len(o.shards)))
}

// Submit hands w to its project's shard, waiting at most the handoff timeout
// for buffer space.
func (o *Outbox) Submit(w domain.TasksWrite) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return errOutboxClosed
	}
	ch := o.shards[o.shardFor(w.ProjectID)]

	select {
	case ch <- w:
		return nil
	default:
	}
	if o.cfg.HandoffTimeout <= 0 {
		return errOutboxSaturated
	}
	timer := time.NewTimer(o.cfg.HandoffTimeout)
	defer timer.Stop()
	select {
	case ch <- w:
		return nil
	case <-timer.C:
		return errOutboxSaturated
	}
}

// WriteNow persists w on the caller's goroutine. Handlers fall back to it when
// the outbox is saturated.
func (o *Outbox) WriteNow(ctx context.Context, w domain.TasksWrite) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.WriteTimeout)
	defer cancel()
	if err := o.write(ctx, w); err != nil {
		return err
	}
	o.notify(ctx, w)
	return nil
}

// Close drains the queued writes and stops the workers.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for _, ch := range o.shards {
		close(ch)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Outbox) worker(id int, ch <-chan domain.TasksWrite) {
	defer o.wg.Done()
	for w := range ch {
		o.deliver(id, w)
	}
}

func (o *Outbox) deliver(shard int, w domain.TasksWrite) {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.WriteTimeout)
		err := o.write(ctx, w)
		if err == nil {
			o.notify(ctx, w)
			cancel()
			return
		}
		cancel()

		entry := o.logger.WithError(err).WithFields(log.Fields{
			"project": w.ProjectID,
			"shard":   shard,
			"attempt": attempt,
			"tasks":   len(w.Tasks),
		})
		if attempt >= o.cfg.MaxAttempts || errors.Is(err, domain.ErrNotFound) {
			entry.Error("task write dropped")
			return
		}
		entry.Warn("task write failed, retrying")
		time.Sleep(exponentialBackoff(attempt, o.cfg.RetryInitial, o.cfg.RetryMax))
	}
}

func (o *Outbox) notify(ctx context.Context, w domain.TasksWrite) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(ctx, w.ProjectID, w.Timestamp); err != nil {
		o.logger.WithError(err).WithField("project", w.ProjectID).Warn("publish project update failed")
	}
}

func exponentialBackoff(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	if attempt <= 0 {
		return initial
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	jitter := 0.2 * backoff
	return time.Duration(backoff + (rand.Float64()-0.5)*2*jitter)
}
