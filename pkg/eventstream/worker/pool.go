// Package worker provides an asynchronous worker pool that publishes
// conversation events through a wrapped eventstream.Publisher.
//
// The pool decouples event publishing from the stream consumer so a slow
// broker never holds up rendering decoded messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/shopstream/pkg/eventstream"
	"github.com/papercomputeco/shopstream/pkg/logger"
)

var (
	// A single worker keeps events in publish order.
	defaultNumWorkers   uint = 1
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 10 * time.Second
)

// Job is a unit of work for the worker pool. Exactly one event is set.
type Job struct {
	Message      *eventstream.MessageReceivedEvent
	Conversation *eventstream.ConversationEndedEvent
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives the events. It is closed by Pool.Close.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds a single publish (defaults to 10s).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes events asynchronously via a worker pool. It implements
// eventstream.Publisher.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ eventstream.Publisher = (*Pool)(nil)

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed", jobAttrs(job)...)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", jobAttrs(job)...)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", jobAttrs(job)...)
		return false
	}
}

// PublishMessage enqueues a message event. It fails only when the event is
// nil or the job was dropped.
func (p *Pool) PublishMessage(_ context.Context, event *eventstream.MessageReceivedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if !p.Enqueue(Job{Message: event}) {
		return ErrDropped
	}
	return nil
}

// PublishConversation enqueues a conversation summary event.
func (p *Pool) PublishConversation(_ context.Context, event *eventstream.ConversationEndedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if !p.Enqueue(Job{Conversation: event}) {
		return ErrDropped
	}
	return nil
}

// Close stops accepting jobs, waits for in-flight jobs to drain and then
// closes the wrapped publisher.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.config.Publisher.Close()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("publish worker stopped", "worker_id", id)
}

// processJob publishes one event. Errors are logged; the consumer has
// already moved on.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	var err error
	switch {
	case job.Message != nil:
		err = p.config.Publisher.PublishMessage(ctx, job.Message)
	case job.Conversation != nil:
		err = p.config.Publisher.PublishConversation(ctx, job.Conversation)
	default:
		return
	}

	if err != nil {
		p.logger.Error("async publish failed", append(jobAttrs(job), "error", err)...)
		return
	}
	p.logger.Debug("event published", jobAttrs(job)...)
}

func jobAttrs(job Job) []any {
	switch {
	case job.Message != nil:
		return []any{
			"event_type", job.Message.EventType,
			"conversation_id", job.Message.ConversationID,
			"seq", job.Message.Seq,
		}
	case job.Conversation != nil:
		return []any{
			"event_type", job.Conversation.EventType,
			"conversation_id", job.Conversation.ConversationID,
		}
	default:
		return nil
	}
}
