// Package queue consumes extraction jobs from a Redis-backed queue and
// publishes job lifecycle events for interested subscribers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/docstream/pdfextract-worker/internal/assemble"
	"github.com/docstream/pdfextract-worker/internal/config"
	"github.com/docstream/pdfextract-worker/internal/logging"
)

// TaskTypeExtract is the asynq task type for one extraction job.
const TaskTypeExtract = "pdf:extract"

// ExtractTask is the payload of a queued extraction job.
type ExtractTask struct {
	JobID     string `json:"job_id"`
	Source    string `json:"source"`
	StartPage int    `json:"start_page,omitempty"`
	EndPage   int    `json:"end_page,omitempty"`
}

// Runner executes one extraction run. Satisfied by the processor; tests
// substitute fakes.
type Runner interface {
	Run(ctx context.Context, opts config.RunOptions) (*assemble.Manifest, error)
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	QueueName string
	Config    *config.Config
	Runner    Runner
	Events    *Publisher // optional
}

// Consumer pulls extraction jobs off the queue and runs them.
type Consumer struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	runner Runner
	events *Publisher
	cfg    *ConsumerConfig
	log    *logging.Logger
}

// NewConsumer creates a queue consumer.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("Config is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "pdfextract"
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	log := logging.NewLogger("queue")

	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Config.WorkerConcurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff capped at one minute.
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("task processing error", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client: client,
		server: server,
		mux:    mux,
		runner: cfg.Runner,
		events: cfg.Events,
		cfg:    cfg,
		log:    log,
	}
	mux.HandleFunc(TaskTypeExtract, consumer.handleExtract)

	return consumer, nil
}

// Enqueue submits one extraction job.
func (c *Consumer) Enqueue(ctx context.Context, task ExtractTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	_, err = c.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeExtract, payload), asynq.Queue(c.cfg.QueueName))
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Start runs the consumer until Stop is called.
func (c *Consumer) Start() error {
	c.log.Info("queue consumer starting",
		"queue", c.cfg.QueueName, "concurrency", c.cfg.Config.WorkerConcurrency)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.log.Error("queue consumer terminated", "error", err)
		}
	}()
	return nil
}

// Stop shuts the consumer down gracefully, letting in-flight jobs finish.
func (c *Consumer) Stop() error {
	c.log.Info("queue consumer stopping")
	c.server.Shutdown()
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close queue client: %w", err)
	}
	return nil
}

// handleExtract processes one queued extraction job under the configured
// per-job timeout.
func (c *Consumer) handleExtract(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var job ExtractTask
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job payload: %w", err)
	}

	c.log.Info("job starting", "job", job.JobID, "source", job.Source)
	c.publish(ctx, "job:started", job.JobID, nil)

	timeout := 30 * time.Minute
	if c.cfg.Config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.cfg.Config.ProcessingTimeout) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := c.cfg.Config.RunOptionsFrom(job.Source)
	if job.StartPage > 0 {
		opts.StartPage = job.StartPage
	}
	if job.EndPage > 0 {
		opts.EndPage = job.EndPage
	}
	opts.Progress = func(done, total int) {
		c.publish(ctx, "job:progress", job.JobID, map[string]interface{}{
			"pages_done":  done,
			"pages_total": total,
		})
	}

	manifest, err := c.runner.Run(runCtx, opts)
	duration := time.Since(start)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			c.log.Error("job timed out", "job", job.JobID, "after", duration, "timeout", timeout)
			c.publish(ctx, "job:failed", job.JobID, map[string]interface{}{
				"error": fmt.Sprintf("timed out after %v", timeout),
			})
			return fmt.Errorf("job %s timed out: %w", job.JobID, err)
		}

		c.log.Error("job failed", "job", job.JobID, "after", duration, "error", err)
		c.publish(ctx, "job:failed", job.JobID, map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("job %s failed: %w", job.JobID, err)
	}

	c.log.Info("job completed",
		"job", job.JobID,
		"session", manifest.SessionID,
		"pages", manifest.Pages.PagesProcessed,
		"duration", duration)
	c.publish(ctx, "job:completed", job.JobID, map[string]interface{}{
		"session_id":       manifest.SessionID,
		"output_dir":       manifest.OutputDir,
		"pages_processed":  manifest.Pages.PagesProcessed,
		"pages_ocr":        manifest.Pages.PagesOCR,
		"images_extracted": manifest.Pages.ImagesExtracted,
		"tables_extracted": manifest.Pages.TablesExtracted,
		"errors":           len(manifest.Errors),
		"duration_ms":      duration.Milliseconds(),
	})

	return nil
}

func (c *Consumer) publish(ctx context.Context, event, jobID string, fields map[string]interface{}) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishEvent(ctx, event, jobID, fields); err != nil {
		c.log.Warn("failed to publish job event", "event", event, "job", jobID, "error", err)
	}
}
