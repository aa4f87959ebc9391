package async

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskProcessReceipt is the asynq task type for one receipt file.
const TaskProcessReceipt = "receipt:process"

const defaultRedisQueue = "receipts"

// RedisQueue hands jobs to asynq so several daemons can share one Redis.
// Tasks are never retried: a retry would open a second receipt job for the
// same file.
type RedisQueue struct {
	client  *asynq.Client
	server  *asynq.Server
	handler *taskHandler
	queue   string
	timeout time.Duration
	logger  *slog.Logger
}

// RedisConfig configures NewRedisQueue.
type RedisConfig struct {
	URL            string
	Queue          string
	Workers        int
	ProcessTimeout time.Duration
}

// NewRedisQueue connects a client and starts a server that feeds proc.
func NewRedisQueue(cfg RedisConfig, proc PipelineProcessor, logger *slog.Logger) (*RedisQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		return nil, errors.New("redis url is required")
	}
	if cfg.Queue == "" {
		cfg.Queue = defaultRedisQueue
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 3 * time.Minute
	}
	opt, err := asynq.ParseRedisURI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	h := &taskHandler{proc: proc, logger: logger}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Workers,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      newAsynqLogger(logger),
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("queue.redis.task_failed", "type", task.Type(), "payload", string(task.Payload()), "error", err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessReceipt, h.ProcessTask)
	if err := server.Start(mux); err != nil {
		return nil, fmt.Errorf("start asynq server: %w", err)
	}

	logger.Info("queue.redis.started", "queue", cfg.Queue, "workers", cfg.Workers)
	return &RedisQueue{
		client:  asynq.NewClient(opt),
		server:  server,
		handler: h,
		queue:   cfg.Queue,
		timeout: cfg.ProcessTimeout,
		logger:  logger,
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	task, err := NewProcessReceiptTask(job)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(0),
		asynq.Timeout(q.timeout),
	)
	if err != nil {
		q.logger.Error("queue.redis.enqueue_failed", "path", job.Path, "error", err)
		return fmt.Errorf("enqueue %s: %w", job.Path, err)
	}
	q.logger.Info("queue.enqueued", "path", job.Path, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Shutdown stops the server after in-flight tasks finish and closes the client.
func (q *RedisQueue) Shutdown(_ context.Context) {
	q.server.Shutdown()
	if err := q.client.Close(); err != nil {
		q.logger.Warn("queue.redis.client_close_failed", "error", err)
	}
	q.logger.Info("queue.shutdown.drained")
}

// NewProcessReceiptTask encodes job as a receipt:process task.
func NewProcessReceiptTask(job Job) (*asynq.Task, error) {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}
	return asynq.NewTask(TaskProcessReceipt, payload), nil
}

type taskHandler struct {
	proc   PipelineProcessor
	logger *slog.Logger
}

// ProcessTask runs one task. Every failure is final because the pipeline has
// already recorded it on the receipt job.
func (h *taskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var job Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("decode task payload: %v: %w", err, asynq.SkipRetry)
	}
	if job.Path == "" {
		return fmt.Errorf("task payload has no path: %w", asynq.SkipRetry)
	}
	res, err := h.proc.ProcessReceipt(ctx, job.Path)
	if err != nil {
		return fmt.Errorf("process %s: %v: %w", job.Path, err, asynq.SkipRetry)
	}
	h.logger.Info("queue.job.done", "path", job.Path, "job_id", res.Job.ID)
	return nil
}
