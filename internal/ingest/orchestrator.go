package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/binz0209/vihis/internal/blob"
	"github.com/binz0209/vihis/internal/models"
)

// ErrQueueFull is returned by Submit when the job queue is at capacity.
var ErrQueueFull = errors.New("job queue is full")

// SourceStore records one source per ingested document.
type SourceStore interface {
	CreateSource(ctx context.Context, s *models.Source) error
	UpdateSourcePageCount(ctx context.Context, id string, pageCount int) error
	FindSourceByHash(ctx context.Context, hash string) (*models.Source, error)
	DeleteSource(ctx context.Context, id string) error
}

// OrchestratorOptions size the worker pool.
type OrchestratorOptions struct {
	WorkerCount     int
	MaxQueueSize    int
	JobTTL          time.Duration
	CleanupInterval time.Duration
}

// Orchestrator queues uploads and runs them through the pipeline on a
// fixed pool of workers.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	pipeline *Pipeline
	sources  SourceStore
	archive  blob.Archiver
	log      *slog.Logger
	opts     OrchestratorOptions

	onIngested func(sourceID string)

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the job queue. Call Start to launch workers.
func NewOrchestrator(p *Pipeline, sources SourceStore, archive blob.Archiver, log *slog.Logger, opts OrchestratorOptions) *Orchestrator {
	opts.WorkerCount = max(opts.WorkerCount, 1)
	opts.MaxQueueSize = max(opts.MaxQueueSize, 1)
	if opts.JobTTL <= 0 {
		opts.JobTTL = time.Hour
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 5 * time.Minute
	}
	if archive == nil {
		archive = blob.Discard{}
	}
	return &Orchestrator{
		jobs:     NewJobStore(opts.JobTTL),
		queue:    make(chan *Job, opts.MaxQueueSize),
		pipeline: p,
		sources:  sources,
		archive:  archive,
		log:      log,
		opts:     opts,
	}
}

// OnIngested registers fn to run after every job that stored fragments.
// It must be called before Start.
func (o *Orchestrator) OnIngested(fn func(sourceID string)) {
	o.onIngested = fn
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.opts.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.opts.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels in-flight jobs and waits for workers to exit. Jobs still
// waiting in the queue are marked failed.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for job := range o.queue {
		job.AddError("orchestrator stopped before the job started")
		job.SetStatus(StatusFailed, "shutdown")
		job.releaseFileData()
	}
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return fmt.Errorf("orchestrator stopped")
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.opts.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
