package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/cipherbench/internal/benchmark"
	"github.com/user/cipherbench/internal/output"
)

type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	errCancelled = errors.New("run cancelled by user")
	errShutdown  = errors.New("server shut down before the run started")
)

type Job struct {
	ID          string            `json:"id"`
	Config      benchmark.Config  `json:"config"`
	Status      JobStatus         `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Report      *benchmark.Report `json:"report,omitempty"`
	Error       string            `json:"error,omitempty"`

	progress chan benchmark.ProgressUpdate
}

func newJob(cfg benchmark.Config) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		Config:    cfg,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		progress:  make(chan benchmark.ProgressUpdate, 100),
	}
}

type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

func (js *JobStore) Add(job *Job) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.jobs[job.ID] = job
}

// Get returns a copy so callers can encode it without holding the lock.
func (js *JobStore) Get(id string) (Job, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (js *JobStore) Progress(id string) (<-chan benchmark.ProgressUpdate, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[id]
	if !ok {
		return nil, false
	}
	return job.progress, true
}

// List returns jobs oldest first.
func (js *JobStore) List() []Job {
	js.mu.RLock()
	jobs := make([]Job, 0, len(js.jobs))
	for _, job := range js.jobs {
		jobs = append(jobs, *job)
	}
	js.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

func (js *JobStore) UpdateStatus(id string, status JobStatus) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if job, ok := js.jobs[id]; ok {
		job.Status = status
		job.UpdatedAt = time.Now()
	}
}

// MarkCancelled flags a job that has not finished yet.
func (js *JobStore) MarkCancelled(id string) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if job, ok := js.jobs[id]; ok && !job.Status.Terminal() {
		job.Status = StatusCancelled
		job.UpdatedAt = time.Now()
	}
}

func (js *JobStore) CompleteJob(id string, report *benchmark.Report, err error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, ok := js.jobs[id]
	if !ok {
		return
	}
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.UpdatedAt = completedAt
	job.Report = report

	switch {
	case err == nil:
		job.Status = StatusCompleted
	case job.Status == StatusCancelled || benchmark.IsKind(err, benchmark.KindInterrupted) || errors.Is(err, errCancelled):
		job.Status = StatusCancelled
		job.Error = err.Error()
	default:
		job.Status = StatusFailed
		job.Error = err.Error()
	}
}

// Reject finishes a job that will never reach the worker and closes its
// progress channel so that progress listeners see the final status.
func (js *JobStore) Reject(job *Job, err error) {
	js.CompleteJob(job.ID, nil, err)
	close(job.progress)
}

// WorkerPool runs jobs one at a time. Runs must never overlap since they
// compete for the same CPU and would distort each other's timings.
type WorkerPool struct {
	jobQueue   chan *Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	jobStore   *JobStore
	logger     *slog.Logger
	activeJobs map[string]context.CancelFunc
	mu         sync.Mutex
	once       sync.Once
}

func NewWorkerPool(jobStore *JobStore, queueSize int, logger *slog.Logger) *WorkerPool {
	if queueSize <= 0 {
		queueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:   make(chan *Job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		jobStore:   jobStore,
		logger:     logger,
		activeJobs: make(map[string]context.CancelFunc),
	}
}

func (wp *WorkerPool) Start() {
	wp.wg.Add(1)
	go wp.worker()
}

// Stop interrupts the running job and cancels every job still queued.
func (wp *WorkerPool) Stop() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.cancel()
		wp.mu.Unlock()
		wp.wg.Wait()

		dropped := 0
		for drained := false; !drained; {
			select {
			case job := <-wp.jobQueue:
				wp.jobStore.MarkCancelled(job.ID)
				wp.jobStore.Reject(job, errShutdown)
				dropped++
			default:
				drained = true
			}
		}
		wp.logger.Info("worker pool stopped", "dropped", dropped)
	})
}

func (wp *WorkerPool) Submit(job *Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
	}

	select {
	case wp.jobQueue <- job:
		return nil
	default:
		return fmt.Errorf("job queue is full")
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case job := <-wp.jobQueue:
			wp.processJob(job)
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) TerminateJob(id string) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if cancel, ok := wp.activeJobs[id]; ok {
		cancel()
		delete(wp.activeJobs, id)
	}
}

func (wp *WorkerPool) processJob(job *Job) {
	defer close(job.progress)

	if current, ok := wp.jobStore.Get(job.ID); ok && current.Status == StatusCancelled {
		wp.jobStore.CompleteJob(job.ID, nil, errCancelled)
		return
	}

	jobCtx, jobCancel := context.WithCancel(wp.ctx)
	wp.mu.Lock()
	wp.activeJobs[job.ID] = jobCancel
	wp.mu.Unlock()
	defer func() {
		wp.mu.Lock()
		delete(wp.activeJobs, job.ID)
		wp.mu.Unlock()
		jobCancel()
	}()

	wp.jobStore.UpdateStatus(job.ID, StatusRunning)

	sinks, err := output.OpenSinks(job.Config.Output, job.ID)
	if err != nil {
		wp.jobStore.CompleteJob(job.ID, nil, err)
		wp.logger.Error("run failed", "run_id", job.ID, "error", err)
		return
	}
	defer sinks.Close()

	runner := benchmark.NewRunner(job.Config,
		benchmark.WithRunID(job.ID),
		benchmark.WithLogger(wp.logger),
		benchmark.WithSink(sinks),
		benchmark.WithProgress(job.progress),
	)

	report, err := runner.Run(jobCtx)
	wp.jobStore.CompleteJob(job.ID, report, err)
	if err != nil {
		wp.logger.Error("run failed", "run_id", job.ID, "state", report.FinalState, "error", err)
		return
	}
	wp.logger.Info("run completed", "run_id", job.ID, "samples", len(report.Samples), "duration", report.Duration())
}
