package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"cmsdl/pkg/course"
	"cmsdl/pkg/logger"
)

// DownloadJob represents a single download task
type DownloadJob struct {
	File   course.File
	Course string
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job     DownloadJob
	Success bool
	// Skipped is set when the file appeared on disk after the job was queued
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int64
}

// FileOpener starts streaming a remote file
type FileOpener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// FileStorage persists streamed files
type FileStorage interface {
	Exists(path string) bool
	Save(r io.Reader, path string, size int64, progress func(n int64)) (int64, error)
}

// ProgressReporter receives per-file transfer updates. Calls for different
// files may arrive concurrently.
type ProgressReporter interface {
	Start(name string, total int64)
	Advance(name string, n int64)
	Finish(name string, err error)
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      FileOpener
	storage     FileStorage
	progress    ProgressReporter
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. progress may be nil.
func NewWorkerPool(
	numWorkers int,
	client FileOpener,
	storage FileStorage,
	progress ProgressReporter,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if progress == nil {
		progress = nopProgress{}
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan DownloadResult, numWorkers),
		client:      client,
		storage:     storage,
		progress:    progress,
		logger:      log,
	}
}

// Start launches the workers. Cancelling ctx stops them from taking new
// jobs and aborts downloads in flight.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)

	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers to drain it and closes
// the result channel. It must be called exactly once, after the last Submit.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"course": job.Course,
			"path":   job.File.Path,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}
	path := job.File.Path

	if wp.storage.Exists(path) {
		wp.logger.DebugWithFields("File already downloaded", map[string]interface{}{
			"worker_id": workerID,
			"path":      path,
		})
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	body, size, err := wp.client.Open(wp.ctx, job.File.URL)
	if err != nil {
		wp.progress.Finish(path, err)
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	defer body.Close()

	wp.progress.Start(path, size)
	n, err := wp.storage.Save(body, path, size, func(k int64) {
		wp.progress.Advance(path, k)
	})
	wp.progress.Finish(path, err)

	result.Size = n
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		return result
	}

	result.Success = true
	wp.logger.DebugWithFields("Worker completed job successfully", map[string]interface{}{
		"worker_id": workerID,
		"path":      path,
		"size":      n,
		"duration":  result.Duration,
	})
	return result
}

type nopProgress struct{}

func (nopProgress) Start(string, int64)   {}
func (nopProgress) Advance(string, int64) {}
func (nopProgress) Finish(string, error)  {}
