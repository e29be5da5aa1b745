package services

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"imusic/types"
	"imusic/websocket"

	"github.com/google/uuid"
)

// ErrQueueFull is returned when no more scans can be queued
var ErrQueueFull = errors.New("scan queue is full")

// ErrQueueStopped is returned when adding to a stopped queue
var ErrQueueStopped = errors.New("scan queue is stopped")

const queueSize = 100

// ScanQueue defines the methods for managing folder import jobs
type ScanQueue interface {
	Start()
	Stop()
	AddJob(root string) (*types.ScanJob, error)
	GetJob(id string) (*types.ScanJob, bool)
	GetAllJobs() []*types.ScanJob
	CancelJob(id string) bool
	UpdateJobProgress(id string, progress, total int, currentFile string)
	SetJobStatus(id string, status types.JobStatus, errorMsg string)
	ProgressSnapshot(id string) (types.ProgressMessage, bool)
}

type scanQueue struct {
	jobs       map[string]*types.ScanJob
	queue      chan *types.ScanJob
	mu         sync.RWMutex
	wg         sync.WaitGroup
	stopped    bool
	maxWorkers int
	library    LibraryService
	store      SongStore
	hub        websocket.Hub
}

// NewScanQueue creates a new scan queue. hub may be nil.
func NewScanQueue(maxWorkers int, library LibraryService, store SongStore, hub websocket.Hub) ScanQueue {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &scanQueue{
		jobs:       make(map[string]*types.ScanJob),
		queue:      make(chan *types.ScanJob, queueSize),
		maxWorkers: maxWorkers,
		library:    library,
		store:      store,
		hub:        hub,
	}
}

// AddJob queues an import of root
func (sq *scanQueue) AddJob(root string) (*types.ScanJob, error) {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	if sq.stopped {
		return nil, ErrQueueStopped
	}

	job := &types.ScanJob{
		ID:        uuid.New().String(),
		Status:    types.JobStatusQueued,
		Root:      root,
		CreatedAt: time.Now(),
	}

	select {
	case sq.queue <- job:
	default:
		return nil, ErrQueueFull
	}

	sq.jobs[job.ID] = job
	snapshot := *job
	return &snapshot, nil
}

// GetJob returns a copy of the job with id
func (sq *scanQueue) GetJob(id string) (*types.ScanJob, bool) {
	sq.mu.RLock()
	defer sq.mu.RUnlock()

	job, exists := sq.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// GetAllJobs returns copies of all jobs, newest first
func (sq *scanQueue) GetAllJobs() []*types.ScanJob {
	sq.mu.RLock()
	defer sq.mu.RUnlock()

	jobs := make([]*types.ScanJob, 0, len(sq.jobs))
	for _, job := range sq.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs
}

// CancelJob cancels a queued job
func (sq *scanQueue) CancelJob(id string) bool {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	job, exists := sq.jobs[id]
	if !exists || job.Status != types.JobStatusQueued {
		return false
	}
	sq.cancelLocked(job)
	return true
}

// cancelLocked must be called with sq.mu held
func (sq *scanQueue) cancelLocked(job *types.ScanJob) {
	job.Status = types.JobStatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	msgType, message := statusMessage(job)
	sq.broadcast(job, msgType, "", message)
}

// UpdateJobProgress updates job progress
func (sq *scanQueue) UpdateJobProgress(id string, progress, total int, currentFile string) {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	job, exists := sq.jobs[id]
	if !exists {
		return
	}
	job.Progress = progress
	job.Total = total

	if total > 0 {
		sq.broadcast(job, "progress", currentFile, fmt.Sprintf("Imported %d of %d files", progress, total))
	}
}

// SetJobStatus updates job status
func (sq *scanQueue) SetJobStatus(id string, status types.JobStatus, errorMsg string) {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	job, exists := sq.jobs[id]
	if !exists {
		return
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	now := time.Now()
	if status == types.JobStatusProcessing && job.StartedAt == nil {
		job.StartedAt = &now
	} else if status.Finished() {
		job.CompletedAt = &now
	}

	msgType, message := statusMessage(job)
	sq.broadcast(job, msgType, "", message)
}

// statusMessage describes the current status of job for subscribers
func statusMessage(job *types.ScanJob) (msgType, message string) {
	switch job.Status {
	case types.JobStatusCompleted:
		return "complete", fmt.Sprintf("Added %d songs, %d already in library", job.Added, job.Skipped)
	case types.JobStatusFailed:
		return "error", job.Error
	case types.JobStatusProcessing:
		return "status", fmt.Sprintf("Scanning %s", job.Root)
	case types.JobStatusCancelled:
		return "status", "scan cancelled"
	default:
		return "status", string(job.Status)
	}
}

// ProgressSnapshot returns the current state of job id as a progress
// message, so late subscribers still learn how the scan went
func (sq *scanQueue) ProgressSnapshot(id string) (types.ProgressMessage, bool) {
	sq.mu.RLock()
	defer sq.mu.RUnlock()

	job, exists := sq.jobs[id]
	if !exists {
		return types.ProgressMessage{}, false
	}
	msgType, message := statusMessage(job)
	return progressMessage(job, msgType, "", message), true
}

// broadcast must be called with sq.mu held
func (sq *scanQueue) broadcast(job *types.ScanJob, msgType, currentFile, message string) {
	if sq.hub == nil {
		return
	}

	sq.hub.BroadcastProgress(progressMessage(job, msgType, currentFile, message))
}

func progressMessage(job *types.ScanJob, msgType, currentFile, message string) types.ProgressMessage {
	progress := 0.0
	if job.Total > 0 {
		progress = float64(job.Progress) / float64(job.Total) * 100
	}
	if job.Status == types.JobStatusCompleted {
		progress = 100
	}

	return types.ProgressMessage{
		JobID:       job.ID,
		Type:        msgType,
		Progress:    progress,
		Status:      string(job.Status),
		CurrentFile: currentFile,
		Added:       job.Added,
		Message:     message,
		Timestamp:   time.Now(),
	}
}

// Start begins processing jobs
func (sq *scanQueue) Start() {
	for i := 0; i < sq.maxWorkers; i++ {
		sq.wg.Add(1)
		go sq.worker()
	}
}

// Stop refuses new jobs, cancels the ones still queued and waits for the
// running scans to finish.
func (sq *scanQueue) Stop() {
	sq.mu.Lock()
	if sq.stopped {
		sq.mu.Unlock()
		return
	}
	sq.stopped = true
	for _, job := range sq.jobs {
		if job.Status == types.JobStatusQueued {
			sq.cancelLocked(job)
		}
	}
	close(sq.queue)
	sq.mu.Unlock()

	sq.wg.Wait()
}

func (sq *scanQueue) worker() {
	defer sq.wg.Done()

	for job := range sq.queue {
		if !sq.claimJob(job.ID) {
			continue
		}

		if err := sq.processScanJob(job.ID, job.Root); err != nil {
			sq.SetJobStatus(job.ID, types.JobStatusFailed, err.Error())
			slog.Error("scan failed", "job", job.ID, "root", job.Root, "error", err)
			continue
		}

		sq.SetJobStatus(job.ID, types.JobStatusCompleted, "")
		slog.Info("scan completed", "job", job.ID, "root", job.Root)
	}
}

// claimJob moves a queued job to processing. Cancelled jobs are not claimed.
func (sq *scanQueue) claimJob(id string) bool {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	job, exists := sq.jobs[id]
	if !exists || job.Status != types.JobStatusQueued {
		return false
	}

	job.Status = types.JobStatusProcessing
	now := time.Now()
	job.StartedAt = &now
	msgType, message := statusMessage(job)
	sq.broadcast(job, msgType, "", message)
	return true
}

func (sq *scanQueue) processScanJob(id, root string) error {
	files, err := sq.library.ScanAudioFiles(root)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	total := len(files)
	sq.UpdateJobProgress(id, 0, total, "")

	_, err = ImportFiles(sq.store, files, func(n int, file types.AudioFile, created bool) {
		sq.mu.Lock()
		if job, ok := sq.jobs[id]; ok {
			if created {
				job.Added++
			} else {
				job.Skipped++
			}
		}
		sq.mu.Unlock()

		sq.UpdateJobProgress(id, n, total, file.Relative)
	})
	return err
}
