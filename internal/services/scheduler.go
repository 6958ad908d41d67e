package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SchedulerService runs the aggregation pipeline in-process on a cron
// schedule. Pipeline runs are already serialized by the pipeline itself;
// the scheduler only adds bookkeeping and panic containment.
type SchedulerService struct {
	logger   *logrus.Logger
	cron     *cron.Cron
	pipeline *PipelineService
	schedule string

	mu        sync.RWMutex
	jobs      map[string]JobInfo
	isRunning bool
}

// JobInfo represents information about a scheduled job
type JobInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   string        `json:"schedule"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	Status     string        `json:"status"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// NewSchedulerService creates a scheduler for periodic pipeline runs.
func NewSchedulerService(schedule string, pipeline *PipelineService, logger *logrus.Logger) *SchedulerService {
	cronLogger := cron.VerbosePrintfLogger(logger)
	return &SchedulerService{
		logger:   logger,
		cron:     cron.New(cron.WithLogger(cronLogger)),
		pipeline: pipeline,
		schedule: schedule,
		jobs:     make(map[string]JobInfo),
	}
}

// Start schedules the pipeline job and starts the cron loop.
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runJob("pipeline", "Aggregation pipeline run")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pipeline job: %w", err)
	}

	s.jobs["pipeline"] = JobInfo{
		ID:       "pipeline",
		Name:     "Aggregation pipeline run",
		Schedule: s.schedule,
		Status:   "scheduled",
	}

	s.cron.Start()
	s.isRunning = true

	var nextRun time.Time
	for _, entry := range s.cron.Entries() {
		if entry.ID == entryID {
			nextRun = entry.Next
		}
	}
	s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"schedule":  s.schedule,
		"next_run":  nextRun,
	}).Info("Pipeline schedule registered")
	return nil
}

// Stop halts the cron loop and waits up to five seconds for a running job
// to finish. The wait happens outside the mutex: a running job needs it to
// record its final status.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.logger.WithField("component", "scheduler").Info("Scheduler stopped")
	case <-time.After(5 * time.Second):
		s.logger.WithField("component", "scheduler").Warn("Scheduler stop timed out waiting for running job")
	}
}

// Jobs returns a snapshot of job bookkeeping for the health endpoint.
func (s *SchedulerService) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// runJob executes one scheduled pipeline run with panic recovery.
func (s *SchedulerService) runJob(id, name string) {
	s.mu.Lock()
	job := s.jobs[id]
	job.Status = "running"
	job.LastRun = time.Now()
	job.RunCount++
	s.jobs[id] = job
	s.mu.Unlock()

	log := s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"job_id":    id,
		"job_name":  name,
		"run_count": job.RunCount,
	})
	log.Info("Starting scheduled job")
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Job panicked")
			s.updateJobStatus(id, "failed", fmt.Sprintf("panic: %v", r), time.Since(start))
		}
	}()

	if _, err := s.pipeline.Run(context.Background()); err != nil {
		log.WithError(err).Error("Scheduled pipeline run failed")
		s.updateJobStatus(id, "failed", err.Error(), time.Since(start))
		return
	}

	duration := time.Since(start)
	log.WithField("duration", duration).Info("Job completed successfully")
	s.updateJobStatus(id, "completed", "", duration)
}

func (s *SchedulerService) updateJobStatus(id, status, errorMsg string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return
	}

	job.Status = status
	job.Duration = duration
	if errorMsg != "" {
		job.ErrorCount++
		job.LastError = errorMsg
	}

	for _, entry := range s.cron.Entries() {
		job.NextRun = entry.Next
	}
	s.jobs[id] = job
}
