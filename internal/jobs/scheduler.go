package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is a unit of background work run on a fixed interval
type Job interface {
	Run(ctx context.Context) error
}

// JobScheduler runs registered jobs on gocron
type JobScheduler struct {
	scheduler gocron.Scheduler
	jobs      map[string]Job
	handles   map[string]gocron.Job
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	running   bool
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler() (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		scheduler: scheduler,
		jobs:      make(map[string]Job),
		handles:   make(map[string]gocron.Job),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Register schedules job every interval, first running after delay.
// Overlapping runs of the same job are skipped.
func (s *JobScheduler) Register(name string, job Job, interval, delay time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	startAt := gocron.WithStartImmediately()
	if delay > 0 {
		startAt = gocron.WithStartDateTime(time.Now().Add(delay))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	handle, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.runJob(name, job)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(startAt),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.handles[name] = handle
	log.Printf("✅ [SCHEDULER] Registered job: %s (every %s)", name, interval)
	return nil
}

func (s *JobScheduler) runJob(name string, job Job) {
	log.Printf("▶️  [SCHEDULER] Running job: %s", name)
	start := time.Now()

	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
		return
	}

	log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", name, time.Since(start))
}

// Start begins running all registered jobs
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.scheduler.Start()
	log.Printf("🚀 [SCHEDULER] Started with %d job(s)", len(s.jobs))
}

// Stop cancels running jobs and waits for them to return
func (s *JobScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		return err
	}
	log.Println("✅ [SCHEDULER] Job scheduler stopped")
	return nil
}

// RunNow runs a registered job synchronously
func (s *JobScheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("job %q not found", name)
	}
	return job.Run(ctx)
}

// JobStatus represents the status of a job
type JobStatus struct {
	Name        string    `json:"name"`
	NextRunTime time.Time `json:"next_run_time"`
}

// GetStatus returns every registered job, sorted by name
func (s *JobScheduler) GetStatus() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.handles))
	for name, handle := range s.handles {
		next, _ := handle.NextRun()
		out = append(out, JobStatus{Name: name, NextRunTime: next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
