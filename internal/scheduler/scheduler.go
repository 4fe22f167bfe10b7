package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named periodic function.
type Job struct {
	Name string
	Spec string
	Fn   func(ctx context.Context) error
}

// Scheduler runs housekeeping jobs on cron specs in UTC.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]Job
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]Job),
	}
}

// Add registers a job. An empty spec disables the job.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		log.Printf("⚠️ Job %s has no schedule, skipping", job.Name)
		return nil
	}
	if job.Fn == nil {
		return fmt.Errorf("job %s has no function", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Spec, job.Name, err)
	}
	s.jobs[job.Name] = job
	return nil
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return job.Fn(s.ctx)
}

func (s *Scheduler) run(job Job) {
	log.Printf("🕘 Running job %s", job.Name)
	if err := job.Fn(s.ctx); err != nil {
		log.Printf("❌ Job %s failed: %v", job.Name, err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("📅 Scheduler started with %d jobs", len(s.cron.Entries()))
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
