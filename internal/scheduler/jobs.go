package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"assistant-relay/internal/analytics"
	"assistant-relay/internal/storage"
)

type Evicter interface {
	Evict(ttl time.Duration) int
}

// JanitorJob drops finished tasks older than ttl.
func JanitorJob(spec string, tasks Evicter, ttl time.Duration) Job {
	return Job{
		Name: "task-janitor",
		Spec: spec,
		Fn: func(ctx context.Context) error {
			if n := tasks.Evict(ttl); n > 0 {
				log.Printf("🧹 Evicted %d finished tasks older than %s", n, ttl)
			}
			return nil
		},
	}
}

// ReportJob summarises yesterday's interactions and hands the text to deliver.
func ReportJob(spec string, rec storage.Recorder, deliver func(ctx context.Context, text string) error) Job {
	return Job{
		Name: "daily-report",
		Spec: spec,
		Fn: func(ctx context.Context) error {
			events, err := rec.LoadInteractions()
			if err != nil {
				return fmt.Errorf("failed to load interactions: %w", err)
			}
			day := time.Now().UTC().AddDate(0, 0, -1)
			stats := analytics.AnalyzeDailyLogs(events, day)
			return deliver(ctx, stats.GenerateReportSummary())
		},
	}
}
