package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quickevent/backend/internal/events"
	"github.com/quickevent/backend/internal/realtime"
	"github.com/quickevent/backend/internal/stats"
	"github.com/quickevent/backend/pkg/queue"
)

// StatsProcessor processes statistics refresh jobs: recompute event counters
// and push them to the event organizer over the realtime bridge.
type StatsProcessor struct {
	statsRepo *stats.Repository
	eventRepo *events.Repository
	bridge    realtime.Bridge
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewStatsProcessor creates a statistics refresh processor.
func NewStatsProcessor(statsRepo *stats.Repository, eventRepo *events.Repository,
	bridge realtime.Bridge, q *queue.Queue, logger *zap.Logger) *StatsProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsProcessor{statsRepo: statsRepo, eventRepo: eventRepo, bridge: bridge, queue: q, logger: logger}
}

// Process executes one statistics refresh job.
func (p *StatsProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeStatsRefresh {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.StatsRefreshPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	event, err := p.eventRepo.GetByID(ctx, payload.EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		p.logger.Info("event gone, dropping stats job", zap.Int64("event_id", payload.EventID))
		return nil
	}

	summary, err := p.statsRepo.Summarize(ctx, payload.EventID)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	raw, err := json.Marshal(realtime.NewStatisticsUpdated(summary))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := p.bridge.PublishToUser(event.OrganizerID.String(), raw); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	p.logger.Info("statistics refreshed",
		zap.Int64("event_id", payload.EventID),
		zap.Int("checked_in", summary.CheckedIn),
		zap.Int("active_registrations", summary.ActiveRegistrations))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *StatsProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stats worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
