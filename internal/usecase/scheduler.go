package usecase

import (
	"context"
	"log/slog"
	"time"

	"KnowledgeAgent/internal/ports"
)

// Scheduler drives the two pipeline cadences: a fetch tick that stages new
// content and a faster processing tick that drains one item at a time.
type Scheduler struct {
	fetchDriver   ports.TickDriver
	processDriver ports.TickDriver
	ingest        *Ingest
	processor     *Processor
	logger        *slog.Logger
}

// NewScheduler wires the tick drivers to the pipeline entry points.
func NewScheduler(fetchDriver, processDriver ports.TickDriver, ingest *Ingest, processor *Processor, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		fetchDriver:   fetchDriver,
		processDriver: processDriver,
		ingest:        ingest,
		processor:     processor,
		logger:        logger,
	}
}

// Start registers both recurring jobs. Tick-level errors stay inside the
// jobs; nothing a single item does can stop the cadence.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.fetchDriver != nil && s.ingest != nil {
		fetchJob := func(trigger time.Time) {
			s.ingest.RunFetchTick(ctx, trigger)
		}
		if err := s.fetchDriver.Start(ctx, fetchJob); err != nil {
			return err
		}
	}

	if s.processDriver != nil && s.processor != nil {
		processJob := func(time.Time) {
			if err := s.processor.ProcessNext(ctx); err != nil {
				s.logger.Error("process tick", "error", err)
			}
		}
		if err := s.processDriver.Start(ctx, processJob); err != nil {
			return err
		}
	}

	return nil
}

// Stop tears down both drivers.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.fetchDriver != nil {
		if err := s.fetchDriver.Stop(ctx); err != nil {
			return err
		}
	}
	if s.processDriver != nil {
		return s.processDriver.Stop(ctx)
	}
	return nil
}
