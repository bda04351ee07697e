package deduction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mhollis/chorecoin/internal/store"
)

// Scheduler runs the deduction sweep on an interval across all households.
type Scheduler struct {
	mu         sync.RWMutex
	engine     *Engine
	households *store.HouseholdStore
	interval   time.Duration
	logger     *slog.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewScheduler(engine *Engine, households *store.HouseholdStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		engine:     engine,
		households: households,
		interval:   interval,
		logger:     logger,
	}
}

// Start begins the sweep loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	ids, err := s.households.ListIDs()
	if err != nil {
		s.logger.Error("deduction sweep: list households", "error", err)
		return
	}

	for _, id := range ids {
		result, err := s.engine.ProcessMissed(id)
		if err != nil {
			s.logger.Error("deduction sweep failed", "household_id", id, "error", err)
			continue
		}
		if result.Processed > 0 || result.Err != nil {
			s.logger.Info("deduction sweep finished",
				"household_id", id,
				"processed", result.Processed,
				"failures", len(result.Errors()))
		}
	}
}
