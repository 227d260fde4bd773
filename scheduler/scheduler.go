// Package scheduler runs named maintenance tasks on fixed intervals.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is one run of a scheduled task. ctx is cancelled when the task is
// removed or the scheduler stops.
type TaskFn func(ctx context.Context) error

// Scheduler manages periodic tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type tickerEntry struct {
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}

	if old, ok := s.tickers[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.tickers[name] = &tickerEntry{cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(ctx, name, fn)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) run(ctx context.Context, name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("scheduler task failed", zap.String("task", name), zap.Error(err))
	}
}

// Remove stops and removes a task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		entry.cancel()
		delete(s.tickers, name)
	}
}

// Stop stops all tasks and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.tickers = make(map[string]*tickerEntry)
	s.mu.Unlock()
	s.wg.Wait()
}

// ListTickers returns the names of all registered tasks, sorted.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
