package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"studiocast/internal/config"
)

// Scheduler owns one worker per configured account.
type Scheduler struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// New builds workers for every account in cfg.
func New(cfg *config.Config, provider JobProvider, runner Runner, clock Clock, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{}
	for _, acct := range cfg.Accounts {
		sched, err := FromConfig(cfg.ScheduleFor(acct))
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", acct.Name, err)
		}
		s.workers = append(s.workers, NewWorker(acct.Name, sched, provider, runner, clock, logger))
	}
	return s, nil
}

// Start launches every worker. Wait blocks until they return.
func (s *Scheduler) Start(ctx context.Context) {
	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every started worker has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunOnce pulls one job per account in parallel and waits for all. It
// returns how many jobs ran.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	var (
		mu  sync.Mutex
		ran int
		wg  sync.WaitGroup
	)
	for _, w := range s.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if w.RunOnce(ctx) {
				mu.Lock()
				ran++
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return ran
}

// Workers returns the workers in config order.
func (s *Scheduler) Workers() []*Worker {
	return append([]*Worker(nil), s.workers...)
}
