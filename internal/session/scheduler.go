package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/logging"
)

var (
	ErrQueueFull       = errors.New("session queue full")
	ErrSchedulerClosed = errors.New("session scheduler closed")
)

const DefaultQueueSize = 64

// Job is one unit of work for a conversation.
type Job func(context.Context)

type task struct {
	ctx context.Context
	job Job
}

// Scheduler runs jobs one at a time per key, in submission order. Different
// keys run concurrently.
type Scheduler struct {
	log       logrus.FieldLogger
	queueSize int

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	wg      sync.WaitGroup
}

type worker struct {
	ch chan task
}

func NewScheduler(log logrus.FieldLogger, queueSize int) *Scheduler {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Scheduler{
		log:       logging.OrDiscard(log),
		queueSize: queueSize,
		workers:   make(map[string]*worker),
	}
}

// Enqueue schedules job behind any queued jobs for key.
func (s *Scheduler) Enqueue(ctx context.Context, key string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}

	w := s.workerFor(key)
	select {
	case w.ch <- task{ctx: ctx, job: job}:
		return nil
	default:
		s.log.WithField("key", key).Warn("session queue full")
		return ErrQueueFull
	}
}

// Do runs fn on key's queue and waits for it. If ctx ends first Do returns
// ctx.Err(); fn still runs with the cancelled context.
func (s *Scheduler) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	done := make(chan error, 1)
	if err := s.Enqueue(ctx, key, func(jobCtx context.Context) {
		done <- fn(jobCtx)
	}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for key, w := range s.workers {
		close(w.ch)
		delete(s.workers, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// workerFor requires s.mu.
func (s *Scheduler) workerFor(key string) *worker {
	if w, ok := s.workers[key]; ok {
		return w
	}

	w := &worker{ch: make(chan task, s.queueSize)}
	s.workers[key] = w

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for t := range w.ch {
			s.run(t)
		}
	}()

	return w
}

func (s *Scheduler) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("session job panicked")
		}
	}()
	t.job(t.ctx)
}
