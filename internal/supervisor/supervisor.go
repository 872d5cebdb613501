package supervisor

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Supervisor tracks fire-and-forget background jobs so shutdown can wait
// for them. Jobs are drained best-effort: Drain gives up at its deadline
// and abandons whatever is still running, it never force-cancels.
type Supervisor struct {
	wg      sync.WaitGroup
	live    atomic.Int64
	stopped atomic.Bool
	logger  *zap.Logger
}

// NewSupervisor creates a new background job supervisor.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Go spawns fn as a tracked background job. Panics inside the job are
// recovered and logged so one bad job cannot take the process down.
// Returns false when the supervisor is stopped and the job was not spawned.
func (s *Supervisor) Go(name string, fn func()) bool {
	if s.stopped.Load() {
		s.logger.Warn("Supervisor stopped, job rejected", zap.String("job", name))
		return false
	}

	s.wg.Add(1)
	s.live.Add(1)
	go func() {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Background job panicked",
					zap.String("job", name),
					zap.Any("panic", r))
			}
			s.live.Add(-1)
			s.wg.Done()
			s.logger.Debug("Background job finished",
				zap.String("job", name),
				zap.Duration("elapsed", time.Since(start)))
		}()
		fn()
	}()
	return true
}

// Live reports the number of jobs currently running.
func (s *Supervisor) Live() int {
	return int(s.live.Load())
}

// Stop rejects new jobs. Already-running jobs are unaffected.
func (s *Supervisor) Stop() {
	s.stopped.Store(true)
}

// Drain waits for all outstanding jobs to finish, giving up when the
// timeout elapses. Reports whether everything completed in time.
func (s *Supervisor) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		s.logger.Warn("Drain timed out, abandoning jobs",
			zap.Int("remaining", s.Live()),
			zap.Duration("timeout", timeout))
		return false
	}
}
