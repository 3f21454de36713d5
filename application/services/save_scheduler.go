package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gentree/application/ports"
)

// SaveEncoder produces the bytes to store. It runs on the worker goroutine,
// so only the latest value scheduled for a key is ever encoded.
type SaveEncoder func() ([]byte, error)

// SaveMetrics observes the scheduler. Implementations must be safe for
// concurrent use.
type SaveMetrics interface {
	RecordSave(key string, duration time.Duration, err error)
	RecordSaveCoalesced(key string)
	RecordSaveDropped(key string)
}

// SaveSchedulerConfig tunes retries and timeouts.
type SaveSchedulerConfig struct {
	MaxRetries   int           // extra attempts after a failed write
	RetryBackoff time.Duration // multiplied by the attempt number
	WriteTimeout time.Duration
}

// DefaultSaveSchedulerConfig returns the defaults used when nothing is configured.
func DefaultSaveSchedulerConfig() SaveSchedulerConfig {
	return SaveSchedulerConfig{
		MaxRetries:   3,
		RetryBackoff: 200 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

type saveJob struct {
	version uint64
	encode  SaveEncoder
}

// SaveScheduler writes values to a KeyValueStore in the background.
//
// Each key holds at most one pending value; scheduling again replaces it, so
// a burst of mutations costs a single write. One worker performs all writes,
// so writes to a key happen in schedule order and a stale value never lands
// after a newer one.
type SaveScheduler struct {
	store   ports.KeyValueStore
	logger  *zap.Logger
	metrics SaveMetrics
	cfg     SaveSchedulerConfig

	mu      sync.Mutex
	pending map[string]saveJob
	queue   []string
	version uint64
	busy    bool
	stopped bool
	waiters []chan struct{}

	wake        chan struct{}
	stopChan    chan struct{}
	stoppedChan chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
}

// NewSaveScheduler creates a scheduler. Call Start before relying on writes.
func NewSaveScheduler(store ports.KeyValueStore, cfg SaveSchedulerConfig, logger *zap.Logger) *SaveScheduler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultSaveSchedulerConfig().WriteTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &SaveScheduler{
		store:       store,
		logger:      logger,
		cfg:         cfg,
		pending:     make(map[string]saveJob),
		wake:        make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// SetMetrics attaches a metrics observer. Call before Start.
func (s *SaveScheduler) SetMetrics(m SaveMetrics) {
	s.metrics = m
}

// Start launches the worker. Writes use a context detached from ctx's
// cancellation so a shutdown still persists what was scheduled.
func (s *SaveScheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.logger.Info("Starting save scheduler",
			zap.Int("maxRetries", s.cfg.MaxRetries),
			zap.Duration("writeTimeout", s.cfg.WriteTimeout),
		)
		go s.run(context.WithoutCancel(ctx))
	})
}

// Stop writes whatever is still pending, without retries, and ends the worker.
func (s *SaveScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping save scheduler")
		close(s.stopChan)
		s.startOnce.Do(func() {
			// never started, so no worker will close stoppedChan
			close(s.stoppedChan)
		})
		<-s.stoppedChan

		s.mu.Lock()
		s.stopped = true
		s.releaseWaitersLocked()
		s.mu.Unlock()
		s.logger.Info("Save scheduler stopped")
	})
}

// Schedule queues value for key, replacing any value still waiting for the
// same key.
func (s *SaveScheduler) Schedule(key string, encode SaveEncoder) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("Save scheduled after stop, dropping", zap.String("key", key))
		return
	}
	s.version++
	if _, queued := s.pending[key]; queued {
		if s.metrics != nil {
			s.metrics.RecordSaveCoalesced(key)
		}
	} else {
		s.queue = append(s.queue, key)
	}
	s.pending[key] = saveJob{version: s.version, encode: encode}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of keys waiting to be written.
func (s *SaveScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Flush blocks until every value scheduled before the call was written or
// dropped, or ctx ends.
func (s *SaveScheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped || (len(s.queue) == 0 && !s.busy) {
		s.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	s.waiters = append(s.waiters, done)
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SaveScheduler) run(ctx context.Context) {
	defer close(s.stoppedChan)

	for {
		select {
		case <-s.stopChan:
			s.drain(ctx, true)
			return
		case <-s.wake:
			s.drain(ctx, false)
		}
	}
}

// drain writes queued keys until the queue is empty.
func (s *SaveScheduler) drain(ctx context.Context, final bool) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.busy = false
			s.releaseWaitersLocked()
			s.mu.Unlock()
			return
		}
		key := s.queue[0]
		s.queue = s.queue[1:]
		job := s.pending[key]
		delete(s.pending, key)
		s.busy = true
		s.mu.Unlock()

		s.write(ctx, key, job, final)
	}
}

func (s *SaveScheduler) write(ctx context.Context, key string, job saveJob, final bool) {
	data, err := job.encode()
	if err != nil {
		s.logger.Error("Failed to encode value, dropping save",
			zap.String("key", key),
			zap.Uint64("version", job.version),
			zap.Error(err),
		)
		s.recordDropped(key)
		return
	}

	attempts := 1 + s.cfg.MaxRetries
	if final {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err = s.writeOnce(ctx, key, data)
		if err == nil {
			s.logger.Debug("Saved value",
				zap.String("key", key),
				zap.Uint64("version", job.version),
				zap.Int("bytes", len(data)),
			)
			return
		}

		if s.hasNewer(key) {
			s.logger.Warn("Save failed, newer value queued",
				zap.String("key", key),
				zap.Uint64("version", job.version),
				zap.Error(err),
			)
			s.recordDropped(key)
			return
		}
		if attempt >= attempts {
			s.logger.Error("Save failed, giving up",
				zap.String("key", key),
				zap.Uint64("version", job.version),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			s.recordDropped(key)
			return
		}

		s.logger.Warn("Save failed, retrying",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
		case <-s.stopChan:
			// one last try below, then give up
			attempts = attempt + 1
		}
	}
}

func (s *SaveScheduler) writeOnce(ctx context.Context, key string, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := s.store.Set(writeCtx, key, data)
	if s.metrics != nil {
		s.metrics.RecordSave(key, time.Since(start), err)
	}
	return err
}

func (s *SaveScheduler) hasNewer(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

func (s *SaveScheduler) recordDropped(key string) {
	if s.metrics != nil {
		s.metrics.RecordSaveDropped(key)
	}
}

func (s *SaveScheduler) releaseWaitersLocked() {
	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil
}
