// Package scheduling implements the admission layer, the bounded FIFO
// worker, and the hot model-swap protocol described for the transcription
// service: at most one backend loaded, at most one inference in flight,
// release always precedes load.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/austery/asr-runner/pkg/inference"
	"github.com/austery/asr-runner/pkg/inference/registry"
	"github.com/austery/asr-runner/pkg/logging"
)

// BackendFactory constructs a Backend for a resolved ModelSpec. Production
// code passes factory.New(log); tests substitute a fake.
type BackendFactory func(registry.ModelSpec) (inference.Backend, error)

type sentinel struct{}

// Scheduler owns the bounded FIFO queue and the single serial worker. Apart
// from the initial Load in Start, which runs on the caller's goroutine before
// the worker is launched, all backend lifecycle calls happen on the worker
// goroutine; readers elsewhere
// observe currentSpec through an atomic snapshot.
type Scheduler struct {
	log      *slog.Logger
	registry *registry.Registry
	factory  BackendFactory

	queue chan any // *Job or sentinel
	cap   int

	currentBackend inference.Backend
	currentSpec    atomic.Pointer[registry.ModelSpec]
	degraded       atomic.Bool

	processed atomic.Int64
	failed    atomic.Int64

	stopped chan struct{}
}

// New builds a Scheduler with the given queue capacity. Call Start to boot
// the initial backend and begin consuming jobs; call Stop to drain and
// terminate the worker.
func New(log *slog.Logger, reg *registry.Registry, factory BackendFactory, capacity int) *Scheduler {
	return &Scheduler{
		log:      logging.WithComponent(log, "scheduler"),
		registry: reg,
		factory:  factory,
		queue:    make(chan any, capacity),
		cap:      capacity,
		stopped:  make(chan struct{}),
	}
}

// Start loads the initial spec and launches the worker goroutine.
func (s *Scheduler) Start(ctx context.Context, initial registry.ModelSpec) error {
	backend, err := s.factory(initial)
	if err != nil {
		return fmt.Errorf("scheduler: construct initial backend: %w", err)
	}
	if err := backend.Load(ctx); err != nil {
		return fmt.Errorf("scheduler: load initial backend %s: %w", initial.Alias, err)
	}
	s.currentBackend = backend
	s.currentSpec.Store(&initial)

	go s.run()
	return nil
}

// Stop pushes a sentinel onto the queue and waits for the worker to exit.
// Jobs already queued ahead of the sentinel are processed to completion.
func (s *Scheduler) Stop() {
	s.queue <- sentinel{}
	<-s.stopped
}

// CurrentSpec returns a snapshot of the spec currently loaded. Safe to call
// concurrently with the worker; may be momentarily stale during a swap.
func (s *Scheduler) CurrentSpec() registry.ModelSpec {
	if p := s.currentSpec.Load(); p != nil {
		return *p
	}
	return registry.ModelSpec{}
}

// Degraded reports whether the scheduler has entered the sticky degraded
// state after an unrecoverable swap failure.
func (s *Scheduler) Degraded() bool {
	return s.degraded.Load()
}

// QueueDepth and QueueCapacity expose the FIFO's current fill level, used
// by the models/current endpoint and by /metrics.
func (s *Scheduler) QueueDepth() int    { return len(s.queue) }
func (s *Scheduler) QueueCapacity() int { return s.cap }

// Counters returns the cumulative processed/failed job counts.
func (s *Scheduler) Counters() (processed, failed int64) {
	return s.processed.Load(), s.failed.Load()
}

// CurrentModelAlias returns the alias of the currently loaded model, for
// metrics labeling.
func (s *Scheduler) CurrentModelAlias() string {
	return s.CurrentSpec().Alias
}

// submit enqueues a ready-to-run Job. Returns a service-busy error without
// blocking if the queue is full; otherwise the Job is pushed and the caller
// should wait on the returned channel for exactly one Outcome.
func (s *Scheduler) submit(job *Job) (<-chan Outcome, error) {
	select {
	case s.queue <- job:
		return job.resultCh, nil
	default:
		return nil, newError(KindServiceBusy, "Queue is full, try again shortly", nil)
	}
}

func (s *Scheduler) run() {
	defer close(s.stopped)
	for item := range s.queue {
		job, ok := item.(*Job)
		if !ok {
			return // sentinel
		}
		s.process(job)
	}
}

func (s *Scheduler) process(job *Job) {
	log := logging.WithRequest(s.log, job.UID)
	defer cleanupScratch(log, job.ScratchDir)

	if s.degraded.Load() {
		job.resultCh <- Outcome{Err: newError(KindDegraded, "service is degraded; restart required", nil)}
		s.failed.Add(1)
		return
	}

	ctx := context.Background()

	if job.Requested != nil {
		current := s.CurrentSpec()
		if job.Requested.Alias != current.Alias || job.Requested.ModelID != current.ModelID {
			if err := s.swapTo(ctx, log, *job.Requested); err != nil {
				job.resultCh <- Outcome{Err: err}
				s.failed.Add(1)
				return
			}
		}
	}

	responseSpec := s.CurrentSpec()
	if job.Requested != nil {
		responseSpec = *job.Requested
	}

	result, err := s.currentBackend.Transcribe(ctx, job.FilePath, job.Options)
	if err != nil {
		job.resultCh <- Outcome{Err: newError(KindBackendInternal, "transcription failed", err)}
		s.failed.Add(1)
		return
	}

	job.resultCh <- Outcome{Result: result, Spec: responseSpec, Format: job.Format, ReceivedAt: job.ReceivedAt}
	s.processed.Add(1)
}

// swapTo implements the release-before-load protocol. See the package
// doc comment for the invariant this enforces.
func (s *Scheduler) swapTo(ctx context.Context, log *slog.Logger, newSpec registry.ModelSpec) error {
	old := s.currentBackend
	oldSpec := s.CurrentSpec()

	if err := old.Release(ctx); err != nil {
		log.Error("release failed during swap", "from", oldSpec.Alias, "to", newSpec.Alias, "err", err)
		return newError(KindSwapAborted, "failed to release current model", err)
	}

	next, err := s.factory(newSpec)
	if err != nil {
		// Construction failure before Load: nothing loaded, same recovery
		// path as a load failure.
		return s.recoverOrDegrade(ctx, log, old, oldSpec, newSpec, err)
	}

	if err := next.Load(ctx); err != nil {
		return s.recoverOrDegrade(ctx, log, old, oldSpec, newSpec, err)
	}

	s.currentBackend = next
	s.currentSpec.Store(&newSpec)
	log.Info("swapped model", "from", oldSpec.Alias, "to", newSpec.Alias)
	return nil
}

func (s *Scheduler) recoverOrDegrade(ctx context.Context, log *slog.Logger, old inference.Backend, oldSpec registry.ModelSpec, newSpec registry.ModelSpec, loadErr error) error {
	if restoreErr := old.Load(ctx); restoreErr != nil {
		s.degraded.Store(true)
		log.Error("engine unrecoverable: restore failed after load failure",
			"from", oldSpec.Alias, "to", newSpec.Alias, "load_err", loadErr, "restore_err", restoreErr)
		return newError(KindEngineUnrecoverable, "engine unrecoverable: failed to load the requested model and failed to restore the previous one", fmt.Errorf("load: %v; restore: %v", loadErr, restoreErr))
	}

	s.currentBackend = old
	s.currentSpec.Store(&oldSpec)
	log.Warn("swap failed, restored previous model", "from", oldSpec.Alias, "attempted", newSpec.Alias, "err", loadErr)
	return newError(KindLoadFailed, "failed to load requested model", loadErr)
}
