package scheduler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/openboard/modkit/internal/db"
	"github.com/openboard/modkit/internal/observability"
)

const claimBatchSize = 100

// HandlerFunc executes one deferred job. A handler whose target is already
// gone must return nil; only genuine storage errors count as failures.
type HandlerFunc func(ctx context.Context, argument string) error

type WorkerStore interface {
	ClaimDueJobs(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*db.Job, error)
	CompleteJob(ctx context.Context, id string, at time.Time) error
	ReleaseJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, at time.Time) error
}

// TargetStore holds the mutations the built-in job kinds perform.
type TargetStore interface {
	DeleteThread(ctx context.Context, id int64) (bool, error)
	DeleteComment(ctx context.Context, id int64) (bool, error)
	DeleteBanTicket(ctx context.Context, userName string) (bool, error)
}

type Worker struct {
	store        WorkerStore
	pollInterval time.Duration
	claimTTL     time.Duration
	maxFailures  int
	clock        func() time.Time
	handlers     map[string]HandlerFunc
	logger       *log.Entry

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

type WorkerOptions struct {
	PollInterval time.Duration
	ClaimTTL     time.Duration
	MaxFailures  int
	// Clock overrides time.Now, letting tests fire jobs at a forced instant.
	Clock func() time.Time
}

func NewWorker(store WorkerStore, targets TargetStore, opts WorkerOptions) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 5 * time.Minute
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	w := &Worker{
		store:        store,
		pollInterval: opts.PollInterval,
		claimTTL:     opts.ClaimTTL,
		maxFailures:  opts.MaxFailures,
		clock:        opts.Clock,
		handlers:     map[string]HandlerFunc{},
		logger:       log.WithField("context", "deletion_scheduler"),
	}
	w.registerTargetHandlers(targets)
	return w
}

func (w *Worker) registerTargetHandlers(targets TargetStore) {
	if targets == nil {
		return
	}
	w.Register(KindDeleteThread, func(ctx context.Context, argument string) error {
		id, err := strconv.ParseInt(argument, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "bad thread id %q", argument)
		}
		deleted, err := targets.DeleteThread(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			w.logger.WithField("thread_id", id).Info("thread already gone, skipping")
		}
		return nil
	})
	w.Register(KindDeleteComment, func(ctx context.Context, argument string) error {
		id, err := strconv.ParseInt(argument, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "bad comment id %q", argument)
		}
		deleted, err := targets.DeleteComment(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			w.logger.WithField("comment_id", id).Info("comment already gone, skipping")
		}
		return nil
	})
	w.Register(KindLiftBan, func(ctx context.Context, argument string) error {
		deleted, err := targets.DeleteBanTicket(ctx, argument)
		if err != nil {
			return err
		}
		if !deleted {
			w.logger.WithField("user_name", argument).Info("ban ticket already gone, skipping")
		}
		return nil
	})
}

func (w *Worker) Register(kind string, handler HandlerFunc) {
	w.handlers[kind] = handler
}

func (w *Worker) Start(ctx context.Context) error {
	w.runMutex.Lock()
	defer w.runMutex.Unlock()
	if w.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.runCancel = cancel

	w.workersWg.Add(1)
	go func() {
		defer w.workersWg.Done()
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := w.ProcessDueJobs(runCtx); err != nil && !errorsIsCanceled(err) {
					w.logger.WithError(err).Error("failed to process due jobs")
				}
			}
		}
	}()

	w.started = true
	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	w.runMutex.Lock()
	if !w.started {
		w.runMutex.Unlock()
		return nil
	}
	w.started = false
	cancel := w.runCancel
	w.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// ProcessDueJobs claims and executes every job due at the worker's current
// clock. Handler failures are retried on later polls until MaxFailures, then
// the job lands in the operator-visible failure log.
func (w *Worker) ProcessDueJobs(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	now := w.clock()
	jobs, err := w.store.ClaimDueJobs(ctx, now, w.claimTTL, claimBatchSize)
	if err != nil {
		return errors.Wrap(err, "claim due jobs")
	}
	if len(jobs) > 0 {
		w.logger.WithField("count", len(jobs)).Debug("processing due jobs")
	}

	for _, job := range jobs {
		w.executeJob(ctx, job)
	}
	return nil
}

func (w *Worker) executeJob(ctx context.Context, job *db.Job) {
	entry := w.logger.WithFields(log.Fields{
		"job_id":   job.ID,
		"kind":     job.Kind,
		"argument": job.Argument,
	})

	handler, ok := w.handlers[job.Kind]
	if !ok {
		entry.Error("no handler registered for job kind, marking failed")
		if err := w.store.FailJob(ctx, job.ID, w.clock()); err != nil {
			entry.WithError(err).Error("failed to mark job failed")
		}
		observability.RecordJobExecution(job.Kind, "failed")
		return
	}

	stop := observability.StartJobExecution(job.Kind)
	if err := handler(ctx, job.Argument); err != nil {
		stop("error")
		w.handleJobFailure(ctx, job, entry, err)
		return
	}
	stop("ok")

	if err := w.store.CompleteJob(ctx, job.ID, w.clock()); err != nil {
		entry.WithError(err).Error("failed to mark job complete")
		return
	}
	observability.RecordJobExecution(job.Kind, "completed")
}

func (w *Worker) handleJobFailure(ctx context.Context, job *db.Job, entry *log.Entry, cause error) {
	failures := job.FailureCount + 1
	if failures >= w.maxFailures {
		entry.WithError(cause).WithField("failures", failures).Error("job failed too many times, giving up")
		if err := w.store.FailJob(ctx, job.ID, w.clock()); err != nil {
			entry.WithError(err).Error("failed to mark job failed")
		}
		observability.RecordJobExecution(job.Kind, "failed")
		return
	}

	entry.WithError(cause).WithField("failures", failures).Warn("job execution failed, will retry")
	if err := w.store.ReleaseJob(ctx, job.ID); err != nil {
		entry.WithError(err).Error("failed to release job")
	}
	observability.RecordJobExecution(job.Kind, "retried")
}

func errorsIsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
