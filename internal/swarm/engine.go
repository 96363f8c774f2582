// Package swarm implements the orchestration engine: agent lifecycle, task
// dispatch, parallel stages, completion watchers, critical-path analysis,
// retry/dead-letter handling, health checks, and the reporting surface.
//
// One Engine is constructed per process and owns the durable store, the
// workbench client, and every background watcher. All entity mutations go
// through the store's accessors and are persisted immediately afterward.
package swarm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/swarmbench/swarmbench/internal/history"
	"github.com/swarmbench/swarmbench/internal/resources"
	"github.com/swarmbench/swarmbench/internal/store"
	"github.com/swarmbench/swarmbench/internal/workbench"
)

// Sentinel errors for precondition failures. These are input errors: the
// engine reports them synchronously and mutates no state.
var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrAgentBusy       = errors.New("agent is busy")
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskNotTerminal = errors.New("task is still running")
	ErrStageNotFound   = errors.New("dependency stage not found")
	ErrStageNotReady   = errors.New("dependency stage not yet complete")
	ErrReservedKey     = errors.New("memory key prefix is reserved")
)

const (
	defaultTaskTimeout    = 10 * time.Minute
	defaultPollInterval   = 3 * time.Second
	defaultStaleThreshold = 5 * time.Minute
	defaultMaxRetries     = 3
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	// TaskTimeout is the ceiling a completion watcher waits for a response.
	TaskTimeout time.Duration
	// PollInterval is the interval Collect polls terminal status at.
	PollInterval time.Duration
	// StaleThreshold is how long a working agent may be inactive before a
	// health check reclaims it.
	StaleThreshold time.Duration
	// MaxRetries is the default retry budget before a task is dead-lettered.
	MaxRetries int
	// PerAgentMemGB is the estimated memory cost of one agent workspace.
	PerAgentMemGB float64
	// Journal receives transition events. Nil disables journaling.
	Journal *history.Journal
	// Logger receives debug output. Nil means no debug logging.
	Logger *DebugLogger
}

// Engine is the single-process swarm scheduler. All public operations are
// safe for concurrent use; entity state lives in the store behind its mutex.
type Engine struct {
	store     *store.Store
	client    workbench.Client
	estimator *resources.Estimator
	journal   *history.Journal
	logger    *DebugLogger

	taskTimeout    time.Duration
	pollInterval   time.Duration
	staleThreshold time.Duration
	maxRetries     int

	// watchers tracks every in-flight completion watcher so Close can
	// drain them deterministically.
	watchers sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	closeOnce sync.Once
}

// New constructs the engine around a store and a workbench client.
func New(st *store.Store, client workbench.Client, opts Options) *Engine {
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = defaultStaleThreshold
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = NopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		store:          st,
		client:         client,
		estimator:      resources.NewEstimator(opts.PerAgentMemGB),
		journal:        opts.Journal,
		logger:         opts.Logger,
		taskTimeout:    opts.TaskTimeout,
		pollInterval:   opts.PollInterval,
		staleThreshold: opts.StaleThreshold,
		maxRetries:     opts.MaxRetries,
		ctx:            ctx,
		cancel:         cancel,
	}

	setPackageLogger(opts.Logger)
	st.SetLogf(debugLog)
	e.journal.SetLogf(debugLog)

	e.resumeWatchers()

	return e
}

// Close cancels outstanding watcher waits and writes the final state with
// the clean-shutdown marker. Watchers interrupted mid-wait leave their tasks
// running, and the marker tells the next load to keep them for resume
// instead of sanitizing them as crash leftovers. Safe to call more than
// once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.cancel()
		e.watchers.Wait()
		if err := e.store.SaveFinal(); err != nil {
			debugLog("[engine] final persist failed: %v", err)
		}
	})
	return nil
}

// persist saves the full state to disk. Persistence is best-effort
// durability: failures are logged and swallowed, since in-memory state
// remains authoritative for the running process.
func (e *Engine) persist() {
	if err := e.store.Save(); err != nil {
		debugLog("[engine] persist failed: %v", err)
	}
}
