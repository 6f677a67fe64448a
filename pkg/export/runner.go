package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"diagramport/pkg/backend"
	"diagramport/pkg/cache"
	"diagramport/pkg/errors"
	"diagramport/pkg/naming"
	"diagramport/pkg/observability"
	"diagramport/pkg/source"
)

// Runner executes export runs: discovery, backend resolution, per-job
// naming and rendering, and persistence. Both CLI and API use this to
// avoid duplicating orchestration logic.
//
// The Runner is stateless except for the active-run registry, cache, and
// logger - it doesn't store batch results. Multiple goroutines can safely
// use the same Runner with different options.
type Runner struct {
	Selector *backend.Selector
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// run is one in-flight batch, registered for cancellation.
type run struct {
	id     string
	state  RunState
	cancel context.CancelFunc
}

// NewRunner creates a runner with the given selector and cache.
// If selector is nil, the default backend pair is used.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
func NewRunner(sel *backend.Selector, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if sel == nil {
		sel = backend.NewDefaultSelector(0)
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Selector: sel,
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		runs:     make(map[string]*run),
	}
}

// Cancel requests cooperative cancellation of a run. Jobs already started
// finish; no new jobs begin. Returns false when no run with that ID is
// active.
func (r *Runner) Cancel(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	active, ok := r.runs[runID]
	if !ok {
		return false
	}
	active.cancel()
	return true
}

// RunState reports the current state of a run, or StateIdle when no run
// with that ID is active.
func (r *Runner) RunState(runID string) RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active, ok := r.runs[runID]; ok {
		return active.state
	}
	return StateIdle
}

// ExportSingle exports the diagrams in a single file. Internally this is a
// one-source batch, so naming, caching, and failure semantics are identical
// to ExportBatch. Returns the first artifact path on success. A run
// cancelled before producing any artifact reports ErrCodeCancelled.
func (r *Runner) ExportSingle(ctx context.Context, path string, opts Options) (string, error) {
	result, err := r.ExportBatch(ctx, path, opts)
	if err != nil {
		return "", err
	}
	if len(result.Outputs) == 0 && result.State == StateCancelled {
		return "", errors.New(errors.ErrCodeCancelled, "export of %s cancelled before completion", path)
	}
	if result.Total == 0 {
		return "", errors.New(errors.ErrCodeInvalidSource, "no diagrams found in %s", path)
	}
	if len(result.Outputs) == 0 {
		reason := "export failed"
		if len(result.Failures) > 0 {
			reason = result.Failures[0].Reason
		}
		return "", errors.New(errors.ErrCodeRenderFailure, "%s", reason)
	}
	return result.Outputs[0], nil
}

// ExportBatch discovers diagram sources under root and exports each to
// every requested format.
//
// Per-job failures are isolated: every failing job is recorded with its
// reason and the run continues. The returned error is non-nil only for
// fatal pre-flight conditions, i.e. an inaccessible root, invalid options,
// or no usable rendering backend. Cancellation (via context or Cancel)
// returns the partial result with State set to StateCancelled, not an
// error.
func (r *Runner) ExportBatch(ctx context.Context, root string, opts Options) (*BatchResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	active := &run{id: uuid.NewString(), state: StateDiscovering, cancel: cancel}
	r.mu.Lock()
	r.runs[active.id] = active
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.runs, active.id)
		r.mu.Unlock()
	}()

	batchStart := time.Now()
	result := &BatchResult{RunID: active.id}

	// Stage 1: Discover
	discoverStart := time.Now()
	observability.Export().OnDiscoveryStart(ctx, root, opts.MaxDepth)
	sources, err := source.Discover(root, source.Options{MaxDepth: opts.MaxDepth, Logger: opts.Logger})
	observability.Export().OnDiscoveryComplete(ctx, root, len(sources), time.Since(discoverStart), err)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	opts.Logger.Info("discovered sources",
		"root", root,
		"sources", len(sources),
		"duration", time.Since(discoverStart))

	// Stage 2: Pre-flight backend resolution. A run with no usable
	// backend aborts here, before any job is attempted.
	if _, err := r.Selector.Resolve(ctx, opts.Backend); err != nil {
		return nil, err
	}

	policy, err := naming.ForMode(opts.NamingMode)
	if err != nil {
		return nil, err
	}

	// Stage 3: Process, one job per source per format.
	jobs := buildJobs(sources, opts)
	result.Total = len(jobs)
	r.setState(active, StateProcessing)

	outcomes := r.processJobs(ctx, active, jobs, policy, opts)

	// Stage 4: Aggregate in job order.
	for _, oc := range outcomes {
		switch oc.Status {
		case StatusSucceeded:
			result.Succeeded++
			result.Outputs = append(result.Outputs, oc.OutputPath)
		case StatusSkipped:
			result.Skipped++
			result.Outputs = append(result.Outputs, oc.OutputPath)
		case StatusFailed:
			result.Failed++
			result.Failures = append(result.Failures, Failure{
				Source: oc.Job.Describe(),
				Reason: oc.Reason,
			})
		}
	}

	result.State = StateCompleted
	if ctx.Err() != nil {
		result.State = StateCancelled
	}
	r.setState(active, result.State)

	observability.Export().OnBatchComplete(ctx, active.id,
		result.Succeeded, result.Failed, result.Skipped, time.Since(batchStart))

	opts.Logger.Info("batch finished",
		"run", active.id,
		"state", result.State,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", time.Since(batchStart))

	return result, nil
}

// buildJobs expands sources × formats into jobs in deterministic order:
// discovery order first, format order within each source.
func buildJobs(sources []source.Source, opts Options) []Job {
	jobs := make([]Job, 0, len(sources)*len(opts.Formats))
	for _, src := range sources {
		for _, format := range opts.Formats {
			dir := opts.OutputDir
			if dir == "" {
				dir = filepath.Dir(src.Path)
			}
			if opts.OrganizeByFormat {
				dir = filepath.Join(dir, format)
			}
			jobs = append(jobs, Job{Source: src, Format: format, OutputDir: dir})
		}
	}
	return jobs
}

// processJobs executes the jobs and returns outcomes in job order. Jobs
// not reached before cancellation produce no outcome.
func (r *Runner) processJobs(ctx context.Context, active *run, jobs []Job, policy naming.Policy, opts Options) []JobOutcome {
	outcomes := make([]JobOutcome, 0, len(jobs))
	done := 0

	if opts.Workers <= 1 {
		for _, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			oc := r.processJob(ctx, job, policy, opts)
			outcomes = append(outcomes, oc)
			done++
			if opts.OnJobDone != nil {
				opts.OnJobDone(done, len(jobs), oc)
			}
		}
		return outcomes
	}

	// Bounded concurrency. Outcomes are collected by index so failure
	// ordering stays stable regardless of completion order; sequence
	// allocation inside processJob is serialized per (dir, base, format)
	// by LockSequence.
	type indexed struct {
		idx int
		oc  JobOutcome
	}
	jobCh := make(chan int)
	resCh := make(chan indexed)

	var wg sync.WaitGroup
	for range opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				resCh <- indexed{idx: idx, oc: r.processJob(ctx, jobs[idx], policy, opts)}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for i := range jobs {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobCh <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resCh)
	}()

	byIndex := make(map[int]JobOutcome, len(jobs))
	for res := range resCh {
		byIndex[res.idx] = res.oc
		done++
		if opts.OnJobDone != nil {
			opts.OnJobDone(done, len(jobs), res.oc)
		}
	}
	for i := range jobs {
		if oc, ok := byIndex[i]; ok {
			outcomes = append(outcomes, oc)
		}
	}
	return outcomes
}

// processJob runs one job end to end: compute the output path, skip or
// render (through the cache), and persist. Failures are returned as the
// outcome, never as a panic or fatal error.
func (r *Runner) processJob(ctx context.Context, job Job, policy naming.Policy, opts Options) JobOutcome {
	oc := JobOutcome{Job: job}

	// Serialize the compute-then-write window so concurrent jobs for the
	// same (directory, base, format) cannot allocate the same sequence.
	unlock := naming.LockSequence(job.OutputDir, job.Source.BaseName(), job.Format)
	defer unlock()

	rec, err := policy.ComputePath(job.OutputDir, job.Source.BaseName(), job.Format, job.Source.Text)
	if err != nil {
		oc.Status = StatusFailed
		oc.Reason = errors.UserMessage(err)
		return oc
	}
	oc.OutputPath = rec.OutputPath

	if policy.ShouldSkip(rec) {
		opts.Logger.Debug("skipping identical content",
			"source", job.Describe(), "output", rec.OutputPath)
		oc.Status = StatusSkipped
		return oc
	}

	data, backendName, err := r.renderWithCache(ctx, job, rec.ContentHash, opts)
	if err != nil {
		oc.Status = StatusFailed
		oc.Reason = errors.UserMessage(err)
		return oc
	}
	oc.Backend = backendName

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		oc.Status = StatusFailed
		oc.Reason = errors.UserMessage(errors.Wrap(errors.ErrCodeFileSystem, err,
			"create output directory %s", job.OutputDir))
		return oc
	}
	if err := os.WriteFile(rec.OutputPath, data, 0o644); err != nil {
		oc.Status = StatusFailed
		oc.Reason = errors.UserMessage(errors.Wrap(errors.ErrCodeFileSystem, err,
			"write %s", rec.OutputPath))
		return oc
	}

	opts.Logger.Debug("exported diagram",
		"source", job.Describe(),
		"output", rec.OutputPath,
		"backend", backendName)
	oc.Status = StatusSucceeded
	return oc
}

// renderWithCache renders a job's diagram text, consulting the render
// cache first. Cache errors are logged and ignored: a broken cache must
// never fail an export.
func (r *Runner) renderWithCache(ctx context.Context, job Job, contentHash string, opts Options) ([]byte, string, error) {
	key := r.Keyer.RenderKey(contentHash, opts.RenderKeyOpts(job.Format))

	if !opts.Refresh {
		if data, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
			observability.Cache().OnCacheHit(ctx, "render")
			opts.Logger.Debug("render cache hit", "source", job.Describe(), "format", job.Format)
			return data, "", nil
		} else if err != nil {
			opts.Logger.Warn("cache read failed", "err", err)
		} else {
			observability.Cache().OnCacheMiss(ctx, "render")
		}
	}

	renderStart := time.Now()
	observability.Export().OnRenderStart(ctx, opts.Backend, job.Format)
	data, backendName, err := r.Selector.Render(ctx, job.Source.Text, opts.RenderOptions(job.Format), opts.Backend)
	observability.Export().OnRenderComplete(ctx, backendName, job.Format, len(data), time.Since(renderStart), err)
	if err != nil {
		return nil, backendName, err
	}

	if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err != nil {
		opts.Logger.Warn("cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "render", len(data))
	}
	return data, backendName, nil
}

// setState updates a run's registered state under the registry lock.
func (r *Runner) setState(active *run, state RunState) {
	r.mu.Lock()
	active.state = state
	r.mu.Unlock()
}

// applyLogger propagates the runner's logger to options that don't carry
// their own.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
