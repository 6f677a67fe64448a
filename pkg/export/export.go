// Package export provides the core export orchestration for diagramport.
//
// This package drives the complete discover → name → render → persist flow
// that can be used by the CLI, the watch loop, and the HTTP server. By
// centralizing this logic, behavior stays consistent across all entry
// points.
//
// # Architecture
//
// A batch run moves through four stages:
//
//  1. Discover: collect diagram sources under a root with a depth limit
//  2. Pre-flight: resolve at least one rendering backend, or abort
//  3. Process: one job per source × format - compute the output path,
//     skip, render, or record a per-job failure, then persist
//  4. Aggregate: return counts and per-failure reasons
//
// Per-job failures never abort a run: a batch always completes with a
// summary. Only an inaccessible discovery root or a total absence of
// backends is fatal, before any job runs.
//
// # Usage
//
// Create a Runner and execute a batch:
//
//	runner := export.NewRunner(selector, cache, nil, logger)
//	opts := export.Options{
//	    Formats:    []string{"svg", "png"},
//	    NamingMode: naming.ModeVersioned,
//	}
//	result, err := runner.ExportBatch(ctx, "docs/", opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d succeeded, %d failed, %d skipped\n",
//	    result.Succeeded, result.Failed, result.Skipped)
package export

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"diagramport/pkg/backend"
	"diagramport/pkg/cache"
	"diagramport/pkg/errors"
	"diagramport/pkg/naming"
	"diagramport/pkg/source"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, Watch, and Server
// =============================================================================

const (
	// DefaultMaxDepth is the maximum directory recursion depth for
	// discovery. Conservative to keep accidental exports of huge trees
	// in check; callers can override explicitly.
	DefaultMaxDepth = 5

	// DefaultWorkers is the number of concurrent render workers. The
	// default is strictly sequential: backends are heavyweight (process
	// spawn or embedded engine instantiation) and unbounded concurrency
	// risks resource exhaustion on the host.
	DefaultWorkers = 1
)

// DefaultNamingMode is the default output naming policy.
const DefaultNamingMode = naming.ModeVersioned

// =============================================================================
// Options - Export Configuration
// =============================================================================

// Options contains all configuration for an export run.
// This struct supports JSON serialization for HTTP requests.
type Options struct {
	// Formats are the requested output formats, one job per source per
	// format. Empty means svg only.
	Formats []string `json:"formats,omitempty"`

	// NamingMode selects the output naming policy.
	NamingMode naming.Mode `json:"naming_mode,omitempty"`

	// OutputDir overrides where artifacts are written. Empty means
	// alongside each source file.
	OutputDir string `json:"output_dir,omitempty"`

	// OrganizeByFormat places each format's outputs under a {format}/
	// subdirectory instead of flat.
	OrganizeByFormat bool `json:"organize_by_format,omitempty"`

	// MaxDepth bounds directory discovery. Zero means DefaultMaxDepth.
	MaxDepth int `json:"max_depth,omitempty"`

	// Render options
	Theme      string `json:"theme,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Background string `json:"background,omitempty"`

	// Backend is the preferred backend name. Empty means priority order.
	Backend string `json:"backend,omitempty"`

	// Workers is the render worker count. Values above one enable
	// bounded concurrency; sequence allocation stays serialized per
	// (directory, base, format) regardless.
	Workers int `json:"workers,omitempty"`

	// Refresh bypasses the render cache.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// OnJobDone is invoked after each job with running progress. Used by
	// the CLI to drive live progress display. May be nil.
	OnJobDone func(done, total int, outcome JobOutcome) `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks fields and applies defaults.
// This method is idempotent - calling it multiple times has the same
// effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if len(o.Formats) == 0 {
		o.Formats = []string{backend.FormatSVG}
	}
	if err := backend.ValidateFormats(o.Formats); err != nil {
		return err
	}

	if o.NamingMode == "" {
		o.NamingMode = DefaultNamingMode
	}
	if err := naming.ValidateMode(o.NamingMode); err != nil {
		return err
	}

	if o.Theme == "" {
		o.Theme = backend.ThemeDefault
	}
	if err := backend.ValidateTheme(o.Theme); err != nil {
		return err
	}

	if o.OutputDir != "" {
		if err := errors.ValidateOutputDir(o.OutputDir); err != nil {
			return err
		}
	}

	if o.MaxDepth == 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// RenderOptions builds the per-job backend options for a format.
func (o *Options) RenderOptions(format string) backend.RenderOptions {
	return backend.RenderOptions{
		Format:     format,
		Theme:      o.Theme,
		Width:      o.Width,
		Height:     o.Height,
		Background: o.Background,
	}
}

// RenderKeyOpts returns cache key options for a format.
func (o *Options) RenderKeyOpts(format string) cache.RenderKeyOpts {
	return cache.RenderKeyOpts{
		Format:     format,
		Theme:      o.Theme,
		Width:      o.Width,
		Height:     o.Height,
		Background: o.Background,
		Backend:    o.Backend,
	}
}

// =============================================================================
// Jobs and Results
// =============================================================================

// Job is one unit of export work: a single discovered source rendered to a
// single format. Jobs are constructed by the runner and consumed once.
type Job struct {
	// Source is the discovered diagram source.
	Source source.Source

	// Format is the requested output format.
	Format string

	// OutputDir is the resolved directory for this job's artifact.
	OutputDir string
}

// Describe returns a human-readable identifier for the job's source,
// including the block index for embedded sources.
func (j Job) Describe() string {
	if j.Source.Kind == source.KindEmbedded {
		return fmt.Sprintf("%s#%d", j.Source.Path, j.Source.BlockIndex+1)
	}
	return j.Source.Path
}

// JobStatus classifies a processed job.
type JobStatus int

// Job statuses.
const (
	StatusSucceeded JobStatus = iota
	StatusSkipped
	StatusFailed
)

// JobOutcome is the result of processing one job.
type JobOutcome struct {
	Job    Job
	Status JobStatus

	// OutputPath is the artifact path for succeeded and skipped jobs.
	OutputPath string

	// Backend names the backend that rendered, empty for skipped jobs
	// and cache hits.
	Backend string

	// Reason holds the failure reason for failed jobs.
	Reason string
}

// Failure is one per-job failure in a batch result.
type Failure struct {
	// Source identifies the failing source (path, plus block index for
	// embedded blocks).
	Source string `json:"source"`

	// Reason is the human-readable failure reason.
	Reason string `json:"reason"`
}

// BatchResult is the aggregate outcome of a batch run. It is built
// incrementally during the run and returned once the run completes or is
// cancelled.
type BatchResult struct {
	// RunID identifies the run for cancellation and logs.
	RunID string `json:"run_id"`

	// State is the terminal run state: completed or cancelled.
	State RunState `json:"state"`

	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	// Failures lists per-job failures, stable-sorted by original job
	// order for reproducible reporting.
	Failures []Failure `json:"failures,omitempty"`

	// Outputs lists the artifact paths of succeeded and skipped jobs, in
	// job order.
	Outputs []string `json:"outputs,omitempty"`
}

// =============================================================================
// Run States
// =============================================================================

// RunState is the lifecycle state of a batch run.
type RunState string

// Run states. There is no failed terminal state for a run as a whole: a
// run with zero successes still completes, carrying an empty-success
// result. Only pre-flight conditions abort before processing begins.
const (
	StateIdle        RunState = "idle"
	StateDiscovering RunState = "discovering"
	StateProcessing  RunState = "processing"
	StateCompleted   RunState = "completed"
	StateCancelled   RunState = "cancelled"
)
