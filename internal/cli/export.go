package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"diagramport/pkg/export"
	"diagramport/pkg/naming"
)

// exportOpts holds the command-line flags for the export command.
type exportOpts struct {
	formats          string // comma-separated output formats
	mode             string // naming mode: "versioned" or "overwrite"
	output           string // output directory (empty = alongside sources)
	organizeByFormat bool   // place outputs under {format}/ subdirectories
	maxDepth         int    // directory recursion depth
	theme            string // diagram theme
	width            int    // render width in pixels
	height           int    // render height in pixels
	background       string // CSS background color or "transparent"
	backend          string // preferred backend name
	workers          int    // concurrent render workers
	noCache          bool   // disable the render cache
	refresh          bool   // bypass cached renders
	plain            bool   // disable the interactive progress display
}

// exportCommand creates the export command, the main entry point for both
// single-file and batch exports.
func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export mermaid diagrams to image files",
		Long: `Export discovers mermaid diagrams under a path and renders each to the
requested formats. The path may be a single diagram file, a markdown
document, or a directory tree.

Versioned naming (the default) gives every distinct diagram content its
own numbered, content-addressed file; re-exporting unchanged diagrams is
a no-op. Overwrite naming writes to a stable path and re-renders every
time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), args[0], &opts)
		},
	}

	cfg := c.Config.Export
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg, png, pdf, webp, jpg (comma-separated)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", cfg.NamingMode, "naming mode: versioned, overwrite")
	cmd.Flags().StringVarP(&opts.output, "output", "o", cfg.OutputDir, "output directory (default: alongside each source)")
	cmd.Flags().BoolVar(&opts.organizeByFormat, "by-format", cfg.OrganizeByFormat, "group outputs into per-format subdirectories")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", cfg.MaxDepth, "maximum directory recursion depth")
	cmd.Flags().StringVar(&opts.theme, "theme", cfg.Theme, "diagram theme: default, dark, forest, neutral")
	cmd.Flags().IntVar(&opts.width, "width", cfg.Width, "render width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", cfg.Height, "render height in pixels")
	cmd.Flags().StringVar(&opts.background, "background", cfg.Background, "background color or 'transparent'")
	cmd.Flags().StringVar(&opts.backend, "backend", cfg.Backend, "preferred backend: mermaid-cli, embedded-graphviz")
	cmd.Flags().IntVar(&opts.workers, "workers", cfg.Workers, "concurrent render workers")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even when a cached artifact exists")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "plain line-by-line output instead of live progress")

	return cmd
}

// buildOptions converts flags into export options on top of the configured
// defaults.
func (c *CLI) buildOptions(opts *exportOpts) export.Options {
	eo := c.Config.ExportOptions()
	eo.Formats = parseFormats(opts.formats, eo.Formats)
	eo.NamingMode = naming.Mode(opts.mode)
	eo.OutputDir = opts.output
	eo.OrganizeByFormat = opts.organizeByFormat
	eo.MaxDepth = opts.maxDepth
	eo.Theme = opts.theme
	eo.Width = opts.width
	eo.Height = opts.height
	eo.Background = opts.background
	eo.Backend = opts.backend
	eo.Workers = opts.workers
	eo.Refresh = opts.refresh
	eo.Logger = c.Logger
	return eo
}

// runExport executes an export run with either live or plain progress
// output and prints the batch summary.
func (c *CLI) runExport(ctx context.Context, root string, opts *exportOpts) error {
	runner := c.newRunner(opts.noCache)
	defer runner.Cache.Close()

	eo := c.buildOptions(opts)
	eo.Logger = loggerFromContext(ctx)

	var result *export.BatchResult
	var err error
	if opts.plain || !term.IsTerminal(int(os.Stderr.Fd())) {
		eo.OnJobDone = func(done, total int, oc export.JobOutcome) {
			printOutcome(oc)
		}
		result, err = runner.ExportBatch(ctx, root, eo)
	} else {
		result, err = c.exportWithProgress(ctx, runner, root, eo)
	}
	if err != nil {
		return err
	}

	printBatchSummary(result)
	if result.State == export.StateCancelled {
		return context.Canceled
	}
	if result.Failed > 0 && result.Succeeded == 0 && result.Skipped == 0 {
		return fmt.Errorf("all %d exports failed", result.Failed)
	}
	return nil
}
