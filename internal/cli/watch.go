package cli

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"diagramport/pkg/export"
)

// watchDebounce is how long the watcher waits after the last change before
// re-exporting. Editors fire bursts of events per save.
const watchDebounce = 500 * time.Millisecond

// watchCommand creates the watch command: an initial export followed by
// automatic re-exports whenever a diagram source changes.
func (c *CLI) watchCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-export diagrams whenever sources change",
		Long: `Watch performs an initial export of the path, then keeps running and
re-exports whenever a diagram file or markdown document under it is
created or modified. With versioned naming, unchanged diagrams stay
untouched across re-exports, so only real edits produce new files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Live progress makes no sense for a long-running loop.
			opts.plain = true
			return c.runWatch(cmd.Context(), args[0], &opts)
		},
	}

	cfg := c.Config.Export
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg, png, pdf, webp, jpg (comma-separated)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", cfg.NamingMode, "naming mode: versioned, overwrite")
	cmd.Flags().StringVarP(&opts.output, "output", "o", cfg.OutputDir, "output directory (default: alongside each source)")
	cmd.Flags().BoolVar(&opts.organizeByFormat, "by-format", cfg.OrganizeByFormat, "group outputs into per-format subdirectories")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", cfg.MaxDepth, "maximum directory recursion depth")
	cmd.Flags().StringVar(&opts.theme, "theme", cfg.Theme, "diagram theme: default, dark, forest, neutral")
	cmd.Flags().StringVar(&opts.backend, "backend", cfg.Backend, "preferred backend: mermaid-cli, embedded-graphviz")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")

	return cmd
}

// runWatch runs the initial export, then the watch loop until the context
// is cancelled.
func (c *CLI) runWatch(ctx context.Context, root string, opts *exportOpts) error {
	runner := c.newRunner(opts.noCache)
	defer runner.Cache.Close()

	eo := c.buildOptions(opts)
	eo.OnJobDone = func(done, total int, oc export.JobOutcome) {
		printOutcome(oc)
	}

	result, err := runner.ExportBatch(ctx, root, eo)
	if err != nil {
		return err
	}
	printBatchSummary(result)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root); err != nil {
		return err
	}
	printInfo("Watching %s for changes (ctrl-c to stop)", StyleHighlight.Render(root))

	// Debounce timer. Events reset it; expiry triggers a re-export.
	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// New directories need their own watch to catch files
			// created inside them later.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addWatchDirs(watcher, event.Name)
				}
			}
			if !isDiagramSource(event.Name) {
				continue
			}
			c.Logger.Debug("source changed", "path", event.Name)
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watch error", "err", err)

		case <-timer.C:
			result, err := runner.ExportBatch(ctx, root, eo)
			if err != nil {
				printError("re-export failed: %v", err)
				continue
			}
			printBatchSummary(result)
		}
	}
}

// addWatchDirs registers a path and, for directories, its subdirectories
// with the watcher. Unwatchable entries are skipped.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || path == root {
			_ = watcher.Add(path)
		}
		return nil
	})
}

// isDiagramSource reports whether a changed path is worth re-exporting for.
func isDiagramSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mmd", ".mermaid", ".md", ".markdown":
		return true
	}
	return false
}
