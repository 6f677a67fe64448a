package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"diagramport/pkg/backend"
	"diagramport/pkg/errors"
	"diagramport/pkg/naming"
)

// fakeBackend is a scriptable backend for orchestration tests.
type fakeBackend struct {
	name      string
	probeOK   bool
	renders   atomic.Int64
	failTexts []string
}

func (f *fakeBackend) Name() string                 { return f.name }
func (f *fakeBackend) Probe(context.Context) bool   { return f.probeOK }
func (f *fakeBackend) Render(_ context.Context, text string, opts backend.RenderOptions) ([]byte, error) {
	f.renders.Add(1)
	for _, bad := range f.failTexts {
		if strings.Contains(text, bad) {
			return nil, errors.New(errors.ErrCodeRenderFailure, "cannot render %q", bad)
		}
	}
	return []byte("rendered:" + opts.Format + ":" + text), nil
}

func newFakeRunner(fake *fakeBackend) *Runner {
	return NewRunner(backend.NewSelector(0, fake), nil, nil, nil)
}

func writeSource(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportBatchSucceeds(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "auth.mmd", "flowchart TD\n  A-->B\n")
	writeSource(t, dir, "billing.mmd", "flowchart TD\n  C-->D\n")

	fake := &fakeBackend{name: "fake", probeOK: true}
	result, err := newFakeRunner(fake).ExportBatch(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("ExportBatch failed: %v", err)
	}

	if result.Total != 2 || result.Succeeded != 2 || result.Failed != 0 {
		t.Errorf("got total=%d succeeded=%d failed=%d, want 2/2/0",
			result.Total, result.Succeeded, result.Failed)
	}
	if result.State != StateCompleted {
		t.Errorf("state = %q, want %q", result.State, StateCompleted)
	}
	for _, out := range result.Outputs {
		if _, err := os.Stat(out); err != nil {
			t.Errorf("output %s not written: %v", out, err)
		}
	}
}

func TestExportBatchIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "bad.mmd", "flowchart TD\n  boom\n")
	writeSource(t, dir, "good.mmd", "flowchart TD\n  A-->B\n")

	fake := &fakeBackend{name: "fake", probeOK: true, failTexts: []string{"boom"}}
	result, err := newFakeRunner(fake).ExportBatch(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("ExportBatch failed: %v", err)
	}

	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("got succeeded=%d failed=%d, want 1/1", result.Succeeded, result.Failed)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(result.Failures))
	}
	if !strings.Contains(result.Failures[0].Source, "bad.mmd") {
		t.Errorf("failure attributed to %q, want bad.mmd", result.Failures[0].Source)
	}
	if result.Failures[0].Reason == "" {
		t.Error("failure reason is empty")
	}
	if result.State != StateCompleted {
		t.Errorf("state = %q, want %q (failures are not fatal)", result.State, StateCompleted)
	}
}

func TestExportBatchFailuresInJobOrder(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.mmd", "boom a")
	writeSource(t, dir, "b.mmd", "flowchart TD\n  A-->B\n")
	writeSource(t, dir, "c.mmd", "boom c")
	writeSource(t, dir, "d.mmd", "boom d")

	fake := &fakeBackend{name: "fake", probeOK: true, failTexts: []string{"boom"}}
	result, err := newFakeRunner(fake).ExportBatch(context.Background(), dir, Options{Workers: 4})
	if err != nil {
		t.Fatalf("ExportBatch failed: %v", err)
	}

	if len(result.Failures) != 3 {
		t.Fatalf("got %d failures, want 3", len(result.Failures))
	}
	want := []string{"a.mmd", "c.mmd", "d.mmd"}
	for i, f := range result.Failures {
		if !strings.Contains(f.Source, want[i]) {
			t.Errorf("failure[%d] = %q, want %s", i, f.Source, want[i])
		}
	}
}

func TestExportBatchNoBackendAborts(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "auth.mmd", "flowchart TD\n  A-->B\n")

	fake := &fakeBackend{name: "fake", probeOK: false}
	_, err := newFakeRunner(fake).ExportBatch(context.Background(), dir, Options{})
	if err == nil {
		t.Fatal("expected error when no backend is usable")
	}
	if errors.GetCode(err) != errors.ErrCodeStrategyUnavailable {
		t.Errorf("code = %v, want STRATEGY_UNAVAILABLE", errors.GetCode(err))
	}
	if fake.renders.Load() != 0 {
		t.Error("no job should run without a usable backend")
	}
}

func TestExportBatchSkipsIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "auth.mmd", "flowchart TD\n  A-->B\n")

	fake := &fakeBackend{name: "fake", probeOK: true}
	runner := newFakeRunner(fake)

	first, err := runner.ExportBatch(context.Background(), dir, Options{NamingMode: naming.ModeVersioned})
	if err != nil {
		t.Fatal(err)
	}
	if first.Succeeded != 1 {
		t.Fatalf("first run succeeded=%d, want 1", first.Succeeded)
	}
	rendersAfterFirst := fake.renders.Load()

	second, err := runner.ExportBatch(context.Background(), dir, Options{NamingMode: naming.ModeVersioned})
	if err != nil {
		t.Fatal(err)
	}
	if second.Skipped != 1 || second.Succeeded != 0 {
		t.Errorf("second run skipped=%d succeeded=%d, want 1/0", second.Skipped, second.Succeeded)
	}
	if fake.renders.Load() != rendersAfterFirst {
		t.Error("skipped job must not render")
	}
	if len(second.Outputs) != 1 || second.Outputs[0] != first.Outputs[0] {
		t.Errorf("skip resolved to %v, want %v", second.Outputs, first.Outputs)
	}
}

func TestExportBatchOverwriteAlwaysRenders(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "auth.mmd", "flowchart TD\n  A-->B\n")

	fake := &fakeBackend{name: "fake", probeOK: true}
	runner := newFakeRunner(fake)
	opts := Options{NamingMode: naming.ModeOverwrite}

	first, err := runner.ExportBatch(context.Background(), dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := runner.ExportBatch(context.Background(), dir, Options{NamingMode: naming.ModeOverwrite})
	if err != nil {
		t.Fatal(err)
	}

	if second.Skipped != 0 || second.Succeeded != 1 {
		t.Errorf("overwrite run skipped=%d succeeded=%d, want 0/1", second.Skipped, second.Succeeded)
	}
	if fake.renders.Load() != 2 {
		t.Errorf("renders = %d, want 2 (overwrite never skips)", fake.renders.Load())
	}
	if first.Outputs[0] != second.Outputs[0] {
		t.Errorf("overwrite path changed: %s vs %s", first.Outputs[0], second.Outputs[0])
	}
}

func TestExportBatchCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := range 5 {
		writeSource(t, dir, fmt.Sprintf("d%d.mmd", i), fmt.Sprintf("flowchart TD\n  A%d-->B\n", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeBackend{name: "fake", probeOK: true}
	opts := Options{
		OnJobDone: func(done, total int, _ JobOutcome) {
			if done == 2 {
				cancel()
			}
		},
	}
	result, err := newFakeRunner(fake).ExportBatch(ctx, dir, opts)
	if err != nil {
		t.Fatalf("cancellation must return a partial result, got error: %v", err)
	}

	if result.State != StateCancelled {
		t.Errorf("state = %q, want %q", result.State, StateCancelled)
	}
	if result.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2 (jobs after cancellation must not start)", result.Succeeded)
	}
	if result.Total != 5 {
		t.Errorf("total = %d, want 5", result.Total)
	}
}

func TestExportBatchOrganizeByFormat(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	writeSource(t, srcDir, "auth.mmd", "flowchart TD\n  A-->B\n")

	fake := &fakeBackend{name: "fake", probeOK: true}
	opts := Options{
		Formats:          []string{"svg", "png"},
		OutputDir:        outDir,
		OrganizeByFormat: true,
	}
	result, err := newFakeRunner(fake).ExportBatch(context.Background(), srcDir, opts)
	if err != nil {
		t.Fatal(err)
	}

	if result.Succeeded != 2 {
		t.Fatalf("succeeded = %d, want 2", result.Succeeded)
	}
	for _, format := range []string{"svg", "png"} {
		matches, _ := filepath.Glob(filepath.Join(outDir, format, "auth-01-*."+format))
		if len(matches) != 1 {
			t.Errorf("expected one %s artifact under %s/, got %v", format, format, matches)
		}
	}
}

func TestExportBatchEmbeddedBlocks(t *testing.T) {
	dir := t.TempDir()
	doc := "# Design\n\n```mermaid\nflowchart TD\n  A-->B\n```\n\ntext\n\n```mermaid\nflowchart TD\n  C-->D\n```\n"
	writeSource(t, dir, "design.md", doc)

	fake := &fakeBackend{name: "fake", probeOK: true}
	result, err := newFakeRunner(fake).ExportBatch(context.Background(), dir, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if result.Succeeded != 2 {
		t.Fatalf("succeeded = %d, want 2", result.Succeeded)
	}
	for i, base := range []string{"design-1", "design-2"} {
		matches, _ := filepath.Glob(filepath.Join(dir, base+"-01-*.svg"))
		if len(matches) != 1 {
			t.Errorf("block %d: expected one artifact for base %s, got %v", i+1, base, matches)
		}
	}
}

func TestExportSingle(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "auth.mmd", "flowchart TD\n  A-->B\n")

	fake := &fakeBackend{name: "fake", probeOK: true}
	out, err := newFakeRunner(fake).ExportSingle(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("ExportSingle failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(out), "auth-01-") || !strings.HasSuffix(out, ".svg") {
		t.Errorf("unexpected output path %s", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestExportSingleFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "bad.mmd", "boom")

	fake := &fakeBackend{name: "fake", probeOK: true, failTexts: []string{"boom"}}
	_, err := newFakeRunner(fake).ExportSingle(context.Background(), path, Options{})
	if err == nil {
		t.Fatal("expected error for failing single export")
	}
}

func TestExportSingleCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "auth.mmd", "flowchart TD\n  A-->B\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeBackend{name: "fake", probeOK: true}
	_, err := newFakeRunner(fake).ExportSingle(ctx, path, Options{})
	if err == nil {
		t.Fatal("expected error for cancelled single export")
	}
	if errors.GetCode(err) != errors.ErrCodeCancelled {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeCancelled)
	}
}

func TestExportBatchConcurrentSameBase(t *testing.T) {
	// Several copies of the same diagram named identically across
	// subdirectories all target distinct directories, while four workers
	// hammer sequence allocation.
	root := t.TempDir()
	for i := range 6 {
		sub := filepath.Join(root, fmt.Sprintf("s%d", i))
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatal(err)
		}
		writeSource(t, sub, "flow.mmd", fmt.Sprintf("flowchart TD\n  A%d-->B\n", i))
	}

	fake := &fakeBackend{name: "fake", probeOK: true}
	out := t.TempDir()
	opts := Options{Workers: 4, OutputDir: out}
	result, err := newFakeRunner(fake).ExportBatch(context.Background(), root, opts)
	if err != nil {
		t.Fatal(err)
	}

	if result.Succeeded != 6 {
		t.Fatalf("succeeded = %d, want 6: %+v", result.Succeeded, result.Failures)
	}
	// All six share (dir, base, format), so sequence numbers must be the
	// unique run 01..06.
	matches, _ := filepath.Glob(filepath.Join(out, "flow-*-*.svg"))
	if len(matches) != 6 {
		t.Errorf("expected 6 distinct artifacts, got %d: %v", len(matches), matches)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"explicit formats", Options{Formats: []string{"svg", "pdf"}}, false},
		{"invalid format", Options{Formats: []string{"gif"}}, true},
		{"invalid mode", Options{NamingMode: "timestamped"}, true},
		{"invalid theme", Options{Theme: "solarized"}, true},
		{"traversal output dir", Options{OutputDir: "../outside"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != backend.FormatSVG {
		t.Errorf("default formats = %v, want [svg]", opts.Formats)
	}
	if opts.NamingMode != naming.ModeVersioned {
		t.Errorf("default mode = %v, want versioned", opts.NamingMode)
	}
	if opts.Workers != 1 {
		t.Errorf("default workers = %d, want 1", opts.Workers)
	}
}
