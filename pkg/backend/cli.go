package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"diagramport/pkg/errors"
)

const (
	// defaultCommand is the mermaid CLI binary name.
	defaultCommand = "mmdc"

	// defaultProbeTimeout bounds the --version capability check.
	defaultProbeTimeout = 5 * time.Second

	// defaultRenderTimeout bounds a single external render invocation.
	defaultRenderTimeout = 60 * time.Second
)

// CLIBackend renders diagrams by spawning the external mermaid CLI.
//
// This is the primary backend: full mermaid grammar support, every output
// format, at the cost of a process spawn per render. Probing checks that
// the binary is on PATH and answers --version; the result can change
// mid-session when the runtime dependency is installed later, which is why
// the Selector re-probes after a validity window.
type CLIBackend struct {
	// Command overrides the binary name or path. Empty means "mmdc".
	Command string

	// RenderTimeout bounds one render invocation. Zero means the default.
	RenderTimeout time.Duration
}

// NewCLIBackend creates a CLI backend with default settings.
func NewCLIBackend() *CLIBackend {
	return &CLIBackend{}
}

// Name returns the backend identifier.
func (b *CLIBackend) Name() string { return "mermaid-cli" }

// command returns the configured binary name.
func (b *CLIBackend) command() string {
	if b.Command != "" {
		return b.Command
	}
	return defaultCommand
}

// Probe reports whether the mermaid CLI is installed and responsive.
func (b *CLIBackend) Probe(ctx context.Context) bool {
	path, err := exec.LookPath(b.command())
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	return exec.CommandContext(ctx, path, "--version").Run() == nil
}

// Render writes the diagram text to a temp file, invokes the CLI, and
// reads back the produced artifact. The output format is carried by the
// output file extension, mirroring how the CLI infers it.
func (b *CLIBackend) Render(ctx context.Context, text string, opts RenderOptions) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "diagramport-*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileSystem, err, "create temp dir")
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.mmd")
	if err := os.WriteFile(input, []byte(text), 0600); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileSystem, err, "write temp input")
	}
	output := filepath.Join(dir, "output."+opts.Format)

	timeout := b.RenderTimeout
	if timeout == 0 {
		timeout = defaultRenderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"--input", input,
		"--output", output,
		"--theme", opts.Theme,
		"--backgroundColor", opts.Background,
		"--quiet",
	}
	if opts.Width > 0 {
		args = append(args, "--width", fmt.Sprint(opts.Width))
	}
	if opts.Height > 0 {
		args = append(args, "--height", fmt.Sprint(opts.Height))
	}

	cmd := exec.CommandContext(ctx, b.command(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err,
			"mermaid CLI failed: %s", firstLine(stderr.String()))
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err,
			"mermaid CLI produced no %s output", opts.Format)
	}
	return data, nil
}

// firstLine extracts the leading line of command output for error messages.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no error output"
	}
	return s
}

// Ensure CLIBackend implements Backend.
var _ Backend = (*CLIBackend)(nil)
