package backend

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-graphviz"

	"diagramport/pkg/errors"
)

// EmbeddedBackend renders diagrams in-process on an embedded graphviz
// engine (WASM-hosted, no system graphviz required).
//
// This is the fallback backend: it requires no external runtime but only
// understands flowchart-style sources, which it translates to DOT on a
// best-effort basis. Sequence diagrams, pie charts, and other mermaid
// grammars it cannot express are reported as per-job render failures so
// the batch carries on. Supported formats are svg, png, jpg, and jpeg.
type EmbeddedBackend struct{}

// NewEmbeddedBackend creates the embedded fallback backend.
func NewEmbeddedBackend() *EmbeddedBackend {
	return &EmbeddedBackend{}
}

// Name returns the backend identifier.
func (b *EmbeddedBackend) Name() string { return "embedded-graphviz" }

// Probe reports whether the embedded engine can be instantiated.
func (b *EmbeddedBackend) Probe(ctx context.Context) bool {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return false
	}
	_ = gv.Close()
	return true
}

// embeddedFormats maps output formats to graphviz render formats.
var embeddedFormats = map[string]graphviz.Format{
	FormatSVG:  graphviz.SVG,
	FormatPNG:  graphviz.PNG,
	FormatJPG:  graphviz.JPG,
	FormatJPEG: graphviz.JPG,
}

// Render translates the diagram to DOT and renders it on the embedded
// engine.
func (b *EmbeddedBackend) Render(ctx context.Context, text string, opts RenderOptions) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	format, ok := embeddedFormats[opts.Format]
	if !ok {
		return nil, errors.New(errors.ErrCodeRenderFailure,
			"embedded backend cannot produce %s output", opts.Format)
	}

	dot, err := toDOT(text, opts)
	if err != nil {
		return nil, err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "init embedded engine")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "parse translated diagram")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "render diagram")
	}
	return buf.Bytes(), nil
}

// flowchart header, e.g. "flowchart TD" or "graph LR".
var headerPattern = regexp.MustCompile(`^(?:flowchart|graph)\s+(TB|TD|BT|LR|RL)\s*$`)

// edge arrow tokens, longest first so "-.->"" wins over "--".
var arrowPattern = regexp.MustCompile(`\s*(?:-\.+->|={2,}>|-{2,}>|-{3,})\s*`)

// node token: identifier with optional bracketed label, e.g. A[Start].
var nodePattern = regexp.MustCompile(`^([A-Za-z0-9_.:-]+)\s*(?:[\[({<]+\s*"?([^\]\)}>"]*)"?\s*[\])}>]+)?$`)

// edge label between pipes, e.g. -->|yes|.
var edgeLabelPattern = regexp.MustCompile(`^\|([^|]*)\|\s*`)

// themePalette holds the node fill, font color, and default page color
// for one theme.
type themePalette struct {
	fill, font, page string
}

var themePalettes = map[string]themePalette{
	ThemeDefault: {fill: "#ECECFF", font: "#333333", page: "white"},
	ThemeDark:    {fill: "#333333", font: "#f4f4f4", page: "#1f2020"},
	ThemeForest:  {fill: "#cde498", font: "#333333", page: "white"},
	ThemeNeutral: {fill: "#eeeeee", font: "#333333", page: "white"},
}

// toDOT translates flowchart-style diagram text to DOT. Sources without a
// single recognizable edge are rejected: they are almost certainly a
// grammar this backend cannot express.
func toDOT(text string, opts RenderOptions) (string, error) {
	rankdir := "TB"
	labels := make(map[string]string)
	type edge struct{ from, to, label string }
	var edges []edge
	var order []string
	seen := make(map[string]bool)

	addNode := func(token string) string {
		m := nodePattern.FindStringSubmatch(strings.TrimSpace(token))
		if m == nil {
			return ""
		}
		id := m[1]
		if m[2] != "" {
			labels[id] = m[2]
		}
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
		return id
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			if m[1] == "TD" {
				rankdir = "TB"
			} else {
				rankdir = m[1]
			}
			continue
		}

		parts := arrowPattern.Split(line, -1)
		if len(parts) < 2 {
			// A bare node declaration like "A[Start]" still registers
			// its label.
			addNode(line)
			continue
		}

		// Chains like A --> B --> C produce one edge per hop.
		for i := 0; i+1 < len(parts); i++ {
			right := parts[i+1]
			var label string
			if m := edgeLabelPattern.FindStringSubmatch(right); m != nil {
				label = m[1]
				right = right[len(m[0]):]
			}
			from := addNode(parts[i])
			to := addNode(right)
			if from == "" || to == "" {
				continue
			}
			edges = append(edges, edge{from: from, to: to, label: label})
		}
	}

	if len(edges) == 0 {
		return "", errors.New(errors.ErrCodeRenderFailure,
			"embedded backend cannot express this diagram (no flowchart edges found)")
	}

	palette := themePalettes[opts.Theme]
	background := opts.Background
	if background == "" || background == "white" {
		background = palette.page
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	fmt.Fprintf(&buf, "  bgcolor=%q;\n", background)
	fmt.Fprintf(&buf, "  node [shape=box, style=\"rounded,filled\", fillcolor=%q, fontcolor=%q, margin=\"0.2,0.1\"];\n",
		palette.fill, palette.font)
	if opts.Width > 0 && opts.Height > 0 {
		// Graphviz size is in inches at 96 DPI.
		fmt.Fprintf(&buf, "  size=\"%.2f,%.2f!\";\n", float64(opts.Width)/96, float64(opts.Height)/96)
	}
	buf.WriteString("\n")

	for _, id := range order {
		label := labels[id]
		if label == "" {
			label = id
		}
		fmt.Fprintf(&buf, "  %q [label=%q];\n", id, label)
	}
	buf.WriteString("\n")
	for _, e := range edges {
		if e.label != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.from, e.to, e.label)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.from, e.to)
	}
	buf.WriteString("}\n")

	return buf.String(), nil
}

// Ensure EmbeddedBackend implements Backend.
var _ Backend = (*EmbeddedBackend)(nil)
