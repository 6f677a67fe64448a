// Package pkg provides the core libraries for diagramport diagram export.
//
// # Overview
//
// Diagramport turns mermaid diagram sources into image files with
// idempotent, content-addressed output naming. The pkg directory is
// organized around the export flow:
//
//	Diagram files / Markdown documents
//	         ↓
//	    [source] package (discover standalone files and embedded blocks)
//	         ↓
//	    [backend] package (probe and select a rendering engine)
//	         ↓
//	    [naming] package (deterministic, idempotent output paths)
//	         ↓
//	    [export] package (batch orchestration with per-job isolation)
//	         ↓
//	    SVG/PNG/PDF/WEBP/JPEG artifacts on disk
//
// # Quick Start
//
// Export every diagram under a directory:
//
//	import (
//	    "context"
//	    "diagramport/pkg/export"
//	    "diagramport/pkg/naming"
//	)
//
//	runner := export.NewRunner(nil, nil, nil, nil)
//	result, err := runner.ExportBatch(context.Background(), "docs/", export.Options{
//	    Formats:    []string{"svg", "png"},
//	    NamingMode: naming.ModeVersioned,
//	})
//
// # Main Packages
//
// [source] - Discovery of diagram sources: standalone .mmd/.mermaid files
// and fenced mermaid blocks inside markdown documents, walked with a depth
// limit in deterministic order.
//
// [backend] - Rendering engines behind a probe/render contract. The
// external mermaid CLI is the primary backend; an embedded graphviz-based
// engine is the deterministic fallback. The Selector caches probe results
// and retries once against the next candidate on render failure.
//
// [naming] - The two output naming policies. Versioned naming gives each
// distinct content a numbered, hash-suffixed file and skips re-renders of
// identical content; overwrite naming writes to one stable path. The
// output directory is the only source of truth for sequence numbers.
//
// [export] - Batch orchestration: discovery, pre-flight backend
// resolution, per-job naming/render/persist with failure isolation, and
// cooperative cancellation.
//
// [cache] - Render-result caching with file, Redis, and no-op backends.
// Strictly a performance layer; naming never depends on it.
//
// [errors] - Structured error codes shared by the CLI and HTTP server.
//
// [observability] - Pluggable hooks for discovery, render, batch, and
// cache events, with no-op defaults.
//
// [buildinfo] - Build-time version information injected via ldflags.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...        # All tests
//	go test ./pkg/naming/... # Specific package
package pkg
