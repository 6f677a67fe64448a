package source

import (
	"os"
	"path/filepath"
	"testing"
)

// writeFile writes content to path, creating parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscoverStandaloneFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "flow.mmd"), "flowchart TD\n  A-->B")
	writeFile(t, filepath.Join(dir, "seq.mermaid"), "sequenceDiagram\n  A->>B: hi")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a diagram")

	sources, err := Discover(dir, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("found %d sources, want 2", len(sources))
	}
	for _, s := range sources {
		if s.Kind != KindStandalone {
			t.Errorf("Kind = %v, want standalone", s.Kind)
		}
		if s.Text == "" {
			t.Error("Text should hold the file content")
		}
	}
}

func TestDiscoverEmbeddedBlocks(t *testing.T) {
	dir := t.TempDir()
	doc := "# Title\n\n```mermaid\nflowchart TD\n  A-->B\n```\n\nprose\n\n```mermaid\npie\n  \"a\": 1\n```\n"
	writeFile(t, filepath.Join(dir, "doc.md"), doc)

	sources, err := Discover(dir, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("found %d sources, want 2", len(sources))
	}
	if sources[0].Kind != KindEmbedded || sources[0].BlockIndex != 0 {
		t.Errorf("first block: Kind=%v BlockIndex=%d", sources[0].Kind, sources[0].BlockIndex)
	}
	if sources[1].BlockIndex != 1 {
		t.Errorf("second block: BlockIndex=%d, want 1", sources[1].BlockIndex)
	}
	if sources[0].Text != "flowchart TD\n  A-->B" {
		t.Errorf("first block text = %q", sources[0].Text)
	}
}

func TestDiscoverDepthEnforcement(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.mmd"), "a")
	writeFile(t, filepath.Join(dir, "l1", "one.mmd"), "b")
	writeFile(t, filepath.Join(dir, "l1", "l2", "two.mmd"), "c")
	writeFile(t, filepath.Join(dir, "l1", "l2", "l3", "three.mmd"), "d")

	sources, err := Discover(dir, Options{MaxDepth: 2})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("found %d sources with MaxDepth=2, want 3", len(sources))
	}
	found := make(map[string]bool)
	for _, s := range sources {
		found[filepath.Base(s.Path)] = true
	}
	if !found["two.mmd"] {
		t.Error("two.mmd sits in a directory at exactly MaxDepth and should be discovered")
	}
	if found["three.mmd"] {
		t.Error("three.mmd is beyond MaxDepth and should not be discovered")
	}
}

func TestDiscoverDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.mmd"), "b")
	writeFile(t, filepath.Join(dir, "a.mmd"), "a")
	writeFile(t, filepath.Join(dir, "sub", "c.mmd"), "c")

	sources, err := Discover(dir, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := make([]string, len(sources))
	for i, s := range sources {
		got[i] = filepath.Base(s.Path)
	}
	want := []string{"a.mmd", "b.mmd", "c.mmd"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestDiscoverSingleFileRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.mmd")
	writeFile(t, path, "flowchart TD")

	sources, err := Discover(path, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(sources) != 1 || sources[0].Path != path {
		t.Fatalf("sources = %+v", sources)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), Options{})
	if err == nil {
		t.Fatal("Discover should fail for a missing root")
	}
}

func TestExtractBlocks(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "no blocks",
			doc:  "# Title\n\nplain prose\n",
			want: nil,
		},
		{
			name: "single block",
			doc:  "```mermaid\nA-->B\n```\n",
			want: []string{"A-->B"},
		},
		{
			name: "ignores other languages",
			doc:  "```go\nfunc main() {}\n```\n```mermaid\nA-->B\n```\n",
			want: []string{"A-->B"},
		},
		{
			name: "info string attributes",
			doc:  "```mermaid {theme: dark}\nA-->B\n```\n",
			want: []string{"A-->B"},
		},
		{
			name: "unterminated fence",
			doc:  "```mermaid\nA-->B",
			want: []string{"A-->B"},
		},
		{
			name: "indented fence",
			doc:  "  ```mermaid\n  A-->B\n  ```\n",
			want: []string{"  A-->B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractBlocks(tt.doc)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d blocks, want %d: %q", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("block %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBaseName(t *testing.T) {
	standalone := Source{Path: "/tmp/flow.mmd", Kind: KindStandalone}
	if got := standalone.BaseName(); got != "flow" {
		t.Errorf("BaseName = %q, want flow", got)
	}

	embedded := Source{Path: "/tmp/doc.md", Kind: KindEmbedded, BlockIndex: 2}
	if got := embedded.BaseName(); got != "doc-3" {
		t.Errorf("BaseName = %q, want doc-3", got)
	}
}
