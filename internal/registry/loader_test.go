package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, filepath.FromSlash(n))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
}

func TestLoadDir_FiltersGGUFRecursively(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"a-q8_0.gguf",
		"b.GGUF", // case-insensitive
		"not-model.txt",
		"org/repo/qwen2.5-0.5b-instruct-q4_k_m.gguf",
	)
	entries, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[2].Name != "org/repo/qwen2.5-0.5b-instruct-q4_k_m.gguf" || entries[2].Quant != "q4_k_m" {
		t.Fatalf("unexpected nested entry: %+v", entries[2])
	}
	if !filepath.IsAbs(entries[0].Path) {
		t.Fatalf("path not absolute: %s", entries[0].Path)
	}
}

func TestLoadDir_MissingDirIsEmpty(t *testing.T) {
	entries, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty result, got %v %v", entries, err)
	}
}

func TestQuantOf(t *testing.T) {
	cases := map[string]string{
		"model-q4_k_m.gguf":   "q4_k_m",
		"model.Q8_0.gguf":     "q8_0",
		"model-f16.gguf":      "f16",
		"model-IQ3_XS.gguf":   "iq3_xs",
		"plain.gguf":          "",
		"model-bf16.gguf":     "bf16",
	}
	for in, want := range cases {
		if got := QuantOf(in); got != want {
			t.Errorf("QuantOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFind(t *testing.T) {
	entries := []Entry{
		{Name: "org/a/a-q8_0.gguf", Quant: "q8_0", Path: "/m/org/a/a-q8_0.gguf"},
		{Name: "org/b/b-q4_k_m.gguf", Quant: "q4_k_m", Path: "/m/org/b/b-q4_k_m.gguf"},
		{Name: "org/b/b-q8_0.gguf", Quant: "q8_0", Path: "/m/org/b/b-q8_0.gguf"},
	}
	if e, ok := Find(entries, "", "b-q4_k_m.gguf", ""); !ok || e.Quant != "q4_k_m" {
		t.Fatalf("find by file: %+v %v", e, ok)
	}
	if e, ok := Find(entries, "org/b", "", "q8_0"); !ok || e.Name != "org/b/b-q8_0.gguf" {
		t.Fatalf("find by quant under prefix: %+v %v", e, ok)
	}
	if _, ok := Find(entries, "org/a", "", "q4_k_m"); ok {
		t.Fatalf("expected no match")
	}
}
