package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	exp, err := ExpandHome("~/models")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if runtime.GOOS != "windows" && exp != filepath.Join(home, "models") {
		t.Fatalf("unexpected expanded path: %q", exp)
	}
}

func TestEnsureDirAndPathExists(t *testing.T) {
	home := setHome(t)
	p, err := EnsureDir("~/speech/out")
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if p != filepath.Join(home, "speech", "out") {
		t.Fatalf("unexpected path %q", p)
	}
	if !PathExists(p) {
		t.Fatalf("expected %q to exist", p)
	}
	if PathExists(filepath.Join(home, "missing")) {
		t.Fatalf("missing path reported as existing")
	}
	if _, err := EnsureDir(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	_ = os.RemoveAll(p)
}
