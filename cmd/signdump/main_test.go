package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelcraft.ai/signdump/internal/chunkcodec"
	"voxelcraft.ai/signdump/internal/regiontest"
)

func writeWorld(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	b := regiontest.NewBuilder()
	if err := b.Put(3, regiontest.Chunk(3, 0,
		regiontest.Sign("minecraft:sign", 48, 65, 2, [4]string{"Hello", "", "", "World"}),
	), chunkcodec.Zlib); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.WriteFile(filepath.Join(dir, "r.0.0.mca")); err != nil {
		t.Fatalf("write region: %v", err)
	}
	return dir
}

func TestRun_WritesLegacyLines(t *testing.T) {
	in := writeWorld(t)
	work := t.TempDir()
	out := filepath.Join(work, "signs.txt")
	report := filepath.Join(work, "run.jsonl.zst")
	index := filepath.Join(work, "index.sqlite")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-quiet", "-workers", "2", "-report", report, "-index", index, in, out}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s stdout=%s", code, stderr.String(), stdout.String())
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "(48, 65, 2): 'Hello','','','World'\n"
	if string(got) != want {
		t.Fatalf("output=%q want=%q", got, want)
	}
	if !strings.Contains(stdout.String(), "files=1 ok=1 failed=0") {
		t.Fatalf("missing summary line: %s", stdout.String())
	}
	for _, p := range []string{report, index} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
	}
}

func TestRun_RefusesExistingOutput(t *testing.T) {
	in := writeWorld(t)
	out := filepath.Join(t.TempDir(), "signs.txt")
	if err := os.WriteFile(out, []byte("keep"), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-quiet", in, out}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit=%d want=2", code)
	}
	if !strings.Contains(stderr.String(), "E_CONFIG") {
		t.Fatalf("stderr=%q", stderr.String())
	}
	got, _ := os.ReadFile(out)
	if string(got) != "keep" {
		t.Fatalf("output overwritten: %q", got)
	}
}

func TestRun_FailedFileExitsNonZero(t *testing.T) {
	in := writeWorld(t)
	if err := os.WriteFile(filepath.Join(in, "r.9.9.mca"), []byte("short"), 0o644); err != nil {
		t.Fatalf("write bad region: %v", err)
	}
	out := filepath.Join(t.TempDir(), "signs.txt")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-quiet", in, out}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit=%d want=1", code)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(got), "'Hello'") {
		t.Fatalf("good file lost under continue policy: %q", got)
	}
	if !strings.Contains(stdout.String(), "E_CONTAINER") {
		t.Fatalf("failure not logged: %s", stdout.String())
	}
}

func TestRun_UsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"only-one"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit=%d want=2", code)
	}
	if code := run(context.Background(), []string{"-format", "xml", "a", "b"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit=%d want=2", code)
	}
}

func TestRun_MissingInputDir(t *testing.T) {
	work := t.TempDir()
	out := filepath.Join(work, "signs.txt")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-quiet", filepath.Join(work, "nope"), out}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit=%d want=2", code)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output created for missing input: %v", err)
	}
}

func TestRun_InputIsFile(t *testing.T) {
	work := t.TempDir()
	in := filepath.Join(work, "r.0.0.mca")
	if err := os.WriteFile(in, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-quiet", in, filepath.Join(work, "out.txt")}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit=%d want=2 stderr=%s", code, stderr.String())
	}
}

func TestRun_ReadModes(t *testing.T) {
	in := writeWorld(t)
	for _, mode := range []string{"read", "mmap"} {
		out := filepath.Join(t.TempDir(), "signs.txt")
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), []string{"-quiet", "-read_mode", mode, in, out}, &stdout, &stderr); code != 0 {
			t.Fatalf("%s: exit=%d stderr=%s", mode, code, stderr.String())
		}
		got, err := os.ReadFile(out)
		if err != nil || !strings.Contains(string(got), "'Hello'") {
			t.Fatalf("%s: output=%q err=%v", mode, got, err)
		}
	}
}
