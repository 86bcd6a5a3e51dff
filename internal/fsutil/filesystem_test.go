package fsutil

import (
	"io"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := NewOSFileSystem()

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_MkdirAllIsIdempotent(t *testing.T) {
	fs := NewOSFileSystem()
	dir := filepath.Join(t.TempDir(), "pose-3d")

	for i := 0; i < 2; i++ {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("MkdirAll #%d failed: %v", i+1, err)
		}
	}
	if !fs.IsDir(dir) {
		t.Errorf("expected %s to be a directory", dir)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}
}

func TestMemoryFileSystem_CreateAndOpen(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/created.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := io.WriteString(w, "fnum\n0\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	r, err := mfs.Open("/created.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "fnum\n0\n" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestMemoryFileSystem_GlobSorted(t *testing.T) {
	mfs := NewMemoryFileSystem()
	for _, name := range []string{"/s/pose-2d/vid-camB.csv", "/s/pose-2d/vid-camA.csv", "/s/pose-2d/notes.txt"} {
		if err := mfs.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	matches, err := mfs.Glob("/s/pose-2d/*.csv")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	want := []string{"/s/pose-2d/vid-camA.csv", "/s/pose-2d/vid-camB.csv"}
	if len(matches) != len(want) {
		t.Fatalf("expected %v, got %v", want, matches)
	}
	for i := range want {
		if matches[i] != want[i] {
			t.Errorf("match %d = %s, want %s", i, matches[i], want[i])
		}
	}
}

func TestMemoryFileSystem_ReadDirAndRemoveAll(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/project/session1/pose-2d", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := mfs.MkdirAll("/project/session2", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	entries, err := mfs.ReadDir("/project")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if err := mfs.RemoveAll("/project/session1"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if mfs.Exists("/project/session1/pose-2d") {
		t.Error("expected nested directory to be removed")
	}
	if !mfs.IsDir("/project/session2") {
		t.Error("expected sibling directory to survive")
	}
}
