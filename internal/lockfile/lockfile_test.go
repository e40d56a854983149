package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	path := filepath.Join(dir, LockFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected lock file at %s: %v", path, err)
	}
	if pid, err := strconv.Atoi(string(data)); err != nil || pid != os.Getpid() {
		t.Errorf("Expected our pid recorded, got %q", data)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected lock file removed on release")
	}
}

func TestAcquireCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected state directory created: %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	lock, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("First Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Second Release failed: %v", err)
	}
}

func TestAcquireContended(t *testing.T) {
	dir := t.TempDir()

	held, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer held.Release()

	// A second descriptor on the same file contends even within one process.
	if _, err := Acquire(dir); err == nil {
		t.Fatal("Expected second acquisition to fail while lock is held")
	} else if !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("Expected ErrAlreadyLocked, got %v", err)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	second, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Reacquire failed: %v", err)
	}
	second.Release()
}

func TestStaleLockFileIsHarmless(t *testing.T) {
	dir := t.TempDir()

	// A leftover file from a dead process carries no flock, so acquisition
	// just succeeds over it.
	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, []byte("999999"), 0o644); err != nil {
		t.Fatalf("Failed to seed stale lock file: %v", err)
	}

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Expected stale file ignored, got: %v", err)
	}
	defer lock.Release()

	data, _ := os.ReadFile(path)
	if pid, err := strconv.Atoi(string(data)); err != nil || pid != os.Getpid() {
		t.Errorf("Expected pid rewritten, got %q", data)
	}
}
