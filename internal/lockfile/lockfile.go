// Package lockfile guards the state directory against concurrent ReclaimBot
// instances. Two processes sharing one whatsmeow session database corrupt it,
// so startup takes an exclusive flock on a well-known file and holds it for
// the lifetime of the process. The kernel drops the lock if the process dies,
// which makes stale lock files harmless.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is created inside the state directory.
const LockFileName = "reclaimbot.lock"

// ErrAlreadyLocked is wrapped into the error returned when another process
// holds the state directory.
var ErrAlreadyLocked = errors.New("state directory is locked by another process")

// Lock is a held state-directory lock. Release it on shutdown; it is also
// released implicitly when the process exits.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive non-blocking lock on dir. When another live
// process holds it, the returned error names that process's pid so the
// operator can tell a real conflict from a leftover file.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, LockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holder := describeHolder(file)
		file.Close()
		slog.Error("Lockfile acquisition failed", "path", path, "holder", holder)
		return nil, fmt.Errorf("%w: %s (lock file %s)", ErrAlreadyLocked, holder, path)
	}

	// Record our pid for the diagnostic above. Failure to write is not fatal;
	// the flock itself is what protects the directory.
	if err := file.Truncate(0); err == nil {
		if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
			slog.Warn("Lockfile failed to record pid", "path", path, "error", err)
		}
	}

	slog.Info("Lockfile acquired", "path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

// Release drops the lock and removes the file. Safe to call more than once.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lockfile unlock failed", "path", l.path, "error", err)
	}
	err := l.file.Close()
	l.file = nil
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		slog.Warn("Lockfile removal failed", "path", l.path, "error", removeErr)
	}
	slog.Info("Lockfile released", "path", l.path)
	return err
}

// describeHolder reads the pid recorded in a contended lock file and reports
// whether that process is still alive.
func describeHolder(file *os.File) string {
	data := make([]byte, 32)
	n, _ := file.ReadAt(data, 0)
	if n == 0 {
		return "held by unknown process"
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data[:n])))
	if err != nil || pid <= 0 {
		return "held by unknown process"
	}
	if processAlive(pid) {
		return fmt.Sprintf("held by pid %d", pid)
	}
	return fmt.Sprintf("recorded pid %d is gone; lock is held through another descriptor", pid)
}

// processAlive probes a pid with signal 0.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
