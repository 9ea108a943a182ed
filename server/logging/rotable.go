package logging

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// RotableLogger is an io.Writer appending to a single log file.
// Rotate renames the current file with a timestamp suffix and
// starts a fresh one.
type RotableLogger struct {
	path string
	fd   *os.File
	mu   sync.Mutex
}

func NewRotableLogger(path string) (*RotableLogger, error) {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Join(errors.New("failed to open log file"), err)
	}

	return &RotableLogger{path: path, fd: fd}, nil
}

func (r *RotableLogger) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fd.Write(p)
}

func (r *RotableLogger) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fd.Close(); err != nil {
		return err
	}

	rotated := fmt.Sprintf("%s.%s", r.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(r.path, rotated); err != nil && !os.IsNotExist(err) {
		return err
	}

	fd, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	r.fd = fd
	return nil
}

func (r *RotableLogger) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fd.Close()
}
