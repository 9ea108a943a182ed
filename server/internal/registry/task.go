package registry

import "sync"

type Status string

const (
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is the mutable record of one download attempt. The id never
// changes; every other field is written only by the single goroutine
// running that download and read by any number of status polls.
type Task struct {
	id string

	mu       sync.RWMutex
	status   Status
	progress float64
	filePath string
	errMsg   string
}

func newTask(id string) *Task {
	return &Task{
		id:     id,
		status: StatusDownloading,
	}
}

func (t *Task) Id() string { return t.id }

// SetProgress updates the completion percentage. Only meaningful
// while downloading; regressions and out-of-phase updates are
// dropped so readers always observe a non-decreasing value.
func (t *Task) SetProgress(p float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusDownloading {
		return
	}
	if p < t.progress {
		return
	}
	if p > 100 {
		p = 100
	}
	t.progress = p
}

// MarkProcessing records that the fetch itself finished and
// post-processing (merging, remuxing) may still be running.
// Progress is pinned to 100 on this transition.
func (t *Task) MarkProcessing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusDownloading {
		return
	}
	t.status = StatusProcessing
	t.progress = 100
}

// Complete moves the task to its successful terminal state. The path
// may be empty when the artifact could not be located.
func (t *Task) Complete(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Terminal() {
		return
	}
	t.status = StatusCompleted
	t.filePath = path
}

// Fail moves the task to its failed terminal state.
func (t *Task) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Terminal() {
		return
	}
	t.status = StatusFailed
	t.errMsg = msg
}

// TaskSnapshot is an immutable copy of a record, as served to
// status polls.
type TaskSnapshot struct {
	Id       string  `json:"download_id"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	FilePath string  `json:"file_path,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (t *Task) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TaskSnapshot{
		Id:       t.id,
		Status:   t.status,
		Progress: t.progress,
		FilePath: t.filePath,
		Error:    t.errMsg,
	}
}
