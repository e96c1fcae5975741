package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus defines the possible states of a task.
type TaskStatus string

const (
	TaskStatusStarted   TaskStatus = "started"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is one asynchronous match or cluster run.
type Task struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Status          TaskStatus `json:"status"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	Error           string     `json:"error,omitempty"`
	Result          any        `json:"result,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	mu              sync.RWMutex
}

// TaskManager tracks asynchronous tasks. Finished tasks older than ttl are
// dropped whenever a new task is created.
type TaskManager struct {
	tasks map[string]*Task
	ttl   time.Duration
	mu    sync.RWMutex
}

func NewTaskManager(ttl time.Duration) *TaskManager {
	return &TaskManager{
		tasks: make(map[string]*Task),
		ttl:   ttl,
	}
}

// NewTask registers a task of the given kind and returns it.
func (tm *TaskManager) NewTask(kind string) *Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.pruneLocked(time.Now())

	task := &Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    TaskStatusStarted,
		CreatedAt: time.Now(),
	}
	tm.tasks[task.ID] = task
	return task
}

// GetTask returns a point-in-time copy of the task.
func (tm *TaskManager) GetTask(id string) (*Task, bool) {
	tm.mu.RLock()
	task, found := tm.tasks[id]
	tm.mu.RUnlock()
	if !found {
		return nil, false
	}
	return task.snapshot(), true
}

func (tm *TaskManager) pruneLocked(now time.Time) {
	if tm.ttl <= 0 {
		return
	}
	for id, t := range tm.tasks {
		t.mu.RLock()
		expired := t.FinishedAt != nil && now.Sub(*t.FinishedAt) > tm.ttl
		t.mu.RUnlock()
		if expired {
			delete(tm.tasks, id)
		}
	}
}

func (t *Task) snapshot() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Task{
		ID:              t.ID,
		Kind:            t.Kind,
		Status:          t.Status,
		ProgressMessage: t.ProgressMessage,
		Error:           t.Error,
		Result:          t.Result,
		CreatedAt:       t.CreatedAt,
		FinishedAt:      t.FinishedAt,
	}
}

// SetStatus updates the status of the task.
func (t *Task) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = status
}

// SetError marks the task as failed. A partial result may still be attached.
func (t *Task) SetError(err error, partial any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.Status = TaskStatusFailed
	t.Error = err.Error()
	t.Result = partial
	t.FinishedAt = &now
}

// SetResult marks the task as completed.
func (t *Task) SetResult(result any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.Result = result
	t.FinishedAt = &now
}

// SetProgress updates the progress message for the task.
func (t *Task) SetProgress(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ProgressMessage = message
}
