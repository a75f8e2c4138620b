// Package upload implements the asynchronous resource upload pipeline and
// its in-memory task tracker.
package upload

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

// Task statuses, in transition order.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task is the tracked state of one upload. Snapshots returned by the
// tracker are copies; mutating them does not affect tracked state.
type Task struct {
	TaskID         string           `json:"task_id"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Status         string           `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Filename       string           `json:"filename,omitempty"`
	Result         *models.Resource `json:"result,omitempty"`
	ErrorMessage   string           `json:"error,omitempty"`
}

// rank orders statuses so transitions can only move forward. Terminal
// statuses share the top rank; once there a task never changes again.
func rank(status string) int {
	switch status {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Tracker holds upload tasks in memory, keyed by task id and by
// idempotency key. Tasks live for the process lifetime.
type Tracker struct {
	mu    sync.RWMutex
	byID  map[string]*Task
	byKey map[string]*Task
}

// NewTracker creates an empty task tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byID:  make(map[string]*Task),
		byKey: make(map[string]*Task),
	}
}

// Create registers a new pending task. When idempotencyKey matches an
// existing task, that task is returned instead and created is false. An
// empty key gets a generated one, so every accepted upload is replayable.
func (t *Tracker) Create(idempotencyKey, filename string) (task Task, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	} else if existing, ok := t.byKey[idempotencyKey]; ok {
		return *existing, false
	}

	now := time.Now().UTC()
	nt := &Task{
		TaskID:         uuid.NewString(),
		IdempotencyKey: idempotencyKey,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Filename:       filename,
	}
	t.byID[nt.TaskID] = nt
	t.byKey[idempotencyKey] = nt
	return *nt, true
}

// Get returns a snapshot of the task with the given id.
func (t *Tracker) Get(taskID string) (Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.byID[taskID]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// GetByKey returns a snapshot of the task registered under the given
// idempotency key.
func (t *Tracker) GetByKey(idempotencyKey string) (Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.byKey[idempotencyKey]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// MarkProcessing moves a pending task to processing.
func (t *Tracker) MarkProcessing(taskID string) {
	t.transition(taskID, StatusProcessing, nil, "")
}

// MarkCompleted moves a task to completed with the stored resource record.
func (t *Tracker) MarkCompleted(taskID string, res models.Resource) {
	t.transition(taskID, StatusCompleted, &res, "")
}

// MarkFailed moves a task to failed with an error message.
func (t *Tracker) MarkFailed(taskID, message string) {
	t.transition(taskID, StatusFailed, nil, message)
}

func (t *Tracker) transition(taskID, status string, res *models.Resource, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.byID[taskID]
	if !ok {
		return
	}
	if rank(status) <= rank(task.Status) {
		// Backwards or repeated transitions are dropped.
		return
	}

	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	if res != nil {
		task.Result = res
	}
	if message != "" {
		task.ErrorMessage = message
	}
}
