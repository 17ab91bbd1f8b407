package model

import (
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

type TaskType string

const (
	TaskIndexCreateUpdate       TaskType = "indices_create_update"
	TaskResourceImport          TaskType = "resource_import"
	TaskResourceExport          TaskType = "resource_export"
	TaskSearchExport            TaskType = "search_export"
	TaskBroadcastUserNtfc       TaskType = "broadcast_user_ntfc"
	TaskBroadcastAdminNtfc      TaskType = "broadcast_admin_ntfc"
	TaskResourceMaintenanceHook TaskType = "resource_maintenance_hook"
	TaskStructureUpdate         TaskType = "structure_update"
)

// IsExport reports whether tasks of this type produce a downloadable artifact.
func (t TaskType) IsExport() bool {
	return strings.HasSuffix(string(t), "_export")
}

type TaskStatus string

const (
	StatusWaiting TaskStatus = "waiting"
	StatusRunning TaskStatus = "running"
	StatusDone    TaskStatus = "done"
	StatusFailed  TaskStatus = "failed"
)

func (s TaskStatus) rank() int {
	switch s {
	case StatusWaiting:
		return 1
	case StatusRunning:
		return 2
	case StatusDone, StatusFailed:
		return 3
	}
	return 0
}

// Active reports whether a task in this status is still being worked on.
func (s TaskStatus) Active() bool {
	return s == StatusWaiting || s == StatusRunning
}

// Terminal reports whether no further transition can happen.
func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Precedes reports whether moving from s to next is forward progress.
// done and failed share the last rank, so neither follows the other.
func (s TaskStatus) Precedes(next TaskStatus) bool {
	return s.rank() < next.rank()
}

type Task struct {
	ID              string         `json:"id" validate:"required"`
	Type            TaskType       `json:"type" validate:"required,oneof=indices_create_update resource_import resource_export search_export broadcast_user_ntfc broadcast_admin_ntfc resource_maintenance_hook structure_update"`
	TargetID        *string        `json:"targetId,omitempty"`
	UserID          string         `json:"userId,omitempty"`
	PickupKey       string         `json:"pickupKey" validate:"required"`
	Status          TaskStatus     `json:"status" validate:"required,oneof=waiting running done failed"`
	StartTime       *Timestamp     `json:"startTime,omitempty"`
	EndTime         *Timestamp     `json:"endTime,omitempty"`
	DurationSeconds *float64       `json:"durationSeconds,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	Error           *string        `json:"error,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks that the task carries everything the tracker relies on.
func (t *Task) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate.Struct(t)
}

// Started returns the start time, or the zero time when the server sent none.
func (t *Task) Started() time.Time {
	if t.StartTime == nil {
		return time.Time{}
	}
	return t.StartTime.Time
}

// ResultString returns a string value from the result payload.
func (t *Task) ResultString(key string) string {
	if t.Result == nil {
		return ""
	}
	s, _ := t.Result[key].(string)
	return s
}
