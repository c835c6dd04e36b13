// Package model defines the job record shared by the queue, worker, log
// fabric and submission surface.
package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bobmcallan/tasktrace/internal/jobserr"
)

// Status is one of the four physical buckets a job record lives in.
type Status string

const (
	StatusTodo   Status = "todo"
	StatusDoing  Status = "doing"
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Statuses lists the four states in the canonical listing order:
// todo, doing, done, failed.
var Statuses = []Status{StatusTodo, StatusDoing, StatusDone, StatusFailed}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a terminal status (done or failed).
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is the queue's unit of work. ID doubles as its submission-order key.
type Job struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Workdir string `json:"workdir,omitempty"`
	Status  Status `json:"status"`
	// Order is the 0-based rank of this job within its own status bucket,
	// recomputed at list time rather than stored.
	Order int `json:"order"`
}

// idPattern matches the 26-character job id stamp: YYYY-MM-DD-HH-MM-SS-uuuuuu.
var idPattern = regexp.MustCompile(`^\d{4}(-\d{2}){5}-\d{6}$`)

// ValidID reports whether id matches the canonical stamp format.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NewID stamps t as a job id with microsecond resolution. Two calls with the
// same t produce the same id; callers are responsible for re-stamping on
// collision (see internal/queue).
func NewID(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d-%02d-%02d-%02d-%02d-%06d",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond()/1000)
}

// ValidateCommand rejects an empty command.
func ValidateCommand(command string) error {
	if command == "" {
		return fmt.Errorf("%w: empty command", jobserr.ErrInvalid)
	}
	return nil
}
