// Package scheduler defines recurring jobs: a callback reference invoked at a
// fixed interval until its remaining-call counter runs out.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/types"
)

// ErrJobNotFound is returned when a job does not exist.
var ErrJobNotFound = errors.New("tuition: job not found")

// Unlimited is the NumberCalls value of a job that never runs out.
const Unlimited = -1

// IntervalType is the unit of a job interval.
type IntervalType string

const (
	IntervalMinutes IntervalType = "minutes"
	IntervalHours   IntervalType = "hours"
	IntervalDays    IntervalType = "days"
	IntervalWeeks   IntervalType = "weeks"
	IntervalMonths  IntervalType = "months"
)

// Valid reports whether t is a known interval unit.
func (t IntervalType) Valid() bool {
	switch t {
	case IntervalMinutes, IntervalHours, IntervalDays, IntervalWeeks, IntervalMonths:
		return true
	}
	return false
}

// Advance returns from moved forward by n units. Months and weeks follow the
// calendar.
func (t IntervalType) Advance(from time.Time, n int) time.Time {
	switch t {
	case IntervalMinutes:
		return from.Add(time.Duration(n) * time.Minute)
	case IntervalHours:
		return from.Add(time.Duration(n) * time.Hour)
	case IntervalDays:
		return from.AddDate(0, 0, n)
	case IntervalWeeks:
		return from.AddDate(0, 0, 7*n)
	default:
		return from.AddDate(0, n, 0)
	}
}

// Spec describes the job a caller wants scheduled.
type Spec struct {
	Model          string       `json:"model"`
	Name           string       `json:"name"`
	User           id.UserID    `json:"user"`
	RequestUser    id.UserID    `json:"request_user"`
	IntervalNumber int          `json:"interval_number"`
	IntervalType   IntervalType `json:"interval_type"`
	NumberCalls    int          `json:"number_calls"`
	NextCall       time.Time    `json:"next_call"`
	Function       string       `json:"function"`
	Args           []string     `json:"args"`
}

// Validate checks the spec is schedulable.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scheduler: job name is required")
	}
	if s.Function == "" {
		return fmt.Errorf("scheduler: job %q: function is required", s.Name)
	}
	if s.IntervalNumber <= 0 {
		return fmt.Errorf("scheduler: job %q: interval must be positive", s.Name)
	}
	if !s.IntervalType.Valid() {
		return fmt.Errorf("scheduler: job %q: unknown interval type %q", s.Name, s.IntervalType)
	}
	return nil
}

// Job is a persisted recurring job. NumberCalls counts the calls still to
// run; it is decremented by the runner after each call.
type Job struct {
	types.Entity
	ID             id.JobID     `json:"id"`
	Model          string       `json:"model"`
	Name           string       `json:"name"`
	User           id.UserID    `json:"user"`
	RequestUser    id.UserID    `json:"request_user"`
	IntervalNumber int          `json:"interval_number"`
	IntervalType   IntervalType `json:"interval_type"`
	NumberCalls    int          `json:"number_calls"`
	NextCall       time.Time    `json:"next_call"`
	Function       string       `json:"function"`
	Args           []string     `json:"args"`
	Active         bool         `json:"active"`
	RepeatMissed   bool         `json:"repeat_missed"`
}

// NewJob builds an active job from a spec.
func NewJob(s Spec) *Job {
	j := &Job{ID: id.NewJobID(), Entity: types.NewEntity()}
	j.Apply(s)
	j.Active = true
	return j
}

// Apply overwrites the job's schedule with the spec's values.
func (j *Job) Apply(s Spec) {
	j.Model = s.Model
	j.Name = s.Name
	j.User = s.User
	j.RequestUser = s.RequestUser
	j.IntervalNumber = s.IntervalNumber
	j.IntervalType = s.IntervalType
	j.NumberCalls = s.NumberCalls
	j.NextCall = s.NextCall
	j.Function = s.Function
	j.Args = append([]string(nil), s.Args...)
}

// RemainingCalls returns how many calls are still scheduled.
func (j *Job) RemainingCalls() int { return j.NumberCalls }

// Due reports whether the job should run at now.
func (j *Job) Due(now time.Time) bool {
	return j.Active && j.NumberCalls != 0 && !j.NextCall.After(now)
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	c.Args = append([]string(nil), j.Args...)
	return &c
}

// Func is a callback a job invokes with its arguments.
type Func func(ctx context.Context, args []string) error

// Scheduler is the job management surface the engine consumes.
type Scheduler interface {
	// FindJob returns the inactive job matching (model, name), or nil.
	FindJob(ctx context.Context, model, name string) (*Job, error)
	CreateJob(ctx context.Context, s Spec) (*Job, error)
	Activate(ctx context.Context, j *Job) error
	// Deactivate is a no-op for an already-inactive job.
	Deactivate(ctx context.Context, jobID id.JobID) error
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)
}

// Registrar is implemented by schedulers that run callbacks in-process.
type Registrar interface {
	Register(function string, fn Func)
}
