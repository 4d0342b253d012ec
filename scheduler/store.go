package scheduler

import (
	"context"
	"time"

	"github.com/xraph/tuition/id"
)

// Store persists jobs.
type Store interface {
	InsertJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)
	UpdateJob(ctx context.Context, j *Job) error
	// FindJobByName returns ErrJobNotFound when no job matches.
	FindJobByName(ctx context.Context, model, name string, active bool) (*Job, error)
	ListDueJobs(ctx context.Context, now time.Time) ([]*Job, error)
}
