package storage

import (
	"errors"
	"time"

	"github.com/cisco7507/LangId-mr/pkg/types"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// ListFilter narrows ListJobs results. Zero values mean "no filter".
type ListFilter struct {
	Status types.JobStatus
	Since  time.Time // lower bound on CreatedAt
}

// UpdateFields is a partial update applied to a job row. Nil pointers leave
// the column untouched. UpdatedAt is always refreshed by the store.
type UpdateFields struct {
	Status     *types.JobStatus
	Progress   *int
	Attempts   *int
	ResultJSON *string
	Error      *string
}

// Store persists jobs. Implementations must provide transactional single-row
// updates; ClaimNext must be atomic with respect to concurrent claimers.
type Store interface {
	CreateJob(job *types.Job) error
	GetJob(id string) (*types.Job, error)
	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(filter ListFilter) ([]*types.Job, error)
	// ClaimNext transitions the oldest queued job to running and returns it,
	// or returns nil when no job is queued.
	ClaimNext() (*types.Job, error)
	UpdateJob(id string, fields UpdateFields) error
	// DeleteJobs removes rows and their on-disk artifacts under storageRoot.
	// It returns the number of rows deleted.
	DeleteJobs(ids []string, storageRoot string) (int, error)
	Close() error
}

// StatusPtr is a convenience for building UpdateFields.
func StatusPtr(s types.JobStatus) *types.JobStatus { return &s }

// IntPtr is a convenience for building UpdateFields.
func IntPtr(i int) *int { return &i }

// StringPtr is a convenience for building UpdateFields.
func StringPtr(s string) *string { return &s }
