// Package engine is the orchestration controller: it drives independent
// upload jobs through Import, Validate, Resolve, Upload, and Create over
// a bounded worker pool, enforcing mode gating and the all-or-nothing
// guarantee per logical ad.
package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/supercrema/adforge/pkg/creative"
	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/importer"
	"github.com/supercrema/adforge/pkg/platform/core"
)

// JobStatus is the state of an upload job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusValidating JobStatus = "validating"
	StatusUploading  JobStatus = "uploading"
	StatusCreating   JobStatus = "creating"
	StatusSucceeded  JobStatus = "succeeded"
	StatusFailed     JobStatus = "failed"
	StatusAborted    JobStatus = "aborted"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// validTransitions encodes the job state machine. Any state may also
// move to aborted on cancellation.
var validTransitions = map[JobStatus][]JobStatus{
	StatusPending:    {StatusValidating},
	StatusValidating: {StatusUploading, StatusFailed},
	StatusUploading:  {StatusCreating, StatusFailed},
	StatusCreating:   {StatusSucceeded, StatusFailed},
}

// Job is one submission unit: one logical ad (or set of ads for complete
// groups) on one network destination. Owned exclusively by the
// controller for its lifetime.
type Job struct {
	ID          string
	Network     string
	Mode        core.Mode
	Destination core.Destination
	Format      creative.Format
	Locations   []importer.Location
	Texts       creative.Texts
	Naming      creative.NamingContext
	// InheritDefaults pulls texts/CTA/store URL from the destination's
	// most recent active ad when the submission leaves them empty.
	InheritDefaults bool
	// ForceRefresh bypasses the template cache for this job.
	ForceRefresh bool
	// Campaign, when set, asks for a new campaign/adset structure.
	// Operator-only; refused outright under marketer mode.
	Campaign *core.CampaignSpec

	mu     sync.Mutex
	status JobStatus
}

// NewJob creates a pending job with a fresh ID.
func NewJob(network string, mode core.Mode) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Network: network,
		Mode:    mode,
		status:  StatusPending,
	}
}

// Status returns the job's current status.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// transition moves the job to the next status, enforcing the state
// machine. Aborted is reachable from any non-terminal state.
func (j *Job) transition(next JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if next == StatusAborted {
		if j.status.Terminal() {
			return errors.Newf(errors.ErrorTypeInternal, "job %s already %s", j.ID, j.status)
		}
		j.status = StatusAborted
		return nil
	}

	for _, allowed := range validTransitions[j.status] {
		if allowed == next {
			j.status = next
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeInternal, "invalid job transition %s -> %s", j.status, next)
}

// Report is the per-job outcome returned to the caller.
type Report struct {
	JobID         string              `json:"job_id"`
	Status        JobStatus           `json:"status"`
	RemoteHandles []core.RemoteHandle `json:"remote_handles,omitempty"`
	UserMessage   string              `json:"user_message,omitempty"`
	// Reused marks jobs whose derived name already existed remotely;
	// the existing creative was reported instead of duplicated.
	Reused bool `json:"reused,omitempty"`
	// Warnings carry non-fatal notices, e.g. a campaign created in
	// paused state that needs a manual start.
	Warnings []string `json:"warnings,omitempty"`
}
