package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenwave/gwupdate/internal/metrics"
	"github.com/greenwave/gwupdate/internal/types"
	"github.com/greenwave/gwupdate/internal/update"
)

// Job is a snapshot of an asynchronous install.
type Job struct {
	ID         string         `json:"id"`
	Phase      types.Phase    `json:"phase"`
	Request    update.Request `json:"request"`
	Result     *update.Result `json:"result,omitempty"`
	BytesDone  int64          `json:"bytesDone"`
	BytesTotal int64          `json:"bytesTotal"`
	CreatedAt  time.Time      `json:"createdAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// jobRegistry holds install jobs in memory. Finished jobs are forgotten
// after retention; expired jobs are swept whenever the registry is used.
type jobRegistry struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
	now       func() time.Time
}

func newJobRegistry(retention time.Duration) *jobRegistry {
	return &jobRegistry{
		jobs:      make(map[string]*Job),
		retention: retention,
		now:       time.Now,
	}
}

func (r *jobRegistry) create(req update.Request) Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	job := &Job{
		ID:         uuid.NewString(),
		Phase:      types.PhaseIdle,
		Request:    req,
		BytesTotal: -1,
		CreatedAt:  r.now().UTC(),
	}
	r.jobs[job.ID] = job
	metrics.IncActiveJobs()
	return *job
}

func (r *jobRegistry) get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.snapshot(), true
}

func (r *jobRegistry) progress(id string, e update.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Phase.IsTerminal() {
		return
	}
	// The terminal phase is set by finish, together with the result.
	if !e.Phase.IsTerminal() {
		job.Phase = e.Phase
	}
	job.BytesDone = e.BytesDone
	if e.BytesTotal >= 0 {
		job.BytesTotal = e.BytesTotal
	}
}

func (r *jobRegistry) finish(id string, res update.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	now := r.now().UTC()
	job.Phase = types.PhaseFor(res.Outcome)
	job.Result = &res
	job.BytesDone = res.Bytes
	job.FinishedAt = &now
	metrics.DecActiveJobs()
}

func (r *jobRegistry) sweepLocked() {
	cutoff := r.now().Add(-r.retention)
	for id, job := range r.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

func (j *Job) snapshot() Job {
	c := *j
	if j.Result != nil {
		res := *j.Result
		c.Result = &res
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
