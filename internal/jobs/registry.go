package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned for identifiers the registry has never issued.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when an update would break the job invariants.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Store is the job registry contract used by the orchestrator and the status API.
// The in-memory Registry is the only implementation; the interface keeps the
// orchestrator independent of where records live.
type Store interface {
	Create(language string) (Job, error)
	Get(id string) (Job, error)
	Update(id string, mutate func(job *Job)) (Job, error)
	List() []Job
}

// Registry is a process-wide, concurrency-safe map of job records.
// Readers always receive copies, so a poller can never observe a record
// halfway through an update.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	clock func() time.Time
	newID func() string
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:  make(map[string]*Job),
		clock: time.Now,
		newID: uuid.NewString,
	}
}

// Create inserts a fresh pending record and returns its snapshot.
func (r *Registry) Create(language string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	if _, exists := r.jobs[id]; exists {
		return Job{}, fmt.Errorf("%w: duplicate job id %s", ErrInvalidTransition, id)
	}

	now := r.clock().UTC()
	job := &Job{
		ID:        id,
		Status:    StatusPending,
		Progress:  0,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[id] = job

	return *job, nil
}

// Get returns a snapshot of the job or ErrJobNotFound.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	return *job, nil
}

// Update applies mutate to a copy of the record and commits it only if the
// result respects the lifecycle invariants. The commit happens under the
// write lock, so all fields change together.
func (r *Registry) Update(id string, mutate func(job *Job)) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	next := *current
	mutate(&next)

	// Identity and creation metadata are not mutable.
	next.ID = current.ID
	next.Language = current.Language
	next.CreatedAt = current.CreatedAt

	err := validateTransition(*current, next)
	if err != nil {
		return *current, err
	}

	next.UpdatedAt = r.clock().UTC()
	*current = next

	return next, nil
}

// List returns snapshots of every job, oldest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

func validateTransition(current, next Job) error {
	if !next.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next.Status)
	}

	if current.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, current.ID, current.Status)
	}

	if statusRank[next.Status] < statusRank[current.Status] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next.Status)
	}

	if next.Progress < current.Progress || next.Progress > ProgressComplete {
		return fmt.Errorf("%w: progress %d -> %d", ErrInvalidTransition, current.Progress, next.Progress)
	}

	switch next.Status {
	case StatusCompleted:
		if next.ResultURL == "" || next.Progress != ProgressComplete {
			return fmt.Errorf("%w: completed job needs a result and full progress", ErrInvalidTransition)
		}

		if next.Error != "" {
			return fmt.Errorf("%w: completed job cannot carry an error", ErrInvalidTransition)
		}
	case StatusFailed:
		if next.Error == "" || next.ResultURL != "" {
			return fmt.Errorf("%w: failed job needs an error and no result", ErrInvalidTransition)
		}
	default:
		if next.ResultURL != "" || next.Error != "" {
			return fmt.Errorf("%w: running job cannot carry a result or error", ErrInvalidTransition)
		}

		if next.Progress >= ProgressComplete {
			return fmt.Errorf("%w: running job cannot report full progress", ErrInvalidTransition)
		}
	}

	return nil
}
