package cron

import (
	"context"
	"fmt"
	"time"
)

// Job is one daily maintenance step. now is the instant stamped for the
// whole cycle, so every job judges expiry against the same clock reading.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

// Registry keeps jobs in execution order; names are unique so a single job
// can be selected from the command line.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil cron job")
	}
	if _, exists := r.byName[job.Name()]; exists {
		return fmt.Errorf("cron job %q registered twice", job.Name())
	}
	r.jobs = append(r.jobs, job)
	r.byName[job.Name()] = job
	return nil
}

// Select returns the named jobs in registry order, or all of them when no
// names are given.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		jobs := make([]Job, len(r.jobs))
		copy(jobs, r.jobs)
		return jobs, nil
	}
	wanted := map[string]bool{}
	for _, name := range names {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
		wanted[name] = true
	}
	jobs := make([]Job, 0, len(wanted))
	for _, job := range r.jobs {
		if wanted[job.Name()] {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}
