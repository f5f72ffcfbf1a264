package jobs

import (
	"errors"
	"fmt"
	"sync"

	"noise-cleaner/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested with nothing active.
var ErrNoRunningJob = errors.New("no running job")

// Manager tracks the single allowed ProcessingJob and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.ProcessingJob
}

// NewManager creates a manager with no job.
func NewManager() *Manager {
	return &Manager{}
}

// Start registers job as pending. It fails while another job is active.
func (m *Manager) Start(job domain.ProcessingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.Status) {
		return ErrJobAlreadyRunning
	}
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}

	job.Status = domain.JobStatusPending
	m.current = job
	return nil
}

// Transition validates and applies a state change for the current job.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		return fmt.Errorf("cannot transition without a job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.ProcessingJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether a job is pending or running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.Status)
}

// Cancel moves an active job to cancelled.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isActive(m.current.Status) {
		return ErrNoRunningJob
	}
	m.current.Status = domain.JobStatusCancelled
	return nil
}

func isActive(status domain.JobStatus) bool {
	return status == domain.JobStatusPending || status == domain.JobStatusRunning
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusPending:
		return to == domain.JobStatusRunning || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusRunning:
		return to == domain.JobStatusSucceeded || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	default:
		return false
	}
}
