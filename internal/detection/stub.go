package detection

import (
	"context"
	"fmt"
	"sync"
)

// Stub is a scripted in-process Client for tests and local development.
// Submitted jobs are recorded and reported Running until a result is
// scripted for them via Complete or Fail.
type Stub struct {
	mu      sync.Mutex
	seq     int
	jobs    map[Handle]SubmitRequest
	results map[Handle]Poll

	// SubmitErr, when set, causes every Submit call to fail with it.
	SubmitErr error
}

// NewStub creates an empty scripted client.
func NewStub() *Stub {
	return &Stub{
		jobs:    make(map[Handle]SubmitRequest),
		results: make(map[Handle]Poll),
	}
}

func (s *Stub) Submit(_ context.Context, req SubmitRequest) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SubmitErr != nil {
		return "", s.SubmitErr
	}

	s.seq++
	handle := Handle(fmt.Sprintf("job-%d", s.seq))
	s.jobs[handle] = req
	return handle, nil
}

func (s *Stub) Poll(_ context.Context, handle Handle) (*Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[handle]; !ok {
		return nil, ErrJobNotFound
	}

	if poll, ok := s.results[handle]; ok {
		return &poll, nil
	}
	return &Poll{State: StateRunning}, nil
}

// Complete scripts a successful result for a job.
func (s *Stub) Complete(handle Handle, matches ...Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[handle] = Poll{State: StateCompleted, Matches: matches}
}

// Fail scripts a permanently failed result for a job.
func (s *Stub) Fail(handle Handle, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[handle] = Poll{State: StateFailed, Message: message, Permanent: true}
}

// FailTransient scripts a retryable failed result for a job.
func (s *Stub) FailTransient(handle Handle, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[handle] = Poll{State: StateFailed, Message: message}
}

// Request returns the recorded submission for a handle, for assertions.
func (s *Stub) Request(handle Handle) (SubmitRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.jobs[handle]
	return req, ok
}

// Submitted returns the number of jobs submitted.
func (s *Stub) Submitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
