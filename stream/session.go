package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"towertracker/pipeline"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// State is the connection state of a streaming session
type State int

const (
	Disconnected State = iota
	Connecting
	Streaming
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Streaming:
		return "STREAMING"
	case Failed:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Opener connects to the frame source
type Opener func(ctx context.Context) (Source, error)

// Runner consumes frames until the source fails or ctx is cancelled
type Runner interface {
	Run(ctx context.Context, source pipeline.FrameSource) error
}

// Policy controls reconnection
type Policy struct {
	RetryDelay    time.Duration // Delay before the first reconnect
	MaxRetryDelay time.Duration // Cap for the doubling delay
	MaxRetries    int           // Consecutive failures before giving up, 0 for unlimited
}

// DefaultPolicy retries forever, starting at one second and backing off to 30
func DefaultPolicy() Policy {
	return Policy{
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// Session keeps a frame source connected and feeds it to a runner, reconnecting
// with exponential backoff when the source fails.
type Session struct {
	opener Opener
	runner Runner
	policy Policy

	mu             sync.RWMutex
	state          State
	id             string
	attempts       int
	onStateChanged func(oldState, newState State)

	wait func(ctx context.Context, d time.Duration) error
}

// NewSession creates a disconnected session
func NewSession(opener Opener, runner Runner, policy Policy) *Session {
	if policy.RetryDelay <= 0 {
		policy.RetryDelay = DefaultPolicy().RetryDelay
	}
	if policy.MaxRetryDelay < policy.RetryDelay {
		policy.MaxRetryDelay = policy.RetryDelay
	}
	return &Session{
		opener: opener,
		runner: runner,
		policy: policy,
		state:  Disconnected,
		wait:   sleepContext,
	}
}

// SetStateChangeCallback registers fn to be called on every transition
func (s *Session) SetStateChangeCallback(fn func(oldState, newState State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChanged = fn
}

// State returns the current connection state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ID returns the identifier of the current (or last) connection
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Attempts returns the total number of connection attempts made
func (s *Session) Attempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts
}

func (s *Session) setState(newState State) {
	s.mu.Lock()
	oldState := s.state
	s.state = newState
	id := s.id
	callback := s.onStateChanged
	s.mu.Unlock()

	if oldState == newState {
		return
	}
	debugMsg("SESSION", fmt.Sprintf("[%s] %s -> %s", shortID(id), oldState, newState))
	if callback != nil {
		callback(oldState, newState)
	}
}

// Run connects and streams until ctx is cancelled, returning nil, or until
// MaxRetries consecutive failures, returning the last error. A connection
// that opens but fails before delivering a frame counts as a failure.
func (s *Session) Run(ctx context.Context) error {
	delay := s.policy.RetryDelay
	failures := 0

	for {
		if ctx.Err() != nil {
			s.setState(Disconnected)
			return nil
		}

		s.mu.Lock()
		s.id = uuid.NewString()
		s.attempts++
		attempt := s.attempts
		s.mu.Unlock()

		s.setState(Connecting)
		debugMsg("SESSION", fmt.Sprintf("[%s] Opening stream (attempt %d)", shortID(s.ID()), attempt))

		source, err := s.opener(ctx)
		if err == nil {
			s.setState(Streaming)

			counted := &countingSource{FrameSource: source}
			err = s.runner.Run(ctx, counted)
			if closeErr := source.Close(); closeErr != nil {
				debugMsg("SESSION", fmt.Sprintf("[%s] Error releasing stream: %v", shortID(s.ID()), closeErr))
			}
			if err == nil {
				s.setState(Disconnected)
				return nil
			}
			// only a connection that delivered frames resets the backoff
			if counted.frames > 0 {
				delay = s.policy.RetryDelay
				failures = 0
			}
		}

		if ctx.Err() != nil {
			s.setState(Disconnected)
			return nil
		}

		s.setState(Failed)
		failures++
		if IsAcquisitionError(err) {
			debugMsg("SESSION", fmt.Sprintf("[%s] Stream lost: %v", shortID(s.ID()), err))
		} else {
			debugMsg("SESSION", fmt.Sprintf("[%s] Stream failed: %v", shortID(s.ID()), err))
		}

		if s.policy.MaxRetries > 0 && failures > s.policy.MaxRetries {
			s.setState(Disconnected)
			return fmt.Errorf("giving up after %d consecutive failures: %w", failures, err)
		}

		s.setState(Disconnected)
		debugMsg("SESSION", fmt.Sprintf("Waiting %v before reconnecting", delay))
		if err := s.wait(ctx, delay); err != nil {
			return nil
		}
		delay *= 2
		if delay > s.policy.MaxRetryDelay {
			delay = s.policy.MaxRetryDelay
		}
	}
}

// countingSource counts the frames read through it
type countingSource struct {
	pipeline.FrameSource
	frames int
}

func (cs *countingSource) Read(dst *gocv.Mat) error {
	if err := cs.FrameSource.Read(dst); err != nil {
		return err
	}
	cs.frames++
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// IsAcquisitionError reports whether err came from the frame source
func IsAcquisitionError(err error) bool {
	var acqErr *pipeline.AcquisitionError
	return errors.As(err, &acqErr)
}
