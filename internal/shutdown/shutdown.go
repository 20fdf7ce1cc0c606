// Package shutdown provides the one-shot stop signal raised by the
// notification handler and awaited by the runner.
package shutdown

import "sync"

// Signal is closed exactly once. The zero value is not usable; call New.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// New returns a signal in the running state
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire moves the signal to the stopping state. Later calls are no-ops.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.done) })
}

// Fired reports whether Fire has been called
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal fires
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
