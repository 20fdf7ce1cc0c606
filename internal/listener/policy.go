package listener

import (
	"fmt"
	"strings"
	"sync"

	"github.com/smartdevs17/symbiotic-listener/internal/models"
	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

// Policy decides what happens to notifications that arrive while the
// handler is still busy with an earlier one.
type Policy string

const (
	// PolicyLast keeps only the newest undelivered notification.
	PolicyLast Policy = "last"
	// PolicyAll queues every notification in arrival order.
	PolicyAll Policy = "all"
)

// ParsePolicy parses a policy name, case-insensitively
func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case PolicyLast:
		return PolicyLast, nil
	case PolicyAll:
		return PolicyAll, nil
	default:
		return "", utils.NewAppError(utils.ErrCodeConfiguration,
			"Unsupported listener policy", fmt.Sprintf("%q (supported: last, all)", name))
	}
}

// mailbox holds notifications between the receiver and the dispatcher.
// Pops always come out in push order.
type mailbox struct {
	policy Policy

	mu      sync.Mutex
	pending []models.Notification
	wake    chan struct{}
}

func newMailbox(policy Policy) *mailbox {
	return &mailbox{
		policy: policy,
		wake:   make(chan struct{}, 1),
	}
}

// push stores n and returns how many undelivered notifications it displaced.
func (m *mailbox) push(n models.Notification) int {
	m.mu.Lock()
	dropped := 0
	if m.policy == PolicyLast && len(m.pending) > 0 {
		dropped = len(m.pending)
		clear(m.pending)
		m.pending = m.pending[:0]
	}
	m.pending = append(m.pending, n)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return dropped
}

func (m *mailbox) pop() (models.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return models.Notification{}, false
	}
	n := m.pending[0]
	m.pending[0] = models.Notification{}
	m.pending = m.pending[1:]
	return n, true
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// ready is signalled after a push; it may fire with nothing left to pop.
func (m *mailbox) ready() <-chan struct{} {
	return m.wake
}
