package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lin-Jiong-HDU/qbot/internal/clock"
)

var (
	ErrNotFound     = errors.New("confirmation not found")
	ErrNotRequester = errors.New("only the requester can answer this confirmation")
)

// Manager tracks the prompts that are still waiting for an answer.
// Resolved prompts are forgotten immediately; nothing is persisted.
type Manager struct {
	clock   clock.Clock
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	prompts map[string]*Prompt
}

// NewManager creates a prompt registry.
func NewManager(clk clock.Clock, timeout time.Duration, logger *slog.Logger) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		clock:   clk,
		timeout: timeout,
		logger:  logger,
		prompts: make(map[string]*Prompt),
	}
}

// Open creates a pending prompt for requester bound to action.
func (m *Manager) Open(requester, command, description string, action Action) *Prompt {
	p := NewPrompt(m.clock, requester, command, description, m.timeout, action)

	m.mu.Lock()
	m.prompts[p.ID] = p
	m.mu.Unlock()

	p.OnResolved(func(p *Prompt) {
		m.mu.Lock()
		delete(m.prompts, p.ID)
		m.mu.Unlock()
		m.logger.Info("confirmation resolved",
			"id", p.ID,
			"command", p.Command,
			"requester", p.Requester,
			"state", p.State(),
		)
	})

	m.logger.Info("confirmation opened",
		"id", p.ID,
		"command", command,
		"requester", requester,
		"timeout", p.Timeout,
	)
	return p
}

// Get returns a pending prompt by id.
func (m *Manager) Get(id string) (*Prompt, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prompts[id]
	return p, ok
}

// Pending returns the prompts still waiting for an answer.
func (m *Manager) Pending() []*Prompt {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Prompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		result = append(result, p)
	}
	return result
}

// Press delivers a button press from presser to the prompt with id.
func (m *Manager) Press(ctx context.Context, id, presser string, b Button) (*Prompt, error) {
	p, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.Requester != presser {
		return p, ErrNotRequester
	}

	if _, err := p.Press(ctx, b); err != nil {
		return p, err
	}
	return p, nil
}
