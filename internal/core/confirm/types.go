package confirm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Lin-Jiong-HDU/qbot/internal/clock"
	"github.com/google/uuid"
)

// State is the lifecycle state of a prompt.
type State string

const (
	StatePending  State = "pending"  // Waiting for a button press
	StateApproved State = "approved" // Confirmed, action invoked
	StateAborted  State = "aborted"  // Cancelled by the requester
	StateExpired  State = "expired"  // Nobody answered in time
)

// Button is one of the two answers a prompt accepts.
type Button string

const (
	ButtonConfirm Button = "confirm"
	ButtonCancel  Button = "cancel"
)

// DefaultTimeout is how long a prompt waits for an answer.
const DefaultTimeout = 30 * time.Second

var (
	ErrResolved     = errors.New("confirmation already resolved")
	ErrExpired      = errors.New("confirmation expired")
	ErrUnknownInput = errors.New("unknown button")
)

// Action is the work bound to a prompt. It runs at most once, on approval,
// and its return value is kept as the prompt result.
type Action func(ctx context.Context) any

var validTransitions = map[State][]State{
	StatePending: {StateApproved, StateAborted, StateExpired},
}

// CanTransitionTo checks if a state transition is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s != StatePending
}

// Prompt is a two-button, time-limited confirmation for one request.
type Prompt struct {
	ID          string
	Command     string
	Description string
	Requester   string
	CreatedAt   time.Time
	Timeout     time.Duration

	clock  clock.Clock
	action Action
	timer  *clock.Timer

	mu         sync.Mutex
	state      State
	result     any
	done       chan struct{}
	onResolved []func(*Prompt)
}

// NewPrompt creates a pending prompt and arms its expiry.
func NewPrompt(clk clock.Clock, requester, command, description string, timeout time.Duration, action Action) *Prompt {
	if clk == nil {
		clk = clock.Real()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &Prompt{
		ID:          uuid.New().String(),
		Command:     command,
		Description: description,
		Requester:   requester,
		CreatedAt:   clk.Now(),
		Timeout:     timeout,
		clock:       clk,
		action:      action,
		state:       StatePending,
		done:        make(chan struct{}),
	}
	p.mu.Lock()
	p.timer = clk.AfterFunc(timeout, p.Expire)
	p.mu.Unlock()
	return p
}

// ExpiresAt is the instant after which presses are refused.
func (p *Prompt) ExpiresAt() time.Time {
	return p.CreatedAt.Add(p.Timeout)
}

// Remaining returns the time left before expiry, never negative.
func (p *Prompt) Remaining() time.Duration {
	left := p.ExpiresAt().Sub(p.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// State returns the current state.
func (p *Prompt) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the value produced by the bound action. It is nil unless
// the prompt was approved and the action has finished.
func (p *Prompt) Result() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Done is closed once the prompt reaches a terminal state and, for an
// approved prompt, the action has returned.
func (p *Prompt) Done() <-chan struct{} {
	return p.done
}

// OnResolved registers fn to run once the prompt is resolved.
func (p *Prompt) OnResolved(fn func(*Prompt)) {
	p.mu.Lock()
	if p.state.Terminal() {
		p.mu.Unlock()
		fn(p)
		return
	}
	p.onResolved = append(p.onResolved, fn)
	p.mu.Unlock()
}

// Press applies a button. Confirm runs the bound action in the calling
// goroutine before returning. Presses after resolution change nothing.
func (p *Prompt) Press(ctx context.Context, b Button) (State, error) {
	var next State
	switch b {
	case ButtonConfirm:
		next = StateApproved
	case ButtonCancel:
		next = StateAborted
	default:
		return p.State(), ErrUnknownInput
	}

	p.mu.Lock()
	if p.state.Terminal() {
		state := p.state
		p.mu.Unlock()
		return state, ErrResolved
	}
	if !p.clock.Now().Before(p.ExpiresAt()) {
		p.mu.Unlock()
		p.Expire()
		return StateExpired, ErrExpired
	}
	p.state = next
	timer := p.timer
	p.mu.Unlock()
	timer.Stop()

	if next == StateApproved && p.action != nil {
		result := p.action(ctx)
		p.mu.Lock()
		p.result = result
		p.mu.Unlock()
	}

	p.finish()
	return next, nil
}

// Expire resolves a pending prompt as expired. It is a no-op once the
// prompt is resolved.
func (p *Prompt) Expire() {
	p.mu.Lock()
	if !p.state.CanTransitionTo(StateExpired) {
		p.mu.Unlock()
		return
	}
	p.state = StateExpired
	timer := p.timer
	p.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	p.finish()
}

// Wait blocks until the prompt is resolved or ctx is done.
func (p *Prompt) Wait(ctx context.Context) (State, error) {
	select {
	case <-p.done:
		return p.State(), nil
	case <-ctx.Done():
		return p.State(), ctx.Err()
	}
}

func (p *Prompt) finish() {
	p.mu.Lock()
	hooks := p.onResolved
	p.onResolved = nil
	p.mu.Unlock()

	close(p.done)
	for _, fn := range hooks {
		fn(p)
	}
}
