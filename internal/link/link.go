// Package link tracks whether the host connection is up.
package link

import (
	"sync"
	"sync/atomic"
)

// State is the shared connection predicate. The zero value is
// disconnected and usable.
type State struct {
	connected atomic.Bool

	mu      sync.Mutex
	hooks   []func()
	readied bool
}

// Connected reports whether the connection is currently established.
func (s *State) Connected() bool {
	return s.connected.Load()
}

// OnReady registers fn to run every time the connection becomes ready.
// If it already is, fn runs immediately.
func (s *State) OnReady(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	ready := s.connected.Load()
	s.mu.Unlock()

	if ready {
		fn()
	}
}

// MarkReady marks the connection established and runs the ready hooks.
func (s *State) MarkReady() {
	s.mu.Lock()
	if s.connected.Load() {
		s.mu.Unlock()
		return
	}
	s.connected.Store(true)
	s.readied = true
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// MarkDown marks the connection lost. Hooks run again on the next MarkReady.
func (s *State) MarkDown() {
	s.connected.Store(false)
}

// EverReady reports whether the connection has been established at least once.
func (s *State) EverReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readied
}
