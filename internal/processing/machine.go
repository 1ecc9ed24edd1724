// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processing

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/ManuGH/posereview/internal/apperr"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/metrics"
	"github.com/ManuGH/posereview/internal/model"
	"github.com/rs/zerolog"
)

// Listener observes applied mutations.
type Listener func(State)

// Machine owns the state of one processing session. Mutations are serialised;
// listeners run after each applied mutation, in mutation order, without the
// state lock held. Listeners may call Snapshot but must not mutate the
// machine: a mutation from a listener waits for its own delivery turn.
type Machine struct {
	mu    sync.Mutex
	state State

	listeners map[uint64]Listener
	nextID    uint64

	// Delivery tickets are taken under mu and served in order under turnMu.
	turnMu     sync.Mutex
	turn       *sync.Cond
	nextTicket uint64
	served     uint64

	logger zerolog.Logger
}

// NewMachine returns a machine in IDLE.
func NewMachine() *Machine {
	m := &Machine{
		state:     State{Status: StatusIdle},
		listeners: make(map[uint64]Listener),
		logger:    xglog.WithComponent("processing"),
	}
	m.turn = sync.NewCond(&m.turnMu)
	return m
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe registers fn and returns a function removing it.
func (m *Machine) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// SetStatus moves to next if the transition is legal. Result and error are
// dropped when leaving COMPLETED and ERROR respectively.
func (m *Machine) SetStatus(next Status) Outcome {
	return m.mutate(next, func(s *State) (string, bool) {
		if !next.Valid() {
			return fmt.Sprintf("unknown status %q", next), false
		}
		if !CanTransition(s.Status, next) {
			return rejectReason(s.Status, next), false
		}
		if next == StatusIdle {
			*s = State{Status: StatusIdle}
			return "", true
		}
		if next == StatusUploading && s.Status != StatusUploading {
			s.Progress = 0
		}
		if next != StatusCompleted {
			s.Result = nil
		}
		if next != StatusError {
			s.Error = nil
		}
		s.Status = next
		return "", true
	})
}

// SetUploading enters UPLOADING or updates its progress. Progress is clamped
// to 0..100 and may not decrease within one UPLOADING phase.
func (m *Machine) SetUploading(progress int) Outcome {
	progress = min(max(progress, 0), 100)
	return m.mutate(StatusUploading, func(s *State) (string, bool) {
		if s.Status == StatusUploading {
			if progress < s.Progress {
				return fmt.Sprintf("progress would decrease from %d to %d", s.Progress, progress), false
			}
			s.Progress = progress
			return "", true
		}
		if !CanTransition(s.Status, StatusUploading) {
			return rejectReason(s.Status, StatusUploading), false
		}
		*s = State{Status: StatusUploading, Progress: progress}
		return "", true
	})
}

// SetCompleted stores result, forces progress to 100 and clears any error.
func (m *Machine) SetCompleted(result model.ProcessResult) Outcome {
	return m.mutate(StatusCompleted, func(s *State) (string, bool) {
		if !CanTransition(s.Status, StatusCompleted) {
			return rejectReason(s.Status, StatusCompleted), false
		}
		r := result
		*s = State{Status: StatusCompleted, Progress: 100, Result: &r}
		return "", true
	})
}

// SetError stores err and clears any result. Progress is kept for display.
func (m *Machine) SetError(err *apperr.AppError) Outcome {
	return m.mutate(StatusError, func(s *State) (string, bool) {
		if err == nil {
			return "nil error", false
		}
		if !CanTransition(s.Status, StatusError) {
			return rejectReason(s.Status, StatusError), false
		}
		s.Status = StatusError
		s.Result = nil
		s.Error = err
		return "", true
	})
}

// Reset unconditionally returns to IDLE with progress 0.
func (m *Machine) Reset() Outcome {
	return m.mutate(StatusIdle, func(s *State) (string, bool) {
		*s = State{Status: StatusIdle}
		return "", true
	})
}

func (m *Machine) mutate(to Status, apply func(*State) (string, bool)) Outcome {
	m.mu.Lock()
	before := m.state
	next := m.state
	reason, ok := apply(&next)
	out := Outcome{Applied: ok, From: before.Status, To: to, Reason: reason}

	metrics.RecordTransition(string(before.Status), string(to), ok)
	if !ok {
		m.mu.Unlock()
		m.logger.Warn().
			Str(xglog.FieldEvent, "transition.rejected").
			Str(xglog.FieldOldState, string(before.Status)).
			Str(xglog.FieldNewState, string(to)).
			Str(xglog.FieldReason, reason).
			Msg("invalid state transition")
		return out
	}

	m.state = next
	if sameState(before, next) {
		m.mu.Unlock()
		return out
	}
	snapshot := next.clone()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, id := range slices.Sorted(maps.Keys(m.listeners)) {
		listeners = append(listeners, m.listeners[id])
	}
	ticket := m.nextTicket
	m.nextTicket++
	m.mu.Unlock()

	m.turnMu.Lock()
	for m.served != ticket {
		m.turn.Wait()
	}
	m.turnMu.Unlock()
	defer func() {
		m.turnMu.Lock()
		m.served++
		m.turnMu.Unlock()
		m.turn.Broadcast()
	}()

	if before.Status != next.Status {
		m.logger.Debug().
			Str(xglog.FieldEvent, "transition.applied").
			Str(xglog.FieldOldState, string(before.Status)).
			Str(xglog.FieldNewState, string(next.Status)).
			Int(xglog.FieldProgress, next.Progress).
			Msg("state transition")
	}
	if next.Error != nil && before.Error != next.Error {
		metrics.RecordAppError(string(next.Error.Code), next.Error.Kind.String())
	}
	for _, fn := range listeners {
		fn(snapshot)
	}
	return out
}

func rejectReason(from, to Status) string {
	allowed := make([]string, 0, len(transitions[from]))
	for _, s := range transitions[from] {
		allowed = append(allowed, string(s))
	}
	list := strings.Join(allowed, ", ")
	if list == "" {
		list = "none"
	}
	return fmt.Sprintf("invalid state transition: %s -> %s (allowed from %s: %s)", from, to, from, list)
}

func sameState(a, b State) bool {
	return a.Status == b.Status && a.Progress == b.Progress && a.Result == b.Result && a.Error == b.Error
}

func (s State) clone() State {
	out := s
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}
