// Package guidance holds the latest guidance a polling host reads: the
// current instruction, the remaining distance and whether the user has
// arrived. It is a snapshot, not a queue.
package guidance

import (
	"fmt"
	"math"
	"sync"
)

// NoDistance is reported until a distance has been computed.
const NoDistance = -1.0

// ArrivedMessage is the instruction shown once the destination is reached.
const ArrivedMessage = "You have arrived at your destination."

// EventKind identifies what an engine emission carries.
type EventKind int

const (
	EventInstruction EventKind = iota
	EventDistance
	EventArrived
)

func (k EventKind) String() string {
	switch k {
	case EventInstruction:
		return "instruction"
	case EventDistance:
		return "distance_update"
	case EventArrived:
		return "arrived"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single emission from the instruction engine.
type Event struct {
	Kind        EventKind
	Instruction string
	Distance    float64
}

// Sink receives engine emissions. Reset clears everything previously
// emitted.
type Sink interface {
	Emit(Event)
	Reset()
}

// State is the response payload of get_navigation_state.
type State struct {
	Instruction string  `json:"instruction"`
	Distance    float64 `json:"distance"`
	Arrived     bool    `json:"arrived"`
}

// Empty returns the state before any emission.
func Empty() State {
	return State{Distance: NoDistance}
}

// Store is the shared guidance snapshot of one navigation context.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a store in the empty state.
func NewStore() *Store {
	return &Store{state: Empty()}
}

// Emit implements Sink. Each kind overwrites only its own fields.
func (s *Store) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case EventInstruction:
		s.state.Instruction = ev.Instruction
	case EventDistance:
		s.state.Distance = round1(ev.Distance)
	case EventArrived:
		s.state.Arrived = true
		s.state.Instruction = ev.Instruction
		if s.state.Instruction == "" {
			s.state.Instruction = ArrivedMessage
		}
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset restores the empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = Empty()
	s.mu.Unlock()
}

func round1(v float64) float64 {
	if v < 0 {
		return NoDistance
	}
	return math.Round(v*10) / 10
}
