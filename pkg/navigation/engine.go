// Package navigation implements the turn-by-turn instruction engine: given
// a corner path and the user's live pose it decides which instruction to
// show, when to move on to the next corner and when the user has arrived.
package navigation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/geom"
	"github.com/teslashibe/go-wayfinder/pkg/guidance"
	"github.com/teslashibe/go-wayfinder/pkg/pose"
)

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateArrived
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNavigating:
		return "navigating"
	case StateArrived:
		return "arrived"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionInfo describes the active session for status endpoints.
type SessionInfo struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	State       State     `json:"state"`
	Target      int       `json:"target"`
	Corners     geom.Path `json:"corners"`
	Fingerprint string    `json:"fingerprint"`
	Instruction string    `json:"instruction,omitempty"`
	Started     time.Time `json:"started"`
}

type session struct {
	id          uuid.UUID
	path        geom.Path
	destination string
	fingerprint uint64
	target      int
	arrive      float64
	started     time.Time

	// Debounce
	last         instruction
	hasLast      bool
	pending      instruction
	hasPending   bool
	pendingSince time.Time

	// Distance throttle
	lastDistance float64
	hasDistance  bool
}

// Engine is the instruction state machine of one navigation context.
// Start, Stop and Update are expected to be called from a single goroutine;
// the accessors may be called from anywhere.
type Engine struct {
	config Config
	sink   guidance.Sink
	clock  func() time.Time

	mu       sync.RWMutex
	state    State
	user     pose.Source
	sess     *session
	lastTick time.Time
}

// New creates an idle engine that emits into sink.
func New(config Config, sink guidance.Sink) *Engine {
	return &Engine{
		config: config,
		sink:   sink,
		clock:  time.Now,
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Start begins a session toward destination along path. user supplies the
// live pose on every tick. arriveDistance overrides the configured arrive
// distance when positive. An instruction is emitted immediately.
func (e *Engine) Start(user pose.Source, path geom.Path, destination string, arriveDistance float64) error {
	if !path.Valid() {
		return fmt.Errorf("%w: got %d", ErrPathTooShort, len(path))
	}
	if user == nil {
		return ErrNoPoseSource
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil && e.sess.destination == destination && e.sess.path.Equal(path, geom.PathTolerance) {
		log.Info("navigation start ignored, same session active",
			"session", e.sess.id,
			"destination", destination,
			"target", e.sess.target)
		return ErrDuplicateSession
	}

	if arriveDistance <= 0 {
		arriveDistance = e.config.ArriveDistance
	}

	now := e.clock()
	e.sess = &session{
		id:          uuid.New(),
		path:        path.Clone(),
		destination: destination,
		fingerprint: path.Fingerprint(),
		target:      1,
		arrive:      arriveDistance,
		started:     now,
	}
	e.user = user
	e.state = StateNavigating
	e.lastTick = now
	e.sink.Reset()

	log.Info("navigation started",
		"session", e.sess.id,
		"destination", destination,
		"corners", len(path),
		"length", fmt.Sprintf("%.1f", path.FlatLengthFrom(0)),
		"fingerprint", fmt.Sprintf("%016x", e.sess.fingerprint))

	e.emitForced()
	return nil
}

// Stop ends any session and clears the guidance store.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil {
		log.Info("navigation stopped", "session", e.sess.id, "state", e.state)
	}
	e.sess = nil
	e.user = nil
	e.state = StateIdle
	e.lastTick = time.Time{}
	e.sink.Reset()
}

// Update runs one tick. Calls closer together than UpdateInterval are
// ignored, as are calls outside the navigating state.
func (e *Engine) Update(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateNavigating {
		return
	}
	// Allow a little ticker jitter.
	if !e.lastTick.IsZero() && now.Sub(e.lastTick) < e.config.UpdateInterval*9/10 {
		return
	}
	e.lastTick = now

	p, ok := e.user.Pose()
	if !ok {
		return
	}

	s := e.sess
	pos := p.Position.Flat()
	remaining := e.remaining(pos)

	if pos.FlatDistance(s.path.Last()) <= s.arrive {
		e.arrive()
		return
	}

	if pos.FlatDistance(s.path[s.target]) < e.config.AdvanceDistance && s.target < len(s.path)-1 {
		s.target++
		s.hasPending = false
		log.Debug("corner reached", "session", s.id, "target", s.target, "of", len(s.path)-1)
	}

	e.debounce(e.classify(p), now)

	if !s.hasDistance || s.lastDistance-remaining >= e.config.DistanceStep {
		e.emitDistance(remaining)
	}
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// TargetIndex returns the index of the corner being walked to, or -1 when
// idle.
func (e *Engine) TargetIndex() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.sess == nil {
		return -1
	}
	return e.sess.target
}

// SessionID returns the id of the active session.
func (e *Engine) SessionID() (uuid.UUID, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.sess == nil {
		return uuid.Nil, false
	}
	return e.sess.id, true
}

// Destination returns the destination id of the active session.
func (e *Engine) Destination() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.sess == nil {
		return ""
	}
	return e.sess.destination
}

// Info describes the active session. ok is false when idle.
func (e *Engine) Info() (info SessionInfo, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.sess == nil {
		return SessionInfo{State: e.state}, false
	}
	s := e.sess
	info = SessionInfo{
		ID:          s.id.String(),
		Destination: s.destination,
		State:       e.state,
		Target:      s.target,
		Corners:     s.path.Clone(),
		Fingerprint: fmt.Sprintf("%016x", s.fingerprint),
		Started:     s.started,
	}
	if s.hasLast {
		info.Instruction = s.last.text
	}
	return info, true
}

// remaining is the distance to the target corner plus every segment after it.
func (e *Engine) remaining(pos geom.Vec3) float64 {
	s := e.sess
	return pos.FlatDistance(s.path[s.target]) + s.path.FlatLengthFrom(s.target)
}

func (e *Engine) classify(p pose.Pose) instruction {
	s := e.sess
	pos := p.Position.Flat()
	corner := s.path[s.target]
	toTarget := corner.Flat().Sub(pos)
	angle := geom.Degrees(geom.SignedYaw(p.Forward, toTarget))

	kind := Straight
	if math.Abs(angle) >= e.config.TurnThresholdDeg {
		kind = Right
		if angle < 0 {
			kind = Left
		}
		if e.config.InvertTurns {
			kind = kind.mirrored()
		}
	}

	return newInstruction(kind, s.target, pos.FlatDistance(corner))
}

// debounce emits cand once it has been the pending candidate for
// DebounceTime. Returning to the last emitted instruction drops the
// candidate.
func (e *Engine) debounce(cand instruction, now time.Time) {
	s := e.sess

	if !s.hasLast {
		e.emitInstruction(cand)
		return
	}

	if cand.sameAs(s.last) {
		s.hasPending = false
		if cand.text != s.last.text {
			s.last = cand
			e.sink.Emit(guidance.Event{Kind: guidance.EventInstruction, Instruction: cand.text})
		}
		return
	}

	if !s.hasPending || !cand.sameAs(s.pending) {
		s.pending = cand
		s.hasPending = true
		s.pendingSince = now
	} else {
		s.pending.text = cand.text
	}

	if now.Sub(s.pendingSince) >= e.config.DebounceTime {
		e.emitInstruction(cand)
	}
}

func (e *Engine) emitInstruction(in instruction) {
	s := e.sess
	s.last = in
	s.hasLast = true
	s.hasPending = false
	e.sink.Emit(guidance.Event{Kind: guidance.EventInstruction, Instruction: in.text})
	log.Debug("instruction", "session", s.id, "kind", in.kind, "target", in.target, "text", in.text)
}

func (e *Engine) emitDistance(d float64) {
	s := e.sess
	s.lastDistance = d
	s.hasDistance = true
	e.sink.Emit(guidance.Event{Kind: guidance.EventDistance, Distance: d})
}

// emitForced publishes an instruction and distance without debouncing.
// Nothing is emitted while the pose is unavailable; the first tick with a
// pose takes over.
func (e *Engine) emitForced() {
	p, ok := e.user.Pose()
	if !ok {
		log.Debug("no pose at start, waiting for first tick", "session", e.sess.id)
		return
	}
	e.emitInstruction(e.classify(p))
	e.emitDistance(e.remaining(p.Position.Flat()))
}

func (e *Engine) arrive() {
	s := e.sess
	e.state = StateArrived
	s.hasPending = false
	e.sink.Emit(guidance.Event{Kind: guidance.EventArrived, Instruction: guidance.ArrivedMessage})
	e.emitDistance(0)
	log.Info("arrived", "session", s.id, "destination", s.destination, "elapsed", e.clock().Sub(s.started).Round(time.Second))
}
