// Package navigator owns one navigation context: the calibration, the
// instruction engine and the guidance store, driven by a single goroutine
// that applies host commands and runs the engine ticks.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/calibration"
	"github.com/teslashibe/go-wayfinder/pkg/geom"
	"github.com/teslashibe/go-wayfinder/pkg/guidance"
	"github.com/teslashibe/go-wayfinder/pkg/navigation"
	"github.com/teslashibe/go-wayfinder/pkg/nodes"
	"github.com/teslashibe/go-wayfinder/pkg/planner"
	"github.com/teslashibe/go-wayfinder/pkg/pose"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
)

// Directory resolves navigation points.
type Directory interface {
	FindByID(id string) (*nodes.Node, error)
	FindByNameOrID(value string) (*nodes.Node, error)
	Nearest(position geom.Vec3) (*nodes.Node, error)
}

// Tracking is the live pose plus the readiness of the tracking subsystem.
type Tracking interface {
	pose.Source
	Ready() bool
}

type request struct {
	cmd   protocol.Command
	reply chan error // buffered, may be nil
}

func (r request) done(err error) {
	if r.reply != nil {
		r.reply <- err
	}
}

type parkedRequest struct {
	request
	since time.Time
}

// Navigator serialises commands onto its Run goroutine.
type Navigator struct {
	config   Config
	dir      Directory
	planner  planner.Planner
	tracking Tracking

	calib  *calibration.Calibrator
	store  *guidance.Store
	engine *navigation.Engine

	cmds    chan request
	done    chan struct{}
	running atomic.Bool

	// Owned by the Run goroutine.
	parked  []parkedRequest
	nParked atomic.Int32
}

// New creates a navigator. Call Run to start processing commands.
func New(config Config, dir Directory, plan planner.Planner, tracking Tracking) *Navigator {
	store := guidance.NewStore()
	return &Navigator{
		config:   config,
		dir:      dir,
		planner:  plan,
		tracking: tracking,
		calib:    calibration.New(dir),
		store:    store,
		engine:   navigation.New(config.Navigation, store),
		cmds:     make(chan request, config.QueueSize),
		done:     make(chan struct{}),
	}
}

// Run processes commands and drives the engine until ctx is cancelled.
// It must be called once.
func (n *Navigator) Run(ctx context.Context) error {
	if !n.running.CompareAndSwap(false, true) {
		return errors.New("navigator already running")
	}
	defer close(n.done)

	ticker := time.NewTicker(n.config.Navigation.UpdateInterval)
	defer ticker.Stop()

	log.Info("navigator started",
		"tick", n.config.Navigation.UpdateInterval,
		"readiness_timeout", n.config.ReadinessTimeout)

	for {
		select {
		case <-ctx.Done():
			n.discardParked(ErrClosed)
			log.Info("navigator stopped")
			return nil

		case req := <-n.cmds:
			n.handle(ctx, req, time.Now())

		case now := <-ticker.C:
			n.runParked(ctx, now)
			n.engine.Update(now)
		}
	}
}

// Submit queues cmd without waiting for it to run.
func (n *Navigator) Submit(cmd protocol.Command) error {
	select {
	case n.cmds <- request{cmd: cmd}:
		return nil
	default:
		log.Warn("command dropped, queue full", "command", cmd.String())
		return ErrQueueFull
	}
}

// Do runs cmd and waits for its result. get_navigation_state is answered
// directly from the store. Calibrate and start_navigation may wait for
// tracking readiness first.
func (n *Navigator) Do(ctx context.Context, cmd protocol.Command) (guidance.State, error) {
	if cmd.Kind == protocol.KindGetNavigationState {
		return n.store.Snapshot(), nil
	}

	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case n.cmds <- req:
	case <-ctx.Done():
		return n.store.Snapshot(), ctx.Err()
	case <-n.done:
		return n.store.Snapshot(), ErrClosed
	}

	select {
	case err := <-req.reply:
		return n.store.Snapshot(), err
	case <-ctx.Done():
		return n.store.Snapshot(), ctx.Err()
	case <-n.done:
		return n.store.Snapshot(), ErrClosed
	}
}

// Snapshot returns the current guidance state.
func (n *Navigator) Snapshot() guidance.State {
	return n.store.Snapshot()
}

// Session describes the active navigation session.
func (n *Navigator) Session() (navigation.SessionInfo, bool) {
	return n.engine.Info()
}

// Calibration returns the last calibration frame.
func (n *Navigator) Calibration() calibration.Frame {
	return n.calib.Frame()
}

// Parked returns how many commands are waiting for tracking.
func (n *Navigator) Parked() int {
	return int(n.nParked.Load())
}

func (n *Navigator) handle(ctx context.Context, req request, now time.Time) {
	switch req.cmd.Kind {
	case protocol.KindStopNavigation:
		n.stop()
		req.done(nil)

	case protocol.KindGetNavigationState:
		req.done(nil)

	case protocol.KindCalibrate, protocol.KindStartNavigation:
		if !n.tracking.Ready() {
			n.park(req, now)
			return
		}
		n.runParked(ctx, now)
		req.done(n.execute(ctx, req.cmd))

	default:
		log.Warn("unknown command ignored", "kind", int(req.cmd.Kind))
		req.done(fmt.Errorf("%w: %v", protocol.ErrMalformedCommand, req.cmd.Kind))
	}
}

func (n *Navigator) execute(ctx context.Context, cmd protocol.Command) error {
	var err error
	switch cmd.Kind {
	case protocol.KindCalibrate:
		err = n.calibrate(cmd.NodeID)
	case protocol.KindStartNavigation:
		err = n.startNavigation(ctx, cmd.Start, cmd.Destination)
	}
	if err != nil {
		log.Warn("command failed", "command", cmd.String(), "error", err)
	}
	return err
}

func (n *Navigator) calibrate(nodeID string) error {
	_, err := n.calib.Align(nodeID, n.tracking)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nodes.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrLookup, err)
	default:
		return fmt.Errorf("%w: %w", ErrCalibration, err)
	}
}

func (n *Navigator) startNavigation(ctx context.Context, start, destination string) error {
	if !n.calib.IsCalibrated() {
		return fmt.Errorf("%w: %w", ErrInvalidSession, navigation.ErrNotCalibrated)
	}

	dest, err := n.dir.FindByNameOrID(destination)
	if err != nil {
		return fmt.Errorf("%w: destination: %w", ErrLookup, err)
	}

	user, ok := n.tracking.Pose()
	if !ok {
		return ErrNotReady
	}

	from, err := n.resolveStart(start, n.calib.WorldToMap(user.Position))
	if err != nil {
		return fmt.Errorf("%w: start: %w", ErrLookup, err)
	}

	planCtx, cancel := context.WithTimeout(ctx, n.config.PlanTimeout)
	defer cancel()
	corners, err := n.planner.Plan(planCtx, from.Position, dest.Position)
	if err != nil {
		return fmt.Errorf("%w: %s -> %s: %w", ErrPlanning, from.ID, dest.ID, err)
	}

	path := corners.Transform(n.calib.Transform())
	if err := n.engine.Start(n.tracking, path, dest.ID, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return nil
}

// resolveStart looks start up by name or id and falls back to the node
// nearest the user, in map coordinates.
func (n *Navigator) resolveStart(start string, userMap geom.Vec3) (*nodes.Node, error) {
	if start != "" {
		node, err := n.dir.FindByNameOrID(start)
		if err == nil {
			return node, nil
		}
		log.Debug("start not found, using nearest node", "start", start)
	}
	return n.dir.Nearest(userMap)
}

func (n *Navigator) stop() {
	n.discardParked(ErrDiscarded)
	n.engine.Stop()
	if !n.config.KeepCalibrationOnStop {
		n.calib.Reset()
	}
}

func (n *Navigator) park(req request, now time.Time) {
	n.parked = append(n.parked, parkedRequest{request: req, since: now})
	n.nParked.Store(int32(len(n.parked)))
	log.Info("waiting for tracking", "command", req.cmd.String(), "parked", len(n.parked))
}

// runParked executes parked commands in arrival order once tracking is
// ready, and expires the ones that waited too long.
func (n *Navigator) runParked(ctx context.Context, now time.Time) {
	if len(n.parked) == 0 {
		return
	}

	if n.tracking.Ready() {
		queue := n.parked
		n.parked = nil
		n.nParked.Store(0)
		for _, p := range queue {
			log.Debug("tracking ready, running parked command", "command", p.cmd.String(), "waited", now.Sub(p.since))
			p.done(n.execute(ctx, p.cmd))
		}
		return
	}

	if n.config.ReadinessTimeout <= 0 {
		return
	}
	kept := n.parked[:0]
	for _, p := range n.parked {
		if now.Sub(p.since) >= n.config.ReadinessTimeout {
			log.Warn("command dropped, tracking not ready", "command", p.cmd.String(), "waited", now.Sub(p.since))
			p.done(ErrNotReady)
			continue
		}
		kept = append(kept, p)
	}
	n.parked = kept
	n.nParked.Store(int32(len(kept)))
}

func (n *Navigator) discardParked(err error) {
	for _, p := range n.parked {
		p.done(err)
	}
	if len(n.parked) > 0 {
		log.Info("parked commands discarded", "count", len(n.parked), "reason", err)
	}
	n.parked = nil
	n.nParked.Store(0)
}
