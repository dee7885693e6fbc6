package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/calibration"
	"github.com/teslashibe/go-wayfinder/pkg/guidance"
	"github.com/teslashibe/go-wayfinder/pkg/hub"
	"github.com/teslashibe/go-wayfinder/pkg/navigation"
	"github.com/teslashibe/go-wayfinder/pkg/navigator"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
)

// CommandResult is returned by POST /api/commands?wait=true.
type CommandResult struct {
	State guidance.State `json:"state"`
	Error string         `json:"error,omitempty"`
}

// SessionResponse is returned by GET /api/session.
type SessionResponse struct {
	Active      bool                    `json:"active"`
	Session     *navigation.SessionInfo `json:"session,omitempty"`
	Calibration calibration.Frame       `json:"calibration"`
	Tracking    string                  `json:"tracking"`
	Ready       bool                    `json:"ready"`
	Parked      int                     `json:"parked"`
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"nodes":    s.nodes.Count(),
		"bridge":   s.bridge.ClientCount(),
		"trackers": s.trackers.DeviceCount(),
	})
}

// handleState returns the guidance state hosts poll
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot())
}

// handleCommand accepts one command. Malformed commands are ignored with
// 204. By default the command is queued and 202 returned; with ?wait=true
// the request blocks until the command has been applied.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	cmd, err := protocol.ParseCommand(c.Body())
	if err != nil {
		log.Debug("ignoring command", "error", err)
		return c.SendStatus(fiber.StatusNoContent)
	}

	if cmd.Kind == protocol.KindGetNavigationState {
		return c.JSON(s.ctrl.Snapshot())
	}

	if c.QueryBool("wait") {
		state, err := s.ctrl.Do(c.UserContext(), cmd)
		res := CommandResult{State: state}
		if err != nil {
			res.Error = err.Error()
		}
		return c.JSON(res)
	}

	if err := s.ctrl.Submit(cmd); err != nil {
		status := fiber.StatusServiceUnavailable
		if !errors.Is(err, navigator.ErrQueueFull) && !errors.Is(err, navigator.ErrClosed) {
			status = fiber.StatusInternalServerError
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// handleNodes lists the loaded navigation points
func (s *Server) handleNodes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"nodes": s.nodes.All(),
		"count": s.nodes.Count(),
	})
}

// handleSession describes the active session and calibration
func (s *Server) handleSession(c *fiber.Ctx) error {
	res := SessionResponse{
		Calibration: s.ctrl.Calibration(),
		Tracking:    s.feed.State().String(),
		Ready:       s.feed.Ready(),
		Parked:      s.ctrl.Parked(),
	}
	if info, ok := s.ctrl.Session(); ok {
		res.Active = true
		res.Session = &info
	}
	return c.JSON(res)
}

// handleBridgeWS registers a host connection with the bridge hub. A host
// that connects after tracking became ready gets ar_ready immediately.
func (s *Server) handleBridgeWS(c *websocket.Conn) {
	client := hub.NewClient(s.bridge, c, s.handleBridgeFrame)
	if client == nil {
		return
	}
	if s.feed.Ready() {
		if data, err := protocol.ARReady().Bytes(); err == nil {
			client.Send(hub.NewJSONMessage(data))
		}
	}
	client.Run()
}

// handleBridgeFrame applies one command from a host. Only
// get_navigation_state is answered; everything else is queued.
func (s *Server) handleBridgeFrame(client *hub.Client, data []byte) {
	cmd, err := protocol.ParseCommand(data)
	if err != nil {
		log.Debug("ignoring bridge command", "error", err)
		return
	}

	if cmd.Kind == protocol.KindGetNavigationState {
		state, err := json.Marshal(s.ctrl.Snapshot())
		if err != nil {
			log.Warn("encode navigation state", "error", err)
			return
		}
		client.Send(hub.NewJSONMessage(state))
		return
	}

	if err := s.ctrl.Submit(cmd); err != nil {
		log.Warn("bridge command not queued", "command", cmd.String(), "error", err)
	}
}
