package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCommand is returned by ParseCommand for anything that is not
// a well-formed, known command. Callers log it and otherwise ignore the
// message.
var ErrMalformedCommand = errors.New("malformed command")

// Kind is the closed set of host commands.
type Kind int

const (
	KindCalibrate Kind = iota + 1
	KindStartNavigation
	KindStopNavigation
	KindGetNavigationState
)

var kindNames = map[Kind]string{
	KindCalibrate:          "calibrate",
	KindStartNavigation:    "start_navigation",
	KindStopNavigation:     "stop_navigation",
	KindGetNavigationState: "get_navigation_state",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// NeedsTracking reports whether the command must wait for the tracking
// subsystem to be ready before it runs.
func (k Kind) NeedsTracking() bool {
	return k == KindCalibrate || k == KindStartNavigation
}

// Command is a decoded host command. Only the fields of its Kind are set.
type Command struct {
	Kind Kind

	// KindCalibrate
	NodeID string

	// KindStartNavigation; Start may be empty
	Start       string
	Destination string
}

// Calibrate builds a calibrate command.
func Calibrate(nodeID string) Command {
	return Command{Kind: KindCalibrate, NodeID: nodeID}
}

// StartNavigation builds a start_navigation command.
func StartNavigation(start, destination string) Command {
	return Command{Kind: KindStartNavigation, Start: start, Destination: destination}
}

// StopNavigation builds a stop_navigation command.
func StopNavigation() Command {
	return Command{Kind: KindStopNavigation}
}

// GetNavigationState builds a get_navigation_state command.
func GetNavigationState() Command {
	return Command{Kind: KindGetNavigationState}
}

func (c Command) String() string {
	switch c.Kind {
	case KindCalibrate:
		return fmt.Sprintf("%s(%s)", c.Kind, c.NodeID)
	case KindStartNavigation:
		return fmt.Sprintf("%s(%s -> %s)", c.Kind, c.Start, c.Destination)
	default:
		return c.Kind.String()
	}
}

// wireCommand is the JSON shape sent by host apps: one action per message.
type wireCommand struct {
	Action      string `json:"action"`
	NodeID      string `json:"nodeId,omitempty"`
	Start       string `json:"start,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// ParseCommand decodes a host command. Unknown actions and commands missing
// a required field fail with ErrMalformedCommand.
func ParseCommand(data []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	nodeID := strings.TrimSpace(w.NodeID)
	start := strings.TrimSpace(w.Start)
	dest := strings.TrimSpace(w.Destination)

	switch strings.TrimSpace(w.Action) {
	case "calibrate":
		if nodeID == "" {
			return Command{}, fmt.Errorf("%w: calibrate needs nodeId", ErrMalformedCommand)
		}
		return Calibrate(nodeID), nil
	case "start_navigation":
		if dest == "" {
			return Command{}, fmt.Errorf("%w: start_navigation needs destination", ErrMalformedCommand)
		}
		return StartNavigation(start, dest), nil
	case "stop_navigation":
		return StopNavigation(), nil
	case "get_navigation_state":
		return GetNavigationState(), nil
	case "":
		return Command{}, fmt.Errorf("%w: missing action", ErrMalformedCommand)
	default:
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrMalformedCommand, w.Action)
	}
}

// MarshalJSON encodes the command in its wire shape.
func (c Command) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[c.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %d", ErrMalformedCommand, int(c.Kind))
	}
	return json.Marshal(wireCommand{
		Action:      name,
		NodeID:      c.NodeID,
		Start:       c.Start,
		Destination: c.Destination,
	})
}
