// Package tracker provides the WebSocket endpoint that tracking devices
// stream their camera pose into.
package tracker

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/pose"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
)

// PoseSink receives what devices report.
type PoseSink interface {
	SetPose(p pose.Pose)
	SetState(s pose.TrackingState)
	Clear()
}

// Device represents a connected tracking device
type Device struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time
	state    pose.TrackingState
	poses    uint64
}

// Send sends a message to the device
func (d *Device) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Conn.WriteMessage(websocket.TextMessage, data)
}

func (d *Device) touch() {
	d.mu.Lock()
	d.lastSeen = time.Now()
	d.mu.Unlock()
}

// Hub manages WebSocket connections from tracking devices
type Hub struct {
	sink PoseSink

	mu      sync.RWMutex
	devices map[string]*Device

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	posesReceived    atomic.Uint64
	rejected         atomic.Uint64
}

// NewHub creates a hub that writes into sink
func NewHub(sink PoseSink) *Hub {
	return &Hub{
		sink:    sink,
		devices: make(map[string]*Device),
	}
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/tracker", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/tracker", websocket.New(h.handleDevice))
	app.Get("/ws/tracker/:id", websocket.New(h.handleDevice))
}

// handleDevice handles a device WebSocket connection
func (h *Hub) handleDevice(c *websocket.Conn) {
	deviceID := c.Params("id")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	device := &Device{
		ID:        deviceID,
		Conn:      c,
		Connected: time.Now(),
		lastSeen:  time.Now(),
	}

	h.mu.Lock()
	if old, ok := h.devices[deviceID]; ok {
		// Same id reconnecting; the old socket is stale
		old.Conn.Close()
	}
	h.devices[deviceID] = device
	count := len(h.devices)
	h.mu.Unlock()

	logger := log.With("device", deviceID)
	logger.Info("tracker connected", "devices", count)

	defer func() {
		h.mu.Lock()
		if h.devices[deviceID] == device {
			delete(h.devices, deviceID)
		}
		remaining := len(h.devices)
		h.mu.Unlock()

		if remaining == 0 {
			h.sink.Clear()
		}
		logger.Info("tracker disconnected", "devices", remaining)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			logger.Debug("tracker read ended", "error", err)
			return
		}

		device.touch()
		h.messagesReceived.Add(1)
		h.handleMessage(device, data)
	}
}

// handleMessage processes an incoming message from a device
func (h *Hub) handleMessage(device *Device, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.reject(device, "%v", err)
		return
	}

	switch msg.Type {
	case protocol.TypePose:
		p, err := msg.GetPoseData()
		if err != nil {
			h.reject(device, "bad pose: %v", err)
			return
		}
		if !finite(p) {
			h.reject(device, "pose is not finite")
			return
		}
		h.posesReceived.Add(1)
		device.mu.Lock()
		device.poses++
		device.mu.Unlock()
		h.sink.SetPose(p.Pose())

	case protocol.TypeTrackingState:
		state, err := msg.GetTrackingState()
		if err != nil {
			h.reject(device, "%v", err)
			return
		}
		device.mu.Lock()
		changed := device.state != state
		device.state = state
		device.mu.Unlock()
		if changed {
			log.Info("tracking state", "device", device.ID, "state", state)
		}
		h.sink.SetState(state)

	case protocol.TypePing:
		h.SendPong(device.ID, msg.Timestamp)

	case protocol.TypePong:
		// Keepalive only

	default:
		h.reject(device, "unknown message type %q", msg.Type)
	}
}

func (h *Hub) reject(device *Device, format string, args ...any) {
	h.rejected.Add(1)
	msg, err := protocol.NewErrorMessage(format, args...)
	if err != nil {
		return
	}
	log.Debug("tracker message rejected", "device", device.ID, "reason", string(msg.Data))
	h.messagesSent.Add(1)
	device.Send(msg)
}

func finite(p *protocol.PoseData) bool {
	for _, f := range []float64{p.Position.X, p.Position.Y, p.Position.Z, p.Forward.X, p.Forward.Y, p.Forward.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// SendPong sends a pong response to a device
func (h *Hub) SendPong(deviceID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToDevice(deviceID, msg)
}

// sendToDevice sends a message to a specific device
func (h *Hub) sendToDevice(deviceID string, msg *protocol.Message) error {
	h.mu.RLock()
	device, ok := h.devices[deviceID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "device not connected")
	}

	h.messagesSent.Add(1)
	return device.Send(msg)
}

// DeviceCount returns the number of connected devices
func (h *Hub) DeviceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}

// GetDevice returns a device connection by ID
func (h *Hub) GetDevice(deviceID string) *Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.devices[deviceID]
}

// Stats contains hub statistics
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	PosesReceived    uint64 `json:"poses_received"`
	Rejected         uint64 `json:"rejected"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		DeviceCount:      h.DeviceCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		PosesReceived:    h.posesReceived.Load(),
		Rejected:         h.rejected.Load(),
	}
}

// DeviceInfo contains info about a connected device
type DeviceInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	State     string    `json:"state"`
	Poses     uint64    `json:"poses"`
}

// GetDeviceInfos returns info about all connected devices
func (h *Hub) GetDeviceInfos() []DeviceInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(h.devices))
	for _, d := range h.devices {
		d.mu.Lock()
		infos = append(infos, DeviceInfo{
			ID:        d.ID,
			Connected: d.Connected,
			LastSeen:  d.lastSeen,
			State:     d.state.String(),
			Poses:     d.poses,
		})
		d.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for device inspection
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	trackers := api.Group("/trackers")

	trackers.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"trackers": h.GetDeviceInfos(),
			"count":    h.DeviceCount(),
		})
	})

	trackers.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
