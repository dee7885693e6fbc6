// Package web serves the host bridge: a small HTTP API plus a websocket
// that carries navigation commands in and events out.
package web

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/calibration"
	"github.com/teslashibe/go-wayfinder/pkg/guidance"
	"github.com/teslashibe/go-wayfinder/pkg/hub"
	"github.com/teslashibe/go-wayfinder/pkg/navigation"
	"github.com/teslashibe/go-wayfinder/pkg/nodes"
	"github.com/teslashibe/go-wayfinder/pkg/pose"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/tracker"
)

const shutdownTimeout = 5 * time.Second

// Controller accepts host commands. *navigator.Navigator implements it.
type Controller interface {
	Submit(cmd protocol.Command) error
	Do(ctx context.Context, cmd protocol.Command) (guidance.State, error)
	Snapshot() guidance.State
	Session() (navigation.SessionInfo, bool)
	Calibration() calibration.Frame
	Parked() int
}

// NodeLister lists the loaded navigation points.
type NodeLister interface {
	All() []*nodes.Node
	Count() int
}

// Options configures the server.
type Options struct {
	Port  string
	Debug bool // request logging
}

// Server is the host bridge server
type Server struct {
	app  *fiber.App
	port string

	ctrl  Controller
	nodes NodeLister
	feed  *pose.Feed

	// Hub for bridge websocket clients
	bridge   *hub.Hub
	trackers *tracker.Hub
}

// NewServer wires the HTTP routes, the bridge websocket and the tracker
// endpoint. Tracker poses are written into feed, and every time the feed
// becomes ready an ar_ready event is broadcast to bridge clients.
func NewServer(opts Options, ctrl Controller, list NodeLister, feed *pose.Feed) *Server {
	s := &Server{
		port:     opts.Port,
		ctrl:     ctrl,
		nodes:    list,
		feed:     feed,
		bridge:   hub.New("bridge"),
		trackers: tracker.NewHub(feed),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Wayfinder",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if opts.Debug {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/commands", s.handleCommand)
	api.Get("/nodes", s.handleNodes)
	api.Get("/session", s.handleSession)
	s.trackers.RegisterAPIRoutes(api)

	// WebSocket routes
	app.Use("/ws/bridge", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/bridge", websocket.New(s.handleBridgeWS))
	s.trackers.RegisterRoutes(app)

	feed.OnReady(s.announceReady)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Bridge returns the hub that bridge clients are registered with.
func (s *Server) Bridge() *hub.Hub {
	return s.bridge
}

// Trackers returns the tracker device hub.
func (s *Server) Trackers() *tracker.Hub {
	return s.trackers
}

// Run listens on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts the
// app down and stops the bridge hub.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	go s.bridge.Run(hubCtx)
	defer func() {
		stopHub()
		<-s.bridge.Done()
	}()

	log.Info("web server listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		err := s.app.ShutdownWithTimeout(shutdownTimeout)
		<-errc
		log.Info("web server stopped")
		return err
	}
}

func (s *Server) announceReady() {
	if err := s.bridge.BroadcastJSON(protocol.ARReady()); err != nil {
		log.Warn("ar_ready broadcast failed", "error", err)
		return
	}
	log.Info("tracking ready, ar_ready sent", "clients", s.bridge.ClientCount())
}
