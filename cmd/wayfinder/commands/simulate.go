package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-wayfinder/internal/httpc"
	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/geom"
	"github.com/teslashibe/go-wayfinder/pkg/guidance"
	"github.com/teslashibe/go-wayfinder/pkg/nodes"
	"github.com/teslashibe/go-wayfinder/pkg/pose"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
)

// eyeHeight is the camera height used for synthetic poses.
const eyeHeight = 1.5

type simulateFlags struct {
	server string
	from   string
	to     string
	speed  float64
	rate   float64
	poll   time.Duration
}

func newSimulateCmd() *cobra.Command {
	var f simulateFlags

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Walk a synthetic user through a running server",
		Long: `Connects to a running server as both a tracking device and a host,
calibrates at --from, starts navigation to --to and walks the route at
--speed while printing every change of the guidance state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			if f.to == "" {
				return errors.New("--to is required")
			}
			if f.speed <= 0 || f.rate <= 0 {
				return errors.New("--speed and --rate must be positive")
			}
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVarP(&f.server, "server", "s", "localhost:8080", "Server host:port")
	cmd.Flags().StringVar(&f.from, "from", "", "Node to calibrate at and start from (default: first node)")
	cmd.Flags().StringVar(&f.to, "to", "", "Destination node id or name")
	cmd.Flags().Float64Var(&f.speed, "speed", 1.4, "Walking speed in m/s")
	cmd.Flags().Float64Var(&f.rate, "rate", 10, "Poses per second")
	cmd.Flags().DurationVar(&f.poll, "poll", 250*time.Millisecond, "Guidance state poll interval")
	return cmd
}

type nodeList struct {
	Nodes []*nodes.Node `json:"nodes"`
}

func runSimulate(ctx context.Context, out io.Writer, f simulateFlags) error {
	api := httpc.New("http://"+f.server, 0)

	var list nodeList
	if err := api.GetJSON(ctx, "/api/nodes", &list); err != nil {
		return fmt.Errorf("fetch nodes: %w", err)
	}
	reg := nodes.NewRegistry(list.Nodes...)
	if reg.Count() == 0 {
		return errors.New("server has no nodes")
	}

	start := reg.All()[0]
	if f.from != "" {
		var err error
		if start, err = reg.FindByNameOrID(f.from); err != nil {
			return err
		}
	}
	dest, err := reg.FindByNameOrID(f.to)
	if err != nil {
		return err
	}

	route := geom.Path{start.Position}
	route = append(route, dest.Waypoints...)
	route = append(route, dest.Position)
	cyan.Fprintf(out, "Route %s → %s: %d corners, %.1f m\n", start.ID, dest.ID, len(route), route.FlatLengthFrom(0))

	tracker, err := dial(ctx, f.server, "/ws/tracker/simulator")
	if err != nil {
		return err
	}
	defer tracker.Close()

	bridge, err := dial(ctx, f.server, "/ws/bridge")
	if err != nil {
		return err
	}
	defer bridge.Close()

	ready := make(chan struct{})
	states := make(chan guidance.State, 16)
	done := make(chan struct{})
	defer close(done)
	go readBridge(bridge, ready, states, done)

	// Stand on the start node facing its forward so calibration is exact.
	facing := start.Forward
	if err := sendTracking(tracker, pose.StateTracking); err != nil {
		return err
	}
	if err := sendPose(tracker, start.Position, facing); err != nil {
		return err
	}

	select {
	case <-ready:
		success(out, "tracking ready")
	case <-time.After(5 * time.Second):
		warning(out, "no ar_ready from server, continuing")
	case <-ctx.Done():
		return nil
	}

	b := &bridgeWriter{conn: bridge}
	if err := b.send(protocol.Calibrate(start.ID)); err != nil {
		return err
	}
	if err := b.send(protocol.StartNavigation(start.ID, dest.ID)); err != nil {
		return err
	}

	walker := newWalker(route, f.speed)
	poseTick := time.NewTicker(time.Duration(float64(time.Second) / f.rate))
	defer poseTick.Stop()
	pollTick := time.NewTicker(f.poll)
	defer pollTick.Stop()

	var last guidance.State
	begin := time.Now()
	for {
		select {
		case <-ctx.Done():
			return b.send(protocol.StopNavigation())

		case now := <-poseTick.C:
			pos, dir := walker.at(now.Sub(begin).Seconds())
			if !dir.IsZero() {
				facing = dir
			}
			if err := sendPose(tracker, pos, facing); err != nil {
				return err
			}

		case <-pollTick.C:
			if err := b.send(protocol.GetNavigationState()); err != nil {
				return err
			}

		case st, ok := <-states:
			if !ok {
				return errors.New("bridge closed")
			}
			if st == last {
				continue
			}
			last = st
			printState(out, time.Since(begin), st)
			if st.Arrived {
				success(out, "arrived at %s", dest.ID)
				return b.send(protocol.StopNavigation())
			}
		}
	}
}

func printState(w io.Writer, elapsed time.Duration, st guidance.State) {
	stamp := fmt.Sprintf("[%5.1fs]", elapsed.Seconds())
	dist := "--"
	if st.Distance >= 0 {
		dist = fmt.Sprintf("%.1f m", st.Distance)
	}
	fmt.Fprintf(w, "%s %-34s %s\n", stamp, st.Instruction, bold.Sprint(dist))
}

func dial(ctx context.Context, server, path string) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: server, Path: path}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return conn, nil
}

func sendTracking(conn *websocket.Conn, state pose.TrackingState) error {
	msg, err := protocol.NewTrackingStateMessage(state)
	if err != nil {
		return err
	}
	return writeMessage(conn, msg)
}

func sendPose(conn *websocket.Conn, pos, forward geom.Vec3) error {
	msg, err := protocol.NewPoseMessage(pose.Pose{
		Position: geom.V(pos.X, eyeHeight, pos.Z),
		Forward:  forward,
	})
	if err != nil {
		return err
	}
	return writeMessage(conn, msg)
}

func writeMessage(conn *websocket.Conn, msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// bridgeWriter serialises writes to the bridge connection.
type bridgeWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (b *bridgeWriter) send(cmd protocol.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// readBridge splits bridge frames into the ar_ready event and state replies.
// states is closed when the connection ends.
func readBridge(conn *websocket.Conn, ready chan<- struct{}, states chan<- guidance.State, done <-chan struct{}) {
	defer close(states)
	var once sync.Once
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("bridge read ended", "error", err)
			return
		}
		if strings.Contains(string(data), `"eventType"`) {
			var ev protocol.Event
			if json.Unmarshal(data, &ev) == nil && ev.EventType == protocol.EventARReady {
				once.Do(func() { close(ready) })
			}
			continue
		}
		var st guidance.State
		if err := json.Unmarshal(data, &st); err != nil {
			log.Debug("unexpected bridge frame", "data", string(data))
			continue
		}
		select {
		case states <- st:
		case <-done:
			return
		}
	}
}

// walker moves along a route at constant speed.
type walker struct {
	route geom.Path
	speed float64
}

func newWalker(route geom.Path, speed float64) *walker {
	return &walker{route: route, speed: speed}
}

// at returns the position after t seconds and the direction of travel.
// Past the end it stays on the last corner.
func (w *walker) at(t float64) (geom.Vec3, geom.Vec3) {
	left := t * w.speed
	for i := 0; i+1 < len(w.route); i++ {
		a, b := w.route[i].Flat(), w.route[i+1].Flat()
		seg := b.Sub(a)
		l := seg.Length()
		if l == 0 {
			continue
		}
		dir := seg.Scale(1 / l)
		if left <= l {
			return a.Add(dir.Scale(left)), dir
		}
		left -= l
	}
	return w.route.Last().Flat(), geom.Vec3{}
}
