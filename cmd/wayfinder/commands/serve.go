package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/navigator"
	"github.com/teslashibe/go-wayfinder/pkg/nodes"
	"github.com/teslashibe/go-wayfinder/pkg/planner"
	"github.com/teslashibe/go-wayfinder/pkg/pose"
	"github.com/teslashibe/go-wayfinder/pkg/web"
)

type serveFlags struct {
	port  string
	nodes string
	debug bool
	watch bool
	keep  bool
}

func newServeCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the guidance server",
		Long: `Loads the scene, then serves the host bridge (/api, /ws/bridge) and the
tracker endpoint (/ws/tracker) until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, &cfg, f)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&f.port, "port", "p", config.DefaultPort, "HTTP port")
	cmd.Flags().StringVarP(&f.nodes, "nodes", "n", config.DefaultNodesFile, "Scene file with the navigation nodes")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Log every HTTP request")
	cmd.Flags().BoolVar(&f.watch, "watch", true, "Reload the scene when the file changes")
	cmd.Flags().BoolVar(&f.keep, "keep-calibration", false, "Keep the calibration across stop_navigation")
	return cmd
}

// applyServeFlags overrides cfg with the flags the user actually set.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, f serveFlags) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("nodes") {
		cfg.NodesFile = f.nodes
	}
	if flags.Changed("debug") {
		cfg.Debug = f.debug
	}
	if flags.Changed("watch") {
		cfg.Watch = f.watch
	}
	if flags.Changed("keep-calibration") {
		cfg.Navigation.KeepCalibrationOnStop = f.keep
	}
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	out := cmd.OutOrStdout()

	loaded, err := nodes.Load(cfg.NodesFile)
	if err != nil {
		return err
	}
	reg := nodes.NewRegistry()
	reg.SetNodes(loaded)
	for _, w := range reg.Refresh() {
		warning(out, "%v", w)
	}

	plan := planner.NewWaypointPlanner(reg)
	plan.SnapRadius = cfg.Navigation.SnapRadius

	feed := pose.NewFeed()
	nav := navigator.New(cfg.Navigator(), reg, plan, feed)
	srv := web.NewServer(web.Options{Port: cfg.Port, Debug: cfg.Debug}, nav, reg, feed)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return nav.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.Watch {
		watcher, err := nodes.NewWatcher(cfg.NodesFile, reg)
		if err != nil {
			warning(out, "scene watcher disabled: %v", err)
		} else {
			watcher.OnLoad(func(count int, warnings []error) {
				log.Info("scene applied", "nodes", count, "warnings", len(warnings))
			})
			g.Go(func() error { return watcher.Run(ctx) })
		}
	}

	success(out, "%d nodes loaded from %s", len(loaded), cfg.NodesFile)
	fmt.Fprintf(out, "  Bridge:  http://localhost:%s/api/state  ws://localhost:%s/ws/bridge\n", cfg.Port, cfg.Port)
	fmt.Fprintf(out, "  Tracker: ws://localhost:%s/ws/tracker/<device>\n", cfg.Port)

	if err := g.Wait(); err != nil {
		return err
	}
	success(out, "stopped")
	return nil
}
