package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-wayfinder/pkg/nodes"
)

func newNodesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "nodes [scene-file]",
		Short: "List the nodes of a scene file",
		Long: `Parses a scene file, prints its navigation nodes and reports id or
name collisions. The first node registered under a key wins.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.NodesFile
			if len(args) == 1 {
				path = args[0]
			}
			return runNodes(cmd, path, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the nodes as JSON")
	return cmd
}

func runNodes(cmd *cobra.Command, path string, asJSON bool) error {
	out := cmd.OutOrStdout()

	loaded, err := nodes.Load(path)
	if err != nil {
		return err
	}
	reg := nodes.NewRegistry()
	reg.SetNodes(loaded)
	warnings := reg.Refresh()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reg.All())
	}

	bold.Fprintf(out, "%s\n", path)
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPOSITION\tFORWARD\tWAYPOINTS")
	for _, n := range reg.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", n.ID, n.Name, n.Position, n.Forward, len(n.Waypoints))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, w := range warnings {
		warning(out, "%v", w)
	}
	success(out, "%d nodes, %d warnings", len(loaded), len(warnings))
	return nil
}
