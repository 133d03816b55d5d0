package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/graph"
)

// newTreeCmd creates the tree command.
func newTreeCmd(provider *AppProvider) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "tree <epic-id>",
		Short: "Show an epic's hierarchy as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			root, err := graph.BuildTree(cmd.Context(), app.Store, args[0], depth)
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(root)
			}
			printTree(app, root)
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", graph.DefaultTreeDepth, "Maximum depth to expand")

	return cmd
}

func printTree(app *App, node *graph.TreeNode) {
	indent := strings.Repeat("  ", node.Depth)
	fmt.Fprintf(app.Out, "%s%-12s [%s] %s\n", indent, node.Issue.ID, node.Issue.Status, node.Issue.Title)
	if node.Truncated {
		fmt.Fprintf(app.Out, "%s  ...\n", indent)
		return
	}
	for _, child := range node.Children {
		printTree(app, child)
	}
}
