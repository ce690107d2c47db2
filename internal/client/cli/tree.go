package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/model"
)

// ShowTree prints the matrix rooted at the signed-in member, or the whole
// network when signed out.
func (a *App) ShowTree(ctx context.Context) error {
	rootID := common.RootMemberID
	if m := a.currentMember(); m != nil {
		rootID = m.ID
	}

	node, err := a.engine.Tree(ctx, rootID)
	if err != nil {
		fmt.Println("Could not build the tree:", err)
		return err
	}
	renderTree(os.Stdout, node, 0)
	return nil
}

// renderTree prints one node per line, indented by depth.
func renderTree(w io.Writer, node *model.MatrixNode, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s- %s (level %d, sponsor %s, downline %d, utilities %d",
		indent, node.Username, node.Level, node.SponsorUsername,
		node.TotalDownline, node.TotalUtilities)
	if n := len(node.Utilities); n > 0 {
		fmt.Fprintf(w, ", own %d", n)
	}
	fmt.Fprintln(w, ")")
	for _, child := range node.Children {
		renderTree(w, child, depth+1)
	}
}

// ShowStats prints the aggregated network counters.
func (a *App) ShowStats(ctx context.Context) error {
	stats, err := a.engine.Stats(ctx)
	if err != nil {
		fmt.Println("Could not compute stats:", err)
		return err
	}
	fmt.Printf("Members: %d\nDepth: %d\nUtilities: %d\nNext open slot under: %s\n",
		stats.TotalMembers, stats.MatrixDepth, stats.TotalUtilities, stats.NextOpenSlot)
	return nil
}

// Analyze asks the AI collaborator for a narrative over the current tree.
func (a *App) Analyze(ctx context.Context) error {
	rootID := common.RootMemberID
	if m := a.currentMember(); m != nil {
		rootID = m.ID
	}

	node, err := a.engine.Tree(ctx, rootID)
	if err != nil {
		fmt.Println("Could not build the tree:", err)
		return err
	}

	report, err := a.analyzer.Summarize(ctx, node)
	if err != nil {
		fmt.Println("Analysis unavailable:", err)
		return err
	}
	fmt.Println(report)
	return nil
}
