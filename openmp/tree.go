package openmp

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// RenderLevelTree renders the fork tree rooted at root - every nested
// parallel region it or its descendants ever opened, in the order they
// forked - as an indented tree, one line per Level. It is meant for
// debugging a run's nesting structure (e.g. dumped alongside a trace),
// not for anything the runtime itself consults.
func RenderLevelTree(root *Level) string {
	tree := treeprint.New()
	tree.SetValue(levelLabel(root))
	addChildren(tree, root)
	return tree.String()
}

func addChildren(node treeprint.Tree, level *Level) {
	for _, child := range level.Children {
		branch := node.AddBranch(levelLabel(child))
		addChildren(branch, child)
	}
}

func levelLabel(l *Level) string {
	state := "active"
	if !l.Active() {
		state = "collapsed"
	}
	return fmt.Sprintf("depth=%d threads=%d %s", l.Depth, l.NumThreads, state)
}
