package plan

import "github.com/xlab/treeprint"

// RenderTree pretty-prints a plan tree for the per-SQL text report.
func RenderTree(root *Node) string {
	if root == nil {
		return ""
	}
	tree := treeprint.NewWithRoot(root.Name)
	for _, child := range root.Children {
		addBranch(tree, child)
	}
	return tree.String()
}

func addBranch(parent treeprint.Tree, node *Node) {
	if len(node.Children) == 0 {
		parent.AddNode(node.Name)
		return
	}
	branch := parent.AddBranch(node.Name)
	for _, child := range node.Children {
		addBranch(branch, child)
	}
}
