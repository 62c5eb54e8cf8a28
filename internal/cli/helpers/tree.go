package helpers

import (
	"strings"
)

// TreeNode represents a node in a tree structure for rendering.
type TreeNode interface {
	GetName() string
	GetChildren() []TreeNode
}

// Node is a plain TreeNode.
type Node struct {
	Name     string
	Children []TreeNode
}

func (n *Node) GetName() string         { return n.Name }
func (n *Node) GetChildren() []TreeNode { return n.Children }

// Add appends a child and returns it.
func (n *Node) Add(name string) *Node {
	child := &Node{Name: name}
	n.Children = append(n.Children, child)
	return child
}

// RenderTree renders a forest in ASCII art format. Roots are printed
// without a connector.
func RenderTree(roots []TreeNode) string {
	if len(roots) == 0 {
		return "No tree data available.\n"
	}

	var buf strings.Builder
	for _, root := range roots {
		buf.WriteString(root.GetName())
		buf.WriteString("\n")
		children := root.GetChildren()
		for i, child := range children {
			renderTreeNode(&buf, child, "", i == len(children)-1)
		}
	}
	return buf.String()
}

// renderTreeNode renders a single tree node with proper indentation.
func renderTreeNode(buf *strings.Builder, node TreeNode, prefix string, isLast bool) {
	connector := "├─"
	if isLast {
		connector = "└─"
	}
	buf.WriteString(prefix + connector + " " + node.GetName() + "\n")

	childPrefix := prefix
	if isLast {
		childPrefix += "  "
	} else {
		childPrefix += "│ "
	}

	children := node.GetChildren()
	for i, child := range children {
		renderTreeNode(buf, child, childPrefix, i == len(children)-1)
	}
}
