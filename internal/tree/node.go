// Package tree defines the document tree and the ordered transform passes
// that turn a freshly parsed Markdown tree into a render-ready one.
package tree

// Node types produced by the markdown package and the built-in passes.
const (
	TypeRoot      = "root"
	TypeHeading   = "heading"
	TypeParagraph = "paragraph"
	TypeText      = "text"
	TypeYAML      = "yaml"
	TypeContainer = "container"
)

// NoHeading marks a node that has no owning heading, or a node that is not
// a heading when used as HeadingIndex.
const NoHeading = -1

// Data carries rendering hints for synthetic nodes.
type Data struct {
	HTMLName       string
	HTMLAttributes map[string]string
}

// Node is one element of a document tree. Order of Children is significant.
type Node struct {
	Type     string
	Depth    int    // heading level, 1-6
	Value    string // plain text, or raw metadata for TypeYAML
	Children []*Node
	Data     Data

	// HeadingIndex is the ordinal of a top-level heading among its siblings.
	HeadingIndex int
	// ParentHeading is the HeadingIndex of the nearest preceding heading.
	ParentHeading int

	// Ext is an opaque payload owned by the parser that produced the node.
	Ext any
}

// New returns a node of the given type with no heading annotations.
func New(typ string, children ...*Node) *Node {
	return &Node{
		Type:          typ,
		Children:      children,
		HeadingIndex:  NoHeading,
		ParentHeading: NoHeading,
	}
}

// IsHeading reports whether n is a heading.
func (n *Node) IsHeading() bool {
	return n != nil && n.Type == TypeHeading
}

// HasParentHeading reports whether n was stamped with an owning heading.
func (n *Node) HasParentHeading() bool {
	return n.ParentHeading != NoHeading
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
