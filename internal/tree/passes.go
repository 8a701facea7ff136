package tree

import "strings"

// DefaultWrapperClass is the class attribute of the synthetic root wrapper.
const DefaultWrapperClass = "wrapper"

const maxHeadingDepth = 6

// FrontMatter removes a leading metadata block and hands its decoded mapping
// to sink. A block that does not decode to a mapping stays in place.
func FrontMatter(decode func(raw string) (map[string]any, error), sink func(map[string]any)) Pass {
	return NewPass("front-matter", func(root *Node) (*Node, error) {
		if len(root.Children) == 0 || root.Children[0].Type != TypeYAML {
			return root, nil
		}
		data, err := decode(root.Children[0].Value)
		if err != nil {
			return root, nil
		}
		if data == nil {
			data = map[string]any{}
		}
		root.Children = root.Children[1:]
		sink(data)
		return root, nil
	})
}

// SqueezeParagraphs drops top-level paragraphs made only of whitespace text.
// A paragraph holding any other inline content, such as an image, a link or
// raw HTML, is kept.
func SqueezeParagraphs() Pass {
	return NewPass("squeeze-paragraphs", func(root *Node) (*Node, error) {
		kept := root.Children[:0]
		for _, c := range root.Children {
			if isBlankParagraph(c) {
				continue
			}
			kept = append(kept, c)
		}
		root.Children = kept
		return root, nil
	})
}

func isBlankParagraph(n *Node) bool {
	if n.Type != TypeParagraph {
		return false
	}
	if len(n.Children) == 0 {
		return strings.TrimSpace(n.Value) == ""
	}
	for _, c := range n.Children {
		if c.Type != TypeText || strings.TrimSpace(c.Value) != "" {
			return false
		}
	}
	return true
}

// NormalizeHeadings demotes every heading by one level when the document
// has more than one depth-1 heading, leaving at most one title.
func NormalizeHeadings() Pass {
	return NewPass("normalize-headings", func(root *Node) (*Node, error) {
		titles := 0
		for _, c := range root.Children {
			if c.IsHeading() && c.Depth == 1 {
				titles++
			}
		}
		if titles < 2 {
			return root, nil
		}
		for _, c := range root.Children {
			if c.IsHeading() && c.Depth < maxHeadingDepth {
				c.Depth++
			}
		}
		return root, nil
	})
}

// Structure stamps each top-level heading with its ordinal.
func Structure() Pass {
	return NewPass("structure", func(root *Node) (*Node, error) {
		idx := 0
		for _, c := range root.Children {
			if !c.IsHeading() {
				continue
			}
			c.HeadingIndex = idx
			idx++
		}
		return root, nil
	})
}

// HeadingAdjacency stamps every non-heading top-level child with the index
// of the nearest preceding heading, in one walk and without nesting.
func HeadingAdjacency() Pass {
	return NewPass("heading-adjacency", func(root *Node) (*Node, error) {
		cursor := NoHeading
		for _, c := range root.Children {
			if c.IsHeading() {
				cursor = c.HeadingIndex
				continue
			}
			c.ParentHeading = cursor
		}
		return root, nil
	})
}

// Wrap replaces the top-level children with one block-level container
// carrying class. A tree that is already wrapped is returned unchanged.
func Wrap(class string) Pass {
	if class == "" {
		class = DefaultWrapperClass
	}
	return NewPass("wrap", func(root *Node) (*Node, error) {
		if IsWrapped(root) {
			return root, nil
		}
		wrapper := New(TypeContainer, root.Children...)
		wrapper.Data = Data{
			HTMLName:       "div",
			HTMLAttributes: map[string]string{"class": class},
		}
		root.Children = []*Node{wrapper}
		return root, nil
	})
}

// IsWrapped reports whether root has exactly one container child.
func IsWrapped(root *Node) bool {
	return root != nil && len(root.Children) == 1 && root.Children[0].Type == TypeContainer
}
