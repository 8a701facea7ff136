// Package markdown adapts goldmark to the document tree: it parses source
// into tree.Node values and serializes them back to HTML.
//
// Serialization is not byte-identical to the source; only the structure of
// the content survives a parse/serialize round trip.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/starford/brief/internal/tree"
)

// block ties a converted node to the goldmark node and the source it was
// parsed from, so the goldmark renderer can serialize it later.
type block struct {
	node ast.Node
	src  []byte
}

// Engine parses and serializes Markdown. It is safe for concurrent use.
type Engine struct {
	md goldmark.Markdown
}

// New builds an engine with the named goldmark extensions. An empty list
// selects GFM, linkify and task lists; unknown names are ignored.
func New(extensions ...string) *Engine {
	opts := []goldmark.Option{
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	}
	if exts := collectExtensions(extensions); len(exts) > 0 {
		opts = append(opts, goldmark.WithExtensions(exts...))
	}
	return &Engine{md: goldmark.New(opts...)}
}

var extensionRegistry = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"tables":        extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"autolink":      extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
	"typographer":   extension.Typographer,
}

// Extensions returns the extension names New accepts, sorted.
func Extensions() []string {
	out := make([]string, 0, len(extensionRegistry))
	for name := range extensionRegistry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectExtensions(names []string) []goldmark.Extender {
	if len(names) == 0 {
		return []goldmark.Extender{extension.GFM, extension.Linkify, extension.TaskList}
	}
	var out []goldmark.Extender
	seen := map[string]struct{}{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		ext, ok := extensionRegistry[key]
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ext)
	}
	return out
}

// Parse converts src into a tree rooted at a tree.TypeRoot node. A leading
// front-matter block becomes a tree.TypeYAML child holding the raw YAML.
func (e *Engine) Parse(src []byte) (*tree.Node, error) {
	root := tree.New(tree.TypeRoot)

	raw, body, ok := splitFrontMatter(src)
	if ok {
		fm := tree.New(tree.TypeYAML)
		fm.Value = raw
		root.Children = append(root.Children, fm)
	}

	doc := e.md.Parser().Parse(text.NewReader(body))
	if doc == nil || doc.Kind() != ast.KindDocument {
		return nil, fmt.Errorf("markdown: parser returned no document")
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		root.Children = append(root.Children, convert(n, body))
	}
	return root, nil
}

// convert mirrors n and its descendants as tree nodes. Every node keeps its
// goldmark counterpart in Ext; rendering a node renders that subtree.
func convert(n ast.Node, src []byte) *tree.Node {
	out := tree.New(typeName(n))
	out.Value = nodeText(n, src)
	out.Ext = block{node: n, src: src}
	if h, ok := n.(*ast.Heading); ok {
		out.Depth = h.Level
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out.Children = append(out.Children, convert(c, src))
	}
	return out
}

func nodeText(n ast.Node, src []byte) string {
	switch t := n.(type) {
	case *ast.Text:
		return string(t.Segment.Value(src))
	case *ast.String:
		return string(t.Value)
	}
	return extractText(n, src)
}

func typeName(n ast.Node) string {
	switch n.Kind() {
	case ast.KindHeading:
		return tree.TypeHeading
	case ast.KindParagraph, ast.KindTextBlock:
		return tree.TypeParagraph
	case ast.KindText, ast.KindString:
		return tree.TypeText
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		return "code"
	case ast.KindCodeSpan:
		return "inlineCode"
	case ast.KindThematicBreak:
		return "thematicBreak"
	case ast.KindHTMLBlock, ast.KindRawHTML:
		return "html"
	case ast.KindAutoLink:
		return "link"
	case ast.KindEmphasis:
		if e, ok := n.(*ast.Emphasis); ok && e.Level >= 2 {
			return "strong"
		}
		return "emphasis"
	}
	name := n.Kind().String()
	return strings.ToLower(name[:1]) + name[1:]
}

// extractText returns the plain text content of a goldmark node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			if s := extractText(c, src); s != "" {
				if buf.Len() > 0 && c.Type() == ast.TypeBlock {
					buf.WriteByte('\n')
				}
				buf.WriteString(s)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// Serialize renders the tree as HTML. Output is deterministic for a given
// tree.
func (e *Engine) Serialize(root *tree.Node) (string, error) {
	if root == nil {
		return "", tree.ErrNoTree
	}
	var buf bytes.Buffer
	if err := e.write(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SerializeNodes renders a sibling list, e.g. the body of one section.
func (e *Engine) SerializeNodes(nodes ...*tree.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := e.write(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func (e *Engine) write(buf *bytes.Buffer, n *tree.Node) error {
	if b, ok := n.Ext.(block); ok {
		if h, isHeading := b.node.(*ast.Heading); isHeading && n.Depth > 0 {
			h.Level = n.Depth
		}
		if err := e.md.Renderer().Render(buf, b.src, b.node); err != nil {
			return fmt.Errorf("markdown: render %s: %w", n.Type, err)
		}
		return nil
	}

	if n.Type == tree.TypeYAML {
		buf.WriteString(`<pre class="front-matter"><code>`)
		buf.WriteString(html.EscapeString(n.Value))
		buf.WriteString("</code></pre>\n")
		return nil
	}

	name := n.Data.HTMLName
	if name != "" {
		buf.WriteString("<" + name)
		keys := make([]string, 0, len(n.Data.HTMLAttributes))
		for k := range n.Data.HTMLAttributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(buf, ` %s="%s"`, k, html.EscapeString(n.Data.HTMLAttributes[k]))
		}
		buf.WriteString(">\n")
	}
	for _, c := range n.Children {
		if err := e.write(buf, c); err != nil {
			return err
		}
	}
	if name != "" {
		buf.WriteString("</" + name + ">\n")
	}
	return nil
}
