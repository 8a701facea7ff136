// Package content turns Markdown documents into typed models: Document owns
// one source file's parse/transform/render lifecycle, Model is a
// schema-driven view over a Document, and Briefcase indexes models for
// relationship resolution.
package content

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/brief/internal/apperr"
	"github.com/starford/brief/internal/checksum"
	"github.com/starford/brief/internal/markdown"
	"github.com/starford/brief/internal/models"
	"github.com/starford/brief/internal/tree"
)

// Hook identifies a lifecycle checkpoint.
type Hook string

// Lifecycle checkpoints, in the order they run.
const (
	HookDidParse   Hook = "documentDidParse"
	HookWillRender Hook = "documentWillRender"
	HookDidRender  Hook = "documentDidRender"
)

// Hooks holds one optional callback per lifecycle checkpoint.
type Hooks struct {
	DidParse   func(doc *Document, ast *tree.Node)
	WillRender func(doc *Document, ast *tree.Node)
	DidRender  func(doc *Document, html string)
}

// Reader reads source files. storage.FS satisfies it.
type Reader interface {
	Read(path string) ([]byte, error)
	Stat(path string) (models.DocumentMeta, error)
}

// Options configures document construction.
type Options struct {
	Reader Reader
	Engine *markdown.Engine
	Hooks  Hooks
	// Passes run after the built-in parse passes and before DidParse.
	Passes       []tree.Pass
	WrapperClass string
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Reader == nil {
		o.Reader = osReader{}
	}
	if o.Engine == nil {
		o.Engine = markdown.New()
	}
	if o.WrapperClass == "" {
		o.WrapperClass = tree.DefaultWrapperClass
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Document is one parsed, transformed and rendered source file.
type Document struct {
	Path           string
	Content        []byte
	Data           map[string]any
	Type           string
	Checksum       string
	LastModifiedAt time.Time
	// ID is assigned by the model built from this document.
	ID string

	opts      Options
	ast       *tree.Node
	html      string
	rendered  bool
	briefcase *Briefcase
}

// Create reads the file at path and runs the full pipeline. Read failures
// wrap apperr.ErrIO; parse and transform failures wrap apperr.ErrParse.
func Create(path string, opts Options) (*Document, error) {
	opts = opts.withDefaults()
	raw, err := opts.Reader.Read(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w: %w", path, apperr.ErrIO, err)
	}
	meta, err := opts.Reader.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("content: stat %s: %w: %w", path, apperr.ErrIO, err)
	}
	return build(path, raw, meta.UpdatedAt, opts)
}

// Parse runs the full pipeline over in-memory content.
func Parse(path string, raw []byte, opts Options) (*Document, error) {
	return build(path, raw, time.Now(), opts.withDefaults())
}

func build(path string, raw []byte, modified time.Time, opts Options) (*Document, error) {
	d := &Document{
		Path:           path,
		Content:        raw,
		Data:           map[string]any{},
		Checksum:       checksum.Sum(raw),
		LastModifiedAt: modified,
		opts:           opts,
	}
	if err := d.process(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) process() error {
	ast, err := d.parse()
	if err != nil {
		return err
	}
	d.ast = ast
	d.RunHook(HookWillRender)

	ast, err = tree.NewProcessor(d.opts.Logger).Run(d.ast,
		tree.HeadingAdjacency(),
		tree.Wrap(d.opts.WrapperClass),
	)
	if err != nil {
		return fmt.Errorf("content: structure %s: %w: %w", d.Path, apperr.ErrParse, err)
	}
	d.ast = ast

	html, err := d.opts.Engine.Serialize(d.ast)
	if err != nil {
		return fmt.Errorf("content: render %s: %w", d.Path, err)
	}
	d.html = html
	d.rendered = true
	d.RunHook(HookDidRender)

	d.opts.Logger.Debug("content: document rendered",
		slog.String("path", d.Path),
		slog.String("type", d.Type),
		slog.Int("bytes", len(html)))
	return nil
}

func (d *Document) parse() (*tree.Node, error) {
	root, err := d.opts.Engine.Parse(d.Content)
	if err != nil {
		return nil, fmt.Errorf("content: parse %s: %w: %w", d.Path, apperr.ErrParse, err)
	}

	data := map[string]any{}
	passes := []tree.Pass{
		tree.FrontMatter(markdown.DecodeFrontMatter, func(m map[string]any) { data = m }),
		tree.SqueezeParagraphs(),
		tree.NormalizeHeadings(),
		tree.Structure(),
	}
	passes = append(passes, d.opts.Passes...)

	root, err = tree.NewProcessor(d.opts.Logger).Run(root, passes...)
	if err != nil {
		return nil, fmt.Errorf("content: transform %s: %w: %w", d.Path, apperr.ErrParse, err)
	}

	d.Data = data
	if t, ok := data["type"].(string); ok {
		d.Type = t
	}
	d.ast = root
	d.RunHook(HookDidParse)
	return root, nil
}

// String returns the document path.
func (d *Document) String() string {
	return d.Path
}

// Render returns the HTML for the document. Documents are rendered on
// construction, so repeated calls return the cached output.
func (d *Document) Render() (string, error) {
	if d.rendered {
		return d.html, nil
	}
	if err := d.process(); err != nil {
		return "", err
	}
	return d.html, nil
}

// Rendered ensures the document is rendered and returns it.
func (d *Document) Rendered() (*Document, error) {
	if _, err := d.Render(); err != nil {
		return nil, err
	}
	return d, nil
}

// AST returns the document tree.
func (d *Document) AST() *tree.Node {
	return d.ast
}

// Children returns the top-level content nodes, inside the root wrapper.
func (d *Document) Children() []*tree.Node {
	if d.ast == nil {
		return nil
	}
	if tree.IsWrapped(d.ast) {
		return d.ast.Children[0].Children
	}
	return d.ast.Children
}

// HeadingNodes returns the top-level headings in document order.
func (d *Document) HeadingNodes() []*tree.Node {
	var out []*tree.Node
	for _, n := range d.Children() {
		if n.IsHeading() {
			out = append(out, n)
		}
	}
	return out
}

// Section is a heading and the body nodes it owns.
type Section struct {
	Heading *tree.Node
	Nodes   []*tree.Node
}

// Title returns the plain heading text.
func (s Section) Title() string {
	if s.Heading == nil {
		return ""
	}
	return s.Heading.Value
}

// SectionNodes pairs each heading with the following siblings stamped with
// its index, up to the next heading.
func (d *Document) SectionNodes() []Section {
	children := d.Children()
	var out []Section
	for i, n := range children {
		if !n.IsHeading() {
			continue
		}
		s := Section{Heading: n}
		for _, c := range children[i+1:] {
			if c.IsHeading() {
				break
			}
			if c.ParentHeading == n.HeadingIndex {
				s.Nodes = append(s.Nodes, c)
			}
		}
		out = append(out, s)
	}
	return out
}

// SectionHTML renders the body of a section.
func (d *Document) SectionHTML(s Section) (string, error) {
	return d.opts.Engine.SerializeNodes(s.Nodes...)
}

// Text returns the plain text of the top-level content, one block per
// paragraph.
func (d *Document) Text() string {
	var parts []string
	for _, n := range d.Children() {
		if n.Value != "" {
			parts = append(parts, n.Value)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Visit calls fn for every node of type typ, depth-first.
func (d *Document) Visit(typ string, fn func(*tree.Node)) {
	tree.Walk(d.ast, func(n *tree.Node) bool {
		if n.Type == typ {
			fn(n)
		}
		return true
	})
}

// RunHook invokes the callback configured for h. Unset hooks are a no-op.
func (d *Document) RunHook(h Hook) {
	hooks := d.opts.Hooks
	switch h {
	case HookDidParse:
		if hooks.DidParse != nil {
			hooks.DidParse(d, d.ast)
		}
	case HookWillRender:
		if hooks.WillRender != nil {
			hooks.WillRender(d, d.ast)
		}
	case HookDidRender:
		if hooks.DidRender != nil {
			hooks.DidRender(d, d.html)
		}
	}
}

// ToModel builds a model over this document.
func (d *Document) ToModel(catalog Catalog, opts ModelOptions) (*Model, error) {
	return FromDocument(d, catalog, opts)
}

// Briefcase returns the collection this document's model was added to.
func (d *Document) Briefcase() *Briefcase {
	return d.briefcase
}

// osReader reads from the local file system.
type osReader struct{}

func (osReader) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (osReader) Stat(path string) (models.DocumentMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.DocumentMeta{}, err
	}
	if info.IsDir() {
		return models.DocumentMeta{}, errors.New("is a directory")
	}
	return models.DocumentMeta{Path: path, UpdatedAt: info.ModTime()}, nil
}
