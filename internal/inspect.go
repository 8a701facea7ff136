package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/starford/brief/internal/content"
)

// Render writes the HTML of the corpus document at path to out. The
// document does not need a model type.
func Render(_ context.Context, path string, out io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.bootstrap(os.Stderr)
	if err != nil {
		return err
	}
	doc, err := content.Create(path, rt.loader.Options())
	if err != nil {
		return err
	}
	html, err := doc.Render()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, html)
	return err
}

type inspectSection struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

type inspectRelation struct {
	Kind   string   `json:"kind"`
	Target string   `json:"target"`
	Paths  []string `json:"paths"`
}

type inspectReport struct {
	Model         *content.Model             `json:"model"`
	Title         string                     `json:"title"`
	Checksum      string                     `json:"checksum"`
	Headings      int                        `json:"headings"`
	Sections      []inspectSection           `json:"sections"`
	Relationships map[string]inspectRelation `json:"relationships"`
}

// Inspect writes a JSON report of the model at path: its attributes,
// matched sections and resolved relationships.
func Inspect(_ context.Context, path string, out io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.bootstrap(os.Stderr)
	if err != nil {
		return err
	}
	m, ok := rt.bc.Get(path)
	if !ok {
		// Not in the briefcase: load it alone to surface the typing error.
		if m, err = rt.loader.LoadModel(path); err != nil {
			return err
		}
	}

	report := inspectReport{
		Model:         m,
		Title:         m.Title(),
		Checksum:      m.Document().Checksum,
		Headings:      len(m.Document().HeadingNodes()),
		Sections:      []inspectSection{},
		Relationships: map[string]inspectRelation{},
	}
	for _, s := range m.DefinedSectionNodes() {
		report.Sections = append(report.Sections, inspectSection{Key: s.Key, Title: s.Title()})
	}
	for _, id := range m.Definition().RelationshipIDs() {
		rel, err := m.Related(id)
		if err != nil {
			return err
		}
		paths := make([]string, 0, len(rel.Models))
		for _, rm := range rel.Models {
			paths = append(paths, rm.Path())
		}
		decl, _ := m.Definition().Relationship(id)
		report.Relationships[id] = inspectRelation{Kind: string(rel.Kind), Target: decl.Target(), Paths: paths}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
