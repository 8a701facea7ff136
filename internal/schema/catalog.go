package schema

import (
	"fmt"
	"os"

	"github.com/gertd/go-pluralize"
	"gopkg.in/yaml.v3"

	"github.com/starford/brief/internal/apperr"
)

var inflector = pluralize.NewClient()

// Pluralize returns the plural form of a type name, e.g. "post" -> "posts".
func Pluralize(word string) string {
	if word == "" {
		return ""
	}
	return inflector.Plural(word)
}

// Catalog is an immutable set of definitions keyed by type name.
// It is safe for concurrent reads.
type Catalog struct {
	defs   map[string]*Definition
	groups map[string]*Definition
}

// NewCatalog normalizes, validates and indexes defs. Registering the same
// type twice fails with apperr.ErrDuplicateType.
func NewCatalog(defs ...*Definition) (*Catalog, error) {
	c := &Catalog{
		defs:   make(map[string]*Definition, len(defs)),
		groups: make(map[string]*Definition, len(defs)),
	}
	for _, def := range defs {
		if def == nil {
			continue
		}
		d := def.clone()
		d.normalize()
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("schema: %s: %w: %w", d.Type, apperr.ErrInvalidDefinition, err)
		}
		if _, dup := c.defs[d.Type]; dup {
			return nil, fmt.Errorf("schema: %s: %w", d.Type, apperr.ErrDuplicateType)
		}
		if other, dup := c.groups[d.Group()]; dup {
			return nil, fmt.Errorf("schema: %s: group %q already holds type %s: %w",
				d.Type, d.Group(), other.Type, apperr.ErrInvalidDefinition)
		}
		c.defs[d.Type] = d
		c.groups[d.Group()] = d
	}
	return c, nil
}

type catalogFile struct {
	Definitions []*Definition `yaml:"definitions"`
}

// ParseCatalog builds a catalog from YAML of the form
//
//	definitions:
//	  - type: post
//	    attributes: [id, title]
//	    relationships:
//	      comments: {hasMany: comment}
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("schema: parse catalog: %w", err)
	}
	return NewCatalog(f.Definitions...)
}

// LoadCatalog reads and parses a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w: %w", path, apperr.ErrIO, err)
	}
	return ParseCatalog(data)
}

// Lookup returns the definition registered for typ.
func (c *Catalog) Lookup(typ string) (*Definition, error) {
	if c != nil {
		if d, ok := c.defs[typ]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("schema: %q: %w", typ, apperr.ErrUnknownType)
}

// Target resolves the definition a relationship points at. The target may
// be named by type or by group name.
func (c *Catalog) Target(rel Relationship) (*Definition, error) {
	name := rel.Target()
	if d, err := c.Lookup(name); err == nil {
		return d, nil
	}
	if c != nil {
		if d, ok := c.groups[name]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("schema: relationship target %q: %w", name, apperr.ErrUnknownType)
}

// Types returns registered type names in sorted order.
func (c *Catalog) Types() []string {
	if c == nil {
		return nil
	}
	return sortedKeys(c.defs)
}

// Definitions returns all definitions sorted by type.
func (c *Catalog) Definitions() []*Definition {
	out := make([]*Definition, 0, len(c.Types()))
	for _, t := range c.Types() {
		out = append(out, c.defs[t])
	}
	return out
}

// MarshalYAML renders the catalog in the format ParseCatalog accepts.
func (c *Catalog) MarshalYAML() (any, error) {
	return catalogFile{Definitions: c.Definitions()}, nil
}
