package content

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/starford/brief/internal/apperr"
	"github.com/starford/brief/internal/schema"
)

// Catalog resolves model definitions. *schema.Catalog satisfies it.
type Catalog interface {
	Lookup(typ string) (*schema.Definition, error)
	Target(rel schema.Relationship) (*schema.Definition, error)
}

// Attribute is a model property: either Stored front matter or Computed.
type Attribute interface {
	resolve(m *Model) any
}

// Stored reads the named key from the live document data.
type Stored string

func (s Stored) resolve(m *Model) any { return m.doc.Data[string(s)] }

// Computed derives a value from the model on every read.
type Computed func(m *Model) any

func (c Computed) resolve(m *Model) any { return c(m) }

// ModelOptions configures FromDocument.
type ModelOptions struct {
	// GroupName overrides the pluralized type name.
	GroupName string
	// ID overrides the id derived from the document path.
	ID string
	// Computed adds derived attributes. Stored keys of the same name win.
	Computed map[string]Computed
}

// Model is a typed view over one Document.
type Model struct {
	doc       *Document
	def       *schema.Definition
	catalog   Catalog
	typ       string
	groupName string
	id        string
	attrs     map[string]Attribute
}

// FromDocument builds a model. The type comes from the document's "type"
// key (apperr.ErrMissingType when absent) and must be registered in catalog
// (apperr.ErrUnknownType). When the definition declares attributes, front
// matter keys outside that list fail with apperr.ErrUndeclaredAttribute and
// absent required ones with apperr.ErrMissingAttribute.
func FromDocument(doc *Document, catalog Catalog, opts ModelOptions) (*Model, error) {
	typ, _ := doc.Data["type"].(string)
	if typ == "" {
		return nil, fmt.Errorf("content: %s: %w", doc.Path, apperr.ErrMissingType)
	}
	def, err := catalog.Lookup(typ)
	if err != nil {
		return nil, fmt.Errorf("content: %s: %w", doc.Path, err)
	}
	if err := checkAttributes(doc, def); err != nil {
		return nil, err
	}

	m := &Model{
		doc:       doc,
		def:       def,
		catalog:   catalog,
		typ:       typ,
		groupName: opts.GroupName,
		id:        opts.ID,
		attrs:     make(map[string]Attribute, len(doc.Data)+len(opts.Computed)),
	}
	if m.groupName == "" {
		m.groupName = def.Group()
	}
	if m.id == "" {
		m.id = strings.TrimSuffix(filepath.ToSlash(doc.Path), filepath.Ext(doc.Path))
	}
	doc.ID = m.id

	for key := range doc.Data {
		if key == "type" {
			continue
		}
		m.attrs[key] = Stored(key)
	}
	for key, fn := range opts.Computed {
		if _, taken := m.attrs[key]; taken || fn == nil {
			continue
		}
		m.attrs[key] = fn
	}
	return m, nil
}

func checkAttributes(doc *Document, def *schema.Definition) error {
	if len(def.Attributes) == 0 {
		return nil
	}
	for key := range doc.Data {
		if key == "type" || def.HasAttribute(key) {
			continue
		}
		return fmt.Errorf("content: %s: %q: %w", doc.Path, key, apperr.ErrUndeclaredAttribute)
	}
	for _, a := range def.Attributes {
		if !a.Required {
			continue
		}
		if _, ok := doc.Data[a.Name]; !ok {
			return fmt.Errorf("content: %s: %q: %w", doc.Path, a.Name, apperr.ErrMissingAttribute)
		}
	}
	return nil
}

// Document returns the underlying document.
func (m *Model) Document() *Document { return m.doc }

// Definition returns the model's schema.
func (m *Model) Definition() *schema.Definition { return m.def }

// Type returns the model type.
func (m *Model) Type() string { return m.typ }

// GroupName returns the briefcase group the model belongs to.
func (m *Model) GroupName() string { return m.groupName }

// ID returns the model id.
func (m *Model) ID() string { return m.id }

// Path returns the source document path.
func (m *Model) Path() string { return m.doc.Path }

func (m *Model) String() string {
	return "Document: " + m.doc.Path
}

// Keys returns attribute names in sorted order.
func (m *Model) Keys() []string {
	keys := make([]string, 0, len(m.attrs))
	for k := range m.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Read resolves a property: stored front matter, then computed attributes,
// then the built-ins id, type, groupName and path.
func (m *Model) Read(name string) (any, bool) {
	if a, ok := m.attrs[name]; ok {
		return a.resolve(m), true
	}
	switch name {
	case "id":
		return m.id, true
	case "type":
		return m.typ, true
	case "groupName":
		return m.groupName, true
	case "path":
		return m.doc.Path, true
	}
	return nil, false
}

// Get is Read without the presence flag.
func (m *Model) Get(name string) any {
	v, _ := m.Read(name)
	return v
}

// StringValue returns a property coerced to a string, or "" when absent.
func (m *Model) StringValue(name string) string {
	v, ok := m.Read(name)
	if !ok || v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// Strings returns a property coerced to a string slice.
func (m *Model) Strings(name string) []string {
	v, ok := m.Read(name)
	if !ok || v == nil {
		return nil
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return out
}

// Title returns the "title" property, falling back to the first heading.
func (m *Model) Title() string {
	if t := m.StringValue("title"); t != "" {
		return t
	}
	if hs := m.doc.HeadingNodes(); len(hs) > 0 {
		return hs[0].Value
	}
	return ""
}

// Briefcase returns the collection reachable through the document.
func (m *Model) Briefcase() *Briefcase {
	return m.doc.Briefcase()
}

// Relation is the result of resolving a relationship. For BelongsTo it
// holds at most one model.
type Relation struct {
	ID     string
	Kind   schema.Kind
	Models []*Model
}

// One returns the single related model, or nil.
func (r Relation) One() *Model {
	if len(r.Models) == 0 {
		return nil
	}
	return r.Models[0]
}

// Related resolves a declared relationship against the model's briefcase.
// An undeclared id or an unresolvable target fails with
// apperr.ErrInvalidRelationship; no matching records is not an error.
func (m *Model) Related(id string) (Relation, error) {
	rel, ok := m.def.Relationship(id)
	if !ok {
		return Relation{}, fmt.Errorf("content: %s relationship %q: %w", m.typ, id, apperr.ErrInvalidRelationship)
	}
	target, err := m.catalog.Target(rel)
	if err != nil {
		return Relation{}, fmt.Errorf("content: %s relationship %q: %w: %w", m.typ, id, apperr.ErrInvalidRelationship, err)
	}

	var candidates []*Model
	if bc := m.Briefcase(); bc != nil {
		candidates = bc.Group(target.Group())
	}

	out := Relation{ID: id, Kind: rel.Kind(), Models: []*Model{}}
	switch rel.Kind() {
	case schema.HasMany:
		want, ok := m.Read(rel.Key)
		if !ok {
			return out, nil
		}
		for _, c := range candidates {
			if got, ok := c.Read(rel.ForeignKey); ok && sameValue(got, want) {
				out.Models = append(out.Models, c)
			}
		}
	case schema.BelongsTo:
		want, ok := m.Read(rel.ForeignKey)
		if !ok {
			return out, nil
		}
		for _, c := range candidates {
			if got, ok := c.Read(rel.References); ok && sameValue(got, want) {
				out.Models = append(out.Models, c)
				break
			}
		}
	}
	return out, nil
}

// HasMany resolves a has-many relationship.
func (m *Model) HasMany(id string) ([]*Model, error) {
	r, err := m.Related(id)
	if err != nil {
		return nil, err
	}
	if r.Kind != schema.HasMany {
		return nil, fmt.Errorf("content: %s relationship %q is %s: %w", m.typ, id, r.Kind, apperr.ErrInvalidRelationship)
	}
	return r.Models, nil
}

// BelongsTo resolves a belongs-to relationship; nil when nothing matches.
func (m *Model) BelongsTo(id string) (*Model, error) {
	r, err := m.Related(id)
	if err != nil {
		return nil, err
	}
	if r.Kind != schema.BelongsTo {
		return nil, fmt.Errorf("content: %s relationship %q is %s: %w", m.typ, id, r.Kind, apperr.ErrInvalidRelationship)
	}
	return r.One(), nil
}

// sameValue compares relationship keys. Numbers compare by value across Go
// numeric types; anything else must be deeply equal. nil never matches.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if isNumber(a) && isNumber(b) {
		fa, errA := cast.ToFloat64E(a)
		fb, errB := cast.ToFloat64E(b)
		return errA == nil && errB == nil && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// DefinedSection is a document section matched to a declared section key.
type DefinedSection struct {
	Key string
	Section
}

// DefinedSectionNodes returns the document sections whose heading matches a
// declared section name or alias, in document order. Undeclared headings
// are left out.
func (m *Model) DefinedSectionNodes() []DefinedSection {
	var out []DefinedSection
	for _, s := range m.doc.SectionNodes() {
		if key, ok := m.def.MatchSection(s.Title()); ok {
			out = append(out, DefinedSection{Key: key, Section: s})
		}
	}
	return out
}

// Section returns the first document section matching key.
func (m *Model) Section(key string) (DefinedSection, bool) {
	for _, s := range m.DefinedSectionNodes() {
		if s.Key == key {
			return s, true
		}
	}
	return DefinedSection{}, false
}

// SectionHTML renders the body of the section matching key, or "" when the
// document has no such section.
func (m *Model) SectionHTML(key string) (string, error) {
	s, ok := m.Section(key)
	if !ok {
		return "", nil
	}
	return m.doc.SectionHTML(s.Section)
}

// Attributes resolves every attribute into a plain map.
func (m *Model) Attributes() map[string]any {
	out := make(map[string]any, len(m.attrs))
	for k, a := range m.attrs {
		out[k] = a.resolve(m)
	}
	return out
}

// MarshalJSON renders the model's identity and resolved attributes.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Path      string         `json:"path"`
		Type      string         `json:"type"`
		GroupName string         `json:"groupName"`
		ID        string         `json:"id"`
		Data      map[string]any `json:"data"`
	}{
		Path:      m.doc.Path,
		Type:      m.typ,
		GroupName: m.groupName,
		ID:        m.id,
		Data:      m.Attributes(),
	})
}
