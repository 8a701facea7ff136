// Package schema describes model types: their attributes, content sections
// and relationships, collected in an immutable Catalog.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Kind is a relationship cardinality.
type Kind string

// Relationship kinds.
const (
	HasMany   Kind = "hasMany"
	BelongsTo Kind = "belongsTo"
)

// Attribute declares one front-matter key a model may carry.
type Attribute struct {
	Name     string `yaml:"name" json:"name"`
	Required bool   `yaml:"required" json:"required"`
}

// UnmarshalYAML accepts either a bare attribute name or a mapping.
func (a *Attribute) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		a.Name = value.Value
		return nil
	}
	type plain Attribute
	return value.Decode((*plain)(a))
}

// Section declares a named content section, matched against heading text.
type Section struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Matches reports whether title equals the section name or one of its
// aliases, ignoring case and surrounding space.
func (s Section) Matches(title string) bool {
	title = strings.TrimSpace(title)
	if strings.EqualFold(title, strings.TrimSpace(s.Name)) {
		return true
	}
	for _, alias := range s.Aliases {
		if strings.EqualFold(title, strings.TrimSpace(alias)) {
			return true
		}
	}
	return false
}

// Relationship links a model to models of another type. Exactly one of
// HasMany and BelongsTo names the target type.
//
// HasMany matches target models whose ForeignKey equals this model's Key.
// BelongsTo matches the first target model whose References equals this
// model's ForeignKey.
type Relationship struct {
	HasMany    string `yaml:"hasMany,omitempty" json:"hasMany,omitempty"`
	BelongsTo  string `yaml:"belongsTo,omitempty" json:"belongsTo,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
	ForeignKey string `yaml:"foreignKey,omitempty" json:"foreignKey,omitempty"`
	References string `yaml:"references,omitempty" json:"references,omitempty"`
}

// Kind returns the relationship cardinality.
func (r Relationship) Kind() Kind {
	if r.HasMany != "" {
		return HasMany
	}
	return BelongsTo
}

// Target returns the name of the related type.
func (r Relationship) Target() string {
	if r.HasMany != "" {
		return r.HasMany
	}
	return r.BelongsTo
}

// Validate checks that exactly one cardinality is set and keys are filled.
func (r Relationship) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.HasMany,
			validation.When(r.BelongsTo == "", validation.Required.Error("one of hasMany or belongsTo is required")),
			validation.When(r.BelongsTo != "", validation.Empty.Error("hasMany and belongsTo are mutually exclusive")),
		),
		validation.Field(&r.Key, validation.When(r.HasMany != "", validation.Required)),
		validation.Field(&r.ForeignKey, validation.Required),
		validation.Field(&r.References, validation.When(r.BelongsTo != "", validation.Required)),
	)
}

// Definition is the schema of one model type.
type Definition struct {
	Type          string                  `yaml:"type"`
	GroupName     string                  `yaml:"groupName,omitempty"`
	Attributes    []Attribute             `yaml:"attributes"`
	Sections      map[string]Section      `yaml:"sections"`
	Relationships map[string]Relationship `yaml:"relationships"`
}

// Group returns the collection name for models of this type.
func (d *Definition) Group() string {
	if d.GroupName != "" {
		return d.GroupName
	}
	return Pluralize(d.Type)
}

// HasAttribute reports whether name is declared.
func (d *Definition) HasAttribute(name string) bool {
	for _, a := range d.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Relationship returns the relationship declared under id.
func (d *Definition) Relationship(id string) (Relationship, bool) {
	r, ok := d.Relationships[id]
	return r, ok
}

// RelationshipIDs returns declared relationship ids in sorted order.
func (d *Definition) RelationshipIDs() []string {
	return sortedKeys(d.Relationships)
}

// MatchSection returns the key of the first declared section (by key order)
// whose name or alias matches title.
func (d *Definition) MatchSection(title string) (string, bool) {
	for _, key := range sortedKeys(d.Sections) {
		if d.Sections[key].Matches(title) {
			return key, true
		}
	}
	return "", false
}

// Validate checks the definition after defaults have been applied.
func (d *Definition) Validate() error {
	if err := validation.ValidateStruct(d,
		validation.Field(&d.Type, validation.Required),
	); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(d.Attributes))
	for i, a := range d.Attributes {
		if a.Name == "" {
			return fmt.Errorf("attribute %d: name is required", i)
		}
		if a.Name == "type" {
			return errors.New(`attribute "type" is reserved`)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("attribute %q declared twice", a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	for key, s := range d.Sections {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("section %q: name is required", key)
		}
	}
	for _, id := range d.RelationshipIDs() {
		if err := d.Relationships[id].Validate(); err != nil {
			return fmt.Errorf("relationship %q: %w", id, err)
		}
	}
	return nil
}

// normalize fills relationship key defaults.
func (d *Definition) normalize() {
	for id, r := range d.Relationships {
		switch r.Kind() {
		case HasMany:
			if r.Key == "" {
				r.Key = "id"
			}
			if r.ForeignKey == "" {
				r.ForeignKey = d.Type + "Id"
			}
		case BelongsTo:
			if r.ForeignKey == "" && r.BelongsTo != "" {
				r.ForeignKey = r.BelongsTo + "Id"
			}
			if r.References == "" {
				r.References = "id"
			}
		}
		d.Relationships[id] = r
	}
}

func (d *Definition) clone() *Definition {
	out := *d
	out.Attributes = append([]Attribute(nil), d.Attributes...)
	out.Sections = make(map[string]Section, len(d.Sections))
	for k, v := range d.Sections {
		v.Aliases = append([]string(nil), v.Aliases...)
		out.Sections[k] = v
	}
	out.Relationships = make(map[string]Relationship, len(d.Relationships))
	for k, v := range d.Relationships {
		out.Relationships[k] = v
	}
	return &out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
