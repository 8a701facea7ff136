package content

import (
	"fmt"
	"sort"
	"sync"

	"github.com/starford/brief/internal/apperr"
)

// Briefcase is an in-memory collection of models grouped by group name.
// Groups keep insertion order. Reads may run concurrently with one writer.
type Briefcase struct {
	mu     sync.RWMutex
	groups map[string][]*Model
	types  map[string]string // group -> type
	byPath map[string]*Model
}

// NewBriefcase returns an empty briefcase.
func NewBriefcase() *Briefcase {
	return &Briefcase{
		groups: make(map[string][]*Model),
		types:  make(map[string]string),
		byPath: make(map[string]*Model),
	}
}

// Add appends m to its group and attaches the briefcase to m's document.
// A path already present fails with apperr.ErrAlreadyExists; a group that
// holds another type fails with apperr.ErrGroupMismatch.
func (b *Briefcase) Add(m *Model) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byPath[m.Path()]; ok {
		return fmt.Errorf("content: briefcase add %s: %w", m.Path(), apperr.ErrAlreadyExists)
	}
	if err := b.checkGroup(m); err != nil {
		return err
	}
	b.insert(m)
	return nil
}

// Put adds m or replaces the model stored under the same path, keeping its
// position when the group does not change.
func (b *Briefcase) Put(m *Model) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	old, ok := b.byPath[m.Path()]
	if !ok {
		if err := b.checkGroup(m); err != nil {
			return err
		}
		b.insert(m)
		return nil
	}

	if old.GroupName() == m.GroupName() && old.Type() == m.Type() {
		group := b.groups[m.GroupName()]
		for i, cur := range group {
			if cur == old {
				group[i] = m
				break
			}
		}
		b.byPath[m.Path()] = m
		m.doc.briefcase = b
		return nil
	}

	b.remove(old)
	if err := b.checkGroup(m); err != nil {
		b.insert(old)
		return err
	}
	b.insert(m)
	return nil
}

// Remove deletes the model at path. It reports whether one was present.
func (b *Briefcase) Remove(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.byPath[path]
	if !ok {
		return false
	}
	b.remove(m)
	return true
}

func (b *Briefcase) checkGroup(m *Model) error {
	if typ, ok := b.types[m.GroupName()]; ok && typ != m.Type() {
		return fmt.Errorf("content: briefcase group %q holds %q, not %q: %w",
			m.GroupName(), typ, m.Type(), apperr.ErrGroupMismatch)
	}
	return nil
}

func (b *Briefcase) insert(m *Model) {
	g := m.GroupName()
	b.groups[g] = append(b.groups[g], m)
	b.types[g] = m.Type()
	b.byPath[m.Path()] = m
	m.doc.briefcase = b
}

func (b *Briefcase) remove(m *Model) {
	g := m.GroupName()
	group := b.groups[g]
	for i, cur := range group {
		if cur == m {
			b.groups[g] = append(group[:i:i], group[i+1:]...)
			break
		}
	}
	if len(b.groups[g]) == 0 {
		delete(b.groups, g)
		delete(b.types, g)
	}
	delete(b.byPath, m.Path())
}

// Group returns a copy of the models in group, in insertion order.
func (b *Briefcase) Group(name string) []*Model {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Model(nil), b.groups[name]...)
}

// Groups returns the group names in sorted order.
func (b *Briefcase) Groups() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.groups))
	for g := range b.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// GroupType returns the type stored in group.
func (b *Briefcase) GroupType(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.types[name]
	return t, ok
}

// Get returns the model built from the document at path.
func (b *Briefcase) Get(path string) (*Model, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.byPath[path]
	return m, ok
}

// Models returns every model, grouped by sorted group name.
func (b *Briefcase) Models() []*Model {
	var out []*Model
	for _, g := range b.Groups() {
		out = append(out, b.Group(g)...)
	}
	return out
}

// Len returns the number of models.
func (b *Briefcase) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byPath)
}
