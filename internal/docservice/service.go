// Package docservice coordinates storage, the briefcase and the index for
// the HTTP and MCP surfaces.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/starford/brief/internal/apperr"
	"github.com/starford/brief/internal/content"
	"github.com/starford/brief/internal/index"
	"github.com/starford/brief/internal/models"
	"github.com/starford/brief/internal/schema"
	"github.com/starford/brief/internal/storage"
)

// SectionDetail is one declared section of a model, rendered.
type SectionDetail struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// DocumentDetail is the full representation of a model and its document.
type DocumentDetail struct {
	Path      string            `json:"path"`
	Type      string            `json:"type"`
	GroupName string            `json:"groupName"`
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Checksum  string            `json:"checksum"`
	Data      map[string]any    `json:"data"`
	Content   string            `json:"content"`
	HTML      string            `json:"html"`
	Sections  []SectionDetail   `json:"sections"`
	Inbound   []models.Relation `json:"inbound"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	GroupName string    `json:"groupName"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupSummary describes one briefcase group.
type GroupSummary struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// RelatedResult is a resolved relationship.
type RelatedResult struct {
	Source       string             `json:"source"`
	Relationship string             `json:"relationship"`
	Kind         schema.Kind        `json:"kind"`
	Models       []DocumentListItem `json:"models"`
}

// EventFunc receives change notifications; kind is one of "created",
// "updated", "deleted".
type EventFunc func(kind string, m DocumentListItem)

// Option configures a Service.
type Option func(*Service)

// WithEvents registers a change callback for writes made through the service.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.events = fn }
}

// Service coordinates storage, briefcase and index operations.
type Service struct {
	store   storage.Provider
	db      index.DocumentIndex
	loader  *content.Loader
	bc      *content.Briefcase
	catalog *schema.Catalog
	events  EventFunc

	mu sync.Mutex // serializes writes
}

// NewService creates a new document service.
func NewService(store storage.Provider, db index.DocumentIndex, loader *content.Loader, bc *content.Briefcase, catalog *schema.Catalog, opts ...Option) *Service {
	s := &Service{store: store, db: db, loader: loader, bc: bc, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the model stored at path.
func (s *Service) Get(_ context.Context, path string) (*DocumentDetail, error) {
	m, err := s.model(path)
	if err != nil {
		return nil, err
	}
	return s.detail(m)
}

func (s *Service) model(path string) (*content.Model, error) {
	if m, ok := s.bc.Get(path); ok {
		return m, nil
	}
	m, err := s.loader.LoadModel(path)
	if errors.Is(err, apperr.ErrIO) {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
	}
	return m, err
}

// Create validates, writes and indexes a new document.
func (s *Service) Create(_ context.Context, path string, raw []byte) (*DocumentDetail, error) {
	if !storage.IsDocument(path) {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrInvalidPath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrAlreadyExists)
	}
	m, err := s.write(path, raw)
	if err != nil {
		return nil, err
	}
	s.notify(index.KindCreated, m)
	return s.detail(m)
}

// Update replaces a document with optimistic concurrency: a non-empty
// ifMatch must equal the stored checksum.
func (s *Service) Update(_ context.Context, path string, raw []byte, ifMatch string) (*DocumentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.store.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != meta.Checksum {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrConflict)
	}
	m, err := s.write(path, raw)
	if err != nil {
		return nil, err
	}
	s.notify(index.KindUpdated, m)
	return s.detail(m)
}

// write types raw before touching disk so invalid documents are rejected
// without side effects.
func (s *Service) write(path string, raw []byte) (*content.Model, error) {
	if _, err := s.loader.ParseModel(path, raw); err != nil {
		return nil, err
	}
	if err := s.store.Write(path, raw); err != nil {
		return nil, err
	}
	m, err := s.loader.LoadModel(path)
	if err != nil {
		return nil, err
	}
	if err := s.bc.Put(m); err != nil {
		return nil, err
	}
	if err := index.IndexModel(s.db, m); err != nil {
		return nil, err
	}
	if err := index.RefreshRelations(s.db, s.bc, s.loader.Options().Logger); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a document from storage, the briefcase and the index.
func (s *Service) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	m, known := s.bc.Get(path)
	s.bc.Remove(path)
	if err := s.db.DeleteDocument(path); err != nil {
		return err
	}
	if err := index.RefreshRelations(s.db, s.bc, s.loader.Options().Logger); err != nil {
		return err
	}
	if known {
		s.notify(index.KindDeleted, m)
	} else if s.events != nil {
		s.events(index.KindDeleted, DocumentListItem{Path: path})
	}
	return nil
}

// Move renames a document. The model is re-read at its new path, so a
// path-derived id changes with it.
func (s *Service) Move(_ context.Context, from, to string) (*DocumentDetail, error) {
	if !storage.IsDocument(to) {
		return nil, fmt.Errorf("docservice: %s: %w", to, apperr.ErrInvalidPath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Stat(to); err == nil {
		return nil, fmt.Errorf("docservice: %s: %w", to, apperr.ErrAlreadyExists)
	}
	if err := s.store.Move(from, to); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("docservice: %s: %w", from, apperr.ErrNotFound)
		}
		return nil, err
	}

	old, known := s.bc.Get(from)
	s.bc.Remove(from)
	if err := s.db.DeleteDocument(from); err != nil {
		return nil, err
	}
	m, err := s.loader.LoadModel(to)
	if err == nil {
		err = s.bc.Put(m)
	}
	if err == nil {
		err = index.IndexModel(s.db, m)
	}
	if rerr := index.RefreshRelations(s.db, s.bc, s.loader.Options().Logger); err == nil {
		err = rerr
	}
	if err != nil {
		return nil, err
	}

	if known {
		s.notify(index.KindDeleted, old)
	} else if s.events != nil {
		s.events(index.KindDeleted, DocumentListItem{Path: from})
	}
	s.notify(index.KindCreated, m)
	return s.detail(m)
}

// List returns one page of indexed documents.
func (s *Service) List(_ context.Context, q index.ListQuery) ([]DocumentListItem, int, error) {
	rows, total, err := s.db.ListDocuments(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DocumentListItem, len(rows))
	for i, r := range rows {
		items[i] = DocumentListItem{
			Path:      r.Path,
			Type:      r.Type,
			GroupName: r.GroupName,
			ID:        r.ModelID,
			Title:     r.Title,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Groups summarizes the briefcase groups.
func (s *Service) Groups(_ context.Context) []GroupSummary {
	names := s.bc.Groups()
	out := make([]GroupSummary, 0, len(names))
	for _, name := range names {
		typ, _ := s.bc.GroupType(name)
		out = append(out, GroupSummary{Name: name, Type: typ, Count: len(s.bc.Group(name))})
	}
	return out
}

// Related resolves relationship id of the model at path.
func (s *Service) Related(_ context.Context, path, id string) (*RelatedResult, error) {
	m, err := s.model(path)
	if err != nil {
		return nil, err
	}
	r, err := m.Related(id)
	if err != nil {
		return nil, err
	}
	items := make([]DocumentListItem, len(r.Models))
	for i, rm := range r.Models {
		items[i] = ListItem(rm)
	}
	return &RelatedResult{Source: path, Relationship: id, Kind: r.Kind, Models: items}, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all nodes and relationship links.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// Schema returns the model definitions in use.
func (s *Service) Schema(_ context.Context) *schema.Catalog {
	return s.catalog
}

func (s *Service) notify(kind string, m *content.Model) {
	if s.events != nil {
		s.events(kind, ListItem(m))
	}
}

// ListItem summarizes a model.
func ListItem(m *content.Model) DocumentListItem {
	doc := m.Document()
	return DocumentListItem{
		Path:      m.Path(),
		Type:      m.Type(),
		GroupName: m.GroupName(),
		ID:        m.ID(),
		Title:     m.Title(),
		Checksum:  doc.Checksum,
		UpdatedAt: doc.LastModifiedAt,
	}
}

func (s *Service) detail(m *content.Model) (*DocumentDetail, error) {
	doc := m.Document()
	html, err := doc.Render()
	if err != nil {
		return nil, err
	}
	sections := []SectionDetail{}
	for _, ds := range m.DefinedSectionNodes() {
		sh, err := doc.SectionHTML(ds.Section)
		if err != nil {
			return nil, err
		}
		sections = append(sections, SectionDetail{Key: ds.Key, Title: ds.Title(), HTML: sh})
	}
	inbound, err := s.db.Inbound(m.Path())
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{
		Path:      m.Path(),
		Type:      m.Type(),
		GroupName: m.GroupName(),
		ID:        m.ID(),
		Title:     m.Title(),
		Checksum:  doc.Checksum,
		Data:      m.Attributes(),
		Content:   string(doc.Content),
		HTML:      html,
		Sections:  sections,
		Inbound:   nonNilSlice(inbound),
		UpdatedAt: doc.LastModifiedAt,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
