package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/brief/internal/docservice"
	"github.com/starford/brief/internal/index"
	"github.com/starford/brief/internal/schema"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Path    string `json:"path" example:"posts/hello.md" validate:"required"`
	Content string `json:"content" example:"---\ntype: post\n---\n# Hello" validate:"required"`
}

// Validate checks required fields.
func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateDocumentRequest is the request body for updating a document.
type UpdateDocumentRequest struct {
	Content string `json:"content" example:"---\ntype: post\n---\n# Updated" validate:"required"`
}

// Validate checks required fields.
func (r UpdateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

// MoveDocumentRequest is the request body for renaming a document.
type MoveDocumentRequest struct {
	From string `json:"from" example:"posts/draft.md" validate:"required"`
	To   string `json:"to" example:"posts/hello.md" validate:"required"`
}

// Validate checks required fields.
func (r MoveDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required),
	)
}

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = docservice.DocumentListItem

// RelatedResult is a resolved relationship (aliased from the domain layer).
type RelatedResult = docservice.RelatedResult

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// GroupListResponse wraps the briefcase groups.
type GroupListResponse struct {
	Groups []docservice.GroupSummary `json:"groups" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"posts/hello.md" validate:"required"`
	Type    string `json:"type" example:"post" validate:"required"`
	Title   string `json:"title" example:"Hello" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the relationship graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}

// SchemaDefinition is one model type in a schema response.
type SchemaDefinition struct {
	Type          string                         `json:"type" example:"post"`
	GroupName     string                         `json:"groupName" example:"posts"`
	Attributes    []schema.Attribute             `json:"attributes"`
	Sections      map[string]schema.Section      `json:"sections"`
	Relationships map[string]schema.Relationship `json:"relationships"`
}

// SchemaResponse lists all model definitions.
type SchemaResponse struct {
	Definitions []SchemaDefinition `json:"definitions" validate:"required"`
}

// NewSchemaResponse converts a catalog into its wire form.
func NewSchemaResponse(c *schema.Catalog) SchemaResponse {
	defs := c.Definitions()
	out := SchemaResponse{Definitions: make([]SchemaDefinition, len(defs))}
	for i, d := range defs {
		out.Definitions[i] = SchemaDefinition{
			Type:          d.Type,
			GroupName:     d.Group(),
			Attributes:    nonNil(d.Attributes),
			Sections:      d.Sections,
			Relationships: d.Relationships,
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
