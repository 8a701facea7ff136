package content

import (
	"fmt"
	"log/slog"

	"github.com/starford/brief/internal/models"
)

// Source lists and reads corpus documents. storage.FS satisfies it.
type Source interface {
	Reader
	List(dir string) ([]models.DocumentMeta, error)
}

// Loader builds models from a corpus.
type Loader struct {
	src     Source
	catalog Catalog
	opts    Options
	model   ModelOptions
	logger  *slog.Logger
}

// NewLoader returns a loader reading from src. opts.Reader is replaced
// with src.
func NewLoader(src Source, catalog Catalog, opts Options, model ModelOptions) *Loader {
	opts.Reader = src
	opts = opts.withDefaults()
	return &Loader{
		src:     src,
		catalog: catalog,
		opts:    opts,
		model:   model,
		logger:  opts.Logger,
	}
}

// Catalog returns the definitions models are built against.
func (l *Loader) Catalog() Catalog { return l.catalog }

// Source returns the corpus the loader reads from.
func (l *Loader) Source() Source { return l.src }

// Options returns the document options in use.
func (l *Loader) Options() Options { return l.opts }

// LoadModel reads, parses and types the document at path.
func (l *Loader) LoadModel(path string) (*Model, error) {
	doc, err := Create(path, l.opts)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, l.catalog, l.model)
}

// ParseModel types in-memory content as if it were stored at path.
func (l *Loader) ParseModel(path string, raw []byte) (*Model, error) {
	doc, err := Parse(path, raw, l.opts)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, l.catalog, l.model)
}

// Load walks the whole corpus into a new briefcase. Documents that cannot
// be read, parsed or typed are logged and skipped; only a listing failure
// is returned.
func (l *Loader) Load() (*Briefcase, error) {
	metas, err := l.src.List("")
	if err != nil {
		return nil, fmt.Errorf("content: load: %w", err)
	}
	bc := NewBriefcase()
	var skipped int
	for _, meta := range metas {
		m, err := l.LoadModel(meta.Path)
		if err == nil {
			err = bc.Add(m)
		}
		if err != nil {
			skipped++
			l.logger.Warn("content: skip document",
				slog.String("path", meta.Path),
				slog.String("error", err.Error()))
			continue
		}
	}
	l.logger.Info("content: corpus loaded",
		slog.Int("models", bc.Len()),
		slog.Int("skipped", skipped),
		slog.Int("groups", len(bc.Groups())))
	return bc, nil
}
