package index

import (
	"log/slog"

	"github.com/starford/brief/internal/content"
	"github.com/starford/brief/internal/models"
)

// Sync brings the index up to date with the briefcase:
//   - new/changed models are upserted
//   - documents no longer in the briefcase are deleted from the index
//   - every model's outgoing relations are re-resolved
func Sync(db *DB, bc *content.Briefcase, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, bc.Len())
	for _, m := range bc.Models() {
		live[m.Path()] = struct{}{}

		if checksums[m.Path()] == m.Document().Checksum {
			continue
		}
		if err := IndexModel(db, m); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path()), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path()))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := live[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return RefreshRelations(db, bc, logger)
}

// Row converts a model into its index row.
func Row(m *content.Model) DocumentRow {
	doc := m.Document()
	return DocumentRow{
		Path:      m.Path(),
		Type:      m.Type(),
		GroupName: m.GroupName(),
		ModelID:   m.ID(),
		Title:     m.Title(),
		Checksum:  doc.Checksum,
		Data:      m.Attributes(),
		UpdatedAt: doc.LastModifiedAt,
	}
}

// IndexModel upserts a single model with its plain-text body.
func IndexModel(db DocumentIndex, m *content.Model) error {
	return db.UpsertDocument(Row(m), m.Document().Text())
}

// Relations resolves every declared relationship of m into edges. A
// relationship that fails to resolve is skipped.
func Relations(m *content.Model) []models.Relation {
	var out []models.Relation
	for _, id := range m.Definition().RelationshipIDs() {
		r, err := m.Related(id)
		if err != nil {
			continue
		}
		for _, target := range r.Models {
			out = append(out, models.Relation{
				Source:       m.Path(),
				Relationship: id,
				Target:       target.Path(),
			})
		}
	}
	return out
}

// RefreshRelations re-resolves the outgoing relations of every model in bc.
func RefreshRelations(db DocumentIndex, bc *content.Briefcase, logger *slog.Logger) error {
	for _, m := range bc.Models() {
		if err := db.ReplaceRelations(m.Path(), Relations(m)); err != nil {
			logger.Warn("sync: relations failed", slog.String("path", m.Path()), slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}
