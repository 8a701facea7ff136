package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/brief/internal/apperr"
	"github.com/starford/brief/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path      string
	Type      string
	GroupName string
	ModelID   string
	Title     string
	Checksum  string
	Data      map[string]any
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Type    string
	Title   string
	Snippet string
}

// ListQuery filters and pages ListDocuments.
type ListQuery struct {
	Limit  int
	Offset int
	Group  string
	// Sort is one of "path" (default), "title" or "updated" (newest first).
	Sort string
}

// GraphNode is one indexed document in the relationship graph.
type GraphNode struct {
	Path      string `json:"path"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	GroupName string `json:"groupName"`
}

// GraphLink is one resolved relationship edge.
type GraphLink struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// UpsertDocument inserts or replaces a document row and its FTS entry within
// a transaction. Relations are maintained separately by ReplaceRelations.
func (db *DB) UpsertDocument(d DocumentRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	data := d.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("index: encode data %s: %w", d.Path, err)
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, type, group_name, model_id, title, checksum, data, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			type       = excluded.type,
			group_name = excluded.group_name,
			model_id   = excluded.model_id,
			title      = excluded.title,
			checksum   = excluded.checksum,
			data       = excluded.data,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.Path, d.Type, d.GroupName, d.ModelID, d.Title, d.Checksum, string(dataJSON), body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, d.Path, d.Type, d.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry and every relation that
// touches it.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM relations WHERE source = ? OR target = ?`, path, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

const documentColumns = `path, type, group_name, model_id, title, checksum, data, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (DocumentRow, error) {
	var (
		d    DocumentRow
		data string
	)
	if err := s.Scan(&d.Path, &d.Type, &d.GroupName, &d.ModelID, &d.Title, &d.Checksum, &data, &d.UpdatedAt); err != nil {
		return DocumentRow{}, err
	}
	if err := json.Unmarshal([]byte(data), &d.Data); err != nil {
		return DocumentRow{}, fmt.Errorf("index: decode data %s: %w", d.Path, err)
	}
	return d, nil
}

// GetDocument returns the row for path, or apperr.ErrNotFound.
func (db *DB) GetDocument(path string) (*DocumentRow, error) {
	row := db.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE path = ?`, path)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: document %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns one page of documents and the total match count.
func (db *DB) ListDocuments(q ListQuery) ([]DocumentRow, int, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	where := ""
	var args []any
	if q.Group != "" {
		where = ` WHERE group_name = ?`
		args = append(args, q.Group)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	order := " ORDER BY path"
	switch strings.ToLower(q.Sort) {
	case "title":
		order = " ORDER BY title COLLATE NOCASE, path"
	case "updated":
		order = " ORDER BY updated_at DESC, path"
	}

	rows, err := db.conn.Query(`SELECT `+documentColumns+` FROM documents`+where+order+` LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	out := []DocumentRow{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// AllPaths returns every indexed document path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ReplaceRelations swaps the outgoing relations of source in one transaction.
func (db *DB) ReplaceRelations(source string, rels []models.Relation) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM relations WHERE source = ?`, source); err != nil {
		return fmt.Errorf("index: clear relations: %w", err)
	}
	if len(rels) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO relations (source, relationship, target) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare relation insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rels {
			if _, err := stmt.Exec(source, r.Relationship, r.Target); err != nil {
				return fmt.Errorf("index: insert relation: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Inbound returns the relations pointing at target.
func (db *DB) Inbound(target string) ([]models.Relation, error) {
	rows, err := db.conn.Query(`
		SELECT source, relationship, target FROM relations
		WHERE target = ?
		ORDER BY source, relationship
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: inbound: %w", err)
	}
	defer rows.Close()

	var out []models.Relation
	for rows.Next() {
		var r models.Relation
		if err := rows.Scan(&r.Source, &r.Relationship, &r.Target); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Graph returns every document and every relation whose ends are both
// indexed.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT path, title, type, group_name FROM documents ORDER BY path`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	nodes := []GraphNode{}
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.Path, &n.Title, &n.Type, &n.GroupName); err != nil {
			rows.Close()
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = db.conn.Query(`
		SELECT r.source, r.target, r.relationship
		FROM relations r
		JOIN documents s ON s.path = r.source
		JOIN documents t ON t.path = r.target
		ORDER BY r.source, r.relationship, r.target
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer rows.Close()
	links := []GraphLink{}
	for rows.Next() {
		var l GraphLink
		if err := rows.Scan(&l.Source, &l.Target, &l.Relationship); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, rows.Err()
}
