package index

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/brief/internal/apperr"
	"github.com/starford/brief/internal/content"
	"github.com/starford/brief/internal/models"
	"github.com/starford/brief/internal/schema"
	"github.com/starford/brief/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "brief-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testCorpus writes files into a temp corpus and returns its root and a
// loader bound to a post/comment catalog.
func testCorpus(t *testing.T, files map[string]string) (string, *content.Loader) {
	t.Helper()
	root := t.TempDir()
	for p, body := range files {
		abs := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	catalog, err := schema.NewCatalog(
		&schema.Definition{
			Type:          "post",
			Relationships: map[string]schema.Relationship{"comments": {HasMany: "comment"}},
		},
		&schema.Definition{
			Type:          "comment",
			Relationships: map[string]schema.Relationship{"post": {BelongsTo: "post"}},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), content.NewLoader(store, catalog, content.Options{}, content.ModelOptions{})
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM relations`).Scan(&count); err != nil {
		t.Fatalf("relations table missing: %v", err)
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{
		Path:      "posts/hello.md",
		Type:      "post",
		GroupName: "posts",
		ModelID:   "posts/hello",
		Title:     "Hello World",
		Checksum:  "abc123",
		Data:      map[string]any{"title": "Hello World", "views": 3},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertDocument(row, "This is a hello world post."); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum("posts/hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	got, err := db.GetDocument("posts/hello.md")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.GroupName != "posts" || got.ModelID != "posts/hello" || got.Data["title"] != "Hello World" {
		t.Errorf("row = %+v", got)
	}
	if got.Data["views"] != float64(3) {
		t.Errorf("views = %#v", got.Data["views"])
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetDocument("nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRelationsAndInbound(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceRelations("comments/a.md", []models.Relation{{Relationship: "post", Target: "posts/one.md"}})
	_ = db.ReplaceRelations("comments/b.md", []models.Relation{{Relationship: "post", Target: "posts/one.md"}})

	in, err := db.Inbound("posts/one.md")
	if err != nil {
		t.Fatalf("Inbound: %v", err)
	}
	if len(in) != 2 || in[0].Source != "comments/a.md" || in[0].Relationship != "post" {
		t.Fatalf("inbound = %+v", in)
	}

	_ = db.ReplaceRelations("comments/a.md", nil)
	in, _ = db.Inbound("posts/one.md")
	if len(in) != 1 {
		t.Errorf("expected 1 inbound after replace, got %d", len(in))
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "del.md", Checksum: "x", UpdatedAt: time.Now()}, "body")
	_ = db.ReplaceRelations("del.md", []models.Relation{{Relationship: "r", Target: "target.md"}})
	_ = db.ReplaceRelations("other.md", []models.Relation{{Relationship: "r", Target: "del.md"}})

	if err := db.DeleteDocument("del.md"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("deleted document still has checksum %q", cs)
	}
	if in, _ := db.Inbound("target.md"); len(in) != 0 {
		t.Errorf("outgoing relations left: %+v", in)
	}
	if in, _ := db.Inbound("del.md"); len(in) != 0 {
		t.Errorf("inbound relations left: %+v", in)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertDocument(DocumentRow{Path: "up.md", Title: "Old", Checksum: "1", UpdatedAt: now}, "old body")
	_ = db.UpsertDocument(DocumentRow{Path: "up.md", Title: "New", Checksum: "2", UpdatedAt: now}, "new body")

	cs, _ := db.GetChecksum("up.md")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	got, _ := db.GetDocument("up.md")
	if got == nil || got.Title != "New" {
		t.Errorf("row = %+v", got)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "s.md", Type: "post", Title: "Search Me", Checksum: "1", UpdatedAt: time.Now()}, "uniqueword appears here")

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.md" || results[0].Type != "post" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}

func TestListDocuments(t *testing.T) {
	db := testDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []DocumentRow{
		{Path: "posts/b.md", GroupName: "posts", Title: "alpha", UpdatedAt: base},
		{Path: "posts/a.md", GroupName: "posts", Title: "Beta", UpdatedAt: base.Add(time.Hour)},
		{Path: "comments/c.md", GroupName: "comments", Title: "gamma", UpdatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range rows {
		if err := db.UpsertDocument(r, ""); err != nil {
			t.Fatalf("UpsertDocument: %v", err)
		}
	}

	all, total, err := db.ListDocuments(ListQuery{})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 3 || len(all) != 3 || all[0].Path != "comments/c.md" {
		t.Errorf("all = %d/%d first %q", len(all), total, all[0].Path)
	}

	posts, total, _ := db.ListDocuments(ListQuery{Group: "posts", Sort: "title"})
	if total != 2 || posts[0].Title != "alpha" || posts[1].Title != "Beta" {
		t.Errorf("posts by title = %+v", posts)
	}

	page, total, _ := db.ListDocuments(ListQuery{Limit: 1, Offset: 1, Sort: "updated"})
	if total != 3 || len(page) != 1 || page[0].Path != "posts/a.md" {
		t.Errorf("page = %+v (total %d)", page, total)
	}
}

func TestSync_IndexesBriefcase(t *testing.T) {
	_, loader := testCorpus(t, map[string]string{
		"posts/one.md":  "---\ntype: post\nid: 1\ntitle: One\n---\nFirst post.\n",
		"comments/a.md": "---\ntype: comment\npostId: 1\n---\nNice.\n",
		"comments/b.md": "---\ntype: comment\npostId: 2\n---\nOrphan.\n",
	})
	bc, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "stale.md", Checksum: "s"}, "")

	if err := Sync(db, bc, testLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	paths, _ := db.AllPaths()
	if len(paths) != 3 {
		t.Errorf("paths = %v", paths)
	}
	if _, ok := paths["stale.md"]; ok {
		t.Error("stale document not removed")
	}
	row, err := db.GetDocument("posts/one.md")
	if err != nil || row.Title != "One" || row.GroupName != "posts" {
		t.Errorf("row = %+v, %v", row, err)
	}

	in, _ := db.Inbound("posts/one.md")
	if len(in) != 1 || in[0].Source != "comments/a.md" || in[0].Relationship != "post" {
		t.Errorf("inbound = %+v", in)
	}
	_, links, err := db.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	// comments -> a, and a -> post.
	if len(links) != 2 {
		t.Errorf("links = %+v", links)
	}
}

func TestGraph_SkipsDanglingLinks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "a.md", Title: "A", Checksum: "1"}, "")
	_ = db.ReplaceRelations("a.md", []models.Relation{{Relationship: "r", Target: "missing.md"}})

	nodes, links, err := db.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(nodes) != 1 || len(links) != 0 {
		t.Errorf("nodes=%+v links=%+v", nodes, links)
	}
}
