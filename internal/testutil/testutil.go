// Package testutil provides shared test helpers for setting up corpora,
// catalogs and databases.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/brief/internal/content"
	"github.com/starford/brief/internal/index"
	"github.com/starford/brief/internal/schema"
	"github.com/starford/brief/internal/storage"
)

// CatalogYAML declares posts with comments and an author, used across
// package tests.
const CatalogYAML = `
definitions:
  - type: post
    sections:
      summary:
        name: Summary
        aliases: [TL;DR]
    relationships:
      comments:
        hasMany: comment
      author:
        belongsTo: person
  - type: comment
    relationships:
      post:
        belongsTo: post
  - type: person
    groupName: people
`

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "brief-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCorpus creates a temporary corpus directory holding files.
func TestCorpus(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for p, body := range files {
		if err := store.Write(p, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	return store.Root(), store
}

// TestCatalog parses CatalogYAML.
func TestCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	c, err := schema.ParseCatalog([]byte(CatalogYAML))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// Env is a loaded corpus with its index.
type Env struct {
	Root      string
	Store     *storage.FS
	Catalog   *schema.Catalog
	Loader    *content.Loader
	Briefcase *content.Briefcase
	DB        *index.DB
}

// TestEnv loads files into a briefcase and syncs them into a fresh index.
func TestEnv(t *testing.T, files map[string]string) *Env {
	t.Helper()
	root, store := TestCorpus(t, files)
	catalog := TestCatalog(t)
	logger := slog.New(slog.DiscardHandler)
	loader := content.NewLoader(store, catalog, content.Options{Logger: logger}, content.ModelOptions{})
	bc, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}
	db := TestDB(t)
	if err := index.Sync(db, bc, logger); err != nil {
		t.Fatal(err)
	}
	return &Env{Root: root, Store: store, Catalog: catalog, Loader: loader, Briefcase: bc, DB: db}
}
