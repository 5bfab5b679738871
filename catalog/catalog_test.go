package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/graphrec/core"
)

const sample = `
items:
  - id: 3
    title: Gamma
    genres: [Action, Drama]
  - id: 1
    title: Alpha
    genres: [Action]
  - id: 2
    title: Beta
    genres: [Comedy]
`

func TestParse(t *testing.T) {
	ctx := context.Background()
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	ids, _ := f.CatalogItems(ctx)
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("CatalogItems = %v", ids)
	}
	g, _ := f.GenresOf(ctx, 3)
	if len(g) != 2 || g[1] != "Drama" {
		t.Fatalf("GenresOf(3) = %v", g)
	}
	if g, err := f.GenresOf(ctx, 99); err != nil || len(g) != 0 {
		t.Fatalf("GenresOf(99) = %v, %v", g, err)
	}
	if title, ok := f.TitleOf(ctx, 2); !ok || title != "Beta" {
		t.Fatalf("TitleOf(2) = %q, %v", title, ok)
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte("items:\n  - id: 1\n  - id: 1\n"))
	if !core.IsInvalidInput(err) {
		t.Fatalf("duplicate ids: %v", err)
	}
	if _, err := Parse([]byte("items: [")); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 3 {
		t.Fatalf("Len = %d", f.Len())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
