package explain

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/catalog"
	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/store"
	"github.com/rushteam/graphrec/vector"
)

func setup(t *testing.T) *Explainer {
	t.Helper()
	users, err := vector.NewTable(2, []int64{1}, [][]float64{{1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	items, err := vector.NewTable(2, []int64{10, 11, 12, 13}, [][]float64{{1, 0}, {0.9, 0.1}, {0, 1}, {0.5, 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	s := store.NewEmbeddingStore(vector.DefaultIndexOptions(), zerolog.Nop(), nil)
	if _, err := s.Put(context.Background(), core.ModelVersion{Tag: "x"}, users, items, nil); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.New([]catalog.Entry{
		{ID: 10, Title: "Alien", Genres: []string{"Sci-Fi"}},
		{ID: 11, Title: "Aliens", Genres: []string{"Action", "Sci-Fi"}},
		{ID: 12, Title: "Amelie", Genres: []string{"Romance"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewExplainer(s, cat)
}

func TestExplainFacts(t *testing.T) {
	e := setup(t)
	x, err := e.Explain(context.Background(), Request{
		ItemID:      11,
		UserID:      1,
		Genres:      []string{"action"},
		SeedItemIDs: []int64{10, 12},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(x.SharedGenres) != 1 || x.SharedGenres[0] != "Action" {
		t.Fatalf("shared = %v", x.SharedGenres)
	}
	if len(x.NearSeeds) != 1 || x.NearSeeds[0].SeedID != 10 {
		t.Fatalf("near seeds = %+v", x.NearSeeds)
	}
	if !x.HasPercentile || math.Abs(x.Percentile-200.0/3) > 1e-9 {
		t.Fatalf("percentile = %v %v", x.Percentile, x.HasPercentile)
	}
	if x.Version == "" {
		t.Fatal("version missing")
	}
	want := "Matches your genres: Action. Similar to what you liked: Alien. Scores above 66% of the catalog for you."
	if x.Text != want {
		t.Fatalf("text = %q", x.Text)
	}
}

func TestExplainWithoutFacts(t *testing.T) {
	e := setup(t)
	x, err := e.Explain(context.Background(), Request{ItemID: 12, Genres: []string{"Action"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(x.SharedGenres) != 0 || len(x.NearSeeds) != 0 || x.HasPercentile {
		t.Fatalf("unexpected facts: %+v", x)
	}
	if x.Text != "No shared genres, liked items or personal score support this item." {
		t.Fatalf("text = %q", x.Text)
	}
}

func TestExplainUnknownUserHasNoPercentile(t *testing.T) {
	x, err := setup(t).Explain(context.Background(), Request{ItemID: 10, UserID: 404})
	if err != nil {
		t.Fatal(err)
	}
	if x.HasPercentile {
		t.Fatal("unknown user should not get a percentile")
	}
}

func TestExplainRequiresItem(t *testing.T) {
	if _, err := setup(t).Explain(context.Background(), Request{}); !core.IsInvalidInput(err) {
		t.Fatalf("err = %v", err)
	}
}
