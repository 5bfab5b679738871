package rank

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/recall"
)

func item(id int64, scores map[string]float64) *core.Item {
	it := core.NewItem(id)
	for src, s := range scores {
		it.SetFeature(recall.ScoreFeature(src), s)
	}
	return it
}

func TestFusionSingleSourceKeepsRawScores(t *testing.T) {
	items := []*core.Item{
		item(2, map[string]float64{recall.SourceGenre: 0.5}),
		item(1, map[string]float64{recall.SourceGenre: 0.5}),
		item(3, map[string]float64{recall.SourceGenre: 1}),
	}
	out, err := (&Fusion{}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{3, 1, 2}
	for i, it := range out {
		if it.ID != want[i] {
			t.Fatalf("order = %v", []int64{out[0].ID, out[1].ID, out[2].ID})
		}
	}
	if out[0].Score != 1 || out[1].Score != 0.5 {
		t.Fatalf("scores changed: %v %v", out[0].Score, out[1].Score)
	}
}

func TestFusionWeightedNormalized(t *testing.T) {
	items := []*core.Item{
		item(1, map[string]float64{recall.SourceSeedCentroid: 10, recall.SourceTextQuery: 0.2}),
		item(2, map[string]float64{recall.SourceSeedCentroid: 0}),
		item(3, map[string]float64{recall.SourceTextQuery: 0.9}),
	}
	f := &Fusion{Weights: map[string]float64{recall.SourceSeedCentroid: 3, recall.SourceTextQuery: 1}}
	out, err := f.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	scores := map[int64]float64{}
	for _, it := range out {
		scores[it.ID] = it.Score
	}
	// seed: 1→1, 2→0；text: 1→0, 3→1；权重 0.75 / 0.25
	if math.Abs(scores[1]-0.75) > 1e-12 || scores[2] != 0 || math.Abs(scores[3]-0.25) > 1e-12 {
		t.Fatalf("scores = %v", scores)
	}
	if out[0].ID != 1 || out[1].ID != 3 || out[2].ID != 2 {
		t.Fatalf("order = %d %d %d", out[0].ID, out[1].ID, out[2].ID)
	}
}

func TestFusionZeroWeightsFallBackToEqual(t *testing.T) {
	items := []*core.Item{
		item(1, map[string]float64{"a": 1}),
		item(2, map[string]float64{"b": 1}),
	}
	f := &Fusion{Weights: map[string]float64{"a": 0, "b": 0}}
	out, _ := f.Process(context.Background(), nil, items)
	if out[0].Score != 0.5 || out[1].Score != 0.5 || out[0].ID != 1 {
		t.Fatalf("out = %+v %+v", out[0], out[1])
	}
}

func TestMinMax(t *testing.T) {
	if MinMax(3, 3, 3) != 1 {
		t.Fatal("degenerate range should map to 1")
	}
	if MinMax(2, 0, 4) != 0.5 {
		t.Fatal("midpoint")
	}
}
