package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/store"
	"github.com/rushteam/graphrec/train"
	"github.com/rushteam/graphrec/vector"
)

// 训练 → 发布 → 推荐 的完整链路。
func TestTrainPublishRecommend(t *testing.T) {
	ctx := context.Background()
	edges := []core.InteractionEdge{
		{UserID: 1, ItemID: itemA, Weight: 1.0},
		{UserID: 1, ItemID: itemB, Weight: 0.8},
		{UserID: 2, ItemID: itemB, Weight: 1.0},
		{UserID: 2, ItemID: itemC, Weight: 0.9},
		{UserID: 3, ItemID: itemA, Weight: 0.6},
	}
	cfg := train.DefaultConfig()
	cfg.Dim = 8
	cfg.MaxEpochs = 200
	cfg.BatchSize = 16
	cfg.LearningRate = 0.05
	cfg.HoldoutRatio = 0
	cfg.Patience = 0

	tr := train.New(cfg, zerolog.Nop(), nil)
	out, err := tr.Fit(ctx, edges)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if out.Losses[len(out.Losses)-1] >= out.Losses[0] {
		t.Fatalf("loss did not decrease: first %v last %v", out.Losses[0], out.Losses[len(out.Losses)-1])
	}

	s := store.NewEmbeddingStore(vector.DefaultIndexOptions(), zerolog.Nop(), nil)
	if _, err := s.Put(ctx, out.Version, out.Users, out.Items, nil); err != nil {
		t.Fatal(err)
	}
	view, _ := s.Current()
	if view.Dimension(core.SpaceCollaborative) != cfg.Dim {
		t.Fatalf("dimension = %d", view.Dimension(core.SpaceCollaborative))
	}

	e, err := New(s, DefaultConfig(), WithMetadata(testCatalog(t)))
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.RecommendForUser(ctx, 1, 2, UserOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := ids(t, res)
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	for _, id := range got {
		if id == itemC {
			t.Fatalf("C ranked in the top 2: %v", got)
		}
	}

	res, err = e.RecommendColdStart(ctx, core.ColdStartRequest{Genres: []string{"Action"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(t, res); !equalIDs(got, []int64{itemA, itemC}) {
		t.Fatalf("Action = %v", got)
	}
}
