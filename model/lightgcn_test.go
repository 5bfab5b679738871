package model

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/graph"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Build([]core.InteractionEdge{
		{UserID: 1, ItemID: 10, Weight: 1.0},
		{UserID: 1, ItemID: 11, Weight: 0.8},
		{UserID: 2, ItemID: 11, Weight: 1.0},
		{UserID: 2, ItemID: 12, Weight: 0.9},
		{UserID: 3, ItemID: 10, Weight: 0.6},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestPropagateOneLayer(t *testing.T) {
	g := sampleGraph(t)
	e0 := NewEmbeddings(g.NumUsers(), g.NumItems(), 1)
	// 物品 10, 11, 12 的下标为 0, 1, 2
	e0.Items[0][0] = 1
	e0.Items[1][0] = 2
	e0.Items[2][0] = 4

	m := NewLightGCN(g, 1)
	layers, err := m.Propagate(context.Background(), e0)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 2 || layers[0] != e0 {
		t.Fatalf("expected [e0, e1], got %d layers", len(layers))
	}

	// 用户 1: deg 2，物品 10 deg 2，物品 11 deg 2
	want := 1/math.Sqrt(4) + 2/math.Sqrt(4)
	if got := layers[1].Users[0][0]; math.Abs(got-want) > 1e-12 {
		t.Fatalf("user 1 layer 1 = %v, want %v", got, want)
	}
	// 用户 2: deg 2，物品 11 deg 2，物品 12 deg 1
	want = 2/math.Sqrt(4) + 4/math.Sqrt(2)
	if got := layers[1].Users[1][0]; math.Abs(got-want) > 1e-12 {
		t.Fatalf("user 2 layer 1 = %v, want %v", got, want)
	}
	// 物品侧输入为用户，e0 用户全零
	for i := range layers[1].Items {
		if layers[1].Items[i][0] != 0 {
			t.Fatalf("item %d layer 1 should be zero", i)
		}
	}

	if e0.Users[0][0] != 0 {
		t.Fatalf("propagation must not mutate its input")
	}
}

func TestForwardIsLayerMean(t *testing.T) {
	g := sampleGraph(t)
	e0 := RandomEmbeddings(g.NumUsers(), g.NumItems(), 4, 0.1, rand.New(rand.NewSource(1)))
	m := NewLightGCN(g, 3)

	layers, _ := m.Propagate(context.Background(), e0)
	if len(layers) != 4 {
		t.Fatalf("layers = %d", len(layers))
	}
	final, _ := m.Forward(context.Background(), e0)
	for d := 0; d < 4; d++ {
		var sum float64
		for _, l := range layers {
			sum += l.Items[2][d]
		}
		if math.Abs(final.Items[2][d]-sum/4) > 1e-12 {
			t.Fatalf("final embedding is not the layer mean")
		}
	}
}

func TestZeroLayersIsMatrixFactorization(t *testing.T) {
	g := sampleGraph(t)
	e0 := RandomEmbeddings(g.NumUsers(), g.NumItems(), 4, 0.1, rand.New(rand.NewSource(2)))
	m := NewLightGCN(g, 0)
	if m.Layers != 0 {
		t.Fatalf("layers = %d, want 0", m.Layers)
	}

	layers, err := m.Propagate(context.Background(), e0)
	if err != nil || len(layers) != 1 {
		t.Fatalf("layers = %d err = %v", len(layers), err)
	}
	final, err := m.Forward(context.Background(), e0)
	if err != nil {
		t.Fatal(err)
	}
	for u := range e0.Users {
		for d := range e0.Users[u] {
			if final.Users[u][d] != e0.Users[u][d] {
				t.Fatalf("final user %d differs from layer 0", u)
			}
		}
	}
	final.Users[0][0] += 1
	if final.Users[0][0] == e0.Users[0][0] {
		t.Fatal("final embedding aliases layer 0")
	}
}

func TestLossAndGradMatchesFiniteDifference(t *testing.T) {
	g := sampleGraph(t)
	rng := rand.New(rand.NewSource(3))
	e0 := RandomEmbeddings(g.NumUsers(), g.NumItems(), 3, 0.5, rng)
	m := NewLightGCN(g, 2)
	batch := []Triplet{{User: 0, Pos: 0, Neg: 2}, {User: 1, Pos: 2, Neg: 0}, {User: 2, Pos: 0, Neg: 1}}
	const lambda = 1e-2
	ctx := context.Background()

	_, grad, err := m.LossAndGrad(ctx, e0, batch, lambda)
	if err != nil {
		t.Fatal(err)
	}

	lossAt := func(e *Embeddings) float64 {
		l, _, err := m.LossAndGrad(ctx, e, batch, lambda)
		if err != nil {
			t.Fatal(err)
		}
		return l
	}

	const h = 1e-6
	check := func(name string, rows [][]float64, grows [][]float64) {
		for r := range rows {
			for d := range rows[r] {
				orig := rows[r][d]
				rows[r][d] = orig + h
				up := lossAt(e0)
				rows[r][d] = orig - h
				down := lossAt(e0)
				rows[r][d] = orig
				numeric := (up - down) / (2 * h)
				if math.Abs(numeric-grows[r][d]) > 1e-6 {
					t.Errorf("%s[%d][%d]: analytic %.8f numeric %.8f", name, r, d, grows[r][d], numeric)
				}
			}
		}
	}
	check("users", e0.Users, grad.Users)
	check("items", e0.Items, grad.Items)
}

func TestBPRLossDirection(t *testing.T) {
	final := &Embeddings{
		Users: [][]float64{{1, 0}},
		Items: [][]float64{{1, 0}, {-1, 0}},
	}
	e0 := NewEmbeddings(1, 2, 2)
	good, _, _ := BPR(final, e0, []Triplet{{User: 0, Pos: 0, Neg: 1}}, 0)
	bad, _, _ := BPR(final, e0, []Triplet{{User: 0, Pos: 1, Neg: 0}}, 0)
	if !(good < math.Ln2 && bad > math.Ln2) {
		t.Fatalf("loss should be below ln2 when ranking is right: good=%v bad=%v", good, bad)
	}
}

func TestAdamDescends(t *testing.T) {
	p := &Embeddings{Users: [][]float64{{1}}, Items: [][]float64{{-1}}}
	opt := NewAdam(0.1)
	for i := 0; i < 50; i++ {
		// f = ½(u² + i²)
		grad := &Embeddings{Users: [][]float64{{p.Users[0][0]}}, Items: [][]float64{{p.Items[0][0]}}}
		opt.Step(p, grad)
	}
	if math.Abs(p.Users[0][0]) > 0.5 || math.Abs(p.Items[0][0]) > 0.5 {
		t.Fatalf("adam did not move towards the minimum: %v %v", p.Users, p.Items)
	}
}
