package graph

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/rushteam/graphrec/core"
)

func sampleEdges() []core.InteractionEdge {
	return []core.InteractionEdge{
		{UserID: 1, ItemID: 10, Weight: 1.0},
		{UserID: 1, ItemID: 11, Weight: 0.8},
		{UserID: 2, ItemID: 11, Weight: 1.0},
		{UserID: 2, ItemID: 12, Weight: 0.9},
		{UserID: 3, ItemID: 10, Weight: 0.6},
	}
}

func TestBuild(t *testing.T) {
	g, err := Build(sampleEdges())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.NumUsers() != 3 || g.NumItems() != 3 || g.NumEdges() != 5 {
		t.Fatalf("sizes = %d/%d/%d", g.NumUsers(), g.NumItems(), g.NumEdges())
	}

	nb, err := g.Neighbors(UserNode, 1)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(nb) != 2 || nb[0] != 10 || nb[1] != 11 {
		t.Fatalf("neighbors of user 1 = %v", nb)
	}

	nd, err := g.NormalizedDegree(ItemNode, 10)
	if err != nil {
		t.Fatalf("NormalizedDegree: %v", err)
	}
	if math.Abs(nd-1/math.Sqrt(2)) > 1e-12 {
		t.Fatalf("normalized degree = %v", nd)
	}
	nd, _ = g.NormalizedDegree(ItemNode, 12)
	if nd != 1 {
		t.Fatalf("normalized degree of single-edge item = %v", nd)
	}

	if w, ok := g.Weight(2, 12); !ok || w != 0.9 {
		t.Fatalf("Weight(2,12) = %v %v", w, ok)
	}
	if g.HasEdge(3, 11) {
		t.Fatalf("unexpected edge (3,11)")
	}
}

func TestBuildEveryNodeHasNeighbors(t *testing.T) {
	g, err := Build(sampleEdges())
	if err != nil {
		t.Fatal(err)
	}
	for u := 0; u < g.NumUsers(); u++ {
		if len(g.UserAdj(u)) == 0 {
			t.Errorf("user %d has no neighbors", g.UserID(u))
		}
	}
	for i := 0; i < g.NumItems(); i++ {
		if len(g.ItemAdj(i)) == 0 {
			t.Errorf("item %d has no neighbors", g.ItemID(i))
		}
	}
}

func TestBuildMalformed(t *testing.T) {
	cases := []struct {
		name  string
		edges []core.InteractionEdge
	}{
		{"empty", nil},
		{"conflicting duplicate", []core.InteractionEdge{
			{UserID: 1, ItemID: 10, Weight: 1.0},
			{UserID: 1, ItemID: 10, Weight: 0.5},
		}},
		{"zero weight", []core.InteractionEdge{{UserID: 1, ItemID: 10, Weight: 0}}},
		{"weight above one", []core.InteractionEdge{{UserID: 1, ItemID: 10, Weight: 1.5}}},
		{"nan weight", []core.InteractionEdge{{UserID: 1, ItemID: 10, Weight: math.NaN()}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.edges)
			if !core.IsMalformedGraph(err) {
				t.Fatalf("expected MALFORMED_GRAPH, got %v", err)
			}
		})
	}
}

func TestBuildCollapsesExactDuplicates(t *testing.T) {
	g, err := Build([]core.InteractionEdge{
		{UserID: 1, ItemID: 10, Weight: 0.5},
		{UserID: 1, ItemID: 10, Weight: 0.5},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.NumEdges() != 1 {
		t.Fatalf("NumEdges = %d", g.NumEdges())
	}
}

func TestNeighborsUnknownNode(t *testing.T) {
	g, _ := Build(sampleEdges())
	if _, err := g.Neighbors(ItemNode, 99); !core.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestSplitKeepsAllNodes(t *testing.T) {
	var edges []core.InteractionEdge
	for u := int64(1); u <= 20; u++ {
		for i := int64(100); i < 110; i++ {
			if (u+i)%3 == 0 {
				continue
			}
			edges = append(edges, core.InteractionEdge{UserID: u, ItemID: i, Weight: 1})
		}
	}
	g, err := Build(edges)
	if err != nil {
		t.Fatal(err)
	}

	train, holdout := g.Split(0.2, rand.New(rand.NewSource(7)))
	if len(holdout) == 0 {
		t.Fatalf("expected holdout edges")
	}
	if train.NumEdges()+len(holdout) != g.NumEdges() {
		t.Fatalf("edges lost: %d + %d != %d", train.NumEdges(), len(holdout), g.NumEdges())
	}
	if train.NumUsers() != g.NumUsers() || train.NumItems() != g.NumItems() {
		t.Fatalf("split dropped nodes")
	}
	for _, e := range holdout {
		if train.HasEdge(e.UserID, e.ItemID) {
			t.Fatalf("holdout edge (%d,%d) still in train graph", e.UserID, e.ItemID)
		}
		u, _ := train.UserIndex(e.UserID)
		if train.UserID(u) != e.UserID {
			t.Fatalf("user index changed after split")
		}
	}
}

func TestSplitTinyGraph(t *testing.T) {
	g, _ := Build([]core.InteractionEdge{{UserID: 1, ItemID: 10, Weight: 1}, {UserID: 2, ItemID: 11, Weight: 1}})
	train, holdout := g.Split(0.5, rand.New(rand.NewSource(1)))
	if len(holdout) != 0 || train != g {
		t.Fatalf("no edge can be held out without isolating a node")
	}
}

func TestReadEdges(t *testing.T) {
	in := "user,item,weight\n1,10,0.5\n# comment\n2, 11\n"
	edges, err := ReadEdges(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("edges = %+v", edges)
	}
	if edges[0] != (core.InteractionEdge{UserID: 1, ItemID: 10, Weight: 0.5}) || edges[1].Weight != 1 {
		t.Fatalf("edges = %+v", edges)
	}

	if _, err := ReadEdges(strings.NewReader("1,10\nx,11\n")); !core.IsMalformedGraph(err) {
		t.Fatalf("err = %v, want MALFORMED_GRAPH", err)
	}
}
