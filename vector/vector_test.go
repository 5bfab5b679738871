package vector

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/rushteam/graphrec/core"
)

func randomTable(t *testing.T, n, dim int, seed int64) *Table {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	ids := make([]int64, n)
	vecs := make([][]float64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
		v := make([]float64, dim)
		for d := range v {
			v[d] = rng.NormFloat64()
		}
		vecs[i] = v
	}
	tbl, err := NewTable(dim, ids, vecs)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func randomQueries(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, n)
	for i := range out {
		q := make([]float64, dim)
		for d := range q {
			q[d] = rng.NormFloat64()
		}
		out[i] = q
	}
	return out
}

func TestNewTableValidation(t *testing.T) {
	if _, err := NewTable(2, []int64{1, 1}, [][]float64{{1, 0}, {0, 1}}); !core.IsInvalidInput(err) {
		t.Fatalf("duplicate id should be rejected, got %v", err)
	}
	if _, err := NewTable(2, []int64{1}, [][]float64{{1, 0, 0}}); !core.IsInvalidInput(err) {
		t.Fatalf("dimension mismatch should be rejected, got %v", err)
	}
	if _, err := NewTable(1, []int64{1}, [][]float64{{math.Inf(1)}}); !core.IsInvalidInput(err) {
		t.Fatalf("non-finite value should be rejected, got %v", err)
	}

	src := [][]float64{{3, 4}, {1, 2}}
	tbl, err := NewTable(2, []int64{9, 2}, src)
	if err != nil {
		t.Fatal(err)
	}
	src[0][0] = 100
	v, ok := tbl.Get(9)
	if !ok || v[0] != 3 {
		t.Fatalf("table must copy its input, got %v", v)
	}
	if ids := tbl.IDs(); ids[0] != 2 || ids[1] != 9 {
		t.Fatalf("ids not sorted: %v", ids)
	}
}

func TestTableBuilder(t *testing.T) {
	b := NewTableBuilder(0)
	if err := b.Insert(1, []float64{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(1, []float64{0, 1, 0}); !core.IsInvalidInput(err) {
		t.Fatalf("second insert of same id should fail, got %v", err)
	}
	if err := b.Upsert(2, []float64{0, 1}); !core.IsInvalidInput(err) {
		t.Fatalf("dimension is fixed by first insert, got %v", err)
	}
	if err := b.Upsert(1, []float64{0, 0, 1}); err != nil {
		t.Fatal(err)
	}
	_ = b.Upsert(3, []float64{1, 1, 1})
	b.Delete(3)

	tbl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 || tbl.Dim() != 3 {
		t.Fatalf("table = %d x %d", tbl.Len(), tbl.Dim())
	}
	if v, _ := tbl.Get(1); v[2] != 1 {
		t.Fatalf("upsert not applied: %v", v)
	}

	again := FromTable(tbl)
	_ = again.Upsert(5, []float64{1, 2, 3})
	if tbl.Has(5) {
		t.Fatalf("builder writes must not leak into a built table")
	}
}

func TestCentroid(t *testing.T) {
	one := []float64{0.1, -0.7, 3.3}
	got := Centroid([][]float64{one})
	for i := range one {
		if got[i] != one[i] {
			t.Fatalf("centroid of a single vector must equal it: %v vs %v", got, one)
		}
	}
	got = Centroid([][]float64{{1, 2}, {3, 6}})
	if got[0] != 2 || got[1] != 4 {
		t.Fatalf("centroid = %v", got)
	}
}

func TestFlatOrderingAndTies(t *testing.T) {
	tbl, err := NewTable(2,
		[]int64{5, 3, 8, 1},
		[][]float64{{1, 0}, {1, 0}, {0, 1}, {0.5, 0}})
	if err != nil {
		t.Fatal(err)
	}
	f := NewFlat(tbl, core.MetricInnerProduct)
	got, err := f.Search(context.Background(), []float64{2, 0}, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{3, 5, 1}
	for i, it := range got {
		if it.ID != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	got, _ = f.Search(context.Background(), []float64{2, 0}, 10, map[int64]struct{}{3: {}})
	if len(got) != 3 || got[0].ID != 5 {
		t.Fatalf("exclude not honoured: %v", got)
	}
}

func TestFlatCosineIgnoresMagnitude(t *testing.T) {
	tbl, _ := NewTable(2, []int64{1, 2}, [][]float64{{10, 0}, {0.6, 0.8}})
	f := NewFlat(tbl, core.MetricCosine)
	got, _ := f.Search(context.Background(), []float64{0.6, 0.8}, 2, nil)
	if got[0].ID != 2 || math.Abs(got[0].Score-1) > 1e-9 {
		t.Fatalf("cosine search = %v", got)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	tbl := randomTable(t, 10, 4, 1)
	for _, idx := range []Index{NewFlat(tbl, core.MetricCosine), NewHNSW(tbl, core.MetricCosine, HNSWConfig{})} {
		if _, err := idx.Search(context.Background(), []float64{1, 2}, 3, nil); !core.IsInvalidInput(err) {
			t.Fatalf("%T: expected invalid input, got %v", idx, err)
		}
	}
}

func TestSearchCancelled(t *testing.T) {
	tbl := randomTable(t, 500, 8, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, idx := range []Index{NewFlat(tbl, core.MetricCosine), NewHNSW(tbl, core.MetricCosine, HNSWConfig{})} {
		if _, err := idx.Search(ctx, make([]float64, 8), 5, nil); err != context.Canceled {
			t.Fatalf("%T: expected context.Canceled, got %v", idx, err)
		}
	}
}

func TestHNSWRecallAgainstExact(t *testing.T) {
	const dim, k = 16, 10
	tbl := randomTable(t, 1000, dim, 3)
	exact := NewFlat(tbl, core.MetricCosine)
	approx := NewHNSW(tbl, core.MetricCosine, HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 100, Seed: 1})

	recall, err := MeasureRecall(context.Background(), exact, approx, randomQueries(100, dim, 4), k)
	if err != nil {
		t.Fatal(err)
	}
	if recall < 0.9 {
		t.Fatalf("HNSW recall@%d = %.3f, want >= 0.9", k, recall)
	}
}

func TestHNSWExcludeAndOrdering(t *testing.T) {
	tbl := randomTable(t, 300, 8, 5)
	approx := NewHNSW(tbl, core.MetricCosine, HNSWConfig{})
	q, _ := tbl.Get(7)
	got, err := approx.Search(context.Background(), q, 5, map[int64]struct{}{7: {}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d", len(got))
	}
	for i, it := range got {
		if it.ID == 7 {
			t.Fatalf("excluded id returned")
		}
		if i > 0 && got[i-1].Score < it.Score {
			t.Fatalf("results not sorted: %v", got)
		}
	}
}

func TestBuildIndexHonoursMinRecall(t *testing.T) {
	tbl := randomTable(t, 600, 12, 6)
	opts := DefaultIndexOptions()
	opts.MinSize = 100
	idx, report, err := BuildIndex(context.Background(), tbl, core.MetricInnerProduct, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Approximate {
		if _, ok := idx.(*Flat); !ok {
			t.Fatalf("non-approximate report must come with an exact index")
		}
		return
	}
	if report.Recall < opts.MinRecall {
		t.Fatalf("approximate index accepted with recall %.3f", report.Recall)
	}
}

func TestRecallQueriesComeFromQueryTable(t *testing.T) {
	items := randomTable(t, 100, 4, 1)
	users := randomTable(t, 30, 4, 2)

	got := recallQueries(items, 10, users)
	if len(got) != 10 {
		t.Fatalf("len = %d", len(got))
	}
	for i, q := range got {
		_, want := users.At(i * 3)
		for d := range q {
			if q[d] != want[d] {
				t.Fatalf("query %d is not user row %d", i, i*3)
			}
		}
	}

	wrongDim := randomTable(t, 30, 8, 3)
	for name, qs := range map[string][][]float64{
		"none":      recallQueries(items, 10),
		"nil":       recallQueries(items, 10, nil),
		"dimension": recallQueries(items, 10, wrongDim),
	} {
		if len(qs) != 10 {
			t.Fatalf("%s: len = %d", name, len(qs))
		}
		if _, want := items.At(0); qs[0][0] != want[0] {
			t.Fatalf("%s: fallback queries should come from the indexed table", name)
		}
	}
}

func TestBuildIndexWithUserQueries(t *testing.T) {
	items := randomTable(t, 600, 12, 6)
	users := randomTable(t, 200, 12, 9)
	opts := DefaultIndexOptions()
	opts.MinSize = 100
	idx, report, err := BuildIndex(context.Background(), items, core.MetricInnerProduct, opts, users)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Approximate {
		if _, ok := idx.(*Flat); !ok {
			t.Fatalf("non-approximate report must come with an exact index")
		}
		return
	}
	recall, err := MeasureRecall(context.Background(), NewFlat(items, core.MetricInnerProduct), idx, recallQueries(items, opts.RecallSample, users), opts.RecallK)
	if err != nil {
		t.Fatal(err)
	}
	if recall < opts.MinRecall {
		t.Fatalf("accepted index has user-query recall %.3f", recall)
	}
}

func TestBuildIndexSmallTableIsExact(t *testing.T) {
	tbl := randomTable(t, 20, 4, 7)
	idx, report, err := BuildIndex(context.Background(), tbl, core.MetricCosine, DefaultIndexOptions())
	if err != nil {
		t.Fatal(err)
	}
	if report.Approximate {
		t.Fatalf("small table should use exact search")
	}
	if _, ok := idx.(*Flat); !ok {
		t.Fatalf("index = %T", idx)
	}
}
