package dsl

import (
	"testing"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/pkg/utils"
)

func TestProgramMatch(t *testing.T) {
	it := core.NewItem(42)
	it.Score = 0.8
	it.SetFeature("recall.genre", 0.5)
	it.PutLabel(core.LabelGenre, utils.Label{Value: "Action|Drama"})
	rctx := &core.RecommendContext{
		UserID:    7,
		Bucket:    "treatment",
		ColdStart: &core.ColdStartRequest{Genres: []string{"Action"}, Query: "heist"},
	}

	cases := []struct {
		expr string
		want bool
	}{
		{`item.id == 42`, true},
		{`item.score > 0.5 && item.features["recall.genre"] == 0.5`, true},
		{`label.genre.contains("Drama")`, true},
		{`has(label.missing)`, false},
		{`rctx.user_id == 7 && rctx.bucket == "treatment"`, true},
		{`"Action" in rctx.genres && rctx.query.startsWith("hei")`, true},
		{`item.id != 42`, false},
	}
	for _, tc := range cases {
		prg, err := Compile(tc.expr)
		if err != nil {
			t.Fatalf("compile %q: %v", tc.expr, err)
		}
		got, err := prg.Match(it, rctx)
		if err != nil {
			t.Fatalf("match %q: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Errorf("%q = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestCompileRejects(t *testing.T) {
	for _, expr := range []string{`item.id ==`, `1 + 2`, `"x"`} {
		if _, err := Compile(expr); !core.IsInvalidInput(err) {
			t.Errorf("Compile(%q) err = %v, want INVALID_INPUT", expr, err)
		}
	}
}

func TestMatchNilContext(t *testing.T) {
	prg, err := Compile(`rctx.user_id == 0 && size(rctx.genres) == 0`)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := prg.Match(core.NewItem(1), nil)
	if err != nil || !ok {
		t.Fatalf("match = %v %v", ok, err)
	}
}
