package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rushteam/graphrec/core"
)

func appendID(name string, id int64) NodeFunc {
	return NodeFunc{NodeName: name, NodeKind: KindRecall, Fn: func(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
		return append(items, core.NewItem(id)), nil
	}}
}

func TestRunOrder(t *testing.T) {
	base := &Pipeline{Nodes: []Node{appendID("a", 1)}}
	p := base.Append(appendID("b", 2), appendID("c", 3))
	if len(base.Nodes) != 1 {
		t.Fatal("Append mutated the original pipeline")
	}
	out, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0].ID != 1 || out[2].ID != 3 {
		t.Fatalf("out = %v", out)
	}
}

func TestRunWrapsNodeError(t *testing.T) {
	p := &Pipeline{Nodes: []Node{NodeFunc{NodeName: "boom", Fn: func(context.Context, *core.RecommendContext, []*core.Item) ([]*core.Item, error) {
		return nil, core.ErrUnknownUser
	}}}}
	_, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	if !errors.Is(err, core.ErrUnknownUser) || !strings.HasPrefix(err.Error(), "boom: ") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := false
	p := &Pipeline{Nodes: []Node{
		NodeFunc{NodeName: "cancel", Fn: func(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
			cancel()
			return items, nil
		}},
		NodeFunc{NodeName: "after", Fn: func(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
			called = true
			return items, nil
		}},
	}}
	if _, err := p.Run(ctx, &core.RecommendContext{}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if called {
		t.Fatal("node ran after cancellation")
	}
}
