package filter

import (
	"context"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/pkg/dsl"
)

// ExprFilter 只保留表达式求值为 true 的物品。
type ExprFilter struct {
	Program *dsl.Program
}

// NewExprFilter 编译表达式，语法错误返回 INVALID_INPUT。
func NewExprFilter(expr string) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Program: prg}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	keep, err := f.Program.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
