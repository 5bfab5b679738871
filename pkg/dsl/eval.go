package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/graphrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译好的候选过滤表达式，使用 CEL (Common Expression Language) 语法。
// 编译一次，可在多个 goroutine 中并发求值。
//
// 可用变量：
//   - item.id / item.score / item.features["recall.genre"]
//   - label.<key>：物品 label 的值，例如 label.genre.contains("Action")
//   - rctx.user_id / rctx.bucket / rctx.genres / rctx.query
//
// 访问不存在的 label 会求值失败，先用 has(label.key) 判断存在性。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；表达式必须返回 bool。语法错误返回 INVALID_INPUT。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, core.WrapDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "compile filter expression", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput,
			fmt.Sprintf("filter expression must return bool, got %s", out))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "build filter program", err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string { return p.expr }

// Match 对单个物品求值。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

func buildInput(it *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = v.Value
	}
	features := make(map[string]float64, len(it.Features))
	for k, v := range it.Features {
		features[k] = v
	}
	item := map[string]any{
		"id":       it.ID,
		"score":    it.Score,
		"features": features,
	}

	rc := map[string]any{
		"user_id": int64(0),
		"bucket":  "",
		"genres":  []string{},
		"query":   "",
	}
	if rctx != nil {
		rc["user_id"] = rctx.UserID
		rc["bucket"] = rctx.Bucket
		if cs := rctx.ColdStart; cs != nil {
			if cs.Genres != nil {
				rc["genres"] = cs.Genres
			}
			rc["query"] = cs.Query
		}
	}

	return map[string]any{
		"item":  item,
		"label": labels,
		"rctx":  rc,
	}
}
