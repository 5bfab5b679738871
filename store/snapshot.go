package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/metrics"
	"github.com/rushteam/graphrec/vector"
)

// Snapshot 是一个模型版本的完整只读快照：协同空间用户/物品表、内容空间物品表及其索引。
// 发布后不再修改，读者可以无锁并发访问。
type Snapshot struct {
	version core.ModelVersion

	users   *vector.Table
	items   *vector.Table
	content *vector.Table // 可能为 nil

	exact   map[core.Space]vector.Index
	index   map[core.Space]vector.Index
	reports map[core.Space]vector.BuildReport

	metrics *metrics.Collector
}

func buildSnapshot(ctx context.Context, version core.ModelVersion, users, items, content *vector.Table, opts vector.IndexOptions, m *metrics.Collector) (*Snapshot, error) {
	s := &Snapshot{
		version: version,
		users:   users,
		items:   items,
		content: content,
		exact:   make(map[core.Space]vector.Index, 2),
		index:   make(map[core.Space]vector.Index, 2),
		reports: make(map[core.Space]vector.BuildReport, 2),
		metrics: m,
	}
	for space, t := range map[core.Space]*vector.Table{core.SpaceCollaborative: items, core.SpaceContent: content} {
		if t == nil {
			continue
		}
		metric := core.MetricOf(space)
		var queries []*vector.Table
		if space == core.SpaceCollaborative {
			// 协同空间的线上查询是用户向量
			queries = append(queries, users)
		}
		idx, report, err := vector.BuildIndex(ctx, t, metric, opts, queries...)
		if err != nil {
			return nil, fmt.Errorf("build %s index: %w", space, err)
		}
		s.exact[space] = vector.NewFlat(t, metric)
		s.index[space] = idx
		s.reports[space] = report
		m.IndexBuilt(string(space), report.Recall)
	}
	return s, nil
}

func (s *Snapshot) Version() core.ModelVersion { return s.version }

func (s *Snapshot) table(space core.Space) *vector.Table {
	switch space {
	case core.SpaceCollaborative:
		return s.items
	case core.SpaceContent:
		return s.content
	}
	return nil
}

func (s *Snapshot) Dimension(space core.Space) int {
	if t := s.table(space); t != nil {
		return t.Dim()
	}
	return 0
}

// Users 返回协同空间用户表。
func (s *Snapshot) Users() *vector.Table { return s.users }

// Items 返回指定空间的物品表，可能为 nil。
func (s *Snapshot) Items(space core.Space) *vector.Table { return s.table(space) }

// Report 返回索引构建报告。
func (s *Snapshot) Report(space core.Space) (vector.BuildReport, bool) {
	r, ok := s.reports[space]
	return r, ok
}

func notFound(format string, args ...any) error {
	return core.NewDomainError(core.ModuleVector, core.ErrorCodeNotFound, fmt.Sprintf(format, args...))
}

func (s *Snapshot) UserVector(userID int64) ([]float64, error) {
	v, ok := s.users.Get(userID)
	if !ok {
		return nil, notFound("user %d not in version %s", userID, s.version)
	}
	return v, nil
}

func (s *Snapshot) ItemVector(itemID int64, space core.Space) ([]float64, error) {
	if !space.Valid() {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, fmt.Sprintf("unknown space %q", space))
	}
	t := s.table(space)
	if t == nil {
		return nil, notFound("version %s has no %s vectors", s.version, space)
	}
	v, ok := t.Get(itemID)
	if !ok {
		return nil, notFound("item %d not in %s space of version %s", itemID, space, s.version)
	}
	return v, nil
}

func (s *Snapshot) ItemIDs(space core.Space) []int64 {
	if t := s.table(space); t != nil {
		return t.IDs()
	}
	return nil
}

// Search 在请求指定的空间内检索，只使用该空间的相似度，不会跨空间比较。
func (s *Snapshot) Search(ctx context.Context, req *core.VectorSearchRequest) (*core.VectorSearchResult, error) {
	if req == nil {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector search request is nil")
	}
	if !req.Space.Valid() {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, fmt.Sprintf("unknown space %q", req.Space))
	}
	if req.TopK <= 0 {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "topK must be positive")
	}
	idx := s.index[req.Space]
	if req.Exact {
		idx = s.exact[req.Space]
	}
	if idx == nil {
		return nil, notFound("version %s has no %s vectors", s.version, req.Space)
	}

	start := time.Now()
	items, err := idx.Search(ctx, req.Vector, req.TopK, req.Exclude)
	s.metrics.ObserveSearch(string(req.Space), time.Since(start))
	if err != nil {
		return nil, err
	}
	return &core.VectorSearchResult{Items: items}, nil
}

var _ core.EmbeddingView = (*Snapshot)(nil)
