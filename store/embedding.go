package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/metrics"
	"github.com/rushteam/graphrec/vector"
)

// EmbeddingStore 是版本化的嵌入存储。
//
// 写入方在锁外构建完整的新快照（表 + 索引），再通过原子指针切换；
// 读者每次请求取一次 Current()，在该请求内始终看到同一个版本。
type EmbeddingStore struct {
	opts    vector.IndexOptions
	logger  zerolog.Logger
	metrics *metrics.Collector

	mu  sync.Mutex // 串行化写入方
	cur atomic.Pointer[Snapshot]
	now func() time.Time
}

// NewEmbeddingStore 创建空存储。发布第一个版本之前 Current 返回 NOT_FOUND。
func NewEmbeddingStore(opts vector.IndexOptions, logger zerolog.Logger, m *metrics.Collector) *EmbeddingStore {
	return &EmbeddingStore{
		opts:    opts,
		logger:  logger.With().Str("component", "embedding_store").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// Current 返回当前版本视图。
func (s *EmbeddingStore) Current() (core.EmbeddingView, error) {
	snap := s.cur.Load()
	if snap == nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "embedding store: no version published")
	}
	return snap, nil
}

// Snapshot 返回当前快照，未发布时为 nil。
func (s *EmbeddingStore) Snapshot() *Snapshot {
	return s.cur.Load()
}

// CurrentVersion 返回当前版本。
func (s *EmbeddingStore) CurrentVersion() (core.ModelVersion, bool) {
	snap := s.cur.Load()
	if snap == nil {
		return core.ModelVersion{}, false
	}
	return snap.version, true
}

// Put 发布新版本。
//
// 任一表为 nil 时沿用当前版本的对应表（例如只重建内容向量，或只重训协同嵌入）。
// version.Seq 为 0 时自动取当前序号 +1；显式给出的序号必须大于当前序号。
// 构建失败时当前版本保持不变。
func (s *EmbeddingStore) Put(ctx context.Context, version core.ModelVersion, users, items, content *vector.Table) (core.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cur.Load()
	if prev != nil {
		if users == nil {
			users = prev.users
		}
		if items == nil {
			items = prev.items
		}
		if content == nil {
			content = prev.content
		}
	}
	if users == nil || items == nil {
		return core.ModelVersion{}, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			"embedding store: first version needs user and item tables")
	}
	if users.Dim() != items.Dim() {
		return core.ModelVersion{}, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			fmt.Sprintf("embedding store: user dimension %d != item dimension %d", users.Dim(), items.Dim()))
	}

	var prevSeq uint64
	if prev != nil {
		prevSeq = prev.version.Seq
	}
	switch {
	case version.Seq == 0:
		version.Seq = prevSeq + 1
	case version.Seq <= prevSeq:
		return core.ModelVersion{}, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			fmt.Sprintf("embedding store: version %d is not newer than %d", version.Seq, prevSeq))
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = s.now()
	}

	snap, err := buildSnapshot(ctx, version, users, items, content, s.opts, s.metrics)
	if err != nil {
		return core.ModelVersion{}, err
	}
	s.cur.Store(snap)
	s.metrics.VersionPublished(version.Seq)

	ev := s.logger.Info().
		Str("version", version.String()).
		Int("users", users.Len()).
		Int("items", items.Len())
	if content != nil {
		ev = ev.Int("content_items", content.Len())
	}
	for space, r := range snap.reports {
		ev = ev.Bool(string(space)+"_ann", r.Approximate).Float64(string(space)+"_recall", r.Recall)
	}
	ev.Msg("embedding version published")
	return version, nil
}

// UserVector 从当前版本读取用户向量。
func (s *EmbeddingStore) UserVector(userID int64) ([]float64, error) {
	view, err := s.Current()
	if err != nil {
		return nil, err
	}
	return view.UserVector(userID)
}

// Vector 从当前版本读取物品向量。
func (s *EmbeddingStore) Vector(itemID int64, space core.Space) ([]float64, error) {
	view, err := s.Current()
	if err != nil {
		return nil, err
	}
	return view.ItemVector(itemID, space)
}

// NearestNeighbors 在当前版本的指定空间内检索。
func (s *EmbeddingStore) NearestNeighbors(ctx context.Context, query []float64, space core.Space, k int, excludeIDs []int64) ([]core.VectorSearchItem, error) {
	view, err := s.Current()
	if err != nil {
		return nil, err
	}
	exclude := make(map[int64]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = struct{}{}
	}
	res, err := view.Search(ctx, &core.VectorSearchRequest{Space: space, Vector: query, TopK: k, Exclude: exclude})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

var _ core.EmbeddingSource = (*EmbeddingStore)(nil)
