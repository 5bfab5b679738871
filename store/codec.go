package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/vector"
)

// SnapshotCodec 把嵌入版本持久化到任意 core.Store（Redis / Badger / Memory）。
//
// 键布局：
//
//	<prefix>:<tag>:users
//	<prefix>:<tag>:items
//	<prefix>:<tag>:content   （可选）
//	<prefix>:<tag>:manifest
//	<prefix>:current         指向最新 tag，最后写入
//
// current 切换成功后删除上一个 tag 的全部键，存储中只保留一个版本。
type SnapshotCodec struct {
	kv     core.Store
	prefix string

	Logger zerolog.Logger
}

func NewSnapshotCodec(kv core.Store, prefix string) *SnapshotCodec {
	if prefix == "" {
		prefix = "graphrec"
	}
	return &SnapshotCodec{kv: kv, prefix: prefix, Logger: zerolog.Nop()}
}

var tableNames = []string{"users", "items", "content", "manifest"}

type tableDoc struct {
	Dim     int         `json:"dim"`
	IDs     []int64     `json:"ids"`
	Vectors [][]float64 `json:"vectors"`
}

type manifest struct {
	Seq        uint64    `json:"seq"`
	Tag        string    `json:"tag"`
	CreatedAt  time.Time `json:"created_at"`
	HasContent bool      `json:"has_content"`
}

func encodeTable(t *vector.Table) ([]byte, error) {
	doc := tableDoc{Dim: t.Dim(), IDs: t.IDs(), Vectors: make([][]float64, t.Len())}
	for i := 0; i < t.Len(); i++ {
		_, doc.Vectors[i] = t.At(i)
	}
	return json.Marshal(doc)
}

func decodeTable(b []byte) (*vector.Table, error) {
	var doc tableDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return vector.NewTable(doc.Dim, doc.IDs, doc.Vectors)
}

func (c *SnapshotCodec) key(parts ...string) string {
	k := c.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Save 写入快照。tag 为空时拒绝，因为 tag 是键的一部分。
func (c *SnapshotCodec) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "snapshot is nil")
	}
	v := snap.Version()
	if v.Tag == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "snapshot version has no tag")
	}

	kvs := make(map[string][]byte, 4)
	tables := map[string]*vector.Table{"users": snap.users, "items": snap.items, "content": snap.content}
	for name, t := range tables {
		if t == nil {
			continue
		}
		b, err := encodeTable(t)
		if err != nil {
			return fmt.Errorf("encode %s table: %w", name, err)
		}
		kvs[c.key(v.Tag, name)] = b
	}
	mb, err := json.Marshal(manifest{Seq: v.Seq, Tag: v.Tag, CreatedAt: v.CreatedAt, HasContent: snap.content != nil})
	if err != nil {
		return err
	}
	kvs[c.key(v.Tag, "manifest")] = mb

	var prev string
	if b, err := c.kv.Get(ctx, c.key("current")); err == nil {
		prev = string(b)
	}

	if err := c.kv.BatchSet(ctx, kvs); err != nil {
		return core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "save snapshot", err)
	}
	if err := c.kv.Set(ctx, c.key("current"), []byte(v.Tag)); err != nil {
		return core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "save current pointer", err)
	}
	if prev != "" && prev != v.Tag {
		c.prune(ctx, prev)
	}
	return nil
}

// prune 删除旧 tag 的键。失败只记录日志，新版本已经生效。
func (c *SnapshotCodec) prune(ctx context.Context, tag string) {
	for _, name := range tableNames {
		if err := c.kv.Delete(ctx, c.key(tag, name)); err != nil && !core.IsStoreNotFound(err) {
			c.Logger.Warn().Err(err).Str("tag", tag).Str("table", name).Msg("prune previous snapshot failed")
		}
	}
}

// Load 读取 current 指向的版本。没有保存过时返回 NOT_FOUND。
func (c *SnapshotCodec) Load(ctx context.Context) (core.ModelVersion, *vector.Table, *vector.Table, *vector.Table, error) {
	var zero core.ModelVersion
	tag, err := c.kv.Get(ctx, c.key("current"))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return zero, nil, nil, nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "no saved snapshot")
		}
		return zero, nil, nil, nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "load current pointer", err)
	}

	t := string(tag)
	keys := []string{c.key(t, "manifest"), c.key(t, "users"), c.key(t, "items"), c.key(t, "content")}
	vals, err := c.kv.BatchGet(ctx, keys)
	if err != nil {
		return zero, nil, nil, nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "load snapshot", err)
	}

	var m manifest
	mb, ok := vals[keys[0]]
	if !ok {
		return zero, nil, nil, nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "snapshot manifest missing for "+t)
	}
	if err := json.Unmarshal(mb, &m); err != nil {
		return zero, nil, nil, nil, fmt.Errorf("decode manifest: %w", err)
	}

	decoded := make([]*vector.Table, 3)
	for i, name := range []string{"users", "items", "content"} {
		b, ok := vals[keys[i+1]]
		if !ok {
			if name == "content" && !m.HasContent {
				continue
			}
			return zero, nil, nil, nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound,
				fmt.Sprintf("snapshot %s table missing for %s", name, t))
		}
		tbl, err := decodeTable(b)
		if err != nil {
			return zero, nil, nil, nil, fmt.Errorf("decode %s table: %w", name, err)
		}
		decoded[i] = tbl
	}
	return core.ModelVersion{Seq: m.Seq, Tag: m.Tag, CreatedAt: m.CreatedAt}, decoded[0], decoded[1], decoded[2], nil
}

// Persist 把当前版本写入 codec。
func (s *EmbeddingStore) Persist(ctx context.Context, c *SnapshotCodec) error {
	snap := s.cur.Load()
	if snap == nil {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "embedding store: no version published")
	}
	return c.Save(ctx, snap)
}

// Restore 从 codec 读取最近保存的版本并发布。
// 已保存版本的序号不比当前新时返回 INVALID_INPUT。
func (s *EmbeddingStore) Restore(ctx context.Context, c *SnapshotCodec) (core.ModelVersion, error) {
	v, users, items, content, err := c.Load(ctx)
	if err != nil {
		return core.ModelVersion{}, err
	}
	return s.Put(ctx, v, users, items, content)
}
