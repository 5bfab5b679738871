package vector

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rushteam/graphrec/core"
)

// Table 是不可变的 ID -> 向量表，所有向量维度一致。
// 构建后可被任意 goroutine 并发读取；Get 返回的切片为只读。
type Table struct {
	dim   int
	ids   []int64 // 升序
	vecs  [][]float64
	index map[int64]int
}

func invalid(format string, args ...any) error {
	return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}

// NewTable 复制输入并构建表。ids 与 vecs 一一对应。
func NewTable(dim int, ids []int64, vecs [][]float64) (*Table, error) {
	if dim <= 0 {
		return nil, invalid("vector: dimension must be positive, got %d", dim)
	}
	if len(ids) != len(vecs) {
		return nil, invalid("vector: %d ids but %d vectors", len(ids), len(vecs))
	}

	order := make([]int, len(ids))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool { return ids[order[a]] < ids[order[b]] })

	t := &Table{
		dim:   dim,
		ids:   make([]int64, len(ids)),
		vecs:  make([][]float64, len(ids)),
		index: make(map[int64]int, len(ids)),
	}
	for pos, k := range order {
		id := ids[k]
		if _, dup := t.index[id]; dup {
			return nil, invalid("vector: duplicate id %d", id)
		}
		if err := checkVector(id, vecs[k], dim); err != nil {
			return nil, err
		}
		v := make([]float64, dim)
		copy(v, vecs[k])
		t.ids[pos] = id
		t.vecs[pos] = v
		t.index[id] = pos
	}
	return t, nil
}

func checkVector(id int64, v []float64, dim int) error {
	if len(v) != dim {
		return invalid("vector: id %d has dimension %d, want %d", id, len(v), dim)
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return invalid("vector: id %d contains non-finite value", id)
		}
	}
	return nil
}

func (t *Table) Dim() int { return t.dim }
func (t *Table) Len() int { return len(t.ids) }

// IDs 返回升序 ID（只读）。
func (t *Table) IDs() []int64 { return t.ids }

// At 按位置读取。
func (t *Table) At(pos int) (int64, []float64) { return t.ids[pos], t.vecs[pos] }

// Get 读取向量（只读）。
func (t *Table) Get(id int64) ([]float64, bool) {
	pos, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.vecs[pos], true
}

// Has 判断 ID 是否存在。
func (t *Table) Has(id int64) bool {
	_, ok := t.index[id]
	return ok
}

// TableBuilder 是可变的暂存区，用于增量写入内容向量后冻结成 Table。
// 线程安全。
type TableBuilder struct {
	mu      sync.RWMutex
	dim     int
	vectors map[int64][]float64
}

// NewTableBuilder 创建暂存区；dim 为 0 时由第一次写入决定。
func NewTableBuilder(dim int) *TableBuilder {
	return &TableBuilder{dim: dim, vectors: make(map[int64][]float64)}
}

// FromTable 以已有表为基础创建暂存区。
func FromTable(t *Table) *TableBuilder {
	b := NewTableBuilder(t.dim)
	for pos, id := range t.ids {
		v := make([]float64, t.dim)
		copy(v, t.vecs[pos])
		b.vectors[id] = v
	}
	return b
}

// Insert 写入新向量，ID 已存在时返回 INVALID_INPUT。
func (b *TableBuilder) Insert(id int64, v []float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.vectors[id]; ok {
		return invalid("vector: id %d already exists", id)
	}
	return b.put(id, v)
}

// Upsert 写入或覆盖向量。
func (b *TableBuilder) Upsert(id int64, v []float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.put(id, v)
}

func (b *TableBuilder) put(id int64, v []float64) error {
	if b.dim == 0 {
		if len(v) == 0 {
			return invalid("vector: empty vector for id %d", id)
		}
		b.dim = len(v)
	}
	if err := checkVector(id, v, b.dim); err != nil {
		return err
	}
	cp := make([]float64, len(v))
	copy(cp, v)
	b.vectors[id] = cp
	return nil
}

// Delete 删除向量，不存在时忽略。
func (b *TableBuilder) Delete(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.vectors, id)
}

func (b *TableBuilder) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.vectors)
}

// Build 冻结为不可变表。暂存区之后仍可继续写入，不影响已构建的表。
func (b *TableBuilder) Build() (*Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]int64, 0, len(b.vectors))
	vecs := make([][]float64, 0, len(b.vectors))
	for id, v := range b.vectors {
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	dim := b.dim
	if dim == 0 {
		return nil, invalid("vector: cannot build an empty table without dimension")
	}
	return NewTable(dim, ids, vecs)
}
