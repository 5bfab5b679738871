// Package catalog 从 YAML 文件加载物品目录，提供类型与标题查询。
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/graphrec/core"
)

// Entry 是目录中的一个物品。
type Entry struct {
	ID     int64    `yaml:"id" json:"id"`
	Title  string   `yaml:"title" json:"title"`
	Genres []string `yaml:"genres" json:"genres"`
}

type document struct {
	Items []Entry `yaml:"items"`
}

// File 是只读的内存目录。
type File struct {
	ids     []int64
	entries map[int64]Entry
}

// New 从条目构建目录，重复 ID 返回 INVALID_INPUT。
func New(entries []Entry) (*File, error) {
	f := &File{entries: make(map[int64]Entry, len(entries))}
	for _, e := range entries {
		if e.ID == 0 {
			return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "catalog item without id")
		}
		if _, dup := f.entries[e.ID]; dup {
			return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, fmt.Sprintf("duplicate catalog item %d", e.ID))
		}
		e.Genres = append([]string(nil), e.Genres...)
		f.entries[e.ID] = e
		f.ids = append(f.ids, e.ID)
	}
	sort.Slice(f.ids, func(i, j int) bool { return f.ids[i] < f.ids[j] })
	return f, nil
}

// Parse 解析 YAML：
//
//	items:
//	  - id: 1
//	    title: Heat
//	    genres: [Action, Crime]
func Parse(data []byte) (*File, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Items)
}

// Load 读取并解析 YAML 文件。
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func (f *File) Len() int { return len(f.ids) }

// GenresOf 返回物品类型，未知物品返回空切片。
func (f *File) GenresOf(_ context.Context, itemID int64) ([]string, error) {
	e, ok := f.entries[itemID]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), e.Genres...), nil
}

// CatalogItems 返回全部物品 ID（升序）。
func (f *File) CatalogItems(context.Context) ([]int64, error) {
	return append([]int64(nil), f.ids...), nil
}

func (f *File) TitleOf(_ context.Context, itemID int64) (string, bool) {
	e, ok := f.entries[itemID]
	return e.Title, ok
}

// Entry 返回物品条目。
func (f *File) Entry(itemID int64) (Entry, bool) {
	e, ok := f.entries[itemID]
	return e, ok
}

var _ core.MetadataProvider = (*File)(nil)
