package graph

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rushteam/graphrec/core"
)

// ReadEdges 读取 user,item[,weight] 格式的 CSV，缺省权重为 1。
// 第一行无法解析为数字时视为表头跳过。
func ReadEdges(r io.Reader) ([]core.InteractionEdge, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var edges []core.InteractionEdge
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("graph: read csv line %d: %v", line, err)
		}
		e, err := parseEdge(rec)
		if err != nil {
			if line == 1 && len(edges) == 0 {
				continue
			}
			return nil, malformed("graph: csv line %d: %v", line, err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func parseEdge(rec []string) (core.InteractionEdge, error) {
	if len(rec) < 2 || len(rec) > 3 {
		return core.InteractionEdge{}, fmt.Errorf("want 2 or 3 fields, got %d", len(rec))
	}
	user, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
	if err != nil {
		return core.InteractionEdge{}, fmt.Errorf("user id: %w", err)
	}
	item, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
	if err != nil {
		return core.InteractionEdge{}, fmt.Errorf("item id: %w", err)
	}
	weight := 1.0
	if len(rec) == 3 && strings.TrimSpace(rec[2]) != "" {
		if weight, err = strconv.ParseFloat(strings.TrimSpace(rec[2]), 64); err != nil {
			return core.InteractionEdge{}, fmt.Errorf("weight: %w", err)
		}
	}
	return core.InteractionEdge{UserID: user, ItemID: item, Weight: weight}, nil
}

// LoadEdges 从文件读取交互边。
func LoadEdges(path string) ([]core.InteractionEdge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edges: %w", err)
	}
	defer f.Close()
	return ReadEdges(f)
}
