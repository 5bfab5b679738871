package utils

import "strings"

// Label 记录物品在链路中被打上的标记，例如命中的召回源、匹配到的类型。
// 解释模块与 CEL 过滤表达式都会读取它。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / fusion / rerank / filter
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 以 ',' 累积。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

// SplitLabelValue 把 MergeLabel 累积的 Value 拆回单个值（去重，保持首次出现顺序）。
func SplitLabelValue(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, "|")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
