// Package experiment 把用户确定性地分配到实验分组。
package experiment

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	Control   = "control"
	Treatment = "treatment"
)

// Assigner 按 xxhash(十进制用户 ID) mod 分组数 分桶。
// 只依赖用户 ID 与分组列表，不依赖时间或随机数，跨进程重启稳定。
type Assigner struct {
	groups []string
}

// NewAssigner 创建分桶器，groups 为空时使用 control / treatment。
func NewAssigner(groups ...string) *Assigner {
	if len(groups) == 0 {
		groups = []string{Control, Treatment}
	}
	return &Assigner{groups: append([]string(nil), groups...)}
}

func (a *Assigner) Groups() []string { return append([]string(nil), a.groups...) }

// Assign 返回用户所在分组。
func (a *Assigner) Assign(userID int64) string {
	h := xxhash.Sum64String(strconv.FormatInt(userID, 10))
	return a.groups[h%uint64(len(a.groups))]
}
