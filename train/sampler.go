package train

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/graph"
)

// Sampler 均匀采样负样本，拒绝已知正样本。
//
// known 是完整交互图（含留出边），保证留出的正样本不会被当作负样本。
type Sampler struct {
	known   *graph.Graph
	rng     *rand.Rand
	retries int
}

func NewSampler(known *graph.Graph, rng *rand.Rand, retries int) *Sampler {
	return &Sampler{known: known, rng: rng, retries: retries}
}

// isPositive 判断用户下标 u 是否与物品下标 i 有交互。邻接表按物品下标升序。
func (s *Sampler) isPositive(u, i int) bool {
	adj := s.known.UserAdj(u)
	k := sort.SearchInts(adj, i)
	return k < len(adj) && adj[k] == i
}

// Saturated 判断用户是否已与全部物品交互，此时不存在合法负样本。
func (s *Sampler) Saturated(u int) bool {
	return len(s.known.UserAdj(u)) >= s.known.NumItems()
}

// Negative 为用户下标 u 采样一个负样本物品下标。
// 超过重试预算仍未找到时返回 NEGATIVE_SAMPLING_EXHAUSTED。
func (s *Sampler) Negative(u int) (int, error) {
	n := s.known.NumItems()
	for try := 0; try < s.retries; try++ {
		j := s.rng.Intn(n)
		if !s.isPositive(u, j) {
			return j, nil
		}
	}
	return 0, core.NewDomainError(core.ModuleTrain, core.ErrorCodeNegativeSamplingExhausted,
		fmt.Sprintf("train: no negative item for user %d after %d attempts", s.known.UserID(u), s.retries))
}
