package engine

import (
	"sort"

	"github.com/latticeforge/veridian/internal/llm"
)

// beamState is one in-flight path of the beam search: the token currently
// occupied, the accumulated attention score, the set of tokens already
// visited (to forbid cycles), and the predicate token sequence built up
// so far (excluding the head and tail entity tokens themselves).
type beamState struct {
	current        int
	totalScore     float32
	visited        map[int]bool
	relationTokens []int
}

func (s beamState) meanScore() float32 {
	if len(s.relationTokens) == 0 {
		return s.totalScore
	}
	return s.totalScore / float32(len(s.relationTokens))
}

func (s beamState) cloneVisited() map[int]bool {
	out := make(map[int]bool, len(s.visited)+1)
	for k := range s.visited {
		out[k] = true
	}
	return out
}

// searchPredicate runs the beam search described by stage 8 for one
// entity pair over a chunk's attention matrix, seeded at the head
// entity's start token. It returns the top-ranked terminal path's
// predicate token indices (empty if the tail was never reached) and that
// path's score.
//
// A path that reaches the tail entity's start token is finalized as a
// terminal candidate immediately, without appending the tail token itself
// to the relation; the search never continues expanding past it.
func searchPredicate(matrix llm.AttentionMatrix, p pair, cfg Config) ([]int, float32, bool) {
	n := len(matrix)
	if n == 0 || p.Head.Start >= n || p.Tail.Start >= n {
		return nil, 0, false
	}

	start := beamState{
		current: p.Head.Start,
		visited: map[int]bool{p.Head.Start: true},
	}

	queue := []beamState{start}
	var terminal []beamState

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		children, reached := expand(matrix, path, p, cfg)
		terminal = append(terminal, reached...)

		children = topByMeanScore(children, cfg.SearchCandidates)
		queue = append(queue, children...)
	}

	if len(terminal) == 0 {
		return nil, 0, false
	}

	best := topByMeanScore(terminal, 1)[0]
	return best.relationTokens, best.meanScore(), true
}

// expand produces every valid next-step path from path, split into
// continuing candidates and paths that terminate this step by reaching
// the tail entity's start token.
func expand(matrix llm.AttentionMatrix, path beamState, p pair, cfg Config) (children, terminal []beamState) {
	n := len(matrix)

	for next := 0; next < n; next++ {
		if next == path.current {
			continue
		}

		weight := matrix[path.current][next]

		if next == p.Tail.Start {
			terminal = append(terminal, beamState{
				current:        next,
				totalScore:     path.totalScore + weight,
				visited:        path.visited,
				relationTokens: path.relationTokens,
			})
			continue
		}

		if insideSpan(next, p.Head) || insideSpan(next, p.Tail) {
			continue
		}
		if path.visited[next] {
			continue
		}

		relation := append(append([]int(nil), path.relationTokens...), next)
		if len(relation) > cfg.MaxRelationLength {
			continue
		}
		if cfg.RequireContiguous && len(relation) >= 2 {
			a, b := relation[len(relation)-2], relation[len(relation)-1]
			if abs(a-b) != 1 {
				continue
			}
		}

		visited := path.cloneVisited()
		visited[next] = true

		children = append(children, beamState{
			current:        next,
			totalScore:     path.totalScore + weight,
			visited:        visited,
			relationTokens: relation,
		})
	}

	return children, terminal
}

func insideSpan(tok int, e entity) bool {
	return tok >= e.Start && tok <= e.End
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// topByMeanScore ranks paths by mean score, descending, and returns at
// most n of them.
func topByMeanScore(paths []beamState, n int) []beamState {
	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].meanScore() > paths[j].meanScore()
	})

	if n > 0 && len(paths) > n {
		paths = paths[:n]
	}
	return paths
}
