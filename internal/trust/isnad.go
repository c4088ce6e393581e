package trust

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultMaxDepth bounds BFS traversal when the caller does not ask
	// for a depth.
	DefaultMaxDepth = 5

	// PathCacheTTL is how long a cached path result stays servable.
	PathCacheTTL = time.Hour

	// startTrust is the trust value at the source of a path.
	startTrust = 100.0

	// depthDecayFactor attenuates trust per hop beyond the first.
	depthDecayFactor = 0.7

	// verifiedEdgeBoost multiplies edge trust when the vouchee is verified.
	verifiedEdgeBoost = 1.2
)

// PathResult is the outcome of a trust path query. An unreachable
// target yields Connected=false, Length=-1, Trust=0. That is a
// legitimate result, not an error.
type PathResult struct {
	Path      []string `json:"path"`
	Length    int      `json:"length"`
	Trust     float64  `json:"trust"`
	Connected bool     `json:"connected"`
}

// CachedPath is a previously computed path for an ordered agent pair.
type CachedPath struct {
	Path         []string
	Length       int
	Trust        float64
	CalculatedAt int64
}

// PathCache stores one entry per ordered (from, to) pair. Entries are
// overwritten on recompute and expire by TTL only: vouch changes do not
// purge paths that traverse them, so a stale path may be served for up
// to the TTL after a graph change.
type PathCache interface {
	GetPath(fromID, toID string) (*CachedPath, bool, error)
	PutPath(fromID, toID string, p *CachedPath) error
}

// PathFinder answers shortest trust-weighted path queries (isnad
// queries) over the directed vouch graph.
type PathFinder struct {
	edges EdgeSource
	cache PathCache
	now   func() time.Time
}

// NewPathFinder creates a PathFinder. cache may be nil to disable
// caching (used by tests).
func NewPathFinder(edges EdgeSource, cache PathCache, now func() time.Time) *PathFinder {
	if now == nil {
		now = time.Now
	}
	return &PathFinder{edges: edges, cache: cache, now: now}
}

// FindPath runs breadth-first search from fromID toward toID over
// active vouch edges, bounded at maxDepth hops. BFS returns the path
// with the fewest edges; ties go to the first path discovered at that
// depth. A fresh cache entry short-circuits the traversal.
func (f *PathFinder) FindPath(fromID, toID string, maxDepth int) (*PathResult, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	if fromID == toID {
		// An agent is trivially connected to itself.
		return &PathResult{Path: []string{fromID}, Length: 0, Trust: startTrust, Connected: true}, nil
	}

	now := f.now().Unix()
	if f.cache != nil {
		if cached, ok, err := f.cache.GetPath(fromID, toID); err == nil && ok {
			if now-cached.CalculatedAt < int64(PathCacheTTL.Seconds()) {
				return &PathResult{
					Path:      cached.Path,
					Length:    cached.Length,
					Trust:     cached.Trust,
					Connected: cached.Length >= 0,
				}, nil
			}
		}
	}

	result, err := f.traverse(fromID, toID, maxDepth)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		// Best-effort: a failed cache write must not fail the query.
		_ = f.cache.PutPath(fromID, toID, &CachedPath{
			Path:         result.Path,
			Length:       result.Length,
			Trust:        result.Trust,
			CalculatedAt: now,
		})
	}
	return result, nil
}

// queueEntry is one BFS frontier node: the path taken to reach it and
// the trust accumulated along that path.
type queueEntry struct {
	agentID string
	path    []string
	trust   float64
}

func (f *PathFinder) traverse(fromID, toID string, maxDepth int) (*PathResult, error) {
	visited := map[string]bool{fromID: true}
	queue := []queueEntry{{agentID: fromID, path: []string{fromID}, trust: startTrust}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// Depth of the edges leaving this node: 1 for edges out of the
		// source, 2 for the next ring, and so on.
		depth := len(cur.path)

		edges, err := f.edges.OutboundEdges(cur.agentID)
		if err != nil {
			return nil, fmt.Errorf("fetch edges for %s: %w", cur.agentID, err)
		}

		for _, e := range edges {
			if visited[e.VoucheeID] {
				continue
			}

			edgeTrust := float64(e.Strength) / 100 * math.Sqrt(float64(e.VoucheeReputation)/100)
			if e.VoucheeVerified {
				edgeTrust *= verifiedEdgeBoost
			}
			newTrust := cur.trust * edgeTrust * math.Pow(depthDecayFactor, float64(depth-1))

			newPath := make([]string, len(cur.path), len(cur.path)+1)
			copy(newPath, cur.path)
			newPath = append(newPath, e.VoucheeID)

			if e.VoucheeID == toID {
				return &PathResult{
					Path:      newPath,
					Length:    len(newPath) - 1,
					Trust:     newTrust,
					Connected: true,
				}, nil
			}

			visited[e.VoucheeID] = true
			if len(newPath)-1 < maxDepth {
				queue = append(queue, queueEntry{agentID: e.VoucheeID, path: newPath, trust: newTrust})
			}
		}
	}

	return &PathResult{Path: nil, Length: -1, Trust: 0, Connected: false}, nil
}
