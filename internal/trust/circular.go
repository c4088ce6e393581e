package trust

// Circular vouch pattern types.
const (
	CircularMutual = "mutual"
	CircularRing   = "ring"
)

// Retained-weight fractions for penalized vouches. A mutual vouch keeps
// half its strength; a ring vouch keeps 30%.
const (
	MutualRetained = 0.5
	RingRetained   = 0.3
)

// maxRingLength bounds the cycle search: only rings of up to four edges
// are treated as gaming patterns.
const maxRingLength = 4

// Edge is one outbound active vouch, joined with the vouchee's trust
// fields for traversal scoring.
type Edge struct {
	VoucheeID         string
	Strength          int
	VoucheeReputation int
	VoucheeVerified   bool
}

// EdgeSource provides outbound active vouch edges per agent. Traversals
// fetch adjacency on demand rather than loading the whole graph.
type EdgeSource interface {
	OutboundEdges(agentID string) ([]Edge, error)
}

// CircularResult reports whether a (voucher, vouchee) pair is part of a
// circular vouching pattern. Retained is the fraction of vouch strength
// kept when the vouch is scored; 1 when no pattern was found.
type CircularResult struct {
	Circular bool    `json:"circular"`
	Type     string  `json:"type,omitempty"`
	RingSize int     `json:"ring_size,omitempty"`
	Retained float64 `json:"retained"`
}

// Detector finds mutual and small-ring vouching patterns.
type Detector struct {
	edges EdgeSource
}

// NewDetector creates a Detector reading adjacency from edges.
func NewDetector(edges EdgeSource) *Detector {
	return &Detector{edges: edges}
}

// DetectCircular checks the candidate or existing vouch voucher->vouchee
// for circularity. Mutual takes priority: an active vouch from vouchee
// back to voucher. Otherwise a directed cycle of length at most four
// starting and ending at voucher marks a ring. Detection is advisory;
// it discounts the vouch's effect but never blocks it.
func (d *Detector) DetectCircular(voucherID, voucheeID string) (*CircularResult, error) {
	back, err := d.edges.OutboundEdges(voucheeID)
	if err != nil {
		return nil, err
	}
	for _, e := range back {
		if e.VoucheeID == voucherID {
			return &CircularResult{Circular: true, Type: CircularMutual, RingSize: 2, Retained: MutualRetained}, nil
		}
	}

	ringSize, found, err := d.findRing(voucherID)
	if err != nil {
		return nil, err
	}
	if found {
		return &CircularResult{Circular: true, Type: CircularRing, RingSize: ringSize, Retained: RingRetained}, nil
	}
	return &CircularResult{Retained: 1}, nil
}

// ringNode is one frontier entry of the ring search: an agent and the
// number of edges taken from the origin to reach it.
type ringNode struct {
	id   string
	hops int
}

// findRing searches breadth-first from origin for a directed cycle that
// returns to origin within maxRingLength edges. Breadth-first order
// reaches every node at its minimum hop count first, so a node shared
// by a long and a short route is always expanded from the short one and
// the smallest cycle through origin is the one reported.
func (d *Detector) findRing(origin string) (int, bool, error) {
	seen := map[string]bool{origin: true}
	queue := []ringNode{{id: origin, hops: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		edges, err := d.edges.OutboundEdges(cur.id)
		if err != nil {
			return 0, false, err
		}
		for _, e := range edges {
			if e.VoucheeID == origin && cur.hops >= 1 {
				return cur.hops + 1, true, nil
			}
			if seen[e.VoucheeID] || cur.hops+1 >= maxRingLength {
				continue
			}
			seen[e.VoucheeID] = true
			queue = append(queue, ringNode{id: e.VoucheeID, hops: cur.hops + 1})
		}
	}
	return 0, false, nil
}
