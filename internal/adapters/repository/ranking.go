package repository

import (
	"math"
	"math/rand/v2"
)

// ranking is a treap ordered by rating DESC, then fingerprint ASC, so an
// in-order walk yields the leaderboard from hardest to easiest. Node sizes
// give rank queries in O(log n).

// ratingScale fixes ratings to 9 decimal places so ties compare exactly.
const ratingScale = 1e9

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	switch {
	case math.IsNaN(x):
		return 0
	case x*ratingScale >= math.MaxInt64:
		return math.MaxInt64
	case x*ratingScale <= math.MinInt64:
		return math.MinInt64
	}
	return ratingFP(math.Round(x * ratingScale))
}

func (r ratingFP) float() float64 { return float64(r) / ratingScale }

type node struct {
	key    string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (a, aKey) ranks before (b, bKey).
func less(a ratingFP, aKey string, b ratingFP, bKey string) bool {
	if a != b {
		return a > b
	}
	return aKey < bKey
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, key string, r ratingFP) *node {
	if n == nil {
		return &node{key: key, rating: r, prio: rand.Uint64(), size: 1}
	}
	if less(r, key, n.rating, n.key) {
		n.left = insert(n.left, key, r)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, r)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, key string, r ratingFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case r == n.rating && key == n.key:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, key, r)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, key, r)
		}
	case less(r, key, n.rating, n.key):
		n.left = remove(n.left, key, r)
	default:
		n.right = remove(n.right, key, r)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes rate strictly higher than r.
func countAbove(n *node, r ratingFP) int {
	count := 0
	for n != nil {
		if n.rating > r {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

type ranked struct {
	key    string
	rating ratingFP
}

// collectTop appends up to limit nodes in rank order.
func collectTop(n *node, limit int, out *[]ranked) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, ranked{key: n.key, rating: n.rating})
	}
	if len(*out) < limit {
		collectTop(n.right, limit, out)
	}
}

// ranking indexes one skillset. Not safe for concurrent use.
type ranking struct {
	root  *node
	byKey map[string]ratingFP
}

func newRanking() *ranking {
	return &ranking{byKey: make(map[string]ratingFP)}
}

// set inserts or moves key to rating r.
func (k *ranking) set(key string, r float64) {
	fp := toFixedPoint(r)
	if old, ok := k.byKey[key]; ok {
		if old == fp {
			return
		}
		k.root = remove(k.root, key, old)
	}
	k.byKey[key] = fp
	k.root = insert(k.root, key, fp)
}

// rank returns the competition rank of key (ties share a rank, the next
// rank skips) and its rating.
func (k *ranking) rank(key string) (int, float64, bool) {
	fp, ok := k.byKey[key]
	if !ok {
		return 0, 0, false
	}
	return countAbove(k.root, fp) + 1, fp.float(), true
}

// top returns up to n entries with competition ranks.
func (k *ranking) top(n int) ([]ranked, []int) {
	out := make([]ranked, 0, min(n, len(k.byKey)))
	collectTop(k.root, n, &out)
	ranks := make([]int, len(out))
	for i := range out {
		if i > 0 && out[i].rating == out[i-1].rating {
			ranks[i] = ranks[i-1]
		} else {
			ranks[i] = i + 1
		}
	}
	return out, ranks
}

func (k *ranking) len() int { return len(k.byKey) }
