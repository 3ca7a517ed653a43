// Package hops computes how many DHT hops separated the requester from the
// peer that answered a provider search.
package hops

import (
	"sort"

	"github.com/HORNET-Storage/dht-hop-tracer/dag"
)

// Result is the hop count reported for one content identifier. A hop
// count of 0 means no provider was found.
type Result struct {
	CID       string   `json:"cid" cbor:"cid"`
	Hops      int      `json:"ipfs_hop" cbor:"ipfs_hop"`
	Providers int      `json:"providers" cbor:"providers"`
	Matched   []string `json:"matched,omitempty" cbor:"matched,omitempty"`
}

func (r Result) Reachable() bool {
	return r.Hops > 0
}

// Invert turns a responder -> provider mapping into provider -> responder.
// Responders are visited in sorted order so that when several responders
// returned the same provider the lexically last one wins.
func Invert(responders map[string]string) map[string]string {
	keys := make([]string, 0, len(responders))
	for responder := range responders {
		keys = append(keys, responder)
	}
	sort.Strings(keys)

	inverted := make(map[string]string, len(responders))
	for _, responder := range keys {
		inverted[responders[responder]] = responder
	}
	return inverted
}

// Depth counts the queries on the path from index up to a root, following
// the first recorded parent at each level. With several parents this is
// the first-discovered path, not necessarily the shortest or longest one.
func Depth(forest *dag.Forest, index dag.NodeIndex) int {
	depth := 0
	seen := make(map[dag.NodeIndex]bool)

	current := index
	for !seen[current] {
		seen[current] = true
		depth++

		parents := forest.Nodes[current].Parents
		if len(parents) == 0 {
			break
		}
		current = parents[0]
	}

	return depth
}

// Analyze reports the largest depth among the queries sent to peers that
// actually returned a provider. Matched lists those peers in the order the
// walk from the roots reaches them.
func Analyze(cid string, forest *dag.Forest, responders map[string]string) Result {
	result := Result{CID: cid, Providers: len(forest.Providers)}
	if len(forest.Providers) == 0 {
		return result
	}

	answered := make(map[string]bool)
	for _, responder := range Invert(responders) {
		answered[responder] = true
	}

	matched := make(map[string]bool)
	// The callback never fails, so neither does the walk.
	_ = forest.IterateQueries(func(query *dag.Node, _ *dag.Node) error {
		if !answered[query.ID] {
			return nil
		}

		if !matched[query.ID] {
			matched[query.ID] = true
			result.Matched = append(result.Matched, query.ID)
		}

		if depth := Depth(forest, dag.NodeIndex(query.UID)); depth > result.Hops {
			result.Hops = depth
		}
		return nil
	})

	return result
}
