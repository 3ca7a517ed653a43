package tree

import (
	"encoding/json"
	"fmt"
	"os"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/HORNET-Storage/dht-hop-tracer/bucket"
	"github.com/HORNET-Storage/dht-hop-tracer/dag"
	"github.com/HORNET-Storage/dht-hop-tracer/hops"
)

// ExportNode is one node of the level export, in the shape the tangled
// tree visualization reads.
type ExportNode struct {
	ID      string   `json:"id" cbor:"id"`
	Parents []string `json:"parents,omitempty" cbor:"parents,omitempty"`
}

type Level []ExportNode

// Levels is the full export: buckets first, then the query levels, then
// the providers.
type Levels []Level

// Export flattens the forest level by level. Level 0 lists the buckets,
// level 1 the root queries linked to the bucket holding them, and every
// following level the children of the previous one. Nodes with the same id
// on a level are merged and their parent labels unioned; only the first of
// them has its children carried to the next level. The last level
// links each provider to the peer that returned it.
func Export(forest *dag.Forest, buckets []bucket.Bucket, responders map[string]string) Levels {
	bucketLevel := make(Level, 0, len(buckets))
	for _, b := range buckets {
		bucketLevel = append(bucketLevel, ExportNode{ID: b.Label()})
	}

	levels := Levels{bucketLevel}

	current := append([]dag.NodeIndex(nil), forest.Roots...)
	isRoot := true

	// A level can never be deeper than the number of nodes.
	for depth := 0; len(current) > 0 && depth <= len(forest.Nodes); depth++ {
		level := Level{}
		position := make(map[string]int)
		var next []dag.NodeIndex

		for _, index := range current {
			node := forest.Nodes[index]

			var labels []string
			if isRoot {
				if b, ok := bucket.Find(buckets, node.ID); ok {
					labels = []string{b.Label()}
				}
			} else {
				for _, parent := range node.Parents {
					labels = append(labels, forest.Nodes[parent].ID)
				}
			}

			if i, ok := position[node.ID]; ok {
				// Merged duplicates contribute parents but not children.
				level[i].Parents = union(level[i].Parents, labels)
				continue
			}

			position[node.ID] = len(level)
			level = append(level, ExportNode{ID: node.ID, Parents: union(nil, labels)})
			next = append(next, node.Children...)
		}

		levels = append(levels, level)
		current = next
		isRoot = false
	}

	inverted := hops.Invert(responders)
	providerLevel := make(Level, 0, len(forest.Providers))
	for i, p := range forest.Providers {
		node := ExportNode{ID: fmt.Sprintf("Provider %d", i)}
		if responder, ok := inverted[forest.Nodes[p].ID]; ok {
			node.Parents = []string{responder}
		}
		providerLevel = append(providerLevel, node)
	}
	levels = append(levels, providerLevel)

	return levels
}

func (l Levels) ToJSON() ([]byte, error) {
	return json.Marshal(l)
}

func (l Levels) ToCBOR() ([]byte, error) {
	return cbor.Marshal(l)
}

func FromJSON(data []byte) (Levels, error) {
	var levels Levels
	if err := json.Unmarshal(data, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// WriteFile writes the JSON export to path.
func (l Levels) WriteFile(path string) error {
	data, err := l.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func union(existing []string, labels []string) []string {
	for _, label := range labels {
		found := false
		for _, e := range existing {
			if e == label {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, label)
		}
	}
	return existing
}
