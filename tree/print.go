package tree

import (
	"fmt"

	"github.com/disiqueira/gotree"

	"github.com/HORNET-Storage/dht-hop-tracer/bucket"
	"github.com/HORNET-Storage/dht-hop-tracer/dag"
)

const unbucketed = "No bucket"

// Print renders the query forest for a terminal, with each root query under
// the bucket that held it. A query reached a second time is shown once more
// with a marker instead of its subtree.
func Print(title string, forest *dag.Forest, buckets []bucket.Bucket) string {
	root := gotree.New(title)

	groups := make(map[string]gotree.Tree)
	group := func(label string) gotree.Tree {
		if g, ok := groups[label]; ok {
			return g
		}
		g := root.Add(label)
		groups[label] = g
		return g
	}

	printed := make(map[dag.NodeIndex]bool)

	var add func(parent gotree.Tree, index dag.NodeIndex)
	add = func(parent gotree.Tree, index dag.NodeIndex) {
		node := forest.Nodes[index]
		if printed[index] {
			parent.Add(fmt.Sprintf("%s (seen)", node.ID))
			return
		}
		printed[index] = true

		branch := parent.Add(fmt.Sprintf("%s [%d answers]", node.ID, len(node.Answers)))
		for _, child := range node.Children {
			add(branch, child)
		}
	}

	for _, r := range forest.Roots {
		label := unbucketed
		if b, ok := bucket.Find(buckets, forest.Nodes[r].ID); ok {
			label = b.Label()
		}
		add(group(label), r)
	}

	if len(forest.Providers) > 0 {
		providers := root.Add("Providers")
		for _, id := range forest.ProviderIDs() {
			providers.Add(id)
		}
	}

	return root.Print()
}
