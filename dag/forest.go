package dag

// FindQuery searches the forest depth first from the roots, in root order,
// for a query with the given id. The first match wins.
func (f *Forest) FindQuery(id string) (NodeIndex, bool) {
	visited := make(map[NodeIndex]bool)

	var find func(index NodeIndex) (NodeIndex, bool)
	find = func(index NodeIndex) (NodeIndex, bool) {
		if visited[index] {
			return 0, false
		}
		visited[index] = true

		if f.Nodes[index].ID == id {
			return index, true
		}
		for _, child := range f.Nodes[index].Children {
			if found, ok := find(child); ok {
				return found, true
			}
		}
		return 0, false
	}

	for _, root := range f.Roots {
		if found, ok := find(root); ok {
			return found, true
		}
	}

	return 0, false
}

// FindResponse returns the response node for a peer id. Forests built
// without NewForest or the decoders have no index and are scanned.
func (f *Forest) FindResponse(id string) (NodeIndex, bool) {
	if f.responseByID != nil {
		index, ok := f.responseByID[id]
		return index, ok
	}

	for _, r := range f.Responses {
		if f.Nodes[r].ID == id {
			return r, true
		}
	}
	return 0, false
}

// IterateQueries visits every query reachable from the roots once, parents
// before children, calling fn with the first parent it was reached through.
func (f *Forest) IterateQueries(fn func(query *Node, parent *Node) error) error {
	visited := make(map[NodeIndex]bool)

	var iterate func(index NodeIndex, parent *Node) error
	iterate = func(index NodeIndex, parent *Node) error {
		if visited[index] {
			return nil
		}
		visited[index] = true

		node := &f.Nodes[index]
		if err := fn(node, parent); err != nil {
			return err
		}

		for _, child := range node.Children {
			if err := iterate(child, node); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range f.Roots {
		if err := iterate(root, nil); err != nil {
			return err
		}
	}

	return nil
}

// ProviderIDs lists provider ids in the order they were found.
func (f *Forest) ProviderIDs() []string {
	ids := make([]string, 0, len(f.Providers))
	for _, p := range f.Providers {
		ids = append(ids, f.Nodes[p].ID)
	}
	return ids
}

func (f *Forest) reindex() {
	f.responseByID = make(map[string]NodeIndex, len(f.Responses))
	for _, r := range f.Responses {
		f.responseByID[f.Nodes[r].ID] = r
	}
}
