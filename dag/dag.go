package dag

import (
	"github.com/rs/zerolog/log"

	"github.com/HORNET-Storage/dht-hop-tracer/trace"
)

func NewForest() *Forest {
	return &Forest{
		Nodes:        []Node{},
		Roots:        []NodeIndex{},
		Queries:      []NodeIndex{},
		Responses:    []NodeIndex{},
		Providers:    []NodeIndex{},
		responseByID: make(map[string]NodeIndex),
	}
}

func CreateBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		forest: NewForest(),
		logger: log.With().Str("component", "dag").Logger(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Build applies events in order and returns the finished forest.
func Build(events []trace.Event, opts ...BuilderOption) *Forest {
	b := CreateBuilder(opts...)
	for _, ev := range events {
		b.Apply(ev)
	}
	return b.Forest()
}

// BuildFromFile streams the trace at path into a new forest.
func BuildFromFile(path string, opts ...BuilderOption) (*Forest, error) {
	b := CreateBuilder(opts...)
	if err := trace.ReadFile(path, b.Apply); err != nil {
		return nil, err
	}
	return b.Forest(), nil
}

func (b *Builder) Forest() *Forest {
	return b.forest
}

// Apply adds a single event to the forest.
func (b *Builder) Apply(ev trace.Event) {
	switch e := ev.(type) {
	case trace.QueryEvent:
		b.addQuery(e)
	case trace.ResponseEvent:
		b.addResponse(e)
	case trace.ProviderEvent:
		b.addProvider(e)
	}
}

func (b *Builder) addQuery(e trace.QueryEvent) {
	f := b.forest
	q := f.newNode(QueryNodeType, e.Peer, e.Time)

	visited := make(map[NodeIndex]bool)
	for _, root := range f.Roots {
		f.linkUnderMatches(root, q, visited)
	}

	if len(f.Nodes[q].Parents) == 0 {
		f.Roots = append(f.Roots, q)
	}
	f.Queries = append(f.Queries, q)
}

// linkUnderMatches walks the subtree at target and links q under every
// query that received an answer carrying q's id.
func (f *Forest) linkUnderMatches(target, q NodeIndex, visited map[NodeIndex]bool) {
	if visited[target] {
		return
	}
	visited[target] = true

	id := f.Nodes[q].ID
	for _, answer := range f.Nodes[target].Answers {
		if f.Nodes[answer].ID != id {
			continue
		}
		f.Nodes[target].Children = appendUnique(f.Nodes[target].Children, q)
		f.Nodes[q].Parents = appendUnique(f.Nodes[q].Parents, target)
	}

	for _, child := range f.Nodes[target].Children {
		f.linkUnderMatches(child, q, visited)
	}
}

func (b *Builder) addResponse(e trace.ResponseEvent) {
	f := b.forest

	origin, ok := f.FindQuery(e.Responder)
	if !ok {
		if b.strict || len(f.Queries) == 0 {
			f.Dropped++
			b.logger.Debug().Str("responder", e.Responder).Int("uid", e.Seq).Msg("dropping response without origin query")
			return
		}
		origin = f.Queries[len(f.Queries)-1]
		b.logger.Debug().Str("responder", e.Responder).Str("origin", f.Nodes[origin].ID).Msg("attributing response to latest query")
	}

	for _, peer := range e.Peers {
		r, exists := f.responseByID[peer]
		if !exists {
			r = f.newNode(ResponseNodeType, peer, e.Time)
			f.responseByID[peer] = r
			f.Responses = append(f.Responses, r)
		}

		f.Nodes[r].Parents = appendUnique(f.Nodes[r].Parents, origin)
		f.Nodes[origin].Answers = appendUnique(f.Nodes[origin].Answers, r)
	}
}

func (b *Builder) addProvider(e trace.ProviderEvent) {
	f := b.forest
	p := f.newNode(ProviderNodeType, e.Provider, e.Time)
	f.Providers = append(f.Providers, p)
}

func (f *Forest) newNode(nodeType NodeType, id, ts string) NodeIndex {
	index := NodeIndex(len(f.Nodes))
	f.Nodes = append(f.Nodes, Node{
		Type:       nodeType,
		ID:         id,
		CreateTime: ts,
		UID:        int(index),
	})
	return index
}

func appendUnique(list []NodeIndex, index NodeIndex) []NodeIndex {
	for _, existing := range list {
		if existing == index {
			return list
		}
	}
	return append(list, index)
}
