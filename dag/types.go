package dag

import "github.com/rs/zerolog"

type NodeType string

const (
	QueryNodeType    NodeType = "query"
	ResponseNodeType NodeType = "response"
	ProviderNodeType NodeType = "provider"
)

// NodeIndex addresses a node in the forest arena.
type NodeIndex int

// Node is a query, response or provider reconstructed from a trace.
// Links are arena indices:
//   - query:    Answers are responses, Children are later queries whose id
//     matched one of those answers, Parents are the queries it was matched under
//   - response: Parents are the queries that returned this peer
//   - provider: no links
type Node struct {
	Type       NodeType    `json:"type" cbor:"type"`
	ID         string      `json:"id" cbor:"id"`
	CreateTime string      `json:"create_time" cbor:"create_time"`
	UID        int         `json:"uid" cbor:"uid"` // equals the arena index
	Answers    []NodeIndex `json:"answers,omitempty" cbor:"answers,omitempty"`
	Children   []NodeIndex `json:"children,omitempty" cbor:"children,omitempty"`
	Parents    []NodeIndex `json:"parents,omitempty" cbor:"parents,omitempty"`
}

// Forest is the query DAG of a single provider search.
type Forest struct {
	Nodes     []Node      `json:"nodes" cbor:"nodes"`
	Roots     []NodeIndex `json:"roots" cbor:"roots"`
	Queries   []NodeIndex `json:"queries" cbor:"queries"`
	Responses []NodeIndex `json:"responses" cbor:"responses"`
	Providers []NodeIndex `json:"providers" cbor:"providers"`

	// Dropped counts responses whose origin query could not be resolved.
	Dropped int `json:"dropped" cbor:"dropped"`

	responseByID map[string]NodeIndex
}

// Builder reconstructs a Forest from trace events. Events must be applied
// in trace order: a query only links under answers that already exist.
// A Builder is not safe for concurrent use.
type Builder struct {
	forest *Forest
	strict bool
	logger zerolog.Logger
}

type BuilderOption func(*Builder)

// WithStrictOrigins drops responses whose responder was never queried
// instead of attributing them to the most recent query.
func WithStrictOrigins() BuilderOption {
	return func(b *Builder) {
		b.strict = true
	}
}

func WithLogger(logger zerolog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}
