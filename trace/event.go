package trace

// Event is one classified line of a provider-search trace. The concrete
// type is one of QueryEvent, ResponseEvent or ProviderEvent.
type Event interface {
	UID() int
	Timestamp() string
	event()
}

// Header carries the fields every event shares.
type Header struct {
	Seq  int    `json:"uid"`
	Time string `json:"create_time"`
}

func (h Header) UID() int { return h.Seq }

func (h Header) Timestamp() string { return h.Time }

func (Header) event() {}

// QueryEvent is emitted when the walk starts querying a peer.
type QueryEvent struct {
	Header
	Peer string `json:"id"`
}

// ResponseEvent is emitted when a queried peer answers with closer peers.
type ResponseEvent struct {
	Header
	Responder string   `json:"id"`
	Peers     []string `json:"peers"`
}

// ProviderEvent is emitted for every provider record found.
type ProviderEvent struct {
	Header
	Provider string `json:"id"`
}
