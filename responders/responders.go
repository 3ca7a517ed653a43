// Package responders reads the daemon log lines that record, per content
// identifier, which peer returned which provider.
package responders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog/log"
)

const cidMarker = "cid"

// Mapping holds responder -> provider maps keyed by CID, in the order the
// CIDs first appeared in the log.
type Mapping struct {
	CIDs  []string
	byCID map[string]map[string]string
}

func NewMapping() *Mapping {
	return &Mapping{
		CIDs:  []string{},
		byCID: make(map[string]map[string]string),
	}
}

// Add records that responder returned provider for c.
func (m *Mapping) Add(c, provider, responder string) {
	responders, ok := m.byCID[c]
	if !ok {
		responders = make(map[string]string)
		m.byCID[c] = responders
		m.CIDs = append(m.CIDs, c)
	}
	responders[responder] = provider
}

// Responders returns the responder -> provider map for c. The map is empty,
// never nil, for unknown CIDs.
func (m *Mapping) Responders(c string) map[string]string {
	if responders, ok := m.byCID[c]; ok {
		return responders
	}
	return map[string]string{}
}

func (m *Mapping) Has(c string) bool {
	_, ok := m.byCID[c]
	return ok
}

func (m *Mapping) Len() int {
	return len(m.CIDs)
}

func ReadFile(path string) (*Mapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daemon log %s: %w", path, err)
	}
	return m, nil
}

// Parse reads daemon log lines of the shape
//
//	... cid <cid> <x> <provider> <y> <responder> ...
//
// Tokens are counted from the "cid" marker. Lines without the marker or
// with too few tokens are skipped.
func Parse(r io.Reader) (*Mapping, error) {
	logger := log.With().Str("component", "responders").Logger()
	m := NewMapping()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		index := strings.Index(line, cidMarker)
		if index < 0 {
			continue
		}

		tokens := strings.Fields(line[index:])
		if len(tokens) < 6 {
			logger.Debug().Int("line", lineNo).Msg("skipping short daemon line")
			continue
		}

		c, provider, responder := tokens[1], tokens[3], tokens[5]

		if !m.Has(c) {
			if _, err := cid.Decode(c); err != nil {
				logger.Warn().Str("cid", c).Err(err).Msg("content identifier does not decode")
			}
		}
		for _, id := range []string{provider, responder} {
			if _, err := peer.Decode(id); err != nil {
				logger.Debug().Str("peer", id).Err(err).Msg("peer id does not decode")
			}
		}

		m.Add(c, provider, responder)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return m, nil
}
