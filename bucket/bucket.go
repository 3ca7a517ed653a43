package bucket

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const headerMarker = "Bucket"

// Bucket is one k-bucket of a routing table dump.
type Bucket struct {
	ID    int      `json:"id" cbor:"id"`
	Peers []string `json:"peers" cbor:"peers"`
}

// Label is the name the bucket carries in tree exports.
func (b Bucket) Label() string {
	return fmt.Sprintf("Bucket %d", b.ID)
}

func (b Bucket) Contains(peer string) bool {
	for _, p := range b.Peers {
		if p == peer {
			return true
		}
	}
	return false
}

// Find returns the first bucket holding peer.
func Find(buckets []Bucket, peer string) (Bucket, bool) {
	for _, b := range buckets {
		if b.Contains(peer) {
			return b, true
		}
	}
	return Bucket{}, false
}

// ReadFile parses the routing table dump at path.
func ReadFile(path string) ([]Bucket, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buckets, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket dump %s: %w", path, err)
	}

	return buckets, nil
}

// Parse reads a routing table dump as printed by the DHT stats command.
// Bad lines are skipped; only read errors are returned.
func Parse(r io.Reader) ([]Bucket, error) {
	logger := log.With().Str("component", "bucket").Logger()

	var buckets []Bucket
	current := -1

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)

		if strings.HasPrefix(fields[0], headerMarker) {
			id, ok := parseHeader(line)
			if !ok {
				logger.Debug().Int("line", lineNo).Msg("skipping bucket header without id")
				continue
			}

			buckets = append(buckets, Bucket{ID: id, Peers: []string{}})
			current = len(buckets) - 1

			if peer := peerAfterAt(fields); peer != "" {
				buckets[current].Peers = append(buckets[current].Peers, peer)
			}
			continue
		}

		if fields[0] == "Peer" || fields[0] == "DHT" {
			continue
		}

		if current < 0 {
			logger.Debug().Int("line", lineNo).Msg("skipping peer line outside of a bucket")
			continue
		}

		peer := parsePeer(line)
		if peer == "" {
			continue
		}
		buckets[current].Peers = append(buckets[current].Peers, peer)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return buckets, nil
}

// parseHeader reads the one or two digit id following the leading marker
// once all whitespace is removed, so "Bucket 12:" is 12 and "Bucket  3 (20 peers)" is 3.
func parseHeader(line string) (int, bool) {
	compact := strings.Join(strings.Fields(line), "")

	if !strings.HasPrefix(compact, headerMarker) {
		return 0, false
	}
	rest := compact[len(headerMarker):]

	n := 0
	for n < len(rest) && n < 2 && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, false
	}

	id, err := strconv.Atoi(rest[:n])
	if err != nil {
		return 0, false
	}

	return id, true
}

func parsePeer(line string) string {
	if peer := peerAfterAt(strings.Fields(line)); peer != "" {
		return peer
	}

	// Entries without the "@" marker keep the id at a fixed column: the
	// fifth field of a single-space split, right after the 4-space indent.
	// Lines indented any other way yield no id.
	raw := strings.Split(line, " ")
	if len(raw) > 4 && raw[0] == "" && raw[1] == "" && raw[2] == "" && raw[3] == "" {
		return strings.TrimSpace(raw[4])
	}

	return ""
}

func peerAfterAt(fields []string) string {
	for i, f := range fields {
		if f == "@" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}
