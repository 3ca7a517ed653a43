package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	queryMarker    = "querying"
	responseMarker = "says"
	answerMarker   = "use"
	providerMarker = "provider:"
	timeDelimiter  = ": "
)

// Parser classifies trace lines and numbers the resulting events.
type Parser struct {
	next int
}

func NewParser() *Parser {
	return &Parser{}
}

// ParseLine classifies a single trace line. The second return value is
// false for lines that carry no event: continuation lines starting with a
// tab, lines without a known marker and malformed responses.
func (p *Parser) ParseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || line[0] == '\t' {
		return nil, false
	}

	ts, payload := "", line
	if index := strings.Index(line, timeDelimiter); index >= 0 {
		ts = line[:index]
		payload = line[index+len(timeDelimiter):]
	}

	tokens := strings.Fields(payload)
	if len(tokens) == 0 {
		return nil, false
	}

	switch {
	case indexOf(tokens, queryMarker) >= 0:
		return QueryEvent{Header: p.header(ts), Peer: tokens[len(tokens)-1]}, true

	case indexOf(tokens, responseMarker) >= 0:
		says := indexOf(tokens, responseMarker)
		use := indexOf(tokens, answerMarker)
		if says == 0 || use < 0 {
			return nil, false
		}

		peers := make([]string, 0, len(tokens)-use-1)
		peers = append(peers, tokens[use+1:]...)

		return ResponseEvent{Header: p.header(ts), Responder: tokens[says-1], Peers: peers}, true

	case indexOf(tokens, providerMarker) >= 0:
		return ProviderEvent{Header: p.header(ts), Provider: tokens[len(tokens)-1]}, true
	}

	return nil, false
}

func (p *Parser) header(ts string) Header {
	h := Header{Seq: p.next, Time: ts}
	p.next++
	return h
}

// Parse streams the events of a trace to fn in file order.
func Parse(r io.Reader, fn func(Event)) error {
	logger := log.With().Str("component", "trace").Logger()
	parser := NewParser()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		ev, ok := parser.ParseLine(scanner.Text())
		if !ok {
			logger.Trace().Int("line", lineNo).Msg("no event on line")
			continue
		}
		fn(ev)
	}

	return scanner.Err()
}

// ParseAll collects every event of a trace.
func ParseAll(r io.Reader) ([]Event, error) {
	var events []Event
	err := Parse(r, func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ReadFile streams the events of the trace file at path to fn.
func ReadFile(path string, fn func(Event)) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := Parse(file, fn); err != nil {
		return fmt.Errorf("failed to parse trace %s: %w", path, err)
	}

	return nil
}

func indexOf(tokens []string, token string) int {
	for i, t := range tokens {
		if t == token {
			return i
		}
	}
	return -1
}
