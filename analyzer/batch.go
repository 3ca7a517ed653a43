package analyzer

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog/log"
	"github.com/txaty/gool"

	"github.com/HORNET-Storage/dht-hop-tracer/peers"
	"github.com/HORNET-Storage/dht-hop-tracer/record"
	"github.com/HORNET-Storage/dht-hop-tracer/responders"
)

// RunBatch analyzes every CID in cids, or every CID of the mapping when
// cids is empty, and collects the results into one summary. A CID whose
// logs cannot be read is recorded with its error and does not fail the run.
func RunBatch(config *Config, mapping *responders.Mapping, cids []string, date time.Time) (*record.Summary, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if mapping == nil {
		mapping = responders.NewMapping()
	}

	if len(cids) == 0 {
		cids = mapping.CIDs
	}

	summary := record.NewSummary(date)
	summary.TotalCID = len(cids)
	summary.ReachableCID = mapping.Len()

	logger := log.With().
		Str("component", "batch").
		Str("run", summary.RunID.String()).
		Logger()

	if len(cids) == 0 {
		logger.Warn().Msg("no cids to analyze")
		return summary, nil
	}

	workers := config.workers(len(cids))
	logger.Info().Int("cids", len(cids)).Int("workers", workers).Msg("starting batch")

	pool := gool.NewPool[string, record.Stats](workers, len(cids))
	defer pool.Close()

	handler := func(c string) record.Stats {
		return analyzeOne(config, mapping, c)
	}
	results := pool.Map(handler, cids)

	byCID := make(map[string]record.Stats, len(results))
	for _, st := range results {
		byCID[st.CID] = st
	}

	failed := 0
	for _, c := range cids {
		st := byCID[c]
		if st.Error != "" {
			failed++
		}
		summary.Stats = append(summary.Stats, st)
	}

	logger.Info().
		Int("reachable", summary.Reachable()).
		Int("failed", failed).
		Msg("batch complete")

	return summary, nil
}

func analyzeOne(config *Config, mapping *responders.Mapping, c string) record.Stats {
	st := record.Stats{
		CID:       c,
		Providers: map[string][]peers.Address{},
		P2PAddrs:  map[string][]string{},
	}

	if info, err := record.DescribeCID(c); err == nil {
		st.Info = info
	}

	responderMap := mapping.Responders(c)
	report, err := Analyze(config, c, responderMap)
	if err != nil {
		log.Warn().Str("cid", c).Err(err).Msg("analysis failed")
		st.Error = err.Error()
		return st
	}

	st.IPFSHop = report.Result.Hops

	if fingerprint, err := report.Forest.Fingerprint(); err == nil {
		st.TreeFingerprint = fingerprint.String()
	}

	if !report.Result.Reachable() {
		return st
	}

	responderIDs := make([]string, 0, len(responderMap))
	for responder := range responderMap {
		responderIDs = append(responderIDs, responder)
	}
	sort.Strings(responderIDs)

	for _, responder := range responderIDs {
		lookup, err := peers.ReadFindPeerFile(responder, config.FindPeerPath(responder))
		if err != nil {
			log.Debug().Str("cid", c).Str("peer", responder).Err(err).Msg("find-peer output unreadable")
			continue
		}
		st.Providers[responder] = lookup.Addresses

		info, err := lookup.AddrInfo()
		if err != nil {
			log.Debug().Str("cid", c).Str("peer", responder).Err(err).Msg("responder id does not decode")
			continue
		}
		if len(info.Addrs) == 0 {
			continue
		}

		p2pAddrs, err := peer.AddrInfoToP2pAddrs(&info)
		if err != nil {
			continue
		}
		for _, addr := range p2pAddrs {
			st.P2PAddrs[responder] = append(st.P2PAddrs[responder], addr.String())
		}
	}

	return st
}

// ReadCIDList reads one CID per line, skipping blank lines and lines
// starting with '#'.
func ReadCIDList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		cids = append(cids, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cid list %s: %w", path, err)
	}

	return cids, nil
}
