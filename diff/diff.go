package diff

import (
	"fmt"
	"sort"

	"github.com/HORNET-Storage/dht-hop-tracer/record"
)

type DiffType string

const (
	DiffTypeAdded       DiffType = "added"
	DiffTypeRemoved     DiffType = "removed"
	DiffTypeReachable   DiffType = "reachable"
	DiffTypeUnreachable DiffType = "unreachable"
	DiffTypeHopChanged  DiffType = "hop_changed"
)

type CIDDiff struct {
	Type   DiffType `json:"type"`
	CID    string   `json:"cid"`
	OldHop int      `json:"old_hop"`
	NewHop int      `json:"new_hop"`
}

type SummaryDiff struct {
	Diffs   map[string]*CIDDiff `json:"diffs"`
	Summary DiffSummary         `json:"summary"`
}

type DiffSummary struct {
	Added       int `json:"added"`
	Removed     int `json:"removed"`
	Reachable   int `json:"reachable"`
	Unreachable int `json:"unreachable"`
	HopChanged  int `json:"hop_changed"`
	Total       int `json:"total"`
}

// Diff compares two run summaries, typically two consecutive days.
// CIDs only in the newer run are added, CIDs only in the older run are
// removed. For CIDs in both, a change between zero and non-zero hops is
// reported as reachable or unreachable, any other change as hop_changed.
func Diff(oldSummary, newSummary *record.Summary) (*SummaryDiff, error) {
	if oldSummary == nil {
		return nil, fmt.Errorf("cannot diff: old summary is nil")
	}
	if newSummary == nil {
		return nil, fmt.Errorf("cannot diff: new summary is nil")
	}

	result := &SummaryDiff{
		Diffs: make(map[string]*CIDDiff),
	}

	oldHops := make(map[string]int, len(oldSummary.Stats))
	for _, st := range oldSummary.Stats {
		oldHops[st.CID] = st.IPFSHop
	}

	newHops := make(map[string]int, len(newSummary.Stats))
	for _, st := range newSummary.Stats {
		newHops[st.CID] = st.IPFSHop

		oldHop, existed := oldHops[st.CID]
		switch {
		case !existed:
			result.add(&CIDDiff{Type: DiffTypeAdded, CID: st.CID, NewHop: st.IPFSHop})
		case oldHop == 0 && st.IPFSHop > 0:
			result.add(&CIDDiff{Type: DiffTypeReachable, CID: st.CID, OldHop: oldHop, NewHop: st.IPFSHop})
		case oldHop > 0 && st.IPFSHop == 0:
			result.add(&CIDDiff{Type: DiffTypeUnreachable, CID: st.CID, OldHop: oldHop, NewHop: st.IPFSHop})
		case oldHop != st.IPFSHop:
			result.add(&CIDDiff{Type: DiffTypeHopChanged, CID: st.CID, OldHop: oldHop, NewHop: st.IPFSHop})
		}
	}

	for _, st := range oldSummary.Stats {
		if _, ok := newHops[st.CID]; !ok {
			result.add(&CIDDiff{Type: DiffTypeRemoved, CID: st.CID, OldHop: st.IPFSHop})
		}
	}

	return result, nil
}

func (d *SummaryDiff) add(entry *CIDDiff) {
	d.Diffs[entry.CID] = entry

	switch entry.Type {
	case DiffTypeAdded:
		d.Summary.Added++
	case DiffTypeRemoved:
		d.Summary.Removed++
	case DiffTypeReachable:
		d.Summary.Reachable++
	case DiffTypeUnreachable:
		d.Summary.Unreachable++
	case DiffTypeHopChanged:
		d.Summary.HopChanged++
	}
	d.Summary.Total++
}

// GetByType returns the diffs of one type sorted by CID.
func (d *SummaryDiff) GetByType(diffType DiffType) []*CIDDiff {
	var entries []*CIDDiff
	for _, entry := range d.Diffs {
		if entry.Type == diffType {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CID < entries[j].CID
	})

	return entries
}

func (d *SummaryDiff) IsEmpty() bool {
	return d.Summary.Total == 0
}
