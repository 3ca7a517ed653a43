package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	cbor "github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"

	"github.com/HORNET-Storage/dht-hop-tracer/peers"
)

const DateLayout = "2006-01-02"

// CIDInfo describes how a content identifier was encoded.
type CIDInfo struct {
	Version      uint64 `json:"version" cbor:"version"`
	Codec        string `json:"codec" cbor:"codec"`
	HashFunction string `json:"hash_function" cbor:"hash_function"`
}

// Stats is the per-CID outcome of a run. Providers maps each peer that
// served the content to its public addresses; it is empty when no provider
// was found. P2PAddrs holds the dialable /p2p/ form of those addresses for
// peers whose id decodes.
type Stats struct {
	CID             string                     `json:"cid" cbor:"cid"`
	IPFSHop         int                        `json:"ipfs_hop" cbor:"ipfs_hop"`
	Providers       map[string][]peers.Address `json:"providers" cbor:"providers"`
	P2PAddrs        map[string][]string        `json:"p2p_addrs,omitempty" cbor:"p2p_addrs,omitempty"`
	Info            *CIDInfo                   `json:"info,omitempty" cbor:"info,omitempty"`
	TreeFingerprint string                     `json:"tree_fingerprint,omitempty" cbor:"tree_fingerprint,omitempty"`
	Error           string                     `json:"error,omitempty" cbor:"error,omitempty"`
}

// Summary is everything one run produced.
type Summary struct {
	RunID        uuid.UUID `json:"run_id" cbor:"run_id"`
	Date         string    `json:"date" cbor:"date"`
	TotalCID     int       `json:"total_cid" cbor:"total_cid"`
	ReachableCID int       `json:"reachable_cid" cbor:"reachable_cid"`
	Stats        []Stats   `json:"stats" cbor:"stats"`
}

func NewSummary(date time.Time) *Summary {
	return &Summary{
		RunID: uuid.New(),
		Date:  date.Format(DateLayout),
		Stats: []Stats{},
	}
}

// DescribeCID decodes c and names its codec and hash function.
func DescribeCID(c string) (*CIDInfo, error) {
	decoded, err := cid.Decode(c)
	if err != nil {
		return nil, err
	}

	prefix := decoded.Prefix()

	hashName, ok := mh.Codes[prefix.MhType]
	if !ok {
		hashName = fmt.Sprintf("0x%x", prefix.MhType)
	}

	return &CIDInfo{
		Version:      prefix.Version,
		Codec:        mc.Code(prefix.Codec).String(),
		HashFunction: hashName,
	}, nil
}

// Find returns the stats recorded for c.
func (s *Summary) Find(c string) (*Stats, bool) {
	for i := range s.Stats {
		if s.Stats[i].CID == c {
			return &s.Stats[i], true
		}
	}
	return nil, false
}

// Reachable counts the CIDs with a non-zero hop count.
func (s *Summary) Reachable() int {
	count := 0
	for _, st := range s.Stats {
		if st.IPFSHop > 0 {
			count++
		}
	}
	return count
}

func (s *Summary) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

func (s *Summary) ToCBOR() ([]byte, error) {
	return cbor.Marshal(s)
}

func FromJSON(data []byte) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func FromCBOR(data []byte) (*Summary, error) {
	var s Summary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SummaryPath is where a run on date writes its summary inside dir.
func SummaryPath(dir, date string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_summary.json", date))
}

// StatsPath is where a run on date writes its one line of counters.
func StatsPath(dir, date string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_stats.txt", date))
}

// WriteFiles writes the JSON summary and the counters line into dir.
func (s *Summary) WriteFiles(dir string) error {
	data, err := s.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(SummaryPath(dir, s.Date), data, 0644); err != nil {
		return err
	}

	file, err := os.Create(StatsPath(dir, s.Date))
	if err != nil {
		return err
	}
	defer file.Close()

	return s.WriteStatsLine(file)
}

func (s *Summary) WriteStatsLine(w io.Writer) error {
	_, err := fmt.Fprintf(w, "total_cid %d reachable_cid %d\n", s.TotalCID, s.ReachableCID)
	return err
}

func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode summary %s: %w", path, err)
	}
	return s, nil
}
