package record

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/HORNET-Storage/dht-hop-tracer/peers"
)

func TestDescribeCID(t *testing.T) {
	tests := []struct {
		name    string
		cid     string
		version uint64
		codec   string
		hash    string
	}{
		{"v0", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", 0, "dag-pb", "sha2-256"},
		{"v1", "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", 1, "dag-pb", "sha2-256"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := DescribeCID(tt.cid)
			if err != nil {
				t.Fatalf("Failed to describe %s: %v", tt.cid, err)
			}
			if info.Version != tt.version || info.Codec != tt.codec || info.HashFunction != tt.hash {
				t.Errorf("Unexpected info %+v", info)
			}
		})
	}

	if _, err := DescribeCID("QmRoot"); err == nil {
		t.Errorf("Expected error for invalid cid")
	}
}

func TestSummaryFiles(t *testing.T) {
	tmpDir := t.TempDir()

	summary := NewSummary(time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC))
	summary.Stats = append(summary.Stats,
		Stats{CID: "QmA", IPFSHop: 3, Providers: map[string][]peers.Address{
			"QmResp": {{IP: "147.75.80.110", IPType: "ip4", Port: "4001", Protocol: "tcp"}},
		}},
		Stats{CID: "QmB", IPFSHop: 0, Providers: map[string][]peers.Address{}},
	)
	summary.TotalCID = 5
	summary.ReachableCID = 2

	if summary.Date != "2023-03-01" {
		t.Fatalf("Unexpected date %s", summary.Date)
	}
	if summary.Reachable() != 1 {
		t.Errorf("Expected 1 reachable cid, got %d", summary.Reachable())
	}

	if err := summary.WriteFiles(tmpDir); err != nil {
		t.Fatalf("Failed to write summary: %v", err)
	}

	restored, err := ReadSummary(SummaryPath(tmpDir, "2023-03-01"))
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}
	if restored.RunID != summary.RunID {
		t.Errorf("Run id changed: %s vs %s", restored.RunID, summary.RunID)
	}

	st, ok := restored.Find("QmA")
	if !ok {
		t.Fatalf("Expected QmA in restored summary")
	}
	if st.IPFSHop != 3 || len(st.Providers["QmResp"]) != 1 {
		t.Errorf("Unexpected stats %+v", st)
	}

	line, err := os.ReadFile(StatsPath(tmpDir, "2023-03-01"))
	if err != nil {
		t.Fatalf("Failed to read stats line: %v", err)
	}
	if string(line) != "total_cid 5 reachable_cid 2\n" {
		t.Errorf("Unexpected stats line %q", line)
	}
}

func TestSummaryCBOR(t *testing.T) {
	summary := NewSummary(time.Now())
	summary.Stats = append(summary.Stats, Stats{CID: "QmA", IPFSHop: 2, Providers: map[string][]peers.Address{}})

	data, err := summary.ToCBOR()
	if err != nil {
		t.Fatalf("Failed to encode summary: %v", err)
	}

	restored, err := FromCBOR(data)
	if err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}

	var buf bytes.Buffer
	if err := restored.WriteStatsLine(&buf); err != nil {
		t.Fatalf("Failed to write stats line: %v", err)
	}
	if restored.RunID != summary.RunID || restored.Stats[0].IPFSHop != 2 {
		t.Errorf("Summary changed after CBOR round trip")
	}
}
