package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// File name patterns the fixtures are written with. They match the
// analyzer defaults.
const (
	BucketFilePattern = "%s_dht.txt"
	TraceFilePattern  = "%s_provid.txt"
	DaemonLogFile     = "daemon.txt"
)

// TestFixture is one deterministic provider search: the routing table at
// the time of the search, the search trace and which responders returned
// which provider.
type TestFixture struct {
	Name         string
	Description  string
	CID          string
	Buckets      string
	Trace        []string
	Responders   map[string]string // responder -> provider
	MissingTrace bool
	ExpectedHops int
}

// GetAllFixtures returns all available test fixtures
func GetAllFixtures() []TestFixture {
	return []TestFixture{
		EndToEnd(),
		NoProviders(),
		MultiParent(),
		MissingTrace(),
	}
}

// EndToEnd is the smallest search that finds a provider: the root answers
// with two peers and the second query returns the provider.
func EndToEnd() TestFixture {
	return TestFixture{
		Name:        "end_to_end",
		Description: "Root query answered with QmX QmY, QmX returns the provider",
		CID:         "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		Buckets: `DHT wan (2 peers):
  Bucket  0 (2 peers) - refreshed 2m ago:
    Peer                                                  last useful  last queried  Agent Version
  @ QmRoot                                                1m ago       10s ago      kubo/0.18.0
    QmOther                                               never        never        kubo/0.17.0
`,
		Trace: []string{
			"0: querying provider record for cid QmRoot",
			"1: Qm1 says use QmX QmY",
			"2: querying provider record for cid QmX",
			"3: provider: QmProv1",
		},
		Responders:   map[string]string{"QmX": "QmProv1"},
		ExpectedHops: 2,
	}
}

// NoProviders walks three levels deep without ever finding a provider.
func NoProviders() TestFixture {
	return TestFixture{
		Name:        "no_providers",
		Description: "Three level search that never finds a provider",
		CID:         "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		Buckets: `DHT wan (1 peers):
  Bucket  3 (1 peers) - refreshed 1m ago:
    Peer                                                  last useful  last queried  Agent Version
  @ QmRoot                                                1m ago       10s ago      kubo/0.18.0
`,
		Trace: []string{
			"0: querying QmRoot",
			"1: QmRoot says use QmA QmB QmC",
			"2: querying QmA",
			"3: QmA says use QmD",
			"4: querying QmD",
		},
		Responders:   map[string]string{"QmD": "QmProv"},
		ExpectedHops: 0,
	}
}

// MultiParent reaches the provider through a peer that two earlier queries
// both returned.
func MultiParent() TestFixture {
	return TestFixture{
		Name:        "multi_parent",
		Description: "QmC is answered by both QmA and QmB and returns the provider",
		CID:         "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o",
		Buckets: `DHT wan (2 peers):
  Bucket  1 (1 peers) - refreshed 1m ago:
    Peer                                                  last useful  last queried  Agent Version
  @ QmRoot                                                1m ago       10s ago      kubo/0.18.0

  Bucket 14 (1 peers) - refreshed 1m ago:
    Peer                                                  last useful  last queried  Agent Version
    QmFar                                                 never        never
`,
		Trace: []string{
			"0: querying QmRoot",
			"1: QmRoot says use QmA QmB",
			"2: querying QmA",
			"3: querying QmB",
			"4: QmA says use QmC",
			"5: QmB says use QmC",
			"6: querying QmC",
			"7: provider: QmProv",
		},
		Responders:   map[string]string{"QmC": "QmProv"},
		ExpectedHops: 3,
	}
}

// MissingTrace has a routing table dump but no search trace.
func MissingTrace() TestFixture {
	return TestFixture{
		Name:        "missing_trace",
		Description: "Bucket dump without a provider search trace",
		CID:         "QmSnuWmxptJZdLJpKRarxBMS2Ju2oANVrgbr2xWbie9b2D",
		Buckets: `DHT wan (1 peers):
  Bucket  0 (1 peers) - refreshed 2m ago:
    QmRoot                                                never        never
`,
		Responders:   map[string]string{},
		MissingTrace: true,
	}
}

// Setup writes the fixture's bucket dump and trace into baseDir.
func (f TestFixture) Setup(baseDir string) error {
	bucketPath := filepath.Join(baseDir, fmt.Sprintf(BucketFilePattern, f.CID))
	if err := os.WriteFile(bucketPath, []byte(f.Buckets), 0644); err != nil {
		return fmt.Errorf("failed to write bucket dump: %w", err)
	}

	if f.MissingTrace {
		return nil
	}

	tracePath := filepath.Join(baseDir, fmt.Sprintf(TraceFilePattern, f.CID))
	content := strings.Join(f.Trace, "\n") + "\n"
	if err := os.WriteFile(tracePath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	return nil
}

// DaemonLines renders the fixture's responders the way the daemon logs
// them, sorted by responder.
func (f TestFixture) DaemonLines() []string {
	responders := make([]string, 0, len(f.Responders))
	for responder := range f.Responders {
		responders = append(responders, responder)
	}
	sort.Strings(responders)

	lines := make([]string, 0, len(responders))
	for _, responder := range responders {
		lines = append(lines, DaemonLine(f.CID, f.Responders[responder], responder))
	}
	return lines
}

// DaemonLine formats one "found cid" daemon log entry.
func DaemonLine(c, provider, responder string) string {
	return fmt.Sprintf("2023-03-01T10:00:00.000Z\tINFO\tbitswap\tfound cid %s from %s via %s", c, provider, responder)
}

// CreateAllFixtures writes every fixture plus a shared daemon log into
// baseDir and returns the daemon log path.
func CreateAllFixtures(baseDir string) (string, error) {
	var lines []string
	for _, fixture := range GetAllFixtures() {
		if err := fixture.Setup(baseDir); err != nil {
			return "", fmt.Errorf("fixture %s: %w", fixture.Name, err)
		}
		lines = append(lines, fixture.DaemonLines()...)
	}

	daemonPath := filepath.Join(baseDir, DaemonLogFile)
	if err := os.WriteFile(daemonPath, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to write daemon log: %w", err)
	}

	return daemonPath, nil
}

// GetFixtureByName returns a specific fixture by name
func GetFixtureByName(name string) (TestFixture, bool) {
	for _, f := range GetAllFixtures() {
		if f.Name == name {
			return f, true
		}
	}
	return TestFixture{}, false
}

// RunTestWithFixture writes the named fixture into a temp directory and
// hands it to testFunc.
func RunTestWithFixture(t *testing.T, fixtureName string, testFunc func(*testing.T, TestFixture, string)) {
	t.Helper()

	fixture, ok := GetFixtureByName(fixtureName)
	if !ok {
		t.Fatalf("Fixture not found: %s", fixtureName)
	}

	dir := t.TempDir()
	if err := fixture.Setup(dir); err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}

	testFunc(t, fixture, dir)
}

// RunTestWithAllFixtures runs testFunc against every fixture that has a
// trace, each in its own temp directory.
func RunTestWithAllFixtures(t *testing.T, testFunc func(*testing.T, TestFixture, string)) {
	for _, fixture := range GetAllFixtures() {
		if fixture.MissingTrace {
			continue
		}

		t.Run(fixture.Name, func(t *testing.T) {
			dir := t.TempDir()
			if err := fixture.Setup(dir); err != nil {
				t.Fatalf("Failed to create fixture: %v", err)
			}

			testFunc(t, fixture, dir)
		})
	}
}
