package peers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const bootstrapPeer = "QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN"

const findPeerOutput = `/ip4/147.75.80.110/tcp/4001
/ip4/127.0.0.1/tcp/4001
/ip4/192.168.1.5/udp/4001/quic
/ip4/10.0.0.8/tcp/4001
/ip6/::1/tcp/4001
/ip6/2604:1380:4642:6600::3/udp/4001/quic
/dns4/bootstrap.libp2p.io/tcp/443/wss
not-a-multiaddr
`

func TestParseFindPeer(t *testing.T) {
	lookup, err := ParseFindPeer(bootstrapPeer, strings.NewReader(findPeerOutput))
	require.NoError(t, err)

	require.Len(t, lookup.Addresses, 3)
	require.Len(t, lookup.Multiaddrs, 3)

	require.Equal(t, Address{IP: "147.75.80.110", IPType: "ip4", Port: "4001", Protocol: "tcp"}, lookup.Addresses[0])
	require.Equal(t, Address{IP: "2604:1380:4642:6600::3", IPType: "ip6", Port: "4001", Protocol: "udp"}, lookup.Addresses[1])
	require.Equal(t, Address{IP: "bootstrap.libp2p.io", IPType: "dns4", Port: "443", Protocol: "tcp"}, lookup.Addresses[2])

	info, err := lookup.AddrInfo()
	require.NoError(t, err)
	require.Equal(t, bootstrapPeer, info.ID.String())
	require.Len(t, info.Addrs, 3)
}

func TestAddrInfoInvalidPeer(t *testing.T) {
	lookup, err := ParseFindPeer("not-a-peer", strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, lookup.Addresses)

	_, err = lookup.AddrInfo()
	require.Error(t, err)
}

func TestReadFindPeerFile(t *testing.T) {
	dir := t.TempDir()

	lookup, err := ReadFindPeerFile(bootstrapPeer, filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	require.NotNil(t, lookup.Addresses)
	require.Empty(t, lookup.Addresses)

	path := filepath.Join(dir, bootstrapPeer+"_findpeer.txt")
	require.NoError(t, os.WriteFile(path, []byte(findPeerOutput), 0644))

	lookup, err = ReadFindPeerFile(bootstrapPeer, path)
	require.NoError(t, err)
	require.Len(t, lookup.Addresses, 3)
}

func TestParseFindPeerKeepsNonRFC1918Ranges(t *testing.T) {
	output := strings.Join([]string{
		"/ip4/100.64.3.7/tcp/4001",
		"/ip4/169.254.10.1/tcp/4001",
		"/ip4/172.16.0.9/tcp/4001",
		"/ip4/172.32.0.9/tcp/4001",
		"/ip4/127.5.5.5/tcp/4001",
	}, "\n")

	lookup, err := ParseFindPeer(bootstrapPeer, strings.NewReader(output))
	require.NoError(t, err)

	var ips []string
	for _, addr := range lookup.Addresses {
		ips = append(ips, addr.IP)
	}
	require.Equal(t, []string{"100.64.3.7", "169.254.10.1", "172.32.0.9"}, ips)
}
