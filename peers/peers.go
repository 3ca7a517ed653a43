// Package peers turns the output of a DHT find-peer lookup into the public
// addresses of a provider.
package peers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/rs/zerolog/log"
)

// Address is one public address of a provider. RTT and IPHop are filled
// in by external measurement tools and stay nil here.
type Address struct {
	IP       string   `json:"ip" cbor:"ip"`
	IPType   string   `json:"ip_type" cbor:"ip_type"`
	Port     string   `json:"port" cbor:"port"`
	Protocol string   `json:"protocol" cbor:"protocol"`
	RTT      *float64 `json:"rtt" cbor:"rtt"`
	IPHop    *string  `json:"ip_hop" cbor:"ip_hop"`
}

// Lookup is the parsed result of one find-peer call.
type Lookup struct {
	Peer       string
	Addresses  []Address
	Multiaddrs []ma.Multiaddr
}

// AddrInfo returns the lookup as libp2p address info. It fails when the
// peer id does not decode.
func (l *Lookup) AddrInfo() (peer.AddrInfo, error) {
	id, err := peer.Decode(l.Peer)
	if err != nil {
		return peer.AddrInfo{}, fmt.Errorf("invalid peer id %s: %w", l.Peer, err)
	}
	return peer.AddrInfo{ID: id, Addrs: l.Multiaddrs}, nil
}

// ParseFindPeer reads one multiaddr per line. Lines that do not parse,
// loopback addresses and RFC 1918 ip4 ranges are skipped.
func ParseFindPeer(id string, r io.Reader) (*Lookup, error) {
	logger := log.With().Str("component", "peers").Str("peer", id).Logger()

	lookup := &Lookup{
		Peer:       id,
		Addresses:  []Address{},
		Multiaddrs: []ma.Multiaddr{},
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		addr, err := ma.NewMultiaddr(line)
		if err != nil {
			logger.Debug().Str("line", line).Err(err).Msg("skipping unparsable multiaddr")
			continue
		}

		address, ok := toAddress(addr)
		if !ok {
			continue
		}

		lookup.Addresses = append(lookup.Addresses, address)
		lookup.Multiaddrs = append(lookup.Multiaddrs, addr)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lookup, nil
}

// ReadFindPeerFile parses a saved find-peer output. A missing file means
// the peer could not be routed to and yields an empty lookup.
func ReadFindPeerFile(id, path string) (*Lookup, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Lookup{Peer: id, Addresses: []Address{}, Multiaddrs: []ma.Multiaddr{}}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseFindPeer(id, file)
}

func toAddress(addr ma.Multiaddr) (Address, bool) {
	protocols := addr.Protocols()
	if len(protocols) < 2 {
		return Address{}, false
	}

	host, err := addr.ValueForProtocol(protocols[0].Code)
	if err != nil {
		return Address{}, false
	}
	port, err := addr.ValueForProtocol(protocols[1].Code)
	if err != nil {
		return Address{}, false
	}

	switch protocols[0].Code {
	case ma.P_IP6:
		if manet.IsIPLoopback(addr) {
			return Address{}, false
		}
	case ma.P_IP4:
		if manet.IsIPLoopback(addr) || isRFC1918(addr) {
			return Address{}, false
		}
	}

	return Address{
		IP:       host,
		IPType:   protocols[0].Name,
		Port:     port,
		Protocol: protocols[1].Name,
	}, true
}

// isRFC1918 reports whether addr is in 10/8, 172.16/12 or 192.168/16.
// Shared (100.64/10) and link-local ranges are kept.
func isRFC1918(addr ma.Multiaddr) bool {
	ip, err := manet.ToIP(addr)
	if err != nil {
		return false
	}
	return ip.To4() != nil && ip.IsPrivate()
}
