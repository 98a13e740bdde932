// Package resolver maps destination IPv4 addresses of packets read from the
// Tun interface to the MAC PeerID they belong to, per SPEC_FULL §4.2. Lookups are O(1) via a
// byte-keyed index; insertion order is preserved for diagnostics.
package resolver

import (
	"fmt"
	"net"

	"github.com/rangecore/mac5g/internal/macerr"
	"github.com/rangecore/mac5g/internal/pdu"
	"gopkg.in/yaml.v3"
)

type entry struct {
	ip   net.IP
	peer pdu.PeerID
}

// Table resolves IPv4 addresses to PeerIDs.
type Table struct {
	order []entry
	index map[[4]byte]pdu.PeerID
}

// New builds a Table seeded with the hard-coded defaults the reference
// stack's MacController wires at Config time (10.0.0.10/11/12 -> 0/1/2).
func New() *Table {
	t := &Table{index: make(map[[4]byte]pdu.PeerID)}
	t.Add(net.IPv4(10, 0, 0, 10), 0)
	t.Add(net.IPv4(10, 0, 0, 11), 1)
	t.Add(net.IPv4(10, 0, 0, 12), 2)
	return t
}

// Add inserts or overwrites a mapping.
func (t *Table) Add(ip net.IP, peer pdu.PeerID) {
	var key [4]byte
	copy(key[:], ip.To4())
	if _, ok := t.index[key]; !ok {
		t.order = append(t.order, entry{ip: ip, peer: peer})
	}
	t.index[key] = peer
}

// Lookup resolves ip to its PeerID, or ErrPeerUnknown.
func (t *Table) Lookup(ip net.IP) (pdu.PeerID, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("resolver: %s is not IPv4: %w", ip, macerr.ErrMalformedFrame)
	}
	var key [4]byte
	copy(key[:], v4)
	peer, ok := t.index[key]
	if !ok {
		return 0, fmt.Errorf("resolver: %s: %w", ip, macerr.ErrPeerUnknown)
	}
	return peer, nil
}

// seedFile is the on-disk shape of an optional static-table seed, per
// SPEC_FULL §4.2's "implementers MAY source these from a config file".
type seedFile struct {
	Peers []struct {
		IP   string `yaml:"ip"`
		Peer uint8  `yaml:"peer"`
	} `yaml:"peers"`
}

// LoadYAML merges additional {ip, peer} pairs from a peers.yaml document
// into t, on top of the hard-coded defaults.
func (t *Table) LoadYAML(doc []byte) error {
	var sf seedFile
	if err := yaml.Unmarshal(doc, &sf); err != nil {
		return fmt.Errorf("resolver: parsing seed file: %w", err)
	}
	for _, p := range sf.Peers {
		ip := net.ParseIP(p.IP)
		if ip == nil {
			return fmt.Errorf("resolver: invalid ip %q: %w", p.IP, macerr.ErrConfigInvalid)
		}
		t.Add(ip, pdu.PeerID(p.Peer))
	}
	return nil
}
