// Package sdubuf implements the per-peer SDU queues MAC PDUs are built
// from, per SPEC_FULL §4.3. Each peer gets independent Data and Control
// FIFOs; all peers' Data queues share one mutex and all peers' Control
// queues share another, mirroring the reference stack's dataMutex/
// controlMutex split rather than one mutex pair per peer.
package sdubuf

import (
	"container/list"
	"net"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/macerr"
	"github.com/rangecore/mac5g/internal/pdu"
	"github.com/rangecore/mac5g/internal/resolver"
)

// Class distinguishes the two traffic types multiplexed into a PDU.
type Class uint8

const (
	Data Class = iota
	Control
)

// Entry is one queued SDU awaiting multiplexing.
type Entry struct {
	Bytes      []byte
	EnqueuedAt uint64 // subframe tick at enqueue time
	Class      Class
}

type peerQueues struct {
	data    *list.List
	control *list.List
}

// Buffers holds every configured peer's Data/Control queues.
type Buffers struct {
	resolver *resolver.Table
	log      clog.Clog

	dataMu    sync.Mutex
	controlMu sync.Mutex
	peers     map[pdu.PeerID]*peerQueues

	ipTimeoutSubframes uint64
}

// New builds an empty Buffers for the given peer set, resolving Tun packet
// destinations through resolver.
func New(r *resolver.Table, peers []pdu.PeerID, ipTimeoutSubframes uint64, log clog.Clog) *Buffers {
	b := &Buffers{
		resolver:           r,
		log:                log,
		peers:              make(map[pdu.PeerID]*peerQueues, len(peers)),
		ipTimeoutSubframes: ipTimeoutSubframes,
	}
	for _, p := range peers {
		b.peers[p] = &peerQueues{data: list.New(), control: list.New()}
	}
	return b
}

func (b *Buffers) peer(id pdu.PeerID) (*peerQueues, error) {
	pq, ok := b.peers[id]
	if !ok {
		return nil, macerr.ErrPeerUnknown
	}
	return pq, nil
}

// EnqueueIPPacket applies the Tun ingress drop rules (SPEC_FULL §4.3/§6.3:
// non-IPv4, broadcast, multicast are dropped) and, if the packet survives,
// resolves its destination and enqueues it as a Data SDU.
func (b *Buffers) EnqueueIPPacket(raw []byte, tick uint64) error {
	if len(raw) < 20 {
		return macerr.ErrMalformedFrame
	}
	if (raw[0]>>4)&0xF != 4 {
		return nil // not IPv4, drop silently per P6
	}

	pkt := gopacket.NewPacket(raw, layers.LayerTypeIPv4, gopacket.NoCopy)
	ipLayer, _ := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	var dst net.IP
	if ipLayer != nil {
		dst = ipLayer.DstIP
	} else {
		dst = net.IPv4(raw[16], raw[17], raw[18], raw[19])
	}

	if dst.Equal(net.IPv4bcast) {
		return nil
	}
	if d4 := dst.To4(); d4 != nil && d4[0] >= 224 && d4[0] <= 239 {
		return nil // multicast
	}

	peerID, err := b.resolver.Lookup(dst)
	if err != nil {
		b.log.Warn("sdubuf: dropping packet to unresolved peer %s", dst)
		return err
	}
	return b.EnqueueData(peerID, raw, tick)
}

// EnqueueData pushes a Data SDU onto peer's queue.
func (b *Buffers) EnqueueData(peer pdu.PeerID, sdu []byte, tick uint64) error {
	pq, err := b.peer(peer)
	if err != nil {
		return err
	}
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	pq.data.PushBack(Entry{Bytes: sdu, EnqueuedAt: tick, Class: Data})
	return nil
}

// EnqueueControl pushes a Control SDU onto peer's queue.
func (b *Buffers) EnqueueControl(peer pdu.PeerID, sdu []byte, tick uint64) error {
	pq, err := b.peer(peer)
	if err != nil {
		return err
	}
	b.controlMu.Lock()
	defer b.controlMu.Unlock()
	pq.control.PushBack(Entry{Bytes: sdu, EnqueuedAt: tick, Class: Control})
	return nil
}

// NextData pops and returns peer's oldest Data SDU, or ok=false if empty.
func (b *Buffers) NextData(peer pdu.PeerID) (Entry, bool, error) {
	pq, err := b.peer(peer)
	if err != nil {
		return Entry{}, false, err
	}
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	front := pq.data.Front()
	if front == nil {
		return Entry{}, false, nil
	}
	pq.data.Remove(front)
	return front.Value.(Entry), true, nil
}

// NextControl pops and returns peer's oldest Control SDU, or ok=false if empty.
func (b *Buffers) NextControl(peer pdu.PeerID) (Entry, bool, error) {
	pq, err := b.peer(peer)
	if err != nil {
		return Entry{}, false, err
	}
	b.controlMu.Lock()
	defer b.controlMu.Unlock()
	front := pq.control.Front()
	if front == nil {
		return Entry{}, false, nil
	}
	pq.control.Remove(front)
	return front.Value.(Entry), true, nil
}

// BufferStatus reports whether peer has any SDU (Data or Control) pending.
func (b *Buffers) BufferStatus(peer pdu.PeerID) (bool, error) {
	pq, err := b.peer(peer)
	if err != nil {
		return false, err
	}
	b.dataMu.Lock()
	hasData := pq.data.Len() > 0
	b.dataMu.Unlock()
	b.controlMu.Lock()
	hasControl := pq.control.Len() > 0
	b.controlMu.Unlock()
	return hasData || hasControl, nil
}

// AnyBufferStatus reports whether any configured peer has SDUs pending.
// Peers are checked in map iteration order; the result does not depend on it.
func (b *Buffers) AnyBufferStatus() bool {
	for peer := range b.peers {
		if ok, _ := b.BufferStatus(peer); ok {
			return true
		}
	}
	return false
}

// TimeoutSweep drops Data SDUs older than ipTimeoutSubframes, counted from
// the given current tick, returning the number dropped. Grounds P7 (IP
// timeout monotonicity): an entry enqueued at tick T is dropped once
// currentTick - T >= ipTimeoutSubframes, never sooner.
func (b *Buffers) TimeoutSweep(currentTick uint64) int {
	dropped := 0
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	for _, pq := range b.peers {
		for e := pq.data.Front(); e != nil; {
			next := e.Next()
			entry := e.Value.(Entry)
			if currentTick-entry.EnqueuedAt >= b.ipTimeoutSubframes {
				pq.data.Remove(e)
				dropped++
			}
			e = next
		}
	}
	return dropped
}
