package sdubuf

import (
	"testing"

	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/pdu"
	"github.com/rangecore/mac5g/internal/resolver"
)

func newTestBuffers() *Buffers {
	r := resolver.New()
	return New(r, []pdu.PeerID{0, 1, 2}, 10, clog.NewLogger(""))
}

// ipv4Packet builds a minimal 20-byte IPv4 header (no options, no payload)
// with the given version nibble and destination address.
func ipv4Packet(version byte, dst [4]byte) []byte {
	b := make([]byte, 20)
	b[0] = version<<4 | 5 // IHL=5 words
	b[9] = 17              // protocol: UDP, irrelevant to the drop rules
	copy(b[16:20], dst[:])
	return b
}

// TestEnqueueIPPacketDropsNonIPv4 is property P6.
func TestEnqueueIPPacketDropsNonIPv4(t *testing.T) {
	b := newTestBuffers()
	pkt := ipv4Packet(6, [4]byte{10, 0, 0, 10}) // version nibble = 6, not IPv4
	if err := b.EnqueueIPPacket(pkt, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.AnyBufferStatus() {
		t.Fatal("expected non-IPv4 packet to be silently dropped, not enqueued")
	}
}

func TestEnqueueIPPacketDropsBroadcast(t *testing.T) {
	b := newTestBuffers()
	pkt := ipv4Packet(4, [4]byte{255, 255, 255, 255})
	if err := b.EnqueueIPPacket(pkt, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.AnyBufferStatus() {
		t.Fatal("expected broadcast packet to be dropped")
	}
}

func TestEnqueueIPPacketDropsMulticast(t *testing.T) {
	b := newTestBuffers()
	pkt := ipv4Packet(4, [4]byte{224, 0, 0, 5})
	if err := b.EnqueueIPPacket(pkt, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.AnyBufferStatus() {
		t.Fatal("expected multicast packet to be dropped")
	}

	b2 := newTestBuffers()
	pkt2 := ipv4Packet(4, [4]byte{239, 255, 255, 250})
	if err := b2.EnqueueIPPacket(pkt2, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b2.AnyBufferStatus() {
		t.Fatal("expected multicast packet at top of range to be dropped")
	}
}

func TestEnqueueIPPacketAcceptsResolvableUnicast(t *testing.T) {
	b := newTestBuffers()
	pkt := ipv4Packet(4, [4]byte{10, 0, 0, 11})
	if err := b.EnqueueIPPacket(pkt, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, ok, err := b.NextData(1)
	if err != nil {
		t.Fatalf("NextData: %v", err)
	}
	if !ok {
		t.Fatal("expected the packet to have been enqueued for peer 1")
	}
	if entry.EnqueuedAt != 7 {
		t.Fatalf("enqueued tick = %d, want 7", entry.EnqueuedAt)
	}
}

func TestEnqueueIPPacketUnresolvedDestinationErrors(t *testing.T) {
	b := newTestBuffers()
	pkt := ipv4Packet(4, [4]byte{192, 168, 1, 1})
	if err := b.EnqueueIPPacket(pkt, 0); err == nil {
		t.Fatal("expected an error for an unresolvable destination")
	}
	if b.AnyBufferStatus() {
		t.Fatal("expected nothing enqueued for an unresolved destination")
	}
}

// TestTimeoutSweepMonotonic is property P7: an entry is never dropped before
// currentTick - EnqueuedAt >= ipTimeoutSubframes, and is always dropped once
// that threshold is reached.
func TestTimeoutSweepMonotonic(t *testing.T) {
	b := newTestBuffers()
	if err := b.EnqueueData(0, []byte{1}, 100); err != nil {
		t.Fatal(err)
	}

	if dropped := b.TimeoutSweep(109); dropped != 0 {
		t.Fatalf("swept at age 9 (< 10): dropped=%d, want 0", dropped)
	}
	if ok, _ := b.BufferStatus(0); !ok {
		t.Fatal("entry should still be present just below the timeout")
	}

	if dropped := b.TimeoutSweep(110); dropped != 1 {
		t.Fatalf("swept at age 10 (== timeout): dropped=%d, want 1", dropped)
	}
	if ok, _ := b.BufferStatus(0); ok {
		t.Fatal("entry should have been dropped once its age reached the timeout")
	}
}

func TestTimeoutSweepLeavesFreshEntries(t *testing.T) {
	b := newTestBuffers()
	if err := b.EnqueueData(0, []byte{1}, 50); err != nil {
		t.Fatal(err)
	}
	if err := b.EnqueueData(0, []byte{2}, 55); err != nil {
		t.Fatal(err)
	}
	if dropped := b.TimeoutSweep(59); dropped != 0 {
		t.Fatalf("dropped=%d, want 0", dropped)
	}
	if dropped := b.TimeoutSweep(60); dropped != 1 {
		t.Fatalf("dropped=%d, want 1 (only the first entry reached the timeout)", dropped)
	}
	if dropped := b.TimeoutSweep(65); dropped != 1 {
		t.Fatalf("dropped=%d, want 1 (the second entry reaches the timeout now)", dropped)
	}
}
