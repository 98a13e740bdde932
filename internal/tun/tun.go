// Package tun wraps the OS tunnel device the MAC reads IPv4 packets from
// and writes decapsulated downlink payloads to, per SPEC_FULL §6.3. The
// actual device is behind a small interface so tests can substitute an
// in-memory pipe instead of opening a real /dev/net/tun.
package tun

import (
	"context"
	"fmt"
	"time"
)

// Device is the minimal surface the MAC needs from a tunnel interface.
type Device interface {
	Read(ctx context.Context) ([]byte, error)
	Write(pkt []byte) error
	Close() error
}

// ReadTimeout bounds how long a single Read blocks waiting for a packet,
// matching SPEC_FULL §6.3's TUN_TIMEOUT_uSEC guard so the read loop can
// still observe mode changes promptly.
const ReadTimeout = 200 * time.Millisecond

// pipeDevice is an in-memory Device, the implementation used in tests and
// by the PHY-less demo CLI mode; a production build would back Device with
// a real syscall-level tun/tap open (platform-specific, intentionally not
// included here since it has no portable stdlib path).
type pipeDevice struct {
	in  chan []byte
	out chan []byte
}

// NewPipe creates an in-memory Device: packets fed with InjectFromPeer are
// returned by Read, and packets passed to Write surface on WrittenPackets --
// useful for exercising the MAC data path without a real kernel interface.
func NewPipe() *pipeDevice {
	return &pipeDevice{in: make(chan []byte, 64), out: make(chan []byte, 64)}
}

func (p *pipeDevice) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case pkt := <-p.in:
		return pkt, nil
	case <-time.After(ReadTimeout):
		return nil, nil
	}
}

func (p *pipeDevice) Write(pkt []byte) error {
	select {
	case p.out <- pkt:
		return nil
	default:
		return fmt.Errorf("tun: write buffer full")
	}
}

func (p *pipeDevice) Close() error {
	close(p.in)
	return nil
}

// InjectFromPeer feeds a packet as if it arrived from the kernel side.
func (p *pipeDevice) InjectFromPeer(pkt []byte) { p.in <- pkt }

// WrittenPackets exposes what the MAC wrote, for tests to assert against.
func (p *pipeDevice) WrittenPackets() <-chan []byte { return p.out }
