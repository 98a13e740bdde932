// Package l1 models the four message queues connecting the MAC to the
// physical layer, per SPEC_FULL §6.2/§4.5: PDUs to/from L1 and control
// messages to/from L1. Go channels replace the reference stack's POSIX
// message queues; sizing and per-message caps are kept equivalent.
package l1

import (
	"context"
	"fmt"

	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/crc16"
	"github.com/rangecore/mac5g/internal/macerr"
)

const (
	// QueueDepth mirrors MQ_MAX_NUM_MSG from the reference stack.
	QueueDepth = 100
	// MaxMessageBytes mirrors MQ_MAX_MSG_SIZE from the reference stack.
	MaxMessageBytes = 204800
)

// Interface is the MAC-side handle to the four L1 channels.
type Interface struct {
	pduToL1        chan []byte
	pduFromL1      chan []byte
	controlToL1    chan []byte
	controlFromL1  chan []byte
	log            clog.Clog
	crcDropCount   uint64
}

// New opens a fresh set of channels, draining is implicit since no prior
// messages exist -- the Go equivalent of the reference stack's clearQueue
// on a freshly opened mqueue.
func New(log clog.Clog) *Interface {
	return &Interface{
		pduToL1:       make(chan []byte, QueueDepth),
		pduFromL1:     make(chan []byte, QueueDepth),
		controlToL1:   make(chan []byte, QueueDepth),
		controlFromL1: make(chan []byte, QueueDepth),
		log:           log,
	}
}

func send(ch chan []byte, msg []byte) error {
	if len(msg) > MaxMessageBytes {
		return fmt.Errorf("l1: message of %d bytes exceeds cap: %w", len(msg), macerr.ErrMalformedFrame)
	}
	select {
	case ch <- msg:
		return nil
	default:
		return fmt.Errorf("l1: channel full: %w", macerr.ErrChannelUnavailable)
	}
}

// SendPDU queues a MAC PDU frame (with its CRC-16 already appended) for
// transmission.
func (i *Interface) SendPDU(frame []byte) error { return send(i.pduToL1, frame) }

// SendControl queues a control message for transmission.
func (i *Interface) SendControl(msg []byte) error { return send(i.controlToL1, msg) }

// ReceivePDU blocks until a PDU frame arrives from L1, verifying and
// stripping its CRC-16. Frames that fail the check are dropped and counted,
// per SPEC_FULL §4.5, and the read loops to the next frame.
func (i *Interface) ReceivePDU(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case frame := <-i.pduFromL1:
			payload, ok := crc16.Verify(frame)
			if !ok {
				i.crcDropCount++
				i.log.Warn("l1: dropping pdu with bad crc (%d total)", i.crcDropCount)
				continue
			}
			return payload, nil
		}
	}
}

// ReceiveControl blocks until a control message arrives from L1.
func (i *Interface) ReceiveControl(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-i.controlFromL1:
		return msg, nil
	}
}

// InjectPDU and InjectControl feed the "from L1" side, used by a PHY
// simulator or by tests standing in for real hardware.
func (i *Interface) InjectPDU(frame []byte)      { i.pduFromL1 <- frame }
func (i *Interface) InjectControl(msg []byte)    { i.controlFromL1 <- msg }

// DequeueOutboundPDU and DequeueOutboundControl let a PHY simulator drain
// what the MAC queued for transmission.
func (i *Interface) DequeueOutboundPDU() <-chan []byte     { return i.pduToL1 }
func (i *Interface) DequeueOutboundControl() <-chan []byte { return i.controlToL1 }

// CrcDropCount reports how many inbound PDUs have been discarded for CRC
// mismatch since this Interface was created.
func (i *Interface) CrcDropCount() uint64 { return i.crcDropCount }
