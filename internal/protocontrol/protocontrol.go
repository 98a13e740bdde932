// Package protocontrol pumps control messages between the MAC and L1, and
// decodes the Control SDUs the scheduler pulls off the wire, per SPEC_FULL
// §4.7 (the ProtocolControl analogue in the reference stack). It is wired
// by internal/mac rather than owning the state machine itself.
package protocontrol

import (
	"context"
	"fmt"

	"github.com/rangecore/mac5g/internal/amc"
	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/cosora"
	"github.com/rangecore/mac5g/internal/l1"
	"github.com/rangecore/mac5g/internal/macerr"
	"github.com/rangecore/mac5g/internal/params"
	"github.com/rangecore/mac5g/internal/pdu"
	"github.com/rangecore/mac5g/internal/sdubuf"
	"github.com/rangecore/mac5g/internal/wire"
)

// Handlers are the controller-owned callbacks ProtoControl invokes as it
// dispatches inbound control messages -- the Go equivalent of the reference
// stack's ProtocolControl reaching back into MacController's own methods.
type Handlers struct {
	OnPHYConfigAck    func()
	OnPHYStopAck      func()
	OnSubframeRxStart func(msg []byte)
	OnSubframeEnd     func()
	OnPHYTxIndication func()
}

// ProtoControl decodes and dispatches control-channel traffic.
type ProtoControl struct {
	l1      *l1.Interface
	buffers *sdubuf.Buffers
	current *params.Store
	dynamic *params.Store
	cos     *cosora.Fusion
	log     clog.Clog
	role    Role
}

// Role distinguishes BS/UE-specific control decoding.
type Role uint8

const (
	RoleBS Role = iota
	RoleUE
)

func New(role Role, l1if *l1.Interface, buffers *sdubuf.Buffers, current, dynamic *params.Store, cos *cosora.Fusion, log clog.Clog) *ProtoControl {
	return &ProtoControl{role: role, l1: l1if, buffers: buffers, current: current, dynamic: dynamic, cos: cos, log: log}
}

// Send wraps l1.SendControl, the ProtocolControl::sendInterlayerMessages
// equivalent.
func (p *ProtoControl) Send(msg []byte) error {
	return p.l1.SendControl(msg)
}

// Run dispatches inbound control messages by opcode until ctx is done.
// Each case invokes the matching Handlers callback after any protocol
// decoding it owns, mirroring receiveInterlayerMessages' switch.
func (p *ProtoControl) Run(ctx context.Context, h Handlers) {
	for {
		msg, err := p.l1.ReceiveControl(ctx)
		if err != nil {
			return
		}
		if len(msg) == 0 {
			continue
		}
		switch wire.Opcode(msg[0]) {
		case wire.OpPHYConfigRequest:
			if h.OnPHYConfigAck != nil {
				h.OnPHYConfigAck()
			}
		case wire.OpPHYStopRequest:
			if h.OnPHYStopAck != nil {
				h.OnPHYStopAck()
			}
		case wire.OpBSSubframeRxStart, wire.OpUESubframeRxStart:
			if h.OnSubframeRxStart != nil {
				h.OnSubframeRxStart(msg)
			}
		case wire.OpSubframeEnd:
			if h.OnSubframeEnd != nil {
				h.OnSubframeEnd()
			}
		case wire.OpPHYTxIndication:
			if h.OnPHYTxIndication != nil {
				h.OnPHYTxIndication()
			}
		default:
			p.log.Warn("protocontrol: unknown opcode %q", msg[0])
		}
	}
}

// DecodeControlSDU applies a peer's decoded Control SDU to the parameter
// store, mirroring decodeControlSdus' per-opcode handling. tick is the
// current subframe number, used to timestamp any SDU this enqueues in
// response.
func (p *ProtoControl) DecodeControlSDU(sdu []byte, peer pdu.PeerID, tick uint64) (reconfigureNeeded bool, err error) {
	if len(sdu) == 0 {
		return false, macerr.ErrMalformedFrame
	}
	switch wire.Opcode(sdu[0]) {
	case wire.OpAck:
		p.log.Debug("protocontrol: ack from peer %d", peer)
		return false, nil

	case wire.OpRxMetricsReport:
		buf := wire.NewReader(sdu[1:])
		metrics, err := pdu.DeserializeRxMetricsCompact(buf)
		if err != nil {
			return false, err
		}
		mcs := amc.SNRToMCS(metrics.SNRAvg)
		changed, err := p.current.SetMCSDownlink(peer, mcs)
		if err != nil {
			return false, err
		}
		return changed, nil

	default:
		// UE-side: a MACC dynamic-parameters SDU with no leading opcode
		// byte, consumed wholesale by ManagerDynamicParameters instead.
		return false, fmt.Errorf("protocontrol: unrecognized control opcode %q: %w", sdu[0], macerr.ErrMalformedFrame)
	}
}

// BuildRxMetricsAck serializes the compact RxMetrics opcode payload a UE
// sends back to its BS.
func BuildRxMetricsAck(m pdu.RxMetrics) []byte {
	buf := &wire.Buffer{}
	m.SerializeCompact(buf)
	return append([]byte{byte(wire.OpRxMetricsReport)}, buf.Bytes()...)
}

// BuildAck serializes the 1-byte acknowledgement a UE enqueues after
// applying a MACC dynamic-parameters update.
func BuildAck() []byte {
	return []byte{byte(wire.OpAck)}
}

// ManagerDynamicParameters deserializes a MACC SDU's dynamic parameters
// (UE-side) and stores the fusion LUT in the dynamic parameters, mirroring
// managerDynamicParameters. It does not request a Reconfig itself; the
// caller decides that.
func (p *ProtoControl) ManagerDynamicParameters(sdu []byte, peer pdu.PeerID) error {
	buf := wire.NewReader(sdu)
	lut, err := buf.PopU8()
	if err != nil {
		return fmt.Errorf("protocontrol: decoding dynamic parameters: %w", err)
	}
	p.dynamic.SetFLutMatrix(lut)
	return nil
}
