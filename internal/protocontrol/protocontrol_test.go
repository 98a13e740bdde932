package protocontrol

import (
	"testing"

	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/l1"
	"github.com/rangecore/mac5g/internal/params"
	"github.com/rangecore/mac5g/internal/pdu"
	"github.com/rangecore/mac5g/internal/resolver"
	"github.com/rangecore/mac5g/internal/sdubuf"
	"github.com/rangecore/mac5g/internal/wire"
)

func newTestProtoControl(t *testing.T, role Role) (*ProtoControl, *params.Store) {
	t.Helper()
	log := clog.NewLogger("")
	current := params.NewStore()
	dynamic := params.NewStore()
	buffers := sdubuf.New(resolver.New(), []pdu.PeerID{1}, 100, log)
	return New(role, l1.New(log), buffers, current, dynamic, nil, log), current
}

func TestDecodeControlSDUAck(t *testing.T) {
	p, _ := newTestProtoControl(t, RoleBS)
	changed, err := p.DecodeControlSDU([]byte{byte(wire.OpAck)}, 1, 0)
	if err != nil {
		t.Fatalf("DecodeControlSDU: %v", err)
	}
	if changed {
		t.Fatal("an ack should never request a reconfigure")
	}
}

func TestDecodeControlSDURxMetricsUpdatesMCSDownlink(t *testing.T) {
	p, current := newTestProtoControl(t, RoleBS)
	current.EnsurePeer(1)

	metrics := pdu.RxMetrics{SNRAvg: 30, RankIndicator: 2}
	buf := &wire.Buffer{}
	metrics.SerializeCompact(buf)
	sdu := append([]byte{byte(wire.OpRxMetricsReport)}, buf.Bytes()...)

	changed, err := p.DecodeControlSDU(sdu, 1, 5)
	if err != nil {
		t.Fatalf("DecodeControlSDU: %v", err)
	}
	if !changed {
		t.Fatal("expected the first MCS update to report a change")
	}
	got, err := current.Peer(1)
	if err != nil {
		t.Fatalf("Peer: %v", err)
	}
	if got.MCSDownlink == 0 {
		t.Fatal("expected MCSDownlink to be set from the reported SNR")
	}
}

func TestDecodeControlSDUEmptyIsMalformed(t *testing.T) {
	p, _ := newTestProtoControl(t, RoleBS)
	if _, err := p.DecodeControlSDU(nil, 1, 0); err == nil {
		t.Fatal("expected an error decoding an empty control sdu")
	}
}

func TestDecodeControlSDUUnknownOpcodeErrors(t *testing.T) {
	p, _ := newTestProtoControl(t, RoleBS)
	if _, err := p.DecodeControlSDU([]byte{0xFF}, 1, 0); err == nil {
		t.Fatal("expected an error decoding an unrecognized opcode")
	}
}

func TestManagerDynamicParametersSetsFLutMatrix(t *testing.T) {
	p, _ := newTestProtoControl(t, RoleUE)
	if err := p.ManagerDynamicParameters([]byte{7}, pdu.BaseStationID); err != nil {
		t.Fatalf("ManagerDynamicParameters: %v", err)
	}
	if got := p.dynamic.FLutMatrix(); got != 7 {
		t.Fatalf("FLutMatrix = %d, want 7", got)
	}
}

func TestManagerDynamicParametersEmptyErrors(t *testing.T) {
	p, _ := newTestProtoControl(t, RoleUE)
	if err := p.ManagerDynamicParameters(nil, pdu.BaseStationID); err == nil {
		t.Fatal("expected an error decoding an empty dynamic-parameters sdu")
	}
}

func TestBuildAckRoundTripsThroughDecode(t *testing.T) {
	p, _ := newTestProtoControl(t, RoleBS)
	sdu := BuildAck()
	if changed, err := p.DecodeControlSDU(sdu, 1, 0); err != nil || changed {
		t.Fatalf("DecodeControlSDU(BuildAck()) = %v, %v", changed, err)
	}
}

func TestBuildRxMetricsAckRoundTripsThroughDecode(t *testing.T) {
	p, current := newTestProtoControl(t, RoleBS)
	current.EnsurePeer(1)
	sdu := BuildRxMetricsAck(pdu.RxMetrics{SNRAvg: 12.5, RankIndicator: 1})
	if _, err := p.DecodeControlSDU(sdu, 1, 0); err != nil {
		t.Fatalf("DecodeControlSDU(BuildRxMetricsAck(...)): %v", err)
	}
}
