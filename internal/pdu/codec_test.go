package pdu

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/rangecore/mac5g/internal/wire"
)

// TestMacPDURoundTrip is property P1/P9: serialize then deserialize a
// MacPDU yields the original value.
func TestMacPDURoundTrip(t *testing.T) {
	original := MacPDU{
		Numerology: 2,
		Ctl: MacPduCtl{
			SequenceNumber:    3,
			SubframeNumber:    12345,
			FirstTBInSubframe: true,
			LastTBInSubframe:  false,
		},
		Allocation:    Allocation{Target: 1, FirstRB: 10, NumberOfRB: 33},
		Mimo:          MimoConfig{Scheme: MimoDiversity, NumTxAntennas: 2, PrecodingMatrix: 1},
		Mcs:           McsConfig{Modulation: QAM64, PowerOffset: 5, NumInfoBytes: 100, NumCodedBytes: 150},
		SNRAvg:        12.5,
		RankIndicator: 2,
		Data:          []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}

	buf := &wire.Buffer{}
	original.Serialize(buf)

	r := wire.NewReader(buf.Bytes())
	got, err := DeserializeMacPDU(r)
	if err != nil {
		t.Fatalf("DeserializeMacPDU: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected buffer exhausted, got %d bytes remaining", r.Len())
	}
	if !bytes.Equal(got.Data, original.Data) {
		t.Fatalf("Data mismatch: got %v want %v", got.Data, original.Data)
	}
	got.Data, original.Data = nil, nil
	if !reflect.DeepEqual(got, original) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, original)
	}
}

func TestAllocationDefault(t *testing.T) {
	a := DefaultAllocation()
	if a.Target != BroadcastID || a.FirstRB != 0 || a.NumberOfRB != 132 {
		t.Fatalf("unexpected default allocation: %+v", a)
	}
}

func TestRxMetricsCompactRoundTrip(t *testing.T) {
	original := RxMetrics{SNRAvg: 17.25, RankIndicator: 3}
	buf := &wire.Buffer{}
	original.SerializeCompact(buf)

	r := wire.NewReader(buf.Bytes())
	got, err := DeserializeRxMetricsCompact(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.SNRAvg != original.SNRAvg || got.RankIndicator != original.RankIndicator {
		t.Fatalf("got %+v want %+v", got, original)
	}
}

func TestBitCapacityMonotonicInRBCount(t *testing.T) {
	n := Numerologies[0]
	mimo := DefaultMimoConfig()
	prev := uint32(0)
	for rb := uint32(1); rb <= 132; rb += 11 {
		bits := BitCapacity(n, rb, QPSK, mimo)
		if bits < prev {
			t.Fatalf("bit capacity decreased at rb=%d: %d < %d", rb, bits, prev)
		}
		prev = bits
	}
}

func TestRequiredRBsInvertsBitCapacity(t *testing.T) {
	n := Numerologies[0]
	mimo := DefaultMimoConfig()
	want := BitCapacity(n, 20, QAM16, mimo)
	rb := RequiredRBs(n, want, QAM16, mimo)
	if BitCapacity(n, rb, QAM16, mimo) < want {
		t.Fatalf("RequiredRBs under-allocated: rb=%d gives %d bits, need %d", rb, BitCapacity(n, rb, QAM16, mimo), want)
	}
}
