// Package pdu holds the MAC layer's wire-level data model: peer addressing,
// spectrum allocation, MIMO/MCS configuration, the per-PDU control header,
// and the MAC PDU itself. Field sets and serialization order are grounded
// on the 5G-Range reference stack's lib5grange.h / libMac5gRange.h.
package pdu

// PeerID addresses a participant in the MAC's coverage area. 0 is reserved
// for the base station, 1-14 for user equipment, 15 is the broadcast/all
// address (ALL_TERMINAL in the reference stack).
type PeerID uint8

const (
	BaseStationID PeerID = 0
	BroadcastID   PeerID = 0xF
)

// MimoScheme selects how multiple transmit antennas are used.
type MimoScheme uint8

const (
	MimoNone          MimoScheme = 0
	MimoDiversity     MimoScheme = 1
	MimoMultiplexing  MimoScheme = 2
)

// Modulation is the QAM order in bits/symbol, matching the reference
// stack's qammod_t enum values exactly (so the byte on the wire needs no
// translation table).
type Modulation uint8

const (
	QPSK   Modulation = 2
	QAM16  Modulation = 4
	QAM64  Modulation = 6
	QAM256 Modulation = 8
)

// Allocation reserves a contiguous run of resource blocks for one peer.
type Allocation struct {
	Target      PeerID
	FirstRB     uint8
	NumberOfRB  uint8
}

// DefaultAllocation mirrors allocation_cfg_t's default-constructed values:
// addressed to everyone, starting at RB 0, spanning 132 RBs.
func DefaultAllocation() Allocation {
	return Allocation{Target: BroadcastID, FirstRB: 0, NumberOfRB: 132}
}

// MimoConfig configures antenna usage for one peer's allocation.
type MimoConfig struct {
	Scheme          MimoScheme
	NumTxAntennas   uint8
	PrecodingMatrix uint8
}

func DefaultMimoConfig() MimoConfig {
	return MimoConfig{Scheme: MimoNone, NumTxAntennas: 1, PrecodingMatrix: 0}
}

// McsConfig names the modulation and coding applied to one allocation.
type McsConfig struct {
	Modulation     Modulation
	PowerOffset    uint8
	NumInfoBytes   uint16
	NumCodedBytes  uint16
}

// MacPduCtl is the per-PDU control header: sequencing within a subframe and
// first/last markers used to frame a burst of PDUs sharing one subframe.
type MacPduCtl struct {
	SequenceNumber    uint8
	SubframeNumber    uint32
	FirstTBInSubframe bool
	LastTBInSubframe  bool
}

// RxMetrics carries the receive-side channel quality a UE reports back to
// its BS: either the compact (SNR average, rank indicator) pair carried in
// a dynamic-parameters ack, or the fuller per-RB SNR vector plus spectrum
// sensing report carried alongside a subframe-start control message. Both
// subsets are modeled on the same struct per SPEC_FULL §3/§4.8; callers pick
// the serialization method matching the channel the value travels on.
type RxMetrics struct {
	SNRPerRB            []float32
	SNRAvg              float32
	RankIndicator       uint8
	SpectrumSenseReport uint8
}

// MacPDU is one transport block: routing/control header, resource
// allocation, antenna and coding configuration, plus the opaque MAC SDU
// payload multiplexed inside it. Numerology is carried per-PDU (not just
// once per run) because the reference wire format does so even though the
// value is system-wide at runtime; SPEC_FULL §3 preserves this for wire
// compatibility rather than silently dropping the field.
type MacPDU struct {
	Numerology    uint8
	Ctl           MacPduCtl
	Allocation    Allocation
	Mimo          MimoConfig
	Mcs           McsConfig
	SNRAvg        float32
	RankIndicator uint8
	Data          []byte
}
