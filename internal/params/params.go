// Package params holds the MAC's Dynamic and Current parameter sets, per
// SPEC_FULL §3/§6.4. Per-peer fields are keyed by PeerID in a map rather
// than parallel index-aligned vectors, replacing the anti-pattern SPEC_FULL
// §9 flags in the reference stack's DynamicParameters (arrays indexed by
// getIndex(macAddress)).
package params

import (
	"sync"

	"github.com/rangecore/mac5g/internal/macerr"
	"github.com/rangecore/mac5g/internal/pdu"
)

// PeerParams bundles every per-peer tunable the reference stack stores in
// parallel vectors.
type PeerParams struct {
	ULReservation         pdu.Allocation
	MCSDownlink           uint8
	MCSUplink             uint8
	Mimo                  pdu.MimoConfig
	TransmissionPowerCtl  uint8
}

// DefaultPeerParams returns the zero-value baseline a newly configured peer
// starts from.
func DefaultPeerParams() PeerParams {
	return PeerParams{
		ULReservation: pdu.DefaultAllocation(),
		Mimo:          pdu.DefaultMimoConfig(),
	}
}

// Store holds one parameter snapshot (Dynamic or Current), guarded by a
// single mutex, matching the reference stack's one dynamicParametersMutex
// protecting the whole struct rather than per-field locks.
type Store struct {
	mu                  sync.Mutex
	fLutMatrix          uint8
	rxMetricPeriodicity uint8
	peers               map[pdu.PeerID]PeerParams
}

// NewStore creates an empty parameter store.
func NewStore() *Store {
	return &Store{peers: make(map[pdu.PeerID]PeerParams), fLutMatrix: 0xF}
}

// EnsurePeer adds id with default parameters if not already present.
func (s *Store) EnsurePeer(id pdu.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; !ok {
		s.peers[id] = DefaultPeerParams()
	}
}

func (s *Store) Peer(id pdu.PeerID) (PeerParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return PeerParams{}, macerr.ErrPeerUnknown
	}
	return p, nil
}

func (s *Store) SetPeer(id pdu.PeerID, p PeerParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[id] = p
}

// SetMCSDownlink updates one peer's downlink MCS and reports whether the
// value actually changed (used to decide whether a Reconfig is needed).
func (s *Store) SetMCSDownlink(id pdu.PeerID, mcs uint8) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return false, macerr.ErrPeerUnknown
	}
	changed = p.MCSDownlink != mcs
	p.MCSDownlink = mcs
	s.peers[id] = p
	return changed, nil
}

// SetMCSUplink mirrors SetMCSDownlink for the uplink direction.
func (s *Store) SetMCSUplink(id pdu.PeerID, mcs uint8) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return false, macerr.ErrPeerUnknown
	}
	changed = p.MCSUplink != mcs
	p.MCSUplink = mcs
	s.peers[id] = p
	return changed, nil
}

func (s *Store) FLutMatrix() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fLutMatrix
}

// SetFLutMatrix updates the fusion LUT and reports whether it changed.
func (s *Store) SetFLutMatrix(v uint8) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.fLutMatrix != v
	s.fLutMatrix = v
	return changed
}

func (s *Store) RxMetricPeriodicity() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rxMetricPeriodicity
}

func (s *Store) SetRxMetricPeriodicity(v uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxMetricPeriodicity = v
}

// Peers returns a snapshot copy of every configured peer's parameters.
func (s *Store) Peers() map[pdu.PeerID]PeerParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[pdu.PeerID]PeerParams, len(s.peers))
	for k, v := range s.peers {
		out[k] = v
	}
	return out
}
