// Package sched implements the BS and UE scheduling passes: selecting
// peers with pending SDUs, partitioning the spectrum per the fusion LUT,
// and filling MAC PDUs from the SDU buffers, per SPEC_FULL §4.6.
package sched

import (
	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/mux"
	"github.com/rangecore/mac5g/internal/params"
	"github.com/rangecore/mac5g/internal/pdu"
	"github.com/rangecore/mac5g/internal/sdubuf"
)

// Scheduler builds MAC PDUs for one subframe.
type Scheduler struct {
	buffers *sdubuf.Buffers
	current *params.Store
	log     clog.Clog
}

func New(buffers *sdubuf.Buffers, current *params.Store, log clog.Clog) *Scheduler {
	return &Scheduler{buffers: buffers, current: current, log: log}
}

// SelectUEs returns the peers with pending SDUs, in the insertion order
// given by candidates, matching selectUEs' behavior of scanning in a fixed
// peer order and collecting everyone with data.
func (s *Scheduler) SelectUEs(candidates []pdu.PeerID) []pdu.PeerID {
	var out []pdu.PeerID
	for _, id := range candidates {
		if ok, _ := s.buffers.BufferStatus(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// fillOnePDU builds one peer's MacPDU: control header, allocation, mimo,
// mcs, numerology, then aggregates Control SDUs ahead of Data SDUs up to
// the bit capacity the allocation affords.
func (s *Scheduler) fillOnePDU(peer pdu.PeerID, alloc pdu.Allocation, seq int, first, last bool, numerology uint8, n pdu.Numerology) (pdu.MacPDU, error) {
	pp, err := s.current.Peer(peer)
	if err != nil {
		return pdu.MacPDU{}, err
	}
	mcs := pdu.McsConfig{Modulation: mcsToModulation(pp.MCSDownlink)}
	numberBits := pdu.BitCapacity(n, uint32(alloc.NumberOfRB), mcs.Modulation, pp.Mimo)
	maxBytes := int(numberBits / 8)

	m := mux.New(maxBytes, 0, uint8(peer))
	for {
		entry, ok, err := s.buffers.NextControl(peer)
		if err != nil || !ok {
			break
		}
		added, err := m.AddSDU(entry.Bytes, mux.FlagControl)
		if err != nil {
			s.log.Warn("sched: control sdu rejected: %v", err)
			continue
		}
		if !added {
			break
		}
	}
	for {
		entry, ok, err := s.buffers.NextData(peer)
		if err != nil || !ok {
			break
		}
		added, err := m.AddSDU(entry.Bytes, mux.FlagData)
		if err != nil {
			s.log.Warn("sched: data sdu rejected: %v", err)
			continue
		}
		if !added {
			break
		}
	}

	p := pdu.MacPDU{
		Numerology: numerology,
		Ctl: pdu.MacPduCtl{
			SequenceNumber:    uint8(seq),
			FirstTBInSubframe: first,
			LastTBInSubframe:  last,
		},
		Allocation: alloc,
		Mimo:       pp.Mimo,
		Mcs:        mcs,
	}
	if !m.IsEmpty() {
		p.Data = m.GetPDU()
	}
	return p, nil
}

// ScheduleDownlink is the BS-side pass: selects up to two peers, duplicates
// a lone selected peer (per SPEC_FULL §4.6's Open Question resolution, so
// calculateDownlinkSpectrumAllocation always has two recipients), partitions
// the spectrum per the current fusion LUT, and fills one PDU per peer.
func (s *Scheduler) ScheduleDownlink(candidates []pdu.PeerID, numerology uint8, n pdu.Numerology) ([]pdu.MacPDU, error) {
	selected := s.SelectUEs(candidates)
	if len(selected) == 0 {
		return nil, nil
	}
	if len(selected) == 1 {
		selected = append(selected, selected[0])
	}
	ueIDs := selected[:2]

	firstRB0, numRB0, firstRB1, numRB1, ok := Partition(s.current.FLutMatrix())
	if !ok {
		s.log.Warn("sched: invalid fusion lookup table value %d", s.current.FLutMatrix())
		return nil, nil
	}
	allocs := []pdu.Allocation{
		{Target: ueIDs[0], FirstRB: firstRB0, NumberOfRB: numRB0},
		{Target: ueIDs[1], FirstRB: firstRB1, NumberOfRB: numRB1},
	}

	pdus := make([]pdu.MacPDU, 0, len(ueIDs))
	for i, peer := range ueIDs {
		p, err := s.fillOnePDU(peer, allocs[i], i, i == 0, i == len(ueIDs)-1, numerology, n)
		if err != nil {
			return nil, err
		}
		pdus = append(pdus, p)
	}
	return pdus, nil
}

// ScheduleUplink is the UE-side pass: a single allocation reserved by the
// BS for this peer's own uplink transmission.
func (s *Scheduler) ScheduleUplink(self pdu.PeerID, numerology uint8, n pdu.Numerology) (pdu.MacPDU, error) {
	pp, err := s.current.Peer(self)
	if err != nil {
		return pdu.MacPDU{}, err
	}
	return s.fillOnePDU(self, pp.ULReservation, 0, true, true, numerology, n)
}

// mcsToModulation maps an MCS index to its modulation order. The reference
// stack's mcsToModulation table is an implementation-defined lookup SPEC_FULL
// leaves as a tunable; this module uses four even bands across the MCS
// range, matching the four Modulation constants it defines.
func mcsToModulation(mcs uint8) pdu.Modulation {
	switch {
	case mcs < 7:
		return pdu.QPSK
	case mcs < 14:
		return pdu.QAM16
	case mcs < 21:
		return pdu.QAM64
	default:
		return pdu.QAM256
	}
}
