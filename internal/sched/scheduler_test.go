package sched

import (
	"testing"

	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/params"
	"github.com/rangecore/mac5g/internal/pdu"
	"github.com/rangecore/mac5g/internal/resolver"
	"github.com/rangecore/mac5g/internal/sdubuf"
)

func newTestScheduler(t *testing.T) (*Scheduler, *sdubuf.Buffers, *params.Store) {
	t.Helper()
	r := resolver.New()
	peers := []pdu.PeerID{0, 1, 2}
	buffers := sdubuf.New(r, peers, 100, clog.NewLogger(""))
	current := params.NewStore()
	for _, p := range peers {
		current.EnsurePeer(p)
	}
	current.SetFLutMatrix(0xF)
	return New(buffers, current, clog.NewLogger("")), buffers, current
}

func TestSelectUEsOnlyReturnsPeersWithPendingSDUs(t *testing.T) {
	s, buffers, _ := newTestScheduler(t)
	if err := buffers.EnqueueData(2, []byte{1}, 0); err != nil {
		t.Fatal(err)
	}
	got := s.SelectUEs([]pdu.PeerID{1, 2})
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("got %v, want [2]", got)
	}
}

// TestScheduleDownlinkDuplicatesLoneSelectedPeer resolves the Open Question:
// a single selected UE still gets two PDUs built against the two-way
// spectrum partition, so the partitioning logic always has two recipients.
func TestScheduleDownlinkDuplicatesLoneSelectedPeer(t *testing.T) {
	s, buffers, _ := newTestScheduler(t)
	if err := buffers.EnqueueData(1, []byte{1, 2, 3}, 0); err != nil {
		t.Fatal(err)
	}
	n := pdu.Numerologies[0]
	pdus, err := s.ScheduleDownlink([]pdu.PeerID{1, 2}, 0, n)
	if err != nil {
		t.Fatalf("ScheduleDownlink: %v", err)
	}
	if len(pdus) != 2 {
		t.Fatalf("got %d pdus, want 2", len(pdus))
	}
	for _, p := range pdus {
		if p.Allocation.Target != 1 {
			t.Fatalf("expected both pdus targeted at peer 1, got %d", p.Allocation.Target)
		}
	}
	if pdus[0].Allocation.FirstRB == pdus[1].Allocation.FirstRB && pdus[0].Allocation.NumberOfRB == pdus[1].Allocation.NumberOfRB {
		t.Fatal("expected the two duplicated pdus to use the two distinct spectrum halves")
	}
}

func TestScheduleDownlinkEmptyWhenNoPeerHasData(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	n := pdu.Numerologies[0]
	pdus, err := s.ScheduleDownlink([]pdu.PeerID{1, 2}, 0, n)
	if err != nil {
		t.Fatalf("ScheduleDownlink: %v", err)
	}
	if pdus != nil {
		t.Fatalf("expected no pdus, got %v", pdus)
	}
}

func TestScheduleUplinkUsesReservedAllocation(t *testing.T) {
	s, _, current := newTestScheduler(t)
	pp, err := current.Peer(1)
	if err != nil {
		t.Fatal(err)
	}
	pp.ULReservation = pdu.Allocation{Target: 1, FirstRB: 10, NumberOfRB: 20}
	current.SetPeer(1, pp)

	n := pdu.Numerologies[0]
	p, err := s.ScheduleUplink(1, 0, n)
	if err != nil {
		t.Fatalf("ScheduleUplink: %v", err)
	}
	if p.Allocation.FirstRB != 10 || p.Allocation.NumberOfRB != 20 {
		t.Fatalf("unexpected allocation: %+v", p.Allocation)
	}
	if !p.Ctl.FirstTBInSubframe || !p.Ctl.LastTBInSubframe {
		t.Fatal("expected a single-peer uplink pdu to be both first and last")
	}
}
