package sched

import "testing"

// TestPartitionDisjointAndBounded is property P5: every defined fusion LUT
// value partitions the 132-RB spectrum into two disjoint, in-bounds runs
// that lie only in idle channels (bit 3 = RBs 0-32 ... bit 0 = RBs 99-131).
func TestPartitionDisjointAndBounded(t *testing.T) {
	for lut := uint8(1); lut <= 15; lut++ {
		firstRB0, numRB0, firstRB1, numRB1, ok := Partition(lut)
		if !ok {
			continue
		}
		end0 := firstRB0 + numRB0
		end1 := firstRB1 + numRB1
		if end0 > 132 || end1 > 132 {
			t.Fatalf("lut=%d: allocation exceeds 132 RBs: [%d,%d) [%d,%d)", lut, firstRB0, end0, firstRB1, end1)
		}
		overlap := firstRB0 < end1 && firstRB1 < end0
		if overlap {
			t.Fatalf("lut=%d: allocations overlap: [%d,%d) [%d,%d)", lut, firstRB0, end0, firstRB1, end1)
		}
		for _, r := range [][2]uint8{{firstRB0, end0}, {firstRB1, end1}} {
			for rb := r[0]; rb < r[1]; rb++ {
				if lut&(8>>(rb/33)) == 0 {
					t.Fatalf("lut=%d: rb %d lies in a busy channel", lut, rb)
				}
			}
		}
	}
}

func TestPartitionZeroIsInvalid(t *testing.T) {
	if _, _, _, _, ok := Partition(0); ok {
		t.Fatal("expected lut value 0 (no channels available) to have no partition")
	}
}
