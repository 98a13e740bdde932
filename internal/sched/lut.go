package sched

// rbPair is the pair of resource-block ranges the fusion LUT table assigns
// to the two scheduled peers for one 4-bit LUT value.
type rbPair struct {
	firstRB0, numRB0 uint8
	firstRB1, numRB1 uint8
}

// lutTable transcribes calculateDownlinkSpectrumAllocation's case analysis
// (Scheduler.cpp) directly from its documented RB ranges rather than its
// literal bit-shift loops, which contain an operator-precedence bug in the
// original C++ ((x<<i)&8==8 parses as (x<<i)&(8==8) == (x<<i)&1) that the
// surrounding comments make clear was never the intent. Values not present
// here (0, and any value the original labels "Invalid") fall through to
// the default no-op case, matching its behavior.
var lutTable = map[uint8]rbPair{
	15: {0, 66, 66, 66},
	13: {0, 66, 99, 33},
	11: {0, 33, 66, 66},
	14: {0, 49, 49, 50},
	7:  {33, 49, 82, 50},
	9:  {0, 33, 99, 33},
	10: {0, 33, 66, 33},
	12: {0, 33, 33, 33},
	5:  {33, 33, 99, 33},
	6:  {33, 33, 66, 33},
	3:  {66, 33, 99, 33},
	8:  {0, 16, 16, 17},
	4:  {33, 16, 49, 17},
	2:  {66, 16, 82, 17},
	1:  {99, 16, 115, 17},
}

// Partition returns the two resource-block allocations for fusionLUT, and
// ok=false if the value has no entry (0 or out of the 4-bit range), the
// Go equivalent of the reference stack logging "Invalid Fusion Lookup
// Table value" and leaving allocations untouched.
func Partition(fusionLUT uint8) (firstRB0, numRB0, firstRB1, numRB1 uint8, ok bool) {
	p, ok := lutTable[fusionLUT&0xF]
	return p.firstRB0, p.numRB0, p.firstRB1, p.numRB1, ok
}
