package pdu

// Numerology is one of the six predefined physical-layer numerologies
// (SPEC_FULL §6.1), transcribed from the reference stack's lib5grange.h
// numerology[] table.
type Numerology struct {
	SubcarrierSpacingKHz uint32
	SymbolsPerSubframe   uint32
	SubcarriersPerRB     uint32
	PilotDt              uint32
	PilotDf              uint32
}

// Numerologies indexes the six predefined configurations by id (0-5).
var Numerologies = [6]Numerology{
	{SubcarrierSpacingKHz: 16384, SymbolsPerSubframe: 2, SubcarriersPerRB: 96, PilotDt: 2, PilotDf: 4},
	{SubcarrierSpacingKHz: 8192, SymbolsPerSubframe: 4, SubcarriersPerRB: 48, PilotDt: 2, PilotDf: 4},
	{SubcarrierSpacingKHz: 4096, SymbolsPerSubframe: 8, SubcarriersPerRB: 24, PilotDt: 2, PilotDf: 6},
	{SubcarrierSpacingKHz: 2048, SymbolsPerSubframe: 16, SubcarriersPerRB: 12, PilotDt: 4, PilotDf: 6},
	{SubcarrierSpacingKHz: 2048, SymbolsPerSubframe: 32, SubcarriersPerRB: 12, PilotDt: 4, PilotDf: 6},
	{SubcarrierSpacingKHz: 1024, SymbolsPerSubframe: 64, SubcarriersPerRB: 6, PilotDt: 4, PilotDf: 6},
}

const (
	// DCISize is the fixed per-subframe downlink control information
	// overhead, in bits, subtracted once plus once per NUM_TB_PER_DCI extra
	// transport blocks.
	DCISize = 32
	// NumTBPerDCI is the number of transport blocks one DCI can schedule.
	NumTBPerDCI = 4
)

// REsPerRB returns the number of resource elements available per resource
// block for numerology n, after subtracting the pilot grid.
func (n Numerology) REsPerRB() uint32 {
	total := n.SubcarriersPerRB * n.SymbolsPerSubframe
	return total - total/(n.PilotDf*n.PilotDt)
}

// BitCapacity returns the number of bits numberOfRB resource blocks can
// carry under modulation mod and mimo, accounting for DCI overhead -- the
// same formula as the reference stack's get_bit_capacity.
func BitCapacity(n Numerology, numberOfRB uint32, mod Modulation, mimo MimoConfig) uint32 {
	if numberOfRB == 0 {
		return 0
	}
	re := n.REsPerRB()
	bits := re*numberOfRB*uint32(mod) - DCISize - DCISize*((numberOfRB-1)/NumTBPerDCI)
	if mimo.Scheme == MimoMultiplexing {
		bits *= uint32(mimo.NumTxAntennas)
	}
	return bits
}

// RequiredRBs returns the minimum number of resource blocks needed to carry
// numberOfBits bits, the inverse of BitCapacity.
func RequiredRBs(n Numerology, numberOfBits uint32, mod Modulation, mimo MimoConfig) uint32 {
	if numberOfBits == 0 {
		return 0
	}
	re := n.REsPerRB()
	perAntenna := uint32(1)
	if mimo.Scheme == MimoMultiplexing {
		perAntenna = uint32(mimo.NumTxAntennas)
	}
	bitsPerRB := re * uint32(mod) * perAntenna
	// invert BitCapacity's DCI-overhead term by solving for RB count,
	// rounding up so the allocation never under-serves the request.
	rb := (numberOfBits + DCISize + DCISize/NumTBPerDCI) / bitsPerRB
	for BitCapacity(n, rb, mod, mimo) < numberOfBits {
		rb++
	}
	return rb
}
