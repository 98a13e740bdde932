// Package amc implements adaptive modulation and coding: converting a
// reported SNR into an MCS index, per SPEC_FULL §4.8. The reference stack's
// LinkAdaptation::getSnrConvertToMcs threshold table is not reproduced in
// the distilled spec; this module documents its table as a tunable data
// set rather than claiming it is derived from a hidden source.
package amc

// thresholds holds the SNR (dB) below which each MCS index stops being
// usable; index i is usable when snr >= thresholds[i]. 27 entries mirror a
// 0-26 MCS index range, spaced 1 dB apart starting at -6 dB for MCS 0.
var thresholds = func() [27]float32 {
	var t [27]float32
	for i := range t {
		t[i] = -6 + float32(i)
	}
	return t
}()

// SNRToMCS returns the highest MCS index whose threshold is at or below
// snr, or 0 if snr is below every threshold.
func SNRToMCS(snr float32) uint8 {
	best := uint8(0)
	for i, th := range thresholds {
		if snr >= th {
			best = uint8(i)
		}
	}
	return best
}
