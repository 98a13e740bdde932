package cosora

import (
	"testing"
	"time"

	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/params"
)

// TestSpectrumSensingConvertToRBIdle checks the 33-RBs-per-idle-bit
// conversion against a sample of 4-bit reports (none, one, two and all four
// bits set).
func TestSpectrumSensingConvertToRBIdle(t *testing.T) {
	cases := map[uint8]int{0: 0, 1: 33, 0b0011: 66, 0xF: 132}
	for report, want := range cases {
		if got := SpectrumSensingConvertToRBIdle(report); got != want {
			t.Fatalf("report=%b: got %d want %d", report, got, want)
		}
	}
}

// TestFusionAlgorithmANDsReports is property P4: fusion resolves to the
// bitwise AND of every report seen within one window.
func TestFusionAlgorithmANDsReports(t *testing.T) {
	dynamic := params.NewStore()
	current := params.NewStore()
	current.SetFLutMatrix(0xF)

	resolved := make(chan struct{}, 1)
	var scheduledFn func()

	f := New(10, dynamic, current, func() bool { return false }, func() { resolved <- struct{}{} }, clog.NewLogger(""))
	f.after = func(d time.Duration, fn func()) *time.Timer {
		scheduledFn = fn
		return time.AfterFunc(time.Hour, func() {}) // never actually fires in the test
	}

	f.SetActive(true)
	f.FusionAlgorithm(0b1110)
	f.FusionAlgorithm(0b1010)
	f.FusionAlgorithm(0b1011)

	if scheduledFn == nil {
		t.Fatal("expected a resolution timer to be scheduled")
	}
	scheduledFn() // manually fire the window resolution

	select {
	case <-resolved:
	default:
		t.Fatal("expected a reconfig request since the fused LUT differs from current")
	}
	if got := dynamic.FLutMatrix(); got != 0b1110&0b1010&0b1011 {
		t.Fatalf("fused lut = %b, want %b", got, 0b1110&0b1010&0b1011)
	}
	if f.IsBusy() {
		t.Fatal("expected fusion to be idle after resolution")
	}
}

func TestFusionAlgorithmInactiveIsNoop(t *testing.T) {
	dynamic := params.NewStore()
	current := params.NewStore()
	f := New(10, dynamic, current, func() bool { return false }, func() {}, clog.NewLogger(""))
	f.FusionAlgorithm(0b0001)
	if f.IsBusy() {
		t.Fatal("expected inactive fusion to ignore reports")
	}
}
