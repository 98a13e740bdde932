// Package cosora implements Collaborative Spectrum Sensing Optimized for
// Rural Areas: an AND-fusion of per-subframe spectrum sensing reports from
// every UE into one fusion lookup table value, per SPEC_FULL §4.9. Grounded
// on the reference stack's Cosora (fusionAlgorithm / spectrumSensingTimeout
// / isBusy), replacing its detached sleep-then-fire thread with a scheduled
// timer per SPEC_FULL §9's "replace with a scheduled task" guidance.
package cosora

import (
	"sync"
	"time"

	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/params"
)

// afterFunc matches time.AfterFunc's signature so tests can inject a fake
// scheduler instead of waiting on a real timer.
type afterFunc func(d time.Duration, f func()) *time.Timer

// Fusion runs the AND-fusion staging and reconfiguration trigger.
type Fusion struct {
	mu        sync.Mutex
	isActive  bool
	isWaiting bool
	staging   uint8 // fusionLookupTable, AND-accumulated across one window
	timeout   time.Duration

	dynamic       *params.Store
	current       *params.Store
	isStopping    func() bool
	requestReconfig func()
	log           clog.Clog
	after         afterFunc
}

// New creates a Fusion. ssReportWaitSubframes is the number of subframe
// periods to wait for every UE's report before resolving the window.
// isStopping and requestReconfig let Fusion observe and drive the owning
// MAC controller's mode without importing the mac package (which itself
// depends on cosora), matching the reference stack's direct pointer into
// MacController's mode with an idiomatic Go callback instead.
func New(ssReportWaitSubframes uint64, dynamic, current *params.Store, isStopping func() bool, requestReconfig func(), log clog.Clog) *Fusion {
	return &Fusion{
		staging:         0xF,
		timeout:         time.Duration(ssReportWaitSubframes) * 4600 * time.Nanosecond,
		dynamic:         dynamic,
		current:         current,
		isStopping:      isStopping,
		requestReconfig: requestReconfig,
		log:             log,
		after:           time.AfterFunc,
	}
}

// SetActive enables or disables fusion; BS-only functionality.
func (f *Fusion) SetActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isActive = active
}

// CalculateSpectrumSensingValue normalizes one UE's raw spectrum sensing
// measurement into the 4-bit report fused into the LUT. The reference
// stack's calculateSpectrumSensingValue is currently a pass-through; this
// module keeps that behavior rather than inventing an undocumented mapping.
func CalculateSpectrumSensingValue(measurement uint8) uint8 {
	return measurement
}

// SpectrumSensingConvertToRBIdle converts a fused 4-bit report into the
// number of idle resource blocks it represents: 33 RBs per idle (set) bit.
func SpectrumSensingConvertToRBIdle(report uint8) int {
	idle := 0
	for i := 0; i < 4; i++ {
		if report&(1<<uint(i)) != 0 {
			idle += 33
		}
	}
	return idle
}

// FusionAlgorithm ANDs ssReport into the staging byte and, if no resolution
// timer is already pending, starts one.
func (f *Fusion) FusionAlgorithm(ssReport uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.isActive {
		return
	}
	f.staging &= ssReport
	if !f.isWaiting {
		f.isWaiting = true
		f.after(f.timeout, f.resolve)
	}
}

// resolve finalizes the current window: if the staged LUT differs from the
// current parameters' LUT, it pushes the new value into Dynamic parameters
// and requests Reconfig (unless the controller is stopping), then resets
// staging for the next window.
func (f *Fusion) resolve() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isWaiting = false
	if f.staging != f.current.FLutMatrix() {
		f.dynamic.SetFLutMatrix(f.staging)
		if !f.isStopping() {
			f.requestReconfig()
		}
	}
	f.staging = 0xF
}

// IsBusy reports whether a resolution window is currently pending, used by
// the controller to gate the Stop transition on quiescence.
func (f *Fusion) IsBusy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isWaiting
}
