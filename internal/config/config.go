// Package config defines the persisted MAC configuration (SPEC_FULL §6.4):
// role, numerology, waveform, default fusion LUT, rx-metric periodicity,
// MTU, and timing guards. The default is applied for each unspecified
// value, the way this codebase's cs104.Config does.
package config

import (
	"errors"
	"time"
)

// defines the MAC configuration's valid ranges.
const (
	NumerologyMin, NumerologyMax = 0, 5

	// "ip_timeout" range [1, 3600]s, default 30s: Data SDUs older than this
	// are dropped by the timeout sweep.
	IPTimeoutMin = 1 * time.Second
	IPTimeoutMax = 3600 * time.Second

	// "ss_report_wait" range [1, 1000] subframes, default 10: how long
	// Cosora waits for spectrum sensing reports before resolving a window.
	SSReportWaitMin = 1
	SSReportWaitMax = 1000

	// "phy_ready" range [1, 60]s, default 1s: guard interval the Start
	// state waits for a PHYConfig.Response.
	PHYReadyMin = 1 * time.Second
	PHYReadyMax = 60 * time.Second

	MTUMin, MTUMax = 64, 9000
)

// Role distinguishes the two execution modes a process can run in.
type Role uint8

const (
	RoleBS Role = iota
	RoleUE
)

func (r Role) String() string {
	if r == RoleUE {
		return "UE"
	}
	return "BS"
}

// Config is the persisted MAC configuration. The zero value is invalid;
// call Valid to fill in defaults and check ranges.
type Config struct {
	Role                Role
	CurrentMacAddress   uint8
	Numerology          uint8
	WaveformKind         uint8
	DefaultFusionLUT    uint8
	RxMetricPeriodicity uint8
	MTU                 int
	IPTimeout           time.Duration
	SSReportWait        int
	PHYReady            time.Duration
}

// Valid fills in defaults for every unspecified field and validates the
// rest, returning an error wrapping macerr.ErrConfigInvalid-shaped text
// (the config package itself stays import-cycle-free of macerr by
// returning plain errors; callers at the mac package boundary translate).
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("config: nil pointer")
	}
	if c.Numerology > NumerologyMax {
		return errors.New("config: numerology not in [0, 5]")
	}
	if c.IPTimeout == 0 {
		c.IPTimeout = 30 * time.Second
	} else if c.IPTimeout < IPTimeoutMin || c.IPTimeout > IPTimeoutMax {
		return errors.New("config: ip_timeout not in [1s, 3600s]")
	}
	if c.SSReportWait == 0 {
		c.SSReportWait = 10
	} else if c.SSReportWait < SSReportWaitMin || c.SSReportWait > SSReportWaitMax {
		return errors.New("config: ss_report_wait not in [1, 1000] subframes")
	}
	if c.PHYReady == 0 {
		c.PHYReady = 1 * time.Second
	} else if c.PHYReady < PHYReadyMin || c.PHYReady > PHYReadyMax {
		return errors.New("config: phy_ready not in [1s, 60s]")
	}
	if c.MTU == 0 {
		c.MTU = 1500
	} else if c.MTU < MTUMin || c.MTU > MTUMax {
		return errors.New("config: mtu not in [64, 9000]")
	}
	if c.DefaultFusionLUT == 0 {
		c.DefaultFusionLUT = 0xF
	}
	return nil
}

// Default returns the baseline configuration a freshly installed BS starts
// from.
func Default() Config {
	return Config{
		Role:             RoleBS,
		Numerology:       0,
		DefaultFusionLUT: 0xF,
		MTU:              1500,
		IPTimeout:        30 * time.Second,
		SSReportWait:     10,
		PHYReady:         1 * time.Second,
	}
}
