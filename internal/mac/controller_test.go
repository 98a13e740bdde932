package mac

import (
	"path/filepath"
	"testing"

	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/config"
	"github.com/rangecore/mac5g/internal/cosora"
	"github.com/rangecore/mac5g/internal/l1"
	"github.com/rangecore/mac5g/internal/params"
	"github.com/rangecore/mac5g/internal/pdu"
	"github.com/rangecore/mac5g/internal/protocontrol"
	"github.com/rangecore/mac5g/internal/resolver"
	"github.com/rangecore/mac5g/internal/sched"
	"github.com/rangecore/mac5g/internal/sdubuf"
	"github.com/rangecore/mac5g/internal/subframe"
)

// newWiredController builds a Controller with every subsystem runConfig
// would normally wire, but without starting any goroutine, so runReconfig
// can be exercised synchronously.
func newWiredController(t *testing.T, role config.Role) *Controller {
	t.Helper()
	store, err := config.Open(filepath.Join(t.TempDir(), "mac.db"))
	if err != nil {
		t.Fatalf("config.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Role = role

	c := New(cfg, store, clog.NewLogger(""))
	c.resolver = resolver.New()
	c.peers = []pdu.PeerID{0, 1, 2}
	c.self = pdu.PeerID(cfg.CurrentMacAddress)
	c.buffers = sdubuf.New(c.resolver, c.peers, 10, c.log)
	c.l1 = l1.New(c.log)
	c.timer = subframe.New()
	c.dynamic = params.NewStore()
	c.current = params.NewStore()
	for _, p := range c.peers {
		c.dynamic.EnsurePeer(p)
		c.current.EnsurePeer(p)
	}
	c.dynamic.SetFLutMatrix(cfg.DefaultFusionLUT)
	c.current.SetFLutMatrix(cfg.DefaultFusionLUT)
	c.scheduler = sched.New(c.buffers, c.current, c.log)
	c.cos = cosora.New(10, c.dynamic, c.current, func() bool { return false }, func() {}, c.log)

	protoRole := protocontrol.RoleBS
	if role == config.RoleUE {
		protoRole = protocontrol.RoleUE
	}
	c.proto = protocontrol.New(protoRole, c.l1, c.buffers, c.current, c.dynamic, c.cos, c.log)
	c.setMode(Idle)
	return c
}

// TestReconfigEnqueuesMACCBeforeReconfigDone is property P8: when UEs are
// marked outdated, runReconfig must enqueue a fresh MACC control SDU for
// every non-BS peer before it fires EventReconfigDone and the controller
// leaves Reconfig -- otherwise a scheduling pass in Idle could run against
// stale dynamic parameters.
func TestReconfigEnqueuesMACCBeforeReconfigDone(t *testing.T) {
	c := newWiredController(t, config.RoleBS)
	c.setMode(Reconfig)
	c.markUEsOutdated()

	// Rx/Tx are already Disabled (zero value), so runReconfig proceeds
	// without blocking.
	c.runReconfig()

	if c.Mode() != Idle {
		t.Fatalf("expected Reconfig -> Idle, got %s", c.Mode())
	}
	if c.areUEsOutdated() {
		t.Fatal("expected uesOutdated to be cleared by runReconfig")
	}
	for _, p := range []pdu.PeerID{1, 2} {
		entry, ok, err := c.buffers.NextControl(p)
		if err != nil {
			t.Fatalf("NextControl(%d): %v", p, err)
		}
		if !ok {
			t.Fatalf("expected a MACC control SDU enqueued for peer %d before ReconfigDone", p)
		}
		if len(entry.Bytes) != 1 {
			t.Fatalf("unexpected MACC payload for peer %d: %v", p, entry.Bytes)
		}
	}
}

// TestReconfigPropagatesChangedFusionLUT checks that a dynamic FLUT value
// that differs from current is applied to current during Reconfig.
func TestReconfigPropagatesChangedFusionLUT(t *testing.T) {
	c := newWiredController(t, config.RoleBS)
	c.dynamic.SetFLutMatrix(0b0101)

	c.runReconfig()

	if got := c.current.FLutMatrix(); got != 0b0101 {
		t.Fatalf("current fusion lut = %b, want %b", got, 0b0101)
	}
}

// TestReconfigNoopWhenNothingChanged confirms runReconfig doesn't enqueue
// MACC SDUs when no UE was marked outdated.
func TestReconfigNoopWhenNothingChanged(t *testing.T) {
	c := newWiredController(t, config.RoleBS)
	c.runReconfig()
	for _, p := range []pdu.PeerID{1, 2} {
		if _, ok, _ := c.buffers.NextControl(p); ok {
			t.Fatalf("expected no MACC enqueued for peer %d", p)
		}
	}
}
