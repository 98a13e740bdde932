package mac

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rangecore/mac5g/internal/amc"
	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/config"
	"github.com/rangecore/mac5g/internal/cosora"
	"github.com/rangecore/mac5g/internal/crc16"
	"github.com/rangecore/mac5g/internal/l1"
	"github.com/rangecore/mac5g/internal/macerr"
	"github.com/rangecore/mac5g/internal/mux"
	"github.com/rangecore/mac5g/internal/params"
	"github.com/rangecore/mac5g/internal/pdu"
	"github.com/rangecore/mac5g/internal/protocontrol"
	"github.com/rangecore/mac5g/internal/resolver"
	"github.com/rangecore/mac5g/internal/sched"
	"github.com/rangecore/mac5g/internal/sdubuf"
	"github.com/rangecore/mac5g/internal/subframe"
	"github.com/rangecore/mac5g/internal/tun"
	"github.com/rangecore/mac5g/internal/wire"
)

// Controller owns the MAC subsystem's state machine and every component it
// wires together, the analogue of the reference stack's MacController.
type Controller struct {
	cfg      config.Config
	store    *config.Store
	log      clog.Clog
	runID    string

	mu   sync.Mutex
	mode Mode

	rxMode, txMode, tunMode atomic.Int32

	configRequested atomic.Bool
	stopRequested   atomic.Bool
	startRequested  atomic.Bool

	uesOutdatedMu sync.Mutex
	uesOutdated   bool

	resolver  *resolver.Table
	buffers   *sdubuf.Buffers
	l1        *l1.Interface
	timer     *subframe.Timer
	dynamic   *params.Store
	current   *params.Store
	scheduler *sched.Scheduler
	cos       *cosora.Fusion
	proto     *protocontrol.ProtoControl
	tunDevice tun.Device

	peers []pdu.PeerID
	self  pdu.PeerID
}

// SetTunDevice wires the Tun device runSduIngest reads packets from and
// runPduIngest writes decapsulated downlink payloads to. Callers must set
// this before calling Run; a nil device leaves the Tun data path inert
// (the behavior earlier builds always had).
func (c *Controller) SetTunDevice(d tun.Device) {
	c.tunDevice = d
}

// New creates a Controller in Standby, not yet wired to any subsystem --
// wiring happens on entry to Config, mirroring the reference stack
// allocating SduBuffers/Scheduler/Cosora/etc. only once CONFIG_MODE runs.
func New(cfg config.Config, store *config.Store, log clog.Clog) *Controller {
	return &Controller{
		cfg:   cfg,
		store: store,
		log:   log,
		runID: uuid.NewString()[:8],
		mode:  Standby,
	}
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) setMode(m Mode) {
	c.mu.Lock()
	prev := c.mode
	c.mode = m
	c.mu.Unlock()
	c.log.Debug("mac[%s]: %s -> %s", c.runID, prev, m)
}

func (c *Controller) fire(ev Event) {
	c.mu.Lock()
	next := transition(c.mode, ev)
	prev := c.mode
	c.mode = next
	c.mu.Unlock()
	if prev != next {
		c.log.Debug("mac[%s]: %s -> %s (event %d)", c.runID, prev, next, ev)
	}
}

// RequestStart, RequestStop, RequestConfigChange set the three CLI signals
// (SPEC_FULL §6.5), each consumed (reset) once acted on.
func (c *Controller) RequestStart()        { c.startRequested.Store(true) }
func (c *Controller) RequestStop()         { c.stopRequested.Store(true) }
func (c *Controller) RequestConfigChange() { c.configRequested.Store(true) }

func (c *Controller) markUEsOutdated() {
	c.uesOutdatedMu.Lock()
	c.uesOutdated = true
	c.uesOutdatedMu.Unlock()
}

func (c *Controller) areUEsOutdated() bool {
	c.uesOutdatedMu.Lock()
	defer c.uesOutdatedMu.Unlock()
	return c.uesOutdated
}

func (c *Controller) clearUEsOutdated() {
	c.uesOutdatedMu.Lock()
	c.uesOutdated = false
	c.uesOutdatedMu.Unlock()
}

// Run drives the manager loop until ctx is cancelled. It is the Go
// analogue of MacController::manager()'s infinite switch, one iteration
// per pass rather than a busy spin, since each branch below either blocks
// on an event or returns quickly to let Run re-check ctx.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return c.shutdown(ctx)
		default:
		}
		switch c.Mode() {
		case Standby:
			c.runStandby(ctx)
		case Config:
			if err := c.runConfig(ctx); err != nil {
				c.log.Error("mac[%s]: config failed: %v", c.runID, err)
				return err
			}
		case Start:
			c.runStart(ctx)
		case Idle:
			c.runIdle(ctx)
		case Reconfig:
			c.runReconfig()
		case Stop:
			c.runStop(ctx)
			return nil
		}
	}
}

// shutdown handles a cancelled ctx by forcing the controller through the
// Stop state's quiescence gate on a bounded grace period, rather than
// returning immediately and skipping the Rx/Tx/Tun/Cosora drain scenario 6
// requires. Before Config has wired any subsystem there is nothing to
// drain.
func (c *Controller) shutdown(ctx context.Context) error {
	if c.Mode() == Standby {
		return ctx.Err()
	}
	c.setMode(Stop)
	grace, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.runStop(grace)
	return ctx.Err()
}

func (c *Controller) runStandby(ctx context.Context) {
	for !c.startRequested.Load() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	c.startRequested.Store(false)
	c.fire(EventStartCommand)
}

// runConfig wires every subsystem, matching CONFIG_MODE's object creation
// and hard-coded address table, then enqueues one MACC SDU per UE if this
// process is the BS.
func (c *Controller) runConfig(ctx context.Context) error {
	if err := c.cfg.Valid(); err != nil {
		return fmt.Errorf("mac: %w: %w", macerr.ErrConfigInvalid, err)
	}

	c.resolver = resolver.New()
	c.peers = []pdu.PeerID{0, 1, 2}
	c.self = pdu.PeerID(c.cfg.CurrentMacAddress)

	ipTimeoutSubframes := uint64(c.cfg.IPTimeout / subframe.Duration)
	c.buffers = sdubuf.New(c.resolver, c.peers, ipTimeoutSubframes, c.log)
	c.l1 = l1.New(c.log)
	c.timer = subframe.New()

	c.dynamic = params.NewStore()
	c.current = params.NewStore()
	for _, p := range c.peers {
		c.dynamic.EnsurePeer(p)
		c.current.EnsurePeer(p)
	}
	c.dynamic.SetFLutMatrix(c.cfg.DefaultFusionLUT)
	c.current.SetFLutMatrix(c.cfg.DefaultFusionLUT)
	c.dynamic.SetRxMetricPeriodicity(c.cfg.RxMetricPeriodicity)
	c.current.SetRxMetricPeriodicity(c.cfg.RxMetricPeriodicity)

	c.scheduler = sched.New(c.buffers, c.current, c.log)
	c.cos = cosora.New(uint64(c.cfg.SSReportWait), c.dynamic, c.current,
		func() bool { return c.Mode() == Stop },
		func() { c.fire(EventConfigRequestCommand) },
		c.log)
	if c.cfg.Role == config.RoleBS {
		c.cos.SetActive(true)
	}

	role := protocontrol.RoleBS
	if c.cfg.Role == config.RoleUE {
		role = protocontrol.RoleUE
	}
	c.proto = protocontrol.New(role, c.l1, c.buffers, c.current, c.dynamic, c.cos, c.log)

	go c.timer.Start()
	go c.runSduIngest(ctx)
	go c.runPduIngest(ctx)
	go c.runControlPump(ctx)
	go c.runTimeoutSweeper(ctx)

	if c.cfg.Role == config.RoleBS {
		for _, p := range c.peers {
			if p == pdu.BaseStationID {
				continue
			}
			sdu := c.serializeMACC()
			if err := c.buffers.EnqueueControl(p, sdu, c.timer.SubframeNumber()); err != nil {
				c.log.Warn("mac[%s]: enqueue MACC for peer %d: %v", c.runID, p, err)
			}
		}
	}

	if err := c.store.SaveCurrent(c.cfg); err != nil {
		c.log.Warn("mac[%s]: persisting current config: %v", c.runID, err)
	}
	c.fire(EventPHYReady)
	return nil
}

// serializeMACC builds the dynamic-parameters control SDU a BS sends to
// every UE on Config entry: currently just the fusion LUT byte, the
// minimal dynamic parameter a UE must learn before Idle.
func (c *Controller) serializeMACC() []byte {
	buf := &wire.Buffer{}
	buf.AppendU8(c.dynamic.FLutMatrix())
	return buf.Bytes()
}

// runStart sends PHYConfig.Request, waits out the PHYReady guard interval
// with bounded backoff, then enters Idle, matching START_MODE. The
// PHYConfig.Response is not checked: its arrival does not end the wait
// early, and its absence does not stop the move to Idle.
func (c *Controller) runStart(ctx context.Context) {
	if err := c.proto.Send([]byte{byte(wire.OpPHYConfigRequest)}); err != nil {
		c.log.Warn("mac[%s]: sending PHYConfig.Request: %v", c.runID, err)
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.PHYReady
	_ = backoff.Retry(func() error {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		return fmt.Errorf("mac: waiting for phy")
	}, b)
	c.fire(EventGuardElapsed)
}

// runIdle polls the CLI signals until one fires.
func (c *Controller) runIdle(ctx context.Context) {
	c.rxMode.Store(int32(Active))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if c.configRequested.Load() {
			c.configRequested.Store(false)
			if c.cfg.Role == config.RoleBS {
				c.markUEsOutdated()
			}
			c.fire(EventConfigRequestCommand)
			return
		}
		if c.stopRequested.Load() {
			c.stopRequested.Store(false)
			if err := c.proto.Send([]byte{byte(wire.OpPHYStopRequest)}); err != nil {
				c.log.Warn("mac[%s]: sending PHYStop.Request: %v", c.runID, err)
			}
			c.fire(EventStopCommand)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// runReconfig is gated on Rx/Tx quiescence (SPEC_FULL §4.7), then applies
// any pending FLUT change and re-distributes parameters to outdated UEs.
func (c *Controller) runReconfig() {
	for SubMode(c.rxMode.Load()) != Disabled || SubMode(c.txMode.Load()) != Disabled {
		time.Sleep(time.Millisecond)
	}

	if c.cfg.Role == config.RoleBS {
		if c.dynamic.FLutMatrix() != c.current.FLutMatrix() {
			buf := &wire.Buffer{}
			buf.AppendU8(c.dynamic.FLutMatrix())
			msg := append([]byte{byte(wire.OpFusionLutUpdate)}, buf.Bytes()...)
			if err := c.proto.Send(msg); err != nil {
				c.log.Warn("mac[%s]: sending fusion lut update: %v", c.runID, err)
			}
			c.current.SetFLutMatrix(c.dynamic.FLutMatrix())
		}
		if c.areUEsOutdated() {
			for _, p := range c.peers {
				if p == pdu.BaseStationID {
					continue
				}
				sdu := c.serializeMACC()
				if err := c.buffers.EnqueueControl(p, sdu, c.timer.SubframeNumber()); err != nil {
					c.log.Warn("mac[%s]: enqueue MACC for peer %d: %v", c.runID, p, err)
				}
			}
			c.clearUEsOutdated()
		}
	}

	if err := c.store.SaveCurrent(c.cfg); err != nil {
		c.log.Warn("mac[%s]: persisting current config: %v", c.runID, err)
	}
	c.fire(EventReconfigDone)
}

// runStop waits for Rx/Tx/Tun quiescence and Cosora to settle before
// returning to Standby, matching STOP_MODE's gating condition.
func (c *Controller) runStop(ctx context.Context) {
	c.timer.Stop()
	for SubMode(c.rxMode.Load()) != Disabled ||
		SubMode(c.txMode.Load()) != Disabled ||
		SubMode(c.tunMode.Load()) != Disabled ||
		c.cos.IsBusy() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
	c.fire(EventQuiescent)
}

// runSduIngest is the Tun-reading loop, gating MacTunMode around its body
// per the reference stack's enqueueingDataSdus. Without a tunDevice wired
// (SetTunDevice never called) this just gates TunMode and blocks, the same
// as earlier builds.
func (c *Controller) runSduIngest(ctx context.Context) {
	c.tunMode.Store(int32(Active))
	defer c.tunMode.Store(int32(Disabled))
	if c.tunDevice == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, err := c.tunDevice.Read(ctx)
		if err != nil {
			return
		}
		if len(pkt) == 0 {
			continue
		}
		if err := c.buffers.EnqueueIPPacket(pkt, c.timer.SubframeNumber()); err != nil {
			c.log.Warn("mac[%s]: enqueueing tun packet: %v", c.runID, err)
		}
	}
}

// runPduIngest demultiplexes inbound MAC PDUs from L1: a peer's reported
// average SNR updates this side's MCS for that peer (scenario 4), Data SDUs
// are decapsulated to Tun, and Control SDUs route through ProtoControl's
// decode paths.
func (c *Controller) runPduIngest(ctx context.Context) {
	for {
		payload, err := c.l1.ReceivePDU(ctx)
		if err != nil {
			return
		}
		received, err := pdu.DeserializeMacPDU(wire.NewReader(payload))
		if err != nil {
			c.log.Warn("mac[%s]: decoding inbound pdu: %v", c.runID, err)
			continue
		}
		c.handleInboundPDU(received)
	}
}

// handleInboundPDU applies one received MacPDU's link-quality feedback and
// hands its embedded SDUs to Tun (Data) or ProtoControl (Control).
func (c *Controller) handleInboundPDU(p pdu.MacPDU) {
	peer := p.Allocation.Target
	tick := c.timer.SubframeNumber()

	switch c.cfg.Role {
	case config.RoleBS:
		mcs := amc.SNRToMCS(p.SNRAvg)
		if changed, err := c.current.SetMCSUplink(peer, mcs); err == nil && changed {
			c.markUEsOutdated()
		}
	case config.RoleUE:
		c.maybeReportRxMetrics(p, tick)
	}

	if len(p.Data) == 0 {
		return
	}
	d, err := mux.NewDemultiplexer(p.Data)
	if err != nil {
		c.log.Warn("mac[%s]: demultiplexing inbound pdu from peer %d: %v", c.runID, peer, err)
		return
	}
	for {
		sdu, flag, ok, err := d.Next()
		if err != nil {
			c.log.Warn("mac[%s]: demultiplexing inbound sdu from peer %d: %v", c.runID, peer, err)
			return
		}
		if !ok {
			return
		}
		if flag == mux.FlagData {
			if c.tunDevice != nil {
				if err := c.tunDevice.Write(sdu); err != nil {
					c.log.Warn("mac[%s]: writing decapsulated packet to tun: %v", c.runID, err)
				}
			}
			continue
		}
		c.handleInboundControlSDU(sdu, peer, tick)
	}
}

// handleInboundControlSDU routes one Control SDU through the role-specific
// decode path: a BS decodes opcode-prefixed Ack/RxMetricsReport messages, a
// UE applies the BS's opcode-less MACC dynamic-parameters SDU and acks it.
func (c *Controller) handleInboundControlSDU(sdu []byte, peer pdu.PeerID, tick uint64) {
	if c.cfg.Role == config.RoleBS {
		changed, err := c.proto.DecodeControlSDU(sdu, peer, tick)
		if err != nil {
			c.log.Warn("mac[%s]: decoding control sdu from peer %d: %v", c.runID, peer, err)
			return
		}
		if changed {
			c.configRequested.Store(true)
		}
		return
	}
	if err := c.proto.ManagerDynamicParameters(sdu, peer); err != nil {
		c.log.Warn("mac[%s]: applying dynamic parameters: %v", c.runID, err)
		return
	}
	if err := c.buffers.EnqueueControl(pdu.BaseStationID, protocontrol.BuildAck(), tick); err != nil {
		c.log.Warn("mac[%s]: enqueue ack: %v", c.runID, err)
	}
	c.configRequested.Store(true)
}

// maybeReportRxMetrics enqueues a downlink quality report to the BS when a
// PDU is received on a subframe tick that is a multiple of
// RxMetricPeriodicity, the UE side of scenario 4's feedback loop.
func (c *Controller) maybeReportRxMetrics(p pdu.MacPDU, tick uint64) {
	periodicity := uint64(c.current.RxMetricPeriodicity())
	if periodicity == 0 || tick%periodicity != 0 {
		return
	}
	metrics := pdu.RxMetrics{SNRAvg: p.SNRAvg, RankIndicator: p.RankIndicator}
	sdu := protocontrol.BuildRxMetricsAck(metrics)
	if err := c.buffers.EnqueueControl(pdu.BaseStationID, sdu, tick); err != nil {
		c.log.Warn("mac[%s]: enqueue rx metrics report: %v", c.runID, err)
	}
}

// runTimeoutSweeper periodically evicts Data SDUs older than the configured
// IP timeout (SPEC_FULL §4.7's T_timeout thread, invariant 3), rather than
// leaving TimeoutSweep to be invoked only by tests.
func (c *Controller) runTimeoutSweeper(ctx context.Context) {
	interval := c.cfg.IPTimeout / 10
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := c.buffers.TimeoutSweep(c.timer.SubframeNumber()); dropped > 0 {
				c.log.Debug("mac[%s]: timeout sweep dropped %d stale sdus", c.runID, dropped)
			}
		}
	}
}

// runControlPump dispatches inbound control messages for the lifetime of
// the controller, mirroring receiveInterlayerMessages.
func (c *Controller) runControlPump(ctx context.Context) {
	c.proto.Run(ctx, protoHandlers(c))
}

func protoHandlers(c *Controller) protocontrol.Handlers {
	return protocontrol.Handlers{
		OnPHYConfigAck: func() {},
		OnPHYStopAck:   func() {},
		OnSubframeRxStart: func(msg []byte) {
			c.handleSubframeRxStart(msg)
		},
		OnSubframeEnd: func() {
			c.rxMode.Store(int32(Disabled))
		},
		OnPHYTxIndication: func() {
			c.scheduling()
		},
	}
}

func (c *Controller) handleSubframeRxStart(msg []byte) {
	if len(msg) <= 1 {
		return
	}
	c.txMode.Store(int32(Active))
}

// scheduling is the PHYTx.Indication handler: builds PDUs for this
// subframe and hands them to L1, mirroring MacController::scheduling().
func (c *Controller) scheduling() {
	c.txMode.Store(int32(Active))
	defer c.txMode.Store(int32(Disabled))

	numerology := c.cfg.Numerology
	n := pdu.Numerologies[numerology]

	var pdus []pdu.MacPDU
	var err error
	if c.cfg.Role == config.RoleBS {
		if c.current.FLutMatrix() == 0 {
			c.log.Warn("mac[%s]: all channels busy, skipping subframe", c.runID)
			return
		}
		pdus, err = c.scheduler.ScheduleDownlink(c.peers[1:], numerology, n)
	} else {
		var one pdu.MacPDU
		one, err = c.scheduler.ScheduleUplink(c.self, numerology, n)
		if err == nil && (one.Data != nil) {
			pdus = []pdu.MacPDU{one}
		}
	}
	if err != nil {
		c.log.Warn("mac[%s]: scheduling: %v", c.runID, err)
		return
	}
	for _, p := range pdus {
		buf := &wire.Buffer{}
		p.Serialize(buf)
		frame := crc16.Append(buf.Bytes())
		if err := c.l1.SendPDU(frame); err != nil {
			c.log.Warn("mac[%s]: sending pdu: %v", c.runID, err)
		}
	}
}
