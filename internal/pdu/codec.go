package pdu

import "github.com/rangecore/mac5g/internal/wire"

// Serialize appends fields in declaration order: target, first RB, count.
func (a Allocation) Serialize(buf *wire.Buffer) {
	buf.AppendU8(uint8(a.Target))
	buf.AppendU8(a.FirstRB)
	buf.AppendU8(a.NumberOfRB)
}

// Deserialize pops in the exact reverse of Serialize's append order.
func DeserializeAllocation(buf *wire.Buffer) (Allocation, error) {
	var a Allocation
	numberOfRB, err := buf.PopU8()
	if err != nil {
		return a, err
	}
	firstRB, err := buf.PopU8()
	if err != nil {
		return a, err
	}
	target, err := buf.PopU8()
	if err != nil {
		return a, err
	}
	a.NumberOfRB = numberOfRB
	a.FirstRB = firstRB
	a.Target = PeerID(target)
	return a, nil
}

func (m MimoConfig) Serialize(buf *wire.Buffer) {
	buf.AppendU8(uint8(m.Scheme))
	buf.AppendU8(m.NumTxAntennas)
	buf.AppendU8(m.PrecodingMatrix)
}

func DeserializeMimoConfig(buf *wire.Buffer) (MimoConfig, error) {
	var m MimoConfig
	precoding, err := buf.PopU8()
	if err != nil {
		return m, err
	}
	numTx, err := buf.PopU8()
	if err != nil {
		return m, err
	}
	scheme, err := buf.PopU8()
	if err != nil {
		return m, err
	}
	m.PrecodingMatrix = precoding
	m.NumTxAntennas = numTx
	m.Scheme = MimoScheme(scheme)
	return m, nil
}

func (m McsConfig) Serialize(buf *wire.Buffer) {
	buf.AppendU8(uint8(m.Modulation))
	buf.AppendU8(m.PowerOffset)
	buf.AppendU16(m.NumInfoBytes)
	buf.AppendU16(m.NumCodedBytes)
}

func DeserializeMcsConfig(buf *wire.Buffer) (McsConfig, error) {
	var m McsConfig
	numCoded, err := buf.PopU16()
	if err != nil {
		return m, err
	}
	numInfo, err := buf.PopU16()
	if err != nil {
		return m, err
	}
	powerOffset, err := buf.PopU8()
	if err != nil {
		return m, err
	}
	modulation, err := buf.PopU8()
	if err != nil {
		return m, err
	}
	m.NumCodedBytes = numCoded
	m.NumInfoBytes = numInfo
	m.PowerOffset = powerOffset
	m.Modulation = Modulation(modulation)
	return m, nil
}

// Serialize pushes sequence number, subframe number, then last/first
// markers -- matching the reference stack's declared struct order, not the
// slightly different field listing some spec distillations use.
func (c MacPduCtl) Serialize(buf *wire.Buffer) {
	buf.AppendU8(c.SequenceNumber)
	buf.AppendU32(c.SubframeNumber)
	buf.AppendBool(c.LastTBInSubframe)
	buf.AppendBool(c.FirstTBInSubframe)
}

func DeserializeMacPduCtl(buf *wire.Buffer) (MacPduCtl, error) {
	var c MacPduCtl
	first, err := buf.PopBool()
	if err != nil {
		return c, err
	}
	last, err := buf.PopBool()
	if err != nil {
		return c, err
	}
	subframe, err := buf.PopU32()
	if err != nil {
		return c, err
	}
	seq, err := buf.PopU8()
	if err != nil {
		return c, err
	}
	c.FirstTBInSubframe = first
	c.LastTBInSubframe = last
	c.SubframeNumber = subframe
	c.SequenceNumber = seq
	return c, nil
}

// Serialize lays out a MacPDU exactly as the reference stack's MacPDU
// constructor/serializer does: numerology, control header, allocation,
// mimo, mcs, snr/rank, then the payload vector trailing its length.
func (p MacPDU) Serialize(buf *wire.Buffer) {
	buf.AppendU8(p.Numerology)
	p.Ctl.Serialize(buf)
	p.Allocation.Serialize(buf)
	p.Mimo.Serialize(buf)
	p.Mcs.Serialize(buf)
	buf.AppendFloat32(p.SNRAvg)
	buf.AppendU8(p.RankIndicator)
	buf.AppendVector(p.Data)
}

// DeserializeMacPDU pops a MacPDU written by Serialize. Field order is the
// exact mirror, payload first.
func DeserializeMacPDU(buf *wire.Buffer) (MacPDU, error) {
	var p MacPDU
	data, err := buf.PopVector()
	if err != nil {
		return p, err
	}
	rank, err := buf.PopU8()
	if err != nil {
		return p, err
	}
	snr, err := buf.PopFloat32()
	if err != nil {
		return p, err
	}
	mcs, err := DeserializeMcsConfig(buf)
	if err != nil {
		return p, err
	}
	mimo, err := DeserializeMimoConfig(buf)
	if err != nil {
		return p, err
	}
	alloc, err := DeserializeAllocation(buf)
	if err != nil {
		return p, err
	}
	ctl, err := DeserializeMacPduCtl(buf)
	if err != nil {
		return p, err
	}
	numerology, err := buf.PopU8()
	if err != nil {
		return p, err
	}
	p.Data = data
	p.RankIndicator = rank
	p.SNRAvg = snr
	p.Mcs = mcs
	p.Mimo = mimo
	p.Allocation = alloc
	p.Ctl = ctl
	p.Numerology = numerology
	return p, nil
}

// SerializeCompact writes the RxMetrics subset carried in a dynamic
// parameters acknowledgement: snr average and rank indicator only.
func (r RxMetrics) SerializeCompact(buf *wire.Buffer) {
	buf.AppendFloat32(r.SNRAvg)
	buf.AppendU8(r.RankIndicator)
}

func DeserializeRxMetricsCompact(buf *wire.Buffer) (RxMetrics, error) {
	var r RxMetrics
	rank, err := buf.PopU8()
	if err != nil {
		return r, err
	}
	snr, err := buf.PopFloat32()
	if err != nil {
		return r, err
	}
	r.RankIndicator = rank
	r.SNRAvg = snr
	return r, nil
}

// SerializeFull writes the RxMetrics subset carried alongside a subframe
// start message: spectrum sense report, then the per-RB SNR vector.
func (r RxMetrics) SerializeFull(buf *wire.Buffer) {
	buf.AppendU8(r.SpectrumSenseReport)
	buf.AppendFloat32Vector(r.SNRPerRB)
}

func DeserializeRxMetricsFull(buf *wire.Buffer) (RxMetrics, error) {
	var r RxMetrics
	snrs, err := buf.PopFloat32Vector()
	if err != nil {
		return r, err
	}
	ssr, err := buf.PopU8()
	if err != nil {
		return r, err
	}
	r.SNRPerRB = snrs
	r.SpectrumSenseReport = ssr
	return r, nil
}
