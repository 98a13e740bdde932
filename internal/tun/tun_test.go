package tun

import (
	"context"
	"testing"
	"time"
)

func TestPipeDeviceRoundTripsPeerInjectedPackets(t *testing.T) {
	p := NewPipe()
	want := []byte{1, 2, 3, 4}
	p.InjectFromPeer(want)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := p.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Read = %v, want %v", got, want)
	}
}

func TestPipeDeviceReadTimesOutWithNilError(t *testing.T) {
	p := NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), ReadTimeout+50*time.Millisecond)
	defer cancel()
	pkt, err := p.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pkt != nil {
		t.Fatalf("expected a nil packet on idle timeout, got %v", pkt)
	}
}

func TestPipeDeviceReadRespectsCancellation(t *testing.T) {
	p := NewPipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Read(ctx); err == nil {
		t.Fatal("expected Read to return the context's error once cancelled")
	}
}

func TestPipeDeviceWriteSurfacesOnWrittenPackets(t *testing.T) {
	p := NewPipe()
	want := []byte{9, 9}
	if err := p.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case got := <-p.WrittenPackets():
		if len(got) != len(want) {
			t.Fatalf("WrittenPackets = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the written packet")
	}
}

func TestPipeDeviceWriteErrorsWhenBufferFull(t *testing.T) {
	p := NewPipe()
	for i := 0; i < cap(p.out); i++ {
		if err := p.Write([]byte{byte(i)}); err != nil {
			t.Fatalf("Write[%d]: %v", i, err)
		}
	}
	if err := p.Write([]byte{0xFF}); err == nil {
		t.Fatal("expected Write to error once the output buffer is full")
	}
}

func TestPipeDeviceReadAfterCloseReturnsNoError(t *testing.T) {
	p := NewPipe()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := p.Read(ctx)
	if err != nil {
		t.Fatalf("Read after Close: %v", err)
	}
}

var _ Device = (*pipeDevice)(nil)
