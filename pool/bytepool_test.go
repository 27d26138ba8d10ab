package pool_test

import (
	"testing"

	"github.com/momentics/hioload-fwd/pool"
)

func TestBytePoolAcquireRelease(t *testing.T) {
	p := pool.NewBytePool(128)
	b := p.Acquire(64)
	if len(b) != 64 || cap(b) != 128 {
		t.Fatalf("len=%d cap=%d", len(b), cap(b))
	}
	if p.Stats().InUse != 1 {
		t.Fatalf("in use %d", p.Stats().InUse)
	}
	p.Release(b)
	if p.Stats().InUse != 0 {
		t.Fatalf("in use after release %d", p.Stats().InUse)
	}
	b2 := p.Acquire(128)
	if cap(b2) < 128 {
		t.Error("buffer capacity too small")
	}
	p.Release(b2)
}

func TestBytePoolOversize(t *testing.T) {
	p := pool.NewBytePool(16)
	b := p.Acquire(100)
	if len(b) != 100 {
		t.Fatalf("len=%d", len(b))
	}
	p.Release(b)
	if s := p.Stats(); s.InUse != 0 {
		t.Fatalf("oversize buffer not accounted: %+v", s)
	}
	p.Release(nil)
	if p.Stats().InUse != 0 {
		t.Fatal("nil release changed the counters")
	}
}

func TestBytePoolDefaultSize(t *testing.T) {
	if pool.NewBytePool(0).Size() != 1024 {
		t.Fatal("unexpected default class size")
	}
}
