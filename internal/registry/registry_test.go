package registry_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/fake"
	"github.com/momentics/hioload-fwd/internal/registry"
)

// checkLockstep asserts the registry and the watch set agree.
func checkLockstep(t *testing.T, r *registry.Registry[string], m *fake.Multiplexer) {
	t.Helper()
	watched := m.Watched()
	if len(watched) != r.Watched() {
		t.Fatalf("watch set has %d fds, registry reports %d", len(watched), r.Watched())
	}
	for fd := range watched {
		if !r.IsRegistered(fd) && !r.IsListener(fd) {
			t.Fatalf("fd %d watched but not registered", fd)
		}
	}
}

func TestRegisterPairIsSymmetric(t *testing.T) {
	m := fake.NewMultiplexer()
	r := registry.New[string](m)
	if err := r.RegisterPair(5, 9, "p1"); err != nil {
		t.Fatal(err)
	}
	for fd, want := range map[int]int{5: 9, 9: 5} {
		peer, err := r.LookupPeer(fd)
		if err != nil || peer != want {
			t.Fatalf("LookupPeer(%d) = %d, %v", fd, peer, err)
		}
		back, _ := r.LookupPeer(peer)
		if back != fd {
			t.Fatalf("peer of peer of %d is %d", fd, back)
		}
	}
	if v, _ := r.Lookup(9); v != "p1" {
		t.Fatalf("Lookup value %q", v)
	}
	if r.Pairs() != 1 || r.Watched() != 2 {
		t.Fatalf("pairs=%d watched=%d", r.Pairs(), r.Watched())
	}
	checkLockstep(t, r, m)
}

func TestRegisterPairRejectsKnownDescriptors(t *testing.T) {
	m := fake.NewMultiplexer()
	r := registry.New[string](m)
	if err := r.RegisterListener(3); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterPair(5, 6, "a"); err != nil {
		t.Fatal(err)
	}
	for _, tc := range [][2]int{{6, 7}, {7, 5}, {3, 8}} {
		err := r.RegisterPair(tc[0], tc[1], "b")
		if !errors.Is(err, api.ErrAlreadyRegistered) {
			t.Errorf("RegisterPair(%d,%d): %v", tc[0], tc[1], err)
		}
	}
	if err := r.RegisterPair(8, 8, "self"); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("self pair: %v", err)
	}
	checkLockstep(t, r, m)
}

func TestRemovePairFromEitherSide(t *testing.T) {
	for _, side := range []int{10, 11} {
		m := fake.NewMultiplexer()
		r := registry.New[string](m)
		if err := r.RegisterListener(1); err != nil {
			t.Fatal(err)
		}
		if err := r.RegisterPair(10, 11, "x"); err != nil {
			t.Fatal(err)
		}
		v, err := r.RemovePair(side)
		if err != nil || v != "x" {
			t.Fatalf("RemovePair(%d) = %q, %v", side, v, err)
		}
		if r.IsRegistered(10) || r.IsRegistered(11) {
			t.Fatal("pair still registered")
		}
		if _, err := r.LookupPeer(10); !errors.Is(err, api.ErrNotRegistered) {
			t.Fatalf("LookupPeer after removal: %v", err)
		}
		if r.Pairs() != 0 || r.Watched() != 1 {
			t.Fatalf("pairs=%d watched=%d", r.Pairs(), r.Watched())
		}
		checkLockstep(t, r, m)
	}
}

func TestRemovePairUnknownAndListener(t *testing.T) {
	m := fake.NewMultiplexer()
	r := registry.New[string](m)
	if _, err := r.RemovePair(4); !errors.Is(err, api.ErrNotRegistered) {
		t.Fatalf("unknown fd: %v", err)
	}
	if err := r.RegisterListener(4); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RemovePair(4); !errors.Is(err, api.ErrNotRegistered) {
		t.Fatalf("listener must not be removable as a pair: %v", err)
	}
	if !r.IsListener(4) {
		t.Fatal("listener lost")
	}
	if err := r.UnregisterListener(4); err != nil {
		t.Fatal(err)
	}
	checkLockstep(t, r, m)
}

func TestRegisterPairRollsBackOnWatchFailure(t *testing.T) {
	m := fake.NewMultiplexer()
	m.AddErr[21] = errors.New("boom")
	r := registry.New[string](m)
	if err := r.RegisterPair(20, 21, "z"); err == nil {
		t.Fatal("expected failure")
	}
	if r.IsRegistered(20) || r.IsRegistered(21) {
		t.Fatal("partial registration left behind")
	}
	if len(m.Watched()) != 0 {
		t.Fatalf("watch set not rolled back: %v", m.Watched())
	}
	checkLockstep(t, r, m)
}

func TestSetInterest(t *testing.T) {
	m := fake.NewMultiplexer()
	r := registry.New[string](m)
	if err := r.RegisterPair(1, 2, "p"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetInterest(2, api.Readable|api.Writable); err != nil {
		t.Fatal(err)
	}
	if got := m.Watched()[2]; got != api.Readable|api.Writable {
		t.Fatalf("multiplexer interest %b", got)
	}
	if i, ok := r.Interest(2); !ok || i != api.Readable|api.Writable {
		t.Fatalf("registry interest %b %v", i, ok)
	}
	if err := r.SetInterest(7, api.Readable); !errors.Is(err, api.ErrNotRegistered) {
		t.Fatalf("unknown fd: %v", err)
	}
}

func TestRangeAndDrain(t *testing.T) {
	m := fake.NewMultiplexer()
	r := registry.New[string](m)
	for i := 0; i < 5; i++ {
		if err := r.RegisterPair(100+2*i, 101+2*i, "v"); err != nil {
			t.Fatal(err)
		}
	}
	seen := 0
	r.Range(func(a, b int, _ string) bool {
		if a >= b {
			t.Errorf("pair visited from the larger side: %d/%d", a, b)
		}
		seen++
		return true
	})
	if seen != 5 {
		t.Fatalf("Range visited %d pairs", seen)
	}
	values, err := r.Drain()
	if err != nil || len(values) != 5 {
		t.Fatalf("Drain: %d values, %v", len(values), err)
	}
	if r.Pairs() != 0 || r.Watched() != 0 || len(m.Watched()) != 0 {
		t.Fatal("registry not empty after Drain")
	}
}
