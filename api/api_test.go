package api_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/momentics/hioload-fwd/api"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := api.NewError(api.ErrCodeInvalidArgument, "bad port").WithContext("port", 70000)
	if !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatal("structured error should match its sentinel")
	}
	if errors.Is(err, api.ErrNotRegistered) {
		t.Fatal("structured error matched an unrelated sentinel")
	}
	wrapped := fmt.Errorf("config: %w", err)
	if !errors.Is(wrapped, api.ErrInvalidArgument) {
		t.Fatal("wrapped structured error lost its sentinel")
	}
	if got := api.NewError(api.ErrCodeInternal, "boom").Error(); got != "boom" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestPairStateString(t *testing.T) {
	cases := map[api.PairState]string{
		api.PairAccepted:    "accepted",
		api.PairConnecting:  "connecting",
		api.PairEstablished: "established",
		api.PairClosing:     "closing",
		api.PairClosed:      "closed",
		api.PairState(42):   "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("%d: got %q, want %q", s, s.String(), want)
		}
	}
}

func TestSidePeer(t *testing.T) {
	if api.SideClient.Peer() != api.SideRemote || api.SideRemote.Peer() != api.SideClient {
		t.Fatal("peer of peer must be self")
	}
	if api.SideNone.Peer() != api.SideNone {
		t.Fatal("none has no peer")
	}
}

func TestInterestHas(t *testing.T) {
	i := api.Readable | api.Hangup
	if !i.Has(api.Readable) || i.Has(api.Writable) || !i.Has(api.Readable|api.Hangup) {
		t.Fatalf("unexpected Has results for %b", i)
	}
}
