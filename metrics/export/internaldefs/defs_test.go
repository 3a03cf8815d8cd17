package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/fleetAuth"
)

func TestCounterDefsUniqueAndPrefixed(t *testing.T) {
	names := map[string]struct{}{}
	ids := map[fleetAuth.MetricID]struct{}{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "fleetauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
		if _, dup := names[def.Name]; dup {
			t.Fatalf("duplicate name %q", def.Name)
		}
		if _, dup := ids[def.ID]; dup {
			t.Fatalf("duplicate id %d", def.ID)
		}
		names[def.Name] = struct{}{}
		ids[def.ID] = struct{}{}
	}
	if _, ok := ids[fleetAuth.MetricAuthenticateLatency]; ok {
		t.Fatal("histogram id exported as counter")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 0, 2, 0, 0, 0, 0, 3, 9}))
	want := [BucketCount]uint64{1, 1, 3, 3, 3, 3, 3, 6}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}
