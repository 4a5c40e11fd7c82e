// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.23
//

package radioloc

import (
	"math"
	"testing"
)

func TestFingerprintDistance_SymmetryAndSelf(t *testing.T) {
	a := NewAccessPoint(FREQ_WIFI_24)
	b := NewAccessPoint(FREQ_WIFI_24)
	c := NewBeacon(FREQ_BLE)

	f1 := NewRssiFingerprint(
		NewRssiReading(a, -50),
		NewRssiReading(b, -60),
		NewRssiReading(c, -70),
	)
	f2 := NewRssiFingerprint(
		NewRssiReading(a, -53),
		NewRssiReading(b, -64),
	)

	d12 := f1.Distance(f2)
	d21 := f2.Distance(f1)
	if d12 != d21 {
		t.Errorf("distance not symmetric: %g != %g", d12, d21)
	}

	// 3^2 + 4^2 = 25 over the two common sources
	if sqr := f1.SqrDistance(f2); math.Abs(sqr-25) > 1e-12 {
		t.Errorf("expected squared distance 25, got %g", sqr)
	}
	if math.Abs(d12-5) > 1e-12 {
		t.Errorf("expected distance 5, got %g", d12)
	}

	if d := f1.Distance(f1); d != 0 {
		t.Errorf("self distance should be 0, got %g", d)
	}
}

func TestFingerprintDistance_Sentinel(t *testing.T) {
	a := NewAccessPoint(FREQ_WIFI_24)
	b := NewAccessPoint(FREQ_WIFI_5)

	f1 := NewRssiFingerprint(NewRssiReading(a, -50))

	if d := f1.SqrDistance(nil); d != math.MaxFloat64 {
		t.Errorf("nil fingerprint: expected sentinel, got %g", d)
	}
	if d := f1.Distance(nil); d != math.MaxFloat64 {
		t.Errorf("nil fingerprint: expected sentinel distance, got %g", d)
	}

	// No common sources
	f2 := NewRssiFingerprint(NewRssiReading(b, -50))
	if d := f1.SqrDistance(f2); d != math.MaxFloat64 {
		t.Errorf("disjoint fingerprints: expected sentinel, got %g", d)
	}
}

func TestFingerprintDistance_SqrIsSquare(t *testing.T) {
	a := NewAccessPoint(FREQ_WIFI_24)
	b := NewBeacon(FREQ_BLE)

	f1 := NewRssiFingerprint(NewRssiReading(a, -48.5), NewRssiReading(b, -71.2))
	f2 := NewRssiFingerprint(NewRssiReading(a, -52.1), NewRssiReading(b, -66.9))

	sqr := f1.SqrDistance(f2)
	d := f1.Distance(f2)
	if math.Abs(sqr-d*d) > 1e-9 {
		t.Errorf("SqrDistance %g != Distance^2 %g", sqr, d*d)
	}
}

func TestFingerprintDistance_DuplicatesDoubleCount(t *testing.T) {
	a := NewAccessPoint(FREQ_WIFI_24)

	// Duplicate source in the first fingerprint: each duplicate pairing
	// contributes independently
	f1 := NewRssiFingerprint(NewRssiReading(a, -50), NewRssiReading(a, -50))
	f2 := NewRssiFingerprint(NewRssiReading(a, -53))

	if sqr := f1.SqrDistance(f2); math.Abs(sqr-18) > 1e-12 {
		t.Errorf("expected 2*9=18, got %g", sqr)
	}
}

func TestFingerprintSources_PreservesOrder(t *testing.T) {
	a := NewAccessPoint(FREQ_WIFI_24)
	b := NewAccessPoint(FREQ_WIFI_5)

	f := NewRssiFingerprint(NewRssiReading(b, -40), NewRssiReading(a, -50), NewRssiReading(b, -45))
	ids := f.Sources()
	if len(ids) != 3 {
		t.Fatalf("expected 3 source ids, got %d", len(ids))
	}
	if ids[0] != b.ID || ids[1] != a.ID || ids[2] != b.ID {
		t.Errorf("source ids not in reading order")
	}
}
