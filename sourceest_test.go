// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.23
//

package radioloc

import (
	"errors"
	"math"
	"testing"
)

// makeEmitterReadings builds noiseless located readings of an emitter at
// truePos with transmitted power pteDBm, observed from the given
// receiver positions
func makeEmitterReadings(truePos Point, pteDBm, freq float64, receivers []Point) []*LocatedRssiReading {
	src := NewRadioSource(SRC_ACCESS_POINT, freq)
	k := PropagationConstant(freq)
	readings := make([]*LocatedRssiReading, len(receivers))
	for i, p := range receivers {
		rssi := PredictRssi(k, pteDBm, truePos.SqrDistance(p))
		readings[i] = NewLocatedRssiReading(src, rssi, p)
	}
	return readings
}

func TestRadioSourceEstimator_RoundTrip2D(t *testing.T) {
	truePos := NewPoint2D(3, 4)
	const pte = 20.0

	readings := makeEmitterReadings(truePos, pte, FREQ_WIFI_24, []Point{
		NewPoint2D(0, 0),
		NewPoint2D(10, 0),
		NewPoint2D(0, 10),
		NewPoint2D(10, 10),
		NewPoint2D(5, -5),
	})
	est, err := NewRadioSourceEstimator(2, readings, nil)
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}
	if err := est.Estimate(); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}

	got := est.EstimatedPosition()
	if d := got.Distance(truePos); d > 1e-3 {
		t.Errorf("position: expected %v, got %v (off by %g m)", truePos, got, d)
	}
	if dp := math.Abs(est.EstimatedTxPowerDBm() - pte); dp > 0.01 {
		t.Errorf("power: expected %g dBm, got %g dBm", pte, est.EstimatedTxPowerDBm())
	}
	if est.ChiSq() > 1e-6 {
		t.Errorf("noiseless fit should have ~0 chi-square, got %g", est.ChiSq())
	}

	// Linear power accessor
	if mw := est.EstimatedTxPower(); math.Abs(mw-DBmToPower(est.EstimatedTxPowerDBm())) > 1e-12 {
		t.Errorf("linear power accessor inconsistent: %g", mw)
	}
}

func TestRadioSourceEstimator_RoundTrip3D(t *testing.T) {
	truePos := NewPoint3D(2, 3, 1.5)
	const pte = 12.0

	readings := makeEmitterReadings(truePos, pte, FREQ_WIFI_5, []Point{
		NewPoint3D(0, 0, 0),
		NewPoint3D(10, 0, 0),
		NewPoint3D(0, 10, 0),
		NewPoint3D(0, 0, 4),
		NewPoint3D(10, 10, 4),
		NewPoint3D(-5, 5, 2),
	})
	est, err := NewRadioSourceEstimator(3, readings, nil)
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}
	if err := est.Estimate(); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}

	if d := est.EstimatedPosition().Distance(truePos); d > 1e-3 {
		t.Errorf("position: expected %v, got %v (off by %g m)", truePos, est.EstimatedPosition(), d)
	}
	if dp := math.Abs(est.EstimatedTxPowerDBm() - pte); dp > 0.01 {
		t.Errorf("power: expected %g dBm, got %g dBm", pte, est.EstimatedTxPowerDBm())
	}

	// Full covariance over [x y z pte], position block and power variance
	cov := est.Covariance()
	if r, c := cov.Dims(); r != 4 || c != 4 {
		t.Fatalf("expected 4x4 covariance, got %dx%d", r, c)
	}
	pc := est.PositionCovariance()
	if r, c := pc.Dims(); r != 3 || c != 3 {
		t.Fatalf("expected 3x3 position covariance, got %dx%d", r, c)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if pc.At(i, j) != cov.At(i, j) {
				t.Errorf("position covariance (%d,%d) differs from leading block", i, j)
			}
		}
	}
	if v := est.TxPowerVariance(); v != cov.At(3, 3) {
		t.Errorf("power variance %g != covariance diagonal %g", v, cov.At(3, 3))
	}
	if sd := est.PositionStdDev(); len(sd) != 3 {
		t.Errorf("expected 3 position std devs, got %d", len(sd))
	}
}

func TestRadioSourceEstimator_InitialValuesRespected(t *testing.T) {
	truePos := NewPoint2D(-2, 6)
	const pte = 15.0

	readings := makeEmitterReadings(truePos, pte, FREQ_WIFI_24, []Point{
		NewPoint2D(0, 0),
		NewPoint2D(10, 0),
		NewPoint2D(0, 10),
		NewPoint2D(-10, 10),
	})
	est, err := NewRadioSourceEstimator(2, readings, nil)
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}
	if err := est.SetInitialPosition(NewPoint2D(-1, 5)); err != nil {
		t.Fatalf("failed to set initial position: %v", err)
	}
	if err := est.SetInitialTxPower(10); err != nil {
		t.Fatalf("failed to set initial power: %v", err)
	}
	if err := est.Estimate(); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if d := est.EstimatedPosition().Distance(truePos); d > 1e-3 {
		t.Errorf("position off by %g m", d)
	}

	// Dimension-mismatched initial position is rejected
	if err := est.SetInitialPosition(NewPoint3D(0, 0, 0)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRadioSourceEstimator_ReadingValidation(t *testing.T) {
	src := NewRadioSource(SRC_ACCESS_POINT, FREQ_WIFI_24)
	other := NewRadioSource(SRC_ACCESS_POINT, FREQ_WIFI_24)

	est := NewRadioSourceEstimator2D()

	// One reading short of dim+1
	few := []*LocatedRssiReading{
		NewLocatedRssiReading(src, -50, NewPoint2D(0, 0)),
		NewLocatedRssiReading(src, -55, NewPoint2D(10, 0)),
	}
	if err := est.SetReadings(few); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("too few readings: expected ErrInvalidArgument, got %v", err)
	}

	// Mixed sources are a caller error
	mixed := []*LocatedRssiReading{
		NewLocatedRssiReading(src, -50, NewPoint2D(0, 0)),
		NewLocatedRssiReading(src, -55, NewPoint2D(10, 0)),
		NewLocatedRssiReading(other, -60, NewPoint2D(0, 10)),
	}
	if err := est.SetReadings(mixed); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("mixed sources: expected ErrInvalidArgument, got %v", err)
	}
}

func TestRadioSourceEstimator_MinimumCountBoundary(t *testing.T) {
	truePos := NewPoint2D(3, 3)

	// Exactly dim readings: not ready
	est := NewRadioSourceEstimator2D()
	est.readings = makeEmitterReadings(truePos, 20, FREQ_WIFI_24, []Point{
		NewPoint2D(0, 0),
		NewPoint2D(10, 0),
	})
	if err := est.Estimate(); !errors.Is(err, ErrNotReady) {
		t.Errorf("dim readings: expected ErrNotReady, got %v", err)
	}

	// dim+1 readings: succeeds with non-degenerate geometry
	readings := makeEmitterReadings(truePos, 20, FREQ_WIFI_24, []Point{
		NewPoint2D(0, 0),
		NewPoint2D(10, 0),
		NewPoint2D(0, 10),
	})
	est2, err := NewRadioSourceEstimator(2, readings, nil)
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}
	if err := est2.Estimate(); err != nil {
		t.Fatalf("dim+1 readings: estimate failed: %v", err)
	}
}

func TestRadioSourceEstimator_LockedDuringEstimate(t *testing.T) {
	truePos := NewPoint2D(3, 4)
	readings := makeEmitterReadings(truePos, 20, FREQ_WIFI_24, []Point{
		NewPoint2D(0, 0),
		NewPoint2D(10, 0),
		NewPoint2D(0, 10),
		NewPoint2D(10, 10),
	})

	est, err := NewRadioSourceEstimator(2, readings, nil)
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}

	// The start hook runs while the estimate is in flight: every mutator
	// and re-entrant estimate must report the locked state
	var lockedErrs []error
	listener := &EstimateListenerFuncs{
		OnStart: func() {
			lockedErrs = append(lockedErrs,
				est.SetReadings(readings),
				est.SetInitialTxPower(10),
				est.SetListener(nil),
				est.Estimate(),
			)
		},
	}
	if err := est.SetListener(listener); err != nil {
		t.Fatalf("failed to set listener: %v", err)
	}
	if err := est.Estimate(); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if len(lockedErrs) != 4 {
		t.Fatalf("expected 4 in-flight calls, got %d", len(lockedErrs))
	}
	for i, e := range lockedErrs {
		if !errors.Is(e, ErrLocked) {
			t.Errorf("in-flight call %d: expected ErrLocked, got %v", i, e)
		}
	}

	// The lock is released afterwards: the estimator is reusable
	if err := est.SetListener(nil); err != nil {
		t.Fatalf("estimator still locked after estimate: %v", err)
	}
	if err := est.Estimate(); err != nil {
		t.Fatalf("re-estimate failed: %v", err)
	}
}

func TestRadioSourceEstimator_PathLossExponentModeUnsupported(t *testing.T) {
	readings := makeEmitterReadings(NewPoint2D(1, 1), 20, FREQ_WIFI_24, []Point{
		NewPoint2D(0, 0),
		NewPoint2D(10, 0),
		NewPoint2D(0, 10),
	})
	est, err := NewRadioSourceEstimator(2, readings, nil)
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}
	if err := est.SetEstimatePathLossExponent(true); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	if err := est.Estimate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	// Disabling the flag restores normal estimation
	if err := est.SetEstimatePathLossExponent(false); err != nil {
		t.Fatalf("failed to clear flag: %v", err)
	}
	if err := est.Estimate(); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
}

func TestRadioSourceEstimator_ObservationAtEstimatePosition(t *testing.T) {
	// One receiver sits exactly at the centroid used as the initial
	// position estimate, which would divide by zero without the distance
	// floor in the model derivatives
	truePos := NewPoint2D(5, 5)
	receivers := []Point{
		NewPoint2D(0, 0),
		NewPoint2D(10, 0),
		NewPoint2D(0, 10),
		NewPoint2D(10, 10),
		NewPoint2D(5, 5), // centroid of the full set
	}
	readings := makeEmitterReadings(truePos, 20, FREQ_WIFI_24, receivers)

	est, err := NewRadioSourceEstimator(2, readings, nil)
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}
	if err := est.Estimate(); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	got := est.EstimatedPosition()
	for _, v := range got {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("estimate not finite: %v", got)
		}
	}
}
