// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.23
//

// Implements linear position estimation: the location of an unknown
// receiver point is solved from a fingerprint of RSSI readings and the
// known positions of the observed sources, by converting each reading
// to an estimated distance and running the trilateration solve.

package radioloc

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// RssiDistanceFunc converts one reading of a located source into an
// estimated emitter-receiver distance [m]. The conversion policy is
// caller-replaceable; FreeSpaceDistance is the default.
type RssiDistanceFunc func(reading *RssiReading, source *RadioSourceLocated) float64

// FreeSpaceDistance converts a reading to distance by inverting the free
// space path loss model with the source's known transmitted power
func FreeSpaceDistance(reading *RssiReading, source *RadioSourceLocated) float64 {
	return RssiToDistance(reading.Rssi, source.TxPower, source.Frequency)
}

// LinearPositionEstimator estimates the position at which a fingerprint
// of RSSI readings was captured, given the located sources the readings
// refer to. Configure, call Estimate, then read EstimatedPosition.
// Single-shot and synchronous; mutators fail with ErrLocked while an
// estimate is in progress.
type LinearPositionEstimator struct {
	sources     []*RadioSourceLocated
	fingerprint *RssiFingerprint
	listener    EstimateListener
	distFunc    RssiDistanceFunc

	solver    *TrilaterationSolver
	running   bool
	estimated Point
}

// NewLinearPositionEstimator creates an estimator for 2 or 3 dimensions.
// Sources and fingerprint may be nil (to be set later); when supplied
// they are validated immediately.
func NewLinearPositionEstimator(dim int, sources []*RadioSourceLocated, fingerprint *RssiFingerprint, listener EstimateListener) (*LinearPositionEstimator, error) {
	solver, err := NewTrilaterationSolver(dim)
	if err != nil {
		return nil, err
	}
	e := &LinearPositionEstimator{
		listener: listener,
		distFunc: FreeSpaceDistance,
		solver:   solver,
	}
	if sources != nil {
		if err := e.SetSources(sources); err != nil {
			return nil, err
		}
	}
	if fingerprint != nil {
		if err := e.SetFingerprint(fingerprint); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// NewLinearPositionEstimator2D creates an empty 2D estimator
func NewLinearPositionEstimator2D() *LinearPositionEstimator {
	e, _ := NewLinearPositionEstimator(2, nil, nil, nil)
	return e
}

// NewLinearPositionEstimator3D creates an empty 3D estimator
func NewLinearPositionEstimator3D() *LinearPositionEstimator {
	e, _ := NewLinearPositionEstimator(3, nil, nil, nil)
	return e
}

// Dim returns the estimator's spatial dimension
func (e *LinearPositionEstimator) Dim() int {
	return e.solver.Dim()
}

// SetSources sets the located sources. Their count must meet the
// trilateration solver's minimum and their positions must match the
// estimator's dimension.
func (e *LinearPositionEstimator) SetSources(sources []*RadioSourceLocated) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if len(sources) < MinTrilaterationPoints(e.Dim()) {
		return fmt.Errorf("%w: need at least %d located sources, got %d", ErrInvalidArgument, MinTrilaterationPoints(e.Dim()), len(sources))
	}
	for i, s := range sources {
		if s == nil || s.Position.Dim() != e.Dim() {
			return fmt.Errorf("%w: source %d missing or dimension mismatch", ErrInvalidArgument, i)
		}
	}
	e.sources = sources
	return nil
}

// SetFingerprint sets the fingerprint captured at the unknown position
func (e *LinearPositionEstimator) SetFingerprint(fingerprint *RssiFingerprint) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if fingerprint == nil {
		return fmt.Errorf("%w: nil fingerprint", ErrInvalidArgument)
	}
	e.fingerprint = fingerprint
	return nil
}

// SetListener registers a lifecycle listener
func (e *LinearPositionEstimator) SetListener(l EstimateListener) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	e.listener = l
	return nil
}

// SetDistanceFunc replaces the RSSI to distance conversion policy
func (e *LinearPositionEstimator) SetDistanceFunc(f RssiDistanceFunc) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if f == nil {
		return fmt.Errorf("%w: nil distance func", ErrInvalidArgument)
	}
	e.distFunc = f
	return nil
}

// SetPositionsAndDistances pushes dimension-matched position/distance
// arrays straight into the trilateration solver, bypassing the
// fingerprint conversion. Positions are re-materialized so the solver
// never shares the caller's instances. Any rejection by the solver,
// including its locked state, surfaces as an invalid argument.
func (e *LinearPositionEstimator) SetPositionsAndDistances(positions []Point, distances []float64) error {
	pts := make([]Point, len(positions))
	for i, p := range positions {
		pts[i] = p.Clone()
	}
	if err := e.solver.SetPositionsAndDistances(pts, distances); err != nil {
		return fmt.Errorf("%w: solver rejected input: %v", ErrInvalidArgument, err)
	}
	return nil
}

// Ready reports whether enough matched readings are available to solve
func (e *LinearPositionEstimator) Ready() bool {
	if e.fingerprint == nil {
		return false
	}
	return len(e.matchedReadings()) >= MinTrilaterationPoints(e.Dim())
}

// matchedReadings returns fingerprint readings whose source is among the
// located sources, paired with the matched source
func (e *LinearPositionEstimator) matchedReadings() []int {
	idx := make([]int, 0, len(e.fingerprint.Readings))
	for i, r := range e.fingerprint.Readings {
		if r.Source == nil {
			continue
		}
		if slices.IndexFunc(e.sources, func(s *RadioSourceLocated) bool { return s.Same(r.Source) }) >= 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Estimate converts the fingerprint readings to distances and runs the
// trilateration solve. Solver failures surface as the solver's own error
// kinds; no retry is attempted.
func (e *LinearPositionEstimator) Estimate() error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if !e.Ready() {
		return fmt.Errorf("%w: need %d matched readings", ErrNotReady, MinTrilaterationPoints(e.Dim()))
	}
	e.running = true
	defer func() { e.running = false }()

	if e.listener != nil {
		e.listener.EstimateStart()
		defer e.listener.EstimateEnd()
	}

	matched := e.matchedReadings()
	positions := make([]Point, 0, len(matched))
	distances := make([]float64, 0, len(matched))
	for _, i := range matched {
		r := e.fingerprint.Readings[i]
		j := slices.IndexFunc(e.sources, func(s *RadioSourceLocated) bool { return s.Same(r.Source) })
		src := e.sources[j]
		d := e.distFunc(r, src)
		PrintD(3, "\treading %d: rssi=%.2f dBm -> d=%.3f m (src %s)\n", i, r.Rssi, d, src.ID)
		positions = append(positions, src.Position.Clone())
		distances = append(distances, d)
	}

	if err := e.solver.SetPositionsAndDistances(positions, distances); err != nil {
		return fmt.Errorf("%w: solver rejected input: %v", ErrInvalidArgument, err)
	}
	if err := e.solver.Solve(); err != nil {
		return err
	}
	e.estimated = e.solver.EstimatedPosition()
	return nil
}

// EstimatedPosition returns a freshly constructed point populated from
// the solver's solution, or nil if no estimate has completed
func (e *LinearPositionEstimator) EstimatedPosition() Point {
	if e.estimated == nil {
		return nil
	}
	return e.estimated.Clone()
}

// Residual returns the trilateration solver's normalized residual
func (e *LinearPositionEstimator) Residual() float64 {
	return e.solver.Residual()
}
