// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.22
//

// Implements the linear least squares trilateration solve. Distances to
// known anchor points are linearized by differencing against a reference
// anchor, and the resulting overdetermined system is solved by QR.

package radioloc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// MinTrilaterationPoints returns the number of anchor points required by
// the linearized trilateration solve for the given dimension
func MinTrilaterationPoints(dim int) int {
	return dim + 1
}

// TrilaterationSolver solves for an unknown position given distances to
// known anchor positions. Configure with SetPositionsAndDistances, call
// Solve, then read EstimatedPosition. A solver instance runs at most one
// solve at a time; mutating calls made while a solve is in progress fail
// with ErrLocked.
type TrilaterationSolver struct {
	dim       int
	positions []Point
	distances []float64
	listener  EstimateListener

	running   bool
	estimated Point
	residual  float64
}

// NewTrilaterationSolver creates a solver for 2 or 3 dimensions
func NewTrilaterationSolver(dim int) (*TrilaterationSolver, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("%w: dimension must be 2 or 3, got %d", ErrInvalidArgument, dim)
	}
	return &TrilaterationSolver{dim: dim}, nil
}

// Dim returns the solver's spatial dimension
func (s *TrilaterationSolver) Dim() int {
	return s.dim
}

// SetListener registers a lifecycle listener. Fails with ErrLocked while
// a solve is in progress.
func (s *TrilaterationSolver) SetListener(l EstimateListener) error {
	if s.running {
		return fmt.Errorf("%w: solve in progress", ErrLocked)
	}
	s.listener = l
	return nil
}

// SetPositionsAndDistances loads the anchor positions and the measured
// distances to them. Arrays must be count-matched, dimension-matched and
// at least MinTrilaterationPoints long. Fails with ErrLocked while a
// solve is in progress.
func (s *TrilaterationSolver) SetPositionsAndDistances(positions []Point, distances []float64) error {
	if s.running {
		return fmt.Errorf("%w: solve in progress", ErrLocked)
	}
	if len(positions) != len(distances) {
		return fmt.Errorf("%w: %d positions but %d distances", ErrInvalidArgument, len(positions), len(distances))
	}
	if len(positions) < MinTrilaterationPoints(s.dim) {
		return fmt.Errorf("%w: need at least %d positions, got %d", ErrInvalidArgument, MinTrilaterationPoints(s.dim), len(positions))
	}
	for i, p := range positions {
		if p.Dim() != s.dim {
			return fmt.Errorf("%w: position %d has dimension %d, want %d", ErrInvalidArgument, i, p.Dim(), s.dim)
		}
	}
	s.positions = positions
	s.distances = distances
	return nil
}

// Ready reports whether enough positions and distances are loaded
func (s *TrilaterationSolver) Ready() bool {
	return len(s.positions) >= MinTrilaterationPoints(s.dim) &&
		len(s.positions) == len(s.distances)
}

// Solve runs the linear least squares trilateration solve.
// The last anchor is used as the linearization reference: subtracting
// its range equation from every other one cancels the quadratic unknown
// terms, leaving m-1 linear equations
//
//	2*(Pk - Pi) . x = di^2 - dk^2 - |Pi|^2 + |Pk|^2
//
// solved for x by QR factorization.
func (s *TrilaterationSolver) Solve() error {
	if s.running {
		return fmt.Errorf("%w: solve in progress", ErrLocked)
	}
	if !s.Ready() {
		return fmt.Errorf("%w: positions and distances not set", ErrNotReady)
	}
	s.running = true
	defer func() { s.running = false }()

	if s.listener != nil {
		s.listener.EstimateStart()
		defer s.listener.EstimateEnd()
	}

	n := len(s.positions)
	ref := s.positions[n-1]
	refDist := math.Max(s.distances[n-1], 0)
	refNormSq := ref.NormSq()

	// One equation per non-reference anchor
	m := n - 1
	G := mat.NewDense(m, s.dim, nil)
	b := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		p := s.positions[i]
		d := math.Max(s.distances[i], 0)
		for j := 0; j < s.dim; j++ {
			G.Set(i, j, 2*(ref[j]-p[j]))
		}
		b.SetVec(i, SQ(d)-SQ(refDist)-p.NormSq()+refNormSq)
	}

	if DBG_ >= 4 {
		PrintA("G=\n")
		PrintMat(G)
		PrintA("b=\n")
		PrintMat(b)
	}

	// QR is more robust for LS than forming G^T G explicitly
	var qr mat.QR
	qr.Factorize(G)
	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, b); err != nil {
		return fmt.Errorf("%w: QR solve: %v", ErrFitting, err)
	}

	// Normalized residual |Gx - b| / sqrt(m) for solution quality
	var res mat.VecDense
	res.MulVec(G, &x)
	res.SubVec(b, &res)
	s.residual = blas64.Nrm2(res.RawVector()) / math.Sqrt(float64(m))

	s.estimated = make(Point, s.dim)
	for j := 0; j < s.dim; j++ {
		s.estimated[j] = x.AtVec(j)
	}
	return nil
}

// EstimatedPosition returns a fresh copy of the solved position, or nil
// if no solve has completed
func (s *TrilaterationSolver) EstimatedPosition() Point {
	if s.estimated == nil {
		return nil
	}
	return s.estimated.Clone()
}

// Residual returns the normalized residual of the last solve
func (s *TrilaterationSolver) Residual() float64 {
	return s.residual
}
