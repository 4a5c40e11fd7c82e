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

// lineEvaluator models y = a + b*x with params [a, b]
type lineEvaluator struct {
	xs []float64
}

func (ev *lineEvaluator) NumParams() int { return 2 }

func (ev *lineEvaluator) Evaluate(i int, params, derivs []float64) float64 {
	derivs[0] = 1
	derivs[1] = ev.xs[i]
	return params[0] + params[1]*ev.xs[i]
}

// expEvaluator models y = a*exp(b*x) with params [a, b]
type expEvaluator struct {
	xs []float64
}

func (ev *expEvaluator) NumParams() int { return 2 }

func (ev *expEvaluator) Evaluate(i int, params, derivs []float64) float64 {
	e := math.Exp(params[1] * ev.xs[i])
	derivs[0] = e
	derivs[1] = params[0] * ev.xs[i] * e
	return params[0] * e
}

func TestFitLM_Line(t *testing.T) {
	const (
		a = 2.5
		b = -0.75
	)
	xs := []float64{0, 1, 2, 3, 4, 5}
	y := make([]float64, len(xs))
	for i, x := range xs {
		y[i] = a + b*x
	}

	sol, err := FitLM(&lineEvaluator{xs: xs}, []float64{0, 0}, y, nil, nil)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if math.Abs(sol.Params[0]-a) > 1e-8 || math.Abs(sol.Params[1]-b) > 1e-8 {
		t.Errorf("expected params [%g %g], got %v", a, b, sol.Params)
	}
	if sol.ChiSq > 1e-12 {
		t.Errorf("noiseless fit should have ~0 chi-square, got %g", sol.ChiSq)
	}
	if sol.Dof != len(xs)-2 {
		t.Errorf("expected dof %d, got %d", len(xs)-2, sol.Dof)
	}
	if r, c := sol.Cov.Dims(); r != 2 || c != 2 {
		t.Errorf("expected 2x2 covariance, got %dx%d", r, c)
	}
	if p := sol.Probability(); p < 0.999 {
		t.Errorf("noiseless fit probability should be ~1, got %g", p)
	}
}

func TestFitLM_Exponential(t *testing.T) {
	const (
		a = 3.0
		b = -0.4
	)
	xs := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3}
	y := make([]float64, len(xs))
	for i, x := range xs {
		y[i] = a * math.Exp(b*x)
	}

	// Start away from the truth to force real iteration
	sol, err := FitLM(&expEvaluator{xs: xs}, []float64{1, 0}, y, nil, nil)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if math.Abs(sol.Params[0]-a) > 1e-6 || math.Abs(sol.Params[1]-b) > 1e-6 {
		t.Errorf("expected params [%g %g], got %v", a, b, sol.Params)
	}
	if sol.Iter < 2 {
		t.Errorf("nonlinear fit from a bad start should take iterations, took %d", sol.Iter)
	}
}

func TestFitLM_Weights(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	y := []float64{1, 2, 3, 4.1}
	sds := []float64{0.5, 0.5, 0.5, 0.5}

	sol, err := FitLM(&lineEvaluator{xs: xs}, []float64{0, 0}, y, sds, nil)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	// Weighted chi-square: residuals scaled by 1/sd^2 = 4
	unweighted, err := FitLM(&lineEvaluator{xs: xs}, []float64{0, 0}, y, nil, nil)
	if err != nil {
		t.Fatalf("unweighted fit failed: %v", err)
	}
	if math.Abs(sol.ChiSq-4*unweighted.ChiSq) > 1e-9 {
		t.Errorf("expected weighted chi-square %g, got %g", 4*unweighted.ChiSq, sol.ChiSq)
	}
}

func TestFitLM_InputValidation(t *testing.T) {
	ev := &lineEvaluator{xs: []float64{0}}

	// Fewer observations than parameters
	if _, err := FitLM(ev, []float64{0, 0}, []float64{1}, nil, nil); err == nil {
		t.Error("expected error for underdetermined fit")
	}

	// Wrong initial vector length
	ev2 := &lineEvaluator{xs: []float64{0, 1, 2}}
	if _, err := FitLM(ev2, []float64{0}, []float64{1, 2, 3}, nil, nil); err == nil {
		t.Error("expected error for wrong initial vector length")
	}

	// Non-positive std dev
	if _, err := FitLM(ev2, []float64{0, 0}, []float64{1, 2, 3}, []float64{1, 0, 1}, nil); err == nil {
		t.Error("expected error for non-positive std dev")
	}
}
