// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.22
//

// Implements Levenberg-Marquardt nonlinear least squares fitting.
// The caller supplies a residual/Jacobian evaluator; each iteration
// linearizes the model around the current parameters and solves the
// damped weighted normal equations, adapting the damping factor until
// the weighted chi-square converges.

package radioloc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Calculation constants for LM fitting
const (
	LM_MAX_ITER    = 100   // Maximum number of iteration loops
	LM_TOL         = 1e-9  // Relative chi-square convergence threshold
	LM_LAMBDA_INIT = 1e-3  // Initial damping factor
	LM_LAMBDA_UP   = 10.0  // Damping increase on a rejected step
	LM_LAMBDA_DOWN = 0.1   // Damping decrease on an accepted step
	LM_LAMBDA_MAX  = 1e12  // Damping ceiling; exceeding it means no progress
)

// FitEvaluator supplies the model prediction and its analytic partial
// derivatives for one observation at the given parameter vector.
type FitEvaluator interface {
	// NumParams returns the number of free parameters
	NumParams() int

	// Evaluate returns the predicted value for observation i at params
	// and fills derivs (length NumParams) with the partial derivative of
	// the prediction with respect to each parameter
	Evaluate(i int, params []float64, derivs []float64) float64
}

// FitOpt contains options for LM fitting
type FitOpt struct {
	MaxIter    int     // Maximum iterations
	Tol        float64 // Relative chi-square convergence threshold
	LambdaInit float64 // Initial damping factor
}

// NewFitOpt creates fit options with default values
func NewFitOpt() *FitOpt {
	return &FitOpt{
		MaxIter:    LM_MAX_ITER,
		Tol:        LM_TOL,
		LambdaInit: LM_LAMBDA_INIT,
	}
}

// FitSol contains the results of an LM fit
type FitSol struct {
	Params []float64  // Converged parameter vector
	Cov    mat.Matrix // Parameter covariance (J^T W J)^-1 at convergence
	ChiSq  float64    // Weighted sum of squared residuals at convergence
	Iter   int        // Iterations spent
	Dof    int        // Degrees of freedom (observations - parameters)
}

// Probability returns the chi-square survival probability of the fit:
// the probability that chi-square would exceed the fitted value by
// chance given the degrees of freedom. Returns 1 for a zero-dof fit.
func (s *FitSol) Probability() float64 {
	if s.Dof <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: float64(s.Dof)}.Survival(s.ChiSq)
}

// FitLM fits the evaluator's model to the observed values y by
// Levenberg-Marquardt iteration starting from the initial parameter
// vector. stdDevs holds the per-observation standard deviations; a nil
// slice means unit deviations. Observation i is weighted 1/stdDevs[i]^2.
func FitLM(e FitEvaluator, initial []float64, y, stdDevs []float64, opt *FitOpt) (*FitSol, error) {

	if opt == nil {
		opt = NewFitOpt()
	}

	n := len(y)
	nx := e.NumParams()
	if len(initial) != nx {
		return nil, fmt.Errorf("invalid initial vector length: %d, want %d", len(initial), nx)
	}
	if n < nx {
		return nil, fmt.Errorf("not enough observations: %d < %d", n, nx)
	}
	if stdDevs != nil && len(stdDevs) != n {
		return nil, fmt.Errorf("invalid stdDevs length: %d, want %d", len(stdDevs), n)
	}

	// Weight matrix (recomputed once; weights do not depend on params)
	w := make([]float64, n)
	for i := range w {
		sd := 1.0
		if stdDevs != nil {
			sd = stdDevs[i]
		}
		if sd <= 0 {
			return nil, fmt.Errorf("invalid std dev %g at observation %d", sd, i)
		}
		w[i] = 1 / SQ(sd)
	}
	W := mat.NewDiagDense(n, w)

	params := make([]float64, nx)
	copy(params, initial)

	// Evaluate chi-square and, when J and dr are non-nil, the Jacobian
	// and weighted residual vector at the given parameters
	derivs := make([]float64, nx)
	eval := func(p []float64, J *mat.Dense, dr *mat.VecDense) float64 {
		chi := 0.0
		for i := 0; i < n; i++ {
			pred := e.Evaluate(i, p, derivs)
			res := y[i] - pred
			chi += w[i] * SQ(res)
			if J != nil {
				for j := 0; j < nx; j++ {
					J.Set(i, j, derivs[j])
				}
				dr.SetVec(i, res)
			}
		}
		return chi
	}

	J := mat.NewDense(n, nx, nil)
	dr := mat.NewVecDense(n, nil)
	chi := eval(params, J, dr)
	lambda := opt.LambdaInit

	var cov mat.Matrix
	trial := make([]float64, nx)

	iter := 0
	for ; iter < opt.MaxIter; iter++ {

		PrintD(3, "\t--- LM ITER: %d, chi2=%g, lambda=%g ---\n", iter+1, chi, lambda)
		if DBG_ >= 4 {
			PrintA("J=\n")
			PrintMat(J)
			PrintA("dr=\n")
			PrintMat(dr)
		}

		// Solve damped normal equations for the step
		dx, c, err := SolveLS(J, dr, W, lambda)
		if err != nil {
			return nil, fmt.Errorf("SolveLS() failed, err=%v", err)
		}

		// Trial step
		for j := 0; j < nx; j++ {
			trial[j] = params[j] + dx.AtVec(j)
		}
		chiTrial := eval(trial, nil, nil)

		if chiTrial > chi {
			// Rejected: increase damping, keep current params
			lambda *= LM_LAMBDA_UP
			if lambda > LM_LAMBDA_MAX {
				return nil, fmt.Errorf("no progress: damping factor exceeded %g after %d iterations", LM_LAMBDA_MAX, iter+1)
			}
			continue
		}

		// Accepted: move to the trial point and relax damping
		converged := chi-chiTrial <= opt.Tol*(chiTrial+opt.Tol)
		copy(params, trial)
		lambda *= LM_LAMBDA_DOWN
		chi = eval(params, J, dr)
		cov = c

		if converged {
			break
		}
	}

	if iter == opt.MaxIter {
		return nil, fmt.Errorf("number of iterations reached max (%d)", opt.MaxIter)
	}

	// Undamped covariance at the converged parameters
	if _, c, err := SolveLS(J, dr, W, 0); err == nil {
		cov = c
	}
	if cov == nil {
		return nil, fmt.Errorf("covariance unavailable: no accepted step")
	}

	return &FitSol{
		Params: params,
		Cov:    cov,
		ChiSq:  chi,
		Iter:   iter + 1,
		Dof:    n - nx,
	}, nil
}
