// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.23
//

// Implements joint estimation of an emitter's position and equivalent
// transmitted power from located RSSI observations. The received power
// model in the log domain is
//
//	Pr(dBm) = 10*log10(k) + Pte - 10*log10(d^2),  k = (C/(4*PI*f))^2
//
// which is linear in Pte and nonlinear in the position through
// d^2 = sum((param_j - point_j)^2), so the solve is an LM fit over the
// parameter vector [pos_1 .. pos_D, Pte].

package radioloc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MinReadings returns the number of located observations required to
// solve jointly for position and transmitted power in dim dimensions
func MinReadings(dim int) int {
	return dim + 1
}

//-------------------------------------------------------------------
// Model evaluator
//-------------------------------------------------------------------

// pathLossEvaluator evaluates the log-domain path loss model and its
// analytic partial derivatives for the LM fitter. Parameters are the
// emitter position followed by Pte [dBm].
type pathLossEvaluator struct {
	dim    int
	points []Point // Known receiver positions, one per observation
	logK10 float64 // 10*log10(k) for the emitter's carrier frequency
}

func (ev *pathLossEvaluator) NumParams() int {
	return ev.dim + 1
}

func (ev *pathLossEvaluator) Evaluate(i int, params, derivs []float64) float64 {
	p := ev.points[i]

	sqrDist := 0.0
	for j := 0; j < ev.dim; j++ {
		sqrDist += SQ(params[j] - p[j])
	}
	// Floor keeps the 1/sqrDist derivative terms finite when the
	// position estimate coincides with an observation point
	if sqrDist < MIN_SQR_DISTANCE {
		sqrDist = MIN_SQR_DISTANCE
	}

	for j := 0; j < ev.dim; j++ {
		derivs[j] = -20 * (params[j] - p[j]) / (math.Ln10 * sqrDist)
	}
	derivs[ev.dim] = 1

	return ev.logK10 + params[ev.dim] - 10*math.Log10(sqrDist)
}

//-------------------------------------------------------------------
// RadioSourceEstimator
//-------------------------------------------------------------------

// RadioSourceEstimator jointly estimates the position and equivalent
// transmitted power of one emitter from N >= dim+1 RSSI observations
// recorded at known receiver positions. All readings must reference the
// same source. Configure, call Estimate, then read the results.
// Single-shot and synchronous; mutators fail with ErrLocked while an
// estimate is in progress, and the lock is released on every exit path.
type RadioSourceEstimator struct {
	dim      int
	readings []*LocatedRssiReading
	listener EstimateListener
	fitOpt   *FitOpt

	initialPosition Point    // nil: centroid of observation points
	initialTxPower  *float64 // nil: mean of observed RSSI values [dBm]

	// Path loss exponent state. The exponent is reported and used by the
	// conversion helpers, but joint estimation of it is not a supported
	// fitting mode: enabling the flag makes Estimate fail.
	pathLossExponent         float64
	estimatePathLossExponent bool

	running           bool
	estimatedPosition Point
	estimatedTxPower  float64
	sol               *FitSol
}

// NewRadioSourceEstimator creates an estimator for 2 or 3 dimensions.
// Readings may be nil (to be set later); when supplied they are
// validated immediately.
func NewRadioSourceEstimator(dim int, readings []*LocatedRssiReading, listener EstimateListener) (*RadioSourceEstimator, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("%w: dimension must be 2 or 3, got %d", ErrInvalidArgument, dim)
	}
	e := &RadioSourceEstimator{
		dim:              dim,
		listener:         listener,
		fitOpt:           NewFitOpt(),
		pathLossExponent: DEFAULT_PATHLOSS_EXPONENT,
	}
	if readings != nil {
		if err := e.SetReadings(readings); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// NewRadioSourceEstimator2D creates an empty 2D estimator
func NewRadioSourceEstimator2D() *RadioSourceEstimator {
	e, _ := NewRadioSourceEstimator(2, nil, nil)
	return e
}

// NewRadioSourceEstimator3D creates an empty 3D estimator
func NewRadioSourceEstimator3D() *RadioSourceEstimator {
	e, _ := NewRadioSourceEstimator(3, nil, nil)
	return e
}

// Dim returns the estimator's spatial dimension
func (e *RadioSourceEstimator) Dim() int {
	return e.dim
}

// SetReadings sets the located observations of the unknown emitter.
// At least MinReadings are required, every reading must reference the
// same source with a positive carrier frequency, and every position
// must match the estimator's dimension.
func (e *RadioSourceEstimator) SetReadings(readings []*LocatedRssiReading) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if len(readings) < MinReadings(e.dim) {
		return fmt.Errorf("%w: need at least %d readings, got %d", ErrInvalidArgument, MinReadings(e.dim), len(readings))
	}
	var src *RadioSource
	for i, r := range readings {
		if r == nil || r.Source == nil {
			return fmt.Errorf("%w: reading %d missing source", ErrInvalidArgument, i)
		}
		if r.Position.Dim() != e.dim {
			return fmt.Errorf("%w: reading %d has dimension %d, want %d", ErrInvalidArgument, i, r.Position.Dim(), e.dim)
		}
		if src == nil {
			src = r.Source
			if src.Frequency <= 0 {
				return fmt.Errorf("%w: source frequency %g Hz", ErrInvalidArgument, src.Frequency)
			}
		} else if !src.Same(r.Source) {
			return fmt.Errorf("%w: reading %d references a different source", ErrInvalidArgument, i)
		}
	}
	e.readings = readings
	return nil
}

// SetInitialPosition sets the starting position for the fit. A nil
// point restores the default (centroid of the observation points).
func (e *RadioSourceEstimator) SetInitialPosition(p Point) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if p != nil && p.Dim() != e.dim {
		return fmt.Errorf("%w: initial position has dimension %d, want %d", ErrInvalidArgument, p.Dim(), e.dim)
	}
	if p == nil {
		e.initialPosition = nil
	} else {
		e.initialPosition = p.Clone()
	}
	return nil
}

// SetInitialTxPower sets the starting transmitted power [dBm] for the
// fit, replacing the default (mean of the observed RSSI values)
func (e *RadioSourceEstimator) SetInitialTxPower(dBm float64) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	v := dBm
	e.initialTxPower = &v
	return nil
}

// SetPathLossExponent sets the fixed path loss exponent reported with
// the estimate and used by the conversion helpers. Must be positive.
func (e *RadioSourceEstimator) SetPathLossExponent(n float64) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if n <= 0 {
		return fmt.Errorf("%w: path loss exponent %g", ErrInvalidArgument, n)
	}
	e.pathLossExponent = n
	return nil
}

// SetEstimatePathLossExponent toggles the path loss exponent estimation
// flag. Joint estimation of the exponent is not a supported fitting
// mode; Estimate fails while the flag is enabled.
func (e *RadioSourceEstimator) SetEstimatePathLossExponent(enabled bool) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	e.estimatePathLossExponent = enabled
	return nil
}

// SetListener registers a lifecycle listener
func (e *RadioSourceEstimator) SetListener(l EstimateListener) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	e.listener = l
	return nil
}

// SetFitOpt replaces the LM fitting options
func (e *RadioSourceEstimator) SetFitOpt(opt *FitOpt) error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if opt == nil {
		return fmt.Errorf("%w: nil fit options", ErrInvalidArgument)
	}
	e.fitOpt = opt
	return nil
}

// Ready reports whether enough readings are loaded to estimate
func (e *RadioSourceEstimator) Ready() bool {
	return len(e.readings) >= MinReadings(e.dim)
}

// Estimate runs the joint position/power fit. Preconditions are checked
// before any state mutation; the running flag is released on every exit
// path. The listener, when present, receives the start notification
// before the fit and the end notification after a successful fit.
// Numerical failures of the fitter surface wrapped in ErrFitting.
func (e *RadioSourceEstimator) Estimate() error {
	if e.running {
		return fmt.Errorf("%w: estimate in progress", ErrLocked)
	}
	if !e.Ready() {
		return fmt.Errorf("%w: need %d readings, got %d", ErrNotReady, MinReadings(e.dim), len(e.readings))
	}
	if e.estimatePathLossExponent {
		return fmt.Errorf("%w: path loss exponent estimation is not a supported mode", ErrInvalidArgument)
	}
	e.running = true
	defer func() { e.running = false }()

	// Previous results do not survive a re-invocation
	e.estimatedPosition = nil
	e.estimatedTxPower = 0
	e.sol = nil

	if e.listener != nil {
		e.listener.EstimateStart()
	}

	n := len(e.readings)
	freq := e.readings[0].Source.Frequency

	// Regression input: receiver positions, observed RSSI values and
	// per-observation standard deviations
	points := make([]Point, n)
	y := make([]float64, n)
	stdDevs := make([]float64, n)
	for i, r := range e.readings {
		points[i] = r.Position
		y[i] = r.Rssi
		stdDevs[i] = r.EffectiveStdDev()
	}

	// Initial parameters: caller-supplied values, else the centroid of
	// the observation points and the mean observed RSSI
	initial := make([]float64, e.dim+1)
	if e.initialPosition != nil {
		copy(initial, e.initialPosition)
	} else {
		copy(initial, Centroid(points))
	}
	if e.initialTxPower != nil {
		initial[e.dim] = *e.initialTxPower
	} else {
		mean := 0.0
		for _, v := range y {
			mean += v
		}
		initial[e.dim] = mean / float64(n)
	}
	PrintD(2, "\tinitial: pos=%v, pte=%.2f dBm, f=%.0f Hz\n", Point(initial[:e.dim]), initial[e.dim], freq)

	ev := &pathLossEvaluator{
		dim:    e.dim,
		points: points,
		logK10: 10 * math.Log10(PropagationConstant(freq)),
	}
	sol, err := FitLM(ev, initial, y, stdDevs, e.fitOpt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFitting, err)
	}

	// Slice the solved parameter vector into position and power
	e.estimatedPosition = Point(sol.Params[:e.dim]).Clone()
	e.estimatedTxPower = sol.Params[e.dim]
	e.sol = sol
	PrintD(2, "\testimated: pos=%v, pte=%.2f dBm, chi2=%g, iter=%d\n", e.estimatedPosition, e.estimatedTxPower, sol.ChiSq, sol.Iter)

	if e.listener != nil {
		e.listener.EstimateEnd()
	}
	return nil
}

//-------------------------------------------------------------------
// Result accessors
//-------------------------------------------------------------------

// EstimatedPosition returns a fresh copy of the estimated emitter
// position, or nil if no estimate has completed
func (e *RadioSourceEstimator) EstimatedPosition() Point {
	if e.estimatedPosition == nil {
		return nil
	}
	return e.estimatedPosition.Clone()
}

// EstimatedTxPowerDBm returns the estimated equivalent transmitted
// power [dBm]
func (e *RadioSourceEstimator) EstimatedTxPowerDBm() float64 {
	return e.estimatedTxPower
}

// EstimatedTxPower returns the estimated equivalent transmitted power
// in linear milliwatts
func (e *RadioSourceEstimator) EstimatedTxPower() float64 {
	return DBmToPower(e.estimatedTxPower)
}

// PathLossExponent returns the fixed path loss exponent in use
func (e *RadioSourceEstimator) PathLossExponent() float64 {
	return e.pathLossExponent
}

// Covariance returns the full covariance matrix over the estimated
// parameters [pos..., Pte], or nil if no estimate has completed
func (e *RadioSourceEstimator) Covariance() mat.Matrix {
	if e.sol == nil {
		return nil
	}
	return e.sol.Cov
}

// PositionCovariance returns the leading dim x dim block of the
// covariance matrix, or nil if no estimate has completed
func (e *RadioSourceEstimator) PositionCovariance() mat.Matrix {
	if e.sol == nil {
		return nil
	}
	c := mat.NewDense(e.dim, e.dim, nil)
	for i := 0; i < e.dim; i++ {
		for j := 0; j < e.dim; j++ {
			c.Set(i, j, e.sol.Cov.At(i, j))
		}
	}
	return c
}

// PositionStdDev returns the per-axis standard deviations of the
// estimated position, from the covariance diagonal
func (e *RadioSourceEstimator) PositionStdDev() []float64 {
	if e.sol == nil {
		return nil
	}
	sd := make([]float64, e.dim)
	for i := 0; i < e.dim; i++ {
		sd[i] = math.Sqrt(e.sol.Cov.At(i, i))
	}
	return sd
}

// TxPowerVariance returns the variance of the estimated transmitted
// power, the covariance diagonal element at index dim
func (e *RadioSourceEstimator) TxPowerVariance() float64 {
	if e.sol == nil {
		return 0
	}
	return e.sol.Cov.At(e.dim, e.dim)
}

// ChiSq returns the weighted sum of squared residuals at convergence
func (e *RadioSourceEstimator) ChiSq() float64 {
	if e.sol == nil {
		return 0
	}
	return e.sol.ChiSq
}

// FitProbability returns the chi-square survival probability of the fit
func (e *RadioSourceEstimator) FitProbability() float64 {
	if e.sol == nil {
		return 0
	}
	return e.sol.Probability()
}
