// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

package radioloc

import "errors"

// Error kinds surfaced by the estimators and solvers. Callers discriminate
// with errors.Is; detail is attached by wrapping with fmt.Errorf and %w.
var (
	// ErrInvalidArgument reports malformed or insufficient input detected at
	// configuration time, before any solve is attempted.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotReady reports a solve attempted without enough valid data loaded.
	ErrNotReady = errors.New("estimator not ready")

	// ErrLocked reports a mutating call or a new solve attempted while a
	// solve is already in progress on the same instance.
	ErrLocked = errors.New("estimator locked")

	// ErrFitting reports a numerical failure of the underlying solver
	// (non-convergence, singular system). The cause is wrapped.
	ErrFitting = errors.New("fitting failed")
)
