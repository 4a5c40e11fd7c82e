// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

package radioloc

import (
	"fmt"
	"math"
)

// Free space path loss model in the log domain:
//
//	Pr(dBm) = 10*log10(k) + Pte(dBm) - 10*log10(d^2)
//
// where k = (C / (4*PI*f))^2 lumps the carrier wavelength term. All
// helpers below are expressed against this model.

// PropagationConstant returns k for the given carrier frequency [Hz]
func PropagationConstant(frequency float64) float64 {
	return SQ(C / (4 * PI * frequency))
}

// DBmToPower converts power in dBm to linear milliwatts
func DBmToPower(dBm float64) float64 {
	return math.Pow(10, dBm/10)
}

// PowerToDBm converts linear power in milliwatts to dBm.
// Negative linear power is rejected as an invalid argument.
func PowerToDBm(mW float64) (float64, error) {
	if mW < 0 {
		return 0, fmt.Errorf("%w: negative linear power %g mW", ErrInvalidArgument, mW)
	}
	return 10 * math.Log10(mW), nil
}

// PredictRssi returns the modeled received power [dBm] at squared
// distance sqrDist [m^2] from an emitter with equivalent transmitted
// power pteDBm [dBm] and propagation constant k
func PredictRssi(k, pteDBm, sqrDist float64) float64 {
	if sqrDist < MIN_SQR_DISTANCE {
		sqrDist = MIN_SQR_DISTANCE
	}
	return 10*math.Log10(k) + pteDBm - 10*math.Log10(sqrDist)
}

// RssiToDistance inverts the model: it returns the distance [m] at which
// an emitter with power pteDBm [dBm] at frequency [Hz] is received with
// the given rssi [dBm]
func RssiToDistance(rssi, pteDBm, frequency float64) float64 {
	k := PropagationConstant(frequency)
	return math.Sqrt(k * math.Pow(10, (pteDBm-rssi)/10))
}
