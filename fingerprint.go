// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

package radioloc

import (
	"math"

	"github.com/google/uuid"
)

//-------------------------------------------------------------------
// RssiFingerprint
//-------------------------------------------------------------------

// RssiFingerprint is an ordered collection of RSSI readings captured
// together at one location. Insertion order is irrelevant for matching
// but is preserved for reproducibility. Duplicate source identities are
// tolerated; each duplicate pairing contributes to any distance sum.
type RssiFingerprint struct {
	Readings []*RssiReading
}

// NewRssiFingerprint creates a fingerprint from the given readings
func NewRssiFingerprint(readings ...*RssiReading) *RssiFingerprint {
	return &RssiFingerprint{
		Readings: readings,
	}
}

// Sources returns the source identities appearing in the fingerprint,
// in reading order, without de-duplication
func (f *RssiFingerprint) Sources() []uuid.UUID {
	s := make([]uuid.UUID, 0, len(f.Readings))
	for _, r := range f.Readings {
		if r.Source != nil {
			s = append(s, r.Source.ID)
		}
	}
	return s
}

// SqrDistance returns the sum of squared RSSI differences over readings
// whose sources appear in both fingerprints. When the other fingerprint
// is nil, or when no source is common to both, it returns
// math.MaxFloat64 as an "incomparable" sentinel so that callers can rank
// comparisons without special-casing.
func (f *RssiFingerprint) SqrDistance(o *RssiFingerprint) float64 {
	if o == nil {
		return math.MaxFloat64
	}

	sum := 0.0
	matched := false
	for _, r := range f.Readings {
		for _, r2 := range o.Readings {
			if !r.Matches(r2) {
				continue
			}
			sum += SQ(r.Rssi - r2.Rssi)
			matched = true
		}
	}

	// No common sources means the fingerprints are infinitely distant
	if !matched {
		return math.MaxFloat64
	}
	return sum
}

// Distance returns the Euclidean distance between two fingerprints.
// Computed from SqrDistance only, never by re-scanning the readings.
func (f *RssiFingerprint) Distance(o *RssiFingerprint) float64 {
	sqr := f.SqrDistance(o)
	if sqr == math.MaxFloat64 {
		return math.MaxFloat64
	}
	return math.Sqrt(sqr)
}
