// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

package radioloc

//-------------------------------------------------------------------
// RssiReading
//-------------------------------------------------------------------

// RssiReading associates one radio source with one received signal
// strength measurement. Immutable once constructed.
type RssiReading struct {
	Source *RadioSource // Observed emitter
	Rssi   float64      // Received signal strength [dBm]
	StdDev float64      // Measurement std dev [dB], 0 means unknown
}

// NewRssiReading creates a reading without a known std dev
func NewRssiReading(source *RadioSource, rssi float64) *RssiReading {
	return &RssiReading{
		Source: source,
		Rssi:   rssi,
	}
}

// NewRssiReadingStdDev creates a reading with a per-reading std dev
func NewRssiReadingStdDev(source *RadioSource, rssi, stdDev float64) *RssiReading {
	return &RssiReading{
		Source: source,
		Rssi:   rssi,
		StdDev: stdDev,
	}
}

// Matches reports whether two readings observe the same emitter.
// Matching is by source identity only, never by measured value.
func (r *RssiReading) Matches(o *RssiReading) bool {
	return o != nil && r.Source != nil && r.Source.Same(o.Source)
}

// EffectiveStdDev returns the reading std dev, falling back to
// DEFAULT_RSSI_STDDEV when the reading does not carry one
func (r *RssiReading) EffectiveStdDev() float64 {
	if r.StdDev > 0 {
		return r.StdDev
	}
	return DEFAULT_RSSI_STDDEV
}

//-------------------------------------------------------------------
// LocatedRssiReading
//-------------------------------------------------------------------

// LocatedRssiReading is an RssiReading taken at a known receiver
// position. The position is where the measurement was recorded, not
// where the emitter is.
type LocatedRssiReading struct {
	RssiReading
	Position Point // Known receiver position
}

// NewLocatedRssiReading creates a located reading without a known std dev
func NewLocatedRssiReading(source *RadioSource, rssi float64, position Point) *LocatedRssiReading {
	return &LocatedRssiReading{
		RssiReading: RssiReading{Source: source, Rssi: rssi},
		Position:    position.Clone(),
	}
}

// NewLocatedRssiReadingStdDev creates a located reading with a per-reading std dev
func NewLocatedRssiReadingStdDev(source *RadioSource, rssi, stdDev float64, position Point) *LocatedRssiReading {
	return &LocatedRssiReading{
		RssiReading: RssiReading{Source: source, Rssi: rssi, StdDev: stdDev},
		Position:    position.Clone(),
	}
}
