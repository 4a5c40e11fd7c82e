// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

package radioloc

import (
	"fmt"

	"github.com/google/uuid"
)

// Type of radio emitter
type SourceType int

const (
	SRC_ACCESS_POINT SourceType = iota // WiFi access point
	SRC_BEACON                         // Bluetooth LE beacon
	SRC_GENERIC                        // Any other emitter
)

func (t SourceType) String() string {
	switch t {
	case SRC_ACCESS_POINT:
		return "AP"
	case SRC_BEACON:
		return "BEACON"
	case SRC_GENERIC:
		return "GENERIC"
	default:
		return "UNKNOWN!"
	}
}

//-------------------------------------------------------------------
// RadioSource
//-------------------------------------------------------------------

// RadioSource identifies one radio emitter. Immutable once constructed.
// Two readings refer to the same emitter iff their sources carry the same
// ID; frequency and type play no part in identity.
type RadioSource struct {
	ID        uuid.UUID  // Emitter identity
	Type      SourceType // Kind of emitter
	Frequency float64    // Carrier frequency [Hz]
}

// NewRadioSource creates a source with a fresh identity
func NewRadioSource(typ SourceType, frequency float64) *RadioSource {
	return &RadioSource{
		ID:        uuid.New(),
		Type:      typ,
		Frequency: frequency,
	}
}

// NewAccessPoint creates a WiFi access point source
func NewAccessPoint(frequency float64) *RadioSource {
	return NewRadioSource(SRC_ACCESS_POINT, frequency)
}

// NewBeacon creates a Bluetooth LE beacon source
func NewBeacon(frequency float64) *RadioSource {
	return NewRadioSource(SRC_BEACON, frequency)
}

// Same reports whether two sources name the same emitter
func (s *RadioSource) Same(o *RadioSource) bool {
	return o != nil && s.ID == o.ID
}

// Convert to string
func (s *RadioSource) String() string {
	return fmt.Sprintf("%s %s f=%.0fHz", s.Type, s.ID, s.Frequency)
}

//-------------------------------------------------------------------
// RadioSourceLocated
//-------------------------------------------------------------------

// RadioSourceLocated is a radio source whose position is trusted input.
// TxPower is the emitter's known equivalent transmitted power, used when
// converting received signal strength to distance.
type RadioSourceLocated struct {
	RadioSource
	Position Point   // Known emitter position
	TxPower  float64 // Equivalent transmitted power [dBm]
}

// NewRadioSourceLocated creates a located source with a fresh identity
// and the default transmitted power of 0 dBm (1 mW)
func NewRadioSourceLocated(typ SourceType, frequency float64, position Point) *RadioSourceLocated {
	return &RadioSourceLocated{
		RadioSource: RadioSource{
			ID:        uuid.New(),
			Type:      typ,
			Frequency: frequency,
		},
		Position: position.Clone(),
	}
}

// NewRadioSourceLocatedWithPower creates a located source with a known
// equivalent transmitted power [dBm]
func NewRadioSourceLocatedWithPower(typ SourceType, frequency, txPower float64, position Point) *RadioSourceLocated {
	s := NewRadioSourceLocated(typ, frequency, position)
	s.TxPower = txPower
	return s
}
