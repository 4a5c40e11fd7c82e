// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

package radioloc

const (
	PI = 3.1415926535897932 // Pi
	C  = 2.99792458e8       // Speed of light [m/s]

	FREQ_WIFI_24 = 2.4e9   // WiFi 2.4 GHz band center [Hz]
	FREQ_WIFI_5  = 5.0e9   // WiFi 5 GHz band center [Hz]
	FREQ_BLE     = 2.44e9  // Bluetooth LE advertising band center [Hz]

	DEFAULT_PATHLOSS_EXPONENT = 2.0 // Free space propagation
	DEFAULT_RSSI_STDDEV       = 1.0 // Std dev assumed for readings without one [dB]

	// Floor applied to the squared emitter-receiver distance when evaluating
	// the model and its partial derivatives. Keeps the 1/d^2 terms finite
	// when the position estimate lands exactly on an observation point.
	// Part of the public contract: estimates closer than 1 um are clamped.
	MIN_SQR_DISTANCE = 1e-12 // [m^2]
)
