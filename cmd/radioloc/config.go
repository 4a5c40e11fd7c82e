// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.23
//

package main

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	m "github.com/mkhts/radioloc"
)

// Scenario file layout (YAML). A scenario carries located sources plus
// any number of fingerprint problems (unknown receiver position) and
// emitter problems (unknown source position and power).
type scenarioConfig struct {
	Dimensions   int                 `yaml:"dimensions"`
	Sources      []sourceConfig      `yaml:"sources"`
	Fingerprints []fingerprintConfig `yaml:"fingerprints"`
	Emitters     []emitterConfig     `yaml:"emitters"`
}

type sourceConfig struct {
	Name      string    `yaml:"name"`
	Type      string    `yaml:"type"` // "ap", "beacon" or "generic"
	Frequency float64   `yaml:"frequency_hz"`
	TxPower   float64   `yaml:"tx_power_dbm"`
	Position  []float64 `yaml:"position"`
}

type fingerprintConfig struct {
	Name     string            `yaml:"name"`
	Readings []fpReadingConfig `yaml:"readings"`
}

type fpReadingConfig struct {
	Source string  `yaml:"source"` // Name of a located source
	Rssi   float64 `yaml:"rssi_dbm"`
	StdDev float64 `yaml:"stddev_db"`
}

type emitterConfig struct {
	Name      string             `yaml:"name"`
	Frequency float64            `yaml:"frequency_hz"`
	Readings  []locReadingConfig `yaml:"readings"`
	Simulate  *simulateConfig    `yaml:"simulate"`
}

type locReadingConfig struct {
	Position []float64 `yaml:"position"`
	Rssi     float64   `yaml:"rssi_dbm"`
	StdDev   float64   `yaml:"stddev_db"`
}

// Synthetic observation generation for validation runs: readings are
// produced from the true emitter parameters at the given receiver
// positions, with optional Gaussian noise.
type simulateConfig struct {
	Position  []float64   `yaml:"position"`
	TxPower   float64     `yaml:"tx_power_dbm"`
	Receivers [][]float64 `yaml:"receivers"`
	Noise     float64     `yaml:"noise_stddev_db"`
	Seed      int64       `yaml:"seed"`
}

// Read scenario file
func loadScenario(fn string) (*scenarioConfig, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	cfg := &scenarioConfig{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 2
	}
	if cfg.Dimensions != 2 && cfg.Dimensions != 3 {
		return nil, fmt.Errorf("dimensions must be 2 or 3, got %d", cfg.Dimensions)
	}
	return cfg, nil
}

// Build located sources from the scenario, keyed by name
func buildSources(cfg *scenarioConfig) (map[string]*m.RadioSourceLocated, error) {
	sources := map[string]*m.RadioSourceLocated{}
	for i, sc := range cfg.Sources {
		if sc.Name == "" {
			return nil, fmt.Errorf("source %d has no name", i)
		}
		if _, ok := sources[sc.Name]; ok {
			return nil, fmt.Errorf("duplicate source name %q", sc.Name)
		}
		if len(sc.Position) != cfg.Dimensions {
			return nil, fmt.Errorf("source %q position has %d coordinates, want %d", sc.Name, len(sc.Position), cfg.Dimensions)
		}
		typ, err := parseSourceType(sc.Type)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		sources[sc.Name] = m.NewRadioSourceLocatedWithPower(typ, sc.Frequency, sc.TxPower, m.Point(sc.Position))
	}
	return sources, nil
}

func parseSourceType(s string) (m.SourceType, error) {
	switch s {
	case "", "ap":
		return m.SRC_ACCESS_POINT, nil
	case "beacon":
		return m.SRC_BEACON, nil
	case "generic":
		return m.SRC_GENERIC, nil
	default:
		return 0, fmt.Errorf("unknown source type %q", s)
	}
}

// Build the fingerprint of one fingerprint problem
func buildFingerprint(fc fingerprintConfig, sources map[string]*m.RadioSourceLocated) (*m.RssiFingerprint, []*m.RadioSourceLocated, error) {
	readings := make([]*m.RssiReading, 0, len(fc.Readings))
	used := make([]*m.RadioSourceLocated, 0, len(fc.Readings))
	seen := map[string]bool{}
	for i, rc := range fc.Readings {
		src, ok := sources[rc.Source]
		if !ok {
			return nil, nil, fmt.Errorf("fingerprint %q reading %d references unknown source %q", fc.Name, i, rc.Source)
		}
		readings = append(readings, m.NewRssiReadingStdDev(&src.RadioSource, rc.Rssi, rc.StdDev))
		if !seen[rc.Source] {
			seen[rc.Source] = true
			used = append(used, src)
		}
	}
	return m.NewRssiFingerprint(readings...), used, nil
}

// Build the located readings of one emitter problem, synthesizing them
// when a simulate block is present
func buildEmitterReadings(ec emitterConfig, dim int) ([]*m.LocatedRssiReading, error) {
	src := m.NewRadioSource(m.SRC_GENERIC, ec.Frequency)

	if ec.Simulate != nil {
		return simulateReadings(src, ec.Simulate, dim)
	}

	readings := make([]*m.LocatedRssiReading, 0, len(ec.Readings))
	for i, rc := range ec.Readings {
		if len(rc.Position) != dim {
			return nil, fmt.Errorf("emitter %q reading %d position has %d coordinates, want %d", ec.Name, i, len(rc.Position), dim)
		}
		readings = append(readings, m.NewLocatedRssiReadingStdDev(src, rc.Rssi, rc.StdDev, m.Point(rc.Position)))
	}
	return readings, nil
}

// Generate synthetic readings from the true emitter parameters
func simulateReadings(src *m.RadioSource, sim *simulateConfig, dim int) ([]*m.LocatedRssiReading, error) {
	if len(sim.Position) != dim {
		return nil, fmt.Errorf("simulated position has %d coordinates, want %d", len(sim.Position), dim)
	}
	truePos := m.Point(sim.Position)
	k := m.PropagationConstant(src.Frequency)
	rng := rand.New(rand.NewSource(sim.Seed))

	readings := make([]*m.LocatedRssiReading, 0, len(sim.Receivers))
	for i, rc := range sim.Receivers {
		if len(rc) != dim {
			return nil, fmt.Errorf("receiver %d position has %d coordinates, want %d", i, len(rc), dim)
		}
		p := m.Point(rc)
		rssi := m.PredictRssi(k, sim.TxPower, truePos.SqrDistance(p))
		if sim.Noise > 0 {
			rssi += rng.NormFloat64() * sim.Noise
		}
		readings = append(readings, m.NewLocatedRssiReadingStdDev(src, rssi, sim.Noise, p))
	}
	return readings, nil
}
