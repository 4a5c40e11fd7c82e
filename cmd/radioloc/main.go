// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.23
//

package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	m "github.com/mkhts/radioloc"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		m.PrintE(err)
		os.Exit(1)
	}
}

type cmdOpt struct {
	scenarioFn string
	outFn      string
	parallel   bool
	noHeader   bool
	pathLoss   float64
}

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.StringVar(&a.outFn, "o", "", "Output file. Standard output if not specified.")
	flag.BoolVar(&a.parallel, "p", false, "Estimate emitters concurrently, one estimator instance per emitter.")
	flag.BoolVar(&a.noHeader, "nh", false, "Do not output the result header lines.")
	flag.Float64Var(&a.pathLoss, "n", m.DEFAULT_PATHLOSS_EXPONENT, "Path loss exponent reported with emitter estimates.")
	var dbg int
	flag.IntVar(&dbg, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(display), 2(detailed display), 3(more detailed), 4(most detailed)")
	flag.Parse()
	if flag.NArg() != 1 {
		return a, fmt.Errorf("scenario file must be specified")
	}
	a.scenarioFn = flag.Arg(0)
	m.DBG_ = dbg
	return
}

// Main application processing
func runApplication(args cmdOpt) error {

	cfg, err := loadScenario(args.scenarioFn)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}
	sources, err := buildSources(cfg)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}
	m.PrintD(1, "scenario: %s, dim=%d, sources=%d, fingerprints=%d, emitters=%d\n",
		filepath.Base(args.scenarioFn), cfg.Dimensions, len(sources), len(cfg.Fingerprints), len(cfg.Emitters))

	// Prepare output
	out, err := prepareOutput(args)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer closeOutput(out)

	if !args.noHeader {
		fmt.Fprintf(out, "%% program  : %s\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(out, "%% scenario : %s\n", args.scenarioFn)
	}

	if err := processFingerprints(cfg, sources, out, args); err != nil {
		return err
	}
	return processEmitters(cfg, out, args)
}

// Prepare output file
func prepareOutput(args cmdOpt) (io.WriteCloser, error) {
	if len(args.outFn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(args.outFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// Close output file
func closeOutput(out io.WriteCloser) {
	if out != nil {
		out.Close()
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Estimate the capture position of each fingerprint problem
func processFingerprints(cfg *scenarioConfig, sources map[string]*m.RadioSourceLocated, out io.Writer, args cmdOpt) error {

	if len(cfg.Fingerprints) == 0 {
		return nil
	}
	if !args.noHeader {
		fmt.Fprintf(out, "%%  fingerprint          position                  residual\n")
	}

	for _, fc := range cfg.Fingerprints {
		m.PrintD(2, "\n--- fingerprint: %s ---\n", fc.Name)

		fp, used, err := buildFingerprint(fc, sources)
		if err != nil {
			return err
		}
		est, err := m.NewLinearPositionEstimator(cfg.Dimensions, used, fp, nil)
		if err != nil {
			return fmt.Errorf("fingerprint %q: %w", fc.Name, err)
		}
		if err := est.Estimate(); err != nil {
			return fmt.Errorf("fingerprint %q: %w", fc.Name, err)
		}
		fmt.Fprintf(out, "%-20s %-28s %10.4f\n", fc.Name, est.EstimatedPosition(), est.Residual())
	}
	return nil
}

// Jointly estimate position and power of each emitter problem
func processEmitters(cfg *scenarioConfig, out io.Writer, args cmdOpt) error {

	if len(cfg.Emitters) == 0 {
		return nil
	}
	if !args.noHeader {
		fmt.Fprintf(out, "%%  emitter              position                  pte(dBm)    pte(mW)   pos_sd(m)       chi2       prob\n")
	}

	// Each emitter gets its own estimator instance, so the problems are
	// independent and may run concurrently
	var mu sync.Mutex
	var g errgroup.Group
	for _, ec := range cfg.Emitters {
		ec := ec
		if !args.parallel {
			if err := estimateEmitter(ec, cfg.Dimensions, args, out, &mu); err != nil {
				return err
			}
			continue
		}
		g.Go(func() error {
			return estimateEmitter(ec, cfg.Dimensions, args, out, &mu)
		})
	}
	return g.Wait()
}

// Estimate one emitter
func estimateEmitter(ec emitterConfig, dim int, args cmdOpt, out io.Writer, mu *sync.Mutex) error {

	m.PrintD(2, "\n--- emitter: %s ---\n", ec.Name)

	readings, err := buildEmitterReadings(ec, dim)
	if err != nil {
		return err
	}
	est, err := m.NewRadioSourceEstimator(dim, readings, nil)
	if err != nil {
		return fmt.Errorf("emitter %q: %w", ec.Name, err)
	}
	if err := est.SetPathLossExponent(args.pathLoss); err != nil {
		return fmt.Errorf("emitter %q: %w", ec.Name, err)
	}
	if err := est.Estimate(); err != nil {
		return fmt.Errorf("emitter %q: %w", ec.Name, err)
	}

	// Largest per-axis position std dev as a single quality figure
	posSd := 0.0
	for _, sd := range est.PositionStdDev() {
		posSd = math.Max(posSd, sd)
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%-20s %-28s %9.3f %10.4g %11.4g %10.4g %10.4f\n",
		ec.Name, est.EstimatedPosition(), est.EstimatedTxPowerDBm(), est.EstimatedTxPower(), posSd, est.ChiSq(), est.FitProbability())
	return nil
}
