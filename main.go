// ABOUTME: Entry point for the megra core runtime
// ABOUTME: Handles command-line parsing, profiling, and a headless demo session

// Package main boots the megra core runtime headless: configuration, sample
// registry, session. Without an audio backend attached it renders against
// the recording dispatcher, which is enough to exercise and inspect a piece.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"megra/config"
	"megra/dispatch"
	"megra/event"
	"megra/generator"
	"megra/pool"
	"megra/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile := flag.String("memprofile", "", "write memory profile to file")
	debug := flag.Bool("debug", false, "enable debug logging to megra-debug.log")
	sampleRoot := flag.String("samples", "", "sample directory (overrides config)")
	flag.Parse()

	if *cpuprofile != "" {
		stopCPUProfile := setupCPUProfile(*cpuprofile)
		defer stopCPUProfile()
	}

	if *memprofile != "" {
		defer writeMemoryProfile(*memprofile)
	}

	if *debug {
		if err := SetupDebugLog("megra-debug.log"); err != nil {
			log.Printf("Failed to setup debug log: %v", err)

			return 1
		}
	}

	cfg, err := config.LoadConfig(config.GetConfigPath())
	if err != nil {
		log.Printf("config: %v (using defaults)", err)
	}

	if *sampleRoot != "" {
		cfg.SampleRoot = *sampleRoot
	}

	recorder := dispatch.NewRecorder()

	sess := session.New(session.Options{
		Dispatcher:         recorder,
		Mode:               outputMode(cfg.OutputMode),
		LatencySeconds:     cfg.LatencyMs / 1000.0,
		LifemodelResources: cfg.LifemodelGlobalResources,
	})

	if cfg.SampleRoot != "" {
		if err := sess.Samples.ScanRoot(cfg.SampleRoot, pool.NewBatch(0)); err != nil {
			log.Printf("samples: scan failed: %v", err)
		}

		stopWatch, err := sess.Samples.Watch(cfg.SampleRoot)
		if err != nil {
			log.Printf("samples: watch failed: %v", err)
		} else {
			defer stopWatch()
		}

		debugf("loaded sample sets: %v", sess.Samples.Sets())
	}

	sess.Apply(session.Evaluated{SyncContext: demoContext(cfg)})

	fmt.Println("megra core running headless, ctrl-c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			fmt.Println("\nstopping")
			sess.Clear()

			return 0
		case <-ticker.C:
			recorder.AdvanceClock(2)
			fmt.Printf("running generators: %d, dispatched events: %d\n",
				sess.Running(), len(recorder.Events()))
		}
	}
}

// demoContext builds a small scene so a bare invocation makes sound(ish):
// a sine nucleus that slowly grows and spreads.
func demoContext(cfg config.RuntimeConfig) *session.SyncContext {
	lead := event.NewEvent("sine").PutScalar(event.PitchFrequency, 440).PutScalar(event.Level, 0.5)

	gen := generator.Nuc("demo", event.Static(cfg.DefaultDurationMs), lead)
	gen.Processors = append(gen.Processors,
		generator.NewEvery(8, nil, generator.ModCall{Fun: generator.Grow, Pos: []float64{0.2}}),
	)

	return &session.SyncContext{
		Name:       "demo",
		Active:     true,
		Generators: []*generator.Generator{gen},
	}
}

func outputMode(name string) dispatch.OutputMode {
	switch name {
	case "4ch":
		return dispatch.FourChannel
	case "8ch":
		return dispatch.EightChannel
	default:
		return dispatch.Stereo
	}
}

// setupCPUProfile starts CPU profiling, returns cleanup function
func setupCPUProfile(filename string) func() {
	f, err := os.Create(filename)
	if err != nil {
		log.Fatalf("could not create CPU profile: %v", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		log.Fatalf("could not start CPU profile: %v", err)
	}

	return func() {
		pprof.StopCPUProfile()

		if err := f.Close(); err != nil {
			log.Printf("Warning: failed to close CPU profile: %v", err)
		}
	}
}

// writeMemoryProfile writes memory profile to file
func writeMemoryProfile(filename string) {
	f, err := os.Create(filename)
	if err != nil {
		log.Printf("could not create memory profile: %v", err)

		return
	}

	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Warning: failed to close memory profile: %v", err)
		}
	}()

	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Printf("could not write memory profile: %v", err)
	}
}
