package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/offsidezero/varcore/internal/simclip"
)

// Default configuration constants.
const (
	defaultSlowFactor = 0.25
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultRunTimeout = 5 * time.Minute
)

func main() {
	var (
		scenario  = flag.String("scenario", "", "Comma-separated scenario names to run (default: all)")
		list      = flag.Bool("list", false, "List available scenarios and exit")
		outputDir = flag.String("output", ".", "Directory for per-scenario analysis artifacts")
		slow      = flag.Float64("slow", defaultSlowFactor, "Replay speed relative to real time for rendered overlays")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of evaluation workers per analyzer")
		logFile   = flag.String("log", "", "Log file for simulator output (default: simclip_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simclip.ShowHelp()
		return
	}
	if *list {
		simclip.ListScenarios()
		return
	}

	// Setup logging
	if err := simclip.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	// Create simulator configuration
	var names []string
	if *scenario != "" {
		names = strings.Split(*scenario, ",")
	}
	config := &simclip.Config{
		Scenarios:  names,
		OutputDir:  *outputDir,
		SlowFactor: *slow,
		Workers:    *workers,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	// Run the simulation
	if err := simclip.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
