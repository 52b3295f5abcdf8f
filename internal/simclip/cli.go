// Package simclip is a scripted-clip simulator for the decision pipeline:
// it synthesizes clips with known correct outcomes, drives them through the
// analyzer and verifies the rulings and overlays that come back.
package simclip

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/offsidezero/varcore/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simclip_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Varcore Clip Simulator
======================

Drives scripted clips with known correct outcomes through the decision
pipeline and verifies the rulings that come back.

Usage:
  go run cmd/simclip/main.go [options]

Options:
  -scenario string
        Comma-separated scenario names to run (default: all)
  -list
        List available scenarios and exit
  -output string
        Directory for per-scenario analysis artifacts (default ".")
  -slow float
        Replay speed relative to real time for rendered overlays (default 0.25)
  -workers int
        Number of evaluation workers per analyzer (default CPU cores * 2)
  -log string
        Log file for simulator output (default: simclip_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run every scenario
  go run cmd/simclip/main.go

  # Run only the offside scenarios
  go run cmd/simclip/main.go -scenario clean-offside,tight-onside

  # Keep artifacts out of the working directory
  go run cmd/simclip/main.go -output /tmp/simclip
`)
}

// ListScenarios prints the available scenario names and descriptions.
func ListScenarios() {
	os.Stdout.WriteString("Available scenarios:\n")
	for _, s := range Scenarios() {
		fmt.Fprintf(os.Stdout, "  %-22s %s\n", s.Name, s.Description)
	}
}
