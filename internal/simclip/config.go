package simclip

import "time"

// Config holds configuration for the scenario simulator.
type Config struct {
	Scenarios  []string // Scenario names to run; empty runs all
	OutputDir  string   // Directory for per-scenario analysis artifacts
	LogFile    string   // Log file for simulator output
	SlowFactor float64  // Replay speed relative to real time for rendered overlays
	Workers    int      // Evaluation workers per analyzer
	Verbose    bool     // Enable verbose logging
}

// Stats holds simulator statistics.
type Stats struct {
	ScenariosRun    int
	ScenariosPassed int
	ScenariosFailed int
	RulingsProduced int
	OverlayFrames   int
	ChecksFailed    int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
