package simclip

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/offsidezero/varcore/internal/app"
	"github.com/offsidezero/varcore/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	artifactPermission  = 0600
)

// Run executes every requested scenario against a fresh analyzer and
// verifies the rulings against the scripted ground truth.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting scenario simulation",
		logger.Int("scenarios", len(selectScenarios(config))),
		logger.String("outputDir", config.OutputDir),
		logger.Float64("slowFactor", config.SlowFactor),
		logger.Any("verbose", config.Verbose))

	scenarios := selectScenarios(config)
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios matched %v", config.Scenarios)
	}

	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.ScenariosRun++

		// Step 1: Run the pipeline over the scripted clip
		result, err := runScenario(ctx, config, s)
		if err != nil {
			logger.Get().Error(ctx, "scenario failed to run",
				logger.String("scenario", s.Name), logger.Error(err))
			stats.ScenariosFailed++
			continue
		}
		stats.RulingsProduced += len(result.Rulings)
		for _, set := range result.Overlays {
			stats.OverlayFrames += len(set.Frames)
		}

		// Step 2: Verify the result against the scripted expectations
		problems := verifyResult(s, result)
		stats.ChecksFailed += len(problems)
		if len(problems) > 0 {
			stats.ScenariosFailed++
		} else {
			stats.ScenariosPassed++
		}

		// Step 3: Save the analysis artifact
		if err := saveArtifact(ctx, config, s, result); err != nil {
			logger.Get().Warn(ctx, "failed to save analysis artifact",
				logger.String("scenario", s.Name), logger.Error(err))
		}
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	if stats.ScenariosFailed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", stats.ScenariosFailed, stats.ScenariosRun)
	}
	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// selectScenarios resolves the configured scenario names, defaulting to all.
func selectScenarios(config *Config) []*Scenario {
	if len(config.Scenarios) == 0 {
		return Scenarios()
	}
	out := make([]*Scenario, 0, len(config.Scenarios))
	for _, name := range config.Scenarios {
		if s := ScenarioByName(name); s != nil {
			out = append(out, s)
		} else {
			logger.Get().Warn(context.Background(), "unknown scenario skipped",
				logger.String("scenario", name))
		}
	}
	return out
}

// runScenario drives one scripted clip through a fresh analyzer.
func runScenario(ctx context.Context, config *Config, s *Scenario) (*app.Result, error) {
	logger.Get().Info(ctx, "running scenario",
		logger.String("scenario", s.Name),
		logger.String("description", s.Description))

	opts := []app.Option{
		app.WithProvider(NewScriptedProvider(s)),
	}
	if config.SlowFactor > 0 {
		opts = append(opts, app.WithSlowFactor(config.SlowFactor))
	}
	if config.Workers > 0 {
		opts = append(opts, app.WithWorkerCount(config.Workers))
	}

	analyzer := app.New(opts...)
	if err := analyzer.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting analyzer: %w", err)
	}
	defer analyzer.Stop()

	result, err := analyzer.Analyze(ctx, s.Clip)
	if err != nil {
		return nil, fmt.Errorf("analyzing clip %s: %w", s.Clip.ID, err)
	}
	return result, nil
}

// saveArtifact writes the scenario's result to <name>_analysis.json in the
// output directory.
func saveArtifact(ctx context.Context, config *Config, s *Scenario, result *app.Result) error {
	dir := config.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(struct {
		ClipID   string           `json:"clip_id"`
		RunID    string           `json:"run_id"`
		Rulings  interface{}      `json:"rulings"`
		Overlays []app.OverlaySet `json:"overlays"`
	}{
		ClipID:   result.ClipID,
		RunID:    result.RunID,
		Rulings:  result.Rulings,
		Overlays: result.Overlays,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	filename := filepath.Join(dir, s.Name+"_analysis.json")
	if err := os.WriteFile(filename, data, artifactPermission); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	logger.Get().Info(ctx, "analysis artifact saved", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("scenariosRun", stats.ScenariosRun),
		logger.Int("scenariosPassed", stats.ScenariosPassed),
		logger.Int("scenariosFailed", stats.ScenariosFailed),
		logger.Int("rulingsProduced", stats.RulingsProduced),
		logger.Int("overlayFrames", stats.OverlayFrames),
		logger.Int("checksFailed", stats.ChecksFailed),
		logger.String("duration", stats.Duration.String()))
}
