package app

import (
	"github.com/offsidezero/varcore/internal/adapters/cache"
	"github.com/offsidezero/varcore/internal/adapters/provider"
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
)

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithProvider sets the vision provider clips are observed through.
func WithProvider(p provider.Provider) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.vision = p
		}
	}
}

// WithCache sets an analysis cache. Cached clips skip the provider
// entirely on repeat runs.
func WithCache(c *cache.Store) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithWorkerCount sets the number of evaluation workers.
func WithWorkerCount(count int) Option {
	return func(a *Analyzer) {
		if count > 0 {
			a.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the decision event queue.
func WithQueueSize(size int) Option {
	return func(a *Analyzer) {
		if size > 0 {
			a.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the frame deduplication cache.
func WithDedupeSize(size int) Option {
	return func(a *Analyzer) {
		if size > 0 {
			a.dedupeSize = size
		}
	}
}

// WithBatchSize sets the number of frames per provider batch.
func WithBatchSize(size int) Option {
	return func(a *Analyzer) {
		if size > 0 {
			a.batchSize = size
		}
	}
}

// WithFrameRate sets the clip frame rate in frames per second.
func WithFrameRate(rate float64) Option {
	return func(a *Analyzer) {
		if rate > 0 {
			a.frameRate = rate
		}
	}
}

// WithSlowFactor sets the replay speed relative to real time.
func WithSlowFactor(f float64) Option {
	return func(a *Analyzer) {
		if f > 0 {
			a.slowFactor = f
		}
	}
}

// WithPlayDirection sets the attacking team's direction of play.
func WithPlayDirection(d types.PlayDirection) Option {
	return func(a *Analyzer) {
		a.direction = d
	}
}

// WithInvolvementRadius sets the offside involvement radius in meters.
func WithInvolvementRadius(r float64) Option {
	return func(a *Analyzer) {
		if r > 0 {
			a.involvementRadius = r
		}
	}
}

// WithKeeperExcluded removes the deepest defender from the offside line pool.
func WithKeeperExcluded() Option {
	return func(a *Analyzer) {
		a.excludeKeeper = true
	}
}

// WithNaturalThreshold sets the arm extension ratio above which the arm
// position counts as unnatural.
func WithNaturalThreshold(r float64) Option {
	return func(a *Analyzer) {
		if r > 0 {
			a.naturalThreshold = r
		}
	}
}

// WithContactRadius sets the ball-to-arm contact distance in meters.
func WithContactRadius(r float64) Option {
	return func(a *Analyzer) {
		if r > 0 {
			a.contactRadius = r
		}
	}
}

// WithResidualTolerance sets the calibration reprojection ceiling in meters.
func WithResidualTolerance(tol float64) Option {
	return func(a *Analyzer) {
		if tol > 0 {
			a.residualTolerance = tol
		}
	}
}

// WithLogger sets a custom logger for the analyzer.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}
