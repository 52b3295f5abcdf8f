package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/offsidezero/varcore/internal/app"
	"github.com/offsidezero/varcore/internal/simclip"
	"github.com/offsidezero/varcore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestAnalyzer_New(t *testing.T) {
	Convey("Given a new analyzer with default options", t, func() {
		analyzer := app.New()

		Convey("Then it should have sensible defaults", func() {
			So(analyzer, ShouldNotBeNil)
		})
	})

	Convey("Given a new analyzer with custom options", t, func() {
		analyzer := app.New(
			app.WithWorkerCount(8),
			app.WithQueueSize(50_000),
			app.WithDedupeSize(25_000),
			app.WithBatchSize(32),
			app.WithFrameRate(50),
			app.WithInvolvementRadius(7.5),
			app.WithKeeperExcluded(),
		)

		Convey("Then it should be created successfully", func() {
			So(analyzer, ShouldNotBeNil)
		})
	})
}

func TestAnalyzer_Start(t *testing.T) {
	Convey("Given an analyzer without a provider", t, func() {
		analyzer := app.New()

		Convey("When starting it", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := analyzer.Start(ctx)

			Convey("Then it should refuse to start", func() {
				So(errors.Is(err, app.ErrNoProvider), ShouldBeTrue)
			})
		})
	})

	Convey("Given an analyzer with a provider", t, func() {
		analyzer := app.New(app.WithProvider(simclip.NewScriptedProvider(simclip.CleanOffside())))
		defer analyzer.Stop()

		Convey("When starting it", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := analyzer.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And starting again should be a no-op", func() {
				So(analyzer.Start(ctx), ShouldBeNil)
			})
		})
	})
}

func TestAnalyzer_AnalyzeBeforeStart(t *testing.T) {
	Convey("Given an analyzer that was never started", t, func() {
		analyzer := app.New(app.WithProvider(simclip.NewScriptedProvider(simclip.CleanOffside())))

		Convey("When analyzing a clip", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			result, err := analyzer.Analyze(ctx, app.Clip{ID: "early"})

			Convey("Then it should report the lifecycle error", func() {
				So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
				So(result, ShouldBeNil)
			})
		})
	})
}

func TestAnalyzer_Stop(t *testing.T) {
	Convey("Given an analyzer that was never started", t, func() {
		analyzer := app.New()

		Convey("When stopping it", func() {
			Convey("Then it should not panic", func() {
				So(analyzer.Stop, ShouldNotPanic)
			})
		})
	})

	Convey("Given a started analyzer", t, func() {
		analyzer := app.New(app.WithProvider(simclip.NewScriptedProvider(simclip.CleanOffside())))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(analyzer.Start(ctx), ShouldBeNil)

		Convey("When stopping it twice", func() {
			analyzer.Stop()

			Convey("Then the second stop should be a no-op", func() {
				So(analyzer.Stop, ShouldNotPanic)
			})
		})
	})
}
