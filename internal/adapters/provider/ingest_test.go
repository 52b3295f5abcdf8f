package provider_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	provider "github.com/offsidezero/varcore/internal/adapters/provider"
	model "github.com/offsidezero/varcore/internal/domain/model"
	logging "github.com/offsidezero/varcore/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func obsAt(frame int64) model.FrameObservation {
	return model.FrameObservation{FrameIndex: frame}
}

// scriptedProvider returns canned observation batches in call order.
type scriptedProvider struct {
	mu      sync.Mutex
	batches [][]model.FrameObservation
	err     error
	call    int
}

func (s *scriptedProvider) Observe(ctx context.Context, batch provider.FrameBatch) ([]model.FrameObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.call >= len(s.batches) {
		return nil, nil
	}
	out := s.batches[s.call]
	s.call++
	return out, nil
}

func TestIngestorDedupe(t *testing.T) {
	convey.Convey("Given an ingestor over a provider that repeats frames", t, func() {
		_ = logging.Init()
		scripted := &scriptedProvider{batches: [][]model.FrameObservation{
			{obsAt(1), obsAt(2), obsAt(3)},
			{obsAt(2), obsAt(3), obsAt(4)},
		}}
		ing := provider.NewIngestor(scripted)

		convey.Convey("When observing two overlapping batches", func() {
			first, err1 := ing.Observe(context.Background(), provider.FrameBatch{SegmentID: "seg-1"})
			second, err2 := ing.Observe(context.Background(), provider.FrameBatch{SegmentID: "seg-1"})

			convey.Convey("Then repeated frames are dropped", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(first, convey.ShouldHaveLength, 3)
				convey.So(second, convey.ShouldHaveLength, 1)
				convey.So(second[0].FrameIndex, convey.ShouldEqual, 4)
			})
		})
	})

	convey.Convey("Given an ingestor over a failing provider", t, func() {
		_ = logging.Init()
		scripted := &scriptedProvider{err: provider.ErrProviderTimeout}
		ing := provider.NewIngestor(scripted)

		convey.Convey("When observing", func() {
			obs, err := ing.Observe(context.Background(), provider.FrameBatch{SegmentID: "seg-1"})

			convey.Convey("Then the failure passes through untouched", func() {
				convey.So(obs, convey.ShouldBeNil)
				convey.So(errors.Is(err, provider.ErrProviderTimeout), convey.ShouldBeTrue)
			})
		})
	})
}
