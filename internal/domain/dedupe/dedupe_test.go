package dedupe_test

import (
	"context"
	"sync"
	"testing"

	dedupe "github.com/offsidezero/varcore/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should have default configuration", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording frames", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the frame is new", func() {
				seen := d.SeenAndRecord(context.Background(), 42)

				Convey("Then it should return false and record the frame", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the frame was already seen", func() {
				// First time
				d.SeenAndRecord(context.Background(), 42)

				// Second time, as a retried batch would
				seen := d.SeenAndRecord(context.Background(), 42)

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And a whole batch is recorded", func() {
				for frame := int64(100); frame < 105; frame++ {
					seen := d.SeenAndRecord(context.Background(), frame)
					So(seen, ShouldBeFalse)
				}

				Convey("Then the retried batch is rejected frame by frame", func() {
					So(d.Size(), ShouldEqual, 5)

					for frame := int64(100); frame < 105; frame++ {
						seen := d.SeenAndRecord(context.Background(), frame)
						So(seen, ShouldBeTrue)
					}
				})
			})
		})

		Convey("When unrecording frames", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the frame exists", func() {
				d.SeenAndRecord(context.Background(), 7)
				So(d.Size(), ShouldEqual, 1)

				d.Unrecord(context.Background(), 7)

				Convey("Then it should be removed", func() {
					So(d.Size(), ShouldEqual, 0)

					// Should not be seen anymore
					seen := d.SeenAndRecord(context.Background(), 7)
					So(seen, ShouldBeFalse)
				})
			})

			Convey("And the frame doesn't exist", func() {
				d.Unrecord(context.Background(), 999)

				Convey("Then it should not affect the size", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When using bounded mode with eviction", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

			Convey("And the deduper is at capacity", func() {
				for frame := int64(1); frame <= 3; frame++ {
					seen := d.SeenAndRecord(context.Background(), frame)
					So(seen, ShouldBeFalse)
				}
				So(d.Size(), ShouldEqual, 3)

				// Add one more frame
				seen := d.SeenAndRecord(context.Background(), 4)

				Convey("Then it should evict the oldest and add the new one", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 3)

					// Frame 1 was evicted, so recording it again looks new
					// and eviction keeps the size flat.
					seen1 := d.SeenAndRecord(context.Background(), 1)
					So(seen1, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 3)
				})
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

			Convey("And many frames are recorded", func() {
				const numFrames = 1000
				for frame := int64(0); frame < numFrames; frame++ {
					seen := d.SeenAndRecord(context.Background(), frame)
					So(seen, ShouldBeFalse)
				}

				Convey("Then all frames should be recorded without eviction", func() {
					So(d.Size(), ShouldEqual, int64(numFrames))

					for frame := int64(0); frame < numFrames; frame++ {
						seen := d.SeenAndRecord(context.Background(), frame)
						So(seen, ShouldBeTrue)
					}
				})
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const numGoroutines = 10
		const framesPerGoroutine = 100

		Convey("When multiple goroutines record frames concurrently", func() {
			var wg sync.WaitGroup

			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(goroutineID int) {
					defer wg.Done()
					base := int64(goroutineID * framesPerGoroutine)
					for j := int64(0); j < framesPerGoroutine; j++ {
						// This should not panic or cause race conditions
						d.SeenAndRecord(context.Background(), base+j)
					}
				}(i)
			}

			wg.Wait()

			Convey("Then all frames should be recorded successfully", func() {
				So(d.Size(), ShouldEqual, int64(numGoroutines*framesPerGoroutine))
			})
		})

		Convey("When multiple goroutines unrecord frames concurrently", func() {
			const numFrames = 500
			for frame := int64(0); frame < numFrames; frame++ {
				d.SeenAndRecord(context.Background(), frame)
			}

			So(d.Size(), ShouldEqual, int64(numFrames))

			var wg sync.WaitGroup
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(goroutineID int) {
					defer wg.Done()
					base := int64(goroutineID * (numFrames / numGoroutines))
					for j := int64(0); j < numFrames/numGoroutines; j++ {
						d.Unrecord(context.Background(), base+j)
					}
				}(i)
			}

			wg.Wait()

			Convey("Then all frames should be unrecorded successfully", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestDedupeEdgeCases(t *testing.T) {
	Convey("Given a deduper with edge cases", t, func() {
		Convey("When recording frame zero", func() {
			d := dedupe.NewInMemoryDeduper()

			seen := d.SeenAndRecord(context.Background(), 0)

			Convey("Then frame zero is a valid key", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				seen2 := d.SeenAndRecord(context.Background(), 0)
				So(seen2, ShouldBeTrue)
			})
		})

		Convey("When using nil context", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should not panic", func() {
				So(func() { d.SeenAndRecord(nil, 1) }, ShouldNotPanic)
				So(func() { d.Unrecord(nil, 1) }, ShouldNotPanic)
			})
		})

		Convey("When using very small max size", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))

			Convey("And adding multiple frames", func() {
				seen1 := d.SeenAndRecord(context.Background(), 1)
				So(seen1, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				// Second frame should evict the first
				seen2 := d.SeenAndRecord(context.Background(), 2)
				So(seen2, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				// First frame was evicted, so it looks new again
				seen1Again := d.SeenAndRecord(context.Background(), 1)
				So(seen1Again, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When using negative max size", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))

			Convey("Then it should be unbounded", func() {
				const numFrames = 1000
				for frame := int64(0); frame < numFrames; frame++ {
					seen := d.SeenAndRecord(context.Background(), frame)
					So(seen, ShouldBeFalse)
				}

				So(d.Size(), ShouldEqual, int64(numFrames))
			})
		})
	})
}
