// Package event locates the decision instants that evaluators rule on.
package event

// Option applies a configuration option to the Localizer.
type Option func(*Localizer)

// WithContactThreshold sets the pitch distance, in meters, under which the
// ball and an arm keypoint count as touching.
func WithContactThreshold(m float64) Option {
	return func(l *Localizer) {
		if m > 0 {
			l.contactThreshold = m
		}
	}
}

// WithPossessionRadius sets how close, in meters, the ball must come to a
// player for a distance minimum to count as a release.
func WithPossessionRadius(m float64) Option {
	return func(l *Localizer) {
		if m > 0 {
			l.possessionRadius = m
		}
	}
}

// WithWindowPadding sets how many frames either side of an instant the
// resulting event window covers.
func WithWindowPadding(n int) Option {
	return func(l *Localizer) {
		if n >= 0 {
			l.windowPadding = int64(n)
		}
	}
}

// WithMinSeparation sets the minimum frame distance between two release
// candidates; closer pairs collapse into the stronger one.
func WithMinSeparation(n int) Option {
	return func(l *Localizer) {
		if n > 0 {
			l.minSeparation = int64(n)
		}
	}
}
