// Package track stitches calibrated detections into continuous player and
// ball tracks.
package track

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithGateRadius sets the association gate for player tracks, in meters.
// Non-positive values keep the default.
func WithGateRadius(r float64) Option {
	return func(b *Builder) {
		if r > 0 {
			b.gateRadius = r
		}
	}
}

// WithBallGateRadius sets the association gate for the ball track, in meters.
// The ball covers far more ground per frame than any player.
func WithBallGateRadius(r float64) Option {
	return func(b *Builder) {
		if r > 0 {
			b.ballGateRadius = r
		}
	}
}

// WithMaxMissedFrames sets how many consecutive unmatched frames a track
// survives before it is closed.
func WithMaxMissedFrames(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxMissedFrames = n
		}
	}
}

// WithMaxInterpolateGap sets the widest frame gap bridged by linear
// interpolation in pitch space. Wider gaps split the track instead.
func WithMaxInterpolateGap(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.maxInterpolateGap = n
		}
	}
}

// WithVarianceWindow sets how many trailing samples feed the positional
// variance used to break ambiguous associations.
func WithVarianceWindow(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.varianceWindow = n
		}
	}
}

// WithTieEpsilon sets the pitch distance, in meters, under which two
// association distances count as equal.
func WithTieEpsilon(e float64) Option {
	return func(b *Builder) {
		if e >= 0 {
			b.tieEpsilon = e
		}
	}
}
