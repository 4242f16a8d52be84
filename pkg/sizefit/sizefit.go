// Package sizefit finds the highest-quality encoding of an image that fits
// under a hard byte-size budget. It treats the encoder as an opaque, expensive
// capability and runs a bounded search over the (dimensions, quality) space:
// a dimension-adjustment outer loop wrapping a binary search on quality, a
// forced-minimal fallback when nothing fits, and a final small-step refinement
// pass that spends any remaining headroom.
//
// The search assumes encoded size is monotonic in quality for fixed
// dimensions. That holds in practice for lossy codecs; for codecs that ignore
// the quality parameter every probe converges to the same size and only the
// dimension loop has any effect, which the fixed round budget still bounds.
package sizefit

import "errors"

var (
	// ErrEncoderUnavailable is returned when a session is created without a
	// usable encoder.
	ErrEncoderUnavailable = errors.New("sizefit: encoder unavailable")
	// ErrInvalidRequest is returned for non-positive targets or dimensions.
	ErrInvalidRequest = errors.New("sizefit: invalid request")
	// ErrInternal wraps faults recovered at the session boundary.
	ErrInternal = errors.New("sizefit: internal fault")
)

// Search tuning. The iteration budgets are the sole termination guarantee.
const (
	qualityEpsilon   = 0.01 // binary search window, ~7 probes per search
	maxRounds        = 12   // dimension refinement rounds
	fallbackAttempts = 10   // forced-minimal shrink attempts
	maxNudges        = 5    // final refinement attempts
	convergedGapKB   = 2    // close enough, stop searching
	nudgeGapKB       = 5    // headroom worth spending on a nudge
)

// Encoder renders the session's pixel surface at the given dimensions and
// quality. Quality is in [0,1]; implementations map it onto their codec's own
// scale. Quality-insensitive codecs may ignore it entirely.
//
// The surface itself is bound at construction time: one decoded surface is
// owned by exactly one session and reused for every probe.
type Encoder interface {
	Encode(width, height int, quality float64) ([]byte, error)
}

// Request describes one search session.
type Request struct {
	// TargetKB is the hard upper bound on output size, in kilobytes as
	// measured by EstimateKB.
	TargetKB int
	// Width and Height are the surface's native dimensions and the starting
	// point of the search. Growth never exceeds them.
	Width  int
	Height int
}

// Result is the terminal outcome of a session.
type Result struct {
	// Data is the winning encoded output.
	Data []byte
	// SizeKB is EstimateKB(Data).
	SizeKB int
	// Width and Height are the dimensions Data was rendered at.
	Width  int
	Height int
	// Quality is the encoder quality Data was rendered with.
	Quality float64
	// BestEffort is set when the forced-minimal fallback exhausted its budget
	// without finding a feasible point. It is the only case where SizeKB may
	// exceed the target.
	BestEffort bool
	// Rounds is the number of dimension-refinement rounds that ran.
	Rounds int
	// EncodeCalls is the total number of encoder probes the session made.
	EncodeCalls int
}

// Event is one notification on a session's progress stream. Percent is
// monotonically non-decreasing in [0,100]. Exactly one terminal event is
// emitted: either Result or Err is non-nil, with Percent == 100 on success.
// Consumers must treat an event carrying Err as final.
type Event struct {
	Percent int
	Result  *Result
	Err     error
}

// EstimateKB converts an encoded buffer into the kilobyte metric every
// target comparison uses. Rounds half up, so it is deterministic and
// monotonic with buffer length.
func EstimateKB(b []byte) int {
	return (len(b) + 512) / 1024
}
