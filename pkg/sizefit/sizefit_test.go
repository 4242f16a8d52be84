package sizefit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEncoder is a deterministic stand-in for a real codec: output length is
// a pure function of width, height and quality.
type fakeEncoder struct {
	bytesPerPixel float64 // output bytes per pixel at quality 1.0
	floor         int     // constant overhead added to every output
	qualityBlind  bool    // ignore the quality parameter entirely
	calls         int
	err           error
	panics        bool
}

func (f *fakeEncoder) Encode(w, h int, quality float64) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.panics {
		panic("encoder blew up")
	}
	eff := 0.05 + 0.95*quality
	if f.qualityBlind {
		eff = 1.0
	}
	n := f.floor + int(float64(w)*float64(h)*eff*f.bytesPerPixel)
	return make([]byte, n), nil
}

// stepEncoder is quality-blind with a coarse size step on width, forcing the
// dimension loop to oscillate without ever converging inside the gap
// threshold.
type stepEncoder struct{ calls int }

func (s *stepEncoder) Encode(w, h int, quality float64) ([]byte, error) {
	s.calls++
	if w > 1000 {
		return make([]byte, 150*1024), nil
	}
	return make([]byte, 92*1024), nil
}

func TestEstimateKB(t *testing.T) {
	tests := []struct {
		bytes int
		want  int
	}{
		{0, 0},
		{511, 0},
		{512, 1},
		{1024, 1},
		{1536, 2},
		{102911, 100},
		{102912, 101},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateKB(make([]byte, tt.bytes)), "bytes=%d", tt.bytes)
	}
}

func TestNewSessionValidation(t *testing.T) {
	enc := &fakeEncoder{bytesPerPixel: 0.15}

	_, err := NewSession(nil, Request{TargetKB: 100, Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrEncoderUnavailable)

	_, err = NewSession(enc, Request{TargetKB: 0, Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewSession(enc, Request{TargetKB: 100, Width: 0, Height: 10})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewSession(enc, Request{TargetKB: 100, Width: 10, Height: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFitConvergesNearTarget(t *testing.T) {
	enc := &fakeEncoder{bytesPerPixel: 0.15}
	res, err := Fit(context.Background(), enc, Request{TargetKB: 100, Width: 2000, Height: 1500})
	require.NoError(t, err)

	assert.False(t, res.BestEffort)
	assert.LessOrEqual(t, res.SizeKB, 100)
	assert.GreaterOrEqual(t, res.SizeKB, 95, "should land close under the target")
	// Quality alone closes the gap here; dimensions stay at the source.
	assert.Equal(t, 2000, res.Width)
	assert.Equal(t, 1500, res.Height)
	assert.LessOrEqual(t, res.EncodeCalls, 99)
}

func TestFitTinyTargetUsesFallback(t *testing.T) {
	enc := &fakeEncoder{bytesPerPixel: 0.15}
	res, err := Fit(context.Background(), enc, Request{TargetKB: 1, Width: 2000, Height: 1500})
	require.NoError(t, err)

	assert.False(t, res.BestEffort, "fallback eventually finds a feasible point")
	assert.LessOrEqual(t, res.SizeKB, 1)
	assert.Less(t, res.Width, 2000/3, "expected heavy downscale")
	assert.Less(t, res.Height, 1500/3)
	assert.InDelta(t, 0.0, res.Quality, 1e-9, "fallback encodes at minimum quality")
}

func TestFitBestEffortWhenInfeasible(t *testing.T) {
	// Constant overhead means nothing can ever fit under 1KB.
	enc := &fakeEncoder{bytesPerPixel: 0.15, floor: 4096}
	res, err := Fit(context.Background(), enc, Request{TargetKB: 1, Width: 640, Height: 480})
	require.NoError(t, err)

	assert.True(t, res.BestEffort)
	assert.Greater(t, res.SizeKB, 1, "best-effort result may exceed the target")
	// All 12 rounds infeasible (8 probes each), 10 fallback attempts, plus
	// the final unconditional encode.
	assert.Equal(t, 12*8+10+1, enc.calls)
	assert.Equal(t, enc.calls, res.EncodeCalls)
}

func TestFitNeverUpscalesPastSource(t *testing.T) {
	enc := &fakeEncoder{bytesPerPixel: 0.15}
	res, err := Fit(context.Background(), enc, Request{TargetKB: 10000, Width: 100, Height: 80})
	require.NoError(t, err)

	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 80, res.Height)
	assert.LessOrEqual(t, res.SizeKB, 10000)
	assert.Equal(t, 1, res.Rounds, "growth clamps at the source size immediately")
}

func TestFitQualityBlindCodecTerminates(t *testing.T) {
	enc := &fakeEncoder{bytesPerPixel: 0.25, qualityBlind: true}
	res, err := Fit(context.Background(), enc, Request{TargetKB: 200, Width: 1000, Height: 1000})
	require.NoError(t, err)

	assert.False(t, res.BestEffort)
	assert.LessOrEqual(t, res.SizeKB, 200)
	assert.LessOrEqual(t, res.Rounds, maxRounds)
}

func TestNudgeRevertsFirstInfeasibleStep(t *testing.T) {
	enc := &stepEncoder{}
	res, err := Fit(context.Background(), enc, Request{TargetKB: 100, Width: 1200, Height: 900})
	require.NoError(t, err)

	assert.Equal(t, 92, res.SizeKB)
	assert.False(t, res.BestEffort)
	// The first feasible round fixes the best candidate; later equal-size
	// candidates never replace it (strict improvement only).
	assert.Equal(t, 972, res.Width)
	assert.Equal(t, 729, res.Height)
	assert.Equal(t, maxRounds, res.Rounds)
	assert.LessOrEqual(t, res.EncodeCalls, 99)
}

func TestFitIsDeterministic(t *testing.T) {
	req := Request{TargetKB: 150, Width: 1600, Height: 1200}

	a, err := Fit(context.Background(), &fakeEncoder{bytesPerPixel: 0.2}, req)
	require.NoError(t, err)
	b, err := Fit(context.Background(), &fakeEncoder{bytesPerPixel: 0.2}, req)
	require.NoError(t, err)

	assert.Equal(t, a.SizeKB, b.SizeKB)
	assert.Equal(t, a.Width, b.Width)
	assert.Equal(t, a.Height, b.Height)
	assert.Equal(t, a.EncodeCalls, b.EncodeCalls)
}

func TestRunProgressStream(t *testing.T) {
	s, err := NewSession(&fakeEncoder{bytesPerPixel: 0.25, qualityBlind: true},
		Request{TargetKB: 50, Width: 1000, Height: 1000})
	require.NoError(t, err)

	var events []Event
	for ev := range s.Run(context.Background()) {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)

	last := 0
	terminals := 0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Percent, last, "progress must not decrease")
		assert.LessOrEqual(t, ev.Percent, 100)
		last = ev.Percent
		if ev.Result != nil || ev.Err != nil {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "exactly one terminal event")

	final := events[len(events)-1]
	require.NotNil(t, final.Result)
	assert.Equal(t, 100, final.Percent)
	for _, ev := range events[:len(events)-1] {
		assert.Less(t, ev.Percent, 100, "only the terminal event reports 100")
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := NewSession(&fakeEncoder{bytesPerPixel: 0.15},
		Request{TargetKB: 100, Width: 2000, Height: 1500})
	require.NoError(t, err)

	var last Event
	for ev := range s.Run(ctx) {
		last = ev
	}
	require.Error(t, last.Err)
	assert.ErrorIs(t, last.Err, context.Canceled)
	assert.Nil(t, last.Result)
}

func TestEncoderErrorIsFatal(t *testing.T) {
	boom := errors.New("codec exploded")
	_, err := Fit(context.Background(), &fakeEncoder{err: boom},
		Request{TargetKB: 100, Width: 800, Height: 600})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPanicRecoveredAtSessionBoundary(t *testing.T) {
	_, err := Fit(context.Background(), &fakeEncoder{panics: true},
		Request{TargetKB: 100, Width: 800, Height: 600})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestScaleDimRounding(t *testing.T) {
	tests := []struct {
		d      int
		factor float64
		want   int
	}{
		{100, 1.10, 110},
		{100, 1.05, 105},
		{99, 1.02, 101},  // 100.98 rounds half up
		{25, 1.02, 26},   // 25.5 rounds half up
		{1, 0.80, 1},     // never below 1
		{10, 0.90, 9},
		{1500, 1.02, 1530},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scaleDim(tt.d, tt.factor), "scaleDim(%d, %v)", tt.d, tt.factor)
	}
}
