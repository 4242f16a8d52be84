package sizefit

import (
	"context"
	"fmt"
	"math"
)

// run drives the dimension refinement loop, handing off to the forced-minimal
// fallback when no feasible point was ever found and to the nudge pass when
// one was.
func (s *Session) run(ctx context.Context) (*Result, error) {
	for s.rounds < maxRounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.rounds++

		c, err := s.qualitySearch(s.w, s.h)
		if err != nil {
			return nil, err
		}
		s.reportRound()

		if c == nil {
			// Too big at any quality: the dimensions themselves are the
			// problem.
			s.w, s.h = scaleDim(s.w, 0.90), scaleDim(s.h, 0.90)
			continue
		}

		if s.best == nil || c.sizeKB > s.best.sizeKB {
			s.best = c
		}

		gap := s.target - c.sizeKB
		if gap <= convergedGapKB {
			break
		}
		var factor float64
		switch {
		case gap >= 20:
			factor = 1.10
		case gap >= 5:
			factor = 1.05
		default:
			factor = 1.02
		}
		nw, nh := s.clampGrow(scaleDim(s.w, factor), scaleDim(s.h, factor))
		if nw == s.w && nh == s.h {
			// Already at the source resolution; growing further would be an
			// upscale past the original, so there is nothing left to probe.
			break
		}
		s.w, s.h = nw, nh
	}

	if s.best == nil {
		return s.forcedMinimal(ctx)
	}
	if err := s.nudge(ctx); err != nil {
		return nil, err
	}
	return s.result(false), nil
}

// qualitySearch binary-searches quality in [0,1] at fixed dimensions for the
// largest feasible output. Returns nil when no quality stays under the
// target — a normal signal for the outer loop, not an error.
func (s *Session) qualitySearch(w, h int) (*candidate, error) {
	low, high := 0.0, 1.0
	var best *candidate

	for high-low > qualityEpsilon {
		c, err := s.probe(w, h, (low+high)/2)
		if err != nil {
			return nil, err
		}
		if c.sizeKB <= s.target {
			// Strict > keeps the earlier, lower-quality candidate on ties.
			if best == nil || c.sizeKB > best.sizeKB {
				best = c
			}
			low = c.quality
		} else {
			high = c.quality
		}
	}

	if best == nil {
		// Every midpoint overshot. The floor of the window is the one value
		// not yet tried; accept it only if it actually fits.
		c, err := s.probe(w, h, low)
		if err != nil {
			return nil, err
		}
		if c.sizeKB <= s.target {
			best = c
		}
	}
	return best, nil
}

// forcedMinimal aggressively shrinks at minimum quality until something fits.
// When the attempt budget runs out, the last encode is accepted unconditionally
// and flagged best-effort — the only path that may return an over-budget
// result.
func (s *Session) forcedMinimal(ctx context.Context) (*Result, error) {
	for i := 0; i < fallbackAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := s.probe(s.w, s.h, 0.0)
		if err != nil {
			return nil, err
		}
		if c.sizeKB <= s.target {
			s.best = c
			return s.result(false), nil
		}
		s.w, s.h = scaleDim(s.w, 0.80), scaleDim(s.h, 0.80)
	}

	c, err := s.probe(s.w, s.h, 0.0)
	if err != nil {
		return nil, err
	}
	s.best = c
	return s.result(c.sizeKB > s.target), nil
}

// nudge tries small dimension increases to use remaining headroom. It stops
// at the first infeasible step, reverting the grow, and never regresses the
// best feasible result.
func (s *Session) nudge(ctx context.Context) error {
	for i := 0; i < maxNudges && s.target-s.best.sizeKB >= nudgeGapKB; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		nw, nh := s.clampGrow(scaleDim(s.w, 1.02), scaleDim(s.h, 1.02))
		if nw == s.w && nh == s.h {
			break
		}
		s.w, s.h = nw, nh

		c, err := s.qualitySearch(s.w, s.h)
		if err != nil {
			return err
		}
		if c == nil {
			s.w, s.h = unscaleDim(s.w, 1.02), unscaleDim(s.h, 1.02)
			break
		}
		if c.sizeKB > s.best.sizeKB {
			s.best = c
		}
	}
	return nil
}

// probe runs one encode and measures it. Encoder failures are fatal for the
// session: every later decision would depend on the missing measurement.
func (s *Session) probe(w, h int, quality float64) (*candidate, error) {
	data, err := s.enc.Encode(w, h, quality)
	if err != nil {
		return nil, fmt.Errorf("sizefit: encode %dx%d q=%.3f: %w", w, h, quality, err)
	}
	s.encodes++
	return &candidate{
		data:    data,
		sizeKB:  EstimateKB(data),
		width:   w,
		height:  h,
		quality: quality,
	}, nil
}

// clampGrow caps growth at the source resolution. Shrinking paths never pass
// through here, so the clamp only ever bites on the grow branches.
func (s *Session) clampGrow(w, h int) (int, int) {
	if w > s.origW {
		w = s.origW
	}
	if h > s.origH {
		h = s.origH
	}
	return w, h
}

// scaleDim scales a dimension and rounds half up, matching the explicit
// rounding rule the whole search relies on for reproducibility. Width and
// height round independently; slight aspect drift over many rounds is
// accepted.
func scaleDim(d int, factor float64) int {
	v := int(math.Floor(float64(d)*factor + 0.5))
	if v < 1 {
		v = 1
	}
	return v
}

func unscaleDim(d int, factor float64) int {
	v := int(math.Floor(float64(d)/factor + 0.5))
	if v < 1 {
		v = 1
	}
	return v
}
