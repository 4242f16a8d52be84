package sizefit

import (
	"context"
	"fmt"
	"sync"
)

// Session is one complete run of the search for one surface and one target.
// Sessions are single-use and not safe for concurrent sharing; independent
// sessions may run concurrently as long as each owns its surface exclusively.
type Session struct {
	enc    Encoder
	target int

	origW, origH int
	w, h         int

	rounds  int
	encodes int
	best    *candidate

	events  chan Event
	lastPct int
	once    sync.Once
}

// candidate is one encoded probe. Discarded unless it becomes the session's
// best known feasible result.
type candidate struct {
	data    []byte
	sizeKB  int
	width   int
	height  int
	quality float64
}

// NewSession validates the request and prepares a session. The encoder is
// probed lazily; a nil encoder is the only precondition failure detected here.
func NewSession(enc Encoder, req Request) (*Session, error) {
	if enc == nil {
		return nil, ErrEncoderUnavailable
	}
	if req.TargetKB <= 0 {
		return nil, fmt.Errorf("%w: target %dKB", ErrInvalidRequest, req.TargetKB)
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidRequest, req.Width, req.Height)
	}
	return &Session{
		enc:    enc,
		target: req.TargetKB,
		origW:  req.Width,
		origH:  req.Height,
		w:      req.Width,
		h:      req.Height,
		// One event per round plus the terminal event; the channel is sized
		// so the search never blocks on a slow consumer.
		events: make(chan Event, maxRounds+2),
	}, nil
}

// Run starts the search and returns its event stream. The stream carries zero
// or more progress events followed by exactly one terminal event, then closes.
// Cancellation via ctx takes effect at the next round boundary; an in-flight
// encode is not interrupted.
func (s *Session) Run(ctx context.Context) <-chan Event {
	s.once.Do(func() {
		go func() {
			defer close(s.events)
			res, err := s.runRecovered(ctx)
			if err != nil {
				s.events <- Event{Percent: s.lastPct, Err: err}
				return
			}
			s.lastPct = 100
			s.events <- Event{Percent: 100, Result: res}
		}()
	})
	return s.events
}

// runRecovered resolves every failure at the session boundary: a panicking
// encoder surfaces as a generic session error, never as an unhandled crash.
func (s *Session) runRecovered(ctx context.Context) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	return s.run(ctx)
}

// Fit runs a whole session synchronously and returns its terminal result.
func Fit(ctx context.Context, enc Encoder, req Request) (*Result, error) {
	s, err := NewSession(enc, req)
	if err != nil {
		return nil, err
	}
	return FitWithProgress(ctx, s, nil)
}

// FitWithProgress drains a session's event stream, forwarding intermediate
// progress to fn when it is non-nil, and returns the terminal outcome.
func FitWithProgress(ctx context.Context, s *Session, fn func(percent int)) (*Result, error) {
	var last Event
	for ev := range s.Run(ctx) {
		last = ev
		if fn != nil && ev.Result == nil && ev.Err == nil {
			fn(ev.Percent)
		}
	}
	if last.Err != nil {
		return nil, last.Err
	}
	if last.Result == nil {
		return nil, fmt.Errorf("%w: session ended without a terminal event", ErrInternal)
	}
	return last.Result, nil
}

// reportRound emits the round/maxRounds progress fraction. Intermediate
// events are capped below 100 so the terminal event is the only one that
// reports completion.
func (s *Session) reportRound() {
	pct := s.rounds * 100 / maxRounds
	if pct > 99 {
		pct = 99
	}
	if pct < s.lastPct {
		return
	}
	s.lastPct = pct
	s.events <- Event{Percent: pct}
}

func (s *Session) result(bestEffort bool) *Result {
	return &Result{
		Data:        s.best.data,
		SizeKB:      s.best.sizeKB,
		Width:       s.best.width,
		Height:      s.best.height,
		Quality:     s.best.quality,
		BestEffort:  bestEffort,
		Rounds:      s.rounds,
		EncodeCalls: s.encodes,
	}
}
