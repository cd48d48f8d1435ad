package llm

import (
	"context"
	"errors"
	"time"
)

var (
	errFirstChunkTimeout = errors.New("no chunk received before first-chunk timeout")
	errIdleTimeout       = errors.New("no chunk received before idle timeout")
)

// Timeouts bounds a provider stream. A zero value disables the matching timer.
type Timeouts struct {
	// FirstChunk covers connecting plus waiting for the first content chunk.
	FirstChunk time.Duration
	// Idle is the maximum gap between two chunks once content has started.
	Idle time.Duration
}

// StreamWithTimeouts opens a stream on p and guards it with t.
//
// Failures are normalized: anything before the first content chunk is
// ErrProviderUnavailable, anything after is ErrStreamInterrupted, and an
// iterator that ends without a done marker counts as interrupted. Rate limit
// and unsupported model errors pass through. Cancellation of ctx is reported
// as ctx's cause.
func StreamWithTimeouts(ctx context.Context, p Provider, request StreamRequest, t Timeouts, opts ...Option) (*ChatStream, error) {
	streamCtx, cancel := context.WithCancelCause(ctx)

	var timer *time.Timer
	arm := func(d time.Duration, cause error) {
		if timer != nil {
			timer.Stop()
		}
		if d <= 0 {
			timer = nil
			return
		}
		timer = time.AfterFunc(d, func() { cancel(cause) })
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	arm(t.FirstChunk, errFirstChunkTimeout)

	stream, err := p.Stream(streamCtx, request, opts...)
	if err != nil {
		disarm()
		err = normalize(streamCtx, ctx, p.ID(), false, err)
		cancel(nil)
		return nil, err
	}

	return NewChatStream(func(yield func(StreamEvent, error) bool) {
		defer cancel(nil)
		defer disarm()

		sawContent := false
		for event, err := range stream.Iter() {
			disarm()
			if err != nil {
				yield(StreamEvent{}, normalize(streamCtx, ctx, p.ID(), sawContent, err))
				return
			}

			if !yield(event, nil) {
				return
			}
			if event.Type == StreamEventDone {
				return
			}
			if event.Type == StreamEventContent {
				sawContent = true
			}

			if sawContent {
				arm(t.Idle, errIdleTimeout)
			} else {
				arm(t.FirstChunk, errFirstChunkTimeout)
			}
		}

		yield(StreamEvent{}, normalize(streamCtx, ctx, p.ID(), sawContent, errors.New("stream ended without end marker")))
	}), nil
}

func normalize(streamCtx, parent context.Context, id ProviderID, sawContent bool, err error) error {
	if parent.Err() != nil {
		return context.Cause(parent)
	}

	switch cause := context.Cause(streamCtx); {
	case errors.Is(cause, errFirstChunkTimeout):
		return Unavailable(id, cause)
	case errors.Is(cause, errIdleTimeout):
		return Interrupted(id, cause)
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnsupportedModel) {
		return err
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	if sawContent {
		return Interrupted(id, err)
	}
	return Unavailable(id, err)
}
