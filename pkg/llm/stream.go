package llm

import (
	"iter"
	"strings"
)

// StreamEventType identifies the kind of event carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventContent carries one text chunk.
	StreamEventContent StreamEventType = "content"
	// StreamEventDone is the explicit end-of-stream marker.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent is a single item yielded by a ChatStream.
type StreamEvent struct {
	Type         StreamEventType
	Content      string
	FinishReason string
}

// ChatStream wraps a lazy provider iterator. It is not restartable: ranging it
// twice does not issue a second provider call.
//
// Callers must consume the stream (or break out of the loop) so the adapter can
// release the upstream connection.
type ChatStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

func NewChatStream(iterator iter.Seq2[StreamEvent, error]) *ChatStream {
	return &ChatStream{iterator: iterator}
}

// Iter returns the underlying iterator for range-over-func loops.
func (s *ChatStream) Iter() iter.Seq2[StreamEvent, error] {
	return s.iterator
}

// Collect drains the stream and concatenates its content chunks. A stream that
// ends without a done marker is reported as interrupted.
func (s *ChatStream) Collect() (string, error) {
	var sb strings.Builder
	for event, err := range s.iterator {
		if err != nil {
			return sb.String(), err
		}
		switch event.Type {
		case StreamEventContent:
			sb.WriteString(event.Content)
		case StreamEventDone:
			return sb.String(), nil
		}
	}
	return sb.String(), ErrStreamInterrupted
}

// ChunksStream builds a stream that yields the given chunks then a done marker.
// Useful for non-streaming fallbacks and tests.
func ChunksStream(chunks ...string) *ChatStream {
	return NewChatStream(func(yield func(StreamEvent, error) bool) {
		for _, c := range chunks {
			if !yield(StreamEvent{Type: StreamEventContent, Content: c}, nil) {
				return
			}
		}
		yield(StreamEvent{Type: StreamEventDone, FinishReason: "stop"}, nil)
	})
}
