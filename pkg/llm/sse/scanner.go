package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxLineSize is the maximum size of a single SSE line (1 MB). The
// bufio.Scanner default of 64 KiB is too small for long completions.
const maxLineSize = 1 * 1024 * 1024

// Event is one dispatched SSE event.
type Event struct {
	Name string
	Data string
}

// Scanner reads Server-Sent Events from an io.Reader. Comment lines are
// skipped and consecutive data lines are joined with newlines.
type Scanner struct {
	scanner *bufio.Scanner
}

func NewScanner(reader io.Reader) *Scanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Scanner{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the reader is exhausted
// or the OpenAI-style [DONE] sentinel is seen.
func (s *Scanner) Next() (Event, error) {
	var (
		name      string
		dataLines []string
	)

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 {
				return Event{Name: name, Data: strings.Join(dataLines, "\n")}, nil
			}
			name = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			name = value
		case "data":
			if strings.TrimSpace(value) == "[DONE]" {
				return Event{}, io.EOF
			}
			dataLines = append(dataLines, value)
		}
	}

	if err := s.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("sse scanner: %w", err)
	}

	if len(dataLines) > 0 {
		return Event{Name: name, Data: strings.Join(dataLines, "\n")}, nil
	}
	return Event{}, io.EOF
}
