package eventlog

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// JSONLSink writes entries as newline-delimited JSON. Transform, when set,
// rewrites each entry before encoding (the platform adapter uses it to map
// tokens to external player ids).
type JSONLSink struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	Transform func(Entry) Entry
}

// NewJSONLSink constructs a sink writing to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	return &JSONLSink{writer: buf, encoder: json.NewEncoder(buf)}
}

// Write encodes one entry as a JSON line.
func (s *JSONLSink) Write(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Transform != nil {
		entry = s.Transform(entry)
	}
	return s.encoder.Encode(entry)
}

// Drain consumes the subscriber's stream until it is closed, writing every
// entry. It returns the first write error, after the stream has been fully
// consumed so the log side is never blocked.
func (s *JSONLSink) Drain(sub *Subscriber) error {
	var firstErr error
	for entry := range sub.Events() {
		if err := s.Write(entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes buffered output.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Flush()
}
