package kafka

import (
	"context"
	"log/slog"
	"sync"

	kafkago "github.com/segmentio/kafka-go"
)

// RecordingWriter captures written messages in memory.
type RecordingWriter struct {
	mu       sync.Mutex
	Messages []kafkago.Message
	Err      error
	Closed   bool
}

func (w *RecordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *RecordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Closed = true
	return nil
}

// NewTestPublisher returns a Publisher writing to w.
func NewTestPublisher(w *RecordingWriter, topic string) *Publisher {
	return newPublisher(w, topic, slog.New(slog.DiscardHandler))
}
