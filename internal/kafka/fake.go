package kafka

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
)

// FakeWriter records written messages for test assertions.
type FakeWriter struct {
	Messages []kafkago.Message

	// WriteError, if set, will be returned by WriteMessages.
	WriteError error

	Closed bool
}

// WriteMessages records msgs.
func (f *FakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Messages = append(f.Messages, msgs...)
	return nil
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}
