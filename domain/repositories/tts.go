package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/jurubahasa/domain/entities"
)

// TextToSpeech turns text into a stream of audio bytes.
type TextToSpeech interface {
	// Synthesize starts one synthesis call. Empty text yields an empty stream
	// without contacting the backend.
	Synthesize(ctx context.Context, text string, opts ...SynthesizeOption) (AudioStream, error)
	// Close releases the pooled connections held by the synthesizer.
	Close() error
}

// AudioStream is the single-use output of one synthesis call.
type AudioStream interface {
	// Session describes the audio carried by the stream.
	Session() entities.AudioSession
	// Chunks yields non-empty audio chunks in arrival order and is closed
	// when the body ends or fails.
	Chunks() <-chan []byte
	// Err reports a failure that happened while streaming. It is only
	// meaningful once Chunks has been closed.
	Err() error
	// Close aborts the stream and releases its connection.
	Close() error
}

// SynthesizeOptions are per-call connection options.
type SynthesizeOptions struct {
	Timeout time.Duration
}

// SynthesizeOption configures a single Synthesize call.
type SynthesizeOption func(*SynthesizeOptions)

// WithTimeout bounds the whole synthesis call, body included.
func WithTimeout(d time.Duration) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		o.Timeout = d
	}
}

// ApplySynthesizeOptions folds opts over defaults.
func ApplySynthesizeOptions(defaults SynthesizeOptions, opts ...SynthesizeOption) SynthesizeOptions {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}
