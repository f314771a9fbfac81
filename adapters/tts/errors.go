package tts

import "fmt"

// SynthesisStatusError is returned when the synthesis backend answers with a
// non-2xx status.
type SynthesisStatusError struct {
	StatusCode int
	Body       string
}

func (e *SynthesisStatusError) Error() string {
	return fmt.Sprintf("elevenlabs synthesis request failed with status %d: %s", e.StatusCode, e.Body)
}

// SynthesisConnectionError wraps a transport failure: dial, DNS, timeout or
// a body that stopped mid-stream.
type SynthesisConnectionError struct {
	Err error
}

func (e *SynthesisConnectionError) Error() string {
	return fmt.Sprintf("failed to reach elevenlabs synthesis service: %v", e.Err)
}

func (e *SynthesisConnectionError) Unwrap() error {
	return e.Err
}
