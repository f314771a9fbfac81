package tts

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestMockTextToSpeech_Synthesize(t *testing.T) {
	tts := NewMockTextToSpeech(zaptest.NewLogger(t))
	defer tts.Close()

	text := "Bonjour tout le monde, comment allez-vous aujourd'hui?"
	stream, err := tts.Synthesize(context.Background(), text)
	if err != nil {
		t.Fatalf("Synthesize unexpected error: %v", err)
	}
	defer stream.Close()

	session := stream.Session()
	if session.ID == "" {
		t.Error("Expected an audio session ID")
	}
	if session.MimeType != "audio/pcm" || session.SampleRate != mockSampleRate {
		t.Errorf("Unexpected session %+v", session)
	}

	var total, chunks int
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 || len(chunk) > defaultChunkSize {
			t.Errorf("Unexpected chunk size %d", len(chunk))
		}
		if chunk[0] != byte(total%256) {
			t.Errorf("Chunk %d does not continue the pattern", chunks)
		}
		total += len(chunk)
		chunks++
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Unexpected stream error: %v", err)
	}
	if want := len(text) * mockBytesPerChar; total != want {
		t.Errorf("Expected %d bytes, got %d", want, total)
	}
	if chunks < 2 {
		t.Errorf("Expected audio split into chunks, got %d", chunks)
	}
}

func TestMockTextToSpeech_EmptyText(t *testing.T) {
	tts := NewMockTextToSpeech(zaptest.NewLogger(t))

	stream, err := tts.Synthesize(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Synthesize unexpected error: %v", err)
	}
	if _, ok := <-stream.Chunks(); ok {
		t.Error("Expected no audio for empty text")
	}
	if stream.Session().ID == "" {
		t.Error("Expected a session even without audio")
	}
}

func TestMockTextToSpeech_DistinctSessions(t *testing.T) {
	tts := NewMockTextToSpeech(zaptest.NewLogger(t))

	first, _ := tts.Synthesize(context.Background(), "one")
	second, _ := tts.Synthesize(context.Background(), "two")
	if first.Session().ID == second.Session().ID {
		t.Error("Expected a fresh audio session per synthesis")
	}
}
