package entities

import "time"

// AudioSession describes the audio produced by one synthesis call.
type AudioSession struct {
	ID          string `json:"audio_session_id"`
	SampleRate  int    `json:"sample_rate"`
	NumChannels int    `json:"num_channels"`
	MimeType    string `json:"mime_type"`
}

// UtteranceSource tells where the recognized text came from.
type UtteranceSource string

const (
	// UtteranceSourceText is text recognized by the client and sent as is.
	UtteranceSourceText UtteranceSource = "text"
	// UtteranceSourceSpeech is text recognized on the server from streamed audio.
	UtteranceSourceSpeech UtteranceSource = "speech"
)

// Utterance is one unit of recognized speech. It lives only while it is
// being translated and voiced and is never persisted.
type Utterance struct {
	Seq        uint64          `json:"utterance_seq"`
	Text       string          `json:"-"`
	Source     UtteranceSource `json:"source"`
	ReceivedAt time.Time       `json:"received_at"`
}
