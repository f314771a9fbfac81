package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/langcode"
	"github.com/satriahrh/jurubahasa/domain/repositories"
)

// ErrNoAudio is returned when a stream ends before any audio was sent.
var ErrNoAudio = errors.New("no audio data received")

// ErrNoSpeech is returned when the recognizer heard nothing it could transcribe.
var ErrNoSpeech = errors.New("no speech detected in audio")

// GoogleSpeechToText implements SpeechToText for Google Cloud. The primary
// language and its alternatives are recognized in the same stream, so either
// side of an interpreted conversation can be transcribed.
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a client using Application Default Credentials.
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// recognitionConfig builds the Google recognition settings for config.
func recognitionConfig(config repositories.AudioConfig) (*speechpb.RecognitionConfig, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	alternatives := make([]string, 0, len(config.AlternativeLanguages))
	for _, lang := range config.AlternativeLanguages {
		if strings.TrimSpace(lang) == "" {
			continue
		}
		alternatives = append(alternatives, langcode.RecognitionCode(lang))
	}

	return &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		SampleRateHertz:            int32(config.SampleRate),
		LanguageCode:               langcode.RecognitionCode(config.Language),
		AlternativeLanguageCodes:   alternatives,
		EnableAutomaticPunctuation: true,
	}, nil
}

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	recognition, err := recognitionConfig(config)
	if err != nil {
		return nil, err
	}

	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:          recognition,
				InterimResults:  false, // We only want final results
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.logger.Debug("Google streaming recognition started",
		zap.String("language", recognition.LanguageCode),
		zap.Strings("alternatives", recognition.AlternativeLanguageCodes),
		zap.Int32("sampleRate", recognition.SampleRateHertz))

	s := &GoogleSpeechToTextStream{
		stream: stream,
		ctx:    ctx,
		result: make(chan recognitionResult, 1),
	}
	go s.receiveResults()

	return s, nil
}

type recognitionResult struct {
	transcript string
	err        error
}

// GoogleSpeechToTextStream is one streaming recognition call.
type GoogleSpeechToTextStream struct {
	stream speechpb.Speech_StreamingRecognizeClient
	ctx    context.Context
	result chan recognitionResult

	mu            sync.Mutex
	audioReceived bool
	ended         bool
}

func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended {
		return errors.New("stream already ended")
	}
	g.audioReceived = true

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (g *GoogleSpeechToTextStream) End() (string, error) {
	g.mu.Lock()
	if g.ended {
		g.mu.Unlock()
		return "", errors.New("stream already ended")
	}
	g.ended = true
	audioReceived := g.audioReceived
	g.mu.Unlock()

	if err := g.stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	if !audioReceived {
		return "", ErrNoAudio
	}

	select {
	case <-g.ctx.Done():
		return "", fmt.Errorf("context cancelled while waiting for result: %w", g.ctx.Err())
	case res := <-g.result:
		if res.err != nil {
			return "", res.err
		}
		if strings.TrimSpace(res.transcript) == "" {
			return "", ErrNoSpeech
		}
		return res.transcript, nil
	}
}

func (g *GoogleSpeechToTextStream) receiveResults() {
	var parts []string

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			g.result <- recognitionResult{transcript: strings.Join(parts, " ")}
			return
		}
		if err != nil {
			g.result <- recognitionResult{err: fmt.Errorf("failed to receive response: %w", err)}
			return
		}

		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
			}
		}
	}
}

// TranscribeAudio converts audio data to text using one streaming call.
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	stream, err := g.InitTranscribeStreaming(ctx, config)
	if err != nil {
		return "", fmt.Errorf("failed to initialize streaming: %w", err)
	}

	if err := stream.Stream(audioData); err != nil {
		return "", fmt.Errorf("failed to stream audio data: %w", err)
	}

	return stream.End()
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}
