package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/satriahrh/jurubahasa/adapters/translation"
	"github.com/satriahrh/jurubahasa/adapters/tts"
	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/langcode"
	"github.com/satriahrh/jurubahasa/domain/repositories"
	"github.com/satriahrh/jurubahasa/internal/config"
	"github.com/satriahrh/jurubahasa/usecase"
)

const queueRetryDelay = 50 * time.Millisecond

var translateCmd = &cobra.Command{
	Use:   "translate [text]",
	Short: "Translate text into the other language of a pair",
	Long: `Translate text into the other language of a pair.

The source language is detected; text in either language of the pair is
translated into the other one. Suppressed utterances print their reason.

Examples:
  jurubahasa translate --languages en,fr "Where is the station?"
  jurubahasa translate --lang1 ja --lang2 en "駅はどこですか"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang1, lang2, err := pairFlags(cmd)
		if err != nil {
			return err
		}

		translator, err := translation.NewDeepLTranslator(translation.NewDeepLConfigFromEnv(logger), lang1, lang2, logger)
		if err != nil {
			return err
		}
		defer translator.Close()

		outcome := translator.Translate(cmd.Context(), strings.Join(args, " "))
		if text, ok := outcome.Text(); ok {
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[suppressed: %s]\n", outcome.Reason())
		return nil
	},
}

var speakCmd = &cobra.Command{
	Use:   "speak [text]",
	Short: "Synthesize text into an audio file",
	Long: `Synthesize text into an audio file with the configured voice.

Set TTS_PROVIDER=mock to write placeholder PCM without an ElevenLabs key.

Examples:
  jurubahasa speak -o hello.mp3 "Bonjour tout le monde"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return fmt.Errorf("failed to read 'output' flag: %w", err)
		}

		synthesizer, err := newSynthesizer()
		if err != nil {
			return err
		}
		defer synthesizer.Close()

		stream, err := synthesizer.Synthesize(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		defer stream.Close()

		session := stream.Session()
		if output == "" {
			output = "speech" + audioExtension(session.MimeType)
		}

		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()

		total := 0
		for chunk := range stream.Chunks() {
			n, err := file.Write(chunk)
			if err != nil {
				return fmt.Errorf("failed to write audio: %w", err)
			}
			total += n
		}
		if err := stream.Err(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes of %s to %s (audio session %s)\n",
			total, session.MimeType, output, session.ID)
		return nil
	},
}

var interpretCmd = &cobra.Command{
	Use:   "interpret",
	Short: "Interpret lines from stdin into audio files",
	Long: `Run the interpreter loop over lines read from stdin.

Every non-empty line is one utterance. Its translation is printed and its
audio written to <dir>/utterance-<seq>.<ext>. Lines are voiced strictly in
input order.

Examples:
  jurubahasa interpret --languages en,fr -d out < conversation.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lang1, lang2, err := pairFlags(cmd)
		if err != nil {
			return err
		}
		dir, err := cmd.Flags().GetString("dir")
		if err != nil {
			return fmt.Errorf("failed to read 'dir' flag: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		translator, err := translation.NewDeepLTranslator(translation.NewDeepLConfigFromEnv(logger), lang1, lang2, logger)
		if err != nil {
			return err
		}
		synthesizer, err := newSynthesizer()
		if err != nil {
			translator.Close()
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		output := newFileOutput(dir, cmd.OutOrStdout())
		mediator := usecase.NewMediator(ctx, "cli", translator, synthesizer, output, usecase.MediatorConfig{}, logger)

		if err := feedLines(cmd.InOrStdin(), mediator); err != nil {
			mediator.Abort()
			return err
		}

		if err := mediator.Close(); err != nil {
			return err
		}

		stats := mediator.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "%d utterances: %d translated, %d suppressed, %d synthesis failures\n",
			stats.Utterances, stats.Translated, stats.Suppressed, stats.SynthesisFailures)
		return output.err()
	},
}

func init() {
	for _, cmd := range []*cobra.Command{translateCmd, interpretCmd} {
		cmd.Flags().String("lang1", "", "first language of the pair")
		cmd.Flags().String("lang2", "", "second language of the pair")
		cmd.Flags().String("languages", "", `pair as "lang1,lang2"`)
	}
	speakCmd.Flags().StringP("output", "o", "", "output file (default speech.<ext>)")
	interpretCmd.Flags().StringP("dir", "d", ".", "directory for utterance audio files")
}

// pairFlags returns the language pair from --lang1/--lang2 or --languages.
func pairFlags(cmd *cobra.Command) (string, string, error) {
	lang1, _ := cmd.Flags().GetString("lang1")
	lang2, _ := cmd.Flags().GetString("lang2")
	if lang1 != "" || lang2 != "" {
		if lang1 == "" || lang2 == "" {
			return "", "", errors.New("both --lang1 and --lang2 are required")
		}
		return lang1, lang2, nil
	}

	languages, _ := cmd.Flags().GetString("languages")
	pair, err := langcode.ParsePair(languages)
	if err != nil {
		return "", "", err
	}
	return pair.A, pair.B, nil
}

// newSynthesizer builds the synthesizer named by TTS_PROVIDER.
func newSynthesizer() (repositories.TextToSpeech, error) {
	if config.SynthesisProvider(logger) == "mock" {
		return tts.NewMockTextToSpeech(logger), nil
	}
	synthesizer, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(logger), logger)
	if err != nil {
		return nil, err
	}
	return synthesizer, nil
}

// feedLines submits every non-empty line, waiting for room when the queue
// is full.
func feedLines(r io.Reader, mediator *usecase.Mediator) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for {
			_, err := mediator.Submit(line, entities.UtteranceSourceText)
			if errors.Is(err, usecase.ErrQueueFull) {
				time.Sleep(queueRetryDelay)
				continue
			}
			if err != nil {
				return err
			}
			break
		}
	}
	return scanner.Err()
}

func audioExtension(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/pcm":
		return ".pcm"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}

// fileOutput writes each utterance's audio to its own file.
type fileOutput struct {
	dir string
	out io.Writer

	mu      sync.Mutex
	file    *os.File
	lastErr error
}

var _ usecase.Output = (*fileOutput)(nil)

func newFileOutput(dir string, out io.Writer) *fileOutput {
	return &fileOutput{dir: dir, out: out}
}

func (o *fileOutput) Suppressed(utterance entities.Utterance, reason entities.SuppressReason) {
	fmt.Fprintf(o.out, "#%d [suppressed: %s]\n", utterance.Seq, reason)
}

func (o *fileOutput) SpeakingStart(utterance entities.Utterance, translation string, audio entities.AudioSession) {
	o.mu.Lock()
	defer o.mu.Unlock()

	name := filepath.Join(o.dir, fmt.Sprintf("utterance-%d%s", utterance.Seq, audioExtension(audio.MimeType)))
	file, err := os.Create(name)
	if err != nil {
		o.lastErr = err
		return
	}
	o.file = file
	fmt.Fprintf(o.out, "#%d %s -> %s\n", utterance.Seq, translation, name)
}

func (o *fileOutput) Audio(audio entities.AudioSession, chunk []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		return
	}
	if _, err := o.file.Write(chunk); err != nil {
		o.lastErr = err
	}
}

func (o *fileOutput) SpeakingEnd(utterance entities.Utterance, audio entities.AudioSession) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file != nil {
		if err := o.file.Close(); err != nil {
			o.lastErr = err
		}
		o.file = nil
	}
}

func (o *fileOutput) SynthesisFailed(utterance entities.Utterance, err error) {
	fmt.Fprintf(o.out, "#%d [synthesis failed: %v]\n", utterance.Seq, err)
}

func (o *fileOutput) err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}
