package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/repositories"
)

const defaultQueueSize = 32

var (
	// ErrQueueFull is returned by Submit when the utterance backlog is full.
	ErrQueueFull = errors.New("utterance queue is full")
	// ErrMediatorClosed is returned by Submit after Close.
	ErrMediatorClosed = errors.New("mediator is closed")
)

// Output receives everything a Mediator produces. Calls arrive from the
// mediator's own goroutines, in utterance order, and never overlap for a
// single utterance's audio.
type Output interface {
	Suppressed(utterance entities.Utterance, reason entities.SuppressReason)
	SpeakingStart(utterance entities.Utterance, translation string, audio entities.AudioSession)
	Audio(audio entities.AudioSession, chunk []byte)
	SpeakingEnd(utterance entities.Utterance, audio entities.AudioSession)
	SynthesisFailed(utterance entities.Utterance, err error)
}

// MediatorConfig tunes one Mediator.
type MediatorConfig struct {
	// QueueSize bounds the utterances waiting for translation.
	QueueSize int
	// SynthesisTimeout overrides the synthesizer's default per-call timeout.
	SynthesisTimeout time.Duration
}

type translatedUtterance struct {
	utterance   entities.Utterance
	translation string
}

// Mediator feeds utterances of one conversation through the translator and
// then the synthesizer. Each stage runs on a single goroutine, so outcomes
// and audio follow arrival order and synthesis calls never overlap.
type Mediator struct {
	sessionID  string
	translator repositories.Translator
	tts        repositories.TextToSpeech
	output     Output
	config     MediatorConfig
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan entities.Utterance
	speak  chan translatedUtterance
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	seq    uint64
	stats  entities.SessionStats
}

// NewMediator starts a mediator that owns translator and tts until Close.
func NewMediator(
	ctx context.Context,
	sessionID string,
	translator repositories.Translator,
	tts repositories.TextToSpeech,
	output Output,
	config MediatorConfig,
	logger *zap.Logger,
) *Mediator {
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Mediator{
		sessionID:  sessionID,
		translator: translator,
		tts:        tts,
		output:     output,
		config:     config,
		logger:     logger.With(zap.String("sessionID", sessionID)),
		ctx:        ctx,
		cancel:     cancel,
		queue:      make(chan entities.Utterance, config.QueueSize),
		speak:      make(chan translatedUtterance, config.QueueSize),
	}

	m.wg.Add(2)
	go m.translateLoop()
	go m.speakLoop()

	return m
}

// Submit enqueues text for interpretation without blocking.
func (m *Mediator) Submit(text string, source entities.UtteranceSource) (entities.Utterance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return entities.Utterance{}, ErrMediatorClosed
	}

	utterance := entities.Utterance{
		Seq:        m.seq + 1,
		Text:       text,
		Source:     source,
		ReceivedAt: time.Now(),
	}

	select {
	case m.queue <- utterance:
		m.seq++
		m.stats.Utterances++
		return utterance, nil
	default:
		m.logger.Warn("Utterance queue full, dropping utterance", zap.Int("queueSize", m.config.QueueSize))
		return entities.Utterance{}, ErrQueueFull
	}
}

// Stats returns a snapshot of the session counters.
func (m *Mediator) Stats() entities.SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Mediator) count(update func(*entities.SessionStats)) {
	m.mu.Lock()
	update(&m.stats)
	m.mu.Unlock()
}

func (m *Mediator) aborted() bool {
	return m.ctx.Err() != nil
}

func (m *Mediator) translateLoop() {
	defer m.wg.Done()
	defer close(m.speak)

	for utterance := range m.queue {
		if m.aborted() {
			continue
		}

		m.logger.Debug("Translating utterance",
			zap.Uint64("seq", utterance.Seq),
			zap.String("source", string(utterance.Source)),
			zap.String("text", utterance.Text))

		outcome := m.translator.Translate(m.ctx, utterance.Text)
		translation, ok := outcome.Text()
		if ok && strings.TrimSpace(translation) == "" {
			outcome = entities.Suppressed(entities.SuppressEmptyInput)
			ok = false
		}

		if !ok {
			m.count(func(s *entities.SessionStats) { s.Suppressed++ })
			if m.aborted() {
				continue
			}
			m.logger.Info("Utterance suppressed",
				zap.Uint64("seq", utterance.Seq),
				zap.String("reason", string(outcome.Reason())))
			m.output.Suppressed(utterance, outcome.Reason())
			continue
		}

		m.count(func(s *entities.SessionStats) { s.Translated++ })
		m.speak <- translatedUtterance{utterance: utterance, translation: translation}
	}
}

func (m *Mediator) speakLoop() {
	defer m.wg.Done()

	for item := range m.speak {
		if m.aborted() {
			continue
		}
		m.synthesize(item)
	}
}

func (m *Mediator) synthesize(item translatedUtterance) {
	var opts []repositories.SynthesizeOption
	if m.config.SynthesisTimeout > 0 {
		opts = append(opts, repositories.WithTimeout(m.config.SynthesisTimeout))
	}

	stream, err := m.tts.Synthesize(m.ctx, item.translation, opts...)
	if err != nil {
		m.synthesisFailed(item.utterance, err)
		return
	}
	defer stream.Close()

	audio := stream.Session()
	m.output.SpeakingStart(item.utterance, item.translation, audio)

	chunks := 0
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		chunks++
		m.output.Audio(audio, chunk)
	}

	if err := stream.Err(); err != nil {
		m.synthesisFailed(item.utterance, err)
	}
	if m.aborted() {
		return
	}

	m.logger.Debug("Utterance spoken",
		zap.Uint64("seq", item.utterance.Seq),
		zap.String("audioSessionID", audio.ID),
		zap.Int("chunks", chunks))
	m.output.SpeakingEnd(item.utterance, audio)
}

func (m *Mediator) synthesisFailed(utterance entities.Utterance, err error) {
	m.count(func(s *entities.SessionStats) { s.SynthesisFailures++ })
	if m.aborted() {
		return
	}
	m.logger.Error("Synthesis failed, skipping utterance",
		zap.Uint64("seq", utterance.Seq),
		zap.Error(err))
	m.output.SynthesisFailed(utterance, err)
}

// Close stops intake, waits for queued utterances to be spoken and releases
// the translator and synthesizer. It is safe to call more than once.
func (m *Mediator) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	m.cancel()

	return errors.Join(m.translator.Close(), m.tts.Close())
}

// Abort is Close without waiting for queued work: pending utterances are
// dropped silently and in-flight calls are canceled.
func (m *Mediator) Abort() error {
	m.cancel()
	return m.Close()
}
