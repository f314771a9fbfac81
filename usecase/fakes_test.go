package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/langcode"
	"github.com/satriahrh/jurubahasa/domain/repositories"
)

// fakeTranslator upper-cases text unless an outcome is scripted for it.
type fakeTranslator struct {
	mu       sync.Mutex
	scripted map[string]entities.TranslationOutcome
	calls    []string
	started  chan string
	release  chan struct{}
	closed   atomic.Bool
}

func newFakeTranslator() *fakeTranslator {
	return &fakeTranslator{scripted: make(map[string]entities.TranslationOutcome)}
}

func (f *fakeTranslator) Translate(ctx context.Context, text string) entities.TranslationOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	outcome, scripted := f.scripted[text]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- text
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return entities.Suppressed(entities.SuppressCanceled)
		}
	}

	if scripted {
		return outcome
	}
	return entities.Translated(strings.ToUpper(text))
}

func (f *fakeTranslator) Pair() langcode.Pair {
	pair, _ := langcode.NewPair("en", "fr")
	return pair
}

func (f *fakeTranslator) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeTranslator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeTTS streams the text back as two chunks. Texts listed in failOn fail
// before streaming; texts in breakOn fail after the first chunk.
type fakeTTS struct {
	failOn  map[string]error
	breakOn map[string]error

	mu        sync.Mutex
	texts     []string
	active    int32
	maxActive int32
	closed    atomic.Bool
}

func newFakeTTS() *fakeTTS {
	return &fakeTTS{failOn: map[string]error{}, breakOn: map[string]error{}}
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string, opts ...repositories.SynthesizeOption) (repositories.AudioStream, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if err, ok := f.failOn[text]; ok {
		return nil, err
	}

	active := atomic.AddInt32(&f.active, 1)
	for {
		max := atomic.LoadInt32(&f.maxActive)
		if active <= max || atomic.CompareAndSwapInt32(&f.maxActive, max, active) {
			break
		}
	}

	stream := &fakeStream{
		session: entities.AudioSession{ID: "audio-" + text, SampleRate: 44100, NumChannels: 1, MimeType: "audio/mpeg"},
		chunks:  make(chan []byte, 2),
		onClose: func() { atomic.AddInt32(&f.active, -1) },
	}
	stream.chunks <- []byte(text[:len(text)/2])
	if err, ok := f.breakOn[text]; ok {
		stream.err = err
	} else {
		stream.chunks <- []byte(text[len(text)/2:])
	}
	close(stream.chunks)
	return stream, nil
}

func (f *fakeTTS) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeTTS) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeStream struct {
	session entities.AudioSession
	chunks  chan []byte
	err     error
	once    sync.Once
	onClose func()
}

func (s *fakeStream) Session() entities.AudioSession { return s.session }
func (s *fakeStream) Chunks() <-chan []byte          { return s.chunks }
func (s *fakeStream) Err() error                     { return s.err }
func (s *fakeStream) Close() error {
	s.once.Do(s.onClose)
	return nil
}

// recordingOutput logs every call as a short string.
type recordingOutput struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingOutput) record(event string) {
	o.mu.Lock()
	o.events = append(o.events, event)
	o.mu.Unlock()
}

func (o *recordingOutput) Suppressed(u entities.Utterance, reason entities.SuppressReason) {
	o.record(fmt.Sprintf("suppressed:%d:%s", u.Seq, reason))
}

func (o *recordingOutput) SpeakingStart(u entities.Utterance, translation string, audio entities.AudioSession) {
	o.record(fmt.Sprintf("start:%d:%s", u.Seq, translation))
}

func (o *recordingOutput) Audio(audio entities.AudioSession, chunk []byte) {
	o.record(fmt.Sprintf("audio:%s:%s", audio.ID, chunk))
}

func (o *recordingOutput) SpeakingEnd(u entities.Utterance, audio entities.AudioSession) {
	o.record(fmt.Sprintf("end:%d", u.Seq))
}

func (o *recordingOutput) SynthesisFailed(u entities.Utterance, err error) {
	o.record(fmt.Sprintf("failed:%d", u.Seq))
}

func (o *recordingOutput) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

// waitForEvents polls until output has recorded n events.
func waitForEvents(t *testing.T, o *recordingOutput, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := o.Events(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %v", n, o.Events())
	return nil
}
