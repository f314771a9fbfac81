package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/adapters/stt"
	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/langcode"
	"github.com/satriahrh/jurubahasa/domain/repositories"
	"github.com/satriahrh/jurubahasa/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Minimum gap between two session activity writes.
	activityInterval = time.Minute

	storeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ErrSessionInUse is returned when a session already has a live connection.
var ErrSessionInUse = errors.New("session already has a live connection")

// Hub tracks the live connection of every interpreter session.
type Hub struct {
	// Connected clients by session ID. A session has at most one.
	clients map[string]*Client

	// Sessions claimed by a join that has not registered yet.
	reserved map[string]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed once Run stops accepting clients.
	stopped chan struct{}

	// Registered clients whose teardown has not finished.
	active sync.WaitGroup

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	service *usecase.InterpreterService
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(service *usecase.InterpreterService, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		reserved:   make(map[string]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		service:    service,
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is done, after
// every client has been disconnected and its session ended.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			delete(h.reserved, client.sessionID)
			_, taken := h.clients[client.sessionID]
			if !taken {
				h.clients[client.sessionID] = client
				h.active.Add(1)
			}
			h.mu.Unlock()
			if taken {
				h.logger.Warn("Rejecting second connection", zap.String("sessionID", client.sessionID))
				client.rejected.Store(true)
				client.disconnect("session already connected")
				continue
			}
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client.sessionID] == client {
				delete(h.clients, client.sessionID)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))

		case <-ctx.Done():
			h.mu.Lock()
			for _, client := range h.clients {
				client.disconnect("server shutting down")
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			close(h.stopped)

			h.active.Wait()
			h.logger.Info("All sessions closed")
			return
		}
	}
}

// Disconnect closes the live connection of sessionID, if any, and reports
// whether there was one.
func (h *Hub) Disconnect(sessionID string) bool {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.disconnect("session ended")
	return true
}

// ActiveSessions returns the number of connected sessions.
func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Connected reports whether sessionID has a live connection.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[sessionID]
	return ok
}

// reserve claims sessionID for a join in progress. It fails when the
// session is connected or another join holds it.
func (h *Hub) reserve(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sessionID]; ok {
		return false
	}
	if _, ok := h.reserved[sessionID]; ok {
		return false
	}
	h.reserved[sessionID] = struct{}{}
	return true
}

func (h *Hub) release(sessionID string) {
	h.mu.Lock()
	delete(h.reserved, sessionID)
	h.mu.Unlock()
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the session's
// mediator. It implements usecase.Output.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Never closed; done ends the
	// writer instead.
	send chan WriteData

	done      chan struct{}
	closeOnce sync.Once

	// Set when another connection already owns the session.
	rejected atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	sessionID string
	session   *entities.InterpreterSession
	mediator  *usecase.Mediator
	validator *MessageValidator

	logger *zap.Logger

	// Server-side recognition state, owned by readPump.
	sttStreaming   repositories.SpeechToTextStreaming
	sttCancel      context.CancelFunc
	chunkCount     int
	listeningStart time.Time

	lastActivity time.Time
}

// HandleWebSocketWithAuth joins an authenticated connection to sessionID.
// Lookup failures are returned before the upgrade so the caller can answer
// with a plain HTTP error: repositories.ErrSessionNotFound,
// usecase.ErrSessionInactive or ErrSessionInUse.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	session, err := hub.service.GetSession(ctx, sessionID)
	cancel()
	if err != nil {
		return err
	}
	if session.IsExpired() {
		return usecase.ErrSessionInactive
	}
	if !hub.reserve(sessionID) {
		return ErrSessionInUse
	}
	registered := false
	defer func() {
		if !registered {
			hub.release(sessionID)
		}
	}()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	clientCtx, clientCancel := context.WithCancel(context.Background())
	client := &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan WriteData, 256),
		done:         make(chan struct{}),
		ctx:          clientCtx,
		cancel:       clientCancel,
		sessionID:    sessionID,
		session:      session,
		validator:    NewMessageValidator(),
		logger:       logger.With(zap.String("sessionID", sessionID)),
		lastActivity: time.Now(),
	}

	// The mediator outlives the HTTP request, so it gets its own context.
	mediator, err := hub.service.OpenMediator(clientCtx, session, client)
	if err != nil {
		client.logger.Error("Failed to start interpreter", zap.Error(err))
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		client.conn.WriteJSON(CreateErrorMessage(ErrorCodeSessionEnded, "Failed to start interpreter", err.Error()))
		client.conn.Close()
		clientCancel()
		return nil
	}
	client.mediator = mediator

	if !hub.registerClient(client) {
		mediator.Abort()
		client.conn.Close()
		clientCancel()
		return nil
	}
	registered = true

	client.sendJSON(client.sessionReady())

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func (c *Client) sessionReady() *SessionReadyMessage {
	pair := c.session.Languages
	return &SessionReadyMessage{
		BaseMessage: newBase(MessageTypeSessionReady),
		SessionID:   c.sessionID,
		Room:        c.session.Room,
		Languages: []LanguageInfo{
			{Code: pair.A, ProviderCode: pair.ProviderA, Name: langcode.DisplayName(pair.A)},
			{Code: pair.B, ProviderCode: pair.ProviderB, Name: langcode.DisplayName(pair.B)},
		},
		Listening: c.hub.service.Recognizer() != nil,
	}
}

// readPump pumps messages from the websocket connection to the mediator.
func (c *Client) readPump() {
	defer c.finish()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the mediator to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// finish tears the session down once the connection is gone. Pending
// utterances are dropped; the session record keeps the final counters.
func (c *Client) finish() {
	c.closeOnce.Do(func() { close(c.done) })
	c.conn.Close()

	c.endRecognition()
	if err := c.mediator.Abort(); err != nil {
		c.logger.Warn("Failed to release interpreter resources", zap.Error(err))
	}
	c.cancel()

	if c.rejected.Load() {
		return
	}
	defer c.hub.active.Done()

	stats := c.mediator.Stats()
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if _, err := c.hub.service.EndSession(ctx, c.sessionID, &stats); err != nil {
		c.logger.Error("Failed to end session", zap.Error(err))
	}

	c.hub.unregisterClient(c)
}

// disconnect asks the peer to close and drops the connection; readPump then
// runs finish.
func (c *Client) disconnect(reason string) {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(writeWait))
	c.conn.Close()
}

// enqueue blocks until the writer takes data or the connection is gone.
func (c *Client) enqueue(data WriteData) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) sendJSON(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) sendError(code, message string, seq uint64, details string) {
	errMsg := CreateErrorMessage(code, message, details)
	errMsg.UtteranceSeq = seq
	c.sendJSON(errMsg)
}

// processMessage processes control and utterance messages from the peer
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, "Invalid message", 0, err.Error())
		return
	}

	switch msg := parsed.(type) {
	case *UtteranceMessage:
		c.submit(msg.Text, entities.UtteranceSourceText)
	case *ListeningStartMessage:
		c.handleListeningStart(msg)
	case *ListeningEndMessage:
		c.handleListeningEnd()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

func (c *Client) submit(text string, source entities.UtteranceSource) (entities.Utterance, bool) {
	utterance, err := c.mediator.Submit(text, source)
	switch {
	case errors.Is(err, usecase.ErrQueueFull):
		c.sendError(ErrorCodeQueueFull, "Too many utterances waiting, utterance dropped", 0, "")
		return utterance, false
	case err != nil:
		c.sendError(ErrorCodeSessionEnded, "Session is no longer accepting utterances", 0, err.Error())
		return utterance, false
	}

	c.recordActivity()
	return utterance, true
}

// recordActivity keeps the session record alive while the conversation goes
// on, at most once per activityInterval.
func (c *Client) recordActivity() {
	if time.Since(c.lastActivity) < activityInterval {
		return
	}
	c.lastActivity = time.Now()

	ctx, cancel := context.WithTimeout(c.ctx, storeTimeout)
	defer cancel()

	err := c.hub.service.RecordActivity(ctx, c.sessionID, c.mediator.Stats())
	if errors.Is(err, usecase.ErrSessionInactive) {
		c.logger.Info("Session expired while connected, closing")
		c.sendError(ErrorCodeSessionEnded, "Session has expired", 0, "")
		go c.disconnect("session expired")
		return
	}
	if err != nil {
		c.logger.Warn("Failed to record session activity", zap.Error(err))
	}
}

// processBinaryAudioChunk feeds audio to the running recognition turn
func (c *Client) processBinaryAudioChunk(data []byte) {
	if c.sttStreaming == nil {
		c.logger.Warn("Received binary audio chunk but no recognition turn is open",
			zap.Int("size", len(data)))
		return
	}

	c.chunkCount++
	if err := c.sttStreaming.Stream(data); err != nil {
		c.logger.Error("Failed to stream audio data", zap.Error(err))
		c.endRecognition()
		c.sendError(ErrorCodeRecognition, "Speech recognition failed", 0, err.Error())
		return
	}

	c.logger.Debug("Streamed audio chunk",
		zap.Int("size", len(data)),
		zap.Int("totalChunks", c.chunkCount))
}

// handleListeningStart opens a recognition turn for both session languages
func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	recognizer := c.hub.service.Recognizer()
	if recognizer == nil {
		c.sendError(ErrorCodeRecognizerMissing, "Server-side recognition is not configured", 0, "")
		return
	}

	if c.sttStreaming != nil {
		c.logger.Warn("Discarding unfinished recognition turn", zap.Int("chunks", c.chunkCount))
		c.endRecognition()
	}

	// The recognition stream lives until listening_end, not for a fixed time.
	ctx, cancel := context.WithCancel(c.ctx)
	audioConfig := usecase.RecognitionConfig(c.session, msg.SampleRate, msg.Encoding)
	streaming, err := recognizer.InitTranscribeStreaming(ctx, audioConfig)
	if err != nil {
		cancel()
		c.logger.Error("Failed to initialize streaming transcription", zap.Error(err))
		c.sendError(ErrorCodeRecognition, "Failed to initialize transcription", 0, err.Error())
		return
	}

	c.sttStreaming = streaming
	c.sttCancel = cancel
	c.chunkCount = 0
	c.listeningStart = time.Now()

	c.logger.Info("Recognition turn started",
		zap.Int("sampleRate", audioConfig.SampleRate),
		zap.String("encoding", audioConfig.Encoding),
		zap.String("language", audioConfig.Language))
}

// handleListeningEnd closes the recognition turn and interprets its text
func (c *Client) handleListeningEnd() {
	streaming := c.sttStreaming
	if streaming == nil {
		c.sendError(ErrorCodeInvalidMessage, "No recognition turn is open", 0, "")
		return
	}

	transcription, err := streaming.End()
	chunks := c.chunkCount
	c.endRecognition()

	if errors.Is(err, stt.ErrNoAudio) || errors.Is(err, stt.ErrNoSpeech) {
		c.logger.Info("Recognition turn produced no speech", zap.Int("chunks", chunks))
		c.sendError(ErrorCodeNoSpeech, "No speech recognized", 0, "")
		return
	}
	if err != nil {
		c.logger.Error("Failed to end transcription stream", zap.Error(err))
		c.sendError(ErrorCodeRecognition, "Failed to end transcription", 0, err.Error())
		return
	}

	utterance, ok := c.submit(transcription, entities.UtteranceSourceSpeech)
	if !ok {
		return
	}

	c.logger.Info("Transcription completed",
		zap.Uint64("seq", utterance.Seq),
		zap.Int("chunks", chunks),
		zap.Duration("duration", time.Since(c.listeningStart)))

	c.sendJSON(&TranscriptionMessage{
		BaseMessage:  newBase(MessageTypeTranscription),
		SessionID:    c.sessionID,
		UtteranceSeq: utterance.Seq,
		Text:         transcription,
	})
}

func (c *Client) endRecognition() {
	if c.sttCancel != nil {
		c.sttCancel()
	}
	c.sttStreaming = nil
	c.sttCancel = nil
}

// Suppressed implements usecase.Output.
func (c *Client) Suppressed(utterance entities.Utterance, reason entities.SuppressReason) {
	c.sendJSON(&SuppressedMessage{
		BaseMessage:  newBase(MessageTypeSuppressed),
		SessionID:    c.sessionID,
		UtteranceSeq: utterance.Seq,
		Reason:       string(reason),
	})
}

// SpeakingStart implements usecase.Output.
func (c *Client) SpeakingStart(utterance entities.Utterance, translation string, audio entities.AudioSession) {
	c.sendJSON(&SpeakingStartMessage{
		BaseMessage:  newBase(MessageTypeSpeakingStart),
		SessionID:    c.sessionID,
		UtteranceSeq: utterance.Seq,
		Translation:  translation,
		Audio:        audio,
	})
}

// Audio implements usecase.Output. It blocks while the writer is behind, so
// a slow peer slows synthesis down instead of growing memory.
func (c *Client) Audio(audio entities.AudioSession, chunk []byte) {
	c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: chunk})
}

// SpeakingEnd implements usecase.Output.
func (c *Client) SpeakingEnd(utterance entities.Utterance, audio entities.AudioSession) {
	c.sendJSON(&SpeakingEndMessage{
		BaseMessage:    newBase(MessageTypeSpeakingEnd),
		SessionID:      c.sessionID,
		UtteranceSeq:   utterance.Seq,
		AudioSessionID: audio.ID,
	})
}

// SynthesisFailed implements usecase.Output.
func (c *Client) SynthesisFailed(utterance entities.Utterance, err error) {
	c.sendError(ErrorCodeSynthesisFailed, "Speech synthesis failed", utterance.Seq, err.Error())
}
