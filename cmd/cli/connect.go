package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/internal/api"
	ws "github.com/satriahrh/jurubahasa/internal/websocket"
)

const audioChunkSize = 3200 // 100ms of 16kHz LINEAR16

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Join a running server as an interpreter client",
	Long: `Start a session on a running server and talk to it over WebSocket.

Lines read from stdin are sent as utterances. With --audio, a raw audio file
is streamed first for server-side recognition. Received audio is written to
<dir>/utterance-<seq>.<ext>. The command exits once the server has been quiet
for --idle after the input ends.

Examples:
  echo "Good morning" | jurubahasa connect --languages en,fr -d out
  jurubahasa connect --languages en,ja --audio hello.raw --sample-rate 16000 < /dev/null`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lang1, lang2, err := pairFlags(cmd)
		if err != nil {
			return err
		}
		server, _ := cmd.Flags().GetString("server")
		room, _ := cmd.Flags().GetString("room")
		dir, _ := cmd.Flags().GetString("dir")
		audioPath, _ := cmd.Flags().GetString("audio")
		sampleRate, _ := cmd.Flags().GetInt("sample-rate")
		idle, _ := cmd.Flags().GetDuration("idle")

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		session, err := startSession(server, room, lang1, lang2)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s started (%s)\n", session.SessionID, session.Languages)

		wsURL, err := websocketURL(server, session.WebSocketURL)
		if err != nil {
			return err
		}
		headers := http.Header{}
		headers.Add("Authorization", "Bearer "+session.Token)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, headers)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer conn.Close()

		client := &interpreterClient{output: newFileOutput(dir, cmd.OutOrStdout()), out: cmd.OutOrStdout()}
		client.touch()
		done := make(chan struct{})
		go client.readLoop(conn, done)

		if audioPath != "" {
			if err := streamAudioFile(conn, audioPath, sampleRate); err != nil {
				return err
			}
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := sendJSON(conn, ws.UtteranceMessage{
				BaseMessage: ws.BaseMessage{Type: ws.MessageTypeUtterance},
				Text:        line,
			}); err != nil {
				return err
			}
			client.touch()
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		client.waitIdle(idle, done)

		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return client.output.err()
	},
}

func init() {
	connectCmd.Flags().String("lang1", "", "first language of the pair")
	connectCmd.Flags().String("lang2", "", "second language of the pair")
	connectCmd.Flags().String("languages", "", `pair as "lang1,lang2"`)
	connectCmd.Flags().String("server", "http://localhost:8080", "server base URL")
	connectCmd.Flags().String("room", "cli", "room name")
	connectCmd.Flags().StringP("dir", "d", ".", "directory for utterance audio files")
	connectCmd.Flags().String("audio", "", "raw audio file to stream for server-side recognition")
	connectCmd.Flags().Int("sample-rate", 16000, "sample rate of --audio")
	connectCmd.Flags().Duration("idle", 5*time.Second, "quiet period that ends the session")
	rootCmd.AddCommand(connectCmd)
}

func startSession(server, room, lang1, lang2 string) (*api.CreateSessionResponse, error) {
	body, err := json.Marshal(api.CreateSessionRequest{RoomName: room, Lang1: lang1, Lang2: lang2})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(strings.TrimRight(server, "/")+"/api/v1/interpreter/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("session start failed: %s: %s", apiErr.Error, apiErr.Message)
		}
		return nil, fmt.Errorf("session start failed with status %d", resp.StatusCode)
	}

	var session api.CreateSessionResponse
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// websocketURL resolves path against server with the matching ws scheme.
func websocketURL(server, path string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = path
	return u.String(), nil
}

func streamAudioFile(conn *websocket.Conn, path string, sampleRate int) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	if err := sendJSON(conn, ws.ListeningStartMessage{
		BaseMessage: ws.BaseMessage{Type: ws.MessageTypeListeningStart},
		SampleRate:  sampleRate,
		Encoding:    "LINEAR16",
	}); err != nil {
		return err
	}

	for start := 0; start < len(audio); start += audioChunkSize {
		end := min(start+audioChunkSize, len(audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[start:end]); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	return sendJSON(conn, ws.ListeningEndMessage{BaseMessage: ws.BaseMessage{Type: ws.MessageTypeListeningEnd}})
}

func sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// interpreterClient replays server events onto a fileOutput.
type interpreterClient struct {
	output   *fileOutput
	out      io.Writer
	lastSeen atomic.Int64
	current  entities.AudioSession
}

func (c *interpreterClient) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// waitIdle returns once nothing was received for idle, or the connection ends.
func (c *interpreterClient) waitIdle(idle time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(idle / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, c.lastSeen.Load())) >= idle {
				return
			}
		}
	}
}

func (c *interpreterClient) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				fmt.Fprintln(c.out, "read:", err)
			}
			return
		}
		c.touch()

		if messageType == websocket.BinaryMessage {
			c.output.Audio(c.current, data)
			continue
		}
		if err := c.handle(data); err != nil {
			fmt.Fprintln(c.out, "invalid server message:", err)
		}
	}
}

func (c *interpreterClient) handle(data []byte) error {
	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	switch base.Type {
	case ws.MessageTypeSessionReady:
		var msg ws.SessionReadyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		names := make([]string, len(msg.Languages))
		for i, lang := range msg.Languages {
			names[i] = lang.Name
		}
		fmt.Fprintf(c.out, "Connected: %s\n", strings.Join(names, " <-> "))

	case ws.MessageTypeTranscription:
		var msg ws.TranscriptionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "#%d heard: %s\n", msg.UtteranceSeq, msg.Text)

	case ws.MessageTypeSuppressed:
		var msg ws.SuppressedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		c.output.Suppressed(entities.Utterance{Seq: msg.UtteranceSeq}, entities.SuppressReason(msg.Reason))

	case ws.MessageTypeSpeakingStart:
		var msg ws.SpeakingStartMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		c.current = msg.Audio
		c.output.SpeakingStart(entities.Utterance{Seq: msg.UtteranceSeq}, msg.Translation, msg.Audio)

	case ws.MessageTypeSpeakingEnd:
		var msg ws.SpeakingEndMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		c.output.SpeakingEnd(entities.Utterance{Seq: msg.UtteranceSeq}, c.current)

	case ws.MessageTypeError:
		var msg ws.ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		if msg.Code == ws.ErrorCodeSynthesisFailed {
			c.output.SynthesisFailed(entities.Utterance{Seq: msg.UtteranceSeq}, errors.New(msg.Details))
			return nil
		}
		fmt.Fprintf(c.out, "server error %s: %s %s\n", msg.Code, msg.Message, msg.Details)

	default:
		fmt.Fprintf(c.out, "unhandled message type %s\n", base.Type)
	}
	return nil
}
