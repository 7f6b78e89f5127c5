package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// cartesiaVersion pins the TTS service API version header.
const cartesiaVersion = "2024-06-10"

// Synthesizer converts text into a stream of raw PCM chunks, invoking emit
// for each chunk as it arrives so playback starts before synthesis ends.
type Synthesizer interface {
	Speak(ctx context.Context, text, voiceID string, emit func(chunk []byte)) error
}

// CartesiaClient streams synthesized speech from a Cartesia-style
// SSE-over-HTTP endpoint: text in, base64 PCM chunks out.
type CartesiaClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	log     *zap.SugaredLogger
}

// NewCartesiaClient builds a synthesis client. The http.Client carries no
// overall timeout: one utterance streams for as long as it speaks, and
// cancellation comes from the caller's context.
func NewCartesiaClient(baseURL, apiKey, model string, log *zap.SugaredLogger) *CartesiaClient {
	return &CartesiaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
		log:     log,
	}
}

type ttsRequest struct {
	ModelID      string          `json:"model_id"`
	Transcript   string          `json:"transcript"`
	Voice        ttsVoice        `json:"voice"`
	OutputFormat ttsOutputFormat `json:"output_format"`
}

type ttsVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type ttsOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type ttsChunk struct {
	Type string `json:"type"`
	Data string `json:"data"`
	Done bool   `json:"done"`
}

// Speak streams synthesized audio for text, forwarding each decoded chunk
// immediately. Errors are returned to the caller, which treats them as
// "this utterance produced no audio" rather than fatal.
func (c *CartesiaClient) Speak(ctx context.Context, text, voiceID string, emit func(chunk []byte)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	payload, err := json.Marshal(ttsRequest{
		ModelID:    c.model,
		Transcript: text,
		Voice:      ttsVoice{Mode: "id", ID: voiceID},
		OutputFormat: ttsOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: SampleRate,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/sse", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts service returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var chunk ttsChunk
		if err := json.Unmarshal([]byte(strings.TrimSpace(line[len("data:"):])), &chunk); err != nil {
			continue
		}
		if chunk.Done {
			break
		}
		if chunk.Data == "" {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(chunk.Data)
		if err != nil {
			c.log.Debugw("skipping undecodable audio chunk", "error", err)
			continue
		}
		emit(audio)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("tts stream read failed: %w", err)
	}
	return nil
}

// noopSynthesizer discards all speech. Used when no API key is configured so
// the battle still runs with a transcript-only narration.
type noopSynthesizer struct{}

// NewNoopSynthesizer returns a synthesizer that produces no audio.
func NewNoopSynthesizer() Synthesizer {
	return noopSynthesizer{}
}

func (noopSynthesizer) Speak(ctx context.Context, text, voiceID string, emit func([]byte)) error {
	// Simulate a short utterance so pacing still feels natural.
	select {
	case <-ctx.Done():
	case <-time.After(150 * time.Millisecond):
	}
	return nil
}
