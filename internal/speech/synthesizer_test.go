package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCartesiaClient_Speak(t *testing.T) {
	var gotReq ttsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts/sse" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("X-API-Key = %q", got)
		}
		if got := r.Header.Get("Cartesia-Version"); got != cartesiaVersion {
			t.Errorf("Cartesia-Version = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, audio := range []string{"first", "second"} {
			chunk := ttsChunk{Type: "chunk", Data: base64.StdEncoding.EncodeToString([]byte(audio))}
			payload, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: {\"type\":\"done\",\"done\":true}\n\n")
	}))
	defer server.Close()

	client := NewCartesiaClient(server.URL, "test-key", "sonic-2", zap.NewNop().Sugar())

	var emitted []string
	err := client.Speak(context.Background(), "hello there", "voice-1", func(chunk []byte) {
		emitted = append(emitted, string(chunk))
	})
	if err != nil {
		t.Fatalf("Speak returned error: %v", err)
	}

	if len(emitted) != 2 || emitted[0] != "first" || emitted[1] != "second" {
		t.Errorf("emitted = %v, want [first second]", emitted)
	}
	if gotReq.Transcript != "hello there" {
		t.Errorf("transcript = %q", gotReq.Transcript)
	}
	if gotReq.ModelID != "sonic-2" {
		t.Errorf("model_id = %q", gotReq.ModelID)
	}
	if gotReq.Voice.Mode != "id" || gotReq.Voice.ID != "voice-1" {
		t.Errorf("voice = %+v", gotReq.Voice)
	}
	if gotReq.OutputFormat.Encoding != "pcm_s16le" || gotReq.OutputFormat.SampleRate != SampleRate {
		t.Errorf("output_format = %+v", gotReq.OutputFormat)
	}
}

func TestCartesiaClient_Speak_SkipsBadChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, ": comment line\n\n")
		fmt.Fprint(w, "data: {\"type\":\"chunk\",\"data\":\"!!!not-base64!!!\"}\n\n")
		chunk := ttsChunk{Data: base64.StdEncoding.EncodeToString([]byte("good"))}
		payload, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", payload)
		fmt.Fprint(w, "data: {\"done\":true}\n\n")
	}))
	defer server.Close()

	client := NewCartesiaClient(server.URL, "k", "sonic-2", zap.NewNop().Sugar())

	var emitted []string
	if err := client.Speak(context.Background(), "hi", "v", func(chunk []byte) {
		emitted = append(emitted, string(chunk))
	}); err != nil {
		t.Fatalf("Speak returned error: %v", err)
	}
	if len(emitted) != 1 || emitted[0] != "good" {
		t.Errorf("emitted = %v, want [good]", emitted)
	}
}

func TestCartesiaClient_Speak_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewCartesiaClient(server.URL, "bad-key", "sonic-2", zap.NewNop().Sugar())
	err := client.Speak(context.Background(), "hi", "v", func([]byte) {})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestCartesiaClient_Speak_EmptyText(t *testing.T) {
	client := NewCartesiaClient("http://127.0.0.1:0", "k", "sonic-2", zap.NewNop().Sugar())
	if err := client.Speak(context.Background(), "   ", "v", func([]byte) {
		t.Error("emit called for empty text")
	}); err != nil {
		t.Errorf("empty text should be a no-op, got %v", err)
	}
}

func TestNoopSynthesizer(t *testing.T) {
	synth := NewNoopSynthesizer()
	start := time.Now()
	if err := synth.Speak(context.Background(), "anything", "v", func([]byte) {
		t.Error("noop synthesizer must not emit audio")
	}); err != nil {
		t.Errorf("noop Speak returned error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("noop Speak took too long")
	}
}
