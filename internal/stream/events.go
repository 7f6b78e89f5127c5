// Package stream parses the coding agent's line-delimited stream-json output
// into speakable content for the narration pipeline.
package stream

import "encoding/json"

// Event is one stream-json record emitted by the coding agent CLI.
// Lines that fail to decode into this shape are skipped, never fatal.
type Event struct {
	Type         string          `json:"type"`
	Message      *Message        `json:"message,omitempty"`
	ContentBlock *ContentBlock   `json:"content_block,omitempty"`
	Delta        *Delta          `json:"delta,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// Message carries assistant content blocks.
type Message struct {
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one block inside an assistant message: narration text or a
// tool invocation.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

// Delta is a streaming text fragment.
type Delta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ContentType tags a unit of speakable content.
type ContentType string

const (
	// Narration is assistant explanation text.
	Narration ContentType = "narration"
	// Action announces a tool use.
	Action ContentType = "action"
	// Reaction responds to a terminal result.
	Reaction ContentType = "reaction"
)

// SpeakableContent is one filtered unit of text approved for narration.
type SpeakableContent struct {
	Text     string
	Type     ContentType
	Priority int
}
