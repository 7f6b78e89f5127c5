package stream

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxSpokenLength caps one utterance; longer text is cut at the nearest
// sentence boundary so speech stays natural.
const MaxSpokenLength = 300

// toolActions maps tool identifiers to present-tense verb phrases.
var toolActions = map[string]string{
	"Read":      "Reading",
	"Write":     "Writing",
	"Edit":      "Editing",
	"Bash":      "Running",
	"Glob":      "Searching for",
	"Grep":      "Searching in",
	"Task":      "Starting",
	"WebFetch":  "Fetching",
	"WebSearch": "Searching the web for",
}

// errorReaction is the fixed phrasing spoken on an error result.
const errorReaction = "Hmm, that didn't work. Let me try something else."

var (
	sentenceEnd = regexp.MustCompile(`([.!?])\s+`)
	filenameRE  = regexp.MustCompile(`^[\w/\\.-]+\.(go|py|js|ts|json|md|txt|yaml|yml|html|css)$`)
	alphanumRE  = regexp.MustCompile(`[a-zA-Z0-9\s]`)
)

// LineResult is the outcome of parsing one subprocess output line: zero or
// more speakable items, plus side-channel signals for progress display,
// session continuation and the terminal result.
type LineResult struct {
	Content   []SpeakableContent
	Tools     []string
	SessionID string
	Terminal  bool
	IsError   bool
	Parsed    bool
}

// Parser turns raw stream-json lines into speakable content. It keeps a
// sentence buffer across lines, tracks open code fences, and suppresses
// immediately repeated narration. One Parser serves one subprocess stream
// and is not safe for concurrent use.
type Parser struct {
	buffer     string
	inFence    bool
	lastSpoken string
}

// NewParser creates a parser for one subprocess stream.
func NewParser() *Parser {
	return &Parser{}
}

// ParseLine parses a single line of stream-json output. Malformed lines
// yield an empty result with Parsed=false.
func (p *Parser) ParseLine(line string) LineResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return LineResult{}
	}

	var event Event
	if err := json.Unmarshal([]byte(line), &event); err != nil || event.Type == "" {
		return LineResult{}
	}

	result := LineResult{Parsed: true, SessionID: event.SessionID}

	switch event.Type {
	case "assistant":
		p.handleAssistant(&event, &result)
	case "content_block_start":
		p.handleBlockStart(&event, &result)
	case "content_block_delta":
		p.handleDelta(&event, &result)
	case "content_block_stop":
		p.flushRemainder(&result)
	case "result":
		p.handleResult(&event, &result)
	}

	return result
}

func (p *Parser) handleAssistant(event *Event, result *LineResult) {
	if event.Message == nil {
		return
	}
	for _, block := range event.Message.Content {
		switch block.Type {
		case "text":
			p.buffer += p.stripFences(block.Text)
			p.flushSentences(result)
		case "tool_use":
			p.announceTool(block.Name, result)
		}
	}
}

func (p *Parser) handleBlockStart(event *Event, result *LineResult) {
	if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
		p.announceTool(event.ContentBlock.Name, result)
	}
}

func (p *Parser) handleDelta(event *Event, result *LineResult) {
	if event.Delta == nil || event.Delta.Type != "text_delta" {
		return
	}
	p.buffer += p.stripFences(event.Delta.Text)
	p.flushSentences(result)
}

func (p *Parser) handleResult(event *Event, result *LineResult) {
	p.flushRemainder(result)

	isError := event.IsError
	if !isError && len(event.Result) > 0 {
		// result may be a string or an object carrying its own error flag
		var nested struct {
			IsError bool `json:"is_error"`
		}
		if err := json.Unmarshal(event.Result, &nested); err == nil {
			isError = nested.IsError
		}
	}

	result.Terminal = true
	result.IsError = isError
	if isError {
		result.Content = append(result.Content, SpeakableContent{
			Text:     errorReaction,
			Type:     Reaction,
			Priority: 3,
		})
	}
	// Non-error results yield no narration: it already happened incrementally.
}

func (p *Parser) announceTool(name string, result *LineResult) {
	if name == "" {
		return
	}
	result.Tools = append(result.Tools, name)

	action, ok := toolActions[name]
	if !ok {
		action = "Using " + name
	}
	result.Content = append(result.Content, SpeakableContent{
		Text:     action + "...",
		Type:     Action,
		Priority: 2,
	})
}

// flushSentences emits one speakable item per complete sentence in the
// buffer, retaining any trailing incomplete fragment for the next line.
func (p *Parser) flushSentences(result *LineResult) {
	for {
		loc := sentenceEnd.FindStringIndex(p.buffer)
		if loc == nil {
			return
		}
		sentence := strings.TrimSpace(p.buffer[:loc[1]])
		p.buffer = p.buffer[loc[1]:]
		p.emit(sentence, result)
	}
}

// flushRemainder speaks whatever incomplete text is left in the buffer.
func (p *Parser) flushRemainder(result *LineResult) {
	remainder := strings.TrimSpace(p.buffer)
	p.buffer = ""
	if remainder != "" {
		p.emit(remainder, result)
	}
}

func (p *Parser) emit(text string, result *LineResult) {
	speakable := extractSpeakable(text)
	if speakable == "" {
		return
	}
	if speakable == p.lastSpoken {
		// the same line can be seen twice across buffering boundaries
		return
	}
	p.lastSpoken = speakable
	result.Content = append(result.Content, SpeakableContent{
		Text:     speakable,
		Type:     Narration,
		Priority: 1,
	})
}

// stripFences removes fenced code regions from text, tracking fences that
// open in one line and close in a later one. Nothing inside a fence may
// leak into narration. Text outside fences passes through verbatim so
// streamed deltas concatenate correctly.
func (p *Parser) stripFences(text string) string {
	if !p.inFence && !strings.Contains(text, "```") {
		return text
	}

	var b strings.Builder
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for {
			idx := strings.Index(line, "```")
			if idx < 0 {
				break
			}
			if p.inFence {
				p.inFence = false
			} else {
				b.WriteString(line[:idx])
				p.inFence = true
			}
			line = line[idx+3:]
		}
		if p.inFence {
			// fence opener remnants (language tags) and fenced lines are dropped
			continue
		}
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteString(" ")
		}
	}
	return b.String()
}

// extractSpeakable applies the narration filters: no structured data, no
// bare filenames, no control-sequence noise, bounded length.
func extractSpeakable(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return ""
	}
	if filenameRE.MatchString(text) {
		return ""
	}

	ratio := float64(len(alphanumRE.FindAllString(text, -1))) / float64(len(text))
	if ratio < 0.5 {
		return ""
	}

	if len(text) > MaxSpokenLength {
		breakPoint := strings.LastIndex(text[:MaxSpokenLength], ". ")
		if breakPoint > 100 {
			text = text[:breakPoint+1]
		} else {
			// back up to a rune boundary so a multi-byte character is
			// never cut in half
			cut := MaxSpokenLength - 3
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "..."
		}
	}

	return text
}
