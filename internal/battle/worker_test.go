package battle

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/silver2dream/agent-arena/internal/config"
	"github.com/silver2dream/agent-arena/internal/speech"
)

type fakeAnnouncer struct {
	mu         sync.Mutex
	utterances []speech.Utterance
}

func (f *fakeAnnouncer) Enqueue(u speech.Utterance) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utterances = append(f.utterances, u)
	return true
}

func (f *fakeAnnouncer) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.utterances))
	for i, u := range f.utterances {
		out[i] = u.Text
	}
	return out
}

func testCompetitor() config.Competitor {
	return config.Competitor{
		Name:       "SpeedDemon",
		Approach:   "ship fast",
		VoiceID:    "voice-1",
		Port:       8001,
		Color:      "\x1b[91m",
		Intro:      "Let's GO!",
		Thinking:   []string{"hmm let me think"},
		TrashTalk:  []string{"{opponent} is still reading the docs!"},
		SelfHype:   []string{"I am the fastest"},
		Frustrated: []string{"ugh, come ON"},
		Victory:    []string{"told you so"},
	}
}

func newTestWorker(t *testing.T, tuning config.Tuning, announcer Announcer, out *bytes.Buffer) (*Worker, *State) {
	t.Helper()
	state := NewState([]string{"SpeedDemon", "Architect"})
	w := NewWorker(WorkerParams{
		Competitor: testCompetitor(),
		Opponents:  []string{"Architect"},
		Task:       "build a thing",
		ArenaDir:   t.TempDir(),
		State:      state,
		Announcer:  announcer,
		Tuning:     tuning,
		Rng:        rand.New(rand.NewSource(1)),
		Out:        out,
		Colored:    false,
		Log:        zap.NewNop().Sugar(),
	})
	return w, state
}

func assistantLine(text string) string {
	return fmt.Sprintf(`{"type":"assistant","message":{"content":[{"type":"text","text":%q}]}}`, text)
}

func TestWorker_NarrationAlwaysPrintedSpokenWhenSampled(t *testing.T) {
	tuning := config.Tuning{SpeakProbability: 1}
	announcer := &fakeAnnouncer{}
	var out bytes.Buffer
	w, _ := newTestWorker(t, tuning, announcer, &out)

	input := assistantLine("This is my opening move. ") + "\n"
	w.consume(strings.NewReader(input))

	if !strings.Contains(out.String(), "[SpeedDemon] 💬 This is my opening move.") {
		t.Errorf("transcript missing narration line, got %q", out.String())
	}
	if got := announcer.texts(); len(got) != 1 || got[0] != "This is my opening move." {
		t.Errorf("spoken = %v, want the narration sentence", got)
	}
}

func TestWorker_NarrationNotSpokenWhenSampledOut(t *testing.T) {
	tuning := config.Tuning{SpeakProbability: 0}
	announcer := &fakeAnnouncer{}
	var out bytes.Buffer
	w, _ := newTestWorker(t, tuning, announcer, &out)

	w.consume(strings.NewReader(assistantLine("Silent progress here. ") + "\n"))

	if !strings.Contains(out.String(), "Silent progress here.") {
		t.Error("transcript must always carry the full text")
	}
	if got := announcer.texts(); len(got) != 0 {
		t.Errorf("nothing should be spoken at probability 0, got %v", got)
	}
}

func TestWorker_ToolUsePrintsAction(t *testing.T) {
	announcer := &fakeAnnouncer{}
	var out bytes.Buffer
	w, _ := newTestWorker(t, config.Tuning{}, announcer, &out)

	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Write"}]}}`
	w.consume(strings.NewReader(line + "\n"))

	if !strings.Contains(out.String(), "🔧 Writing...") {
		t.Errorf("tool action not printed, got %q", out.String())
	}
	if got := announcer.texts(); len(got) != 0 {
		t.Errorf("tool actions are printed, not spoken, got %v", got)
	}
}

func TestWorker_ErrorResultSpeaksFrustration(t *testing.T) {
	announcer := &fakeAnnouncer{}
	var out bytes.Buffer
	w, _ := newTestWorker(t, config.Tuning{}, announcer, &out)

	sawTerminal, terminalErr := w.consume(strings.NewReader(`{"type":"result","is_error":true}` + "\n"))
	if !sawTerminal || !terminalErr {
		t.Fatalf("terminal = %v/%v, want true/true", sawTerminal, terminalErr)
	}

	spoken := announcer.texts()
	found := false
	for _, text := range spoken {
		if text == "ugh, come ON" {
			found = true
		}
	}
	if !found {
		t.Errorf("frustration line not spoken, got %v", spoken)
	}
}

func TestWorker_ProgressCountsParsedEvents(t *testing.T) {
	announcer := &fakeAnnouncer{}
	var out bytes.Buffer
	w, state := newTestWorker(t, config.Tuning{}, announcer, &out)

	input := assistantLine("One. ") + "\n" +
		"not json at all\n" +
		assistantLine("Two. ") + "\n"
	w.consume(strings.NewReader(input))

	snap := state.Snapshot()
	if snap.Competitors[0].Lines != 2 {
		t.Errorf("parsed event count = %d, want 2 (malformed line must not count)", snap.Competitors[0].Lines)
	}
	if snap.Competitors[0].Status != StatusWorking {
		t.Errorf("status = %q, want working", snap.Competitors[0].Status)
	}
}

func TestWorker_TrashTalkFillsOpponent(t *testing.T) {
	tuning := config.Tuning{
		TrashTalkInterval:    -time.Second,
		TrashTalkProbability: 1,
		ThinkingInterval:     time.Hour,
	}
	announcer := &fakeAnnouncer{}
	var out bytes.Buffer
	w, _ := newTestWorker(t, tuning, announcer, &out)

	w.consume(strings.NewReader(assistantLine("Working. ") + "\n"))

	found := false
	for _, text := range announcer.texts() {
		if text == "Architect is still reading the docs!" {
			found = true
		}
	}
	if !found {
		t.Errorf("trash talk with opponent name not spoken, got %v", announcer.texts())
	}
}

func TestWorker_Finalize(t *testing.T) {
	tests := []struct {
		name        string
		sawTerminal bool
		terminalErr bool
		cleanExit   bool
		want        string
	}{
		{"clean terminal result", true, false, true, StatusFinished},
		{"error terminal result", true, true, true, StatusErrored},
		{"no result, exit zero", false, false, true, StatusFinished},
		{"no result, exit nonzero", false, false, false, StatusErrored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			w, state := newTestWorker(t, config.Tuning{}, &fakeAnnouncer{}, &out)
			w.finalize(tt.sawTerminal, tt.terminalErr, tt.cleanExit)
			snap := state.Snapshot()
			if snap.Competitors[0].Status != tt.want {
				t.Errorf("status = %q, want %q", snap.Competitors[0].Status, tt.want)
			}
		})
	}
}

func TestWorker_WorkDirIsolatedPerCompetitor(t *testing.T) {
	var out bytes.Buffer
	w, _ := newTestWorker(t, config.Tuning{}, &fakeAnnouncer{}, &out)
	if !strings.HasSuffix(w.WorkDir(), "speeddemon") {
		t.Errorf("work dir %q should end with the lowercased competitor name", w.WorkDir())
	}
}
