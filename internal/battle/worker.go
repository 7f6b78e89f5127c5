package battle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/silver2dream/agent-arena/internal/config"
	"github.com/silver2dream/agent-arena/internal/speech"
	"github.com/silver2dream/agent-arena/internal/stream"
)

const colorReset = "\x1b[0m"

// Announcer queues one utterance for speech. Saturation drops the utterance
// rather than blocking a worker's read loop.
type Announcer interface {
	Enqueue(u speech.Utterance) bool
}

// Worker supervises one competitor's coding-agent subprocess: it spawns the
// agent in an isolated working directory, streams its stream-json output
// through a parser, and turns the results into transcript lines, sampled
// speech, and scoreboard updates.
type Worker struct {
	competitor config.Competitor
	opponents  []string
	task       string
	workDir    string
	state      *State
	announcer  Announcer
	tuning     config.Tuning
	rng        *rand.Rand
	out        io.Writer
	colored    bool
	log        *zap.SugaredLogger
}

// WorkerParams collects the dependencies for one worker.
type WorkerParams struct {
	Competitor config.Competitor
	Opponents  []string
	Task       string
	ArenaDir   string
	State      *State
	Announcer  Announcer
	Tuning     config.Tuning
	Rng        *rand.Rand
	Out        io.Writer
	Colored    bool
	Log        *zap.SugaredLogger
}

// NewWorker builds a worker. Each worker needs its own Rng since
// math/rand.Rand is not safe for concurrent use.
func NewWorker(p WorkerParams) *Worker {
	return &Worker{
		competitor: p.Competitor,
		opponents:  append([]string{}, p.Opponents...),
		task:       p.Task,
		workDir:    filepath.Join(p.ArenaDir, strings.ToLower(p.Competitor.Name)),
		state:      p.State,
		announcer:  p.Announcer,
		tuning:     p.Tuning,
		rng:        p.Rng,
		out:        p.Out,
		colored:    p.Colored,
		log:        p.Log,
	}
}

// WorkDir returns the competitor's artifact directory.
func (w *Worker) WorkDir() string {
	return w.workDir
}

// Run executes the competitor's subprocess to completion and returns the
// artifact directory. A non-zero subprocess exit is surfaced through battle
// state, not as an error; only setup failures are returned.
func (w *Worker) Run(ctx context.Context) (string, error) {
	if err := os.MkdirAll(w.workDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work dir for %s: %w", w.competitor.Name, err)
	}

	w.say(w.competitor.Intro)

	prompt := fmt.Sprintf(`Create a solution for: %s

Your approach should be: %s

Work in the current directory. Create any files needed.
When done, if it's a web page, save it as index.html.
Be decisive and execute quickly.`, w.task, w.competitor.Approach)

	cmd := exec.CommandContext(ctx, "claude",
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
		"-p", prompt)
	cmd.Dir = w.workDir
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open stdout pipe for %s: %w", w.competitor.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start agent for %s: %w", w.competitor.Name, err)
	}

	sawTerminal, terminalErr := w.consume(stdout)

	err = cmd.Wait()
	w.finalize(sawTerminal, terminalErr, err == nil)
	return w.workDir, nil
}

// consume drains the subprocess stream until EOF, reporting whether a
// terminal result event arrived and whether it carried an error.
func (w *Worker) consume(r io.Reader) (sawTerminal, terminalErr bool) {
	parser := stream.NewParser()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lines := 0
	sessionID := ""
	lastTrashTalk := time.Now()
	lastThinking := time.Now()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result := parser.ParseLine(line)
		if !result.Parsed {
			continue
		}
		lines++
		w.state.UpdateProgress(w.competitor.Name, StatusWorking, lines)

		if result.SessionID != "" && result.SessionID != sessionID {
			sessionID = result.SessionID
			w.log.Debugw("agent session started",
				"competitor", w.competitor.Name, "session_id", sessionID)
		}

		for _, content := range result.Content {
			w.handleContent(content)
		}
		for _, tool := range result.Tools {
			w.log.Debugw("tool use", "competitor", w.competitor.Name, "tool", tool)
		}

		if result.Terminal {
			sawTerminal = true
			terminalErr = result.IsError
			if result.IsError {
				w.say(w.competitor.FrustratedLine(w.rng))
			}
		}

		now := time.Now()
		if now.Sub(lastTrashTalk) > w.tuning.TrashTalkInterval && len(w.opponents) > 0 {
			if w.rng.Float64() < w.tuning.TrashTalkProbability {
				opponent := w.opponents[w.rng.Intn(len(w.opponents))]
				w.say(w.competitor.TrashTalkLine(w.rng, opponent))
				lastTrashTalk = now
			}
		}
		if now.Sub(lastThinking) > w.tuning.ThinkingInterval {
			if w.rng.Float64() < w.tuning.ThinkingProbability {
				w.say(w.competitor.ThinkingLine(w.rng))
				lastThinking = now
			}
		}
	}
	if err := scanner.Err(); err != nil {
		w.log.Warnw("agent stream read failed", "competitor", w.competitor.Name, "error", err)
	}
	return sawTerminal, terminalErr
}

// handleContent prints and selectively speaks one parsed unit.
func (w *Worker) handleContent(content stream.SpeakableContent) {
	switch content.Type {
	case stream.Narration:
		w.printf("💬 %s", content.Text)
		if w.rng.Float64() < w.tuning.SpeakProbability {
			w.say(content.Text)
		}
	case stream.Action:
		w.printf("🔧 %s", content.Text)
	case stream.Reaction:
		w.printf("💬 %s", content.Text)
		w.say(content.Text)
	}
}

// finalize records the terminal status. When the subprocess exits without a
// terminal result event, a clean exit still counts as finished and anything
// else as errored.
func (w *Worker) finalize(sawTerminal, terminalErr, cleanExit bool) {
	status := StatusFinished
	switch {
	case sawTerminal && terminalErr:
		status = StatusErrored
	case !sawTerminal && !cleanExit:
		status = StatusErrored
	}
	snap := w.state.Snapshot()
	lines := 0
	for _, view := range snap.Competitors {
		if view.Name == w.competitor.Name {
			lines = view.Lines
		}
	}
	w.state.UpdateProgress(w.competitor.Name, status, lines)
	w.log.Infow("worker finished",
		"competitor", w.competitor.Name, "status", status, "events", lines)
}

// say queues one spoken line for this competitor.
func (w *Worker) say(text string) {
	if text == "" {
		return
	}
	w.announcer.Enqueue(speech.Utterance{
		Text:    text,
		VoiceID: w.competitor.VoiceID,
		Speaker: w.competitor.Name,
		Color:   w.color(),
	})
}

// printf writes one colored transcript line for this competitor.
func (w *Worker) printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if w.colored {
		fmt.Fprintf(w.out, "%s[%s] %s%s\n", w.competitor.Color, w.competitor.Name, line, colorReset)
		return
	}
	fmt.Fprintf(w.out, "[%s] %s\n", w.competitor.Name, line)
}

func (w *Worker) color() string {
	if w.colored {
		return w.competitor.Color
	}
	return ""
}
