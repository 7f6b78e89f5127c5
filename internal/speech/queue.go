package speech

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const colorReset = "\x1b[0m"

// Utterance is one queued speech entry.
type Utterance struct {
	Text    string
	VoiceID string
	Speaker string
	Color   string
}

// Queue serializes speech: any number of producers enqueue, exactly one
// consumer dequeues, prints the transcript line, and performs the full
// synthesize-and-play operation before taking the next entry. This is what
// keeps competitors from talking over each other.
type Queue struct {
	utterances chan Utterance
	synth      Synthesizer
	playback   *Playback
	transcript io.Writer
	gap        time.Duration
	log        *zap.SugaredLogger

	busy     atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.Mutex
	stopped  bool
}

// NewQueue creates a speech queue draining into playback. gap is the pause
// inserted between utterances.
func NewQueue(synth Synthesizer, playback *Playback, transcript io.Writer, gap time.Duration, log *zap.SugaredLogger) *Queue {
	return &Queue{
		utterances: make(chan Utterance, 256),
		synth:      synth,
		playback:   playback,
		transcript: transcript,
		gap:        gap,
		log:        log,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (q *Queue) Start() {
	go q.consumeLoop()
}

// Enqueue submits an utterance from any goroutine. Returns false when the
// queue is saturated or stopped and the utterance was dropped; narration
// is best-effort.
func (q *Queue) Enqueue(u Utterance) bool {
	select {
	case <-q.stopChan:
		return false
	default:
	}
	select {
	case q.utterances <- u:
		return true
	default:
		q.log.Debugw("speech queue saturated, dropping utterance", "speaker", u.Speaker)
		return false
	}
}

// Flush waits until all queued utterances have been spoken, up to timeout.
func (q *Queue) Flush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(q.utterances) == 0 && !q.busy.Load() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// Stop halts the consumer after the current utterance. Safe to call more
// than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	close(q.stopChan)
	select {
	case <-q.doneChan:
	case <-time.After(5 * time.Second):
	}
}

func (q *Queue) consumeLoop() {
	defer close(q.doneChan)
	for {
		select {
		case <-q.stopChan:
			return
		case u := <-q.utterances:
			q.busy.Store(true)
			q.speak(u)
			q.busy.Store(false)

			select {
			case <-q.stopChan:
				return
			case <-time.After(q.gap):
			}
		}
	}
}

func (q *Queue) speak(u Utterance) {
	fmt.Fprintf(q.transcript, "%s[%s] 🎙  %s%s\n", u.Color, u.Speaker, u.Text, colorReset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-q.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := q.synth.Speak(ctx, u.Text, u.VoiceID, q.playback.Enqueue); err != nil {
		// One missed line of commentary must not abort a battle.
		q.log.Warnw("tts failed", "speaker", u.Speaker, "error", err)
	}
}
