// Package speech contains the narration pipeline: the TTS synthesis client,
// the single-consumer speech serialization queue, and the audio playback
// sink. Producers are many; the device writer is exactly one.
package speech

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	arenaerrors "github.com/silver2dream/agent-arena/internal/errors"
)

// SampleRate is the PCM sample rate used across the pipeline (s16le mono).
const SampleRate = 24000

// Sink consumes raw PCM buffers. The playback loop is its only writer.
type Sink interface {
	Write(chunk []byte) error
	Close() error
}

// DiscardSink throws audio away. Used when synthesis is disabled so the
// transcript-only pipeline needs no player subprocess.
type DiscardSink struct{}

func (DiscardSink) Write(chunk []byte) error { return nil }
func (DiscardSink) Close() error             { return nil }

// PlayerSink pipes raw PCM to an external player subprocess's stdin.
type PlayerSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewPlayerSink starts the player process described by command
// (e.g. "aplay -q -r 24000 -f S16_LE -c 1 -t raw -").
func NewPlayerSink(command string) (*PlayerSink, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, arenaerrors.NewAudioError("empty player command")
	}

	cmd := exec.Command(fields[0], fields[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, arenaerrors.NewAudioErrorWithCause("failed to open player stdin", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, arenaerrors.NewAudioErrorWithCause(
			fmt.Sprintf("failed to start audio player %q", fields[0]), err)
	}

	return &PlayerSink{cmd: cmd, stdin: stdin}, nil
}

// Write sends one PCM chunk to the player.
func (s *PlayerSink) Write(chunk []byte) error {
	_, err := s.stdin.Write(chunk)
	return err
}

// Close drains the player and reaps the subprocess.
func (s *PlayerSink) Close() error {
	if err := s.stdin.Close(); err != nil {
		_ = s.cmd.Process.Kill()
		return s.cmd.Wait()
	}
	return s.cmd.Wait()
}

// Playback is the single background consumer that owns the audio sink and
// drains PCM chunks in strict FIFO order. No other component may write to
// the sink.
type Playback struct {
	sink   Sink
	chunks chan []byte
	log    *zap.SugaredLogger

	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.Mutex
	stopped  bool
}

// NewPlayback creates a playback loop over the given sink.
func NewPlayback(sink Sink, log *zap.SugaredLogger) *Playback {
	return &Playback{
		sink:     sink,
		chunks:   make(chan []byte, 256),
		log:      log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (p *Playback) Start() {
	go p.drainLoop()
}

// Enqueue hands one PCM chunk to the playback loop. Blocks if the loop is
// behind; returns once the chunk is queued or playback has stopped.
func (p *Playback) Enqueue(chunk []byte) {
	select {
	case p.chunks <- chunk:
	case <-p.stopChan:
	}
}

// Stop signals the loop, waits for it with a bounded timeout, and closes
// the sink. Safe to call more than once.
func (p *Playback) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopChan)
	select {
	case <-p.doneChan:
	case <-time.After(2 * time.Second):
	}

	if err := p.sink.Close(); err != nil {
		p.log.Warnw("audio sink close failed", "error", err)
	}
}

func (p *Playback) drainLoop() {
	defer close(p.doneChan)
	for {
		select {
		case <-p.stopChan:
			return
		case chunk := <-p.chunks:
			if err := p.sink.Write(chunk); err != nil {
				p.log.Warnw("audio write failed", "error", err)
			}
		}
	}
}
