package battle

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/silver2dream/agent-arena/internal/config"
	"github.com/silver2dream/agent-arena/internal/history"
	"github.com/silver2dream/agent-arena/internal/speech"
)

// progressInterval is how often the live renderer refreshes.
const progressInterval = 2 * time.Second

// Voice is the speech pipeline surface the arena needs: enqueue plus a
// drain barrier between phases.
type Voice interface {
	Enqueue(u speech.Utterance) bool
	Flush(timeout time.Duration) bool
}

// Dashboard is the battle status web server lifecycle.
type Dashboard interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// ArtifactPublisher exposes competitor work dirs over HTTP.
type ArtifactPublisher interface {
	Publish(name string, port int, dir string) error
	Shutdown(ctx context.Context) error
}

// Recorder persists finished battles.
type Recorder interface {
	SaveBattle(battle history.BattleRecord, results []history.ResultRecord, critiques []history.CritiqueRecord) error
}

// Arena coordinates a full battle: staggered parallel workers, a live
// progress display, the dashboard and artifact servers, the commentary
// round, and the winner announcement.
type Arena struct {
	competitors []config.Competitor
	task        string
	arenaDir    string
	tuning      config.Tuning
	state       *State
	voice       Voice
	critic      Critic
	dashboard   Dashboard
	artifacts   ArtifactPublisher
	recorder    Recorder
	rng         *rand.Rand
	out         io.Writer
	colored     bool
	log         *zap.SugaredLogger
}

// ArenaParams collects arena dependencies. Dashboard, Artifacts, and
// Recorder may be nil, disabling that surface.
type ArenaParams struct {
	Competitors []config.Competitor
	Task        string
	ArenaDir    string
	Tuning      config.Tuning
	State       *State
	Voice       Voice
	Critic      Critic
	Dashboard   Dashboard
	Artifacts   ArtifactPublisher
	Recorder    Recorder
	Rng         *rand.Rand
	Out         io.Writer
	Colored     bool
	Log         *zap.SugaredLogger
}

// NewArena builds the controller.
func NewArena(p ArenaParams) *Arena {
	return &Arena{
		competitors: p.Competitors,
		task:        p.Task,
		arenaDir:    p.ArenaDir,
		tuning:      p.Tuning,
		state:       p.State,
		voice:       p.Voice,
		critic:      p.Critic,
		dashboard:   p.Dashboard,
		artifacts:   p.Artifacts,
		recorder:    p.Recorder,
		rng:         p.Rng,
		out:         p.Out,
		colored:     p.Colored,
		log:         p.Log,
	}
}

// Run executes the battle to completion, then serves the dashboard until
// ctx is cancelled.
func (a *Arena) Run(ctx context.Context) error {
	startedAt := time.Now()
	a.printBanner()

	artifacts := a.runWorkers(ctx)

	fmt.Fprintln(a.out, "\n🏁 ALL AGENTS FINISHED! 🏁")
	for _, competitor := range a.competitors {
		a.say(competitor, competitor.VictoryLine(a.rng))
	}
	a.voice.Flush(time.Minute)

	a.publishArtifacts(artifacts)
	if a.dashboard != nil {
		if err := a.dashboard.Start(); err != nil {
			return err
		}
	}

	commentary := NewCommentary(CommentaryParams{
		Competitors: a.competitors,
		Artifacts:   artifacts,
		State:       a.state,
		Announcer:   a.voice,
		Critic:      a.critic,
		Rng:         a.rng,
		Out:         a.out,
		Colored:     a.colored,
		Log:         a.log,
	})
	commentary.Run(ctx)

	winner := a.state.Winner()
	a.state.SetWinner(winner)
	a.announceWinner(winner)
	a.voice.Flush(time.Minute)

	a.record(ctx, startedAt, winner, commentary.Entries())

	<-ctx.Done()
	a.shutdown()
	return nil
}

// runWorkers launches one worker per competitor with a staggered start and
// a live progress renderer, returning each competitor's artifact directory.
// A setup failure marks that competitor errored and is never allowed to
// cancel the siblings; the battle continues with whoever is left.
func (a *Arena) runWorkers(ctx context.Context) map[string]string {
	stopRender := make(chan struct{})
	renderDone := make(chan struct{})
	go a.renderLoop(stopRender, renderDone)

	artifacts := make(map[string]string, len(a.competitors))
	var mu sync.Mutex

	var g errgroup.Group
	for i, competitor := range a.competitors {
		opponents := make([]string, 0, len(a.competitors)-1)
		for _, other := range a.competitors {
			if other.Name != competitor.Name {
				opponents = append(opponents, other.Name)
			}
		}
		worker := NewWorker(WorkerParams{
			Competitor: competitor,
			Opponents:  opponents,
			Task:       a.task,
			ArenaDir:   a.arenaDir,
			State:      a.state,
			Announcer:  a.voice,
			Tuning:     a.tuning,
			Rng:        rand.New(rand.NewSource(a.rng.Int63())),
			Out:        a.out,
			Colored:    a.colored,
			Log:        a.log,
		})
		delay := time.Duration(i) * a.tuning.StaggerDelay
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			dir, err := worker.Run(ctx)
			if err != nil {
				a.log.Errorw("agent setup failed",
					"competitor", worker.competitor.Name, "error", err)
				a.state.UpdateProgress(worker.competitor.Name, StatusErrored, 0)
				return nil
			}
			mu.Lock()
			artifacts[worker.competitor.Name] = dir
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	close(stopRender)
	<-renderDone
	return artifacts
}

// renderLoop polls the scoreboard and rewrites the progress block in place
// when the output supports ANSI control.
func (a *Arena) renderLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	rendered := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if a.colored && rendered > 0 {
				fmt.Fprintf(a.out, "\x1b[%dA", rendered)
			}
			rendered = a.renderProgress()
		}
	}
}

func (a *Arena) renderProgress() int {
	snap := a.state.Snapshot()
	for _, view := range snap.Competitors {
		fmt.Fprintf(a.out, "%s %-12s %-9s %4d events  %3d HP\n",
			view.Emoji, view.Name, view.Status, view.Lines, view.HP)
	}
	return len(snap.Competitors)
}

// publishArtifacts serves each work dir that actually produced the expected
// output file.
func (a *Arena) publishArtifacts(artifacts map[string]string) {
	if a.artifacts == nil {
		return
	}
	for _, competitor := range a.competitors {
		dir, ok := artifacts[competitor.Name]
		if !ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, artifactFile)); err != nil {
			a.log.Infow("no artifact to serve", "competitor", competitor.Name)
			continue
		}
		// bind failure already logged by the publisher
		_ = a.artifacts.Publish(competitor.Name, competitor.Port, dir)
	}
}

func (a *Arena) announceWinner(winner string) {
	fmt.Fprintf(a.out, "\n👑 WINNER: %s 👑\n", winner)
	for _, view := range a.state.Standings() {
		fmt.Fprintf(a.out, "  %-12s %3d HP\n", view.Name, view.HP)
	}
	for _, competitor := range a.competitors {
		if competitor.Name == winner {
			a.say(competitor, fmt.Sprintf("And the winner is... %s! That's me!", winner))
		}
	}
}

// record persists the battle, best-effort.
func (a *Arena) record(ctx context.Context, startedAt time.Time, winner string, entries []CritiqueEntry) {
	if a.recorder == nil {
		return
	}
	battleID := history.NewBattleID()
	record := history.BattleRecord{
		ID:         battleID,
		Task:       a.task,
		Winner:     winner,
		StartedAt:  startedAt.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	snap := a.state.Snapshot()
	results := make([]history.ResultRecord, 0, len(snap.Competitors))
	for _, view := range snap.Competitors {
		results = append(results, history.ResultRecord{
			BattleID:   battleID,
			Competitor: view.Name,
			HP:         view.HP,
			Status:     view.Status,
			Events:     view.Lines,
		})
	}
	critiques := make([]history.CritiqueRecord, 0, len(entries))
	for _, entry := range entries {
		critiques = append(critiques, history.CritiqueRecord{
			BattleID: battleID,
			Critic:   entry.Critic,
			Creator:  entry.Creator,
			Critique: entry.Critique,
			Damage:   entry.Damage,
		})
	}
	if err := a.recorder.SaveBattle(record, results, critiques); err != nil {
		a.log.Warnw("failed to record battle", "error", err)
	}
}

func (a *Arena) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.dashboard != nil {
		if err := a.dashboard.Shutdown(ctx); err != nil {
			a.log.Warnw("dashboard shutdown failed", "error", err)
		}
	}
	if a.artifacts != nil {
		if err := a.artifacts.Shutdown(ctx); err != nil {
			a.log.Warnw("artifact server shutdown failed", "error", err)
		}
	}
}

func (a *Arena) printBanner() {
	fmt.Fprintln(a.out, "\n🏆 AGENT ARENA - ONE TASK, WHO WINS?! 🏆")
	fmt.Fprintf(a.out, "\n📋 Task: %s\n\n", a.task)
	for _, competitor := range a.competitors {
		if a.colored {
			fmt.Fprintf(a.out, "%s  [%s] - %s%s\n", competitor.Color, competitor.Name, competitor.Approach, colorReset)
		} else {
			fmt.Fprintf(a.out, "  [%s] - %s\n", competitor.Name, competitor.Approach)
		}
	}
	fmt.Fprintln(a.out)
}

func (a *Arena) say(competitor config.Competitor, text string) {
	color := ""
	if a.colored {
		color = competitor.Color
	}
	a.voice.Enqueue(speech.Utterance{
		Text:    text,
		VoiceID: competitor.VoiceID,
		Speaker: competitor.Name,
		Color:   color,
	})
}
