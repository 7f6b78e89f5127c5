package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/silver2dream/agent-arena/internal/battle"
	"github.com/silver2dream/agent-arena/internal/buildinfo"
	"github.com/silver2dream/agent-arena/internal/config"
	arenaerrors "github.com/silver2dream/agent-arena/internal/errors"
	"github.com/silver2dream/agent-arena/internal/history"
	"github.com/silver2dream/agent-arena/internal/judge"
	"github.com/silver2dream/agent-arena/internal/logging"
	"github.com/silver2dream/agent-arena/internal/speech"
	"github.com/silver2dream/agent-arena/internal/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	version := flag.Bool("version", false, "print the version and exit")
	demo := flag.Bool("demo", false, "test every configured voice, no agents run")
	showHistory := flag.Bool("history", false, "list recorded battles and exit")
	narrate := flag.Bool("narrate", false, "run a single narrated agent instead of a battle")
	rosterPath := flag.String("roster", "", "roster yaml file (default: embedded roster)")
	competitors := flag.Int("competitors", 3, "number of competitors (2-6)")
	seed := flag.Int64("seed", 0, "random seed, 0 means time-based")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.Version)
		return 0
	}

	task := strings.Join(flag.Args(), " ")
	if !*demo && !*showHistory && task == "" {
		usage()
		return 2
	}

	settings, err := config.Load()
	if err != nil {
		return fail(err)
	}
	if *seed != 0 {
		settings.Seed = *seed
	}
	log := logging.NewLogger(settings.Debug)
	defer log.Sync()

	if *showHistory {
		return runHistory(settings.HistoryPath, os.Stdout)
	}

	roster, err := loadRoster(*rosterPath)
	if err != nil {
		return fail(err)
	}
	selected, err := roster.Select(*competitors)
	if err != nil {
		return fail(err)
	}

	colored := term.IsTerminal(int(os.Stdout.Fd()))
	rng := settings.NewRand()

	// Speech pipeline. Without an API key the arena runs transcript-only.
	var synth speech.Synthesizer
	var sink speech.Sink
	if settings.CartesiaAPIKey == "" {
		log.Info("no CARTESIA_API_KEY set, running without audio")
		synth = speech.NewNoopSynthesizer()
		sink = speech.DiscardSink{}
	} else {
		synth = speech.NewCartesiaClient(settings.TTSBaseURL, settings.CartesiaAPIKey, settings.TTSModel, log)
		playerSink, err := speech.NewPlayerSink(settings.PlayerCommand)
		if err != nil {
			return fail(err)
		}
		sink = playerSink
	}

	playback := speech.NewPlayback(sink, log)
	playback.Start()
	defer playback.Stop()

	queue := speech.NewQueue(synth, playback, os.Stdout, settings.Tuning.SpeechGap, log)
	queue.Start()
	defer queue.Stop()

	if *demo {
		runDemo(selected, queue)
		return 0
	}

	if *narrate {
		return runNarrate(task, selected[0], settings, queue, rng, colored, log)
	}

	names := make([]string, len(selected))
	for i, competitor := range selected {
		names[i] = competitor.Name
	}
	state := battle.NewState(names)

	dashboard, err := web.NewServer(settings.DashboardPort, state, selected, log)
	if err != nil {
		return fail(err)
	}

	var recorder battle.Recorder
	if settings.HistoryPath != "" {
		store, err := history.Open(settings.HistoryPath)
		if err != nil {
			log.Warnw("history disabled", "error", err)
		} else {
			defer store.Close()
			recorder = store
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	arena := battle.NewArena(battle.ArenaParams{
		Competitors: selected,
		Task:        task,
		ArenaDir:    settings.ArenaDir,
		Tuning:      settings.Tuning,
		State:       state,
		Voice:       queue,
		Critic:      judge.NewClient(settings.JudgeTimeout, log),
		Dashboard:   dashboard,
		Artifacts:   web.NewArtifactHost(log),
		Recorder:    recorder,
		Rng:         rng,
		Out:         os.Stdout,
		Colored:     colored,
		Log:         log,
	})
	if err := arena.Run(ctx); err != nil {
		return fail(err)
	}

	queue.Flush(10 * time.Second)
	return 0
}

// fail prints the error with a category hint and maps it to an exit code.
func fail(err error) int {
	fmt.Fprintln(os.Stderr, err)
	fmt.Fprint(os.Stderr, failHint(err))
	return arenaerrors.GetExitCode(err)
}

func failHint(err error) string {
	switch {
	case arenaerrors.IsConfigError(err):
		return "run arena with no arguments for usage\n"
	case arenaerrors.IsAudioError(err):
		return "check ARENA_PLAYER_CMD, or unset CARTESIA_API_KEY to run transcript-only\n"
	case arenaerrors.IsNetworkError(err):
		return "set ARENA_DASHBOARD_PORT to bind the dashboard elsewhere\n"
	}
	return ""
}

// runHistory prints recorded battles, newest first, with standings and the
// critique round for each.
func runHistory(path string, out io.Writer) int {
	if path == "" {
		fmt.Fprintln(out, "History is disabled (ARENA_HISTORY_DB is empty).")
		return 0
	}
	store, err := history.Open(path)
	if err != nil {
		return fail(arenaerrors.NewGeneralErrorWithCause("failed to open battle history", err))
	}
	defer store.Close()

	battles, err := store.RecentBattles(10)
	if err != nil {
		return fail(arenaerrors.NewGeneralErrorWithCause("failed to read battle history", err))
	}
	if len(battles) == 0 {
		fmt.Fprintln(out, "No battles recorded yet.")
		return 0
	}
	for _, b := range battles {
		fmt.Fprintf(out, "%s  %q  👑 %s\n",
			b.FinishedAt.Local().Format("2006-01-02 15:04"), b.Task, b.Winner)
		results, err := store.BattleResults(b.ID)
		if err != nil {
			return fail(arenaerrors.NewGeneralErrorWithCause("failed to read battle history", err))
		}
		for _, r := range results {
			fmt.Fprintf(out, "   %-12s %3d HP  %s\n", r.Competitor, r.HP, r.Status)
		}
		critiques, err := store.BattleCritiques(b.ID)
		if err != nil {
			return fail(arenaerrors.NewGeneralErrorWithCause("failed to read battle history", err))
		}
		for _, c := range critiques {
			fmt.Fprintf(out, "   💥 %s hit %s for %d\n", c.Critic, c.Creator, c.Damage)
		}
	}
	return 0
}

func loadRoster(path string) (*config.Roster, error) {
	if path == "" {
		return config.DefaultRoster()
	}
	return config.LoadRoster(path)
}

// runNarrate runs one agent on the task with full narration: every parsed
// sentence is spoken and tool actions are shown, with no rivals and no
// damage round.
func runNarrate(task string, competitor config.Competitor, settings *config.Settings,
	queue *speech.Queue, rng *rand.Rand, colored bool, log *zap.SugaredLogger) int {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tuning := settings.Tuning
	tuning.SpeakProbability = 1
	tuning.TrashTalkProbability = 0
	tuning.ThinkingProbability = 0

	state := battle.NewState([]string{competitor.Name})
	worker := battle.NewWorker(battle.WorkerParams{
		Competitor: competitor,
		Task:       task,
		ArenaDir:   settings.ArenaDir,
		State:      state,
		Announcer:  queue,
		Tuning:     tuning,
		Rng:        rng,
		Out:        os.Stdout,
		Colored:    colored,
		Log:        log,
	})
	if _, err := worker.Run(ctx); err != nil {
		return fail(err)
	}
	queue.Flush(time.Minute)
	return 0
}

// runDemo exercises every configured voice without running any agents.
func runDemo(competitors []config.Competitor, queue *speech.Queue) {
	fmt.Println("🎙  Voice check, one line per competitor pool...")
	for _, competitor := range competitors {
		for _, text := range []string{
			competitor.Intro,
			strings.ReplaceAll(competitor.TrashTalk[0], "{opponent}", "the other agents"),
			competitor.Victory[0],
		} {
			queue.Enqueue(speech.Utterance{
				Text:    text,
				VoiceID: competitor.VoiceID,
				Speaker: competitor.Name,
				Color:   competitor.Color,
			})
		}
	}
	queue.Flush(2 * time.Minute)
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: arena [flags] <task description>

Runs competing AI coding agents against one task, with live narration,
an HP scoreboard, a post-battle critique round, and a web dashboard.

Flags:
  --demo              speak every configured voice, no agents run
  --history           list recorded battles and exit
  --narrate           run a single narrated agent instead of a battle
  --roster FILE       roster yaml file (default: embedded roster)
  --competitors N     number of competitors, 2-6 (default 3)
  --seed N            random seed, 0 means time-based

Example:
  arena build a retro snake game as a single html page
`)
}
