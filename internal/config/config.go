// Package config holds the arena's runtime settings and the competitor
// roster. Competitors are explicit immutable configuration passed into the
// arena at construction, never process-wide globals.
package config

import (
	"math/rand"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	arenaerrors "github.com/silver2dream/agent-arena/internal/errors"
)

// Settings holds environment-driven configuration.
type Settings struct {
	// Cartesia-style TTS service credentials and endpoint.
	CartesiaAPIKey string `envconfig:"CARTESIA_API_KEY"`
	TTSBaseURL     string `envconfig:"ARENA_TTS_URL" default:"https://api.cartesia.ai"`
	TTSModel       string `envconfig:"ARENA_TTS_MODEL" default:"sonic-2"`

	// Command used to drain raw PCM audio. Receives s16le mono 24000Hz on stdin.
	PlayerCommand string `envconfig:"ARENA_PLAYER_CMD" default:"aplay -q -r 24000 -f S16_LE -c 1 -t raw -"`

	Debug bool `envconfig:"ARENA_DEBUG" default:"false"`

	// Dashboard HTTP port. Artifact servers bind each competitor's own port.
	DashboardPort int `envconfig:"ARENA_DASHBOARD_PORT" default:"8000"`

	// HistoryPath is the sqlite file that records finished battles.
	// Empty disables persistence.
	HistoryPath string `envconfig:"ARENA_HISTORY_DB" default:"arena.db"`

	// ArenaDir is the parent of the per-competitor working directories.
	ArenaDir string `envconfig:"ARENA_DIR" default:"/tmp/battle_arena"`

	// Seed for the injected randomness source. 0 means time-based.
	Seed int64 `envconfig:"ARENA_SEED" default:"0"`

	// JudgeTimeout bounds each critique/scoring subprocess call.
	JudgeTimeout time.Duration `envconfig:"ARENA_JUDGE_TIMEOUT" default:"45s"`

	Tuning Tuning
}

// Tuning holds the narration pacing knobs. Tests pin these to 0 or 1 to
// force deterministic "never speak" or "always speak" behavior.
type Tuning struct {
	// Probability that a narration sentence is spoken aloud. The full text
	// is always printed to the transcript.
	SpeakProbability float64 `envconfig:"ARENA_SPEAK_PROB" default:"0.3"`

	// Trash talk cadence and probability per check.
	TrashTalkInterval    time.Duration `envconfig:"ARENA_TRASH_INTERVAL" default:"8s"`
	TrashTalkProbability float64       `envconfig:"ARENA_TRASH_PROB" default:"0.5"`

	// Thinking/self-hype cadence and probability per check.
	ThinkingInterval    time.Duration `envconfig:"ARENA_THINKING_INTERVAL" default:"12s"`
	ThinkingProbability float64       `envconfig:"ARENA_THINKING_PROB" default:"0.4"`

	// Delay between competitor launches.
	StaggerDelay time.Duration `envconfig:"ARENA_STAGGER_DELAY" default:"1s"`

	// Gap inserted between queued utterances.
	SpeechGap time.Duration `envconfig:"ARENA_SPEECH_GAP" default:"300ms"`
}

// Load reads .env (best-effort) and the ARENA_* environment.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	var settings Settings
	if err := envconfig.Process("", &settings); err != nil {
		return nil, arenaerrors.NewConfigErrorWithCause("failed to process environment", err)
	}
	return &settings, nil
}

// NewRand builds the injected randomness source from the configured seed.
func (s *Settings) NewRand() *rand.Rand {
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
