package battle

import (
	"sort"
	"sync"

	"github.com/enescakir/emoji"
)

// Competitor status values as reported by workers.
const (
	StatusStarting = "starting"
	StatusWorking  = "working"
	StatusFinished = "finished"
	StatusErrored  = "errored"
)

const (
	// MaxHP is every competitor's starting and ceiling health.
	MaxHP = 100

	// HealAmount is the fixed restoration after a defense utterance.
	HealAmount = 5
)

// StatusEmoji maps a worker status to its dashboard emoji.
func StatusEmoji(status string) string {
	switch status {
	case StatusStarting:
		return emoji.HourglassNotDone.String()
	case StatusWorking:
		return emoji.Fire.String()
	case StatusFinished:
		return emoji.CheckMarkButton.String()
	case StatusErrored:
		return emoji.CrossMark.String()
	default:
		return emoji.QuestionMark.String()
	}
}

// Progress is one competitor's live work status.
type Progress struct {
	Status string
	Lines  int
}

// CompetitorView is the serializable per-competitor slice of a snapshot.
type CompetitorView struct {
	Name   string `json:"name"`
	HP     int    `json:"hp"`
	Status string `json:"status"`
	Emoji  string `json:"emoji"`
	Lines  int    `json:"-"`
}

// Snapshot is a consistent copy of the battle at one instant.
type Snapshot struct {
	Competitors []CompetitorView `json:"competitors"`
	Winner      *string          `json:"winner"`
}

// State is the shared scoreboard mutated by workers, the commentary engine,
// and read by the progress renderer and dashboard. Progress and health are
// guarded by separate locks so a slow dashboard read never delays a damage
// application.
type State struct {
	order []string

	progressMu sync.Mutex
	progress   map[string]Progress

	healthMu sync.Mutex
	health   map[string]int
	winner   string
}

// NewState initializes every named competitor at full health, status
// starting. The name order given here decides tie-breaks.
func NewState(names []string) *State {
	s := &State{
		order:    append([]string{}, names...),
		progress: make(map[string]Progress, len(names)),
		health:   make(map[string]int, len(names)),
	}
	for _, name := range names {
		s.progress[name] = Progress{Status: StatusStarting}
		s.health[name] = MaxHP
	}
	return s
}

// UpdateProgress records a worker's status and output line count. Unknown
// names are ignored.
func (s *State) UpdateProgress(name, status string, lines int) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if _, ok := s.progress[name]; !ok {
		return
	}
	s.progress[name] = Progress{Status: status, Lines: lines}
}

// ApplyDamage subtracts amount from a competitor's health, clamped at zero.
// Returns the health after the hit.
func (s *State) ApplyDamage(name string, amount int) int {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	hp, ok := s.health[name]
	if !ok {
		return 0
	}
	hp -= amount
	if hp < 0 {
		hp = 0
	}
	s.health[name] = hp
	return hp
}

// Restore adds amount to a competitor's health, clamped at MaxHP. Returns
// the health after the heal.
func (s *State) Restore(name string, amount int) int {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	hp, ok := s.health[name]
	if !ok {
		return 0
	}
	hp += amount
	if hp > MaxHP {
		hp = MaxHP
	}
	s.health[name] = hp
	return hp
}

// HP returns a competitor's current health.
func (s *State) HP(name string) int {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	return s.health[name]
}

// SetWinner records the battle winner for subsequent snapshots.
func (s *State) SetWinner(name string) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	s.winner = name
}

// Snapshot copies out a consistent view for rendering and the dashboard.
// Competitors appear in registration order.
func (s *State) Snapshot() Snapshot {
	s.progressMu.Lock()
	progress := make(map[string]Progress, len(s.progress))
	for name, p := range s.progress {
		progress[name] = p
	}
	s.progressMu.Unlock()

	s.healthMu.Lock()
	health := make(map[string]int, len(s.health))
	for name, hp := range s.health {
		health[name] = hp
	}
	winner := s.winner
	s.healthMu.Unlock()

	snap := Snapshot{Competitors: make([]CompetitorView, 0, len(s.order))}
	for _, name := range s.order {
		p := progress[name]
		snap.Competitors = append(snap.Competitors, CompetitorView{
			Name:   name,
			HP:     health[name],
			Status: p.Status,
			Emoji:  StatusEmoji(p.Status),
			Lines:  p.Lines,
		})
	}
	if winner != "" {
		snap.Winner = &winner
	}
	return snap
}

// Winner picks the competitor with the highest health. Ties go to the
// earliest registered, so the outcome is deterministic for equal scores.
func (s *State) Winner() string {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	best := ""
	bestHP := -1
	for _, name := range s.order {
		if hp := s.health[name]; hp > bestHP {
			best = name
			bestHP = hp
		}
	}
	return best
}

// Standings returns competitors ordered by health descending, ties resolved
// by registration order. Used for the final scoreboard printout.
func (s *State) Standings() []CompetitorView {
	snap := s.Snapshot()
	views := snap.Competitors
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].HP > views[j].HP
	})
	return views
}
