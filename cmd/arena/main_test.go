package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	arenaerrors "github.com/silver2dream/agent-arena/internal/errors"
	"github.com/silver2dream/agent-arena/internal/history"
)

func TestRunHistory_ListsRecordedBattles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	battle := history.BattleRecord{
		ID:         history.NewBattleID(),
		Task:       "build a snake game",
		Winner:     "SpeedDemon",
		StartedAt:  time.Now().Add(-time.Minute).UTC(),
		FinishedAt: time.Now().UTC(),
	}
	results := []history.ResultRecord{
		{BattleID: battle.ID, Competitor: "SpeedDemon", HP: 88, Status: "finished", Events: 40},
		{BattleID: battle.ID, Competitor: "Architect", HP: 61, Status: "finished", Events: 52},
	}
	critiques := []history.CritiqueRecord{
		{BattleID: battle.ID, Critic: "Architect", Creator: "SpeedDemon", Critique: "rushed", Damage: 12},
	}
	if err := store.SaveBattle(battle, results, critiques); err != nil {
		t.Fatal(err)
	}
	store.Close()

	var out bytes.Buffer
	if code := runHistory(path, &out); code != 0 {
		t.Fatalf("runHistory exit = %d", code)
	}
	body := out.String()
	for _, want := range []string{
		"build a snake game",
		"SpeedDemon",
		"88 HP",
		"hit SpeedDemon for 12",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("history output missing %q:\n%s", want, body)
		}
	}
}

func TestRunHistory_EmptyAndDisabled(t *testing.T) {
	var out bytes.Buffer
	if code := runHistory("", &out); code != 0 {
		t.Fatalf("disabled history exit = %d", code)
	}
	if !strings.Contains(out.String(), "disabled") {
		t.Errorf("expected disabled notice, got %q", out.String())
	}

	out.Reset()
	path := filepath.Join(t.TempDir(), "arena.db")
	if code := runHistory(path, &out); code != 0 {
		t.Fatalf("empty history exit = %d", code)
	}
	if !strings.Contains(out.String(), "No battles recorded yet.") {
		t.Errorf("expected empty notice, got %q", out.String())
	}
}

func TestFailHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config", arenaerrors.NewConfigError("bad roster"), "usage"},
		{"audio", arenaerrors.NewAudioError("no device"), "ARENA_PLAYER_CMD"},
		{"network", arenaerrors.NewNetworkErrorWithCause("bind failed", errors.New("in use")), "ARENA_DASHBOARD_PORT"},
		{"plain", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := failHint(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("expected no hint, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("hint %q missing %q", got, tt.want)
			}
		})
	}
}
