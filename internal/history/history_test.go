package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadBattle(t *testing.T) {
	store := openTestStore(t)

	id := NewBattleID()
	started := time.Now().Add(-5 * time.Minute).UTC().Truncate(time.Second)
	finished := time.Now().UTC().Truncate(time.Second)

	battle := BattleRecord{
		ID: id, Task: "build a snake game", Winner: "Architect",
		StartedAt: started, FinishedAt: finished,
	}
	results := []ResultRecord{
		{BattleID: id, Competitor: "Architect", HP: 82, Status: "finished", Events: 120},
		{BattleID: id, Competitor: "SpeedDemon", HP: 64, Status: "finished", Events: 80},
	}
	critiques := []CritiqueRecord{
		{BattleID: id, Critic: "SpeedDemon", Creator: "Architect", Critique: "too many files", Damage: 9},
	}

	if err := store.SaveBattle(battle, results, critiques); err != nil {
		t.Fatalf("SaveBattle: %v", err)
	}

	battles, err := store.RecentBattles(10)
	if err != nil {
		t.Fatalf("RecentBattles: %v", err)
	}
	if len(battles) != 1 || battles[0].ID != id || battles[0].Winner != "Architect" {
		t.Errorf("battles = %+v", battles)
	}

	gotResults, err := store.BattleResults(id)
	if err != nil {
		t.Fatalf("BattleResults: %v", err)
	}
	if len(gotResults) != 2 || gotResults[0].Competitor != "Architect" || gotResults[0].HP != 82 {
		t.Errorf("results = %+v", gotResults)
	}

	gotCritiques, err := store.BattleCritiques(id)
	if err != nil {
		t.Fatalf("BattleCritiques: %v", err)
	}
	if len(gotCritiques) != 1 || gotCritiques[0].Damage != 9 {
		t.Errorf("critiques = %+v", gotCritiques)
	}
}

func TestRecentBattles_NewestFirst(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, task := range []string{"first", "second", "third"} {
		record := BattleRecord{
			ID:         NewBattleID(),
			Task:       task,
			Winner:     "SpeedDemon",
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
		}
		if err := store.SaveBattle(record, nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	battles, err := store.RecentBattles(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(battles) != 2 || battles[0].Task != "third" || battles[1].Task != "second" {
		t.Errorf("battles = %+v", battles)
	}
}

func TestBattleResults_UnknownBattle(t *testing.T) {
	store := openTestStore(t)
	results, err := store.BattleResults("no-such-id")
	if err != nil {
		t.Fatalf("BattleResults: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want empty", results)
	}
}
