// Package history persists battle records to a local SQLite database.
// Persistence is best-effort: a failed write is logged by the caller and
// never aborts a battle.
package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS battles (
	id TEXT PRIMARY KEY,
	task TEXT NOT NULL,
	winner TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	battle_id TEXT NOT NULL REFERENCES battles(id),
	competitor TEXT NOT NULL,
	hp INTEGER NOT NULL,
	status TEXT NOT NULL,
	events INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS critiques (
	battle_id TEXT NOT NULL REFERENCES battles(id),
	critic TEXT NOT NULL,
	creator TEXT NOT NULL,
	critique TEXT NOT NULL,
	damage INTEGER NOT NULL
);
`

// BattleRecord is one finished battle.
type BattleRecord struct {
	ID         string    `db:"id"`
	Task       string    `db:"task"`
	Winner     string    `db:"winner"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
}

// ResultRecord is one competitor's final standing in a battle.
type ResultRecord struct {
	BattleID   string `db:"battle_id"`
	Competitor string `db:"competitor"`
	HP         int    `db:"hp"`
	Status     string `db:"status"`
	Events     int    `db:"events"`
}

// CritiqueRecord is one scored critique from the commentary round.
type CritiqueRecord struct {
	BattleID string `db:"battle_id"`
	Critic   string `db:"critic"`
	Creator  string `db:"creator"`
	Critique string `db:"critique"`
	Damage   int    `db:"damage"`
}

// Store wraps the battle history database.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite file at path, creating the schema if needed.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewBattleID issues a fresh battle identifier.
func NewBattleID() string {
	return uuid.NewString()
}

// SaveBattle writes one battle with its per-competitor results and critiques
// in a single transaction.
func (s *Store) SaveBattle(battle BattleRecord, results []ResultRecord, critiques []CritiqueRecord) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin history tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExec(`
		INSERT INTO battles (id, task, winner, started_at, finished_at)
		VALUES (:id, :task, :winner, :started_at, :finished_at)
	`, battle); err != nil {
		return fmt.Errorf("failed to insert battle: %w", err)
	}
	for _, result := range results {
		if _, err := tx.NamedExec(`
			INSERT INTO results (battle_id, competitor, hp, status, events)
			VALUES (:battle_id, :competitor, :hp, :status, :events)
		`, result); err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}
	for _, critique := range critiques {
		if _, err := tx.NamedExec(`
			INSERT INTO critiques (battle_id, critic, creator, critique, damage)
			VALUES (:battle_id, :critic, :creator, :critique, :damage)
		`, critique); err != nil {
			return fmt.Errorf("failed to insert critique: %w", err)
		}
	}
	return tx.Commit()
}

// RecentBattles returns the newest battles first.
func (s *Store) RecentBattles(limit int) ([]BattleRecord, error) {
	var battles []BattleRecord
	err := s.db.Select(&battles,
		"SELECT * FROM battles ORDER BY finished_at DESC LIMIT ?", limit)
	return battles, err
}

// BattleResults returns the standings recorded for one battle.
func (s *Store) BattleResults(battleID string) ([]ResultRecord, error) {
	var results []ResultRecord
	err := s.db.Select(&results,
		"SELECT * FROM results WHERE battle_id = ? ORDER BY hp DESC", battleID)
	return results, err
}

// BattleCritiques returns the critiques recorded for one battle.
func (s *Store) BattleCritiques(battleID string) ([]CritiqueRecord, error) {
	var critiques []CritiqueRecord
	err := s.db.Select(&critiques,
		"SELECT * FROM critiques WHERE battle_id = ? ORDER BY rowid", battleID)
	return critiques, err
}
