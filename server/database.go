package main

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PlayerRow represents an account record in the database
type PlayerRow struct {
	ID        int64
	Username  string
	PassHash  string
	IsGuest   bool
	CreatedAt time.Time
}

// StatsRow represents a player's persisted all-time stats
type StatsRow struct {
	PlayerID   int64
	Games      int
	Wins       int
	BestMass   float64
	CellsEaten int
	Playtime   float64 // seconds
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		is_guest INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats (
		player_id INTEGER PRIMARY KEY REFERENCES players(id),
		games INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		best_mass REAL NOT NULL DEFAULT 0,
		cells_eaten INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		winner_id TEXT NOT NULL DEFAULT '',
		player_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id TEXT NOT NULL REFERENCES matches(id),
		player_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_bot INTEGER NOT NULL DEFAULT 0,
		rank INTEGER NOT NULL DEFAULT 0,
		final_mass REAL NOT NULL DEFAULT 0,
		max_mass REAL NOT NULL DEFAULT 0,
		pellets_eaten INTEGER NOT NULL DEFAULT 0,
		cells_eaten INTEGER NOT NULL DEFAULT 0,
		leader_time REAL NOT NULL DEFAULT 0,
		time_survived REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, player_id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_player ON match_players(player_id);
	CREATE INDEX IF NOT EXISTS idx_matches_tier ON matches(tier);
	CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// GetSetting returns a settings value, or "" when absent
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// SetSetting upserts a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// CreatePlayer creates a new account (returns player ID)
func (db *DB) CreatePlayer(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	// Create stats row
	_, err = db.conn.Exec("INSERT INTO stats (player_id) VALUES (?)", id)
	return id, err
}

// CreateGuest creates a guest account (no password)
func (db *DB) CreateGuest(username string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, is_guest) VALUES (?, 1)",
		username,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, err = db.conn.Exec("INSERT INTO stats (player_id) VALUES (?)", id)
	return id, err
}

// UsernameExists reports whether an account name is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(1) FROM players WHERE username = ?", username).Scan(&n)
	return n > 0, err
}

// GetPlayerByUsername returns an account by username, nil when absent
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, is_guest, created_at FROM players WHERE username = ?",
		username,
	)
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.IsGuest, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetStats returns an account's all-time stats, nil when absent
func (db *DB) GetStats(playerID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(
		"SELECT player_id, games, wins, best_mass, cells_eaten, playtime FROM stats WHERE player_id = ?",
		playerID,
	)
	s := &StatsRow{}
	err := row.Scan(&s.PlayerID, &s.Games, &s.Wins, &s.BestMass, &s.CellsEaten, &s.Playtime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// UpdateStatsAfterMatch folds one finished match into an account's all-time
// stats
func (db *DB) UpdateStatsAfterMatch(playerID int64, won bool, maxMass float64, cellsEaten int, survived float64) error {
	winInc := 0
	if won {
		winInc = 1
	}
	_, err := db.conn.Exec(`
		UPDATE stats SET
			games = games + 1,
			wins = wins + ?,
			best_mass = MAX(best_mass, ?),
			cells_eaten = cells_eaten + ?,
			playtime = playtime + ?
		WHERE player_id = ?`,
		winInc, maxMass, cellsEaten, survived, playerID,
	)
	return err
}

// RecordMatch records a completed match
func (db *DB) RecordMatch(matchID, tier string, duration float64, winnerID string, playerCount int) error {
	_, err := db.conn.Exec(
		"INSERT INTO matches (id, tier, duration, winner_id, player_count) VALUES (?, ?, ?, ?, ?)",
		matchID, tier, duration, winnerID, playerCount,
	)
	return err
}

// RecordMatchPlayer records one player's final standing in a match
func (db *DB) RecordMatchPlayer(matchID, playerID, name string, isBot bool, rank int, finalMass, maxMass float64, pellets, cells int, leaderTime, survived float64) error {
	_, err := db.conn.Exec(
		`INSERT INTO match_players
		 (match_id, player_id, name, is_bot, rank, final_mass, max_mass, pellets_eaten, cells_eaten, leader_time, time_survived)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		matchID, playerID, name, isBot, rank, finalMass, maxMass, pellets, cells, leaderTime, survived,
	)
	return err
}

// AllTimeEntry is one row of the persisted all-time leaderboard
type AllTimeEntry struct {
	Rank     int     `json:"rank"`
	Username string  `json:"username"`
	Games    int     `json:"games"`
	Wins     int     `json:"wins"`
	BestMass float64 `json:"bestMass"`
}

// GetAllTimeLeaderboard returns top accounts ordered by wins, guests
// excluded
func (db *DB) GetAllTimeLeaderboard(limit int) ([]AllTimeEntry, error) {
	rows, err := db.conn.Query(`
		SELECT p.username, s.games, s.wins, s.best_mass
		FROM stats s JOIN players p ON p.id = s.player_id
		WHERE p.is_guest = 0
		ORDER BY s.wins DESC, s.best_mass DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AllTimeEntry
	rank := 1
	for rows.Next() {
		var e AllTimeEntry
		if err := rows.Scan(&e.Username, &e.Games, &e.Wins, &e.BestMass); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// MatchSummary is one row of a player's match history
type MatchSummary struct {
	MatchID   string    `json:"id"`
	Tier      string    `json:"tier"`
	Rank      int       `json:"rank"`
	FinalMass float64   `json:"finalMass"`
	Won       bool      `json:"won"`
	CreatedAt time.Time `json:"at"`
}

// GetMatchHistory returns recent matches for a player id
func (db *DB) GetMatchHistory(playerID string, limit int) ([]MatchSummary, error) {
	rows, err := db.conn.Query(`
		SELECT m.id, m.tier, mp.rank, mp.final_mass, m.winner_id, m.created_at
		FROM match_players mp JOIN matches m ON m.id = mp.match_id
		WHERE mp.player_id = ?
		ORDER BY m.created_at DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchSummary
	for rows.Next() {
		var s MatchSummary
		var winnerID string
		if err := rows.Scan(&s.MatchID, &s.Tier, &s.Rank, &s.FinalMass, &winnerID, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Won = winnerID != "" && winnerID == playerID
		result = append(result, s)
	}
	return result, rows.Err()
}
