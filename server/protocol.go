package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoinLobby  = "join"     // join a stake tier lobby
	MsgLeaveLobby = "leave"    // leave the current lobby
	MsgMove       = "move"     // steering target update
	MsgSplit      = "split"    // split all eligible blobs
	MsgEject      = "eject"    // eject mass from all eligible blobs
	MsgSpectate   = "spectate" // watch the live game of a tier
	MsgTiers      = "tiers"    // list tiers and lobby occupancy
	MsgRegister   = "register"
	MsgLogin      = "login"
	MsgAuth       = "auth" // resume session from a stored token
	MsgProfile    = "profile"
)

// Server -> Client message types
const (
	MsgWelcome     = "welcome"  // connection accepted, carries player id
	MsgJoined      = "joined"   // lobby join confirmed
	MsgLobbyStatus = "lobby"    // lobby status projection, >=1Hz while non-idle
	MsgGameStart   = "start"    // room created and ticking
	MsgState       = "state"    // binary msgpack snapshot (not JSON)
	MsgElim        = "elim"     // a player was eliminated
	MsgGameEnd     = "end"      // final rankings + winner
	MsgSpectating  = "watching" // spectate accepted
	MsgTierList    = "tierlist"
	MsgError       = "error"
	MsgAuthOK      = "auth_ok"
	MsgProfileData = "profile_data"
)

// Lobby status strings as sent on the wire
const (
	LobbyWaiting   = "waiting"
	LobbyCountdown = "countdown"
	LobbyPlaying   = "playing"
	LobbyFinished  = "finished"
)

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages (json.RawMessage avoids double-unmarshal)
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinLobbyMsg asks to enter the roster of a stake tier
type JoinLobbyMsg struct {
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// MoveMsg carries a steering target in world coordinates
type MoveMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AimMsg carries an optional aim point for split/eject. When HasAim is false
// the action falls back to the blob's current travel direction.
type AimMsg struct {
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	HasAim bool    `json:"aim,omitempty"`
}

// SpectateMsg asks to watch a tier's live game
type SpectateMsg struct {
	Tier string `json:"tier"`
}

// WelcomeMsg is sent once after the connection upgrades
type WelcomeMsg struct {
	PlayerID string `json:"id"`
}

// JoinedMsg confirms lobby entry
type JoinedMsg struct {
	Tier string `json:"tier"`
}

// LobbyStatusMsg is the read-only lobby projection. While a game is playing
// the roster composition reflects the live room, not the stale lobby roster.
type LobbyStatusMsg struct {
	Tier        string  `json:"tier"`
	Status      string  `json:"status"`
	Humans      int     `json:"humans"`
	Bots        int     `json:"bots"`
	MaxPlayers  int     `json:"max"`
	Spectators  int     `json:"spec"`
	CountdownIn float64 `json:"countdown,omitempty"` // seconds until game start
	TimeLeft    float64 `json:"left,omitempty"`      // seconds of game remaining
}

// GameStartMsg announces a new room
type GameStartMsg struct {
	RoomID    string `json:"rid"`
	Tier      string `json:"tier"`
	StartedAt int64  `json:"ts"` // unix millis
	MapW      float64 `json:"w"`
	MapH      float64 `json:"h"`
}

// SpectatingMsg confirms a spectate request
type SpectatingMsg struct {
	RoomID string `json:"rid"`
}

// ElimMsg is broadcast when a player is eliminated. Killer is empty for
// boundary/zone deaths.
type ElimMsg struct {
	Victim string `json:"v"`
	Killer string `json:"k,omitempty"`
}

// BlobState is one blob inside a state snapshot
type BlobState struct {
	PID   string  `msgpack:"p"`
	ID    string  `msgpack:"i"`
	X     float64 `msgpack:"x"`
	Y     float64 `msgpack:"y"`
	Mass  float64 `msgpack:"m"`
	Color string  `msgpack:"c"`
}

// PelletState is one pellet inside a state snapshot
type PelletState struct {
	ID    string  `msgpack:"i"`
	X     float64 `msgpack:"x"`
	Y     float64 `msgpack:"y"`
	Mass  float64 `msgpack:"m"`
	Color string  `msgpack:"c"`
}

// RankEntry is one leaderboard row (live top-10 or final ranking)
type RankEntry struct {
	Rank int     `msgpack:"r" json:"rank"`
	ID   string  `msgpack:"i" json:"id"`
	Name string  `msgpack:"n" json:"name"`
	Mass float64 `msgpack:"m" json:"mass"`
}

// BoundsState is the current (possibly shrunk) map bounds
type BoundsState struct {
	MinX float64 `msgpack:"a"`
	MinY float64 `msgpack:"b"`
	MaxX float64 `msgpack:"c"`
	MaxY float64 `msgpack:"d"`
}

// Snapshot is the full-state broadcast, msgpack-encoded and sent as a binary
// frame at a throttled cadence. Full state was chosen over delta compression
// for simplicity; it changes bandwidth, not correctness.
type Snapshot struct {
	RoomID      string        `msgpack:"rid"`
	Tick        uint64        `msgpack:"t"`
	Blobs       []BlobState   `msgpack:"b"`
	Pellets     []PelletState `msgpack:"f"`
	Leaderboard []RankEntry   `msgpack:"l"`
	Spectators  int           `msgpack:"s"`
	Bounds      BoundsState   `msgpack:"w"`
	TimeLeft    float64       `msgpack:"r"`
}

// FinalStats is the per-player stat block in the game-end report
type FinalStats struct {
	PelletsEaten int     `json:"pellets"`
	CellsEaten   int     `json:"cells"`
	MaxMass      float64 `json:"maxMass"`
	LeaderTime   float64 `json:"leaderTime"`
	BestRank     int     `json:"bestRank"`
	TimeSurvived float64 `json:"survived"`
}

// GameEndMsg is broadcast once when a room finishes. WinnerID is empty on a
// draw.
type GameEndMsg struct {
	RoomID   string                `json:"rid"`
	WinnerID string                `json:"winner,omitempty"`
	Rankings []RankEntry           `json:"rankings"`
	Stats    map[string]FinalStats `json:"stats"`
}

// TierInfo is one row of the tier list
type TierInfo struct {
	Tier       string  `json:"tier"`
	Stake      float64 `json:"stake"`
	Status     string  `json:"status"`
	Players    int     `json:"players"`
	MaxPlayers int     `json:"max"`
}

// ErrorMsg sends a human-readable rejection reason to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// LoginMsg authenticates an existing account
type LoginMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// AuthMsg resumes a session from a stored token
type AuthMsg struct {
	Token string `json:"tok"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"tok"`
	Username string `json:"u"`
	PlayerID int64  `json:"pid"`
}

// ProfileDataMsg reports persisted all-time stats for the logged-in account
type ProfileDataMsg struct {
	Username   string  `json:"u"`
	Games      int     `json:"games"`
	Wins       int     `json:"wins"`
	BestMass   float64 `json:"bestMass"`
	CellsEaten int     `json:"cells"`
	Playtime   float64 `json:"playtime"`
}
