package main

import (
	"log"
	"sync"
	"time"
)

// LobbyState is the matchmaking phase of one tier's lobby.
type LobbyState int

const (
	StateWaiting LobbyState = iota
	StateCountdown
	StatePlaying
	StateFinished
)

func (s LobbyState) String() string {
	switch s {
	case StateCountdown:
		return LobbyCountdown
	case StatePlaying:
		return LobbyPlaying
	case StateFinished:
		return LobbyFinished
	default:
		return LobbyWaiting
	}
}

// LobbyPlayer is one pre-game roster entry. Bots carry a nil client.
type LobbyPlayer struct {
	ID       string
	Name     string
	IsBot    bool
	AuthID   int64 // account id, 0 for guests and bots
	Client   Broadcaster
	JoinedAt time.Time
}

// Lobby is the matchmaking state machine for one stake tier. It exists for
// the process lifetime and cycles waiting -> countdown -> playing -> waiting;
// in the playing state it has exactly one live GameRoom.
type Lobby struct {
	mu          sync.Mutex
	tier        TierConfig
	world       *World
	roster      map[string]*LobbyPlayer
	spectators  map[string]Broadcaster
	state       LobbyState
	countdownAt time.Time // zero unless counting down
	room        *GameRoom
	botFill     bool
}

// NewLobby creates the lobby for a tier.
func NewLobby(tier TierConfig, world *World, botFill bool) *Lobby {
	return &Lobby{
		tier:       tier,
		world:      world,
		roster:     make(map[string]*LobbyPlayer),
		spectators: make(map[string]Broadcaster),
		botFill:    botFill,
	}
}

// Join adds a player to the roster. Returns ok=false with a human-readable
// reason when the join is rejected. A join during countdown with a full
// roster succeeds only if a bot can be evicted to make room.
func (l *Lobby) Join(id, name string, isBot bool, authID int64, client Broadcaster) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StatePlaying || l.state == StateFinished {
		return false, "game in progress, spectate instead"
	}
	if _, ok := l.roster[id]; ok {
		return false, "already in this lobby"
	}
	if len(l.roster) >= l.tier.MaxPlayers {
		if isBot || !l.evictBotLocked() {
			return false, "lobby full"
		}
	}
	l.roster[id] = &LobbyPlayer{ID: id, Name: name, IsBot: isBot, AuthID: authID, Client: client, JoinedAt: time.Now()}
	// Roster churn during countdown never resets the timer.
	if l.state == StateWaiting && len(l.roster) >= l.tier.MinPlayers {
		l.startCountdownLocked()
	}
	return true, ""
}

// evictBotLocked removes one bot roster entry; real players are always
// preferred over bots. Caller holds l.mu.
func (l *Lobby) evictBotLocked() bool {
	for id, lp := range l.roster {
		if lp.IsBot {
			delete(l.roster, id)
			return true
		}
	}
	return false
}

// Leave removes a player from the roster. Dropping below the minimum during
// countdown reverts the lobby to waiting.
func (l *Lobby) Leave(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.roster[id]; !ok {
		return
	}
	delete(l.roster, id)
	if l.state == StateCountdown && len(l.roster) < l.tier.MinPlayers {
		l.state = StateWaiting
		l.countdownAt = time.Time{}
		l.sendRosterLocked(Envelope{T: MsgError, Data: ErrorMsg{Msg: "countdown cancelled: not enough players"}})
	}
}

// HasPlayer reports roster membership.
func (l *Lobby) HasPlayer(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.roster[id]
	return ok
}

// Room returns the live room, or nil outside the playing state.
func (l *Lobby) Room() *GameRoom {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.room
}

// Spectate attaches a watch-only client to the live game. Rejected with a
// clear reason when no game is in progress.
func (l *Lobby) Spectate(id string, client Broadcaster) (bool, string, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StatePlaying || l.room == nil {
		return false, "", "no game in progress"
	}
	l.spectators[id] = client
	l.room.AddSpectator(id, client)
	return true, l.room.ID(), ""
}

// StopSpectating detaches a spectator.
func (l *Lobby) StopSpectating(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.spectators, id)
	if l.room != nil {
		l.room.RemoveSpectator(id)
	}
}

// startCountdownLocked enters the countdown state and schedules the
// deferred expiry check. Caller holds l.mu.
func (l *Lobby) startCountdownLocked() {
	l.state = StateCountdown
	l.countdownAt = time.Now()
	at := l.countdownAt
	log.Printf("lobby %s: countdown started with %d players", l.tier.ID, len(l.roster))
	time.AfterFunc(l.tier.Countdown, func() { l.countdownExpired(at) })
}

// countdownExpired fires after the countdown duration. The lobby state is
// re-validated at fire time: joins, leaves, and cancellations can invalidate
// a scheduled transition before it fires. The timer also carries the start
// timestamp of the countdown that scheduled it; a cancelled countdown's
// timer keeps firing, and without this check it would start the game for a
// newer countdown that has not elapsed yet.
func (l *Lobby) countdownExpired(at time.Time) {
	l.mu.Lock()
	if l.state != StateCountdown || !l.countdownAt.Equal(at) {
		l.mu.Unlock()
		return
	}
	if len(l.roster) < l.tier.MinPlayers {
		l.state = StateWaiting
		l.countdownAt = time.Time{}
		l.sendRosterLocked(Envelope{T: MsgError, Data: ErrorMsg{Msg: "countdown cancelled: not enough players"}})
		l.mu.Unlock()
		return
	}
	room := l.startGameLocked()
	l.mu.Unlock()
	if room != nil {
		room.Start()
	}
}

// startGameLocked constructs the room and transfers the roster into it.
// Guarded against double starts: a lobby never owns two live rooms.
// Caller holds l.mu; the returned room must be started outside the lock.
func (l *Lobby) startGameLocked() *GameRoom {
	if l.room != nil {
		log.Printf("lobby %s: duplicate start suppressed (room %s live)", l.tier.ID, l.room.ID())
		return nil
	}
	room := l.world.createRoom(l.tier, l.onRoomEnd)
	for _, lp := range l.roster {
		room.AddPlayer(lp.ID, lp.Name, lp.IsBot, lp.AuthID)
		if lp.Client != nil {
			room.SetClient(lp.ID, lp.Client)
		}
	}
	for id, c := range l.spectators {
		room.AddSpectator(id, c)
	}
	l.room = room
	l.state = StatePlaying
	l.countdownAt = time.Time{}
	log.Printf("lobby %s: game %s started with %d players", l.tier.ID, room.ID(), len(l.roster))
	return room
}

// onRoomEnd runs after the room's end sequence and viewing delay: the
// cleanup half of the cycle. The roster and spectator set clear, the room
// reference drops (defensively, whatever state we find), and the lobby
// returns to waiting.
func (l *Lobby) onRoomEnd(roomID string) {
	l.world.removeRoom(roomID)
	l.mu.Lock()
	ids := make([]string, 0, len(l.roster))
	for id := range l.roster {
		ids = append(ids, id)
	}
	l.roster = make(map[string]*LobbyPlayer)
	l.spectators = make(map[string]Broadcaster)
	l.room = nil
	l.state = StateWaiting
	l.countdownAt = time.Time{}
	l.mu.Unlock()
	// Players from the finished match are free to join any tier again
	l.world.releasePlayers(ids, l.tier.ID)
	log.Printf("lobby %s: room %s cleaned up, back to waiting", l.tier.ID, roomID)
	l.FillBots()
}

// FillBots synthesizes bot roster entries up to the tier minimum while the
// lobby is waiting, then re-evaluates the countdown transition. No-op unless
// bot fill is enabled.
func (l *Lobby) FillBots() {
	if !l.botFill {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateWaiting {
		return
	}
	bots := 0
	for _, lp := range l.roster {
		if lp.IsBot {
			bots++
		}
	}
	for len(l.roster) < l.tier.MinPlayers && bots < BotFillMax {
		id, name := NextBotIdentity()
		l.roster[id] = &LobbyPlayer{ID: id, Name: name, IsBot: true, JoinedAt: time.Now()}
		bots++
	}
	if l.state == StateWaiting && len(l.roster) >= l.tier.MinPlayers {
		l.startCountdownLocked()
	}
}

// Disconnect handles a dropped connection: elimination if the player is
// mid-game, lobby departure if pre-game. Returns true if the player was
// known here.
func (l *Lobby) Disconnect(id string) bool {
	l.mu.Lock()
	room := l.room
	_, inRoster := l.roster[id]
	_, spectating := l.spectators[id]
	l.mu.Unlock()

	if room != nil && room.HasPlayer(id) {
		room.EliminatePlayer(id)
		return true
	}
	if spectating {
		l.StopSpectating(id)
		return true
	}
	if inRoster {
		l.Leave(id)
		return true
	}
	return false
}

// Snapshot builds the read-only status projection. While playing, the
// roster composition comes from the live room so in-game eliminations are
// reflected, not from the stale lobby roster.
func (l *Lobby) Snapshot() LobbyStatusMsg {
	l.mu.Lock()
	state := l.state
	room := l.room
	countdownAt := l.countdownAt
	humans, bots := 0, 0
	for _, lp := range l.roster {
		if lp.IsBot {
			bots++
		} else {
			humans++
		}
	}
	spectators := len(l.spectators)
	l.mu.Unlock()

	msg := LobbyStatusMsg{
		Tier:       l.tier.ID,
		Status:     state.String(),
		Humans:     humans,
		Bots:       bots,
		MaxPlayers: l.tier.MaxPlayers,
		Spectators: spectators,
	}
	if state == StateCountdown && !countdownAt.IsZero() {
		remain := l.tier.Countdown.Seconds() - time.Since(countdownAt).Seconds()
		if remain < 0 {
			remain = 0
		}
		msg.CountdownIn = round1(remain)
	}
	if state == StatePlaying && room != nil {
		msg.Humans, msg.Bots = room.RosterCounts()
		msg.Spectators = room.SpectatorCount()
		msg.TimeLeft = round1(room.TimeLeft())
	}
	return msg
}

// Idle reports whether there is nothing to broadcast about.
func (l *Lobby) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StateWaiting && len(l.roster) == 0 && len(l.spectators) == 0
}

// sendRosterLocked fans a JSON envelope out to human roster members.
// Caller holds l.mu.
func (l *Lobby) sendRosterLocked(msg Envelope) {
	for _, lp := range l.roster {
		if lp.Client != nil {
			lp.Client.SendJSON(msg)
		}
	}
	for _, c := range l.spectators {
		c.SendJSON(msg)
	}
}

// broadcastStatus pushes the current projection to roster members and
// spectators.
func (l *Lobby) broadcastStatus() {
	snap := l.Snapshot()
	msg := Envelope{T: MsgLobbyStatus, Data: snap}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendRosterLocked(msg)
}
