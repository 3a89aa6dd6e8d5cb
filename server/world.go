package main

import (
	"sync"
	"time"
)

// World owns the process-wide mapping from tier to Lobby and from room id to
// GameRoom. Lobbies are created at boot and live forever; rooms are created
// on demand and destroyed when their match ends. There are no ambient
// globals: everything reaches rooms and lobbies through here.
type World struct {
	mu      sync.RWMutex
	lobbies map[string]*Lobby
	rooms   map[string]*GameRoom

	// playerTier tracks which lobby each player currently belongs to; a
	// player may belong to at most one roster at a time.
	playerTier map[string]string

	roomCfg RoomConfig
	payout  PayoutNotifier
	results ResultSink

	stopc chan struct{}
	once  sync.Once
}

// NewWorld creates the world with one lobby per configured tier.
func NewWorld(roomCfg RoomConfig, payout PayoutNotifier, results ResultSink, botFill bool) *World {
	w := &World{
		lobbies:    make(map[string]*Lobby),
		rooms:      make(map[string]*GameRoom),
		playerTier: make(map[string]string),
		roomCfg:    roomCfg,
		payout:     payout,
		results:    results,
		stopc:      make(chan struct{}),
	}
	for _, tier := range Tiers {
		w.lobbies[tier.ID] = NewLobby(tier, w, botFill)
	}
	return w
}

// Run drives the periodic lobby status broadcast and bot fill checks.
// Blocks until Stop.
func (w *World) Run() {
	ticker := time.NewTicker(StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, l := range w.lobbyList() {
				l.FillBots()
				if !l.Idle() {
					l.broadcastStatus()
				}
			}
		case <-w.stopc:
			return
		}
	}
}

// Stop halts the status loop and stops every live room.
func (w *World) Stop() {
	w.once.Do(func() { close(w.stopc) })
	w.mu.Lock()
	rooms := make([]*GameRoom, 0, len(w.rooms))
	for _, r := range w.rooms {
		rooms = append(rooms, r)
	}
	w.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
	}
}

func (w *World) lobbyList() []*Lobby {
	w.mu.RLock()
	defer w.mu.RUnlock()
	list := make([]*Lobby, 0, len(w.lobbies))
	for _, l := range w.lobbies {
		list = append(list, l)
	}
	return list
}

// Lobby returns the lobby for a tier id.
func (w *World) Lobby(tier string) *Lobby {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lobbies[tier]
}

// createRoom constructs and registers a new room for a tier.
func (w *World) createRoom(tier TierConfig, onEnd func(string)) *GameRoom {
	room := NewGameRoom(tier, w.roomCfg, w.payout, w.results, onEnd)
	w.mu.Lock()
	w.rooms[room.ID()] = room
	w.mu.Unlock()
	return room
}

// removeRoom drops a room from the registry after teardown.
func (w *World) removeRoom(roomID string) {
	w.mu.Lock()
	delete(w.rooms, roomID)
	w.mu.Unlock()
}

// releasePlayers clears roster ids out of the one-roster-per-player index
// when a room is torn down. Entries that already moved to a different tier
// are left alone.
func (w *World) releasePlayers(ids []string, tier string) {
	w.mu.Lock()
	for _, id := range ids {
		if w.playerTier[id] == tier {
			delete(w.playerTier, id)
		}
	}
	w.mu.Unlock()
}

// RoomCount returns the number of live rooms.
func (w *World) RoomCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.rooms)
}

// JoinLobby routes a join request, enforcing the one-roster-per-player rule.
func (w *World) JoinLobby(playerID, name, tier string, authID int64, client Broadcaster) (bool, string) {
	lobby := w.Lobby(tier)
	if lobby == nil {
		return false, "unknown tier"
	}
	w.mu.Lock()
	if prev, ok := w.playerTier[playerID]; ok && prev != tier {
		w.mu.Unlock()
		return false, "already in another lobby"
	}
	w.mu.Unlock()

	ok, reason := lobby.Join(playerID, name, false, authID, client)
	if !ok {
		return false, reason
	}
	w.mu.Lock()
	w.playerTier[playerID] = tier
	w.mu.Unlock()
	return true, ""
}

// LeaveLobby removes a player from their lobby roster.
func (w *World) LeaveLobby(playerID string) {
	w.mu.Lock()
	tier, ok := w.playerTier[playerID]
	if ok {
		delete(w.playerTier, playerID)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	if lobby := w.Lobby(tier); lobby != nil {
		lobby.Leave(playerID)
	}
}

// Disconnect degrades a dropped connection gracefully: elimination if the
// player is mid-game, lobby departure if pre-game, spectator detach if
// watching.
func (w *World) Disconnect(playerID string) {
	w.mu.Lock()
	tier, known := w.playerTier[playerID]
	if known {
		delete(w.playerTier, playerID)
	}
	w.mu.Unlock()

	if known {
		if lobby := w.Lobby(tier); lobby != nil && lobby.Disconnect(playerID) {
			return
		}
	}
	for _, l := range w.lobbyList() {
		if l.Disconnect(playerID) {
			return
		}
	}
}

// RoomFor returns the live room a player is in, if any.
func (w *World) RoomFor(playerID string) *GameRoom {
	w.mu.RLock()
	tier, ok := w.playerTier[playerID]
	w.mu.RUnlock()
	if ok {
		if lobby := w.Lobby(tier); lobby != nil {
			if room := lobby.Room(); room != nil && room.HasPlayer(playerID) {
				return room
			}
		}
	}
	// Input races after lobby cleanup: scan live rooms.
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, room := range w.rooms {
		if room.HasPlayer(playerID) {
			return room
		}
	}
	return nil
}

// TierList summarizes all lobbies for the tier list view.
func (w *World) TierList() []TierInfo {
	list := make([]TierInfo, 0, len(Tiers))
	for _, tier := range Tiers {
		lobby := w.Lobby(tier.ID)
		if lobby == nil {
			continue
		}
		snap := lobby.Snapshot()
		list = append(list, TierInfo{
			Tier:       tier.ID,
			Stake:      tier.Stake,
			Status:     snap.Status,
			Players:    snap.Humans + snap.Bots,
			MaxPlayers: tier.MaxPlayers,
		})
	}
	return list
}
