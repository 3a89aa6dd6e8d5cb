package main

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Broadcaster is the notify handle the transport layer maintains per client.
// The room never searches transport internals; it only calls through this.
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Bounds is an axis-aligned rectangle of playable world space.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Contains reports whether the point lies inside the bounds.
func (b Bounds) Contains(p Vec2) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// GameResult is handed to the result sink and the lobby when a room ends.
type GameResult struct {
	RoomID      string
	Tier        string
	Duration    float64 // seconds
	WinnerID    string  // empty on draw
	WinnerName  string
	WinnerIsBot bool
	PlayerCount int
	Rankings    []RankEntry
	Stats       map[string]FinalStats
	Bots        map[string]bool  // player id -> bot flag
	AuthIDs     map[string]int64 // player id -> account id, absent for guests/bots
}

// ResultSink receives finished-game results for persistence. Implementations
// must not block: the room calls this from its end sequence.
type ResultSink interface {
	RecordResult(res *GameResult)
}

// GameRoom owns one match: the pellet field, the player map, a spatial index
// rebuilt every tick, and the fixed-rate tick loop. All mutation flows
// through its public operations under one mutex; rooms share no state with
// each other.
type GameRoom struct {
	mu   sync.Mutex
	id   string
	tier TierConfig
	cfg  RoomConfig

	players    map[string]*Player
	pellets    map[string]*Pellet
	grid       *SpatialGrid
	clients    map[string]Broadcaster
	spectators map[string]Broadcaster

	fullBounds Bounds // bounds at start, before any shrinking
	bounds     Bounds // current bounds

	started     bool
	startedAt   time.Time
	startedWith int // player count at start; a 1-player room cannot be "won"

	running bool
	ended   bool
	stopc   chan struct{}
	tick    uint64

	lastBroadcast time.Time
	lastWinCheck  time.Time

	queryBuf []EntityRef

	payout    PayoutNotifier
	results   ResultSink
	onEnd     func(roomID string) // fired after the viewing delay, post-teardown
	nextColor int
}

// NewGameRoom creates a room with a full pellet field and no players.
func NewGameRoom(tier TierConfig, cfg RoomConfig, payout PayoutNotifier, results ResultSink, onEnd func(string)) *GameRoom {
	bounds := Bounds{MaxX: cfg.MapWidth, MaxY: cfg.MapHeight}
	r := &GameRoom{
		id:         GenerateUUID(),
		tier:       tier,
		cfg:        cfg,
		players:    make(map[string]*Player),
		pellets:    make(map[string]*Pellet),
		grid:       NewSpatialGrid(cfg.MapWidth, cfg.MapHeight, cfg.GridCellSize),
		clients:    make(map[string]Broadcaster),
		spectators: make(map[string]Broadcaster),
		fullBounds: bounds,
		bounds:     bounds,
		stopc:      make(chan struct{}),
		payout:     payout,
		results:    results,
		onEnd:      onEnd,
	}
	for i := 0; i < cfg.FoodTarget; i++ {
		p := NewFoodPellet(bounds)
		r.pellets[p.ID] = p
	}
	return r
}

// ID returns the room id.
func (r *GameRoom) ID() string { return r.id }

// AddPlayer registers a player with one starting blob at a random spawn
// position. Silently ignored once the match has started.
func (r *GameRoom) AddPlayer(id, name string, isBot bool, authID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	if _, ok := r.players[id]; ok {
		return
	}
	margin := FoodMargin + RadiusForMass(r.cfg.StartingMass)
	pos := Vec2{
		X: r.bounds.MinX + margin + randFloat()*(r.bounds.Width()-2*margin),
		Y: r.bounds.MinY + margin + randFloat()*(r.bounds.Height()-2*margin),
	}
	color := BlobColors[r.nextColor%len(BlobColors)]
	r.nextColor++
	p := NewPlayer(id, name, isBot, pos, r.cfg.StartingMass, color)
	p.AuthID = authID
	r.players[id] = p
}

// SetClient associates a notify handle with a player.
func (r *GameRoom) SetClient(playerID string, client Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[playerID] = client
}

// AddSpectator registers a watch-only notify handle.
func (r *GameRoom) AddSpectator(id string, client Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spectators[id] = client
}

// RemoveSpectator drops a spectator handle.
func (r *GameRoom) RemoveSpectator(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spectators, id)
}

// HasPlayer reports whether the player is in this room (alive or not).
func (r *GameRoom) HasPlayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[id]
	return ok
}

// RosterCounts returns (humans, bots) still alive, for status projections.
func (r *GameRoom) RosterCounts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	humans, bots := 0, 0
	for _, p := range r.players {
		if !p.Alive() {
			continue
		}
		if p.IsBot {
			bots++
		} else {
			humans++
		}
	}
	return humans, bots
}

// TimeLeft returns seconds of match remaining, 0 before start.
func (r *GameRoom) TimeLeft() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return 0
	}
	left := r.cfg.MaxDuration.Seconds() - time.Since(r.startedAt).Seconds()
	if left < 0 {
		left = 0
	}
	return left
}

// SpectatorCount returns the number of attached spectators.
func (r *GameRoom) SpectatorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spectators)
}

// Start begins the tick loop and bot controllers. Exactly one tick loop runs
// per room while it is playing.
func (r *GameRoom) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.running = true
	r.startedAt = time.Now()
	r.startedWith = len(r.players)
	startMsg := Envelope{T: MsgGameStart, Data: GameStartMsg{
		RoomID:    r.id,
		Tier:      r.tier.ID,
		StartedAt: r.startedAt.UnixMilli(),
		MapW:      r.cfg.MapWidth,
		MapH:      r.cfg.MapHeight,
	}}
	bots := make([]string, 0)
	for id, p := range r.players {
		if p.IsBot {
			bots = append(bots, id)
		}
	}
	r.mu.Unlock()

	r.broadcastMsg(startMsg)
	go r.run()
	for _, id := range bots {
		go r.runBot(id, NewHeuristicBot())
	}
}

// run is the fixed-rate tick loop.
func (r *GameRoom) run() {
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			r.safeTick(now, dt)
		case <-r.stopc:
			return
		}
	}
}

// safeTick shields the loop from a single bad tick: one panic must not kill
// the room's future ticks.
func (r *GameRoom) safeTick(now time.Time, dt float64) {
	defer func() {
		if err := recover(); err != nil {
			log.Printf("room %s: tick panic recovered: %v", r.id, err)
		}
	}()
	r.update(now, dt)
}

// update runs one tick. The pass order is part of the observable contract:
// movement, pellet physics, merge, collision, zone damage, stats, win check,
// broadcast, pellet respawn.
func (r *GameRoom) update(now time.Time, dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	r.tick++

	if r.cfg.Shrink {
		r.updateBounds(now)
	}
	r.moveBlobs(dt)
	for _, p := range r.pellets {
		if p.Ejected {
			p.step(r.bounds, dt)
		}
	}
	r.mergePass(now)
	r.collisionPass(now)
	if r.cfg.Shrink {
		r.zoneDamagePass(now)
	}
	ranked := r.statsPass(dt)
	if now.Sub(r.lastWinCheck) >= WinCheckInterval {
		r.lastWinCheck = now
		if r.checkWin(now, ranked) {
			return // end sequence ran; do not continue ticking
		}
	}
	if now.Sub(r.lastBroadcast) >= SnapshotInterval {
		r.lastBroadcast = now
		r.broadcastSnapshot(ranked)
	}
	r.respawnPellets()
}

// updateBounds recomputes the shrinking map: a linear shrink starting
// immediately, capped at ShrinkFinalFrac of the original size by
// ShrinkEndFrac of the max duration. Food outside the new bounds is purged.
func (r *GameRoom) updateBounds(now time.Time) {
	elapsed := now.Sub(r.startedAt).Seconds()
	frac := elapsed / (r.cfg.MaxDuration.Seconds() * ShrinkEndFrac)
	if frac > 1 {
		frac = 1
	}
	scale := 1 - (1-ShrinkFinalFrac)*frac
	cx := (r.fullBounds.MinX + r.fullBounds.MaxX) / 2
	cy := (r.fullBounds.MinY + r.fullBounds.MaxY) / 2
	halfW := r.fullBounds.Width() / 2 * scale
	halfH := r.fullBounds.Height() / 2 * scale
	r.bounds = Bounds{MinX: cx - halfW, MinY: cy - halfH, MaxX: cx + halfW, MaxY: cy + halfH}

	for id, p := range r.pellets {
		if !p.Ejected && !r.bounds.Contains(p.Pos) {
			delete(r.pellets, id)
		}
	}
}

// moveBlobs applies launch impulses (with decay) or steady-state steering,
// then clamps every blob to the current bounds.
func (r *GameRoom) moveBlobs(dt float64) {
	for _, p := range r.players {
		for _, b := range p.Blobs {
			if !b.stepLaunch(dt) {
				b.steer(p.Target, dt)
			}
			b.clampTo(r.bounds)
		}
	}
}

// mergePass recombines same-player blob pairs that are past the merge
// cooldown and geometrically touching. The survivor's split timer resets so
// a freshly merged blob waits another full cooldown.
func (r *GameRoom) mergePass(now time.Time) {
	for _, p := range r.players {
		if len(p.Blobs) < 2 {
			continue
		}
		merged := make(map[*Blob]bool)
		for i := 0; i < len(p.Blobs); i++ {
			a := p.Blobs[i]
			if merged[a] || !a.CanMerge(now) {
				continue
			}
			for j := i + 1; j < len(p.Blobs); j++ {
				b := p.Blobs[j]
				if merged[b] || !b.CanMerge(now) {
					continue
				}
				if !CirclesOverlap(a.Pos, a.Radius(), b.Pos, b.Radius()) {
					continue
				}
				a.Mass += b.Mass
				a.SplitAt = now
				merged[b] = true
				// Absorbing restarts the survivor's cooldown; further
				// siblings wait for the next window.
				break
			}
		}
		if len(merged) > 0 {
			kept := p.Blobs[:0]
			for _, b := range p.Blobs {
				if !merged[b] {
					kept = append(kept, b)
				}
			}
			p.Blobs = kept
		}
	}
}

type blobRef struct {
	player *Player
	blob   *Blob
}

// collisionPass rebuilds the spatial index and resolves blob-blob and
// blob-pellet contacts. Same-player overlaps push apart 50/50 regardless of
// relative mass; cross-player contacts eat when the threshold allows.
func (r *GameRoom) collisionPass(now time.Time) {
	blobs := make([]blobRef, 0, 64)
	for _, p := range r.players {
		for _, b := range p.Blobs {
			blobs = append(blobs, blobRef{player: p, blob: b})
		}
	}
	pelletList := make([]*Pellet, 0, len(r.pellets))
	for _, pe := range r.pellets {
		pelletList = append(pelletList, pe)
	}

	r.grid.Clear()
	for i, br := range blobs {
		r.grid.Insert(br.blob.Pos.X, br.blob.Pos.Y, EntityRef{Kind: KindBlob, Idx: i})
	}
	for i, pe := range pelletList {
		r.grid.Insert(pe.Pos.X, pe.Pos.Y, EntityRef{Kind: KindPellet, Idx: i})
	}

	eatenBlob := make([]bool, len(blobs))
	eatenPellet := make([]bool, len(pelletList))

	for i := range blobs {
		if eatenBlob[i] {
			continue
		}
		me := blobs[i]
		r.queryBuf = r.grid.QueryNearBuf(me.blob.Pos.X, me.blob.Pos.Y, r.queryBuf[:0])
		for _, ref := range r.queryBuf {
			if eatenBlob[i] {
				break
			}
			switch ref.Kind {
			case KindBlob:
				j := ref.Idx
				if j == i || eatenBlob[j] {
					continue
				}
				other := blobs[j]
				if other.player == me.player {
					if j > i { // resolve each sibling pair once
						pushApart(me.blob, other.blob)
					}
					continue
				}
				if !CirclesOverlap(me.blob.Pos, me.blob.Radius(), other.blob.Pos, other.blob.Radius()) {
					continue
				}
				if CanEat(me.blob.Mass, other.blob.Mass) {
					me.blob.Mass += other.blob.Mass
					eatenBlob[j] = true
					me.player.Stats.CellsEaten++
					other.player.removeBlob(other.blob)
					if len(other.player.Blobs) == 0 {
						r.eliminateLocked(other.player, me.player.Name, now)
					}
				}
			case KindPellet:
				j := ref.Idx
				if eatenPellet[j] {
					continue
				}
				pe := pelletList[j]
				if !CirclesOverlap(me.blob.Pos, me.blob.Radius(), pe.Pos, pe.Radius()) {
					continue
				}
				me.blob.Mass += pe.Mass
				me.player.Stats.PelletsEaten++
				eatenPellet[j] = true
				delete(r.pellets, pe.ID)
			}
		}
	}
}

// pushApart resolves a same-player overlap with a soft 50/50 separation
// along the center axis, proportional to overlap depth.
func pushApart(a, b *Blob) {
	delta := b.Pos.Sub(a.Pos)
	dist := delta.Len()
	overlap := a.Radius() + b.Radius() - dist
	if overlap <= 0 {
		return
	}
	var dir Vec2
	if dist < 1e-9 {
		dir = Vec2{X: 1} // coincident centers: pick an arbitrary axis
	} else {
		dir = delta.Scale(1 / dist)
	}
	shift := dir.Scale(overlap / 2)
	a.Pos = a.Pos.Sub(shift)
	b.Pos = b.Pos.Add(shift)
}

// zoneDamagePass eliminates players who keep touching the shrinking
// boundary. The timer starts on first touch and resets fully (not pauses)
// when they move clear; on expiry the player is removed, guaranteeing no
// boundary stalemate.
func (r *GameRoom) zoneDamagePass(now time.Time) {
	for _, p := range r.players {
		if !p.Alive() {
			continue
		}
		touching := false
		for _, b := range p.Blobs {
			rad := b.Radius()
			if b.Pos.X-rad <= r.bounds.MinX+BoundaryMargin ||
				b.Pos.X+rad >= r.bounds.MaxX-BoundaryMargin ||
				b.Pos.Y-rad <= r.bounds.MinY+BoundaryMargin ||
				b.Pos.Y+rad >= r.bounds.MaxY-BoundaryMargin {
				touching = true
				break
			}
		}
		if !touching {
			p.BoundaryTouch = time.Time{}
			continue
		}
		if p.BoundaryTouch.IsZero() {
			p.BoundaryTouch = now
			continue
		}
		if now.Sub(p.BoundaryTouch) >= BoundaryKillTime {
			r.eliminateLocked(p, "", now)
		}
	}
}

// eliminateLocked finalizes a player's stats, clears their blobs, and emits
// the elimination event. Caller holds r.mu.
func (r *GameRoom) eliminateLocked(p *Player, killerName string, now time.Time) {
	if p.Eliminated {
		return
	}
	p.Stats.FinalMass = p.TotalMass()
	p.Stats.TimeSurvived = now.Sub(r.startedAt).Seconds()
	p.Blobs = nil
	p.Eliminated = true
	r.sendAllLocked(Envelope{T: MsgElim, Data: ElimMsg{Victim: p.Name, Killer: killerName}})
}

// statsPass recomputes the leaderboard, best ranks, and leader time, and
// returns the alive players in rank order.
func (r *GameRoom) statsPass(dt float64) []*Player {
	ranked := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if p.Alive() {
			ranked = append(ranked, p)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].TotalMass() > ranked[j].TotalMass()
	})
	for i, p := range ranked {
		rank := i + 1
		if p.Stats.BestRank == 0 || rank < p.Stats.BestRank {
			p.Stats.BestRank = rank
		}
		mass := p.TotalMass()
		if mass > p.Stats.MaxMass {
			p.Stats.MaxMass = mass
		}
	}
	if len(ranked) > 0 {
		ranked[0].Stats.LeaderTime += dt
	}
	return ranked
}

// checkWin evaluates the win conditions in priority order and runs the end
// sequence when one holds. Returns true when the game ended this tick.
func (r *GameRoom) checkWin(now time.Time, ranked []*Player) bool {
	elapsed := now.Sub(r.startedAt)
	switch {
	case len(ranked) == 1 && r.startedWith > 1:
		// Last player standing beats the time limit even if both hold.
		r.endLocked(ranked[0], now)
		return true
	case elapsed >= r.cfg.MaxDuration:
		var winner *Player
		if len(ranked) > 0 {
			winner = ranked[0]
		}
		r.endLocked(winner, now)
		return true
	case len(ranked) == 0:
		r.endLocked(nil, now)
		return true
	}
	return false
}

// endLocked runs the end sequence: halt the loop, finalize stats, rank with
// deterministic tie-breaks, broadcast the result, fire the payout callback
// without awaiting it, and schedule teardown after the viewing delay.
// Caller holds r.mu.
func (r *GameRoom) endLocked(winner *Player, now time.Time) {
	if r.ended {
		return
	}
	r.ended = true
	r.haltLocked()

	for _, p := range r.players {
		if p.Alive() {
			p.Stats.TimeSurvived = now.Sub(r.startedAt).Seconds()
			p.Stats.FinalMass = p.TotalMass()
		}
	}

	all := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		all = append(all, p)
	}
	// Tie-breaks in order: mass, time survived, cells eaten, pellets eaten.
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].Stats, all[j].Stats
		if a.FinalMass != b.FinalMass {
			return a.FinalMass > b.FinalMass
		}
		if a.TimeSurvived != b.TimeSurvived {
			return a.TimeSurvived > b.TimeSurvived
		}
		if a.CellsEaten != b.CellsEaten {
			return a.CellsEaten > b.CellsEaten
		}
		return a.PelletsEaten > b.PelletsEaten
	})

	res := &GameResult{
		RoomID:      r.id,
		Tier:        r.tier.ID,
		Duration:    now.Sub(r.startedAt).Seconds(),
		PlayerCount: r.startedWith,
		Rankings:    make([]RankEntry, 0, len(all)),
		Stats:       make(map[string]FinalStats, len(all)),
		Bots:        make(map[string]bool, len(all)),
		AuthIDs:     make(map[string]int64),
	}
	for i, p := range all {
		res.Rankings = append(res.Rankings, RankEntry{Rank: i + 1, ID: p.ID, Name: p.Name, Mass: round1(p.Stats.FinalMass)})
		res.Bots[p.ID] = p.IsBot
		if p.AuthID != 0 {
			res.AuthIDs[p.ID] = p.AuthID
		}
		res.Stats[p.ID] = FinalStats{
			PelletsEaten: p.Stats.PelletsEaten,
			CellsEaten:   p.Stats.CellsEaten,
			MaxMass:      round1(p.Stats.MaxMass),
			LeaderTime:   round1(p.Stats.LeaderTime),
			BestRank:     p.Stats.BestRank,
			TimeSurvived: round1(p.Stats.TimeSurvived),
		}
	}
	if winner != nil {
		res.WinnerID = winner.ID
		res.WinnerName = winner.Name
		res.WinnerIsBot = winner.IsBot
	}

	r.sendAllLocked(Envelope{T: MsgGameEnd, Data: GameEndMsg{
		RoomID:   r.id,
		WinnerID: res.WinnerID,
		Rankings: res.Rankings,
		Stats:    res.Stats,
	}})

	// Payout is fire-and-forget: its failure is the payout service's concern
	// and must never delay informing clients or tearing the room down.
	if winner != nil && !winner.IsBot && r.payout != nil {
		go r.payout.WinnerDetermined(WinnerDetermined{
			WinnerID:    winner.ID,
			WinnerName:  winner.Name,
			RoomID:      r.id,
			Tier:        r.tier.ID,
			PlayerCount: r.startedWith,
		})
	}
	if r.results != nil {
		r.results.RecordResult(res)
	}

	onEnd := r.onEnd
	roomID := r.id
	time.AfterFunc(ViewingDelay, func() {
		r.Stop()
		if onEnd != nil {
			onEnd(roomID)
		}
	})
}

// haltLocked stops the tick loop exactly once. Caller holds r.mu.
func (r *GameRoom) haltLocked() {
	if r.running {
		r.running = false
		close(r.stopc)
	}
}

// Stop halts the tick loop and clears all maps. Idempotent and safe to call
// concurrently with an in-flight tick.
func (r *GameRoom) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haltLocked()
	r.players = make(map[string]*Player)
	r.pellets = make(map[string]*Pellet)
	r.clients = make(map[string]Broadcaster)
	r.spectators = make(map[string]Broadcaster)
}

// respawnPellets tops the food field back up to the configured target,
// spawning only inside the current (possibly shrunk) bounds.
func (r *GameRoom) respawnPellets() {
	food := 0
	for _, p := range r.pellets {
		if !p.Ejected {
			food++
		}
	}
	for ; food < r.cfg.FoodTarget; food++ {
		p := NewFoodPellet(r.bounds)
		r.pellets[p.ID] = p
	}
}

// HandleMove stores a steering target; applied next tick. Unknown ids are
// an expected race (late packet after elimination) and are ignored.
func (r *GameRoom) HandleMove(playerID string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok || !p.Alive() {
		return
	}
	p.Target = Vec2{X: x, Y: y}
	p.HasTarget = true
	p.LastInputAt = time.Now()
}

// HandleSplit splits every blob at or above the split minimum, as long as
// the player's blob count stays under the cap. The new blob launches along
// the aim direction; the parent takes a small reciprocal recoil.
func (r *GameRoom) HandleSplit(playerID string, aimX, aimY float64, hasAim bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok || !p.Alive() {
		return
	}
	now := time.Now()
	p.LastInputAt = now
	existing := p.Blobs
	for _, b := range existing {
		if len(p.Blobs) >= MaxBlobsPerPlayer {
			break
		}
		if b.Mass < MinSplitMass {
			continue
		}
		dir := splitDirection(b, Vec2{X: aimX, Y: aimY}, hasAim)
		b.Mass /= 2
		child := NewBlob(b.Pos.Add(dir.Scale(b.Radius()+SplitOffset)), b.Mass, b.Color)
		child.Launch = dir.Scale(SplitLaunchSpeed)
		child.SplitAt = now
		b.Launch = dir.Scale(-SplitRecoilSpeed)
		b.SplitAt = now
		p.Blobs = append(p.Blobs, child)
	}
}

// splitDirection resolves the launch direction: the aim point when provided,
// otherwise the blob's current travel direction.
func splitDirection(b *Blob, aim Vec2, hasAim bool) Vec2 {
	if hasAim {
		if d := aim.Sub(b.Pos).Normalized(); d != (Vec2{}) {
			return d
		}
	}
	if d := b.Vel.Normalized(); d != (Vec2{}) {
		return d
	}
	angle := randFloat() * 2 * math.Pi
	return Vec2{math.Cos(angle), math.Sin(angle)}
}

// HandleEject expels a fixed mass from every blob above the eject minimum as
// an ejected-mass pellet along a randomized spread around the aim direction.
func (r *GameRoom) HandleEject(playerID string, aimX, aimY float64, hasAim bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok || !p.Alive() {
		return
	}
	p.LastInputAt = time.Now()
	for _, b := range p.Blobs {
		if b.Mass <= EjectMinMass {
			continue
		}
		dir := splitDirection(b, Vec2{X: aimX, Y: aimY}, hasAim)
		b.Mass -= EjectMassCost
		pe := NewEjectedPellet(b.Pos.Add(dir.Scale(b.Radius())), dir, b.Color)
		r.pellets[pe.ID] = pe
	}
}

// EliminatePlayer removes a player immediately (mid-game disconnect path).
func (r *GameRoom) EliminatePlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok || !p.Alive() {
		return
	}
	r.eliminateLocked(p, "", time.Now())
	delete(r.clients, playerID)
}

// broadcastSnapshot packages the full room state as a msgpack binary frame
// and fans it out to players and spectators. Caller holds r.mu.
func (r *GameRoom) broadcastSnapshot(ranked []*Player) {
	snap := Snapshot{
		RoomID:     r.id,
		Tick:       r.tick,
		Spectators: len(r.spectators),
		Bounds: BoundsState{
			MinX: round1(r.bounds.MinX), MinY: round1(r.bounds.MinY),
			MaxX: round1(r.bounds.MaxX), MaxY: round1(r.bounds.MaxY),
		},
	}
	left := r.cfg.MaxDuration.Seconds() - time.Since(r.startedAt).Seconds()
	if left < 0 {
		left = 0
	}
	snap.TimeLeft = round1(left)

	for _, p := range r.players {
		for _, b := range p.Blobs {
			snap.Blobs = append(snap.Blobs, BlobState{
				PID: p.ID, ID: b.ID,
				X: round1(b.Pos.X), Y: round1(b.Pos.Y),
				Mass: round1(b.Mass), Color: b.Color,
			})
		}
	}
	for _, pe := range r.pellets {
		snap.Pellets = append(snap.Pellets, PelletState{
			ID: pe.ID, X: round1(pe.Pos.X), Y: round1(pe.Pos.Y),
			Mass: pe.Mass, Color: pe.Color,
		})
	}
	top := len(ranked)
	if top > LeaderboardTop {
		top = LeaderboardTop
	}
	for i := 0; i < top; i++ {
		p := ranked[i]
		snap.Leaderboard = append(snap.Leaderboard, RankEntry{
			Rank: i + 1, ID: p.ID, Name: p.Name, Mass: round1(p.TotalMass()),
		})
	}

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		log.Printf("room %s: snapshot marshal: %v", r.id, err)
		return
	}
	for _, c := range r.clients {
		c.SendBinary(data)
	}
	for _, c := range r.spectators {
		c.SendBinary(data)
	}
}

// sendAllLocked fans a JSON envelope out to players and spectators.
// Caller holds r.mu.
func (r *GameRoom) sendAllLocked(msg Envelope) {
	for _, c := range r.clients {
		c.SendJSON(msg)
	}
	for _, c := range r.spectators {
		c.SendJSON(msg)
	}
}

// broadcastMsg fans a JSON envelope out without the lock held.
func (r *GameRoom) broadcastMsg(msg Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendAllLocked(msg)
}
