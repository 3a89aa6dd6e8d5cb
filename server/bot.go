package main

import (
	"math/rand"
	"sync/atomic"
	"time"
)

const (
	BotDecideInterval = 300 * time.Millisecond
	BotHuntRange      = 800.0 // rivals inside this range are candidate prey
	BotSplitChance    = 0.02
	BotEjectChance    = 0.02
	BotHuntWeight     = 0.30 // chance to chase a smaller rival when one is visible
	BotFoodWeight     = 0.55 // chance to steer at the nearest pellet
	BotFillMax        = 20   // hard cap on synthesized bots per lobby
)

// botNames is the display-name pool for synthesized lobby fillers.
var botNames = []string{
	"Wobble", "Gobbler", "Bloop", "Nibbles", "Chomp",
	"Squish", "Morsel", "Gulp", "Blobby", "Munch",
	"Jelly", "Pudge", "Snack", "Vortex", "Maw",
}

// botNameCounter is shared by every lobby's fill path and the room-end
// AfterFunc goroutines, so it must be atomic.
var botNameCounter atomic.Uint64

// NextBotIdentity returns a fresh (id, name) pair for a synthesized bot.
func NextBotIdentity() (string, string) {
	n := botNameCounter.Add(1) - 1
	name := botNames[int(n)%len(botNames)]
	return "bot-" + GenerateID(4), name
}

// BotView is the visible state handed to a strategy each decision cycle.
type BotView struct {
	Self struct {
		Pos  Vec2
		Mass float64
	}
	Bounds        Bounds
	NearestPellet Vec2
	HasPellet     bool
	Rivals        []BotRival
}

// BotRival is another player's aggregate as a bot sees it.
type BotRival struct {
	Pos  Vec2
	Mass float64
}

// BotAction is one decision: where to steer and whether to split/eject.
type BotAction struct {
	Target Vec2
	Split  bool
	Eject  bool
}

// BotStrategy is the seam shared by heuristic bots, scripted test agents,
// and anything smarter that comes later.
type BotStrategy interface {
	Decide(view BotView) BotAction
}

// HeuristicBot is a simple reactive strategy: with weighted probability it
// steers to the nearest pellet, a random map point, or a smaller rival, and
// occasionally splits or ejects. It exists to populate lobbies, not to win.
type HeuristicBot struct {
	rng *rand.Rand
}

// NewHeuristicBot creates a heuristic strategy with its own RNG.
func NewHeuristicBot() *HeuristicBot {
	return &HeuristicBot{rng: rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(rand.Int())))}
}

// Decide picks the next action from the visible state.
func (h *HeuristicBot) Decide(view BotView) BotAction {
	var act BotAction
	roll := h.rng.Float64()

	if roll < BotHuntWeight {
		if prey, ok := h.pickPrey(view); ok {
			act.Target = prey
		} else if view.HasPellet {
			act.Target = view.NearestPellet
		} else {
			act.Target = h.randomPoint(view.Bounds)
		}
	} else if roll < BotHuntWeight+BotFoodWeight && view.HasPellet {
		act.Target = view.NearestPellet
	} else {
		act.Target = h.randomPoint(view.Bounds)
	}

	if view.Self.Mass >= MinSplitMass*2 && h.rng.Float64() < BotSplitChance {
		act.Split = true
	}
	if view.Self.Mass > EjectMinMass+EjectMassCost && h.rng.Float64() < BotEjectChance {
		act.Eject = true
	}
	return act
}

// pickPrey returns the closest visibly smaller rival within hunt range.
func (h *HeuristicBot) pickPrey(view BotView) (Vec2, bool) {
	var best Vec2
	bestDist := BotHuntRange
	found := false
	for _, rv := range view.Rivals {
		if !CanEat(view.Self.Mass, rv.Mass) {
			continue
		}
		d := rv.Pos.Sub(view.Self.Pos).Len()
		if d < bestDist {
			bestDist = d
			best = rv.Pos
			found = true
		}
	}
	return best, found
}

func (h *HeuristicBot) randomPoint(b Bounds) Vec2 {
	return Vec2{
		X: b.MinX + h.rng.Float64()*b.Width(),
		Y: b.MinY + h.rng.Float64()*b.Height(),
	}
}

// botView assembles the visible state for one bot. ok=false once the bot is
// gone, which stops its controller loop.
func (r *GameRoom) botView(botID string) (BotView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[botID]
	if !ok || !p.Alive() || r.ended {
		return BotView{}, false
	}
	var view BotView
	head := p.Blobs[0]
	view.Self.Pos = head.Pos
	view.Self.Mass = p.TotalMass()
	view.Bounds = r.bounds

	bestDist := -1.0
	for _, pe := range r.pellets {
		d := pe.Pos.Sub(head.Pos).Len()
		if bestDist < 0 || d < bestDist {
			bestDist = d
			view.NearestPellet = pe.Pos
			view.HasPellet = true
		}
	}
	for _, other := range r.players {
		if other.ID == botID || !other.Alive() {
			continue
		}
		view.Rivals = append(view.Rivals, BotRival{Pos: other.Blobs[0].Pos, Mass: other.TotalMass()})
	}
	return view, true
}

// runBot is the per-bot decision loop, on its own timer independent of the
// room tick. It drives the same public operations a human client would.
func (r *GameRoom) runBot(botID string, strat BotStrategy) {
	// Jitter the cycle so bot decisions don't land on the same tick.
	interval := BotDecideInterval + time.Duration(randFloat()*100)*time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			view, ok := r.botView(botID)
			if !ok {
				return
			}
			act := strat.Decide(view)
			r.HandleMove(botID, act.Target.X, act.Target.Y)
			if act.Split {
				r.HandleSplit(botID, act.Target.X, act.Target.Y, true)
			}
			if act.Eject {
				r.HandleEject(botID, act.Target.X, act.Target.Y, true)
			}
		case <-r.stopc:
			return
		}
	}
}
