package main

import (
	"sync"
	"testing"
	"time"
)

func TestPickPreyRespectsEatThreshold(t *testing.T) {
	bot := NewHeuristicBot()
	view := BotView{}
	view.Self.Pos = Vec2{X: 500, Y: 500}
	view.Self.Mass = 200
	view.Rivals = []BotRival{
		{Pos: Vec2{X: 550, Y: 500}, Mass: 190}, // close but not edible
		{Pos: Vec2{X: 700, Y: 500}, Mass: 100}, // edible, further
	}

	prey, ok := bot.pickPrey(view)
	if !ok {
		t.Fatal("expected an edible rival to be picked")
	}
	if prey != (Vec2{X: 700, Y: 500}) {
		t.Errorf("expected the edible rival, got %+v", prey)
	}
}

func TestPickPreyIgnoresOutOfRange(t *testing.T) {
	bot := NewHeuristicBot()
	view := BotView{}
	view.Self.Pos = Vec2{X: 0, Y: 0}
	view.Self.Mass = 500
	view.Rivals = []BotRival{
		{Pos: Vec2{X: BotHuntRange + 100, Y: 0}, Mass: 50},
	}
	if _, ok := bot.pickPrey(view); ok {
		t.Error("rivals beyond hunt range must be ignored")
	}
}

func TestDecideTargetsStayInBounds(t *testing.T) {
	bot := NewHeuristicBot()
	view := BotView{Bounds: Bounds{MinX: 100, MinY: 100, MaxX: 900, MaxY: 900}}
	view.Self.Pos = Vec2{X: 500, Y: 500}
	view.Self.Mass = 100

	for i := 0; i < 200; i++ {
		act := bot.Decide(view)
		if !view.Bounds.Contains(act.Target) {
			t.Fatalf("decision %d targeted %+v outside bounds", i, act.Target)
		}
	}
}

func TestDecideNeverSplitsWhenLight(t *testing.T) {
	bot := NewHeuristicBot()
	view := BotView{Bounds: Bounds{MaxX: 1000, MaxY: 1000}}
	view.Self.Mass = MinSplitMass // below the 2x self-check

	for i := 0; i < 500; i++ {
		if act := bot.Decide(view); act.Split {
			t.Fatal("a light bot must never decide to split")
		}
	}
}

func TestBotViewStopsWhenEliminated(t *testing.T) {
	r := newStartedRoom(t, 2, nil, nil)
	var bot *Player
	for _, p := range r.players {
		bot = p
		break
	}
	if _, ok := r.botView(bot.ID); !ok {
		t.Fatal("expected a view for a live player")
	}
	r.eliminateLocked(bot, "", time.Now())
	if _, ok := r.botView(bot.ID); ok {
		t.Error("expected no view after elimination")
	}
	if _, ok := r.botView("nobody"); ok {
		t.Error("expected no view for an unknown id")
	}
}

func TestBotViewSeesNearestPellet(t *testing.T) {
	r := newStartedRoom(t, 1, nil, nil)
	var p *Player
	for _, pl := range r.players {
		p = pl
	}
	near := NewFoodPellet(r.bounds)
	near.Pos = p.Blobs[0].Pos.Add(Vec2{X: 30})
	far := NewFoodPellet(r.bounds)
	far.Pos = p.Blobs[0].Pos.Add(Vec2{X: 700})
	r.pellets[near.ID] = near
	r.pellets[far.ID] = far

	view, ok := r.botView(p.ID)
	if !ok {
		t.Fatal("expected a view")
	}
	if !view.HasPellet {
		t.Fatal("expected a pellet in view")
	}
	if view.NearestPellet != near.Pos {
		t.Errorf("nearest pellet = %+v, want %+v", view.NearestPellet, near.Pos)
	}
}

func TestNextBotIdentityUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, name := NextBotIdentity()
		if name == "" {
			t.Fatal("expected a non-empty bot name")
		}
		if seen[id] {
			t.Fatalf("duplicate bot id %s", id)
		}
		seen[id] = true
	}
}

// Lobby fill and room-end cleanup mint bot identities from different
// goroutines; run with -race.
func TestNextBotIdentityConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	ids := make(chan string, 8*50)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id, name := NextBotIdentity()
				if name == "" {
					t.Error("expected a non-empty bot name")
				}
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate bot id %s", id)
		}
		seen[id] = true
	}
}
