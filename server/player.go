package main

import "time"

// PlayerStats accumulates over one match and survives elimination so the
// final rankings can report them.
type PlayerStats struct {
	PelletsEaten int
	CellsEaten   int
	MaxMass      float64
	FinalMass    float64 // mass held at elimination, or at game end for survivors
	LeaderTime   float64 // cumulative seconds spent ranked #1
	BestRank     int     // lowest rank ever held; 0 = never ranked
	TimeSurvived float64 // seconds from room start until elimination/game end
}

// Player aggregates the blobs and stats of one participant in a room.
// The player exclusively owns its blobs; a player with zero blobs is
// eliminated.
type Player struct {
	ID     string
	Name   string
	IsBot  bool
	AuthID int64 // account id, 0 for guests and bots
	Color  string

	Blobs []*Blob
	Stats PlayerStats

	JoinedAt    time.Time
	LastInputAt time.Time

	Target    Vec2 // last received steering input
	HasTarget bool

	// BoundaryTouch is when the player first touched the shrinking boundary;
	// zero while clear of it.
	BoundaryTouch time.Time

	Eliminated bool
}

// NewPlayer creates a player with a single starting blob at pos.
func NewPlayer(id, name string, isBot bool, pos Vec2, mass float64, color string) *Player {
	p := &Player{
		ID:       id,
		Name:     name,
		IsBot:    isBot,
		Color:    color,
		JoinedAt: time.Now(),
		Target:   pos,
	}
	p.Blobs = append(p.Blobs, NewBlob(pos, mass, color))
	return p
}

// TotalMass sums the mass of all owned blobs.
func (p *Player) TotalMass() float64 {
	var total float64
	for _, b := range p.Blobs {
		total += b.Mass
	}
	return total
}

// Alive reports whether the player still owns at least one blob.
func (p *Player) Alive() bool {
	return len(p.Blobs) > 0 && !p.Eliminated
}

// removeBlob drops a blob from the player's list by identity.
func (p *Player) removeBlob(blob *Blob) {
	for i, b := range p.Blobs {
		if b == blob {
			p.Blobs[i] = p.Blobs[len(p.Blobs)-1]
			p.Blobs = p.Blobs[:len(p.Blobs)-1]
			return
		}
	}
}
