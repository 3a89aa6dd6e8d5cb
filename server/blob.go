package main

import (
	"math"
	"time"
)

// Blob is one mass unit owned by exactly one player. A player starts with a
// single blob and gains more by splitting; blobs disappear when eaten by a
// larger rival blob or merged back into a sibling.
type Blob struct {
	ID      string
	Pos     Vec2
	Mass    float64
	Vel     Vec2      // steady-state steering velocity
	Launch  Vec2      // decaying impulse from a recent split/eject
	SplitAt time.Time // last split involving this blob; gates merging
	Color   string
}

// NewBlob creates a blob at the given position.
func NewBlob(pos Vec2, mass float64, color string) *Blob {
	return &Blob{
		ID:    GenerateID(4),
		Pos:   pos,
		Mass:  mass,
		Color: color,
	}
}

// Radius returns the blob's current collision radius.
func (b *Blob) Radius() float64 {
	return RadiusForMass(b.Mass)
}

// CanMerge reports whether the merge cooldown since the last split has
// elapsed. A freshly merged blob has its timer reset and must wait the full
// cooldown again.
func (b *Blob) CanMerge(now time.Time) bool {
	return now.Sub(b.SplitAt) >= MergeCooldown
}

// stepLaunch advances the decaying launch impulse, returning false once the
// impulse has dropped below the threshold and steering should take over.
func (b *Blob) stepLaunch(dt float64) bool {
	if b.Launch.Len() <= LaunchMinSpeed {
		b.Launch = Vec2{}
		return false
	}
	b.Pos = b.Pos.Add(b.Launch.Scale(dt))
	b.Launch = b.Launch.Scale(LaunchFriction)
	return true
}

// steer smooths the blob's velocity toward the player's target and moves it.
func (b *Blob) steer(target Vec2, dt float64) {
	dir := target.Sub(b.Pos)
	var want Vec2
	// Inside a dead zone around the target the blob idles instead of jittering.
	if dir.Len() > 1.0 {
		want = dir.Normalized().Scale(SpeedForMass(b.Mass))
	}
	b.Vel = LerpVec(b.Vel, want, SteerLerp)
	b.Pos = b.Pos.Add(b.Vel.Scale(dt))
}

// clampTo keeps the whole blob inside bounds: the blob edge never crosses
// the wall.
func (b *Blob) clampTo(bounds Bounds) {
	r := b.Radius()
	b.Pos.X = Clamp(b.Pos.X, bounds.MinX+r, bounds.MaxX-r)
	b.Pos.Y = Clamp(b.Pos.Y, bounds.MinY+r, bounds.MaxY-r)
}

// Pellet is a food item (fixed mass 1) or an ejected-mass unit (fixed larger
// mass, carries a decaying launch impulse like a split blob).
type Pellet struct {
	ID      string
	Pos     Vec2
	Mass    float64
	Launch  Vec2
	Color   string
	Ejected bool
}

// NewFoodPellet spawns a food pellet at a random position inside bounds,
// keeping a margin away from the walls.
func NewFoodPellet(bounds Bounds) *Pellet {
	w := bounds.MaxX - bounds.MinX - 2*FoodMargin
	h := bounds.MaxY - bounds.MinY - 2*FoodMargin
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return &Pellet{
		ID:    GenerateID(4),
		Pos:   Vec2{bounds.MinX + FoodMargin + randFloat()*w, bounds.MinY + FoodMargin + randFloat()*h},
		Mass:  FoodPelletMass,
		Color: PelletColors[int(randFloat()*float64(len(PelletColors)))%len(PelletColors)],
	}
}

// NewEjectedPellet spawns an ejected-mass pellet launched from pos along the
// aim direction with a randomized spread angle.
func NewEjectedPellet(pos Vec2, aim Vec2, color string) *Pellet {
	angle := math.Atan2(aim.Y, aim.X) + (randFloat()*2-1)*EjectSpreadArc
	dir := Vec2{math.Cos(angle), math.Sin(angle)}
	return &Pellet{
		ID:      GenerateID(4),
		Pos:     pos,
		Mass:    EjectedPelletMass,
		Launch:  dir.Scale(EjectLaunchSpeed),
		Color:   color,
		Ejected: true,
	}
}

// Radius returns the pellet's collision radius.
func (p *Pellet) Radius() float64 {
	return RadiusForMass(p.Mass)
}

// step advances an ejected pellet's launch impulse and clamps it to bounds.
// Ejected pellets share the split-launch model but never expire.
func (p *Pellet) step(bounds Bounds, dt float64) {
	if p.Launch.Len() > LaunchMinSpeed {
		p.Pos = p.Pos.Add(p.Launch.Scale(dt))
		p.Launch = p.Launch.Scale(LaunchFriction)
	} else if p.Launch != (Vec2{}) {
		p.Launch = Vec2{}
	}
	r := p.Radius()
	p.Pos.X = Clamp(p.Pos.X, bounds.MinX+r, bounds.MaxX-r)
	p.Pos.Y = Clamp(p.Pos.Y, bounds.MinY+r, bounds.MaxY-r)
}
