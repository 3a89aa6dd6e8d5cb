package main

import "math"

// Vec2 is a 2D world-space vector.
type Vec2 struct {
	X float64
	Y float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Len returns the vector magnitude.
func (v Vec2) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y) }

// Normalized returns a unit vector in the direction of v, or the zero
// vector when v is (near) zero.
func (v Vec2) Normalized() Vec2 {
	l := v.Len()
	if l < 1e-9 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// SpeedForMass returns steady-state speed in px/s. Heavier blobs move slower.
func SpeedForMass(mass float64) float64 {
	if mass < 1 {
		mass = 1
	}
	return SpeedScale * (SpeedBase / math.Sqrt(mass))
}

// RadiusForMass returns the area-preserving collision radius for a mass.
func RadiusForMass(mass float64) float64 {
	if mass < 0 {
		mass = 0
	}
	return math.Sqrt(mass/math.Pi) * RadiusScale
}

// CanEat reports whether a predator of mass a may absorb prey of mass b.
// Strictly greater: equal masses (up to the threshold) never eat each other.
func CanEat(predatorMass, preyMass float64) bool {
	return predatorMass > preyMass*EatThreshold
}

// CirclesOverlap reports whether two circles touch or intersect.
func CirclesOverlap(p1 Vec2, r1 float64, p2 Vec2, r2 float64) bool {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	radSum := r1 + r2
	return dx*dx+dy*dy <= radSum*radSum
}

// LerpVec exponentially smooths cur toward want by factor t in [0,1].
func LerpVec(cur, want Vec2, t float64) Vec2 {
	return Vec2{
		X: cur.X + (want.X-cur.X)*t,
		Y: cur.Y + (want.Y-cur.Y)*t,
	}
}
