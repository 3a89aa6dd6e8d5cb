package main

import "time"

const (
	TickRate     = 60 // simulation ticks per second
	TickDuration = time.Second / TickRate

	SnapshotInterval = 500 * time.Millisecond // state broadcast cadence
	WinCheckInterval = time.Second            // win conditions are checked at most once per second
	StatusInterval   = time.Second            // lobby status broadcast cadence
)

const (
	// Movement
	SpeedBase    = 1000.0 // numerator of the speed formula
	SpeedScale   = 2.2    // overall speed multiplier
	SteerLerp    = 0.2    // per-tick exponential smoothing toward desired velocity
	RadiusScale  = 4.0    // radius = sqrt(mass/pi) * RadiusScale
	EatThreshold = 1.1    // predator must exceed prey mass by 10%

	// Split / eject launch model
	SplitLaunchSpeed  = 780.0 // initial impulse of a freshly split blob (px/s)
	SplitRecoilSpeed  = 120.0 // reciprocal kick on the parent blob
	LaunchFriction    = 0.94  // per-tick decay of launch impulses
	LaunchMinSpeed    = 5.0   // impulses below this are dropped
	MergeCooldown     = 30 * time.Second
	MinSplitMass      = 36.0
	MaxBlobsPerPlayer = 16
	SplitOffset       = 4.0 // px the new blob is peeled off along the aim direction

	EjectMinMass      = 35.0
	EjectMassCost     = 16.0
	EjectedPelletMass = 12.0
	EjectSpreadArc    = 0.25 // radians either side of the aim direction
	EjectLaunchSpeed  = SplitLaunchSpeed

	// Pellets
	FoodPelletMass = 1.0
	FoodMargin     = 50.0 // pellets spawn at least this far from the walls

	// Shrinking safe zone
	ShrinkFinalFrac  = 0.10 // map shrinks to 10% of original size...
	ShrinkEndFrac    = 0.90 // ...by 90% of the max duration
	BoundaryKillTime = 3 * time.Second
	BoundaryMargin   = 4.0 // px of wall contact that counts as "touching"

	ViewingDelay   = 10 * time.Second // results stay visible before room teardown
	LeaderboardTop = 10
)

// RoomConfig holds per-room simulation settings. These affect constants of
// the simulation only, never its structure.
type RoomConfig struct {
	MapWidth     float64
	MapHeight    float64
	StartingMass float64
	FoodTarget   int
	GridCellSize float64
	MaxDuration  time.Duration
	Shrink       bool
}

// DefaultRoomConfig returns the standard arena settings.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		MapWidth:     5000,
		MapHeight:    5000,
		StartingMass: 100,
		FoodTarget:   400,
		GridCellSize: 150,
		MaxDuration:  5 * time.Minute,
		Shrink:       true,
	}
}

// TierConfig describes one stake tier and its matchmaking parameters.
type TierConfig struct {
	ID         string
	Stake      float64 // entry stake in the payout currency
	MinPlayers int
	MaxPlayers int
	Countdown  time.Duration
}

// Tiers is the fixed set of stake tiers; one lobby exists per entry for the
// lifetime of the process.
var Tiers = []TierConfig{
	{ID: "bronze", Stake: 0.01, MinPlayers: 4, MaxPlayers: 10, Countdown: 10 * time.Second},
	{ID: "silver", Stake: 0.05, MinPlayers: 4, MaxPlayers: 10, Countdown: 10 * time.Second},
	{ID: "gold", Stake: 0.25, MinPlayers: 6, MaxPlayers: 12, Countdown: 15 * time.Second},
}

// TierByID looks up a tier config, ok=false for unknown ids.
func TierByID(id string) (TierConfig, bool) {
	for _, t := range Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return TierConfig{}, false
}

// BlobColors is the cosmetic palette assigned round-robin to joining players.
var BlobColors = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6",
	"#1abc9c", "#e67e22", "#e91e63", "#00bcd4", "#8bc34a",
	"#ff5722", "#607d8b", "#795548", "#673ab7", "#03a9f4",
}

// PelletColors is the palette for food pellets.
var PelletColors = []string{
	"#ff6b6b", "#feca57", "#48dbfb", "#1dd1a1", "#f368e0",
	"#ff9ff3", "#54a0ff", "#00d2d3", "#5f27cd", "#c8d6e5",
}
