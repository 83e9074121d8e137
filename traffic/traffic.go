// Package traffic adapts the traffic-density computation collaborator for
// the rest of the server. The computation itself is opaque: the server only
// consumes per-direction status values, caches them in a Bridge, and pokes
// density overrides back in.
package traffic

// Directions lists the approaches the collaborator models.
var Directions = []string{"north", "south", "east", "west"}

// VehicleGroup describes one simulated platoon on an approach road.
type VehicleGroup struct {
	Direction            string  `json:"direction"`
	CurrentSpeed         float64 `json:"currentSpeed"`
	DistanceTraveled     float64 `json:"distanceTraveled"`
	TimeElapsed          float64 `json:"timeElapsed"`
	HasReached           bool    `json:"hasReached"`
	EstimatedTimeToReach float64 `json:"estimatedTimeToReach"`
}

// Volumes breaks down vehicle counts per platoon.
type Volumes struct {
	FirstGroup  int `json:"firstGroup"`
	SecondGroup int `json:"secondGroup"`
	Total       int `json:"total"`
}

// DirectionStatus is the per-approach view consumed by the dashboard and
// the assistant.
type DirectionStatus struct {
	Density     float64      `json:"density"`
	Volumes     Volumes      `json:"volumes"`
	FirstGroup  VehicleGroup `json:"firstGroup"`
	SecondGroup VehicleGroup `json:"secondGroup"`
	MaxSpeed    float64      `json:"maxSpeed"`
}

// Snapshot is the full per-direction traffic state at one point in time.
// It is treated as a value: never mutated after it leaves the Service.
type Snapshot map[string]DirectionStatus

// Service is the contract of the external traffic computation module.
type Service interface {
	// Status computes the current per-direction traffic state.
	Status() Snapshot

	// SetDensity overrides the density for one direction. It reports false
	// for unknown direction tokens and mutates nothing in that case.
	SetDensity(direction string, density float64) bool
}
