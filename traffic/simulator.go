package traffic

import (
	"math"
	"sync"
	"time"
)

const (
	// Approach road length in km; platoons travel this distance to the
	// intersection.
	roadLengthKM = 1.5

	// Free-flow speed in km/h.
	maxSpeedKMH = 60.0

	// Density in veh/km at which flow effectively stalls.
	jamDensity = 120.0

	// Floor speed so ETAs stay finite even at jam density.
	minSpeedKMH = 5.0

	// The second platoon departs this many seconds after the first.
	secondGroupLagSec = 45.0

	// Platoons restart their approach on this cycle so the dashboard keeps
	// moving.
	cycleSec = 240.0

	// Share of an approach's vehicles riding in the first platoon.
	firstGroupShare = 0.6
)

// Simulator is the default in-process traffic Service. Speed degrades
// linearly with density; two staggered platoons per direction advance along
// the approach and report progress and ETA.
type Simulator struct {
	mu        sync.Mutex
	densities map[string]float64
	started   time.Time
}

// NewSimulator creates a simulator with staggered default densities so the
// four directions start out distinguishable.
func NewSimulator() *Simulator {
	densities := make(map[string]float64, len(Directions))
	for i, dir := range Directions {
		densities[dir] = 15 + float64(i)*5
	}
	return &Simulator{
		densities: densities,
		started:   time.Now(),
	}
}

// SetDensity overrides one direction's density. Unknown directions are
// rejected without touching any state; negative values clamp to zero.
func (s *Simulator) SetDensity(direction string, density float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.densities[direction]; !ok {
		return false
	}
	if density < 0 {
		density = 0
	}
	s.densities[direction] = density
	return true
}

// Status computes the current snapshot for all directions.
func (s *Simulator) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := math.Mod(time.Since(s.started).Seconds(), cycleSec)

	snap := make(Snapshot, len(s.densities))
	for dir, density := range s.densities {
		speed := maxSpeedKMH * (1 - density/jamDensity)
		if speed < minSpeedKMH {
			speed = minSpeedKMH
		}

		vehicles := density * roadLengthKM
		firstVol := int(vehicles * firstGroupShare)
		secondVol := int(vehicles) - firstVol

		snap[dir] = DirectionStatus{
			Density: density,
			Volumes: Volumes{
				FirstGroup:  firstVol,
				SecondGroup: secondVol,
				Total:       firstVol + secondVol,
			},
			FirstGroup:  groupProgress(dir, speed, elapsed),
			SecondGroup: groupProgress(dir, speed, elapsed-secondGroupLagSec),
			MaxSpeed:    maxSpeedKMH,
		}
	}
	return snap
}

// groupProgress advances one platoon along the approach at the given speed.
// A platoon that has not departed yet (negative elapsed) sits at the start
// with the full ETA ahead of it.
func groupProgress(dir string, speedKMH, elapsedSec float64) VehicleGroup {
	if elapsedSec < 0 {
		elapsedSec = 0
	}

	distance := speedKMH / 3600 * elapsedSec
	reached := distance >= roadLengthKM
	if reached {
		distance = roadLengthKM
	}

	var remaining float64
	if !reached {
		remaining = (roadLengthKM - distance) / speedKMH * 3600
	}

	return VehicleGroup{
		Direction:            dir,
		CurrentSpeed:         speedKMH,
		DistanceTraveled:     distance,
		TimeElapsed:          elapsedSec,
		HasReached:           reached,
		EstimatedTimeToReach: remaining,
	}
}
