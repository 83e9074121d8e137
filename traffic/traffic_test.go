package traffic

import (
	"testing"
)

func TestSimulatorStatusCoversAllDirections(t *testing.T) {
	sim := NewSimulator()
	snap := sim.Status()

	if len(snap) != len(Directions) {
		t.Fatalf("Expected %d directions, got %d", len(Directions), len(snap))
	}

	for _, dir := range Directions {
		status, ok := snap[dir]
		if !ok {
			t.Errorf("Missing direction %s", dir)
			continue
		}
		if status.MaxSpeed <= 0 {
			t.Errorf("%s: max speed should be positive", dir)
		}
		if status.Volumes.Total != status.Volumes.FirstGroup+status.Volumes.SecondGroup {
			t.Errorf("%s: volume total %d does not match group sum", dir, status.Volumes.Total)
		}
		if status.FirstGroup.Direction != dir {
			t.Errorf("%s: group carries wrong direction %s", dir, status.FirstGroup.Direction)
		}
		if !status.FirstGroup.HasReached && status.FirstGroup.EstimatedTimeToReach <= 0 {
			t.Errorf("%s: unfinished group should have a positive ETA", dir)
		}
	}
}

func TestSimulatorSetDensity(t *testing.T) {
	sim := NewSimulator()

	if !sim.SetDensity("north", 50) {
		t.Fatal("Setting a known direction should succeed")
	}

	snap := sim.Status()
	if snap["north"].Density != 50 {
		t.Errorf("Expected north density 50, got %v", snap["north"].Density)
	}

	// Only the targeted direction changes.
	for _, dir := range []string{"south", "east", "west"} {
		if snap[dir].Density == 50 {
			t.Errorf("Direction %s should be unaffected", dir)
		}
	}
}

func TestSimulatorSetDensityUnknownDirection(t *testing.T) {
	sim := NewSimulator()
	before := sim.Status()

	if sim.SetDensity("northeast", 99) {
		t.Fatal("Unknown direction token must be rejected")
	}

	after := sim.Status()
	for _, dir := range Directions {
		if before[dir].Density != after[dir].Density {
			t.Errorf("Rejected update must not mutate state, %s changed", dir)
		}
	}
}

func TestSimulatorDensitySlowsTraffic(t *testing.T) {
	sim := NewSimulator()
	sim.SetDensity("north", 0)
	sim.SetDensity("south", 100)

	snap := sim.Status()
	if snap["north"].FirstGroup.CurrentSpeed <= snap["south"].FirstGroup.CurrentSpeed {
		t.Errorf("Higher density should mean lower speed: north %v vs south %v",
			snap["north"].FirstGroup.CurrentSpeed, snap["south"].FirstGroup.CurrentSpeed)
	}
}

// stubService counts calls so the bridge's caching behavior is observable.
type stubService struct {
	statusCalls int
	setOK       bool
	snapshot    Snapshot
}

func (s *stubService) Status() Snapshot {
	s.statusCalls++
	return s.snapshot
}

func (s *stubService) SetDensity(direction string, density float64) bool {
	return s.setOK
}

func TestBridgeCachesSnapshot(t *testing.T) {
	stub := &stubService{setOK: true, snapshot: Snapshot{"north": {Density: 10}}}
	bridge := NewBridge(stub)

	if stub.statusCalls != 1 {
		t.Fatalf("NewBridge should prime the cache once, got %d calls", stub.statusCalls)
	}

	// Reads hit the cache, not the service.
	for i := 0; i < 5; i++ {
		bridge.Current()
	}
	if stub.statusCalls != 1 {
		t.Errorf("Current() must not consult the service, got %d calls", stub.statusCalls)
	}

	stub.snapshot = Snapshot{"north": {Density: 42}}
	if bridge.Current()["north"].Density != 10 {
		t.Error("Cache should still hold the old snapshot")
	}

	bridge.Refresh()
	if bridge.Current()["north"].Density != 42 {
		t.Error("Refresh should replace the cache")
	}
}

func TestBridgeSetDensity(t *testing.T) {
	stub := &stubService{setOK: true, snapshot: Snapshot{"north": {Density: 10}}}
	bridge := NewBridge(stub)
	calls := stub.statusCalls

	if !bridge.SetDensity("north", 30) {
		t.Fatal("Expected success from the underlying service")
	}
	if stub.statusCalls != calls+1 {
		t.Error("Successful density update should refresh the cache")
	}

	stub.setOK = false
	calls = stub.statusCalls
	if bridge.SetDensity("bogus", 30) {
		t.Fatal("Rejection must propagate")
	}
	if stub.statusCalls != calls {
		t.Error("Rejected density update must not refresh the cache")
	}
}
