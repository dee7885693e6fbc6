package guidance

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestStore_Empty(t *testing.T) {
	s := NewStore()
	got := s.Snapshot()
	if got.Instruction != "" || got.Distance != NoDistance || got.Arrived {
		t.Errorf("empty store = %+v", got)
	}
}

func TestStore_EmitOverwrites(t *testing.T) {
	s := NewStore()

	s.Emit(Event{Kind: EventInstruction, Instruction: "Walk straight for 5.0 meters."})
	s.Emit(Event{Kind: EventDistance, Distance: 10.04})
	s.Emit(Event{Kind: EventInstruction, Instruction: "Turn left in 2.0 meters."})

	got := s.Snapshot()
	if got.Instruction != "Turn left in 2.0 meters." {
		t.Errorf("Instruction = %q", got.Instruction)
	}
	if got.Distance != 10.0 {
		t.Errorf("Distance = %v, want 10.0", got.Distance)
	}
	if got.Arrived {
		t.Error("Arrived should be false")
	}
}

func TestStore_Arrived(t *testing.T) {
	s := NewStore()
	s.Emit(Event{Kind: EventArrived})
	s.Emit(Event{Kind: EventDistance, Distance: 0})

	got := s.Snapshot()
	want := State{Instruction: ArrivedMessage, Distance: 0, Arrived: true}
	if got != want {
		t.Errorf("Snapshot = %+v, want %+v", got, want)
	}

	s.Reset()
	if s.Snapshot() != Empty() {
		t.Errorf("after Reset = %+v", s.Snapshot())
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(State{Instruction: "x", Distance: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"instruction":"x","distance":1.5,"arrived":false}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		s.Emit(Event{Kind: EventDistance, Distance: float64(j)})
	}
	wg.Wait()
}
