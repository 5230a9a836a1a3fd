package navigation

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/questwalk/internal/model"
)

// claim peeks and clears in the way the mission controller consumes a
// payload.
func claim(m *Mailbox) (Payload, bool) {
	p, ok := m.Peek()
	if !ok || !m.ClearIf(p.ID) {
		return Payload{}, false
	}
	return p, true
}

func TestClaimConsumesOnce(t *testing.T) {
	m := NewMailbox()
	id := m.Post(Completion(model.CompletionEvent{TaskID: "t1", MissionID: "m1", RewardPoints: 300}))

	p, ok := claim(m)
	if !ok {
		t.Fatal("expected a payload")
	}
	if p.ID != id {
		t.Errorf("id = %s, want %s", p.ID, id)
	}
	if p.Kind != KindCompletion || p.Completion == nil || p.Completion.TaskID != "t1" {
		t.Errorf("unexpected payload %+v", p)
	}

	if _, ok := claim(m); ok {
		t.Error("second claim should find the slot empty")
	}
}

func TestEmptyMailbox(t *testing.T) {
	m := NewMailbox()
	if _, ok := m.Peek(); ok {
		t.Error("expected empty peek")
	}
}

func TestPostReplaces(t *testing.T) {
	m := NewMailbox()
	m.Post(Selection("m1"))
	m.Post(CheckIn(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)))

	p, ok := claim(m)
	if !ok {
		t.Fatal("expected a payload")
	}
	if p.Kind != KindCheckIn {
		t.Errorf("kind = %s, want %s", p.Kind, KindCheckIn)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	m := NewMailbox()
	m.Post(Selection("m2"))

	if _, ok := m.Peek(); !ok {
		t.Fatal("expected peek to see payload")
	}
	if p, ok := claim(m); !ok || p.MissionID != "m2" {
		t.Errorf("claim after Peek = %+v, %v", p, ok)
	}
}

func TestClearIf(t *testing.T) {
	m := NewMailbox()
	first := m.Post(Selection("m1"))
	m.Post(Selection("m2"))

	if m.ClearIf(first) {
		t.Error("ClearIf should not remove a newer payload")
	}
	p, _ := m.Peek()
	if !m.ClearIf(p.ID) {
		t.Error("ClearIf should remove the matching payload")
	}
	if _, ok := m.Peek(); ok {
		t.Error("expected empty mailbox")
	}
}

func TestPostAssignsID(t *testing.T) {
	m := NewMailbox()
	id := m.Post(Payload{Kind: KindSelection, MissionID: "m1"})
	if id == uuid.Nil {
		t.Error("expected generated id")
	}
}

func TestConcurrentClaimDeliversOnce(t *testing.T) {
	m := NewMailbox()
	m.Post(Selection("m1"))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := claim(m); ok {
				mu.Lock()
				got++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if got != 1 {
		t.Errorf("payload delivered %d times, want 1", got)
	}
}
