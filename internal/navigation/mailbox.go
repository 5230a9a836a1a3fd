package navigation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/questwalk/internal/model"
)

// Kind identifies which signal a payload carries. A payload carries exactly
// one.
type Kind string

const (
	KindCheckIn    Kind = "checkin"
	KindCompletion Kind = "completion"
	KindSelection  Kind = "selection"
)

// Payload is the structured message attached to a transition into the
// mission view.
type Payload struct {
	ID          uuid.UUID              `json:"id"`
	Kind        Kind                   `json:"kind"`
	CheckedInAt time.Time              `json:"checkedInAt,omitzero"`
	Completion  *model.CompletionEvent `json:"completion,omitempty"`
	MissionID   string                 `json:"missionId,omitempty"`
}

func CheckIn(at time.Time) Payload {
	return Payload{ID: uuid.New(), Kind: KindCheckIn, CheckedInAt: at}
}

func Completion(e model.CompletionEvent) Payload {
	return Payload{ID: uuid.New(), Kind: KindCompletion, Completion: &e}
}

func Selection(missionID string) Payload {
	return Payload{ID: uuid.New(), Kind: KindSelection, MissionID: missionID}
}

// Mailbox is a single-slot channel between views. Posting replaces any
// unread payload. A reader peeks, then claims the payload with ClearIf;
// only one claim of a given payload succeeds.
type Mailbox struct {
	mu   sync.Mutex
	slot *Payload
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Post attaches p to the next transition and returns its id.
func (m *Mailbox) Post(p Payload) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.mu.Lock()
	m.slot = &p
	m.mu.Unlock()
	return p.ID
}

// Peek returns the pending payload without consuming it.
func (m *Mailbox) Peek() (p Payload, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot == nil {
		return Payload{}, false
	}
	return *m.slot, true
}

// ClearIf drops the pending payload only if it is still id. It reports
// whether anything was removed.
func (m *Mailbox) ClearIf(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot == nil || m.slot.ID != id {
		return false
	}
	m.slot = nil
	return true
}
