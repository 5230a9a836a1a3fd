package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/questwalk/internal/achievement"
	"github.com/dukerupert/questwalk/internal/model"
	"github.com/dukerupert/questwalk/internal/navigation"
	"github.com/dukerupert/questwalk/internal/progress"
)

// Service is the part of the Remote Mission Service the controller calls.
type Service interface {
	Mission(ctx context.Context, id string) (*model.Mission, error)
	SelectMission(ctx context.Context, missionID string) (model.SelectResult, error)
	SwapMission(ctx context.Context, fromID, toID string) (model.SwapResult, error)
	ResetMission(ctx context.Context) error
}

// SnapshotStore keeps the last authoritative mission bodies for offline
// rendering.
type SnapshotStore interface {
	Save(m *model.Mission) error
	Get(missionID string) (*model.Mission, error)
	Delete(missionID string) error
}

// SelectionPolicy decides what choosing a different mission does to the
// current cycle's progress. Only a new check-in resets progress unless
// ResetProgressOnSwitch is set.
type SelectionPolicy struct {
	ResetProgressOnSwitch bool
}

// Change describes a committed update to the progress cache.
type Change struct {
	Action      string   `json:"action"`
	MissionID   string   `json:"missionId,omitempty"`
	TaskID      string   `json:"taskId,omitempty"`
	Locked      bool     `json:"locked"`
	TotalPoints int      `json:"totalPoints"`
	Completed   []string `json:"completed"`
}

const (
	ActionReset     = "reset"
	ActionCompleted = "task_completed"
	ActionSelected  = "selected"
	ActionSwapped   = "swapped"
)

type Options struct {
	Snapshots SnapshotStore
	Reset     progress.DailyReset
	Policy    SelectionPolicy
	Now       func() time.Time
	OnChange  func(Change)
}

// Controller owns the local progress cache. It reconciles navigation
// events, completions and mission choices against it and the Mission
// Service.
type Controller struct {
	store      progress.Store
	service    Service
	snapshots  SnapshotStore
	mailbox    *navigation.Mailbox
	aggregator *achievement.Aggregator
	reset      progress.DailyReset
	policy     SelectionPolicy
	now        func() time.Time
	onChange   func(Change)
	logger     *slog.Logger

	// stateMu serializes load-modify-save of the cache.
	stateMu sync.Mutex

	mu         sync.Mutex
	busy       bool
	generation uint64
	current    *model.Mission
}

func NewController(store progress.Store, service Service, mailbox *navigation.Mailbox, logger *slog.Logger, opts Options) *Controller {
	logger = logger.With("component", "mission")
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		store:      store,
		service:    service,
		snapshots:  opts.Snapshots,
		mailbox:    mailbox,
		aggregator: achievement.NewAggregator(logger),
		reset:      opts.Reset,
		policy:     opts.Policy,
		now:        opts.Now,
		onChange:   opts.OnChange,
		logger:     logger,
	}
}

// errUnchanged lets an update callback skip the save.
var errUnchanged = errors.New("unchanged")

// update loads the cache, applies fn and saves the result atomically with
// respect to other updates.
func (c *Controller) update(fn func(e *progress.Entry) error) (progress.Entry, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	e, err := progress.Load(c.store, c.logger)
	if err != nil {
		return e, fmt.Errorf("load progress: %w", err)
	}
	if err := fn(&e); err != nil {
		if errors.Is(err, errUnchanged) {
			return e, nil
		}
		return e, err
	}
	if err := progress.Save(c.store, e); err != nil {
		return e, fmt.Errorf("save progress: %w", err)
	}
	return e, nil
}

// Progress returns a copy of the cached entry.
func (c *Controller) Progress() (progress.Entry, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	e, err := progress.Load(c.store, c.logger)
	if err != nil {
		return e, fmt.Errorf("load progress: %w", err)
	}
	return e, nil
}

func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) nextGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// remember keeps m as the current mission body unless a newer activation
// has started since gen was issued.
func (c *Controller) remember(gen uint64, m *model.Mission) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.current = m
	return true
}

func (c *Controller) cached(id string) *model.Mission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.ID == id {
		return c.current
	}
	return nil
}

func (c *Controller) forget() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Controller) notify(action string, e progress.Entry, taskID string) {
	if c.onChange == nil {
		return
	}
	c.onChange(Change{
		Action:      action,
		MissionID:   e.ActiveMissionID,
		TaskID:      taskID,
		Locked:      e.MissionLocked,
		TotalPoints: e.TotalPoints,
		Completed:   e.CompletedIDs(),
	})
}

// fetchMission returns the authoritative body of id. When the service
// cannot be reached it falls back to the last body seen and reports it as
// stale.
func (c *Controller) fetchMission(ctx context.Context, id string) (m *model.Mission, stale bool, err error) {
	m, err = c.service.Mission(ctx, id)
	if err == nil {
		return m, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, ctxErr
	}
	err = classify(err)
	if !errors.Is(err, ErrNetworkFailure) {
		return nil, false, err
	}

	if m := c.cached(id); m != nil {
		c.logger.Warn("mission service unreachable, using current copy", "mission_id", id, "error", err)
		return m, true, nil
	}
	if c.snapshots != nil {
		snap, serr := c.snapshots.Get(id)
		if serr != nil {
			c.logger.Error("read mission snapshot", "mission_id", id, "error", serr)
		}
		if snap != nil {
			c.logger.Warn("mission service unreachable, using snapshot", "mission_id", id, "error", err)
			return snap, true, nil
		}
	}
	return nil, false, err
}

// missionFor returns the body of id, preferring the one already held.
func (c *Controller) missionFor(ctx context.Context, id string) (*model.Mission, error) {
	if m := c.cached(id); m != nil {
		return m, nil
	}
	m, _, err := c.fetchMission(ctx, id)
	return m, err
}

// ActiveMission returns the body of the active mission.
func (c *Controller) ActiveMission(ctx context.Context) (*model.Mission, error) {
	e, err := c.Progress()
	if err != nil {
		return nil, err
	}
	if e.ActiveMissionID == "" {
		return nil, ErrNoActiveMission
	}
	m, err := c.missionFor(ctx, e.ActiveMissionID)
	if err != nil {
		return nil, fmt.Errorf("load active mission: %w", err)
	}
	return m, nil
}

// CompleteTask merges a completion event into the cache. Delivering the
// same event again changes nothing. It reports whether the event was new.
func (c *Controller) CompleteTask(ctx context.Context, event model.CompletionEvent) (bool, error) {
	if !c.acquire() {
		return false, ErrBusy
	}
	defer c.release()

	merged, err := c.mergeCompletion(ctx, event)
	if err != nil {
		return false, err
	}

	// The same event may still be waiting in the mailbox.
	if p, ok := c.mailbox.Peek(); ok && p.Kind == navigation.KindCompletion && p.Completion != nil &&
		p.Completion.TaskID == event.TaskID && p.Completion.MissionID == event.MissionID {
		c.mailbox.ClearIf(p.ID)
	}
	return merged, nil
}

func (c *Controller) mergeCompletion(ctx context.Context, event model.CompletionEvent) (bool, error) {
	e, err := c.Progress()
	if err != nil {
		return false, err
	}
	if e.ActiveMissionID == "" || event.MissionID != e.ActiveMissionID {
		return false, fmt.Errorf("%w: completion for mission %q but %q is active",
			ErrStateConflict, event.MissionID, e.ActiveMissionID)
	}
	if e.HasCompleted(event.TaskID) {
		c.logger.Debug("completion already merged", "task_id", event.TaskID)
		return false, nil
	}

	m, err := c.missionFor(ctx, event.MissionID)
	if err != nil {
		return false, fmt.Errorf("load mission for completion: %w", err)
	}
	if !m.HasTask(event.TaskID) {
		return false, fmt.Errorf("%w: task %q is not part of mission %q",
			ErrStateConflict, event.TaskID, event.MissionID)
	}

	var merged bool
	e, err = c.update(func(e *progress.Entry) error {
		if e.ActiveMissionID != event.MissionID {
			return fmt.Errorf("%w: active mission changed to %q", ErrStateConflict, e.ActiveMissionID)
		}
		if !e.MarkCompleted(event.TaskID) {
			return errUnchanged
		}
		merged = true
		c.aggregator.RecordCompletion(event.TaskID, m, e)
		e.MissionLocked = true
		if event.NewTotalPoints > 0 {
			e.TotalPoints = event.NewTotalPoints
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if merged {
		c.logger.Info("task completed",
			"mission_id", event.MissionID,
			"task_id", event.TaskID,
			"reward", event.RewardPoints,
		)
		c.notify(ActionCompleted, e, event.TaskID)
	}
	return merged, nil
}

// SelectMission makes missionID the active mission. Re-selecting the
// active mission is a no-op; choosing another one while the active mission
// is locked fails with ErrMissionLocked.
func (c *Controller) SelectMission(ctx context.Context, missionID string) error {
	if !c.acquire() {
		return ErrBusy
	}
	defer c.release()
	return c.selectMission(ctx, missionID)
}

func (c *Controller) selectMission(ctx context.Context, missionID string) error {
	if missionID == "" {
		return fmt.Errorf("%w: empty mission id", ErrStateConflict)
	}
	e, err := c.Progress()
	if err != nil {
		return err
	}
	if e.ActiveMissionID == missionID {
		return nil
	}
	if e.ActiveMissionID != "" && e.MissionLocked {
		return fmt.Errorf("select mission %s: %w", missionID, ErrMissionLocked)
	}

	res, err := c.service.SelectMission(ctx, missionID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("select mission %s: %w", missionID, classify(err))
	}
	if err := ctx.Err(); err != nil {
		c.logger.Info("selection discarded, caller gone", "mission_id", missionID)
		return err
	}

	e, err = c.update(func(e *progress.Entry) error {
		if e.ActiveMissionID != "" && e.ActiveMissionID != missionID && e.MissionLocked {
			return fmt.Errorf("select mission %s: %w", missionID, ErrMissionLocked)
		}
		c.switchTo(e, missionID)
		e.MissionLocked = e.MissionLocked || res.Locked
		return nil
	})
	if err != nil {
		return err
	}
	c.forget()
	c.logger.Info("mission selected", "mission_id", missionID)
	c.notify(ActionSelected, e, "")
	return nil
}

// switchTo points e at missionID, applying the selection policy.
func (c *Controller) switchTo(e *progress.Entry, missionID string) {
	if e.ActiveMissionID != missionID && c.policy.ResetProgressOnSwitch {
		e.CompletedTaskIDs = make(map[string]struct{})
	}
	e.ActiveMissionID = missionID
	e.MissionLocked = false
}

// SwapMission replaces the active mission fromID with toID. It fails with
// ErrMissionLocked if the active mission is locked and leaves the cache
// untouched until the Mission Service confirms the swap.
func (c *Controller) SwapMission(ctx context.Context, fromID, toID string) error {
	if !c.acquire() {
		return ErrBusy
	}
	defer c.release()

	e, err := c.Progress()
	if err != nil {
		return err
	}
	if e.ActiveMissionID == "" || e.ActiveMissionID != fromID {
		return fmt.Errorf("%w: swap from %q but %q is active", ErrStateConflict, fromID, e.ActiveMissionID)
	}
	if fromID == toID {
		return nil
	}
	if e.MissionLocked {
		return fmt.Errorf("swap mission %s: %w", fromID, ErrMissionLocked)
	}

	_, err = c.service.SwapMission(ctx, fromID, toID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = classify(err)
		if errors.Is(err, ErrMissionLocked) {
			// The service knows about progress we have not seen yet.
			if _, uerr := c.update(func(e *progress.Entry) error {
				if e.ActiveMissionID != fromID {
					return errUnchanged
				}
				e.MissionLocked = true
				return nil
			}); uerr != nil {
				c.logger.Error("record remote lock", "mission_id", fromID, "error", uerr)
			}
		}
		return fmt.Errorf("swap mission %s to %s: %w", fromID, toID, err)
	}
	if err := ctx.Err(); err != nil {
		c.logger.Info("swap discarded, caller gone", "from", fromID, "to", toID)
		return err
	}

	e, err = c.update(func(e *progress.Entry) error {
		if e.ActiveMissionID != fromID {
			return fmt.Errorf("%w: active mission changed to %q", ErrStateConflict, e.ActiveMissionID)
		}
		c.switchTo(e, toID)
		return nil
	})
	if err != nil {
		return err
	}
	c.forget()
	c.logger.Info("mission swapped", "from", fromID, "to", toID)
	c.notify(ActionSwapped, e, "")
	return nil
}

// checkIn applies the daily reset policy. When it fires the Mission
// Service is asked to reset too; a failure there is returned as a warning
// and the local reset stands.
func (c *Controller) checkIn(ctx context.Context, at time.Time) ([]string, error) {
	if at.IsZero() {
		at = c.now()
	}

	var fired bool
	e, err := c.update(func(e *progress.Entry) error {
		if !c.reset.ShouldReset(at, *e) {
			return errUnchanged
		}
		c.reset.Apply(at, e)
		fired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !fired {
		c.logger.Debug("check-in on same day, progress kept", "date", e.LastCheckInDate)
		return nil, nil
	}

	c.forget()
	c.logger.Info("daily reset", "date", e.LastCheckInDate)
	c.notify(ActionReset, e, "")

	if err := c.service.ResetMission(ctx); err != nil {
		c.logger.Warn("remote reset failed, local reset kept", "error", err)
		return []string{"Mission Service reset failed; progress was reset on this device only"}, nil
	}
	return nil, nil
}

// Activate is called whenever the mission view becomes active. It
// consumes at most one navigation payload, then renders the active
// mission from the Mission Service, falling back to the last known body.
//
// On ErrStateConflict the returned view is still valid: the offending
// completion was discarded and the mission re-fetched.
func (c *Controller) Activate(ctx context.Context) (View, error) {
	gen := c.nextGeneration()

	var (
		warnings []string
		event    *model.CompletionEvent
		conflict error
	)

	if p, ok := c.mailbox.Peek(); ok {
		if !c.acquire() {
			return View{}, ErrBusy
		}
		if c.mailbox.ClearIf(p.ID) {
			w, ev, err := c.handle(ctx, p)
			warnings = append(warnings, w...)
			event = ev
			switch {
			case errors.Is(err, ErrStateConflict), errors.Is(err, ErrDataInconsistency):
				c.logger.Warn("discarding payload", "kind", p.Kind, "error", err)
				c.forget()
				conflict = err
			case err != nil:
				c.release()
				return View{}, err
			}
		}
		c.release()
	}

	v, err := c.render(ctx, gen)
	if err != nil {
		return View{}, err
	}
	v.Warnings = append(warnings, v.Warnings...)
	v.Event = event
	return v, conflict
}

func (c *Controller) handle(ctx context.Context, p navigation.Payload) ([]string, *model.CompletionEvent, error) {
	switch p.Kind {
	case navigation.KindCheckIn:
		w, err := c.checkIn(ctx, p.CheckedInAt)
		return w, nil, err

	case navigation.KindCompletion:
		if p.Completion == nil {
			c.logger.Warn("completion payload without event", "payload_id", p.ID)
			return nil, nil, nil
		}
		merged, err := c.mergeCompletion(ctx, *p.Completion)
		if retryable(err) {
			// Keep the event for the next activation unless something newer
			// arrived.
			if _, ok := c.mailbox.Peek(); !ok {
				c.mailbox.Post(p)
			}
			return nil, nil, err
		}
		if err != nil {
			return nil, nil, err
		}
		if !merged {
			return nil, nil, nil
		}
		ev := *p.Completion
		return nil, &ev, nil

	case navigation.KindSelection:
		return nil, nil, c.selectMission(ctx, p.MissionID)

	default:
		c.logger.Warn("unknown payload kind", "kind", p.Kind, "payload_id", p.ID)
		return nil, nil, nil
	}
}

// View is what the mission screen renders.
type View struct {
	Mission          *model.Mission         `json:"mission,omitempty"`
	Progress         Progress               `json:"progress"`
	State            State                  `json:"state"`
	ActiveMissionID  string                 `json:"activeMissionId,omitempty"`
	Locked           bool                   `json:"locked"`
	TotalPoints      int                    `json:"totalPoints"`
	Counters         map[model.Category]int `json:"achievementCounters"`
	Stale            bool                   `json:"stale"`
	Expired          bool                   `json:"expired"`
	RemainingSeconds int64                  `json:"remainingSeconds,omitempty"`
	Event            *model.CompletionEvent `json:"event,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
}

func (c *Controller) render(ctx context.Context, gen uint64) (View, error) {
	e, err := c.Progress()
	if err != nil {
		return View{}, err
	}
	if e.ActiveMissionID == "" {
		return c.view(nil, e, false), nil
	}

	id := e.ActiveMissionID
	m, stale, err := c.fetchMission(ctx, id)
	if errors.Is(err, ErrDataInconsistency) {
		c.logger.Warn("active mission is gone, clearing", "mission_id", id, "error", err)
		e, uerr := c.update(func(e *progress.Entry) error {
			if e.ActiveMissionID != id {
				return errUnchanged
			}
			e.ActiveMissionID = ""
			e.MissionLocked = false
			clear(e.CompletedTaskIDs)
			return nil
		})
		if uerr != nil {
			return View{}, uerr
		}
		if c.snapshots != nil {
			if err := c.snapshots.Delete(id); err != nil {
				c.logger.Error("delete mission snapshot", "mission_id", id, "error", err)
			}
		}
		v := c.view(nil, e, false)
		v.Warnings = append(v.Warnings, "The selected mission is no longer available")
		return v, nil
	}
	if err != nil {
		return View{}, err
	}
	if ctx.Err() != nil {
		return View{}, ctx.Err()
	}
	if !c.remember(gen, m) {
		return View{}, ErrSuperseded
	}

	if !stale {
		if c.snapshots != nil {
			if err := c.snapshots.Save(m); err != nil {
				c.logger.Error("save mission snapshot", "mission_id", m.ID, "error", err)
			}
		}
		if m.Locked && !e.MissionLocked {
			e, err = c.update(func(e *progress.Entry) error {
				if e.ActiveMissionID != m.ID || e.MissionLocked {
					return errUnchanged
				}
				e.MissionLocked = true
				return nil
			})
			if err != nil {
				return View{}, err
			}
		}
	}

	v := c.view(m, e, stale)
	if stale {
		v.Warnings = append(v.Warnings, "Showing saved mission data; the Mission Service could not be reached")
	}
	return v, nil
}

// view merges local completion into a copy of m and derives progress.
func (c *Controller) view(m *model.Mission, e progress.Entry, stale bool) View {
	v := View{
		ActiveMissionID: e.ActiveMissionID,
		Locked:          e.MissionLocked,
		TotalPoints:     e.TotalPoints,
		Counters:        e.Clone().AchievementCounters,
		Stale:           stale,
	}
	if m != nil {
		mc := *m
		mc.Tasks = slices.Clone(m.Tasks)
		for i := range mc.Tasks {
			mc.Tasks[i].Completed = TaskDone(mc.Tasks[i], e)
		}
		v.Mission = &mc
		if d, ok := mc.Remaining(c.now()); ok {
			v.RemainingSeconds = int64(d / time.Second)
			v.Expired = d == 0
		}
	}
	v.Progress = DerivedProgress(v.Mission, e)
	v.State = StateOf(v.Mission, e, v.Progress)
	return v
}
