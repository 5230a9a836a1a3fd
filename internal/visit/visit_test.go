package visit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/questwalk/internal/model"
	"github.com/dukerupert/questwalk/internal/navigation"
)

type fakeRemote struct {
	mu        sync.Mutex
	locations map[string]*model.Location
	locCalls  map[string]int
	completes int
	result    model.CompletionResult
	err       error
	block     chan struct{}
}

func (f *fakeRemote) Location(ctx context.Context, id string) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locCalls == nil {
		f.locCalls = make(map[string]int)
	}
	f.locCalls[id]++
	loc, ok := f.locations[id]
	if !ok {
		return nil, errors.New("no such location")
	}
	return loc, nil
}

func (f *fakeRemote) CompleteTask(ctx context.Context, missionID, taskID string) (model.CompletionResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
	return f.result, f.err
}

func testService(remote Remote) (*Service, *navigation.Mailbox) {
	mb := navigation.NewMailbox()
	return NewService(remote, mb, slog.New(slog.NewTextHandler(io.Discard, nil))), mb
}

func TestVisitPostsCompletion(t *testing.T) {
	remote := &fakeRemote{
		locations: map[string]*model.Location{
			"loc1": {ID: "loc1", SpecialCodeHash: mustHash(t, "1234")},
		},
		result: model.CompletionResult{Reward: 300, NewTotalPoints: 300, MissionLocked: true},
	}
	svc, mb := testService(remote)

	event, err := svc.Visit(context.Background(), Request{MissionID: "m1", TaskID: "t1", LocationID: "loc1", Code: "1234"})
	if err != nil {
		t.Fatalf("visit: %v", err)
	}
	if event.TaskID != "t1" || event.RewardPoints != 300 || !event.MissionLocked {
		t.Errorf("unexpected event %+v", event)
	}

	p, ok := mb.Peek()
	if !ok {
		t.Fatal("expected completion in mailbox")
	}
	if p.Kind != navigation.KindCompletion || p.Completion.TaskID != "t1" || p.Completion.MissionID != "m1" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestVisitWrongCode(t *testing.T) {
	remote := &fakeRemote{
		locations: map[string]*model.Location{
			"loc1": {ID: "loc1", SpecialCodeHash: mustHash(t, "1234")},
		},
	}
	svc, mb := testService(remote)

	_, err := svc.Visit(context.Background(), Request{MissionID: "m1", TaskID: "t1", LocationID: "loc1", Code: "0000"})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("err = %v, want ErrInvalidCode", err)
	}
	if remote.completes != 0 {
		t.Error("task must not be completed with a wrong code")
	}
	if _, ok := mb.Peek(); ok {
		t.Error("mailbox should be empty")
	}
}

func TestVisitRemoteFailure(t *testing.T) {
	remote := &fakeRemote{err: errors.New("boom")}
	svc, mb := testService(remote)

	if _, err := svc.Visit(context.Background(), Request{MissionID: "m1", TaskID: "t1"}); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := mb.Peek(); ok {
		t.Error("mailbox should be empty after a failed completion")
	}
}

func TestVisitRejectsReentrantCall(t *testing.T) {
	remote := &fakeRemote{block: make(chan struct{})}
	svc, _ := testService(remote)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Visit(context.Background(), Request{MissionID: "m1", TaskID: "t1"})
		done <- err
	}()

	// Wait until the first call holds the guard.
	for {
		svc.mu.Lock()
		busy := svc.inFlight
		svc.mu.Unlock()
		if busy {
			break
		}
	}

	if _, err := svc.Visit(context.Background(), Request{MissionID: "m1", TaskID: "t1"}); !errors.Is(err, ErrInProgress) {
		t.Errorf("err = %v, want ErrInProgress", err)
	}

	close(remote.block)
	if err := <-done; err != nil {
		t.Fatalf("first visit: %v", err)
	}
	if remote.completes != 1 {
		t.Errorf("completes = %d, want 1", remote.completes)
	}
}

func TestPrefetch(t *testing.T) {
	remote := &fakeRemote{
		locations: map[string]*model.Location{
			"a": {ID: "a"},
			"b": {ID: "b"},
		},
	}
	svc, _ := testService(remote)

	m := &model.Mission{ID: "m1", Tasks: []model.Task{
		{ID: "t1", LocationID: "a"},
		{ID: "t2", LocationID: "b"},
		{ID: "t3", LocationID: "a"},
		{ID: "t4"},
	}}
	if err := svc.Prefetch(context.Background(), m); err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	if remote.locCalls["a"] != 1 || remote.locCalls["b"] != 1 {
		t.Errorf("location calls = %v", remote.locCalls)
	}
}

func TestPrefetchReportsFailure(t *testing.T) {
	svc, _ := testService(&fakeRemote{})
	m := &model.Mission{ID: "m1", Tasks: []model.Task{{ID: "t1", LocationID: "gone"}}}
	if err := svc.Prefetch(context.Background(), m); err == nil {
		t.Error("expected prefetch error")
	}
}
