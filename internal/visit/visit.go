package visit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/questwalk/internal/model"
	"github.com/dukerupert/questwalk/internal/navigation"
)

// ErrInProgress is returned when a completion is already outstanding.
var ErrInProgress = errors.New("visit already in progress")

// Remote is the part of the Mission Service a visit needs.
type Remote interface {
	Location(ctx context.Context, id string) (*model.Location, error)
	CompleteTask(ctx context.Context, missionID, taskID string) (model.CompletionResult, error)
}

// Request identifies the task being completed on site.
type Request struct {
	MissionID  string
	TaskID     string
	LocationID string
	Code       string
}

// Service confirms a physical visit and hands the resulting completion to
// the mission view through the mailbox.
type Service struct {
	remote  Remote
	mailbox *navigation.Mailbox
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

func NewService(remote Remote, mailbox *navigation.Mailbox, logger *slog.Logger) *Service {
	return &Service{
		remote:  remote,
		mailbox: mailbox,
		logger:  logger.With("component", "visit"),
	}
}

// Visit verifies the location code, asks the Mission Service to complete
// the task and posts the completion event. A second call while one is
// outstanding returns ErrInProgress without contacting the service.
func (s *Service) Visit(ctx context.Context, req Request) (model.CompletionEvent, error) {
	if !s.begin() {
		return model.CompletionEvent{}, ErrInProgress
	}
	defer s.end()

	if req.LocationID != "" {
		loc, err := s.remote.Location(ctx, req.LocationID)
		if err != nil {
			return model.CompletionEvent{}, fmt.Errorf("load location: %w", err)
		}
		if err := VerifyCode(loc.SpecialCodeHash, req.Code); err != nil {
			s.logger.Info("location code rejected", "task_id", req.TaskID, "location_id", req.LocationID)
			return model.CompletionEvent{}, err
		}
	}

	res, err := s.remote.CompleteTask(ctx, req.MissionID, req.TaskID)
	if err != nil {
		return model.CompletionEvent{}, fmt.Errorf("complete task: %w", err)
	}

	event := res.Event(req.MissionID, req.TaskID)
	s.mailbox.Post(navigation.Completion(event))
	s.logger.Info("task visited",
		"mission_id", req.MissionID,
		"task_id", req.TaskID,
		"reward", res.Reward,
		"mission_completed", res.MissionCompleted,
	)
	return event, nil
}

func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Service) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// Prefetch warms the location cache for every task of m so the detail
// screens open without waiting. Failures are logged; the first one is
// returned.
func (s *Service) Prefetch(ctx context.Context, m *model.Mission) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	seen := make(map[string]struct{}, len(m.Tasks))
	for _, task := range m.Tasks {
		id := task.LocationID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		g.Go(func() error {
			if _, err := s.remote.Location(gctx, id); err != nil {
				s.logger.Warn("prefetch location", "location_id", id, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
